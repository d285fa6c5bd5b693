package inmem

import (
	"context"
	"sort"
	"time"

	"peer-review-api/models"
	"peer-review-api/storage"
)

func (db *DB) CreatePaper(_ context.Context, p *models.Paper) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.papers[p.ID]; ok {
		return storage.ErrDuplicate
	}
	if p.Version == 0 {
		p.Version = 1
	}
	db.papers[p.ID] = storage.ClonePaper(p)
	return nil
}

func (db *DB) FindPaper(_ context.Context, id string) (*models.Paper, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.papers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.ClonePaper(p), nil
}

func (db *DB) UpdatePaper(_ context.Context, p *models.Paper) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	current, ok := db.papers[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if current.Version != p.Version {
		return storage.ErrConflict
	}
	p.Version++
	p.UpdatedAt = time.Now()
	db.papers[p.ID] = storage.ClonePaper(p)
	return nil
}

func (db *DB) ListPapers(_ context.Context, f storage.PaperFilter) ([]models.Paper, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.Paper, 0)
	for _, p := range db.papers {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.AuthorID != "" && !containsString(p.AuthorIDs(), f.AuthorID) {
			continue
		}
		if f.ReviewerID != "" && !p.PeerReview.IsAssigned(f.ReviewerID) {
			continue
		}
		if f.HubID != "" && !p.Hub.Is(f.HubID) {
			continue
		}
		out = append(out, *storage.ClonePaper(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit, offset := storage.Normalize(f.Limit, f.Offset)
	if offset >= len(out) {
		return []models.Paper{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
