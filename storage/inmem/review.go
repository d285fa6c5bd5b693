package inmem

import (
	"context"
	"fmt"
	"sort"

	"peer-review-api/models"
	"peer-review-api/storage"
)

func assignmentKey(paperID, reviewerID string) string {
	return paperID + "|" + reviewerID
}

func reviewKey(paperID, reviewerID string, round int) string {
	return fmt.Sprintf("%s|%s|%d", paperID, reviewerID, round)
}

func (db *DB) FindAssignment(_ context.Context, paperID, reviewerID string) (*models.ReviewAssignment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	a, ok := db.assignments[assignmentKey(paperID, reviewerID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.CloneAssignment(a), nil
}

func (db *DB) UpsertAssignment(_ context.Context, a *models.ReviewAssignment) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := assignmentKey(a.PaperID, a.ReviewerID)
	if existing, ok := db.assignments[key]; ok && a.ID == "" {
		a.ID = existing.ID
	}
	db.assignments[key] = storage.CloneAssignment(a)
	return nil
}

func (db *DB) listAssignments(keep func(*models.ReviewAssignment) bool) []models.ReviewAssignment {
	out := make([]models.ReviewAssignment, 0)
	for _, a := range db.assignments {
		if keep(a) {
			out = append(out, *storage.CloneAssignment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out
}

func (db *DB) ListAssignmentsByPaper(_ context.Context, paperID string) ([]models.ReviewAssignment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.listAssignments(func(a *models.ReviewAssignment) bool { return a.PaperID == paperID }), nil
}

func (db *DB) ListAssignmentsByReviewer(_ context.Context, reviewerID string) ([]models.ReviewAssignment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.listAssignments(func(a *models.ReviewAssignment) bool { return a.ReviewerID == reviewerID }), nil
}

func (db *DB) ListAssignmentsByStatus(_ context.Context, statuses ...models.AssignmentStatus) ([]models.ReviewAssignment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.listAssignments(func(a *models.ReviewAssignment) bool {
		for _, s := range statuses {
			if a.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (db *DB) CreateReview(_ context.Context, r *models.Review) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := reviewKey(r.PaperID, r.ReviewerID, r.ReviewRound)
	if _, ok := db.reviews[key]; ok {
		return storage.ErrDuplicate
	}
	cp := *r
	db.reviews[key] = &cp
	return nil
}

func (db *DB) FindReview(_ context.Context, paperID, reviewerID string, round int) (*models.Review, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	r, ok := db.reviews[reviewKey(paperID, reviewerID, round)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (db *DB) FindReviews(_ context.Context, f storage.ReviewFilter) ([]models.Review, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.Review, 0)
	for _, r := range db.reviews {
		if f.PaperID != "" && r.PaperID != f.PaperID {
			continue
		}
		if f.ReviewerID != "" && r.ReviewerID != f.ReviewerID {
			continue
		}
		if f.Round != 0 && r.ReviewRound != f.Round {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}
