package inmem

import (
	"context"
	"strings"

	"peer-review-api/models"
	"peer-review-api/storage"
)

func cloneHub(h *models.Hub) *models.Hub {
	cp := *h
	cp.Owner = models.RefTo[models.User](models.ResolveID(h.Owner))
	cp.Reviewers = append([]string(nil), h.Reviewers...)
	return &cp
}

func (db *DB) CreateHub(_ context.Context, h *models.Hub) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.hubs[h.ID]; ok {
		return storage.ErrDuplicate
	}
	db.hubs[h.ID] = cloneHub(h)
	return nil
}

func (db *DB) FindHub(_ context.Context, id string) (*models.Hub, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	h, ok := db.hubs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneHub(h), nil
}

func (db *DB) UpdateHub(_ context.Context, h *models.Hub) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.hubs[h.ID]; !ok {
		return storage.ErrNotFound
	}
	db.hubs[h.ID] = cloneHub(h)
	return nil
}

func (db *DB) CreateUser(_ context.Context, u *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.users {
		if existing.ID == u.ID || strings.EqualFold(existing.Email, u.Email) {
			return storage.ErrDuplicate
		}
	}
	cp := *u
	db.users[u.ID] = &cp
	return nil
}

func (db *DB) FindUser(_ context.Context, id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (db *DB) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (db *DB) FindUsers(_ context.Context, ids []string) ([]models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := db.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}
