// Package inmem is a mutex-guarded Store used by tests and demo mode.
package inmem

import (
	"context"
	"sync"

	"peer-review-api/models"
	"peer-review-api/storage"
)

type DB struct {
	mu            sync.RWMutex
	papers        map[string]*models.Paper
	assignments   map[string]*models.ReviewAssignment
	reviews       map[string]*models.Review
	notifications map[string]*models.Notification
	hubs          map[string]*models.Hub
	users         map[string]*models.User

	locks sync.Map
}

var (
	_ storage.Store  = (*DB)(nil)
	_ storage.Locker = (*DB)(nil)
)

func New() *DB {
	return &DB{
		papers:        map[string]*models.Paper{},
		assignments:   map[string]*models.ReviewAssignment{},
		reviews:       map[string]*models.Review{},
		notifications: map[string]*models.Notification{},
		hubs:          map[string]*models.Hub{},
		users:         map[string]*models.User{},
	}
}

// AcquireLock mirrors the named-lock semantics of MySQL GET_LOCK(name, 0).
func (db *DB) AcquireLock(_ context.Context, name string) (func() error, error) {
	if _, loaded := db.locks.LoadOrStore(name, struct{}{}); loaded {
		return nil, storage.ErrLocked
	}
	return func() error {
		db.locks.Delete(name)
		return nil
	}, nil
}
