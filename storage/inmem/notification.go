package inmem

import (
	"context"
	"sort"
	"time"

	"peer-review-api/models"
	"peer-review-api/storage"
)

func (db *DB) CreateNotification(_ context.Context, n *models.Notification) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	cp := *n
	db.notifications[n.ID] = &cp
	return nil
}

func (db *DB) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.Notification, 0)
	for _, n := range db.notifications {
		if n.User != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit, offset = storage.Normalize(limit, offset)
	if offset >= len(out) {
		return []models.Notification{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (db *DB) CountUnreadNotifications(_ context.Context, userID string) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var n int64
	for _, item := range db.notifications {
		if item.User == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (db *DB) MarkNotificationRead(_ context.Context, userID, id string, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	n, ok := db.notifications[id]
	if !ok || n.User != userID {
		return storage.ErrNotFound
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
	}
	return nil
}

func (db *DB) MarkAllNotificationsRead(_ context.Context, userID string, at time.Time) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var updated int64
	for _, n := range db.notifications {
		if n.User == userID && !n.IsRead {
			n.IsRead = true
			readAt := at
			n.ReadAt = &readAt
			updated++
		}
	}
	return updated, nil
}
