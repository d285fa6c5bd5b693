// Package storage defines the persistence contract shared by the MySQL,
// MongoDB and in-memory backends.
package storage

import (
	"context"
	"errors"
	"time"

	"peer-review-api/models"
)

var (
	ErrNotFound  = errors.New("storage: record not found")
	ErrConflict  = errors.New("storage: version conflict")
	ErrDuplicate = errors.New("storage: duplicate key")
	ErrLocked    = errors.New("storage: lock held by another process")
)

type PaperFilter struct {
	Status     models.PaperStatus
	AuthorID   string
	ReviewerID string
	HubID      string
	Limit      int
	Offset     int
}

type ReviewFilter struct {
	PaperID    string
	ReviewerID string
	Round      int
	Status     models.ReviewStatus
}

type PaperStore interface {
	CreatePaper(ctx context.Context, p *models.Paper) error
	FindPaper(ctx context.Context, id string) (*models.Paper, error)
	// UpdatePaper persists p only if the stored version still equals
	// p.Version. On success p.Version is incremented.
	UpdatePaper(ctx context.Context, p *models.Paper) error
	ListPapers(ctx context.Context, f PaperFilter) ([]models.Paper, error)
}

type AssignmentStore interface {
	FindAssignment(ctx context.Context, paperID, reviewerID string) (*models.ReviewAssignment, error)
	// UpsertAssignment writes the assignment keyed by (paperId, reviewerId).
	UpsertAssignment(ctx context.Context, a *models.ReviewAssignment) error
	ListAssignmentsByPaper(ctx context.Context, paperID string) ([]models.ReviewAssignment, error)
	ListAssignmentsByReviewer(ctx context.Context, reviewerID string) ([]models.ReviewAssignment, error)
	ListAssignmentsByStatus(ctx context.Context, statuses ...models.AssignmentStatus) ([]models.ReviewAssignment, error)
}

type ReviewStore interface {
	// CreateReview fails with ErrDuplicate when a review already exists for
	// the same paper, reviewer and round.
	CreateReview(ctx context.Context, r *models.Review) error
	FindReview(ctx context.Context, paperID, reviewerID string, round int) (*models.Review, error)
	FindReviews(ctx context.Context, f ReviewFilter) ([]models.Review, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int64, error)
}

type HubStore interface {
	CreateHub(ctx context.Context, h *models.Hub) error
	FindHub(ctx context.Context, id string) (*models.Hub, error)
	UpdateHub(ctx context.Context, h *models.Hub) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsers(ctx context.Context, ids []string) ([]models.User, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	PaperStore
	AssignmentStore
	ReviewStore
	NotificationStore
	HubStore
	UserStore
}

// Locker is implemented by backends that can serialize batch jobs across
// processes. The returned release func must be called once.
type Locker interface {
	AcquireLock(ctx context.Context, name string) (release func() error, err error)
}

// Normalize applies the paging defaults used by every backend.
func Normalize(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
