// Package gormdb is the MySQL backend built on gorm.
package gormdb

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"peer-review-api/models"
	"peer-review-api/storage"
)

type Store struct {
	db *gorm.DB
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Locker = (*Store)(nil)
)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table the store uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&paperRow{},
		&assignmentRow{},
		&reviewRow{},
		&notificationRow{},
		&hubRow{},
		&userRow{},
	)
	return errors.Wrap(err, "auto-migrate")
}

func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isDuplicateEntry(err):
		return storage.ErrDuplicate
	default:
		return errors.Wrap(err, op)
	}
}

// isDuplicateEntry catches MySQL 1062 when the dialector does not translate it.
func isDuplicateEntry(err error) bool {
	return strings.Contains(err.Error(), "Error 1062")
}

func (s *Store) AcquireLock(ctx context.Context, name string) (func() error, error) {
	var ok int
	if err := s.db.WithContext(ctx).Raw("SELECT GET_LOCK(?, 0)", name).Scan(&ok).Error; err != nil {
		return nil, errors.Wrap(err, "get lock")
	}
	if ok != 1 {
		return nil, storage.ErrLocked
	}

	return func() error {
		var released int
		if err := s.db.WithContext(context.WithoutCancel(ctx)).Raw("SELECT RELEASE_LOCK(?)", name).Scan(&released).Error; err != nil {
			return errors.Wrap(err, "release lock")
		}
		return nil
	}, nil
}

func (s *Store) CreatePaper(ctx context.Context, p *models.Paper) error {
	if p.Version == 0 {
		p.Version = 1
	}
	row := newPaperRow(p)
	return translate(s.db.WithContext(ctx).Create(&row).Error, "create paper")
}

func (s *Store) FindPaper(ctx context.Context, id string) (*models.Paper, error) {
	var row paperRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err, "find paper")
	}
	return row.toModel(), nil
}

func (s *Store) UpdatePaper(ctx context.Context, p *models.Paper) error {
	row := newPaperRow(p)
	now := time.Now()

	res := s.db.WithContext(ctx).Model(&paperRow{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"title":                   row.Title,
			"abstract":                row.Abstract,
			"keywords":                row.Keywords,
			"file_url":                row.FileURL,
			"main_author_id":          row.MainAuthorID,
			"corresponding_author_id": row.CorrespondingAuthorID,
			"submitted_by_id":         row.SubmittedByID,
			"co_author_ids":           row.CoAuthorIDs,
			"hub_id":                  row.HubID,
			"status":                  row.Status,
			"review_round":            row.ReviewRound,
			"review_slots":            row.ReviewSlots,
			"max_review_slots":        row.MaxReviewSlots,
			"available_slots":         row.AvailableSlots,
			"peer_review":             row.PeerReview,
			"phase_timestamps":        row.PhaseTimestamps,
			"version":                 p.Version + 1,
			"updated_at":              now,
		})
	if res.Error != nil {
		return translate(res.Error, "update paper")
	}
	if res.RowsAffected == 0 {
		return storage.ErrConflict
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

func (s *Store) ListPapers(ctx context.Context, f storage.PaperFilter) ([]models.Paper, error) {
	limit, offset := storage.Normalize(f.Limit, f.Offset)
	q := s.db.WithContext(ctx).Model(&paperRow{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.AuthorID != "" {
		q = q.Where("(main_author_id = ? OR corresponding_author_id = ? OR submitted_by_id = ? OR JSON_CONTAINS(co_author_ids, JSON_QUOTE(?)))",
			f.AuthorID, f.AuthorID, f.AuthorID, f.AuthorID)
	}
	if f.ReviewerID != "" {
		q = q.Where("JSON_CONTAINS(peer_review, JSON_QUOTE(?), '$.assignedReviewers')", f.ReviewerID)
	}
	if f.HubID != "" {
		q = q.Where("hub_id = ?", f.HubID)
	}

	var rows []paperRow
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, translate(err, "list papers")
	}
	out := make([]models.Paper, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toModel())
	}
	return out, nil
}

func (s *Store) FindAssignment(ctx context.Context, paperID, reviewerID string) (*models.ReviewAssignment, error) {
	var row assignmentRow
	if err := s.db.WithContext(ctx).Where("paper_id = ? AND reviewer_id = ?", paperID, reviewerID).First(&row).Error; err != nil {
		return nil, translate(err, "find assignment")
	}
	a := row.toModel()
	return &a, nil
}

func (s *Store) UpsertAssignment(ctx context.Context, a *models.ReviewAssignment) error {
	row := newAssignmentRow(a)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "paper_id"}, {Name: "reviewer_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	return translate(err, "upsert assignment")
}

func (s *Store) listAssignments(ctx context.Context, query string, args ...interface{}) ([]models.ReviewAssignment, error) {
	var rows []assignmentRow
	if err := s.db.WithContext(ctx).Where(query, args...).Order("assigned_at ASC").Find(&rows).Error; err != nil {
		return nil, translate(err, "list assignments")
	}
	out := make([]models.ReviewAssignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) ListAssignmentsByPaper(ctx context.Context, paperID string) ([]models.ReviewAssignment, error) {
	return s.listAssignments(ctx, "paper_id = ?", paperID)
}

func (s *Store) ListAssignmentsByReviewer(ctx context.Context, reviewerID string) ([]models.ReviewAssignment, error) {
	return s.listAssignments(ctx, "reviewer_id = ?", reviewerID)
}

func (s *Store) ListAssignmentsByStatus(ctx context.Context, statuses ...models.AssignmentStatus) ([]models.ReviewAssignment, error) {
	if len(statuses) == 0 {
		return []models.ReviewAssignment{}, nil
	}
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	return s.listAssignments(ctx, "status IN ?", values)
}

func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	row := newReviewRow(r)
	return translate(s.db.WithContext(ctx).Create(&row).Error, "create review")
}

func (s *Store) FindReview(ctx context.Context, paperID, reviewerID string, round int) (*models.Review, error) {
	var row reviewRow
	err := s.db.WithContext(ctx).
		Where("paper_id = ? AND reviewer_id = ? AND review_round = ?", paperID, reviewerID, round).
		First(&row).Error
	if err != nil {
		return nil, translate(err, "find review")
	}
	r := row.toModel()
	return &r, nil
}

func (s *Store) FindReviews(ctx context.Context, f storage.ReviewFilter) ([]models.Review, error) {
	q := s.db.WithContext(ctx).Model(&reviewRow{})
	if f.PaperID != "" {
		q = q.Where("paper_id = ?", f.PaperID)
	}
	if f.ReviewerID != "" {
		q = q.Where("reviewer_id = ?", f.ReviewerID)
	}
	if f.Round != 0 {
		q = q.Where("review_round = ?", f.Round)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}

	var rows []reviewRow
	if err := q.Order("submitted_at ASC").Find(&rows).Error; err != nil {
		return nil, translate(err, "find reviews")
	}
	out := make([]models.Review, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
