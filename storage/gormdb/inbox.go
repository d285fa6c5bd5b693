package gormdb

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"peer-review-api/models"
	"peer-review-api/storage"
)

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	row := notificationRow{
		ID:             n.ID,
		UserID:         n.User,
		Type:           n.Type,
		Title:          n.Title,
		Content:        n.Content,
		RelatedPaperID: n.RelatedPaperID,
		RelatedHubID:   n.RelatedHubID,
		IsRead:         n.IsRead,
		Priority:       n.Priority,
		CreatedAt:      n.CreatedAt,
		ReadAt:         n.ReadAt,
	}
	return translate(s.db.WithContext(ctx).Create(&row).Error, "create notification")
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	limit, offset = storage.Normalize(limit, offset)
	q := s.db.WithContext(ctx).Model(&notificationRow{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var rows []notificationRow
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, translate(err, "list notifications")
	}
	out := make([]models.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, translate(err, "count notifications")
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return translate(res.Error, "mark notification read")
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&notificationRow{}).Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
			return translate(err, "mark notification read")
		}
		if count == 0 {
			return storage.ErrNotFound
		}
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, translate(res.Error, "mark all notifications read")
}

func (s *Store) CreateHub(ctx context.Context, h *models.Hub) error {
	row := hubRow{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
		OwnerID:     models.ResolveID(h.Owner),
		Reviewers:   datatypes.NewJSONType(nonNilStrings(h.Reviewers)),
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}
	return translate(s.db.WithContext(ctx).Create(&row).Error, "create hub")
}

func (s *Store) FindHub(ctx context.Context, id string) (*models.Hub, error) {
	var row hubRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err, "find hub")
	}
	return row.toModel(), nil
}

func (s *Store) UpdateHub(ctx context.Context, h *models.Hub) error {
	res := s.db.WithContext(ctx).Model(&hubRow{}).Where("id = ?", h.ID).Updates(map[string]interface{}{
		"name":        h.Name,
		"description": h.Description,
		"owner_id":    models.ResolveID(h.Owner),
		"reviewers":   datatypes.NewJSONType(nonNilStrings(h.Reviewers)),
		"updated_at":  time.Now(),
	})
	if res.Error != nil {
		return translate(res.Error, "update hub")
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	row := userRow{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	return translate(s.db.WithContext(ctx).Create(&row).Error, "create user")
}

func (s *Store) FindUser(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err, "find user")
	}
	u := row.toModel()
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		return nil, translate(err, "find user by email")
	}
	u := row.toModel()
	return &u, nil
}

func (s *Store) FindUsers(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var rows []userRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, translate(err, "find users")
	}
	out := make([]models.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
