package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"peer-review-api/models"
	"peer-review-api/storage"
)

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.col(notificationsCollection).InsertOne(ctx, n)
	return translate(err, "insert notification")
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	limit, offset = storage.Normalize(limit, offset)
	filter := bson.M{"user": userID}
	if unreadOnly {
		filter["isRead"] = false
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := s.col(notificationsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err, "list notifications")
	}
	out := make([]models.Notification, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "decode notifications")
	}
	return out, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	n, err := s.col(notificationsCollection).CountDocuments(ctx, bson.M{"user": userID, "isRead": false})
	return n, translate(err, "count notifications")
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error {
	res, err := s.col(notificationsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "user": userID},
		bson.M{"$set": bson.M{"isRead": true, "readAt": at}},
	)
	if err != nil {
		return translate(err, "mark notification read")
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := s.col(notificationsCollection).UpdateMany(ctx,
		bson.M{"user": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "readAt": at}},
	)
	if err != nil {
		return 0, translate(err, "mark all notifications read")
	}
	return res.ModifiedCount, nil
}

func (s *Store) CreateHub(ctx context.Context, h *models.Hub) error {
	_, err := s.col(hubsCollection).InsertOne(ctx, h)
	return translate(err, "insert hub")
}

func (s *Store) FindHub(ctx context.Context, id string) (*models.Hub, error) {
	var h models.Hub
	if err := s.col(hubsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&h); err != nil {
		return nil, translate(err, "find hub")
	}
	return &h, nil
}

func (s *Store) UpdateHub(ctx context.Context, h *models.Hub) error {
	h.UpdatedAt = time.Now()
	res, err := s.col(hubsCollection).ReplaceOne(ctx, bson.M{"_id": h.ID}, h)
	if err != nil {
		return translate(err, "replace hub")
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.col(usersCollection).InsertOne(ctx, u)
	return translate(err, "insert user")
}

func (s *Store) FindUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.col(usersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err, "find user")
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.col(usersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, translate(err, "find user by email")
	}
	return &u, nil
}

func (s *Store) FindUsers(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	cursor, err := s.col(usersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, translate(err, "find users")
	}
	out := make([]models.User, 0, len(ids))
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "decode users")
	}
	return out, nil
}
