// Package mongodb is the MongoDB backend. Documents are stored in the shape
// of the models' bson tags.
package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"peer-review-api/models"
	"peer-review-api/storage"
)

const (
	papersCollection        = "papers"
	assignmentsCollection   = "review_assignments"
	reviewsCollection       = "reviews"
	notificationsCollection = "notifications"
	hubsCollection          = "hubs"
	usersCollection         = "users"
	locksCollection         = "job_locks"
)

type Store struct {
	db *mongo.Database
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Locker = (*Store)(nil)
)

func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// EnsureIndexes creates the unique indexes the workflow relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		reviewsCollection: {{
			Keys:    bson.D{{Key: "paperId", Value: 1}, {Key: "reviewerId", Value: 1}, {Key: "reviewRound", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		assignmentsCollection: {
			{Keys: bson.D{{Key: "paperId", Value: 1}, {Key: "reviewerId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "deadline", Value: 1}}},
		},
		usersCollection: {{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		notificationsCollection: {{
			Keys: bson.D{{Key: "user", Value: 1}, {Key: "isRead", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		locksCollection: {{
			Keys:    bson.D{{Key: "acquiredAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(3600),
		}},
	}
	for name, indexes := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return errors.Wrapf(err, "create indexes on %s", name)
		}
	}
	return nil
}

func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return storage.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return storage.ErrDuplicate
	default:
		return errors.Wrap(err, op)
	}
}

// AcquireLock inserts a lock document; the TTL index drops locks left behind
// by a crashed process.
func (s *Store) AcquireLock(ctx context.Context, name string) (func() error, error) {
	_, err := s.col(locksCollection).InsertOne(ctx, bson.M{"_id": name, "acquiredAt": time.Now()})
	if mongo.IsDuplicateKeyError(err) {
		return nil, storage.ErrLocked
	}
	if err != nil {
		return nil, errors.Wrap(err, "acquire lock")
	}
	return func() error {
		_, err := s.col(locksCollection).DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": name})
		return errors.Wrap(err, "release lock")
	}, nil
}

func (s *Store) CreatePaper(ctx context.Context, p *models.Paper) error {
	if p.Version == 0 {
		p.Version = 1
	}
	_, err := s.col(papersCollection).InsertOne(ctx, p)
	return translate(err, "insert paper")
}

func (s *Store) FindPaper(ctx context.Context, id string) (*models.Paper, error) {
	var p models.Paper
	if err := s.col(papersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err, "find paper")
	}
	return &p, nil
}

func (s *Store) UpdatePaper(ctx context.Context, p *models.Paper) error {
	next := storage.ClonePaper(p)
	next.Version = p.Version + 1
	next.UpdatedAt = time.Now()

	res, err := s.col(papersCollection).ReplaceOne(ctx, bson.M{"_id": p.ID, "version": p.Version}, next)
	if err != nil {
		return translate(err, "replace paper")
	}
	if res.MatchedCount == 0 {
		return storage.ErrConflict
	}
	p.Version = next.Version
	p.UpdatedAt = next.UpdatedAt
	return nil
}

func paperFilterDoc(f storage.PaperFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.AuthorID != "" {
		filter["$or"] = bson.A{
			bson.M{"mainAuthor": f.AuthorID},
			bson.M{"correspondingAuthor": f.AuthorID},
			bson.M{"submittedBy": f.AuthorID},
			bson.M{"coAuthors": f.AuthorID},
		}
	}
	if f.ReviewerID != "" {
		filter["peer_review.assignedReviewers"] = f.ReviewerID
	}
	if f.HubID != "" {
		filter["hub"] = f.HubID
	}
	return filter
}

func (s *Store) ListPapers(ctx context.Context, f storage.PaperFilter) ([]models.Paper, error) {
	limit, offset := storage.Normalize(f.Limit, f.Offset)
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := s.col(papersCollection).Find(ctx, paperFilterDoc(f), opts)
	if err != nil {
		return nil, translate(err, "list papers")
	}
	out := make([]models.Paper, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "decode papers")
	}
	return out, nil
}

func (s *Store) FindAssignment(ctx context.Context, paperID, reviewerID string) (*models.ReviewAssignment, error) {
	var a models.ReviewAssignment
	err := s.col(assignmentsCollection).FindOne(ctx, bson.M{"paperId": paperID, "reviewerId": reviewerID}).Decode(&a)
	if err != nil {
		return nil, translate(err, "find assignment")
	}
	return &a, nil
}

func (s *Store) UpsertAssignment(ctx context.Context, a *models.ReviewAssignment) error {
	_, err := s.col(assignmentsCollection).ReplaceOne(ctx,
		bson.M{"paperId": a.PaperID, "reviewerId": a.ReviewerID},
		a,
		options.Replace().SetUpsert(true),
	)
	return translate(err, "upsert assignment")
}

func (s *Store) findAssignments(ctx context.Context, filter bson.M) ([]models.ReviewAssignment, error) {
	cursor, err := s.col(assignmentsCollection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "assignedAt", Value: 1}}))
	if err != nil {
		return nil, translate(err, "list assignments")
	}
	out := make([]models.ReviewAssignment, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "decode assignments")
	}
	return out, nil
}

func (s *Store) ListAssignmentsByPaper(ctx context.Context, paperID string) ([]models.ReviewAssignment, error) {
	return s.findAssignments(ctx, bson.M{"paperId": paperID})
}

func (s *Store) ListAssignmentsByReviewer(ctx context.Context, reviewerID string) ([]models.ReviewAssignment, error) {
	return s.findAssignments(ctx, bson.M{"reviewerId": reviewerID})
}

func (s *Store) ListAssignmentsByStatus(ctx context.Context, statuses ...models.AssignmentStatus) ([]models.ReviewAssignment, error) {
	values := make(bson.A, 0, len(statuses))
	for _, st := range statuses {
		values = append(values, string(st))
	}
	return s.findAssignments(ctx, bson.M{"status": bson.M{"$in": values}})
}

func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	_, err := s.col(reviewsCollection).InsertOne(ctx, r)
	return translate(err, "insert review")
}

func (s *Store) FindReview(ctx context.Context, paperID, reviewerID string, round int) (*models.Review, error) {
	var r models.Review
	err := s.col(reviewsCollection).
		FindOne(ctx, bson.M{"paperId": paperID, "reviewerId": reviewerID, "reviewRound": round}).
		Decode(&r)
	if err != nil {
		return nil, translate(err, "find review")
	}
	return &r, nil
}

func (s *Store) FindReviews(ctx context.Context, f storage.ReviewFilter) ([]models.Review, error) {
	filter := bson.M{}
	if f.PaperID != "" {
		filter["paperId"] = f.PaperID
	}
	if f.ReviewerID != "" {
		filter["reviewerId"] = f.ReviewerID
	}
	if f.Round != 0 {
		filter["reviewRound"] = f.Round
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	cursor, err := s.col(reviewsCollection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "submittedAt", Value: 1}}))
	if err != nil {
		return nil, translate(err, "find reviews")
	}
	out := make([]models.Review, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "decode reviews")
	}
	return out, nil
}
