package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"peer-review-api/models"
	"peer-review-api/storage"
	"peer-review-api/utils"
)

type HubService struct {
	store    storage.Store
	workflow *ReviewWorkflowService
	now      func() time.Time
	log      *logrus.Entry
}

func NewHubService(store storage.Store, workflow *ReviewWorkflowService) *HubService {
	return &HubService{
		store:    store,
		workflow: workflow,
		now:      time.Now,
		log:      logrus.WithField("component", "hubs"),
	}
}

type CreateHubInput struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	OwnerID     string   `json:"ownerId"`
	Reviewers   []string `json:"reviewers" validate:"max=200"`
}

// CreateHub is reserved to editors. The owner defaults to the caller.
func (s *HubService) CreateHub(ctx context.Context, actor Actor, in CreateHubInput) (*models.Hub, error) {
	if !actor.IsEditor() {
		return nil, forbidden("only editors may create hubs")
	}
	in.Name = utils.SanitizeInput(in.Name)
	in.Description = utils.SanitizeInput(in.Description)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	owner := in.OwnerID
	if owner == "" {
		owner = actor.UserID
	}
	reviewers := uniqueNonEmpty(in.Reviewers)
	people := uniqueNonEmpty(append([]string{owner}, reviewers...))
	found, err := s.store.FindUsers(ctx, people)
	if err != nil {
		return nil, storeErr(err, "users")
	}
	if len(found) != len(people) {
		return nil, fmt.Errorf("%w: unknown owner or reviewer", ErrValidation)
	}

	now := s.now()
	h := &models.Hub{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Owner:       models.RefTo[models.User](owner),
		Reviewers:   reviewers,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateHub(ctx, h); err != nil {
		return nil, storeErr(err, "hub")
	}
	return h, nil
}

func (s *HubService) GetHub(ctx context.Context, hubID string) (*models.Hub, error) {
	h, err := s.store.FindHub(ctx, hubID)
	if err != nil {
		return nil, storeErr(err, "hub")
	}
	if owner, err := s.store.FindUser(ctx, models.ResolveID(h.Owner)); err == nil {
		h.Owner = models.Resolved(owner)
	}
	return h, nil
}

type AddHubReviewerInput struct {
	ReviewerID string `json:"reviewerId" validate:"required"`
}

type AddHubReviewerResult struct {
	Hub     *models.Hub `json:"hub"`
	Invited []string    `json:"invitedPapers"`
}

// AddReviewer puts a reviewer on the hub roster and invites them to every
// hub paper still gathering reviewers.
func (s *HubService) AddReviewer(ctx context.Context, actor Actor, hubID string, in AddHubReviewerInput) (*AddHubReviewerResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	h, err := s.store.FindHub(ctx, hubID)
	if err != nil {
		return nil, storeErr(err, "hub")
	}
	if !actor.IsEditor() && !h.IsOwner(actor.UserID) {
		return nil, forbidden("only the hub owner may change its roster")
	}
	if _, err := s.store.FindUser(ctx, in.ReviewerID); err != nil {
		return nil, storeErr(err, "reviewer")
	}

	if !h.HasReviewer(in.ReviewerID) {
		h.Reviewers = append(h.Reviewers, in.ReviewerID)
		h.UpdatedAt = s.now()
		if err := s.store.UpdateHub(ctx, h); err != nil {
			return nil, storeErr(err, "hub")
		}
	}

	result := &AddHubReviewerResult{Hub: h, Invited: []string{}}
	for offset := 0; ; offset += 100 {
		papers, err := s.store.ListPapers(ctx, storage.PaperFilter{
			HubID:  hubID,
			Status: models.StatusUnderNegotiation,
			Limit:  100,
			Offset: offset,
		})
		if err != nil {
			return nil, storeErr(err, "papers")
		}
		for i := range papers {
			p := &papers[i]
			if p.ReviewRound != 1 || containsString(p.AuthorIDs(), in.ReviewerID) {
				continue
			}
			if _, _, err := s.workflow.invite(ctx, p.ID, in.ReviewerID, nil); err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{"paper_id": p.ID, "reviewer_id": in.ReviewerID}).Warn("retroactive invitation failed")
				continue
			}
			result.Invited = append(result.Invited, p.ID)
		}
		if len(papers) < 100 {
			break
		}
	}
	return result, nil
}
