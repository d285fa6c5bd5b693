package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"peer-review-api/models"
	"peer-review-api/storage"
	"peer-review-api/utils"
)

type SubmitReviewInput struct {
	Scores               models.ReviewScores   `json:"scores"`
	Strengths            string                `json:"strengths" validate:"max=20000"`
	Weaknesses           string                `json:"weaknesses" validate:"max=20000"`
	CommentsToAuthor     string                `json:"commentsToAuthor" validate:"required,max=20000"`
	ConfidentialComments string                `json:"confidentialComments" validate:"max=20000"`
	EthicalConcerns      bool                  `json:"ethicalConcerns"`
	EthicsComments       string                `json:"ethicsComments" validate:"required_if=EthicalConcerns true,max=5000"`
	Recommendation       models.Recommendation `json:"recommendation" validate:"required,oneof=accept minor_revision major_revision reject"`
}

// SubmitReview stores the caller's review for the current round and, when
// the count of submitted reviews reaches the count of assigned reviewers,
// closes the round.
func (s *ReviewWorkflowService) SubmitReview(ctx context.Context, actor Actor, paperID string, in SubmitReviewInput) (*models.Review, *models.Paper, error) {
	in.CommentsToAuthor = utils.SanitizeInput(in.CommentsToAuthor)
	in.Strengths = utils.SanitizeInput(in.Strengths)
	in.Weaknesses = utils.SanitizeInput(in.Weaknesses)
	in.ConfidentialComments = utils.SanitizeInput(in.ConfidentialComments)
	in.EthicsComments = utils.SanitizeInput(in.EthicsComments)
	if err := validateInput(in); err != nil {
		return nil, nil, err
	}

	p, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != models.StatusInReview {
		return nil, nil, invalidTransition("reviews are closed while paper is %q", p.Status)
	}
	if !p.PeerReview.IsAssigned(actor.UserID) {
		return nil, nil, forbidden("you are not an assigned reviewer of this paper")
	}

	round := p.ReviewRound
	review, err := s.store.FindReview(ctx, paperID, actor.UserID, round)
	switch {
	case err == nil:
		if !p.PeerReview.Counts(review.ID) {
			return nil, nil, ErrDuplicateSubmission
		}
		if containsString(p.PeerReview.Reviews, review.ID) {
			if err := s.finishAssignment(ctx, paperID, actor.UserID, s.now()); err != nil {
				return nil, nil, err
			}
			return nil, nil, ErrDuplicateSubmission
		}
	case errors.Is(err, storage.ErrNotFound):
		review = nil
	default:
		return nil, nil, storeErr(err, "review")
	}
	a, err := s.store.FindAssignment(ctx, paperID, actor.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, forbidden("you are not an assigned reviewer of this paper")
		}
		return nil, nil, storeErr(err, "assignment")
	}
	if a.Status != models.AssignmentAccepted && a.Status != models.AssignmentOverdue {
		return nil, nil, invalidTransition("assignment is %s", a.Status)
	}

	now := s.now()
	if review != nil {
		// stored by an attempt whose paper update never landed
		s.log.WithFields(logrus.Fields{"paper_id": paperID, "reviewer_id": actor.UserID, "review_id": review.ID}).Warn("resuming unrecorded review")
	} else {
		avg, weighted := ComputeScores(in.Scores)
		review = &models.Review{
			ID:                   uuid.NewString(),
			PaperID:              paperID,
			ReviewerID:           actor.UserID,
			ReviewRound:          round,
			Scores:               in.Scores,
			Strengths:            in.Strengths,
			Weaknesses:           in.Weaknesses,
			CommentsToAuthor:     in.CommentsToAuthor,
			ConfidentialComments: in.ConfidentialComments,
			EthicalConcerns:      in.EthicalConcerns,
			EthicsComments:       in.EthicsComments,
			Recommendation:       in.Recommendation,
			AverageScore:         avg,
			WeightedScore:        weighted,
			Status:               models.ReviewSubmitted,
			SubmittedAt:          now,
			CreatedAt:            now,
		}
		if err := s.store.CreateReview(ctx, review); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return nil, nil, ErrDuplicateSubmission
			}
			return nil, nil, storeErr(err, "review")
		}
	}

	var completed *Transition
	p, err = s.mutatePaper(ctx, paperID, func(p *models.Paper) error {
		completed = nil
		if p.ReviewRound != round {
			return invalidTransition("review round moved on to %d", p.ReviewRound)
		}

		at := now
		if r := p.PeerReview.Response(actor.UserID, round); r != nil {
			r.Status = models.ResponseCompleted
			r.CompletedAt = &at
			r.ReviewID = review.ID
		} else {
			p.PeerReview.Responses = append(p.PeerReview.Responses, models.ReviewerResponse{
				ReviewerID:  actor.UserID,
				Status:      models.ResponseCompleted,
				Round:       round,
				AssignedAt:  a.AssignedAt,
				CompletedAt: &at,
				ReviewID:    review.ID,
			})
		}
		if !containsString(p.PeerReview.Reviews, review.ID) {
			p.PeerReview.Reviews = append(p.PeerReview.Reviews, review.ID)
		}

		submitted, err := s.currentReviews(ctx, p, round)
		if err != nil {
			return err
		}
		applyReviewStats(p, submitted)

		// count equality, not reviewer identity
		if p.Status == models.StatusInReview && len(p.PeerReview.AssignedReviewers) > 0 &&
			len(submitted) == len(p.PeerReview.AssignedReviewers) {
			t, err := ApplyTransition(p, EventRoundReviewsComplete, now)
			if err != nil {
				return err
			}
			p.PeerReview.ReviewStatus = "completed"
			completed = &t
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	a.Status = models.AssignmentCompleted
	a.CompletedAt = &now
	a.UpdatedAt = now
	if err := s.store.UpsertAssignment(ctx, a); err != nil {
		return nil, nil, storeErr(err, "assignment")
	}

	hubID := models.ResolveID(p.Hub)
	s.notify(ctx, NotificationEvent{
		Type:       models.NotificationReviewSubmitted,
		Recipients: without(s.audience(ctx, p, []Audience{AudienceAuthors, AudienceHubOwner}, hubID), actor.UserID),
		PaperID:    p.ID,
		HubID:      hubID,
		Title:      "New review received",
		Content:    fmt.Sprintf("A round %d review was submitted for %q (%d of %d).", round, p.Title, p.PeerReview.ReviewCount, len(p.PeerReview.AssignedReviewers)),
		Metadata:   map[string]string{"recommendation": string(review.Recommendation)},
	})
	if completed != nil {
		s.announce(ctx, p, *completed, hubID, actor.UserID)
	}
	return review, p, nil
}

// finishAssignment completes an assignment left open by a submission whose
// review was recorded on the paper but not on the assignment.
func (s *ReviewWorkflowService) finishAssignment(ctx context.Context, paperID, reviewerID string, now time.Time) error {
	a, err := s.store.FindAssignment(ctx, paperID, reviewerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return storeErr(err, "assignment")
	}
	if a.Status != models.AssignmentAccepted && a.Status != models.AssignmentOverdue {
		return nil
	}
	a.Status = models.AssignmentCompleted
	a.CompletedAt = &now
	a.UpdatedAt = now
	return storeErr(s.store.UpsertAssignment(ctx, a), "assignment")
}

// currentReviews lists the submitted reviews of round that still count,
// leaving out those of cycles ended by a withdrawal.
func (s *ReviewWorkflowService) currentReviews(ctx context.Context, p *models.Paper, round int) ([]models.Review, error) {
	reviews, err := s.store.FindReviews(ctx, storage.ReviewFilter{PaperID: p.ID, Round: round, Status: models.ReviewSubmitted})
	if err != nil {
		return nil, storeErr(err, "reviews")
	}
	out := reviews[:0]
	for _, r := range reviews {
		if p.PeerReview.Counts(r.ID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func applyReviewStats(p *models.Paper, submitted []models.Review) {
	p.PeerReview.ReviewCount = len(submitted)
	if len(submitted) == 0 {
		p.PeerReview.AverageScore = 0
		return
	}
	var sum float64
	for _, r := range submitted {
		sum += r.AverageScore
	}
	p.PeerReview.AverageScore = round2(sum / float64(len(submitted)))
}

// CheckCompletion re-evaluates the hub path for a paper the caller can see.
func (s *ReviewWorkflowService) CheckCompletion(ctx context.Context, actor Actor, paperID string) (*models.Paper, []Transition, error) {
	p, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, nil, err
	}
	if !s.canView(ctx, actor, p) {
		return nil, nil, forbidden("you are not involved with this paper")
	}
	return s.CheckAndUpdatePaperStatusIfAllReviewsComplete(ctx, paperID)
}

// CheckAndUpdatePaperStatusIfAllReviewsComplete advances the paper while
// every live assignment has a submitted review for the current round. The
// table is re-evaluated until no further transition applies.
func (s *ReviewWorkflowService) CheckAndUpdatePaperStatusIfAllReviewsComplete(ctx context.Context, paperID string) (*models.Paper, []Transition, error) {
	now := s.now()
	var applied []Transition
	var hubID string

	p, err := s.mutatePaper(ctx, paperID, func(p *models.Paper) error {
		applied = applied[:0]
		hubID = models.ResolveID(p.Hub)

		assignments, err := s.store.ListAssignmentsByPaper(ctx, p.ID)
		if err != nil {
			return storeErr(err, "assignments")
		}
		submitted, err := s.currentReviews(ctx, p, p.ReviewRound)
		if err != nil {
			return err
		}
		if !allReviewsIn(p, assignments, submitted) {
			return errNoChange
		}

		for {
			var event WorkflowEvent
			switch {
			case p.Status == models.StatusUnderNegotiation && p.ReviewRound == 1:
				event = EventReviewersSecured
			case p.Status == models.StatusInReview:
				event = EventRoundReviewsComplete
			}
			if event == "" || !CanTransition(p, event) {
				break
			}
			t, err := ApplyTransition(p, event, now)
			if err != nil {
				return err
			}
			applied = append(applied, t)
		}
		if len(applied) == 0 {
			return errNoChange
		}
		applyReviewStats(p, submitted)
		p.PeerReview.ReviewStatus = "completed"
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, t := range applied {
		s.announce(ctx, p, t, hubID, "")
	}
	return p, applied, nil
}

// allReviewsIn looks only at reviewers on the current round's ledger, so
// assignments of a withdrawn cycle do not hold the paper back.
func allReviewsIn(p *models.Paper, assignments []models.ReviewAssignment, submitted []models.Review) bool {
	reviewed := make(map[string]bool, len(submitted))
	for _, r := range submitted {
		reviewed[r.ReviewerID] = true
	}

	live := 0
	for _, a := range assignments {
		if p.PeerReview.Response(a.ReviewerID, p.ReviewRound) == nil {
			continue
		}
		switch a.Status {
		case models.AssignmentDeclined, models.AssignmentRemoved, models.AssignmentExpired:
			continue
		case models.AssignmentAccepted, models.AssignmentPending, models.AssignmentCompleted, models.AssignmentOverdue:
		default:
			return false
		}
		live++
		if !reviewed[a.ReviewerID] {
			return false
		}
	}
	return live > 0
}

// ListReviews returns the reviews the caller may read. Authors see
// submitted reviews without confidential comments once the round has closed.
func (s *ReviewWorkflowService) ListReviews(ctx context.Context, actor Actor, paperID string, round int) ([]models.Review, error) {
	p, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}

	f := storage.ReviewFilter{PaperID: paperID, Round: round}
	switch {
	case s.canManage(ctx, actor, p):
	case containsString(p.AuthorIDs(), actor.UserID):
		f.Status = models.ReviewSubmitted
	case p.PeerReview.IsAssigned(actor.UserID):
		f.ReviewerID = actor.UserID
	default:
		return nil, forbidden("you are not involved with this paper")
	}

	reviews, err := s.store.FindReviews(ctx, f)
	if err != nil {
		return nil, storeErr(err, "reviews")
	}

	if f.Status == models.ReviewSubmitted {
		visible := reviews[:0]
		for _, r := range reviews {
			if roundClosed(p, r.ReviewRound) {
				visible = append(visible, r.Redacted())
			}
		}
		reviews = visible
	}
	sort.Slice(reviews, func(i, j int) bool {
		if reviews[i].ReviewRound != reviews[j].ReviewRound {
			return reviews[i].ReviewRound < reviews[j].ReviewRound
		}
		return reviews[i].CreatedAt.Before(reviews[j].CreatedAt)
	})
	return reviews, nil
}

func roundClosed(p *models.Paper, round int) bool {
	if round < p.ReviewRound {
		return true
	}
	if p.Status == models.StatusUnderNegotiation {
		return p.ReviewRound > 1
	}
	return p.Status != models.StatusInReview
}
