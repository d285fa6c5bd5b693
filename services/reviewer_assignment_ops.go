package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"peer-review-api/models"
	"peer-review-api/storage"
)

type InviteReviewerInput struct {
	ReviewerID         string `json:"reviewerId" validate:"required"`
	CustomDeadlineDays *int   `json:"customDeadlineDays" validate:"omitempty,min=1,max=90"`
}

// InviteReviewer creates (or revives) a pending assignment. Invitations are
// not limited by slot capacity.
func (s *ReviewWorkflowService) InviteReviewer(ctx context.Context, actor Actor, paperID string, in InviteReviewerInput) (*models.ReviewAssignment, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, actor, p); err != nil {
		return nil, err
	}
	if containsString(p.AuthorIDs(), in.ReviewerID) {
		return nil, fmt.Errorf("%w: an author cannot review their own paper", ErrValidation)
	}
	if _, err := s.store.FindUser(ctx, in.ReviewerID); err != nil {
		return nil, storeErr(err, "reviewer")
	}

	_, a, err := s.invite(ctx, paperID, in.ReviewerID, in.CustomDeadlineDays)
	return a, err
}

func (s *ReviewWorkflowService) invite(ctx context.Context, paperID, reviewerID string, days *int) (*models.Paper, *models.ReviewAssignment, error) {
	now := s.now()

	existing, err := s.store.FindAssignment(ctx, paperID, reviewerID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, storeErr(err, "assignment")
	}
	if existing != nil && (existing.Active() || existing.Status == models.AssignmentCompleted) {
		p, err := s.loadPaper(ctx, paperID)
		if err != nil {
			return nil, nil, err
		}
		if existing.Status == models.AssignmentCompleted && p.PeerReview.Response(reviewerID, p.ReviewRound) == nil {
			return nil, nil, fmt.Errorf("%w: reviewer already reviewed this paper before it was withdrawn", ErrConflict)
		}
		return p, existing, nil
	}

	p, err := s.mutatePaper(ctx, paperID, func(p *models.Paper) error {
		if p.Status != models.StatusUnderNegotiation && p.Status != models.StatusInReview {
			return invalidTransition("reviewers cannot be invited while paper is %q", p.Status)
		}
		if prior, err := s.store.FindReview(ctx, p.ID, reviewerID, p.ReviewRound); err == nil && !p.PeerReview.Counts(prior.ID) {
			return fmt.Errorf("%w: reviewer already reviewed round %d of this paper before it was withdrawn", ErrConflict, p.ReviewRound)
		}
		if r := p.PeerReview.Response(reviewerID, p.ReviewRound); r != nil {
			r.Status = models.ResponsePending
			r.AssignedAt = now
			r.ResponseDate = nil
			return nil
		}
		p.PeerReview.Responses = append(p.PeerReview.Responses, models.ReviewerResponse{
			ReviewerID: reviewerID,
			Status:     models.ResponsePending,
			Round:      p.ReviewRound,
			AssignedAt: now,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	a := existing
	if a == nil {
		a = &models.ReviewAssignment{
			ID:         uuid.NewString(),
			PaperID:    paperID,
			ReviewerID: reviewerID,
			CreatedAt:  now,
		}
	}
	a.Status = models.AssignmentPending
	a.Round = p.ReviewRound
	a.AssignedAt = now
	a.AcceptedAt = nil
	a.CompletedAt = nil
	a.Deadline = nil
	a.DeclineReason = ""
	a.RemindersSent = 0
	a.LastReminderAt = nil
	a.CustomDeadlineDays = days
	a.UpdatedAt = now
	if err := s.store.UpsertAssignment(ctx, a); err != nil {
		return nil, nil, storeErr(err, "assignment")
	}

	s.notify(ctx, NotificationEvent{
		Type:       models.NotificationReviewInvitation,
		Recipients: []string{reviewerID},
		PaperID:    p.ID,
		HubID:      models.ResolveID(p.Hub),
		Title:      "Invitation to review",
		Content:    fmt.Sprintf("You have been invited to review %q.", p.Title),
		Priority:   models.PriorityHigh,
	})
	return p, a, nil
}

// securedCount counts current-round reviewers who accepted or already reviewed.
func securedCount(p *models.Paper) int {
	n := 0
	for _, r := range p.PeerReview.Responses {
		if r.Round == p.ReviewRound && (r.Status == models.ResponseAccepted || r.Status == models.ResponseCompleted) {
			n++
		}
	}
	return n
}

type AcceptReviewInput struct {
	CustomDeadlineDays *int `json:"customDeadlineDays" validate:"omitempty,min=1,max=90"`
}

// AcceptReview occupies a slot for the calling reviewer and starts their
// deadline clock. The third acceptance in round 1 opens the review.
func (s *ReviewWorkflowService) AcceptReview(ctx context.Context, actor Actor, paperID string, in AcceptReviewInput) (*models.Paper, *models.ReviewAssignment, error) {
	if err := validateInput(in); err != nil {
		return nil, nil, err
	}
	a, err := s.store.FindAssignment(ctx, paperID, actor.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, forbidden("you have not been invited to review this paper")
		}
		return nil, nil, storeErr(err, "assignment")
	}
	if a.Status != models.AssignmentPending {
		return nil, nil, invalidTransition("invitation is already %s", a.Status)
	}

	now := s.now()
	var secured *Transition
	p, err := s.mutatePaper(ctx, paperID, func(p *models.Paper) error {
		secured = nil
		openForReviewers := (p.Status == models.StatusUnderNegotiation && p.ReviewRound == 1) || p.Status == models.StatusInReview
		if !openForReviewers {
			return invalidTransition("paper is %q and no longer takes reviewers", p.Status)
		}
		if err := OccupySlot(p, actor.UserID, now); err != nil {
			return err
		}

		at := now
		if r := p.PeerReview.Response(actor.UserID, p.ReviewRound); r != nil {
			r.Status = models.ResponseAccepted
			r.ResponseDate = &at
		} else {
			p.PeerReview.Responses = append(p.PeerReview.Responses, models.ReviewerResponse{
				ReviewerID:   actor.UserID,
				Status:       models.ResponseAccepted,
				Round:        p.ReviewRound,
				AssignedAt:   a.AssignedAt,
				ResponseDate: &at,
			})
		}
		if !p.PeerReview.IsAssigned(actor.UserID) {
			p.PeerReview.AssignedReviewers = append(p.PeerReview.AssignedReviewers, actor.UserID)
		}
		if p.PeerReview.ReviewStatus == "" || p.PeerReview.ReviewStatus == "not_started" {
			p.PeerReview.ReviewStatus = "in_progress"
		}

		if p.Status == models.StatusUnderNegotiation && securedCount(p) >= models.MaxReviewSlots {
			t, err := ApplyTransition(p, EventReviewersSecured, now)
			if err != nil {
				return err
			}
			secured = &t
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if err := AcceptAssignment(a, now, in.CustomDeadlineDays, s.reviewDays); err != nil {
		return nil, nil, err
	}
	a.Round = p.ReviewRound
	if err := s.store.UpsertAssignment(ctx, a); err != nil {
		return nil, nil, storeErr(err, "assignment")
	}

	hubID := models.ResolveID(p.Hub)
	s.notify(ctx, NotificationEvent{
		Type:       models.NotificationReviewerResponded,
		Recipients: s.audience(ctx, p, []Audience{AudienceAuthors, AudienceHubOwner}, hubID),
		PaperID:    p.ID,
		HubID:      hubID,
		Title:      "A reviewer accepted",
		Content:    fmt.Sprintf("A reviewer accepted to review %q (%d of %d slots filled).", p.Title, models.MaxReviewSlots-p.AvailableSlots, models.MaxReviewSlots),
		Metadata:   map[string]string{"response": string(models.ResponseAccepted)},
	})
	if secured != nil {
		s.announce(ctx, p, *secured, hubID, actor.UserID)
	}
	return p, a, nil
}

type DeclineReviewInput struct {
	Reason string `json:"reason" validate:"max=2000"`
}

// DeclineReview records the reviewer's refusal. The declined slot stays open
// for someone else.
func (s *ReviewWorkflowService) DeclineReview(ctx context.Context, actor Actor, paperID string, in DeclineReviewInput) (*models.Paper, *models.ReviewAssignment, error) {
	if err := validateInput(in); err != nil {
		return nil, nil, err
	}
	a, err := s.store.FindAssignment(ctx, paperID, actor.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, forbidden("you have not been invited to review this paper")
		}
		return nil, nil, storeErr(err, "assignment")
	}
	if a.Status != models.AssignmentPending && a.Status != models.AssignmentAccepted {
		return nil, nil, invalidTransition("invitation is already %s", a.Status)
	}

	now := s.now()
	p, err := s.mutatePaper(ctx, paperID, func(p *models.Paper) error {
		if p.Status.IsTerminal() {
			return invalidTransition("paper is %q", p.Status)
		}
		if r := p.PeerReview.Response(actor.UserID, p.ReviewRound); r != nil && r.Status == models.ResponseCompleted {
			return invalidTransition("review already submitted for round %d", p.ReviewRound)
		}
		DeclineSlot(p, actor.UserID, now)

		at := now
		if r := p.PeerReview.Response(actor.UserID, p.ReviewRound); r != nil {
			r.Status = models.ResponseDeclined
			r.ResponseDate = &at
		} else {
			p.PeerReview.Responses = append(p.PeerReview.Responses, models.ReviewerResponse{
				ReviewerID:   actor.UserID,
				Status:       models.ResponseDeclined,
				Round:        p.ReviewRound,
				AssignedAt:   a.AssignedAt,
				ResponseDate: &at,
			})
		}
		p.PeerReview.AssignedReviewers = removeString(p.PeerReview.AssignedReviewers, actor.UserID)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	a.Status = models.AssignmentDeclined
	a.DeclineReason = in.Reason
	a.UpdatedAt = now
	if err := s.store.UpsertAssignment(ctx, a); err != nil {
		return nil, nil, storeErr(err, "assignment")
	}

	hubID := models.ResolveID(p.Hub)
	s.notify(ctx, NotificationEvent{
		Type:       models.NotificationReviewerResponded,
		Recipients: s.audience(ctx, p, []Audience{AudienceAuthors, AudienceHubOwner}, hubID),
		PaperID:    p.ID,
		HubID:      hubID,
		Title:      "A reviewer declined",
		Content:    fmt.Sprintf("A reviewer declined to review %q.", p.Title),
		Metadata:   map[string]string{"response": string(models.ResponseDeclined)},
	})
	return p, a, nil
}

// RemoveReviewer releases the reviewer's slot and retires their assignment.
// It does not re-run the round completion check.
func (s *ReviewWorkflowService) RemoveReviewer(ctx context.Context, actor Actor, paperID, reviewerID string) (*models.Paper, error) {
	now := s.now()
	p, err := s.mutatePaper(ctx, paperID, func(p *models.Paper) error {
		if err := s.requireManager(ctx, actor, p); err != nil {
			return err
		}
		if p.Status.IsTerminal() {
			return invalidTransition("paper is %q", p.Status)
		}
		involved := p.PeerReview.IsAssigned(reviewerID)
		for _, r := range p.PeerReview.Responses {
			if r.ReviewerID == reviewerID {
				involved = true
			}
		}
		if !FreeSlot(p, reviewerID) && !involved {
			return fmt.Errorf("reviewer %s on paper %s: %w", reviewerID, p.ID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a, err := s.store.FindAssignment(ctx, paperID, reviewerID)
	switch {
	case err == nil:
		a.Status = models.AssignmentRemoved
		a.UpdatedAt = now
		if err := s.store.UpsertAssignment(ctx, a); err != nil {
			return nil, storeErr(err, "assignment")
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, storeErr(err, "assignment")
	}

	s.log.WithFields(logrus.Fields{"paper_id": paperID, "reviewer_id": reviewerID, "by": actor.UserID}).Info("reviewer removed")
	s.notify(ctx, NotificationEvent{
		Type:       models.NotificationReviewerRemoved,
		Recipients: []string{reviewerID},
		PaperID:    p.ID,
		Title:      "Review assignment withdrawn",
		Content:    fmt.Sprintf("You are no longer assigned to review %q.", p.Title),
	})
	return p, nil
}
