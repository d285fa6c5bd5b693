package services

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"peer-review-api/models"
	"peer-review-api/utils"
)

// fire runs one workflow event through the table after authorize succeeds.
// extra runs on the paper after the transition, inside the same write.
func (s *ReviewWorkflowService) fire(ctx context.Context, actor Actor, paperID string, event WorkflowEvent,
	authorize func(p *models.Paper) error, extra func(p *models.Paper, now time.Time) error) (*models.Paper, Transition, error) {

	now := s.now()
	var fired Transition
	var hubID string
	var reviewers []string
	p, err := s.mutatePaper(ctx, paperID, func(p *models.Paper) error {
		if err := authorize(p); err != nil {
			return err
		}
		hubID = models.ResolveID(p.Hub)
		reviewers = append(reviewers[:0], p.PeerReview.AssignedReviewers...)
		t, err := ApplyTransition(p, event, now)
		if err != nil {
			return err
		}
		fired = t
		if extra != nil {
			return extra(p, now)
		}
		return nil
	})
	if err != nil {
		return nil, Transition{}, err
	}

	s.log.WithFields(logrus.Fields{"paper_id": p.ID, "event": event, "status": p.Status, "by": actor.UserID}).Info("paper transition")
	if reviewClosed(p) {
		s.retireAssignments(ctx, p)
	}

	recipients := s.audience(ctx, p, fired.Notify, hubID)
	for _, a := range fired.Notify {
		if a == AudienceReviewers {
			recipients = uniqueNonEmpty(append(recipients, reviewers...))
		}
	}
	s.announceTo(ctx, p, fired, hubID, without(recipients, actor.UserID))
	return p, fired, nil
}

// retireAssignments expires the assignments still open on a paper that left
// review, so reviewers are neither reminded nor marked overdue.
func (s *ReviewWorkflowService) retireAssignments(ctx context.Context, p *models.Paper) {
	assignments, err := s.store.ListAssignmentsByPaper(ctx, p.ID)
	if err != nil {
		s.log.WithError(err).WithField("paper_id", p.ID).Warn("assignments not retired")
		return
	}
	now := s.now()
	for i := range assignments {
		a := &assignments[i]
		if !a.Active() {
			continue
		}
		a.Status = models.AssignmentExpired
		a.UpdatedAt = now
		if err := s.store.UpsertAssignment(ctx, a); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"paper_id": p.ID, "reviewer_id": a.ReviewerID}).Warn("assignment not retired")
		}
	}
}

type SubmitCorrectionsInput struct {
	FileURL string `json:"fileUrl" validate:"omitempty,url"`
	Notes   string `json:"notes" validate:"max=10000"`
}

// SubmitCorrections opens round 2 for the reviewers of round 1 and restarts
// their deadline clocks.
func (s *ReviewWorkflowService) SubmitCorrections(ctx context.Context, actor Actor, paperID string, in SubmitCorrectionsInput) (*models.Paper, error) {
	in.Notes = utils.SanitizeInput(in.Notes)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	p, _, err := s.fire(ctx, actor, paperID, EventSubmitCorrections,
		func(p *models.Paper) error { return s.requireAuthor(actor, p) },
		func(p *models.Paper, now time.Time) error {
			if in.FileURL != "" {
				p.FileURL = in.FileURL
			}
			at := now
			for _, reviewerID := range p.PeerReview.AssignedReviewers {
				if r := p.PeerReview.Response(reviewerID, p.ReviewRound); r != nil {
					continue
				}
				p.PeerReview.Responses = append(p.PeerReview.Responses, models.ReviewerResponse{
					ReviewerID:   reviewerID,
					Status:       models.ResponseAccepted,
					Round:        p.ReviewRound,
					AssignedAt:   now,
					ResponseDate: &at,
				})
			}
			p.PeerReview.ReviewCount = 0
			p.PeerReview.AverageScore = 0
			p.PeerReview.ReviewStatus = "in_progress"
			p.UpdatedAt = now
			return nil
		})
	if err != nil {
		return nil, err
	}

	for _, reviewerID := range p.PeerReview.AssignedReviewers {
		if err := s.reactivateAssignment(ctx, p, reviewerID); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"paper_id": p.ID, "reviewer_id": reviewerID}).Warn("round 2 assignment not reactivated")
		}
	}
	return p, nil
}

func (s *ReviewWorkflowService) reactivateAssignment(ctx context.Context, p *models.Paper, reviewerID string) error {
	a, err := s.store.FindAssignment(ctx, p.ID, reviewerID)
	if err != nil {
		return storeErr(err, "assignment")
	}
	now := s.now()
	days := s.reviewDays
	if a.CustomDeadlineDays != nil {
		days = *a.CustomDeadlineDays
	}
	at := now
	deadline := now.Add(time.Duration(days) * day)
	a.Status = models.AssignmentAccepted
	a.Round = p.ReviewRound
	a.AcceptedAt = &at
	a.CompletedAt = nil
	a.Deadline = &deadline
	a.RemindersSent = 0
	a.LastReminderAt = nil
	a.UpdatedAt = now
	return storeErr(s.store.UpsertAssignment(ctx, a), "assignment")
}

// RequestPublication asks the hub owner to publish a paper that finished
// round 2. Papers without a hub are published directly.
func (s *ReviewWorkflowService) RequestPublication(ctx context.Context, actor Actor, paperID string) (*models.Paper, error) {
	p, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	event := EventSelfPublish
	if p.HasHub() {
		event = EventRequestPublication
	}

	p, t, err := s.fire(ctx, actor, paperID, event,
		func(p *models.Paper) error {
			if (event == EventRequestPublication) != p.HasHub() {
				return fmt.Errorf("paper %s hub changed: %w", p.ID, ErrConflict)
			}
			return s.requireAuthor(actor, p)
		}, nil)
	if err != nil {
		return nil, err
	}

	if t.Event == EventRequestPublication {
		hubID := models.ResolveID(p.Hub)
		s.notify(ctx, NotificationEvent{
			Type:       models.NotificationPublicationRequest,
			Recipients: s.audience(ctx, p, []Audience{AudienceHubOwner}, hubID),
			PaperID:    p.ID,
			HubID:      hubID,
			Title:      "Publication requested",
			Content:    fmt.Sprintf("The authors of %q ask for publication.", p.Title),
			Priority:   models.PriorityHigh,
		})
	}
	return p, nil
}

func (s *ReviewWorkflowService) ApprovePublication(ctx context.Context, actor Actor, paperID string) (*models.Paper, error) {
	p, _, err := s.fire(ctx, actor, paperID, EventApprovePublication,
		func(p *models.Paper) error { return s.requireManager(ctx, actor, p) }, nil)
	return p, err
}

type RejectPublicationInput struct {
	Reason string `json:"reason" validate:"max=5000"`
}

func (s *ReviewWorkflowService) RejectPublication(ctx context.Context, actor Actor, paperID string, in RejectPublicationInput) (*models.Paper, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p, _, err := s.fire(ctx, actor, paperID, EventRejectPublication,
		func(p *models.Paper) error { return s.requireManager(ctx, actor, p) }, nil)
	if err != nil {
		return nil, err
	}
	if in.Reason != "" {
		s.notify(ctx, NotificationEvent{
			Type:       models.NotificationStatusChanged,
			Recipients: p.AuthorIDs(),
			PaperID:    p.ID,
			Title:      "Publication request rejected",
			Content:    utils.SanitizeInput(in.Reason),
			Priority:   models.PriorityHigh,
		})
	}
	return p, nil
}

type FinalDecisionInput struct {
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
	Comment  string `json:"comment" validate:"max=5000"`
}

// FinalDecision closes the paper as accepted or rejected from any open state.
func (s *ReviewWorkflowService) FinalDecision(ctx context.Context, actor Actor, paperID string, in FinalDecisionInput) (*models.Paper, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	event := EventFinalReject
	if in.Decision == "accept" {
		event = EventFinalAccept
	}
	p, _, err := s.fire(ctx, actor, paperID, event,
		func(p *models.Paper) error { return s.requireManager(ctx, actor, p) }, nil)
	return p, err
}

// Withdraw returns a round 2 paper to draft and detaches it from its hub.
// A later submission starts again from an empty first round.
func (s *ReviewWorkflowService) Withdraw(ctx context.Context, actor Actor, paperID string) (*models.Paper, error) {
	p, _, err := s.fire(ctx, actor, paperID, EventWithdraw,
		func(p *models.Paper) error { return s.requireAuthor(actor, p) },
		func(p *models.Paper, now time.Time) error {
			restartReview(p)
			p.UpdatedAt = now
			return nil
		})
	return p, err
}

// restartReview resets p to a fresh round 1. Reviews already written are
// kept for the record but stop counting.
func restartReview(p *models.Paper) {
	p.ReviewRound = 1
	ResetSlots(p)
	pr := &p.PeerReview
	pr.WithdrawnReviews = append(pr.WithdrawnReviews, pr.Reviews...)
	pr.Reviews = []string{}
	pr.AssignedReviewers = []string{}
	pr.Responses = []models.ReviewerResponse{}
	pr.ReviewCount = 0
	pr.AverageScore = 0
	pr.ReviewStatus = "not_started"
}

var phaseKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// SetPhaseTimestamp records a phase date once; later calls keep the first
// value and report written=false.
func (s *ReviewWorkflowService) SetPhaseTimestamp(ctx context.Context, actor Actor, paperID, key string, at *time.Time) (time.Time, bool, error) {
	if !phaseKeyPattern.MatchString(key) {
		return time.Time{}, false, fmt.Errorf("%w: invalid phase key %q", ErrValidation, key)
	}
	when := s.now()
	if at != nil && !at.IsZero() {
		when = *at
	}

	written := false
	p, err := s.mutatePaper(ctx, paperID, func(p *models.Paper) error {
		if !p.IsAuthor(actor.UserID) && !s.canManage(ctx, actor, p) {
			return forbidden("only authors, editors or the hub owner may set phase dates")
		}
		written = SetPhaseTimestamp(p, key, when)
		if !written {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return time.Time{}, false, err
	}
	return p.PhaseTimestamps[key], written, nil
}
