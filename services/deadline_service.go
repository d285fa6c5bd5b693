package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"peer-review-api/models"
	"peer-review-api/storage"
)

// DeadlineSweepLock names the cross-process lock held while sweeping.
const DeadlineSweepLock = "deadline_sweep"

// dueSoonDays is the horizon of the due-soon report section.
const dueSoonDays = 7

type SweepSummary struct {
	Scanned       int `json:"scanned"`
	MarkedOverdue int `json:"marked_overdue"`
	RemindersSent int `json:"reminders_sent"`
	Expired       int `json:"expired"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
}

// AssignmentDeadline is an assignment together with its remaining time.
type AssignmentDeadline struct {
	models.ReviewAssignment
	PaperTitle string     `json:"paperTitle,omitempty"`
	Remaining  *Remaining `json:"remaining,omitempty"`
	DueIn      string     `json:"dueIn,omitempty"`
}

type DeadlineReport struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	Overdue     []AssignmentDeadline `json:"overdue"`
	DueSoon     []AssignmentDeadline `json:"dueSoon"`
}

type DeadlineService struct {
	store    storage.Store
	notifier Notifier
	now      func() time.Time
	log      *logrus.Entry
}

func NewDeadlineService(store storage.Store, notifier Notifier) *DeadlineService {
	return &DeadlineService{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		log:      logrus.WithField("component", "deadlines"),
	}
}

func (s *DeadlineService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *DeadlineService) acquireLock(ctx context.Context) (func() error, error) {
	locker, ok := s.store.(storage.Locker)
	if !ok {
		return nil, nil
	}
	release, err := locker.AcquireLock(ctx, DeadlineSweepLock)
	if errors.Is(err, storage.ErrLocked) {
		return nil, ErrSweepRunning
	}
	return release, err
}

// Sweep flips accepted assignments past their deadline to overdue and sends
// the reminder tier each live assignment is due for. Re-running it inside a
// tier's cooldown sends nothing new. Assignments left on closed or withdrawn
// papers are expired instead.
func (s *DeadlineService) Sweep(ctx context.Context) (*SweepSummary, error) {
	release, err := s.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer func() {
			if relErr := release(); relErr != nil {
				s.log.WithError(relErr).Warn("failed to release deadline sweep lock")
			}
		}()
	}

	assignments, err := s.store.ListAssignmentsByStatus(ctx, models.AssignmentAccepted, models.AssignmentOverdue)
	if err != nil {
		return nil, storeErr(err, "assignments")
	}

	now := s.now()
	summary := &SweepSummary{}
	papers := map[string]*models.Paper{}
	for i := range assignments {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		listed := assignments[i]
		a := &assignments[i]
		if a.Deadline == nil {
			continue
		}
		summary.Scanned++

		p := s.lookupPaper(ctx, papers, a.PaperID)
		if p != nil && reviewClosed(p) {
			a.Status = models.AssignmentExpired
			a.UpdatedAt = now
			if s.write(ctx, &listed, a, summary) {
				summary.Expired++
			}
			continue
		}

		changed := false
		if a.Status == models.AssignmentAccepted && now.After(*a.Deadline) {
			a.Status = models.AssignmentOverdue
			a.UpdatedAt = now
			changed = true
		}

		rem := ComputeRemaining(*a.Deadline, now)
		tier := ReminderTierFor(a.Status, rem, SinceLastReminder(a, now))
		if tier != TierNone {
			RecordReminder(a, now)
			changed = true
		}

		if changed && !s.write(ctx, &listed, a, summary) {
			continue
		}
		if a.Status != listed.Status {
			summary.MarkedOverdue++
		}
		if tier != TierNone {
			title := ""
			if p != nil {
				title = p.Title
			}
			s.sendReminder(ctx, a, tier, title)
			summary.RemindersSent++
		}
	}

	s.log.WithFields(logrus.Fields{
		"scanned":        summary.Scanned,
		"marked_overdue": summary.MarkedOverdue,
		"reminders":      summary.RemindersSent,
		"expired":        summary.Expired,
		"skipped":        summary.Skipped,
		"failed":         summary.Failed,
	}).Info("deadline sweep finished")
	return summary, nil
}

// write stores a only if the assignment still matches the listed snapshot.
// A reviewer who submitted or was removed since the listing wins.
func (s *DeadlineService) write(ctx context.Context, listed, a *models.ReviewAssignment, summary *SweepSummary) bool {
	fields := logrus.Fields{"paper_id": a.PaperID, "reviewer_id": a.ReviewerID}
	current, err := s.store.FindAssignment(ctx, a.PaperID, a.ReviewerID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		summary.Failed++
		s.log.WithError(err).WithFields(fields).Error("deadline sweep reload failed")
		return false
	}
	if err != nil || current.Status != listed.Status || !current.UpdatedAt.Equal(listed.UpdatedAt) {
		summary.Skipped++
		s.log.WithFields(fields).Debug("assignment changed during sweep")
		return false
	}
	if err := s.store.UpsertAssignment(ctx, a); err != nil {
		summary.Failed++
		s.log.WithError(err).WithFields(fields).Error("deadline sweep update failed")
		return false
	}
	return true
}

// reviewClosed reports whether reviewers owe nothing more on p.
func reviewClosed(p *models.Paper) bool {
	return p.Status.IsTerminal() || p.Status == models.StatusDraft
}

func (s *DeadlineService) lookupPaper(ctx context.Context, cache map[string]*models.Paper, paperID string) *models.Paper {
	if p, ok := cache[paperID]; ok {
		return p
	}
	p, err := s.store.FindPaper(ctx, paperID)
	if err != nil {
		p = nil
	}
	cache[paperID] = p
	return p
}

func (s *DeadlineService) paperTitle(ctx context.Context, cache map[string]*models.Paper, paperID string) string {
	if p := s.lookupPaper(ctx, cache, paperID); p != nil {
		return p.Title
	}
	return ""
}

func (s *DeadlineService) sendReminder(ctx context.Context, a *models.ReviewAssignment, tier ReminderTier, title string) {
	if s.notifier == nil {
		return
	}
	if title == "" {
		title = a.PaperID
	}

	var subject, content string
	priority := models.PriorityNormal
	due := humanize.Time(*a.Deadline)
	switch tier {
	case TierOverdue:
		subject = "Review overdue"
		content = fmt.Sprintf("Your review of %q was due %s.", title, due)
		priority = models.PriorityHigh
	case TierUrgent:
		subject = "Review due within a day"
		content = fmt.Sprintf("Your review of %q is due %s.", title, due)
		priority = models.PriorityHigh
	case TierWarning:
		subject = "Review due soon"
		content = fmt.Sprintf("Your review of %q is due %s.", title, due)
	default:
		subject = "Review reminder"
		content = fmt.Sprintf("Friendly reminder: your review of %q is due %s.", title, due)
		priority = models.PriorityLow
	}

	s.notifier.Notify(ctx, NotificationEvent{
		Type:       models.NotificationDeadlineReminder,
		Recipients: []string{a.ReviewerID},
		PaperID:    a.PaperID,
		Title:      subject,
		Content:    content,
		Priority:   priority,
		Metadata: map[string]string{
			"tier":      string(tier),
			"deadline":  a.Deadline.Format(time.RFC3339),
			"reminders": humanize.Ordinal(a.RemindersSent),
		},
	})
}

func (s *DeadlineService) describe(a models.ReviewAssignment, now time.Time) AssignmentDeadline {
	out := AssignmentDeadline{ReviewAssignment: a}
	if a.Deadline != nil && a.Active() {
		rem := ComputeRemaining(*a.Deadline, now)
		out.Remaining = &rem
		out.DueIn = humanize.RelTime(*a.Deadline, now, "ago", "from now")
	}
	return out
}

// CheckDeadlines reports overdue and due-soon assignments without changing them.
func (s *DeadlineService) CheckDeadlines(ctx context.Context) (*DeadlineReport, error) {
	assignments, err := s.store.ListAssignmentsByStatus(ctx, models.AssignmentAccepted, models.AssignmentOverdue)
	if err != nil {
		return nil, storeErr(err, "assignments")
	}

	now := s.now()
	report := &DeadlineReport{GeneratedAt: now, Overdue: []AssignmentDeadline{}, DueSoon: []AssignmentDeadline{}}
	titles := map[string]*models.Paper{}
	for _, a := range assignments {
		if a.Deadline == nil {
			continue
		}
		d := s.describe(a, now)
		d.PaperTitle = s.paperTitle(ctx, titles, a.PaperID)
		switch {
		case a.Status == models.AssignmentOverdue || d.Remaining.IsOverdue:
			report.Overdue = append(report.Overdue, d)
		case d.Remaining.DaysRemaining <= dueSoonDays:
			report.DueSoon = append(report.DueSoon, d)
		}
	}
	byDeadline := func(list []AssignmentDeadline) {
		sort.Slice(list, func(i, j int) bool { return list[i].Deadline.Before(*list[j].Deadline) })
	}
	byDeadline(report.Overdue)
	byDeadline(report.DueSoon)
	return report, nil
}

func (s *DeadlineService) canSee(ctx context.Context, actor Actor, paperID, reviewerID string) error {
	if actor.IsEditor() || actor.UserID == reviewerID {
		return nil
	}
	p, err := s.store.FindPaper(ctx, paperID)
	if err != nil {
		return storeErr(err, "paper")
	}
	if p.IsAuthor(actor.UserID) {
		return nil
	}
	if hubID := models.ResolveID(p.Hub); hubID != "" {
		if hub, err := s.store.FindHub(ctx, hubID); err == nil && hub.IsOwner(actor.UserID) {
			return nil
		}
	}
	return forbidden("you cannot see this assignment")
}

func (s *DeadlineService) GetDeadline(ctx context.Context, actor Actor, paperID, reviewerID string) (*AssignmentDeadline, error) {
	if err := s.canSee(ctx, actor, paperID, reviewerID); err != nil {
		return nil, err
	}
	a, err := s.store.FindAssignment(ctx, paperID, reviewerID)
	if err != nil {
		return nil, storeErr(err, "assignment")
	}
	d := s.describe(*a, s.now())
	return &d, nil
}

type UpdateDeadlineInput struct {
	Days     *int       `json:"days" validate:"omitempty,min=1,max=90"`
	Deadline *time.Time `json:"deadline"`
}

// UpdateDeadline overrides an assignment's deadline, either as a number of
// days from acceptance or as an explicit date. An overdue assignment given a
// future deadline becomes accepted again.
func (s *DeadlineService) UpdateDeadline(ctx context.Context, actor Actor, paperID, reviewerID string, in UpdateDeadlineInput) (*AssignmentDeadline, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only administrators may change deadlines")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if (in.Days == nil) == (in.Deadline == nil) {
		return nil, fmt.Errorf("%w: exactly one of days or deadline is required", ErrValidation)
	}

	a, err := s.store.FindAssignment(ctx, paperID, reviewerID)
	if err != nil {
		return nil, storeErr(err, "assignment")
	}
	if !a.Active() {
		return nil, invalidTransition("assignment is %s", a.Status)
	}

	now := s.now()
	var deadline time.Time
	if in.Days != nil {
		from := now
		if a.AcceptedAt != nil {
			from = *a.AcceptedAt
		}
		days := *in.Days
		a.CustomDeadlineDays = &days
		deadline = from.Add(time.Duration(days) * day)
	} else {
		deadline = *in.Deadline
	}

	a.Deadline = &deadline
	if a.Status == models.AssignmentOverdue && deadline.After(now) {
		a.Status = models.AssignmentAccepted
	}
	a.UpdatedAt = now
	if err := s.store.UpsertAssignment(ctx, a); err != nil {
		return nil, storeErr(err, "assignment")
	}

	s.log.WithFields(logrus.Fields{"paper_id": paperID, "reviewer_id": reviewerID, "deadline": deadline}).Info("deadline updated")
	d := s.describe(*a, now)
	return &d, nil
}

// ListMine returns the caller's assignments, soonest deadline first.
func (s *DeadlineService) ListMine(ctx context.Context, actor Actor) ([]AssignmentDeadline, error) {
	assignments, err := s.store.ListAssignmentsByReviewer(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr(err, "assignments")
	}
	now := s.now()
	titles := map[string]*models.Paper{}
	out := make([]AssignmentDeadline, 0, len(assignments))
	for _, a := range assignments {
		d := s.describe(a, now)
		d.PaperTitle = s.paperTitle(ctx, titles, a.PaperID)
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Deadline, out[j].Deadline
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
	return out, nil
}
