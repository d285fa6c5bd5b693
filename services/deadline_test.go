package services

import (
	"errors"
	"testing"
	"time"

	"peer-review-api/models"
)

func pendingAssignment() *models.ReviewAssignment {
	return &models.ReviewAssignment{ID: "a1", PaperID: "p1", ReviewerID: "r1", Status: models.AssignmentPending, Round: 1}
}

func TestAcceptAssignmentDefaultDeadline(t *testing.T) {
	a := pendingAssignment()
	if err := AcceptAssignment(a, baseTime, nil, models.DefaultReviewDays); err != nil {
		t.Fatalf("AcceptAssignment returned error: %v", err)
	}
	want := baseTime.Add(15 * 24 * time.Hour)
	if a.Status != models.AssignmentAccepted || !a.AcceptedAt.Equal(baseTime) {
		t.Fatalf("unexpected assignment after accept: %#v", a)
	}
	if !a.Deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, a.Deadline)
	}
}

func TestAcceptAssignmentCustomDays(t *testing.T) {
	a := pendingAssignment()
	days := 30
	if err := AcceptAssignment(a, baseTime, &days, models.DefaultReviewDays); err != nil {
		t.Fatalf("AcceptAssignment returned error: %v", err)
	}
	if want := baseTime.Add(30 * 24 * time.Hour); !a.Deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, a.Deadline)
	}
	if a.CustomDeadlineDays == nil || *a.CustomDeadlineDays != 30 {
		t.Fatalf("custom days not recorded: %#v", a.CustomDeadlineDays)
	}
}

func TestAcceptAssignmentUsesInvitationDays(t *testing.T) {
	a := pendingAssignment()
	days := 5
	a.CustomDeadlineDays = &days
	if err := AcceptAssignment(a, baseTime, nil, models.DefaultReviewDays); err != nil {
		t.Fatalf("AcceptAssignment returned error: %v", err)
	}
	if want := baseTime.Add(5 * 24 * time.Hour); !a.Deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, a.Deadline)
	}
}

func TestAcceptAssignmentRejectsBadInput(t *testing.T) {
	for _, days := range []int{0, 91, -3} {
		d := days
		if err := AcceptAssignment(pendingAssignment(), baseTime, &d, 15); !errors.Is(err, ErrValidation) {
			t.Fatalf("days=%d: expected ErrValidation, got %v", days, err)
		}
	}

	a := pendingAssignment()
	a.Status = models.AssignmentDeclined
	if err := AcceptAssignment(a, baseTime, nil, 15); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAcceptAssignmentKeepsExistingDeadline(t *testing.T) {
	a := pendingAssignment()
	fixed := baseTime.Add(3 * day)
	a.Deadline = &fixed
	if err := AcceptAssignment(a, baseTime, nil, 15); err != nil {
		t.Fatalf("AcceptAssignment returned error: %v", err)
	}
	if !a.Deadline.Equal(fixed) {
		t.Fatalf("deadline was recomputed: %v", a.Deadline)
	}
}

func TestComputeRemaining(t *testing.T) {
	deadline := baseTime.Add(15 * day)
	cases := []struct {
		name string
		now  time.Time
		want Remaining
	}{
		{"fresh", baseTime, Remaining{DaysRemaining: 15, HoursRemaining: 360}},
		{"partial day rounds up", deadline.Add(-25 * time.Hour), Remaining{DaysRemaining: 2, HoursRemaining: 25}},
		{"partial hour rounds up", deadline.Add(-30 * time.Minute), Remaining{DaysRemaining: 1, HoursRemaining: 1}},
		{"at deadline", deadline, Remaining{}},
		{"overdue by 2.5 days", deadline.Add(60 * time.Hour), Remaining{DaysRemaining: 3, HoursRemaining: 60, IsOverdue: true}},
	}
	for _, tc := range cases {
		got := ComputeRemaining(deadline, tc.now)
		if got != tc.want {
			t.Fatalf("%s: expected %#v, got %#v", tc.name, tc.want, got)
		}
		if got.DaysRemaining < 0 || got.HoursRemaining < 0 {
			t.Fatalf("%s: negative remaining %#v", tc.name, got)
		}
	}
}

func TestReminderTierFor(t *testing.T) {
	never := SinceLastReminder(&models.ReviewAssignment{}, baseTime)
	cases := []struct {
		name   string
		status models.AssignmentStatus
		days   int
		over   bool
		since  time.Duration
		want   ReminderTier
	}{
		{"overdue status", models.AssignmentOverdue, 2, true, never, TierOverdue},
		{"overdue cooldown", models.AssignmentOverdue, 2, true, 12 * time.Hour, TierNone},
		{"urgent", models.AssignmentAccepted, 1, false, day, TierUrgent},
		{"warning", models.AssignmentAccepted, 3, false, 2 * day, TierWarning},
		{"warning cooldown", models.AssignmentAccepted, 2, false, 36 * time.Hour, TierNone},
		{"reminder", models.AssignmentAccepted, 7, false, never, TierReminder},
		{"reminder cooldown", models.AssignmentAccepted, 5, false, 2 * day, TierNone},
		{"too early", models.AssignmentAccepted, 8, false, never, TierNone},
		{"pending never reminded", models.AssignmentPending, 1, false, never, TierNone},
		{"completed never reminded", models.AssignmentCompleted, 1, true, never, TierNone},
	}
	for _, tc := range cases {
		got := ReminderTierFor(tc.status, Remaining{DaysRemaining: tc.days, IsOverdue: tc.over}, tc.since)
		if got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestRecordReminder(t *testing.T) {
	a := pendingAssignment()
	RecordReminder(a, baseTime)
	RecordReminder(a, baseTime.Add(day))
	if a.RemindersSent != 2 || !a.LastReminderAt.Equal(baseTime.Add(day)) {
		t.Fatalf("unexpected reminder bookkeeping: %d %v", a.RemindersSent, a.LastReminderAt)
	}
	if got := SinceLastReminder(a, baseTime.Add(3*day)); got != 2*day {
		t.Fatalf("expected 48h since last reminder, got %v", got)
	}
}
