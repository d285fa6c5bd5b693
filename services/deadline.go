package services

import (
	"fmt"
	"math"
	"time"

	"peer-review-api/models"
)

const day = 24 * time.Hour

// Remaining is the time left before (or elapsed after) a review deadline.
// Overdue values carry the magnitude and are never negative.
type Remaining struct {
	DaysRemaining  int  `json:"daysRemaining"`
	HoursRemaining int  `json:"hoursRemaining"`
	IsOverdue      bool `json:"isOverdue"`
}

type ReminderTier string

const (
	TierNone     ReminderTier = ""
	TierReminder ReminderTier = "reminder"
	TierWarning  ReminderTier = "warning"
	TierUrgent   ReminderTier = "urgent"
	TierOverdue  ReminderTier = "overdue"
)

// minimum spacing between two reminders of a tier
var tierCooldown = map[ReminderTier]time.Duration{
	TierOverdue:  1 * day,
	TierUrgent:   1 * day,
	TierWarning:  2 * day,
	TierReminder: 3 * day,
}

func validateDeadlineDays(days int) error {
	if days < models.MinCustomDeadlineDays || days > models.MaxCustomDeadlineDays {
		return fmt.Errorf("%w: deadline days must be between %d and %d", ErrValidation,
			models.MinCustomDeadlineDays, models.MaxCustomDeadlineDays)
	}
	return nil
}

// AcceptAssignment moves a pending assignment to accepted and fixes its
// deadline. customDays overrides the per-invitation value, which overrides
// defaultDays. An existing deadline is never recomputed.
func AcceptAssignment(a *models.ReviewAssignment, now time.Time, customDays *int, defaultDays int) error {
	if a.Status != models.AssignmentPending {
		return invalidTransition("assignment is %s, expected pending", a.Status)
	}

	days := defaultDays
	if days <= 0 {
		days = models.DefaultReviewDays
	}
	if customDays != nil {
		if err := validateDeadlineDays(*customDays); err != nil {
			return err
		}
		d := *customDays
		a.CustomDeadlineDays = &d
	}
	if a.CustomDeadlineDays != nil {
		days = *a.CustomDeadlineDays
	}

	at := now
	a.Status = models.AssignmentAccepted
	a.AcceptedAt = &at
	if a.Deadline == nil {
		deadline := at.Add(time.Duration(days) * day)
		a.Deadline = &deadline
	}
	a.UpdatedAt = now
	return nil
}

// ComputeRemaining rounds up to whole days and hours.
func ComputeRemaining(deadline, now time.Time) Remaining {
	diff := deadline.Sub(now)
	overdue := diff < 0
	if overdue {
		diff = -diff
	}
	return Remaining{
		DaysRemaining:  ceilDiv(diff, day),
		HoursRemaining: ceilDiv(diff, time.Hour),
		IsOverdue:      overdue,
	}
}

func ceilDiv(d, unit time.Duration) int {
	n := d / unit
	if d%unit != 0 {
		n++
	}
	return int(n)
}

// SinceLastReminder is effectively infinite for an assignment never reminded.
func SinceLastReminder(a *models.ReviewAssignment, now time.Time) time.Duration {
	if a.LastReminderAt == nil {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(*a.LastReminderAt)
}

// ReminderTierFor picks the reminder to send, if any, for an assignment in
// status with rem left and sinceLast elapsed since the previous reminder.
func ReminderTierFor(status models.AssignmentStatus, rem Remaining, sinceLast time.Duration) ReminderTier {
	if status != models.AssignmentAccepted && status != models.AssignmentOverdue {
		return TierNone
	}

	tier := TierNone
	switch d := rem.DaysRemaining; {
	case status == models.AssignmentOverdue || rem.IsOverdue:
		tier = TierOverdue
	case d > 0 && d <= 1:
		tier = TierUrgent
	case d > 1 && d <= 3:
		tier = TierWarning
	case d > 3 && d <= 7:
		tier = TierReminder
	}
	if tier == TierNone || sinceLast < tierCooldown[tier] {
		return TierNone
	}
	return tier
}

func RecordReminder(a *models.ReviewAssignment, now time.Time) {
	at := now
	a.RemindersSent++
	a.LastReminderAt = &at
	a.UpdatedAt = now
}
