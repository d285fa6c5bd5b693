package models

import "time"

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentExpired   AssignmentStatus = "expired"
	AssignmentOverdue   AssignmentStatus = "overdue"
	AssignmentRemoved   AssignmentStatus = "removed"
)

// IsTerminal reports whether the assignment can no longer change state.
func (s AssignmentStatus) IsTerminal() bool {
	switch s {
	case AssignmentCompleted, AssignmentExpired, AssignmentRemoved:
		return true
	}
	return false
}

// DefaultReviewDays is the deadline granted on acceptance when no custom value is set.
const DefaultReviewDays = 15

const (
	MinCustomDeadlineDays = 1
	MaxCustomDeadlineDays = 90
)

// ReviewAssignment tracks one reviewer's engagement with one paper.
type ReviewAssignment struct {
	ID                 string           `bson:"_id" json:"id"`
	PaperID            string           `bson:"paperId" json:"paperId"`
	ReviewerID         string           `bson:"reviewerId" json:"reviewerId"`
	Status             AssignmentStatus `bson:"status" json:"status"`
	Round              int              `bson:"round" json:"round"`
	AssignedAt         time.Time        `bson:"assignedAt" json:"assignedAt"`
	AcceptedAt         *time.Time       `bson:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	CompletedAt        *time.Time       `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Deadline           *time.Time       `bson:"deadline,omitempty" json:"deadline,omitempty"`
	CustomDeadlineDays *int             `bson:"customDeadlineDays,omitempty" json:"customDeadlineDays,omitempty"`
	RemindersSent      int              `bson:"remindersSent" json:"remindersSent"`
	LastReminderAt     *time.Time       `bson:"lastReminderAt,omitempty" json:"lastReminderAt,omitempty"`
	DeclineReason      string           `bson:"declineReason,omitempty" json:"declineReason,omitempty"`
	CreatedAt          time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time        `bson:"updatedAt" json:"updatedAt"`
}

func (a ReviewAssignment) GetID() string { return a.ID }

// Active reports whether the reviewer still owes work on the paper.
func (a *ReviewAssignment) Active() bool {
	switch a.Status {
	case AssignmentPending, AssignmentAccepted, AssignmentOverdue:
		return true
	}
	return false
}
