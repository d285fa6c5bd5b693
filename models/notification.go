package models

import "time"

// Notification types emitted by the review workflow.
const (
	NotificationReviewInvitation   = "review_invitation"
	NotificationReviewerResponded  = "reviewer_responded"
	NotificationReviewSubmitted    = "review_submitted"
	NotificationStatusChanged      = "paper_status_changed"
	NotificationPublicationRequest = "publication_requested"
	NotificationDeadlineReminder   = "deadline_reminder"
	NotificationReviewerRemoved    = "reviewer_removed"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

type Notification struct {
	ID             string     `bson:"_id" json:"id"`
	User           string     `bson:"user" json:"user"`
	Type           string     `bson:"type" json:"type"`
	Title          string     `bson:"title" json:"title"`
	Content        string     `bson:"content" json:"content"`
	RelatedPaperID *string    `bson:"relatedPaperId,omitempty" json:"relatedPaperId,omitempty"`
	RelatedHubID   *string    `bson:"relatedHubId,omitempty" json:"relatedHubId,omitempty"`
	IsRead         bool       `bson:"isRead" json:"isRead"`
	Priority       string     `bson:"priority" json:"priority"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	ReadAt         *time.Time `bson:"readAt,omitempty" json:"readAt,omitempty"`
}
