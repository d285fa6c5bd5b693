package models

import "time"

type PaperStatus string

const (
	StatusDraft                 PaperStatus = "draft"
	StatusUnderNegotiation      PaperStatus = "under negotiation"
	StatusInReview              PaperStatus = "in review"
	StatusNeedingCorrections    PaperStatus = "needing corrections"
	StatusPublished             PaperStatus = "published"
	StatusRejected              PaperStatus = "rejected"
	StatusAccepted              PaperStatus = "accepted"
	StatusAwaitingFinalDecision PaperStatus = "awaiting final decision"
	StatusUnderFinalReview      PaperStatus = "under final review"
)

// IsTerminal reports whether no further workflow transition is possible.
func (s PaperStatus) IsTerminal() bool {
	switch s {
	case StatusPublished, StatusRejected, StatusAccepted:
		return true
	}
	return false
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotPending   SlotStatus = "pending"
	SlotOccupied  SlotStatus = "occupied"
	SlotDeclined  SlotStatus = "declined"
)

// MaxReviewSlots is the reviewer capacity of a single paper.
const MaxReviewSlots = 3

type ReviewSlot struct {
	SlotNumber int        `bson:"slotNumber" json:"slotNumber"`
	ReviewerID *string    `bson:"reviewerId" json:"reviewerId"`
	Status     SlotStatus `bson:"status" json:"status"`
	InvitedAt  *time.Time `bson:"invitedAt,omitempty" json:"invitedAt,omitempty"`
	AcceptedAt *time.Time `bson:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	DeclinedAt *time.Time `bson:"declinedAt,omitempty" json:"declinedAt,omitempty"`
}

// CountsAsAvailable reports whether the slot may be handed to a new reviewer.
func (s ReviewSlot) CountsAsAvailable() bool {
	return s.Status == SlotAvailable || s.Status == SlotDeclined
}

func (s ReviewSlot) HeldBy(reviewerID string) bool {
	return s.ReviewerID != nil && *s.ReviewerID == reviewerID
}

type ResponseStatus string

const (
	ResponsePending   ResponseStatus = "pending"
	ResponseAccepted  ResponseStatus = "accepted"
	ResponseDeclined  ResponseStatus = "declined"
	ResponseCompleted ResponseStatus = "completed"
)

// ReviewerResponse is one entry of the historical per-reviewer ledger.
type ReviewerResponse struct {
	ReviewerID   string         `bson:"reviewerId" json:"reviewerId"`
	Status       ResponseStatus `bson:"status" json:"status"`
	Round        int            `bson:"round" json:"round"`
	ResponseDate *time.Time     `bson:"responseDate,omitempty" json:"responseDate,omitempty"`
	AssignedAt   time.Time      `bson:"assignedAt" json:"assignedAt"`
	CompletedAt  *time.Time     `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	ReviewID     string         `bson:"reviewId,omitempty" json:"reviewId,omitempty"`
}

type PeerReview struct {
	ReviewType        string             `bson:"reviewType" json:"reviewType"`
	AssignedReviewers []string           `bson:"assignedReviewers" json:"assignedReviewers"`
	Responses         []ReviewerResponse `bson:"responses" json:"responses"`
	Reviews           []string           `bson:"reviews" json:"reviews"`
	AverageScore      float64            `bson:"averageScore" json:"averageScore"`
	ReviewCount       int                `bson:"reviewCount" json:"reviewCount"`
	ReviewStatus      string             `bson:"reviewStatus" json:"reviewStatus"`

	// WithdrawnReviews holds the reviews of cycles ended by a withdrawal.
	// They stay readable but no longer count towards a round.
	WithdrawnReviews []string `bson:"withdrawnReviews,omitempty" json:"withdrawnReviews,omitempty"`
}

// Response returns the ledger entry of reviewerID for round, if any.
func (pr *PeerReview) Response(reviewerID string, round int) *ReviewerResponse {
	for i := range pr.Responses {
		if pr.Responses[i].ReviewerID == reviewerID && pr.Responses[i].Round == round {
			return &pr.Responses[i]
		}
	}
	return nil
}

// Counts reports whether reviewID belongs to the current review cycle.
func (pr *PeerReview) Counts(reviewID string) bool {
	for _, id := range pr.WithdrawnReviews {
		if id == reviewID {
			return false
		}
	}
	return true
}

func (pr *PeerReview) IsAssigned(reviewerID string) bool {
	for _, id := range pr.AssignedReviewers {
		if id == reviewerID {
			return true
		}
	}
	return false
}

type Paper struct {
	ID                  string               `bson:"_id" json:"id"`
	Title               string               `bson:"title" json:"title"`
	Abstract            string               `bson:"abstract" json:"abstract"`
	Keywords            []string             `bson:"keywords" json:"keywords"`
	FileURL             string               `bson:"fileUrl" json:"fileUrl"`
	MainAuthor          Ref[User]            `bson:"mainAuthor" json:"mainAuthor"`
	CorrespondingAuthor Ref[User]            `bson:"correspondingAuthor" json:"correspondingAuthor"`
	CoAuthors           []Ref[User]          `bson:"coAuthors" json:"coAuthors"`
	SubmittedBy         Ref[User]            `bson:"submittedBy" json:"submittedBy"`
	Hub                 Ref[Hub]             `bson:"hub" json:"hub"`
	Status              PaperStatus          `bson:"status" json:"status"`
	ReviewRound         int                  `bson:"reviewRound" json:"reviewRound"`
	ReviewSlots         []ReviewSlot         `bson:"reviewSlots" json:"reviewSlots"`
	MaxReviewSlots      int                  `bson:"maxReviewSlots" json:"maxReviewSlots"`
	AvailableSlots      int                  `bson:"availableSlots" json:"availableSlots"`
	PeerReview          PeerReview           `bson:"peer_review" json:"peer_review"`
	PhaseTimestamps     map[string]time.Time `bson:"phaseTimestamps" json:"phaseTimestamps"`
	Version             int64                `bson:"version" json:"version"`
	CreatedAt           time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (p Paper) GetID() string { return p.ID }

// AuthorIDs lists every user with authorship rights, without duplicates.
func (p *Paper) AuthorIDs() []string {
	seen := map[string]bool{}
	out := make([]string, 0, 3+len(p.CoAuthors))
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	add(ResolveID(p.MainAuthor))
	add(ResolveID(p.CorrespondingAuthor))
	add(ResolveID(p.SubmittedBy))
	for _, id := range RefIDs(p.CoAuthors) {
		add(id)
	}
	return out
}

// IsAuthor reports whether userID may act as an author of the paper.
// Co-authors can read but only the main, corresponding or submitting author acts.
func (p *Paper) IsAuthor(userID string) bool {
	return p.MainAuthor.Is(userID) || p.CorrespondingAuthor.Is(userID) || p.SubmittedBy.Is(userID)
}

func (p *Paper) HasHub() bool {
	return !p.Hub.IsZero()
}

func (p *Paper) CanEdit() bool {
	return p.Status == StatusDraft
}
