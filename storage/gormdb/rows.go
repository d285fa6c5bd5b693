package gormdb

import (
	"time"

	"gorm.io/datatypes"

	"peer-review-api/models"
)

// paperRow keeps the embedded review sub-documents as JSON columns so the
// paper and its slots are always written by one conditional UPDATE.
type paperRow struct {
	ID                    string                                   `gorm:"primaryKey;size:36"`
	Title                 string                                   `gorm:"size:500;not null"`
	Abstract              string                                   `gorm:"type:text"`
	Keywords              datatypes.JSONType[[]string]             `gorm:"type:json"`
	FileURL               string                                   `gorm:"size:1000"`
	MainAuthorID          string                                   `gorm:"size:36;index"`
	CorrespondingAuthorID string                                   `gorm:"size:36"`
	SubmittedByID         string                                   `gorm:"size:36;index"`
	CoAuthorIDs           datatypes.JSONType[[]string]             `gorm:"type:json"`
	HubID                 *string                                  `gorm:"size:36;index"`
	Status                string                                   `gorm:"size:40;index"`
	ReviewRound           int                                      `gorm:"not null;default:1"`
	ReviewSlots           datatypes.JSONType[[]models.ReviewSlot]  `gorm:"type:json"`
	MaxReviewSlots        int                                      `gorm:"not null;default:3"`
	AvailableSlots        int                                      `gorm:"not null;default:3"`
	PeerReview            datatypes.JSONType[models.PeerReview]    `gorm:"type:json"`
	PhaseTimestamps       datatypes.JSONType[map[string]time.Time] `gorm:"type:json"`
	Version               int64                                    `gorm:"not null;default:1"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (paperRow) TableName() string { return "papers" }

func newPaperRow(p *models.Paper) paperRow {
	row := paperRow{
		ID:                    p.ID,
		Title:                 p.Title,
		Abstract:              p.Abstract,
		Keywords:              datatypes.NewJSONType(nonNilStrings(p.Keywords)),
		FileURL:               p.FileURL,
		MainAuthorID:          models.ResolveID(p.MainAuthor),
		CorrespondingAuthorID: models.ResolveID(p.CorrespondingAuthor),
		SubmittedByID:         models.ResolveID(p.SubmittedBy),
		CoAuthorIDs:           datatypes.NewJSONType(nonNilStrings(models.RefIDs(p.CoAuthors))),
		Status:                string(p.Status),
		ReviewRound:           p.ReviewRound,
		ReviewSlots:           datatypes.NewJSONType(p.ReviewSlots),
		MaxReviewSlots:        p.MaxReviewSlots,
		AvailableSlots:        p.AvailableSlots,
		PeerReview:            datatypes.NewJSONType(p.PeerReview),
		PhaseTimestamps:       datatypes.NewJSONType(p.PhaseTimestamps),
		Version:               p.Version,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
	if id := models.ResolveID(p.Hub); id != "" {
		row.HubID = &id
	}
	return row
}

func (r paperRow) toModel() *models.Paper {
	p := &models.Paper{
		ID:                  r.ID,
		Title:               r.Title,
		Abstract:            r.Abstract,
		Keywords:            r.Keywords.Data(),
		FileURL:             r.FileURL,
		MainAuthor:          models.RefTo[models.User](r.MainAuthorID),
		CorrespondingAuthor: models.RefTo[models.User](r.CorrespondingAuthorID),
		SubmittedBy:         models.RefTo[models.User](r.SubmittedByID),
		Status:              models.PaperStatus(r.Status),
		ReviewRound:         r.ReviewRound,
		ReviewSlots:         r.ReviewSlots.Data(),
		MaxReviewSlots:      r.MaxReviewSlots,
		AvailableSlots:      r.AvailableSlots,
		PeerReview:          r.PeerReview.Data(),
		PhaseTimestamps:     r.PhaseTimestamps.Data(),
		Version:             r.Version,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	for _, id := range r.CoAuthorIDs.Data() {
		p.CoAuthors = append(p.CoAuthors, models.RefTo[models.User](id))
	}
	if r.HubID != nil {
		p.Hub = models.RefTo[models.Hub](*r.HubID)
	}
	return p
}

type assignmentRow struct {
	ID                 string `gorm:"primaryKey;size:36"`
	PaperID            string `gorm:"size:36;not null;uniqueIndex:idx_assignment_paper_reviewer"`
	ReviewerID         string `gorm:"size:36;not null;uniqueIndex:idx_assignment_paper_reviewer;index"`
	Status             string `gorm:"size:20;index"`
	Round              int
	AssignedAt         time.Time
	AcceptedAt         *time.Time
	CompletedAt        *time.Time
	Deadline           *time.Time `gorm:"index"`
	CustomDeadlineDays *int
	RemindersSent      int
	LastReminderAt     *time.Time
	DeclineReason      string `gorm:"type:text"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (assignmentRow) TableName() string { return "review_assignments" }

func newAssignmentRow(a *models.ReviewAssignment) assignmentRow {
	return assignmentRow{
		ID:                 a.ID,
		PaperID:            a.PaperID,
		ReviewerID:         a.ReviewerID,
		Status:             string(a.Status),
		Round:              a.Round,
		AssignedAt:         a.AssignedAt,
		AcceptedAt:         a.AcceptedAt,
		CompletedAt:        a.CompletedAt,
		Deadline:           a.Deadline,
		CustomDeadlineDays: a.CustomDeadlineDays,
		RemindersSent:      a.RemindersSent,
		LastReminderAt:     a.LastReminderAt,
		DeclineReason:      a.DeclineReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func (r assignmentRow) toModel() models.ReviewAssignment {
	return models.ReviewAssignment{
		ID:                 r.ID,
		PaperID:            r.PaperID,
		ReviewerID:         r.ReviewerID,
		Status:             models.AssignmentStatus(r.Status),
		Round:              r.Round,
		AssignedAt:         r.AssignedAt,
		AcceptedAt:         r.AcceptedAt,
		CompletedAt:        r.CompletedAt,
		Deadline:           r.Deadline,
		CustomDeadlineDays: r.CustomDeadlineDays,
		RemindersSent:      r.RemindersSent,
		LastReminderAt:     r.LastReminderAt,
		DeclineReason:      r.DeclineReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type reviewRow struct {
	ID                   string              `gorm:"primaryKey;size:36"`
	PaperID              string              `gorm:"size:36;not null;uniqueIndex:idx_review_paper_reviewer_round"`
	ReviewerID           string              `gorm:"size:36;not null;uniqueIndex:idx_review_paper_reviewer_round"`
	ReviewRound          int                 `gorm:"not null;uniqueIndex:idx_review_paper_reviewer_round"`
	Scores               models.ReviewScores `gorm:"embedded;embeddedPrefix:score_"`
	Strengths            string              `gorm:"type:text"`
	Weaknesses           string              `gorm:"type:text"`
	CommentsToAuthor     string              `gorm:"type:text"`
	ConfidentialComments string              `gorm:"type:text"`
	EthicalConcerns      bool
	EthicsComments       string `gorm:"type:text"`
	Recommendation       string `gorm:"size:20"`
	AverageScore         float64
	WeightedScore        float64
	Status               string `gorm:"size:20;index"`
	SubmittedAt          time.Time
	CreatedAt            time.Time
}

func (reviewRow) TableName() string { return "reviews" }

func newReviewRow(r *models.Review) reviewRow {
	return reviewRow{
		ID:                   r.ID,
		PaperID:              r.PaperID,
		ReviewerID:           r.ReviewerID,
		ReviewRound:          r.ReviewRound,
		Scores:               r.Scores,
		Strengths:            r.Strengths,
		Weaknesses:           r.Weaknesses,
		CommentsToAuthor:     r.CommentsToAuthor,
		ConfidentialComments: r.ConfidentialComments,
		EthicalConcerns:      r.EthicalConcerns,
		EthicsComments:       r.EthicsComments,
		Recommendation:       string(r.Recommendation),
		AverageScore:         r.AverageScore,
		WeightedScore:        r.WeightedScore,
		Status:               string(r.Status),
		SubmittedAt:          r.SubmittedAt,
		CreatedAt:            r.CreatedAt,
	}
}

func (r reviewRow) toModel() models.Review {
	return models.Review{
		ID:                   r.ID,
		PaperID:              r.PaperID,
		ReviewerID:           r.ReviewerID,
		ReviewRound:          r.ReviewRound,
		Scores:               r.Scores,
		Strengths:            r.Strengths,
		Weaknesses:           r.Weaknesses,
		CommentsToAuthor:     r.CommentsToAuthor,
		ConfidentialComments: r.ConfidentialComments,
		EthicalConcerns:      r.EthicalConcerns,
		EthicsComments:       r.EthicsComments,
		Recommendation:       models.Recommendation(r.Recommendation),
		AverageScore:         r.AverageScore,
		WeightedScore:        r.WeightedScore,
		Status:               models.ReviewStatus(r.Status),
		SubmittedAt:          r.SubmittedAt,
		CreatedAt:            r.CreatedAt,
	}
}

type notificationRow struct {
	ID             string  `gorm:"primaryKey;size:36"`
	UserID         string  `gorm:"size:36;index:idx_notification_user_read"`
	Type           string  `gorm:"size:50"`
	Title          string  `gorm:"size:255"`
	Content        string  `gorm:"type:text"`
	RelatedPaperID *string `gorm:"size:36"`
	RelatedHubID   *string `gorm:"size:36"`
	IsRead         bool    `gorm:"index:idx_notification_user_read"`
	Priority       string  `gorm:"size:10"`
	CreatedAt      time.Time
	ReadAt         *time.Time
}

func (notificationRow) TableName() string { return "notifications" }

func (r notificationRow) toModel() models.Notification {
	return models.Notification{
		ID:             r.ID,
		User:           r.UserID,
		Type:           r.Type,
		Title:          r.Title,
		Content:        r.Content,
		RelatedPaperID: r.RelatedPaperID,
		RelatedHubID:   r.RelatedHubID,
		IsRead:         r.IsRead,
		Priority:       r.Priority,
		CreatedAt:      r.CreatedAt,
		ReadAt:         r.ReadAt,
	}
}

type hubRow struct {
	ID          string                       `gorm:"primaryKey;size:36"`
	Name        string                       `gorm:"size:255;not null"`
	Description string                       `gorm:"type:text"`
	OwnerID     string                       `gorm:"size:36;index"`
	Reviewers   datatypes.JSONType[[]string] `gorm:"type:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (hubRow) TableName() string { return "hubs" }

func (r hubRow) toModel() *models.Hub {
	return &models.Hub{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Owner:       models.RefTo[models.User](r.OwnerID),
		Reviewers:   r.Reviewers.Data(),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type userRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"size:255"`
	Email        string `gorm:"size:255;uniqueIndex"`
	PasswordHash string `gorm:"size:255"`
	Role         string `gorm:"size:20"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() models.User {
	return models.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
