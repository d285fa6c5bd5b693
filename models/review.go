package models

import "time"

type Recommendation string

const (
	RecommendAccept        Recommendation = "accept"
	RecommendMinorRevision Recommendation = "minor_revision"
	RecommendMajorRevision Recommendation = "major_revision"
	RecommendReject        Recommendation = "reject"
)

type ReviewStatus string

const (
	ReviewDraft     ReviewStatus = "draft"
	ReviewSubmitted ReviewStatus = "submitted"
)

// ReviewScores holds the eleven 0-5 criterion scores. Zero means "not scored".
type ReviewScores struct {
	Originality      int `bson:"originality" json:"originality" validate:"min=0,max=5"`
	Methodology      int `bson:"methodology" json:"methodology" validate:"min=0,max=5"`
	Significance     int `bson:"significance" json:"significance" validate:"min=0,max=5"`
	Clarity          int `bson:"clarity" json:"clarity" validate:"min=0,max=5"`
	LiteratureReview int `bson:"literatureReview" json:"literatureReview" validate:"min=0,max=5"`
	TechnicalQuality int `bson:"technicalQuality" json:"technicalQuality" validate:"min=0,max=5"`
	Results          int `bson:"results" json:"results" validate:"min=0,max=5"`
	Conclusions      int `bson:"conclusions" json:"conclusions" validate:"min=0,max=5"`
	References       int `bson:"references" json:"references" validate:"min=0,max=5"`
	Presentation     int `bson:"presentation" json:"presentation" validate:"min=0,max=5"`
	Relevance        int `bson:"relevance" json:"relevance" validate:"min=0,max=5"`
}

// Criteria returns the scores keyed by criterion name.
func (s ReviewScores) Criteria() map[string]int {
	return map[string]int{
		"originality":      s.Originality,
		"methodology":      s.Methodology,
		"significance":     s.Significance,
		"clarity":          s.Clarity,
		"literatureReview": s.LiteratureReview,
		"technicalQuality": s.TechnicalQuality,
		"results":          s.Results,
		"conclusions":      s.Conclusions,
		"references":       s.References,
		"presentation":     s.Presentation,
		"relevance":        s.Relevance,
	}
}

type Review struct {
	ID                   string         `bson:"_id" json:"id"`
	PaperID              string         `bson:"paperId" json:"paperId"`
	ReviewerID           string         `bson:"reviewerId" json:"reviewerId"`
	ReviewRound          int            `bson:"reviewRound" json:"reviewRound"`
	Scores               ReviewScores   `bson:"scores" json:"scores"`
	Strengths            string         `bson:"strengths" json:"strengths"`
	Weaknesses           string         `bson:"weaknesses" json:"weaknesses"`
	CommentsToAuthor     string         `bson:"commentsToAuthor" json:"commentsToAuthor"`
	ConfidentialComments string         `bson:"confidentialComments" json:"confidentialComments,omitempty"`
	EthicalConcerns      bool           `bson:"ethicalConcerns" json:"ethicalConcerns"`
	EthicsComments       string         `bson:"ethicsComments" json:"ethicsComments,omitempty"`
	Recommendation       Recommendation `bson:"recommendation" json:"recommendation"`
	AverageScore         float64        `bson:"averageScore" json:"averageScore"`
	WeightedScore        float64        `bson:"weightedScore" json:"weightedScore"`
	Status               ReviewStatus   `bson:"status" json:"status"`
	SubmittedAt          time.Time      `bson:"submittedAt" json:"submittedAt"`
	CreatedAt            time.Time      `bson:"createdAt" json:"createdAt"`
}

func (r Review) GetID() string { return r.ID }

// Redacted hides the reviewer's editor-only remarks.
func (r Review) Redacted() Review {
	r.ConfidentialComments = ""
	return r
}
