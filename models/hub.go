package models

import "time"

// Hub is a venue or event grouping papers, with its own reviewer roster.
type Hub struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	Owner       Ref[User] `bson:"owner" json:"owner"`
	Reviewers   []string  `bson:"reviewers" json:"reviewers"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (h Hub) GetID() string { return h.ID }

func (h *Hub) IsOwner(userID string) bool {
	return h.Owner.Is(userID)
}

func (h *Hub) HasReviewer(userID string) bool {
	for _, id := range h.Reviewers {
		if id == userID {
			return true
		}
	}
	return false
}
