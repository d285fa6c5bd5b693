package models

import "time"

// Roles understood by the review workflow.
const (
	RoleAuthor   = "author"
	RoleReviewer = "reviewer"
	RoleEditor   = "editor"
	RoleAdmin    = "admin"
)

type User struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Role         string    `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u User) GetID() string { return u.ID }

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsEditor reports editorial privileges; admins are editors too.
func (u *User) IsEditor() bool {
	return u.Role == RoleEditor || u.Role == RoleAdmin
}
