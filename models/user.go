package models

import "github.com/google/uuid"

// User is the minimal identity projection the messaging core needs. The
// full profile lives with the identity directory; nothing here beyond
// id, names and avatar may leak onto the wire.
type User struct {
	Model
	Username  string `json:"username" gorm:"uniqueIndex;not null"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl"`
}

// UserSummary is the wire projection used inside serialized conversations,
// messages and notifications.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	AvatarURL string    `json:"avatarUrl"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	}
}
