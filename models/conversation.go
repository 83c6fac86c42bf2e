package models

import (
	"fmt"

	"github.com/google/uuid"
)

type Conversation struct {
	Model
	Name          string     `json:"name"`
	IsGroup       bool       `json:"is_group" gorm:"default:false"`
	Participants  []User     `json:"participants" gorm:"many2many:conversation_participants;"`
	Admins        []User     `json:"admins" gorm:"many2many:conversation_admins;"`
	LastMessageID *uuid.UUID `json:"last_message_id" gorm:"type:uuid"`
	LastMessage   *Message   `json:"last_message" gorm:"foreignKey:LastMessageID"`
	AvatarKey     string     `json:"-"`
	AvatarURL     string     `json:"avatar_url"`
	// PairKey is set only for direct conversations: the canonical ordering
	// of the two participant ids. Its unique index is what enforces "at
	// most one direct conversation per pair" even under concurrent creation.
	PairKey *string `json:"-" gorm:"uniqueIndex"`
}

// DirectPairKey canonicalizes an unordered participant pair, so lookups
// and the unique index agree regardless of argument order.
func DirectPairKey(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%s", a, b)
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, u := range c.Participants {
		if u.ID == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) IsAdmin(userID uuid.UUID) bool {
	for _, u := range c.Admins {
		if u.ID == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Participants))
	for _, u := range c.Participants {
		ids = append(ids, u.ID)
	}
	return ids
}

func (c *Conversation) AdminIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Admins))
	for _, u := range c.Admins {
		ids = append(ids, u.ID)
	}
	return ids
}
