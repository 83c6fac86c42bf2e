package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationFollow      NotificationType = "follow"
	NotificationLikePost    NotificationType = "like_post"
	NotificationCommentPost NotificationType = "comment_post"
	NotificationLikeComment NotificationType = "like_comment"
	NotificationNewPost     NotificationType = "new_post"
	NotificationMessage     NotificationType = "message"
)

type EntityType string

const (
	EntityUser    EntityType = "user"
	EntityPost    EntityType = "post"
	EntityComment EntityType = "comment"
	EntityMessage EntityType = "message"
)

// EntityRef is a tagged reference to the entity that triggered a
// notification. Only the four known kinds are representable.
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   uuid.UUID  `json:"id"`
}

type Notification struct {
	Model
	UserID     uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index:idx_notifications_user_created,sort:desc"`
	ActorID    uuid.UUID         `json:"actor_id" gorm:"type:uuid;not null"`
	Actor      User              `json:"actor" gorm:"foreignKey:ActorID"`
	Type       NotificationType  `json:"type" gorm:"type:varchar(32);not null"`
	EntityType EntityType        `json:"entity_type" gorm:"type:varchar(16)"`
	EntityID   *uuid.UUID        `json:"entity_id" gorm:"type:uuid"`
	Metadata   datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	IsRead     bool              `json:"is_read" gorm:"default:false;index"`
	ReadAt     *time.Time        `json:"read_at"`
}

// Entity returns the tagged reference, or nil when the notification does
// not point at an entity.
func (n *Notification) Entity() *EntityRef {
	if n.EntityID == nil || n.EntityType == "" {
		return nil
	}
	return &EntityRef{Type: n.EntityType, ID: *n.EntityID}
}
