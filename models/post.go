package models

import "github.com/google/uuid"

// Post carries just enough for notification preview enrichment; the feed
// itself is outside the messaging core.
type Post struct {
	Model
	AuthorID uuid.UUID    `json:"author_id" gorm:"type:uuid;index"`
	Caption  string       `json:"caption"`
	Media    []MediaAsset `json:"media" gorm:"many2many:post_media;"`
}
