package models

import "github.com/google/uuid"

// MediaAsset references an object in the media store. Deleting an asset
// row does not delete the stored object; that is an explicit, separate
// step owned by the caller.
type MediaAsset struct {
	Model
	OwnerID  uuid.UUID `json:"owner_id" gorm:"type:uuid;index"`
	Key      string    `json:"key" gorm:"uniqueIndex;not null"`
	URL      string    `json:"url" gorm:"not null"`
	MimeType string    `json:"mime_type"`
	Size     int64     `json:"size"`
}
