package db

import (
	"github.com/chatterhq/chatter/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// PostRepository exists for notification preview enrichment only.
type PostRepository interface {
	GetPreviewURLs(postIDs []uuid.UUID) (map[uuid.UUID]string, error)
}

type postRepo struct {
	DB *gorm.DB
}

func NewPostRepo(db *GormDB) PostRepository {
	return &postRepo{db.DB}
}

// GetPreviewURLs resolves the first media URL for each post in a single
// batch query, never one query per notification.
func (r *postRepo) GetPreviewURLs(postIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	previews := make(map[uuid.UUID]string)
	if len(postIDs) == 0 {
		return previews, nil
	}

	var posts []models.Post
	err := r.DB.Preload("Media").Where("id IN ?", postIDs).Find(&posts).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load post previews")
	}

	for _, post := range posts {
		if len(post.Media) > 0 {
			previews[post.ID] = post.Media[0].URL
		}
	}
	return previews, nil
}
