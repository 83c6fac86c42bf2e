package db

import (
	"github.com/chatterhq/chatter/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// UserRepository resolves user ids to their minimal profile projections.
// The identity directory owns the rest of the profile.
type UserRepository interface {
	FindUserByID(userID uuid.UUID) (*models.User, error)
	FindUsersByIDs(userIDs []uuid.UUID) ([]models.User, error)
}

type userRepo struct {
	DB *gorm.DB
}

func NewUserRepo(db *GormDB) UserRepository {
	return &userRepo{db.DB}
}

func (r *userRepo) FindUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find user")
	}
	return &user, nil
}

func (r *userRepo) FindUsersByIDs(userIDs []uuid.UUID) ([]models.User, error) {
	var users []models.User
	if len(userIDs) == 0 {
		return users, nil
	}
	if err := r.DB.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find users")
	}
	return users, nil
}
