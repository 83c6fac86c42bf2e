package db

import (
	"time"

	"github.com/chatterhq/chatter/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(notification *models.Notification) (*models.Notification, error)
	ListForUser(userID uuid.UUID, page, limit int) ([]models.Notification, int64, error)
	CountUnread(userID uuid.UUID) (int64, error)
	MarkRead(userID, notificationID uuid.UUID) (*models.Notification, error)
	MarkAllRead(userID uuid.UUID) error
	DeleteByEntity(entityType models.EntityType, entityIDs []uuid.UUID) error
}

type notificationRepo struct {
	DB *gorm.DB
}

func NewNotificationRepo(db *GormDB) NotificationRepository {
	return &notificationRepo{db.DB}
}

func (r *notificationRepo) Create(notification *models.Notification) (*models.Notification, error) {
	if err := r.DB.Create(notification).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create notification")
	}

	var created models.Notification
	if err := r.DB.Preload("Actor").Where("id = ?", notification.ID).First(&created).Error; err != nil {
		return nil, errors.Wrap(err, "failed to reload notification")
	}
	return &created, nil
}

func (r *notificationRepo) ListForUser(userID uuid.UUID, page, limit int) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int64
	if err := r.DB.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count notifications")
	}

	var notifications []models.Notification
	err := r.DB.Preload("Actor").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list notifications")
	}
	return notifications, total, nil
}

// CountUnread is independent of pagination so the badge reflects the true
// total regardless of which page is being viewed.
func (r *notificationRepo) CountUnread(userID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unread notifications")
	}
	return count, nil
}

func (r *notificationRepo) MarkRead(userID, notificationID uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	err := r.DB.Where("id = ? AND user_id = ?", notificationID, userID).First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find notification")
	}

	if !notification.IsRead {
		now := time.Now()
		notification.IsRead = true
		notification.ReadAt = &now
		if err := r.DB.Model(&notification).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
			return nil, errors.Wrap(err, "failed to mark notification read")
		}
	}
	return &notification, nil
}

func (r *notificationRepo) MarkAllRead(userID uuid.UUID) error {
	err := r.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()}).Error
	return errors.Wrap(err, "failed to mark all notifications read")
}

// DeleteByEntity is the cleanup sweep keyed on the triggering entity,
// used when the entity itself goes away.
func (r *notificationRepo) DeleteByEntity(entityType models.EntityType, entityIDs []uuid.UUID) error {
	if len(entityIDs) == 0 {
		return nil
	}
	err := r.DB.Where("entity_type = ? AND entity_id IN ?", entityType, entityIDs).
		Delete(&models.Notification{}).Error
	return errors.Wrap(err, "failed to delete notifications by entity")
}
