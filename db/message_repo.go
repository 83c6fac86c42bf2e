package db

import (
	"github.com/chatterhq/chatter/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository persists messages and their delivery/read receipt
// sets. Receipt appends are idempotent: marking twice is a no-op.
type MessageRepository interface {
	Create(message *models.Message) (*models.Message, error)
	ListByConversation(conversationID uuid.UUID, page, limit int) ([]models.Message, int64, error)
	MarkDelivered(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error
	MarkRead(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error
	DeleteByConversation(conversationID uuid.UUID) ([]models.MediaAsset, []uuid.UUID, error)
}

type messageRepo struct {
	DB *gorm.DB
}

func NewMessageRepo(db *GormDB) MessageRepository {
	return &messageRepo{db.DB}
}

func (r *messageRepo) preload(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Sender").
		Preload("Attachments").
		Preload("Receipts")
}

// Create inserts the message and seeds deliveredTo with the sender, in one
// transaction so a message never exists without its sender receipt.
func (r *messageRepo) Create(message *models.Message) (*models.Message, error) {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return errors.Wrap(err, "failed to create message")
		}
		receipt := models.MessageReceipt{
			MessageID: message.ID,
			UserID:    message.SenderID,
			Kind:      models.ReceiptDelivered,
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return errors.Wrap(err, "failed to seed sender receipt")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var created models.Message
	if err := r.preload(r.DB).Where("id = ?", message.ID).First(&created).Error; err != nil {
		return nil, errors.Wrap(err, "failed to reload message")
	}
	return &created, nil
}

// ListByConversation pages newest-first; callers reverse each page so the
// wire format stays chronological.
func (r *messageRepo) ListByConversation(conversationID uuid.UUID, page, limit int) ([]models.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 30
	}

	var total int64
	if err := r.DB.Model(&models.Message{}).Where("conversation_id = ?", conversationID).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count messages")
	}

	var messages []models.Message
	err := r.preload(r.DB).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list messages")
	}
	return messages, total, nil
}

func (r *messageRepo) MarkDelivered(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error {
	return r.appendReceipts(conversationID, messageIDs, userID, models.ReceiptDelivered)
}

func (r *messageRepo) MarkRead(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error {
	return r.appendReceipts(conversationID, messageIDs, userID, models.ReceiptRead)
}

func (r *messageRepo) appendReceipts(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID, kind string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	// Only messages that actually belong to the conversation count.
	var validIDs []uuid.UUID
	err := r.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND id IN ?", conversationID, messageIDs).
		Pluck("id", &validIDs).Error
	if err != nil {
		return errors.Wrap(err, "failed to resolve messages")
	}
	if len(validIDs) == 0 {
		return nil
	}

	receipts := make([]models.MessageReceipt, 0, len(validIDs))
	for _, id := range validIDs {
		receipts = append(receipts, models.MessageReceipt{
			MessageID: id,
			UserID:    userID,
			Kind:      kind,
		})
	}

	err = r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipts).Error
	return errors.Wrap(err, "failed to append receipts")
}

// DeleteByConversation bulk-deletes a conversation's messages and returns
// the attachment assets and message ids that were removed, so the caller
// can clean up the media store and sweep notifications.
func (r *messageRepo) DeleteByConversation(conversationID uuid.UUID) ([]models.MediaAsset, []uuid.UUID, error) {
	var assets []models.MediaAsset
	err := r.DB.
		Joins("JOIN message_attachments ma ON ma.media_asset_id = media_assets.id").
		Joins("JOIN messages m ON m.id = ma.message_id").
		Where("m.conversation_id = ?", conversationID).
		Find(&assets).Error
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to collect attachments")
	}

	var messageIDs []uuid.UUID
	err = r.DB.Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Pluck("id", &messageIDs).Error
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to collect message ids")
	}

	err = r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("last_message_id", nil).Error; err != nil {
			return errors.Wrap(err, "failed to clear last message pointer")
		}
		if err := tx.Exec("DELETE FROM message_receipts WHERE message_id IN (SELECT id FROM messages WHERE conversation_id = ?)", conversationID).Error; err != nil {
			return errors.Wrap(err, "failed to delete receipts")
		}
		if err := tx.Exec("DELETE FROM message_attachments WHERE message_id IN (SELECT id FROM messages WHERE conversation_id = ?)", conversationID).Error; err != nil {
			return errors.Wrap(err, "failed to delete attachment links")
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.Message{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete messages")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return assets, messageIDs, nil
}
