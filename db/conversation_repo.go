package db

import (
	"time"

	appErrors "github.com/chatterhq/chatter/errors"
	"github.com/chatterhq/chatter/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ConversationRepository persists conversation entities. Lookups scoped by
// user return nil (not an error) when the row is missing or the user is
// not a participant, so callers can conflate both into NotFound.
type ConversationRepository interface {
	FindDirectConversation(a, b uuid.UUID) (*models.Conversation, error)
	Create(participants []models.User, isGroup bool, name string, admins []models.User) (*models.Conversation, error)
	FindForUser(userID uuid.UUID) ([]models.Conversation, error)
	FindByIDForUser(conversationID, userID uuid.UUID) (*models.Conversation, error)
	AddParticipants(conversationID uuid.UUID, users []models.User) (*models.Conversation, error)
	RemoveParticipant(conversationID, targetID uuid.UUID) (*models.Conversation, error)
	SetAdmins(conversationID uuid.UUID, admins []models.User) (*models.Conversation, error)
	SetAvatar(conversationID uuid.UUID, key, url string) (*models.Conversation, error)
	SetLastMessage(conversationID, messageID uuid.UUID) error
	Delete(conversationID uuid.UUID) error
}

type conversationRepo struct {
	DB *gorm.DB
}

func NewConversationRepo(db *GormDB) ConversationRepository {
	return &conversationRepo{db.DB}
}

func (r *conversationRepo) preload(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Participants").
		Preload("Admins").
		Preload("LastMessage").
		Preload("LastMessage.Sender").
		Preload("LastMessage.Attachments")
}

func (r *conversationRepo) FindDirectConversation(a, b uuid.UUID) (*models.Conversation, error) {
	pairKey := models.DirectPairKey(a, b)

	var conversation models.Conversation
	err := r.preload(r.DB).Where("pair_key = ?", pairKey).First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find direct conversation")
	}
	return &conversation, nil
}

func (r *conversationRepo) Create(participants []models.User, isGroup bool, name string, admins []models.User) (*models.Conversation, error) {
	if !isGroup && len(participants) != 2 {
		return nil, appErrors.ValidationError("direct conversation must have exactly two participants")
	}

	conversation := models.Conversation{
		IsGroup:      isGroup,
		Participants: participants,
	}
	if isGroup {
		conversation.Name = name
		conversation.Admins = admins
	} else {
		pairKey := models.DirectPairKey(participants[0].ID, participants[1].ID)
		conversation.PairKey = &pairKey
	}

	if err := r.DB.Create(&conversation).Error; err != nil {
		// Two first-contacts racing on the same pair: the unique index on
		// pair_key makes the loser converge on the winner's row.
		if !isGroup && errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.FindDirectConversation(participants[0].ID, participants[1].ID)
		}
		return nil, errors.Wrap(err, "failed to create conversation")
	}

	return r.findByID(conversation.ID)
}

func (r *conversationRepo) findByID(conversationID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.preload(r.DB).Where("id = ?", conversationID).First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load conversation")
	}
	return &conversation, nil
}

func (r *conversationRepo) FindForUser(userID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.preload(r.DB).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Order("conversations.updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	return conversations, nil
}

func (r *conversationRepo) FindByIDForUser(conversationID, userID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.preload(r.DB).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("conversations.id = ? AND cp.user_id = ?", conversationID, userID).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load conversation")
	}
	return &conversation, nil
}

func (r *conversationRepo) AddParticipants(conversationID uuid.UUID, users []models.User) (*models.Conversation, error) {
	conversation := models.Conversation{Model: models.Model{ID: conversationID}}
	if err := r.DB.Model(&conversation).Association("Participants").Append(users); err != nil {
		return nil, errors.Wrap(err, "failed to add participants")
	}
	if err := r.touch(conversationID); err != nil {
		return nil, err
	}
	return r.findByID(conversationID)
}

func (r *conversationRepo) RemoveParticipant(conversationID, targetID uuid.UUID) (*models.Conversation, error) {
	conversation := models.Conversation{Model: models.Model{ID: conversationID}}
	target := models.User{Model: models.Model{ID: targetID}}

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&conversation).Association("Participants").Delete(&target); err != nil {
			return errors.Wrap(err, "failed to remove participant")
		}
		if err := tx.Model(&conversation).Association("Admins").Delete(&target); err != nil {
			return errors.Wrap(err, "failed to remove admin")
		}
		// A direct thread that loses a member releases its pair key in the
		// same transaction, so the pair can start a fresh thread later
		// instead of converging on this one forever.
		if err := tx.Model(&models.Conversation{}).
			Where("id = ? AND is_group = ?", conversationID, false).
			Update("pair_key", nil).Error; err != nil {
			return errors.Wrap(err, "failed to release pair key")
		}
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now()).Error; err != nil {
			return errors.Wrap(err, "failed to touch conversation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.findByID(conversationID)
}

func (r *conversationRepo) SetAdmins(conversationID uuid.UUID, admins []models.User) (*models.Conversation, error) {
	conversation := models.Conversation{Model: models.Model{ID: conversationID}}
	if err := r.DB.Model(&conversation).Association("Admins").Replace(admins); err != nil {
		return nil, errors.Wrap(err, "failed to set admins")
	}
	return r.findByID(conversationID)
}

func (r *conversationRepo) SetAvatar(conversationID uuid.UUID, key, url string) (*models.Conversation, error) {
	err := r.DB.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{"avatar_key": key, "avatar_url": url}).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to set avatar")
	}
	return r.findByID(conversationID)
}

// SetLastMessage moves the recency pointer and bumps updated_at so the
// conversation list re-sorts. Done explicitly by the caller, never by a
// persistence hook.
func (r *conversationRepo) SetLastMessage(conversationID, messageID uuid.UUID) error {
	err := r.DB.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{"last_message_id": messageID, "updated_at": time.Now()}).Error
	return errors.Wrap(err, "failed to set last message")
}

func (r *conversationRepo) touch(conversationID uuid.UUID) error {
	err := r.DB.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now()).Error
	return errors.Wrap(err, "failed to touch conversation")
}

// Delete removes the conversation row and its membership rows. Cascading
// to messages and attachments is the caller's job.
func (r *conversationRepo) Delete(conversationID uuid.UUID) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM conversation_participants WHERE conversation_id = ?", conversationID).Error; err != nil {
			return errors.Wrap(err, "failed to clear participants")
		}
		if err := tx.Exec("DELETE FROM conversation_admins WHERE conversation_id = ?", conversationID).Error; err != nil {
			return errors.Wrap(err, "failed to clear admins")
		}
		if err := tx.Where("id = ?", conversationID).Delete(&models.Conversation{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete conversation")
		}
		return nil
	})
}
