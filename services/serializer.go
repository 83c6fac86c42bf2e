package services

import (
	"time"

	"github.com/chatterhq/chatter/models"
	"github.com/google/uuid"
)

// Wire projections. Participants and senders are always reduced to the
// UserSummary shape; the raw identity record never leaves the service.

type SerializedAttachment struct {
	ID       uuid.UUID `json:"id"`
	URL      string    `json:"url"`
	Key      string    `json:"key"`
	MimeType string    `json:"mimeType"`
	Size     int64     `json:"size"`
}

type SerializedLastMessage struct {
	ID        uuid.UUID           `json:"id"`
	Content   string              `json:"content"`
	Sender    *models.UserSummary `json:"sender"`
	CreatedAt time.Time           `json:"createdAt"`
}

type SerializedConversation struct {
	ID           uuid.UUID              `json:"id"`
	Name         string                 `json:"name,omitempty"`
	IsGroup      bool                   `json:"isGroup"`
	AvatarURL    string                 `json:"avatarUrl,omitempty"`
	Participants []models.UserSummary   `json:"participants"`
	Admins       []uuid.UUID            `json:"admins"`
	LastMessage  *SerializedLastMessage `json:"lastMessage"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
	IsMine       bool                   `json:"isMine"`
}

type SerializedMessage struct {
	ID             uuid.UUID              `json:"id"`
	ConversationID uuid.UUID              `json:"conversationId"`
	Sender         *models.UserSummary    `json:"sender"`
	Content        string                 `json:"content"`
	Attachments    []SerializedAttachment `json:"attachments"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	IsMine         bool                   `json:"isMine"`
	DeliveredTo    []uuid.UUID            `json:"deliveredTo"`
	ReadBy         []uuid.UUID            `json:"readBy"`
}

type SerializedNotification struct {
	ID         uuid.UUID              `json:"id"`
	Type       models.NotificationType `json:"type"`
	Actor      *models.UserSummary    `json:"actor"`
	Entity     *models.EntityRef      `json:"entity"`
	Metadata   map[string]interface{} `json:"metadata"`
	IsRead     bool                   `json:"isRead"`
	ReadAt     *time.Time             `json:"readAt,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	PreviewURL string                 `json:"previewUrl,omitempty"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Count int   `json:"count"`
	Total int64 `json:"total"`
}

type MessagePage struct {
	Items      []SerializedMessage `json:"items"`
	Pagination Pagination          `json:"pagination"`
}

type NotificationPage struct {
	Items       []SerializedNotification `json:"items"`
	TotalUnread int64                    `json:"totalUnread"`
	Pagination  Pagination               `json:"pagination"`
}

// serializeConversation projects a conversation for a given viewer; isMine
// is computed here, never stored.
func serializeConversation(conversation *models.Conversation, viewerID uuid.UUID) *SerializedConversation {
	participants := make([]models.UserSummary, 0, len(conversation.Participants))
	for _, u := range conversation.Participants {
		participants = append(participants, u.Summary())
	}

	out := &SerializedConversation{
		ID:           conversation.ID,
		Name:         conversation.Name,
		IsGroup:      conversation.IsGroup,
		AvatarURL:    conversation.AvatarURL,
		Participants: participants,
		Admins:       conversation.AdminIDs(),
		CreatedAt:    conversation.CreatedAt,
		UpdatedAt:    conversation.UpdatedAt,
		IsMine:       conversation.HasParticipant(viewerID),
	}

	if conversation.LastMessage != nil {
		summary := conversation.LastMessage.Sender.Summary()
		out.LastMessage = &SerializedLastMessage{
			ID:        conversation.LastMessage.ID,
			Content:   conversation.LastMessage.Content,
			Sender:    &summary,
			CreatedAt: conversation.LastMessage.CreatedAt,
		}
	}
	return out
}

func serializeMessage(message *models.Message, viewerID uuid.UUID) *SerializedMessage {
	attachments := make([]SerializedAttachment, 0, len(message.Attachments))
	for _, asset := range message.Attachments {
		attachments = append(attachments, SerializedAttachment{
			ID:       asset.ID,
			URL:      asset.URL,
			Key:      asset.Key,
			MimeType: asset.MimeType,
			Size:     asset.Size,
		})
	}

	summary := message.Sender.Summary()
	return &SerializedMessage{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		Sender:         &summary,
		Content:        message.Content,
		Attachments:    attachments,
		CreatedAt:      message.CreatedAt,
		UpdatedAt:      message.UpdatedAt,
		IsMine:         message.SenderID == viewerID,
		DeliveredTo:    message.DeliveredTo(),
		ReadBy:         message.ReadBy(),
	}
}

func serializeNotification(notification *models.Notification, previewURL string) *SerializedNotification {
	summary := notification.Actor.Summary()
	return &SerializedNotification{
		ID:         notification.ID,
		Type:       notification.Type,
		Actor:      &summary,
		Entity:     notification.Entity(),
		Metadata:   map[string]interface{}(notification.Metadata),
		IsRead:     notification.IsRead,
		ReadAt:     notification.ReadAt,
		CreatedAt:  notification.CreatedAt,
		PreviewURL: previewURL,
	}
}
