package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength bounds sanitized message content.
const MaxMessageLength = 2000

type Message struct {
	Model
	ConversationID uuid.UUID        `json:"conversation_id" gorm:"type:uuid;not null;index:idx_messages_conversation_created,sort:desc"`
	SenderID       uuid.UUID        `json:"sender_id" gorm:"type:uuid;not null;index"`
	Sender         User             `json:"sender" gorm:"foreignKey:SenderID"`
	Content        string           `json:"content" gorm:"type:varchar(2000)"`
	Attachments    []MediaAsset     `json:"attachments" gorm:"many2many:message_attachments;"`
	Receipts       []MessageReceipt `json:"-" gorm:"foreignKey:MessageID"`
}

const (
	ReceiptDelivered = "delivered"
	ReceiptRead      = "read"
)

// MessageReceipt is one row per (message, user, kind). The composite
// primary key makes delivery/read marking a set-union append: re-inserts
// conflict and are dropped, ids are never removed.
type MessageReceipt struct {
	MessageID uuid.UUID `json:"message_id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	Kind      string    `json:"kind" gorm:"type:varchar(16);primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *Message) receiptIDs(kind string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.Receipts))
	for _, r := range m.Receipts {
		if r.Kind == kind {
			ids = append(ids, r.UserID)
		}
	}
	return ids
}

func (m *Message) DeliveredTo() []uuid.UUID {
	return m.receiptIDs(ReceiptDelivered)
}

func (m *Message) ReadBy() []uuid.UUID {
	return m.receiptIDs(ReceiptRead)
}
