package services

import (
	"log"
	"mime/multipart"
	"strings"

	"github.com/chatterhq/chatter/config"
	"github.com/chatterhq/chatter/db"
	errs "github.com/chatterhq/chatter/errors"
	"github.com/chatterhq/chatter/models"
	"github.com/chatterhq/chatter/realtime"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// MessagingService is the single authorization and orchestration boundary
// for conversations and messages. Only this service talks to the stores
// and emits realtime or notification events.
type MessagingService interface {
	CreateConversation(creatorID uuid.UUID, participantIDs []uuid.UUID, name string, isGroup bool) (*SerializedConversation, error)
	GetConversations(userID uuid.UUID) ([]*SerializedConversation, error)
	GetConversation(conversationID, userID uuid.UUID) (*SerializedConversation, error)
	AddParticipants(conversationID, userID uuid.UUID, newParticipantIDs []uuid.UUID) (*SerializedConversation, error)
	SetConversationAdmins(conversationID, userID uuid.UUID, adminIDs []uuid.UUID) (*SerializedConversation, error)
	RemoveParticipant(conversationID, userID, targetID uuid.UUID) (*SerializedConversation, error)
	LeaveConversation(conversationID, userID uuid.UUID) error
	DeleteConversation(conversationID, userID uuid.UUID) error
	SetConversationAvatar(conversationID, userID uuid.UUID, file *multipart.FileHeader) (*SerializedConversation, error)
	CreateMessage(conversationID, senderID uuid.UUID, content string, files []*multipart.FileHeader) (*SerializedMessage, error)
	GetMessages(conversationID, userID uuid.UUID, page, limit int) (*MessagePage, error)
	MarkMessagesDelivered(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error
	MarkMessagesRead(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error

	// realtime.IntentHandler
	HandleSendMessage(conversationID, senderID uuid.UUID, content string) error
	HandleMarkDelivered(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error
	HandleMarkRead(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error
}

type messagingService struct {
	Config        *config.Config
	convRepo      db.ConversationRepository
	msgRepo       db.MessageRepository
	userRepo      db.UserRepository
	mediaRepo     db.MediaRepository
	notifications NotificationService
	gateway       realtime.Broadcaster
	sanitizer     *bluemonday.Policy
}

func NewMessagingService(
	convRepo db.ConversationRepository,
	msgRepo db.MessageRepository,
	userRepo db.UserRepository,
	mediaRepo db.MediaRepository,
	notifications NotificationService,
	gateway realtime.Broadcaster,
	conf *config.Config,
) MessagingService {
	return &messagingService{
		Config:        conf,
		convRepo:      convRepo,
		msgRepo:       msgRepo,
		userRepo:      userRepo,
		mediaRepo:     mediaRepo,
		notifications: notifications,
		gateway:       gateway,
		sanitizer:     bluemonday.StrictPolicy(),
	}
}

// broadcast helpers never fail the primary operation; without a gateway
// they are no-ops.

func (s *messagingService) emitToUsers(event string, payload interface{}, userIDs []uuid.UUID) {
	if s.gateway == nil {
		return
	}
	s.gateway.EmitToUsers(event, payload, userIDs)
}

func (s *messagingService) emitToRoom(conversationID uuid.UUID, event string, payload interface{}) {
	if s.gateway == nil {
		return
	}
	s.gateway.EmitToRoom(conversationID, event, payload)
}

// ensureParticipants dedups the creator plus requested ids and enforces
// the minimum size.
func ensureParticipants(participantIDs []uuid.UUID, creatorID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	unique := make([]uuid.UUID, 0, len(participantIDs)+1)
	for _, id := range append([]uuid.UUID{creatorID}, participantIDs...) {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	if len(unique) < 2 {
		return nil, errs.ValidationError("conversation requires at least two participants")
	}
	return unique, nil
}

func (s *messagingService) resolveUsers(userIDs []uuid.UUID) ([]models.User, error) {
	users, err := s.userRepo.FindUsersByIDs(userIDs)
	if err != nil {
		return nil, err
	}
	if len(users) != len(userIDs) {
		return nil, errs.ValidationError("one or more participants do not exist")
	}
	return users, nil
}

func (s *messagingService) CreateConversation(creatorID uuid.UUID, participantIDs []uuid.UUID, name string, isGroup bool) (*SerializedConversation, error) {
	unique, err := ensureParticipants(participantIDs, creatorID)
	if err != nil {
		return nil, err
	}

	if !isGroup && len(unique) != 2 {
		return nil, errs.ValidationError("direct conversation must have exactly two participants")
	}

	// Direct threads are deduplicated per pair: creation is idempotent.
	if !isGroup {
		existing, err := s.convRepo.FindDirectConversation(unique[0], unique[1])
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return serializeConversation(existing, creatorID), nil
		}
	}

	users, err := s.resolveUsers(unique)
	if err != nil {
		return nil, err
	}

	var admins []models.User
	if isGroup {
		for _, u := range users {
			if u.ID == creatorID {
				admins = []models.User{u}
				break
			}
		}
	}

	conversation, err := s.convRepo.Create(users, isGroup, name, admins)
	if err != nil {
		return nil, err
	}

	s.emitToUsers("conversation:new", serializeConversation(conversation, creatorID), conversation.ParticipantIDs())

	return serializeConversation(conversation, creatorID), nil
}

func (s *messagingService) GetConversations(userID uuid.UUID) ([]*SerializedConversation, error) {
	conversations, err := s.convRepo.FindForUser(userID)
	if err != nil {
		return nil, err
	}

	out := make([]*SerializedConversation, 0, len(conversations))
	for i := range conversations {
		out = append(out, serializeConversation(&conversations[i], userID))
	}
	return out, nil
}

// requireConversation conflates "missing" and "not a participant" into
// NotFound so existence never leaks to non-members.
func (s *messagingService) requireConversation(conversationID, userID uuid.UUID) (*models.Conversation, error) {
	conversation, err := s.convRepo.FindByIDForUser(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, errs.NotFound("conversation not found")
	}
	return conversation, nil
}

func (s *messagingService) GetConversation(conversationID, userID uuid.UUID) (*SerializedConversation, error) {
	conversation, err := s.requireConversation(conversationID, userID)
	if err != nil {
		return nil, err
	}
	return serializeConversation(conversation, userID), nil
}

func (s *messagingService) AddParticipants(conversationID, userID uuid.UUID, newParticipantIDs []uuid.UUID) (*SerializedConversation, error) {
	conversation, err := s.requireConversation(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !conversation.IsGroup {
		return nil, errs.ValidationError("cannot add participants to a direct conversation")
	}
	if !conversation.IsAdmin(userID) {
		return nil, errs.Forbidden("only admins can add participants")
	}

	toAdd := make([]uuid.UUID, 0, len(newParticipantIDs))
	for _, id := range newParticipantIDs {
		if id != uuid.Nil && !conversation.HasParticipant(id) {
			toAdd = append(toAdd, id)
		}
	}
	if len(toAdd) == 0 {
		return serializeConversation(conversation, userID), nil
	}

	users, err := s.resolveUsers(toAdd)
	if err != nil {
		return nil, err
	}

	updated, err := s.convRepo.AddParticipants(conversationID, users)
	if err != nil {
		return nil, err
	}

	s.emitToUsers("conversation:update", serializeConversation(updated, userID), updated.ParticipantIDs())

	return serializeConversation(updated, userID), nil
}

// SetConversationAdmins replaces the admin set of a group. Every admin
// must already be a participant and the set can never end up empty.
func (s *messagingService) SetConversationAdmins(conversationID, userID uuid.UUID, adminIDs []uuid.UUID) (*SerializedConversation, error) {
	conversation, err := s.requireConversation(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !conversation.IsGroup {
		return nil, errs.ValidationError("direct conversations have no admins")
	}
	if !conversation.IsAdmin(userID) {
		return nil, errs.Forbidden("only admins can manage admins")
	}
	if len(adminIDs) == 0 {
		return nil, errs.ValidationError("a group needs at least one admin")
	}
	for _, id := range adminIDs {
		if !conversation.HasParticipant(id) {
			return nil, errs.ValidationError("admins must be participants")
		}
	}

	admins, err := s.resolveUsers(adminIDs)
	if err != nil {
		return nil, err
	}

	updated, err := s.convRepo.SetAdmins(conversationID, admins)
	if err != nil {
		return nil, err
	}

	s.emitToUsers("conversation:update", serializeConversation(updated, userID), updated.ParticipantIDs())

	return serializeConversation(updated, userID), nil
}

func (s *messagingService) RemoveParticipant(conversationID, userID, targetID uuid.UUID) (*SerializedConversation, error) {
	conversation, err := s.requireConversation(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !conversation.IsGroup {
		return nil, errs.ValidationError("cannot remove participants from a direct conversation")
	}
	// Admins may remove anyone; anyone may remove themselves.
	if !conversation.IsAdmin(userID) && userID != targetID {
		return nil, errs.Forbidden("only admins can remove participants")
	}

	updated, err := s.convRepo.RemoveParticipant(conversationID, targetID)
	if err != nil {
		return nil, err
	}

	s.emitToUsers("conversation:update", serializeConversation(updated, userID), updated.ParticipantIDs())
	s.emitToUsers("conversation:removed", map[string]interface{}{"conversationId": conversationID}, []uuid.UUID{targetID})

	return serializeConversation(updated, userID), nil
}

// LeaveConversation is self-removal: always permitted for a participant,
// admin or not, in group or direct threads alike.
func (s *messagingService) LeaveConversation(conversationID, userID uuid.UUID) error {
	conversation, err := s.requireConversation(conversationID, userID)
	if err != nil {
		return err
	}

	updated, err := s.convRepo.RemoveParticipant(conversation.ID, userID)
	if err != nil {
		return err
	}

	s.emitToUsers("conversation:update", serializeConversation(updated, userID), updated.ParticipantIDs())
	s.emitToUsers("conversation:removed", map[string]interface{}{"conversationId": conversationID}, []uuid.UUID{userID})

	return nil
}

// DeleteConversation cascades explicitly: collect attachments, delete
// messages, delete the conversation, broadcast, then best-effort media
// cleanup. A storage failure after the commit is logged, never rolled
// back.
func (s *messagingService) DeleteConversation(conversationID, userID uuid.UUID) error {
	conversation, err := s.requireConversation(conversationID, userID)
	if err != nil {
		return err
	}
	// Direct conversations have no admin concept; either participant may
	// delete them. Group deletion stays admin-only.
	if conversation.IsGroup && !conversation.IsAdmin(userID) {
		return errs.Forbidden("only admins can delete the conversation")
	}

	participantIDs := conversation.ParticipantIDs()

	assets, messageIDs, err := s.msgRepo.DeleteByConversation(conversationID)
	if err != nil {
		return err
	}
	if err := s.convRepo.Delete(conversationID); err != nil {
		return err
	}

	s.emitToUsers("conversation:deleted", map[string]interface{}{"conversationId": conversationID}, participantIDs)

	for _, asset := range assets {
		if err := s.mediaRepo.DeleteFromS3(asset.Key); err != nil {
			log.Printf("failed to delete attachment %s: %v", asset.Key, err)
		}
	}

	if s.notifications != nil && len(messageIDs) > 0 {
		if err := s.notifications.CleanupForEntity(models.EntityMessage, messageIDs); err != nil {
			log.Printf("failed to sweep message notifications: %v", err)
		}
	}

	if conversation.AvatarKey != "" {
		if err := s.mediaRepo.DeleteFromS3(conversation.AvatarKey); err != nil {
			log.Printf("failed to delete conversation avatar %s: %v", conversation.AvatarKey, err)
		}
	}

	return nil
}

func (s *messagingService) SetConversationAvatar(conversationID, userID uuid.UUID, file *multipart.FileHeader) (*SerializedConversation, error) {
	if file == nil {
		return nil, errs.ValidationError("no image file uploaded")
	}

	conversation, err := s.requireConversation(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !conversation.IsGroup {
		return nil, errs.NotFound("group conversation not found")
	}
	if !conversation.IsAdmin(userID) {
		return nil, errs.Forbidden("only admins can change the group avatar")
	}

	asset, err := s.mediaRepo.UploadToS3(file, userID, "avatars")
	if err != nil {
		return nil, err
	}

	if conversation.AvatarKey != "" {
		if err := s.mediaRepo.DeleteFromS3(conversation.AvatarKey); err != nil {
			log.Printf("failed to delete previous avatar %s: %v", conversation.AvatarKey, err)
		}
	}

	updated, err := s.convRepo.SetAvatar(conversationID, asset.Key, asset.URL)
	if err != nil {
		return nil, err
	}

	s.emitToUsers("conversation:update", serializeConversation(updated, userID), updated.ParticipantIDs())

	return serializeConversation(updated, userID), nil
}

func (s *messagingService) CreateMessage(conversationID, senderID uuid.UUID, content string, files []*multipart.FileHeader) (*SerializedMessage, error) {
	conversation, err := s.requireConversation(conversationID, senderID)
	if err != nil {
		return nil, err
	}

	sanitized := strings.TrimSpace(s.sanitizer.Sanitize(content))
	if sanitized == "" && len(files) == 0 {
		return nil, errs.ValidationError("message cannot be empty")
	}
	if len(sanitized) > models.MaxMessageLength {
		return nil, errs.ValidationError("message is too long")
	}

	var attachments []models.MediaAsset
	for _, file := range files {
		asset, err := s.mediaRepo.UploadToS3(file, senderID, "messages")
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, *asset)
	}

	message, err := s.msgRepo.Create(&models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        sanitized,
		Attachments:    attachments,
	})
	if err != nil {
		return nil, err
	}

	// Explicit recency update; no persistence hooks involved.
	if err := s.convRepo.SetLastMessage(conversationID, message.ID); err != nil {
		log.Printf("failed to update last message pointer: %v", err)
	}

	serialized := serializeMessage(message, senderID)
	participantIDs := conversation.ParticipantIDs()

	// Dual delivery: personal channels catch participants anywhere, the
	// room catches every device actively viewing the thread.
	s.emitToUsers("message:new", serialized, participantIDs)
	s.emitToRoom(conversationID, "message:new", serialized)

	go s.notifyParticipants(conversation, message)

	return serialized, nil
}

// notifyParticipants is fire-and-forget: failures are logged, never
// surfaced to the sender.
func (s *messagingService) notifyParticipants(conversation *models.Conversation, message *models.Message) {
	if s.notifications == nil {
		return
	}
	messageID := message.ID
	for _, participantID := range conversation.ParticipantIDs() {
		if participantID == message.SenderID {
			continue
		}
		_, err := s.notifications.CreateNotification(CreateNotificationParams{
			UserID:  participantID,
			ActorID: message.SenderID,
			Type:    models.NotificationMessage,
			Entity:  &models.EntityRef{Type: models.EntityMessage, ID: messageID},
			Metadata: map[string]interface{}{
				"conversationId": conversation.ID.String(),
			},
		})
		if err != nil {
			log.Printf("failed to notify participant %s: %v", participantID, err)
		}
	}
}

func (s *messagingService) GetMessages(conversationID, userID uuid.UUID, page, limit int) (*MessagePage, error) {
	if _, err := s.requireConversation(conversationID, userID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 30
	}

	messages, total, err := s.msgRepo.ListByConversation(conversationID, page, limit)
	if err != nil {
		return nil, err
	}

	// Store pages newest-first; the wire format is chronological within
	// each page.
	items := make([]SerializedMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		items = append(items, *serializeMessage(&messages[i], userID))
	}

	return &MessagePage{
		Items: items,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Count: len(items),
			Total: total,
		},
	}, nil
}

func (s *messagingService) MarkMessagesDelivered(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error {
	conversation, err := s.requireConversation(conversationID, userID)
	if err != nil {
		return err
	}

	if err := s.msgRepo.MarkDelivered(conversationID, messageIDs, userID); err != nil {
		return err
	}

	payload := map[string]interface{}{
		"conversationId": conversationID,
		"messageIds":     messageIDs,
		"userId":         userID,
	}
	s.emitToUsers("message:delivered", payload, conversation.ParticipantIDs())
	s.emitToRoom(conversationID, "message:delivered", payload)

	return nil
}

func (s *messagingService) MarkMessagesRead(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error {
	conversation, err := s.requireConversation(conversationID, userID)
	if err != nil {
		return err
	}

	if err := s.msgRepo.MarkRead(conversationID, messageIDs, userID); err != nil {
		return err
	}

	payload := map[string]interface{}{
		"conversationId": conversationID,
		"messageIds":     messageIDs,
		"readerId":       userID,
	}
	s.emitToUsers("message:read", payload, conversation.ParticipantIDs())
	s.emitToRoom(conversationID, "message:read", payload)

	return nil
}

// Socket intent adapters.

func (s *messagingService) HandleSendMessage(conversationID, senderID uuid.UUID, content string) error {
	_, err := s.CreateMessage(conversationID, senderID, content, nil)
	return err
}

func (s *messagingService) HandleMarkDelivered(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error {
	return s.MarkMessagesDelivered(conversationID, messageIDs, userID)
}

func (s *messagingService) HandleMarkRead(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error {
	return s.MarkMessagesRead(conversationID, messageIDs, userID)
}
