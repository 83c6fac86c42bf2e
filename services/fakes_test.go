package services

import (
	"mime/multipart"
	"sync"
	"time"

	errs "github.com/chatterhq/chatter/errors"
	"github.com/chatterhq/chatter/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// In-memory repository fakes for service tests.

type fakeUserRepo struct {
	users map[uuid.UUID]models.User
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[uuid.UUID]models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) FindUserByID(userID uuid.UUID) (*models.User, error) {
	if u, ok := r.users[userID]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) FindUsersByIDs(userIDs []uuid.UUID) ([]models.User, error) {
	var found []models.User
	for _, id := range userIDs {
		if u, ok := r.users[id]; ok {
			found = append(found, u)
		}
	}
	return found, nil
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*models.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[uuid.UUID]*models.Conversation)}
}

func (r *fakeConversationRepo) clone(c *models.Conversation) *models.Conversation {
	out := *c
	out.Participants = append([]models.User(nil), c.Participants...)
	out.Admins = append([]models.User(nil), c.Admins...)
	return &out
}

func (r *fakeConversationRepo) FindDirectConversation(a, b uuid.UUID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pairKey := models.DirectPairKey(a, b)
	for _, c := range r.conversations {
		if c.PairKey != nil && *c.PairKey == pairKey {
			return r.clone(c), nil
		}
	}
	return nil, nil
}

func (r *fakeConversationRepo) Create(participants []models.User, isGroup bool, name string, admins []models.User) (*models.Conversation, error) {
	if !isGroup && len(participants) != 2 {
		return nil, errs.ValidationError("direct conversation must have exactly two participants")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	conversation := &models.Conversation{
		Model:        models.Model{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
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
	r.conversations[conversation.ID] = conversation
	return r.clone(conversation), nil
}

func (r *fakeConversationRepo) FindForUser(userID uuid.UUID) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Conversation
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *r.clone(c))
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) FindByIDForUser(conversationID, userID uuid.UUID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok || !c.HasParticipant(userID) {
		return nil, nil
	}
	return r.clone(c), nil
}

func (r *fakeConversationRepo) AddParticipants(conversationID uuid.UUID, users []models.User) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return nil, errors.New("conversation not found")
	}
	c.Participants = append(c.Participants, users...)
	c.UpdatedAt = time.Now()
	return r.clone(c), nil
}

func (r *fakeConversationRepo) RemoveParticipant(conversationID, targetID uuid.UUID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return nil, errors.New("conversation not found")
	}
	c.Participants = removeUser(c.Participants, targetID)
	c.Admins = removeUser(c.Admins, targetID)
	if !c.IsGroup {
		c.PairKey = nil
	}
	c.UpdatedAt = time.Now()
	return r.clone(c), nil
}

func removeUser(users []models.User, id uuid.UUID) []models.User {
	out := users[:0]
	for _, u := range users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

func (r *fakeConversationRepo) SetAdmins(conversationID uuid.UUID, admins []models.User) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return nil, errors.New("conversation not found")
	}
	c.Admins = admins
	return r.clone(c), nil
}

func (r *fakeConversationRepo) SetAvatar(conversationID uuid.UUID, key, url string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return nil, errors.New("conversation not found")
	}
	c.AvatarKey = key
	c.AvatarURL = url
	return r.clone(c), nil
}

func (r *fakeConversationRepo) SetLastMessage(conversationID, messageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conversations[conversationID]; ok {
		id := messageID
		c.LastMessageID = &id
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeConversationRepo) Delete(conversationID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conversations, conversationID)
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	messages []*models.Message
}

func newFakeMessageRepo(users ...models.User) *fakeMessageRepo {
	repo := &fakeMessageRepo{users: make(map[uuid.UUID]models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeMessageRepo) Create(message *models.Message) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	message.ID = uuid.New()
	message.CreatedAt = time.Now()
	message.UpdatedAt = message.CreatedAt
	message.Sender = r.users[message.SenderID]
	message.Receipts = []models.MessageReceipt{{
		MessageID: message.ID,
		UserID:    message.SenderID,
		Kind:      models.ReceiptDelivered,
	}}
	r.messages = append(r.messages, message)
	out := *message
	return &out, nil
}

func (r *fakeMessageRepo) ListByConversation(conversationID uuid.UUID, page, limit int) ([]models.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Message
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].ConversationID == conversationID {
			all = append(all, *r.messages[i])
		}
	}
	total := int64(len(all))

	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeMessageRepo) MarkDelivered(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error {
	return r.appendReceipts(conversationID, messageIDs, userID, models.ReceiptDelivered)
}

func (r *fakeMessageRepo) MarkRead(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error {
	return r.appendReceipts(conversationID, messageIDs, userID, models.ReceiptRead)
}

func (r *fakeMessageRepo) appendReceipts(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID, kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ConversationID != conversationID || !containsID(messageIDs, m.ID) {
			continue
		}
		exists := false
		for _, receipt := range m.Receipts {
			if receipt.UserID == userID && receipt.Kind == kind {
				exists = true
				break
			}
		}
		if !exists {
			m.Receipts = append(m.Receipts, models.MessageReceipt{MessageID: m.ID, UserID: userID, Kind: kind})
		}
	}
	return nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func (r *fakeMessageRepo) DeleteByConversation(conversationID uuid.UUID) ([]models.MediaAsset, []uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var assets []models.MediaAsset
	var messageIDs []uuid.UUID
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			assets = append(assets, m.Attachments...)
			messageIDs = append(messageIDs, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return assets, messageIDs, nil
}

func (r *fakeMessageRepo) find(messageID uuid.UUID) *models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

type fakeMediaRepo struct {
	mu       sync.Mutex
	uploads  []string
	deleted  []string
	failNext error
}

func (r *fakeMediaRepo) UploadToS3(fileHeader *multipart.FileHeader, ownerID uuid.UUID, folderName string) (*models.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return nil, err
	}
	key := folderName + "/" + uuid.New().String()
	r.uploads = append(r.uploads, key)
	return &models.MediaAsset{
		Model:    models.Model{ID: uuid.New()},
		OwnerID:  ownerID,
		Key:      key,
		URL:      "https://media.test/" + key,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
	}, nil
}

func (r *fakeMediaRepo) DeleteFromS3(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, key)
	return nil
}

func (r *fakeMediaRepo) deletedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

// recordingBroadcaster captures every emit for assertions.

type emitRecord struct {
	Event   string
	Payload interface{}
	UserIDs []uuid.UUID
	RoomID  uuid.UUID
	ToRoom  bool
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	records []emitRecord
}

func (b *recordingBroadcaster) EmitToUsers(event string, payload interface{}, userIDs []uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, emitRecord{Event: event, Payload: payload, UserIDs: append([]uuid.UUID(nil), userIDs...)})
}

func (b *recordingBroadcaster) EmitToRoom(conversationID uuid.UUID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, emitRecord{Event: event, Payload: payload, RoomID: conversationID, ToRoom: true})
}

func (b *recordingBroadcaster) all() []emitRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]emitRecord(nil), b.records...)
}

func (b *recordingBroadcaster) byEvent(event string) []emitRecord {
	var out []emitRecord
	for _, record := range b.all() {
		if record.Event == event {
			out = append(out, record)
		}
	}
	return out
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []*models.Notification
	createErr     error
}

func (r *fakeNotificationRepo) Create(notification *models.Notification) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	notification.ID = uuid.New()
	notification.CreatedAt = time.Now()
	r.notifications = append(r.notifications, notification)
	out := *notification
	return &out, nil
}

func (r *fakeNotificationRepo) ListForUser(userID uuid.UUID, page, limit int) ([]models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Notification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].UserID == userID {
			all = append(all, *r.notifications[i])
		}
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeNotificationRepo) CountUnread(userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(userID, notificationID uuid.UUID) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == notificationID && n.UserID == userID {
			if !n.IsRead {
				now := time.Now()
				n.IsRead = true
				n.ReadAt = &now
			}
			out := *n
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeNotificationRepo) MarkAllRead(userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
		}
	}
	return nil
}

func (r *fakeNotificationRepo) DeleteByEntity(entityType models.EntityType, entityIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.notifications[:0]
	for _, n := range r.notifications {
		if n.EntityType == entityType && n.EntityID != nil && containsID(entityIDs, *n.EntityID) {
			continue
		}
		kept = append(kept, n)
	}
	r.notifications = kept
	return nil
}

type fakePostRepo struct {
	mu       sync.Mutex
	previews map[uuid.UUID]string
	calls    int
}

func (r *fakePostRepo) GetPreviewURLs(postIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	out := make(map[uuid.UUID]string)
	for _, id := range postIDs {
		if url, ok := r.previews[id]; ok {
			out[id] = url
		}
	}
	return out, nil
}
