package services

import (
	"log"

	"github.com/chatterhq/chatter/db"
	"github.com/chatterhq/chatter/models"
	"github.com/chatterhq/chatter/realtime"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CreateNotificationParams describes one notification to record and push.
type CreateNotificationParams struct {
	UserID   uuid.UUID
	ActorID  uuid.UUID
	Type     models.NotificationType
	Entity   *models.EntityRef
	Metadata map[string]interface{}
}

type NotificationService interface {
	CreateNotification(params CreateNotificationParams) (*models.Notification, error)
	GetNotifications(userID uuid.UUID, page, limit int) (*NotificationPage, error)
	MarkNotificationRead(userID, notificationID uuid.UUID) error
	MarkAllNotificationsRead(userID uuid.UUID) error
	CleanupForEntity(entityType models.EntityType, entityIDs []uuid.UUID) error
}

type notificationService struct {
	notificationRepo db.NotificationRepository
	postRepo         db.PostRepository
	gateway          realtime.Broadcaster
	deduper          Deduper
}

func NewNotificationService(
	notificationRepo db.NotificationRepository,
	postRepo db.PostRepository,
	gateway realtime.Broadcaster,
	deduper Deduper,
) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		postRepo:         postRepo,
		gateway:          gateway,
		deduper:          deduper,
	}
}

// CreateNotification persists the notification and pushes it to the
// recipient's personal channel. Self-notifications are skipped, and a
// failed insert suppresses the push so nothing ephemeral is shown that
// the recipient could never see again.
func (s *notificationService) CreateNotification(params CreateNotificationParams) (*models.Notification, error) {
	if params.UserID == params.ActorID {
		return nil, nil
	}

	notification := &models.Notification{
		UserID:  params.UserID,
		ActorID: params.ActorID,
		Type:    params.Type,
	}
	if params.Entity != nil {
		notification.EntityType = params.Entity.Type
		entityID := params.Entity.ID
		notification.EntityID = &entityID
	}
	if len(params.Metadata) > 0 {
		notification.Metadata = datatypes.JSONMap(params.Metadata)
	}

	created, err := s.notificationRepo.Create(notification)
	if err != nil {
		log.Printf("failed to persist notification for user %s: %v", params.UserID, err)
		return nil, nil
	}

	s.push(created)
	return created, nil
}

// push emits notification:new once per recipient/notification pair within
// the dedup window, collapsing retries and racing instances.
func (s *notificationService) push(notification *models.Notification) {
	if s.gateway == nil {
		return
	}
	if s.deduper != nil {
		key := notification.UserID.String() + ":" + notification.ID.String()
		if s.deduper.Seen(key) {
			return
		}
	}

	previewURL := s.previewURLs([]models.Notification{*notification})[postIDOf(notification)]
	s.gateway.EmitToUsers("notification:new", serializeNotification(notification, previewURL), []uuid.UUID{notification.UserID})
}

// postIDOf extracts the post id a notification references through its
// metadata, or Nil when there is none.
func postIDOf(notification *models.Notification) uuid.UUID {
	raw, ok := notification.Metadata["postId"].(string)
	if !ok {
		return uuid.Nil
	}
	postID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return postID
}

// previewURLs resolves post thumbnails for a batch of notifications with
// a single store query.
func (s *notificationService) previewURLs(notifications []models.Notification) map[uuid.UUID]string {
	if s.postRepo == nil {
		return nil
	}

	seen := make(map[uuid.UUID]struct{})
	var postIDs []uuid.UUID
	for i := range notifications {
		postID := postIDOf(&notifications[i])
		if postID == uuid.Nil {
			continue
		}
		if _, dup := seen[postID]; dup {
			continue
		}
		seen[postID] = struct{}{}
		postIDs = append(postIDs, postID)
	}
	if len(postIDs) == 0 {
		return nil
	}

	urls, err := s.postRepo.GetPreviewURLs(postIDs)
	if err != nil {
		log.Printf("failed to resolve notification previews: %v", err)
		return nil
	}
	return urls
}

func (s *notificationService) GetNotifications(userID uuid.UUID, page, limit int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	notifications, total, err := s.notificationRepo.ListForUser(userID, page, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.notificationRepo.CountUnread(userID)
	if err != nil {
		return nil, err
	}

	previews := s.previewURLs(notifications)
	items := make([]SerializedNotification, 0, len(notifications))
	for i := range notifications {
		items = append(items, *serializeNotification(&notifications[i], previews[postIDOf(&notifications[i])]))
	}

	return &NotificationPage{
		Items:       items,
		TotalUnread: unread,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Count: len(items),
			Total: total,
		},
	}, nil
}

// MarkNotificationRead succeeds whether or not the notification exists or
// was already read; the client outcome is the same either way.
func (s *notificationService) MarkNotificationRead(userID, notificationID uuid.UUID) error {
	_, err := s.notificationRepo.MarkRead(userID, notificationID)
	return err
}

func (s *notificationService) MarkAllNotificationsRead(userID uuid.UUID) error {
	return s.notificationRepo.MarkAllRead(userID)
}

func (s *notificationService) CleanupForEntity(entityType models.EntityType, entityIDs []uuid.UUID) error {
	return s.notificationRepo.DeleteByEntity(entityType, entityIDs)
}
