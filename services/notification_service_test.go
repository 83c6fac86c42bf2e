package services

import (
	"testing"
	"time"

	"github.com/chatterhq/chatter/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNotification(t *testing.T) {
	actor := uuid.New()
	recipient := uuid.New()

	t.Run("self-notifications are skipped entirely", func(t *testing.T) {
		repo := &fakeNotificationRepo{}
		broadcaster := &recordingBroadcaster{}
		service := NewNotificationService(repo, &fakePostRepo{}, broadcaster, NewMemoryDeduper(5*time.Second))

		created, err := service.CreateNotification(CreateNotificationParams{
			UserID:  actor,
			ActorID: actor,
			Type:    models.NotificationLikePost,
		})
		require.NoError(t, err)
		assert.Nil(t, created)
		assert.Empty(t, broadcaster.all())
	})

	t.Run("persisted notification is pushed once to its recipient", func(t *testing.T) {
		repo := &fakeNotificationRepo{}
		broadcaster := &recordingBroadcaster{}
		service := NewNotificationService(repo, &fakePostRepo{}, broadcaster, NewMemoryDeduper(5*time.Second))

		entityID := uuid.New()
		created, err := service.CreateNotification(CreateNotificationParams{
			UserID:  recipient,
			ActorID: actor,
			Type:    models.NotificationMessage,
			Entity:  &models.EntityRef{Type: models.EntityMessage, ID: entityID},
		})
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, models.EntityMessage, created.EntityType)

		emits := broadcaster.byEvent("notification:new")
		require.Len(t, emits, 1)
		assert.Equal(t, []uuid.UUID{recipient}, emits[0].UserIDs)
	})

	t.Run("persistence failure suppresses the push and is swallowed", func(t *testing.T) {
		repo := &fakeNotificationRepo{createErr: errors.New("db down")}
		broadcaster := &recordingBroadcaster{}
		service := NewNotificationService(repo, &fakePostRepo{}, broadcaster, NewMemoryDeduper(5*time.Second))

		created, err := service.CreateNotification(CreateNotificationParams{
			UserID:  recipient,
			ActorID: actor,
			Type:    models.NotificationFollow,
		})
		require.NoError(t, err)
		assert.Nil(t, created)
		assert.Empty(t, broadcaster.all())
	})
}

func TestGetNotifications(t *testing.T) {
	actor := uuid.New()
	recipient := uuid.New()

	t.Run("includes unread badge count independent of the page", func(t *testing.T) {
		repo := &fakeNotificationRepo{}
		service := NewNotificationService(repo, &fakePostRepo{}, &recordingBroadcaster{}, NewMemoryDeduper(5*time.Second))

		for i := 0; i < 5; i++ {
			_, err := service.CreateNotification(CreateNotificationParams{
				UserID:  recipient,
				ActorID: actor,
				Type:    models.NotificationFollow,
			})
			require.NoError(t, err)
		}

		page, err := service.GetNotifications(recipient, 1, 2)
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, int64(5), page.TotalUnread)
		assert.Equal(t, int64(5), page.Pagination.Total)
	})

	t.Run("post previews resolve with a single batch lookup", func(t *testing.T) {
		repo := &fakeNotificationRepo{}
		postID := uuid.New()
		posts := &fakePostRepo{previews: map[uuid.UUID]string{postID: "https://media.test/posts/1.jpg"}}
		service := NewNotificationService(repo, posts, &recordingBroadcaster{}, NewMemoryDeduper(5*time.Second))

		for i := 0; i < 3; i++ {
			_, err := service.CreateNotification(CreateNotificationParams{
				UserID:   recipient,
				ActorID:  actor,
				Type:     models.NotificationLikePost,
				Entity:   &models.EntityRef{Type: models.EntityPost, ID: postID},
				Metadata: map[string]interface{}{"postId": postID.String()},
			})
			require.NoError(t, err)
		}
		posts.calls = 0

		page, err := service.GetNotifications(recipient, 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Items, 3)
		for _, item := range page.Items {
			assert.Equal(t, "https://media.test/posts/1.jpg", item.PreviewURL)
		}
		assert.Equal(t, 1, posts.calls)
	})
}

func TestMarkNotificationsRead(t *testing.T) {
	actor := uuid.New()
	recipient := uuid.New()

	repo := &fakeNotificationRepo{}
	service := NewNotificationService(repo, &fakePostRepo{}, &recordingBroadcaster{}, NewMemoryDeduper(5*time.Second))

	created, err := service.CreateNotification(CreateNotificationParams{
		UserID:  recipient,
		ActorID: actor,
		Type:    models.NotificationFollow,
	})
	require.NoError(t, err)

	t.Run("mark read is idempotent", func(t *testing.T) {
		require.NoError(t, service.MarkNotificationRead(recipient, created.ID))
		require.NoError(t, service.MarkNotificationRead(recipient, created.ID))

		unread, err := repo.CountUnread(recipient)
		require.NoError(t, err)
		assert.Zero(t, unread)
	})

	t.Run("marking a missing notification still succeeds", func(t *testing.T) {
		assert.NoError(t, service.MarkNotificationRead(recipient, uuid.New()))
	})

	t.Run("mark all clears the badge", func(t *testing.T) {
		_, err := service.CreateNotification(CreateNotificationParams{
			UserID:  recipient,
			ActorID: actor,
			Type:    models.NotificationNewPost,
		})
		require.NoError(t, err)

		require.NoError(t, service.MarkAllNotificationsRead(recipient))
		unread, err := repo.CountUnread(recipient)
		require.NoError(t, err)
		assert.Zero(t, unread)
	})
}

func TestCleanupForEntity(t *testing.T) {
	actor := uuid.New()
	recipient := uuid.New()
	messageID := uuid.New()

	repo := &fakeNotificationRepo{}
	service := NewNotificationService(repo, &fakePostRepo{}, &recordingBroadcaster{}, NewMemoryDeduper(5*time.Second))

	_, err := service.CreateNotification(CreateNotificationParams{
		UserID:  recipient,
		ActorID: actor,
		Type:    models.NotificationMessage,
		Entity:  &models.EntityRef{Type: models.EntityMessage, ID: messageID},
	})
	require.NoError(t, err)
	_, err = service.CreateNotification(CreateNotificationParams{
		UserID:  recipient,
		ActorID: actor,
		Type:    models.NotificationFollow,
	})
	require.NoError(t, err)

	require.NoError(t, service.CleanupForEntity(models.EntityMessage, []uuid.UUID{messageID}))

	notifications, _, err := repo.ListForUser(recipient, 1, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationFollow, notifications[0].Type)
}
