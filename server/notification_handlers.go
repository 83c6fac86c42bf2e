package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/chatterhq/chatter/server/response"
)

func (s *Server) handleGetNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit := pageParams(c)

		notifications, err := s.NotificationService.GetNotifications(currentUserID(c), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Notifications retrieved successfully", http.StatusOK, notifications, nil)
	}
}

func (s *Server) handleMarkNotificationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		notificationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		if err := s.NotificationService.MarkNotificationRead(currentUserID(c), notificationID); err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Notification marked as read", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleMarkAllNotificationsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.NotificationService.MarkAllNotificationsRead(currentUserID(c)); err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "All notifications marked as read", http.StatusOK, nil, nil)
	}
}
