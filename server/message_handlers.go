package server

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/chatterhq/chatter/server/response"
)

type receiptRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required,min=1"`
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "30"))
	if err != nil || limit < 1 {
		limit = 30
	}
	return page, limit
}

func (s *Server) handleGetMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		page, limit := pageParams(c)

		messages, err := s.MessagingService.GetMessages(conversationID, currentUserID(c), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Messages retrieved successfully", http.StatusOK, messages, nil)
	}
}

// handleSendMessage accepts multipart form data: a "content" field plus
// zero or more "attachments" files.
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		content := c.PostForm("content")
		var files []*multipart.FileHeader
		if form, err := c.MultipartForm(); err == nil && form != nil {
			files = form.File["attachments"]
		}

		message, err := s.MessagingService.CreateMessage(conversationID, currentUserID(c), content, files)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Message sent successfully", http.StatusCreated, message, nil)
	}
}

func (s *Server) handleMarkDelivered() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		var req receiptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		messageIDs, err := parseUUIDs(req.MessageIDs)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := s.MessagingService.MarkMessagesDelivered(conversationID, messageIDs, currentUserID(c)); err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Messages marked as delivered", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		var req receiptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		messageIDs, err := parseUUIDs(req.MessageIDs)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := s.MessagingService.MarkMessagesRead(conversationID, messageIDs, currentUserID(c)); err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Messages marked as read", http.StatusOK, nil, nil)
	}
}
