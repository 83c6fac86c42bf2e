package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	errs "github.com/chatterhq/chatter/errors"
	"github.com/chatterhq/chatter/server/response"
	"github.com/google/uuid"
	"github.com/leebenson/conform"
)

type createConversationRequest struct {
	Name           string   `json:"name" conform:"trim"`
	IsGroup        bool     `json:"isGroup"`
	ParticipantIDs []string `json:"participantIds" binding:"required,min=1"`
}

type participantsRequest struct {
	ParticipantIDs []string `json:"participantIds" binding:"required,min=1"`
}

// parseUUIDs rejects the whole request on the first malformed id.
func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, errs.ValidationError("invalid participant id: " + r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func pathID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errs.ValidationError("invalid " + name)
	}
	return id, nil
}

func (s *Server) handleCreateConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		if err := conform.Strings(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		participantIDs, err := parseUUIDs(req.ParticipantIDs)
		if err != nil {
			respondError(c, err)
			return
		}

		conversation, err := s.MessagingService.CreateConversation(currentUserID(c), participantIDs, req.Name, req.IsGroup)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Conversation created successfully", http.StatusCreated, conversation, nil)
	}
}

func (s *Server) handleGetConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversations, err := s.MessagingService.GetConversations(currentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Conversations retrieved successfully", http.StatusOK, conversations, nil)
	}
}

func (s *Server) handleGetConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		conversation, err := s.MessagingService.GetConversation(conversationID, currentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Conversation retrieved successfully", http.StatusOK, conversation, nil)
	}
}

func (s *Server) handleAddParticipants() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		var req participantsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		participantIDs, err := parseUUIDs(req.ParticipantIDs)
		if err != nil {
			respondError(c, err)
			return
		}

		conversation, err := s.MessagingService.AddParticipants(conversationID, currentUserID(c), participantIDs)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Participants added successfully", http.StatusOK, conversation, nil)
	}
}

type adminsRequest struct {
	AdminIDs []string `json:"adminIds" binding:"required,min=1"`
}

func (s *Server) handleSetConversationAdmins() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		var req adminsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		adminIDs, err := parseUUIDs(req.AdminIDs)
		if err != nil {
			respondError(c, err)
			return
		}

		conversation, err := s.MessagingService.SetConversationAdmins(conversationID, currentUserID(c), adminIDs)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Admins updated successfully", http.StatusOK, conversation, nil)
	}
}

func (s *Server) handleRemoveParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		targetID, err := pathID(c, "userID")
		if err != nil {
			respondError(c, err)
			return
		}

		conversation, err := s.MessagingService.RemoveParticipant(conversationID, currentUserID(c), targetID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Participant removed successfully", http.StatusOK, conversation, nil)
	}
}

func (s *Server) handleLeaveConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		if err := s.MessagingService.LeaveConversation(conversationID, currentUserID(c)); err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Left conversation successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleDeleteConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		if err := s.MessagingService.DeleteConversation(conversationID, currentUserID(c)); err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Conversation deleted successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleSetConversationAvatar() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		file, err := c.FormFile("avatar")
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ValidationError("no image file uploaded"))
			return
		}

		conversation, err := s.MessagingService.SetConversationAvatar(conversationID, currentUserID(c), file)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Avatar updated successfully", http.StatusOK, conversation, nil)
	}
}
