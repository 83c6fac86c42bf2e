package server

import (
	"fmt"
	"os"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = 32 << 20
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Second, Limit: 10})
	sendLimit := limitRateForSending(store)

	apirouter := router.Group("/api/v1")
	apirouter.GET("/ws", s.handleWebsocket())

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())

	authorized.POST("/conversations", s.handleCreateConversation())
	authorized.GET("/conversations", s.handleGetConversations())
	authorized.GET("/conversations/:id", s.handleGetConversation())
	authorized.DELETE("/conversations/:id", s.handleDeleteConversation())
	authorized.POST("/conversations/:id/participants", s.handleAddParticipants())
	authorized.DELETE("/conversations/:id/participants/:userID", s.handleRemoveParticipant())
	authorized.PUT("/conversations/:id/admins", s.handleSetConversationAdmins())
	authorized.POST("/conversations/:id/leave", s.handleLeaveConversation())
	authorized.PATCH("/conversations/:id/avatar", s.handleSetConversationAvatar())

	authorized.GET("/conversations/:id/messages", s.handleGetMessages())
	authorized.POST("/conversations/:id/messages", sendLimit, s.handleSendMessage())
	authorized.POST("/conversations/:id/messages/delivered", s.handleMarkDelivered())
	authorized.POST("/conversations/:id/messages/read", s.handleMarkRead())

	authorized.GET("/notifications", s.handleGetNotifications())
	authorized.PUT("/notifications/:id/read", s.handleMarkNotificationRead())
	authorized.PUT("/notifications/read-all", s.handleMarkAllNotificationsRead())
}
