package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	errs "github.com/chatterhq/chatter/errors"
	"github.com/chatterhq/chatter/server/response"
	"github.com/chatterhq/chatter/services/jwt"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are open here because the API already allows all origins;
	// authentication is the token, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket authenticates via the token query parameter, since
// browser websocket clients cannot set an Authorization header.
func (s *Server) handleWebsocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.Unauthorized("missing token"))
			return
		}

		claims, err := jwt.ValidateAndGetClaims(token, s.Config.JWTSecret)
		if err != nil {
			respondError(c, err)
			return
		}
		userID, err := jwt.UserIDFromClaims(claims)
		if err != nil {
			respondError(c, err)
			return
		}

		user, err := s.UserRepository.FindUserByID(userID)
		if err != nil || user == nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.Unauthorized("unauthorized"))
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}

		s.Gateway.HandleConnection(conn, userID)
	}
}
