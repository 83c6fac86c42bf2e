package server

import (
	"net/http"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	errs "github.com/chatterhq/chatter/errors"
	"github.com/chatterhq/chatter/server/response"
	"github.com/chatterhq/chatter/services/jwt"
	"github.com/google/uuid"
)

func (s *Server) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := getTokenFromHeader(c)
		if accessToken == "" {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.New("unauthorized", http.StatusUnauthorized))
			return
		}

		accessClaims, err := jwt.ValidateAndGetClaims(accessToken, s.Config.JWTSecret)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.New("unauthorized", http.StatusUnauthorized))
			return
		}

		userID, err := jwt.UserIDFromClaims(accessClaims)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.New("unauthorized", http.StatusUnauthorized))
			return
		}

		user, err := s.UserRepository.FindUserByID(userID)
		if err != nil {
			respondAndAbort(c, "unable to find user", http.StatusInternalServerError, nil, errs.New("internal server error", http.StatusInternalServerError))
			return
		}
		if user == nil {
			respondAndAbort(c, "user not found", http.StatusUnauthorized, nil, errs.New("unauthorized", http.StatusUnauthorized))
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Next()
	}
}

// limitRateForSending caps message sends per authenticated user, not per
// IP, so devices behind one NAT do not starve each other.
func limitRateForSending(store ratelimit.Store) gin.HandlerFunc {
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			respondAndAbort(c, "too many messages, slow down", http.StatusTooManyRequests, nil, errs.New("rate limit exceeded", http.StatusTooManyRequests))
		},
		KeyFunc: func(c *gin.Context) string {
			return currentUserID(c).String()
		},
		BeforeResponse: nil,
	})
}

// respondAndAbort calls response.JSON and aborts the Context
func respondAndAbort(c *gin.Context, message string, status int, data interface{}, e *errs.Error) {
	response.JSON(c, message, status, data, e)
	c.Abort()
}

// respondError maps a service error onto the envelope using its carried
// status, defaulting to 500.
func respondError(c *gin.Context, err error) {
	response.JSON(c, "", errs.StatusOf(err), nil, err)
}

// getTokenFromHeader returns the token string in the authorization header
func getTokenFromHeader(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	if len(authHeader) > 8 {
		return authHeader[7:]
	}
	return ""
}

// currentUserID reads the authenticated user id set by Authorize.
func currentUserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
