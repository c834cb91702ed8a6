package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/requestdata"
	"github.com/slotter-org/gemini-chat/internal/session"
)

type SessionMiddleware struct {
	log     *logger.Logger
	manager *session.Manager
}

func NewSessionMiddleware(log *logger.Logger, manager *session.Manager) *SessionMiddleware {
	middlewareLogger := log.With("middleware", "SessionMiddleware")
	return &SessionMiddleware{log: middlewareLogger, manager: manager}
}

// RequireSession aborts unless the request carries a token for a live session.
func (sm *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}
		sess, err := sm.manager.Resolve(c.Request.Context(), tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			switch {
			case errors.Is(err, errs.ErrSessionNotFound):
				status = http.StatusNotFound
			case !errors.Is(err, errs.ErrInvalidToken):
				status = http.StatusInternalServerError
				sm.log.Warn("Session lookup failed", "error", err)
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}
		sm.attach(c, tokenString, sess)
		c.Next()
	}
}

// OptionalSession attaches a session when a valid token is present and lets
// the request through either way.
func (sm *SessionMiddleware) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		rd := &requestdata.RequestData{TokenString: tokenString}
		if tokenString != "" {
			if sess, err := sm.manager.Resolve(c.Request.Context(), tokenString); err == nil {
				rd.Session = sess
				rd.SessionID = sess.ID
			} else {
				sm.log.Debug("Ignoring unusable session token", "error", err)
			}
		}
		c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

func (sm *SessionMiddleware) attach(c *gin.Context, tokenString string, sess *session.Session) {
	rd := &requestdata.RequestData{TokenString: tokenString, SessionID: sess.ID, Session: sess}
	c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
}

func extractTokenFromAll(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.GetHeader("X-Session-Token"))
}
