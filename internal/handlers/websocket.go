package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/requestdata"
	"github.com/slotter-org/gemini-chat/internal/services"
	"github.com/slotter-org/gemini-chat/internal/socket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WsHandler upgrades a session's request and subscribes it to its own
// transcript events and the shared history channel.
func WsHandler(hub *socket.Hub, log *logger.Logger) gin.HandlerFunc {
	wsLog := log.With("handler", "WsHandler")
	return func(c *gin.Context) {
		sess := requestdata.GetSession(c.Request.Context())
		if sess == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no session"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			wsLog.Warn("Failed to upgrade to websocket", "error", err)
			return
		}
		sessionChan := services.SessionChannel(sess.ID)
		allowed := func(channel string) bool {
			return channel == sessionChan || channel == services.HistoryChannel
		}
		client := socket.NewClient(conn, hub, wsLog, allowed)
		hub.Subscribe(client, []string{sessionChan, services.HistoryChannel})

		client.Run(context.Background())
	}
}
