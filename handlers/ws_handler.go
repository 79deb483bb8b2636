package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"vibelink/middleware"
	"vibelink/services"
)

type WSHandler struct {
	hub      *services.Hub
	tokens   middleware.AccessValidator
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(hub *services.Hub, tokens middleware.AccessValidator, origins *middleware.OriginPolicy, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.CheckOrigin,
		},
		logger: logger,
	}
}

// Serve authenticates with ?token= or the bearer header, then hands the
// connection to the hub.
func (h *WSHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		middleware.Abort(c, middleware.Unauthorized("Missing authorization token"))
		return
	}
	claims, err := h.tokens.ValidateAccess(token)
	if err != nil {
		middleware.Abort(c, middleware.NewAppError(http.StatusUnauthorized, "Invalid or expired token", err))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err, "user_id", claims.UserID)
		c.Abort()
		return
	}

	id := claims.Identity()
	h.hub.RegisterClient(conn, id.UserID, id.Username)
	h.logger.Debug("websocket connected", "user_id", id.UserID)
}
