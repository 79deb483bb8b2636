package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vibelink/middleware"
	"vibelink/response"
	"vibelink/services"
)

type GameHandler struct {
	gameService *services.GameService
}

func NewGameHandler(gameService *services.GameService) *GameHandler {
	return &GameHandler{gameService: gameService}
}

func (h *GameHandler) CreateSession(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req services.CreateSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	state, err := h.gameService.CreateSession(c.Request.Context(), userID, &req)
	if err != nil {
		gameFail(c, err)
		return
	}
	response.Created(c, gin.H{"session": state})
}

func (h *GameHandler) GetSession(c *gin.Context) {
	h.sessionAction(c, h.gameService.Get, "")
}

func (h *GameHandler) SubmitResponse(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req services.SubmitResponseRequest
	if !bindJSON(c, &req) {
		return
	}

	state, err := h.gameService.SubmitResponse(c.Request.Context(), userID, &req)
	if err != nil {
		gameFail(c, err)
		return
	}
	response.Message(c, "Response submitted successfully", gin.H{"session": state})
}

func (h *GameHandler) Advance(c *gin.Context) {
	h.sessionAction(c, h.gameService.Advance, "Game session advanced")
}

func (h *GameHandler) Abandon(c *gin.Context) {
	h.sessionAction(c, h.gameService.Abandon, "Game session abandoned")
}

func (h *GameHandler) Results(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(c, "sessionId")
	if !ok {
		return
	}

	outcome, err := h.gameService.Results(c.Request.Context(), sessionID, userID)
	if err != nil {
		gameFail(c, err)
		return
	}
	response.OK(c, outcome)
}

type sessionFunc func(ctx context.Context, sessionID, userID uuid.UUID) (*services.SessionState, error)

func (h *GameHandler) sessionAction(c *gin.Context, fn sessionFunc, message string) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(c, "sessionId")
	if !ok {
		return
	}

	state, err := fn(c.Request.Context(), sessionID, userID)
	if err != nil {
		gameFail(c, err)
		return
	}
	if message == "" {
		response.OK(c, gin.H{"session": state})
		return
	}
	response.Message(c, message, gin.H{"session": state})
}

// gameFail differs from fail only in treating non-members as forbidden.
func gameFail(c *gin.Context, err error) {
	if errors.Is(err, services.ErrNotRoomMember) {
		middleware.Abort(c, middleware.NewAppError(http.StatusForbidden, "You are not a member of this room", err))
		return
	}
	fail(c, err)
}
