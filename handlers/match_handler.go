package handlers

import (
	"github.com/gin-gonic/gin"

	"vibelink/models"
	"vibelink/response"
	"vibelink/services"
)

type MatchHandler struct {
	matchService *services.MatchService
}

func NewMatchHandler(matchService *services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

func (h *MatchHandler) Create(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req services.CreateMatchRequest
	if !bindJSON(c, &req) {
		return
	}

	match, err := h.matchService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, gin.H{"match": match})
}

func (h *MatchHandler) List(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	matches, err := h.matchService.List(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	if matches == nil {
		matches = []models.Match{}
	}
	response.OK(c, gin.H{"matches": matches, "total": len(matches)})
}

func (h *MatchHandler) Get(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	matchID, ok := uuidParam(c, "matchId")
	if !ok {
		return
	}

	match, err := h.matchService.Get(c.Request.Context(), matchID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, gin.H{"match": match})
}
