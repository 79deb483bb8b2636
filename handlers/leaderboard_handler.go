package handlers

import (
	"github.com/gin-gonic/gin"

	"vibelink/models"
	"vibelink/response"
	"vibelink/services"
)

type LeaderboardHandler struct {
	leaderboard *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboard *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

type leaderboardQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (h *LeaderboardHandler) Top(c *gin.Context) {
	var q leaderboardQuery
	if !bindQuery(c, &q) {
		return
	}

	entries, err := h.leaderboard.Top(c.Request.Context(), q.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	response.OK(c, gin.H{"leaderboard": entries})
}
