package handlers

import (
	"github.com/gin-gonic/gin"

	"vibelink/middleware"
	"vibelink/response"
	"vibelink/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, res)
}

// Refresh takes the refresh token from the body, falling back to the
// Authorization header.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.Abort(c, middleware.BadRequest("Invalid request body"))
			return
		}
	}
	token := req.RefreshToken
	if token == "" {
		token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		middleware.Abort(c, middleware.Unauthorized("Missing refresh token"))
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, pair)
}
