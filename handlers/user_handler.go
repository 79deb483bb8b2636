package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vibelink/middleware"
	"vibelink/response"
	"vibelink/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type searchQuery struct {
	Q string `form:"q" binding:"required,min=1,max=50"`
}

func (h *UserHandler) List(c *gin.Context) {
	var q services.ListUsersQuery
	if !bindQuery(c, &q) {
		return
	}

	page, err := h.userService.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, page)
}

func (h *UserHandler) Search(c *gin.Context) {
	var q searchQuery
	if !bindQuery(c, &q) {
		return
	}
	results, err := h.userService.Search(c.Request.Context(), strings.TrimSpace(q.Q))
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, gin.H{"results": results})
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	user, err := h.userService.Me(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, gin.H{"user": user})
}

func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, gin.H{"user": user})
}

func (h *UserHandler) Update(c *gin.Context) {
	userID, ok := h.owner(c, "Cannot update other user profiles")
	if !ok {
		return
	}
	var req services.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Message(c, "Profile updated successfully", gin.H{"user": user.Public()})
}

func (h *UserHandler) Delete(c *gin.Context) {
	userID, ok := h.owner(c, "Cannot delete other accounts")
	if !ok {
		return
	}

	if err := h.userService.Delete(c.Request.Context(), userID); err != nil {
		fail(c, err)
		return
	}
	response.Message(c, "Account deleted successfully", nil)
}

func (h *UserHandler) Connections(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	connections, err := h.userService.Connections(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, gin.H{"connections": connections, "total": len(connections)})
}

func (h *UserHandler) Follow(c *gin.Context) {
	followerID, targetID, ok := h.edge(c)
	if !ok {
		return
	}

	if err := h.userService.Follow(c.Request.Context(), followerID, targetID); err != nil {
		fail(c, err)
		return
	}
	response.Message(c, "User followed successfully", nil)
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	followerID, targetID, ok := h.edge(c)
	if !ok {
		return
	}

	if err := h.userService.Unfollow(c.Request.Context(), followerID, targetID); err != nil {
		fail(c, err)
		return
	}
	response.Message(c, "User unfollowed successfully", nil)
}

func (h *UserHandler) Stats(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	stats, err := h.userService.Stats(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, stats)
}

// owner resolves :userId and requires it to be the caller.
func (h *UserHandler) owner(c *gin.Context, forbidden string) (uuid.UUID, bool) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return userID, false
	}
	caller, ok := callerID(c)
	if !ok {
		return userID, false
	}
	if caller != userID {
		middleware.Abort(c, middleware.Forbidden(forbidden))
		return userID, false
	}
	return userID, true
}

func (h *UserHandler) edge(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	targetID, ok := uuidParam(c, "userId")
	if !ok {
		return targetID, targetID, false
	}
	caller, ok := callerID(c)
	if !ok {
		return caller, targetID, false
	}
	return caller, targetID, true
}
