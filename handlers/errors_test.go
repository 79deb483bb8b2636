package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibelink/game"
	"vibelink/middleware"
	"vibelink/services"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{services.ErrUserNotFound, http.StatusNotFound, "User not found"},
		{fmt.Errorf("join: %w", services.ErrRoomFull), http.StatusConflict, "Room is full"},
		{game.ErrAlreadyResponded, http.StatusConflict, "Response already submitted for this round"},
		{game.ErrNotParticipant, http.StatusForbidden, "User is not a participant of this game session"},
		{services.ErrInvalidMatch, http.StatusBadRequest, sentence(services.ErrInvalidMatch.Error())},
		{middleware.Forbidden("nope"), http.StatusForbidden, "nope"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			var appErr *middleware.AppError
			require.True(t, errors.As(toAppError(tt.err), &appErr))
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestFieldErrors(t *testing.T) {
	RegisterValidation()

	type sample struct {
		Name    string `json:"name" binding:"required"`
		Status  string `json:"status" binding:"omitempty,oneof=open closed"`
		Rounds  int    `json:"totalRounds" binding:"omitempty,min=1,max=20"`
		Comment string `json:"comment" binding:"max=3"`
	}
	req := sample{Status: "gone", Rounds: 30, Comment: "too long"}

	err := binding.Validator.ValidateStruct(&req)
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	got := map[string]string{}
	for _, fe := range fieldErrors(verrs, locationBody) {
		assert.Equal(t, locationBody, fe.Location)
		got[fe.Field] = fe.Message
	}
	assert.Equal(t, map[string]string{
		"name":        "name is required",
		"status":      "status must be one of: open, closed",
		"totalRounds": "totalRounds must be at most 20",
		"comment":     "comment must be at most 3 characters",
	}, got)
}
