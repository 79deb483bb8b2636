package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"vibelink/auth"
	"vibelink/game"
	"vibelink/middleware"
	"vibelink/services"
)

type errorRule struct {
	target  error
	status  int
	message string
}

// serviceRules maps service sentinels to responses. An empty message
// renders the error text itself.
var serviceRules = []errorRule{
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{services.ErrUserExists, http.StatusConflict, "User with this email or username already exists"},
	{services.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{services.ErrCannotFollowSelf, http.StatusBadRequest, "Cannot follow yourself"},

	{services.ErrRoomNotFound, http.StatusNotFound, "Room not found"},
	{services.ErrRoomFull, http.StatusConflict, "Room is full"},
	{services.ErrRoomClosed, http.StatusConflict, "Room is closed"},
	{services.ErrNotRoomMember, http.StatusBadRequest, "You are not a member of this room"},
	{services.ErrNotRoomHost, http.StatusForbidden, "Only the room host can do this"},
	{services.ErrRoomHasSession, http.StatusConflict, "Room already has an active game session"},

	{services.ErrSessionNotFound, http.StatusNotFound, "Game session not found"},
	{services.ErrNotSessionHost, http.StatusForbidden, "Only the session host can do this"},
	{services.ErrNotSessionMember, http.StatusForbidden, "You are not part of this game session"},
	{services.ErrSessionNotCompleted, http.StatusConflict, "Game session is not completed"},

	{services.ErrMatchNotFound, http.StatusNotFound, "Match not found"},
	{services.ErrMatchExists, http.StatusConflict, "Match already exists"},
	{services.ErrMatchForbidden, http.StatusForbidden, "You are not part of this match"},
	{services.ErrInvalidMatch, http.StatusBadRequest, ""},

	{game.ErrAlreadyResponded, http.StatusConflict, ""},
	{game.ErrRoundClosed, http.StatusConflict, ""},
	{game.ErrSessionNotActive, http.StatusConflict, ""},
	{game.ErrRoundStillOpen, http.StatusConflict, ""},
	{game.ErrNotParticipant, http.StatusForbidden, ""},
	{game.ErrParticipantLeft, http.StatusForbidden, ""},
	{game.ErrWrongRound, http.StatusBadRequest, ""},
	{game.ErrEmptyResponse, http.StatusBadRequest, ""},
	{game.ErrResponseTooLong, http.StatusBadRequest, ""},
	{game.ErrTooFewParticipants, http.StatusBadRequest, ""},
	{game.ErrDuplicateParticipant, http.StatusBadRequest, ""},
	{game.ErrInvalidRounds, http.StatusBadRequest, ""},
	{game.ErrMissingPrompts, http.StatusBadRequest, ""},

	{auth.ErrTokenExpired, http.StatusUnauthorized, "Invalid or expired token"},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, "Invalid or expired token"},
}

// toAppError translates a service error for the error middleware.
// Unknown errors stay 500s.
func toAppError(err error) error {
	var appErr *middleware.AppError
	if errors.As(err, &appErr) {
		return err
	}
	for _, rule := range serviceRules {
		if errors.Is(err, rule.target) {
			msg := rule.message
			if msg == "" {
				msg = sentence(err.Error())
			}
			return middleware.NewAppError(rule.status, msg, err)
		}
	}
	return middleware.Internal(err)
}

func sentence(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.TrimSpace(s[size:])
}

func fail(c *gin.Context, err error) {
	middleware.Abort(c, toAppError(err))
}
