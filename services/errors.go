package services

import (
	"errors"
	"strings"

	"vibelink/game"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user with this email or username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrCannotFollowSelf   = errors.New("cannot follow yourself")

	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomClosed     = errors.New("room is closed")
	ErrNotRoomMember  = errors.New("not a member of this room")
	ErrNotRoomHost    = errors.New("only the room host can do this")
	ErrRoomHasSession = errors.New("room already has an active session")

	ErrSessionNotFound     = errors.New("game session not found")
	ErrNotSessionHost      = errors.New("only the session host can do this")
	ErrNotSessionMember    = errors.New("not a participant of this session")
	ErrSessionNotCompleted = errors.New("game session is not completed")

	ErrMatchNotFound  = errors.New("match not found")
	ErrMatchExists    = errors.New("match already exists")
	ErrMatchForbidden = errors.New("not a participant of this match")
	ErrInvalidMatch   = errors.New("invalid match")

	errRoomIDRequired    = errors.New("roomId is required")
	errSessionIDRequired = errors.New("sessionId is required")
	errInvalidSubmission = errors.New("sessionId, roundNumber and response are required")
)

// publicErrors may be shown to websocket clients as is. Anything else is
// reported as an internal error.
var publicErrors = []error{
	ErrUserNotFound,
	ErrRoomNotFound, ErrRoomFull, ErrRoomClosed, ErrNotRoomMember, ErrNotRoomHost, ErrRoomHasSession,
	ErrSessionNotFound, ErrNotSessionHost, ErrNotSessionMember, ErrSessionNotCompleted,
	ErrMatchNotFound, ErrMatchForbidden, ErrInvalidMatch,

	game.ErrSessionNotActive, game.ErrNotParticipant, game.ErrParticipantLeft,
	game.ErrWrongRound, game.ErrRoundClosed, game.ErrAlreadyResponded,
	game.ErrEmptyResponse, game.ErrResponseTooLong, game.ErrRoundStillOpen,

	errRoomIDRequired, errSessionIDRequired, errInvalidSubmission,
}

// publicMessage returns the client-facing text of err. Wrapped details
// such as "invalid match: users must differ" are kept.
func publicMessage(err error) (string, bool) {
	for _, target := range publicErrors {
		if !errors.Is(err, target) {
			continue
		}
		msg := target.Error()
		if full := err.Error(); strings.HasPrefix(full, msg) {
			msg = full
		}
		return msg, true
	}
	return "", false
}
