// Package game holds the icebreaker session state machine. It has no I/O:
// callers load a Session, apply one transition and persist the result.
package game

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseReviewing  Phase = "reviewing"
)

const (
	MinParticipants   = 2
	MaxRounds         = 20
	MaxResponseLength = 500
)

var (
	ErrTooFewParticipants   = errors.New("a game session needs at least two participants")
	ErrDuplicateParticipant = errors.New("participant listed more than once")
	ErrInvalidRounds        = errors.New("total rounds must be between 1 and 20")
	ErrMissingPrompts       = errors.New("a prompt is required for every round")
	ErrSessionNotActive     = errors.New("game session is not active")
	ErrNotParticipant       = errors.New("user is not a participant of this game session")
	ErrParticipantLeft      = errors.New("participant has left this game session")
	ErrWrongRound           = errors.New("response is not for the current round")
	ErrRoundClosed          = errors.New("round is no longer accepting responses")
	ErrAlreadyResponded     = errors.New("response already submitted for this round")
	ErrEmptyResponse        = errors.New("response must not be empty")
	ErrResponseTooLong      = errors.New("response must be at most 500 characters")
	ErrRoundStillOpen       = errors.New("round is still collecting responses")
)

type Participant struct {
	UserID uuid.UUID
	LeftAt *time.Time
}

func (p Participant) Active() bool {
	return p.LeftAt == nil
}

type Session struct {
	ID            uuid.UUID
	RoomID        uuid.UUID
	HostID        uuid.UUID
	Participants  []Participant
	CurrentRound  int
	TotalRounds   int
	Status        Status
	Phase         Phase
	Prompts       []string
	RoundDeadline time.Time
	StartedAt     time.Time
	EndedAt       *time.Time

	// Responses is keyed by round number, then by participant.
	Responses map[int]map[uuid.UUID]string
}

type Params struct {
	ID            uuid.UUID
	RoomID        uuid.UUID
	HostID        uuid.UUID
	Participants  []uuid.UUID
	TotalRounds   int
	RoundDuration time.Duration
	Prompts       []string
}

// NewSession validates params and opens round one.
func NewSession(p Params, now time.Time) (*Session, error) {
	if len(p.Participants) < MinParticipants {
		return nil, ErrTooFewParticipants
	}
	if p.TotalRounds < 1 || p.TotalRounds > MaxRounds {
		return nil, ErrInvalidRounds
	}
	if len(p.Prompts) < p.TotalRounds {
		return nil, ErrMissingPrompts
	}

	seen := make(map[uuid.UUID]struct{}, len(p.Participants))
	participants := make([]Participant, 0, len(p.Participants))
	for _, id := range p.Participants {
		if _, dup := seen[id]; dup {
			return nil, ErrDuplicateParticipant
		}
		seen[id] = struct{}{}
		participants = append(participants, Participant{UserID: id})
	}

	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	return &Session{
		ID:            id,
		RoomID:        p.RoomID,
		HostID:        p.HostID,
		Participants:  participants,
		CurrentRound:  1,
		TotalRounds:   p.TotalRounds,
		Status:        StatusActive,
		Phase:         PhaseCollecting,
		Prompts:       append([]string(nil), p.Prompts[:p.TotalRounds]...),
		RoundDeadline: now.Add(p.RoundDuration),
		StartedAt:     now,
		Responses:     make(map[int]map[uuid.UUID]string),
	}, nil
}

func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusAbandoned
}

func (s *Session) IsFinalRound() bool {
	return s.CurrentRound >= s.TotalRounds
}

// CurrentPrompt returns the prompt of the round in progress.
func (s *Session) CurrentPrompt() string {
	if s.CurrentRound < 1 || s.CurrentRound > len(s.Prompts) {
		return ""
	}
	return s.Prompts[s.CurrentRound-1]
}

func (s *Session) participant(userID uuid.UUID) (int, bool) {
	for i, p := range s.Participants {
		if p.UserID == userID {
			return i, true
		}
	}
	return -1, false
}

func (s *Session) IsParticipant(userID uuid.UUID) bool {
	_, ok := s.participant(userID)
	return ok
}

// ActiveParticipants returns participants that have not left, in join order.
func (s *Session) ActiveParticipants() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.Active() {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

func (s *Session) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// Responded lists participants who answered the given round.
func (s *Session) Responded(round int) []uuid.UUID {
	answers := s.Responses[round]
	ids := make([]uuid.UUID, 0, len(answers))
	for _, p := range s.Participants {
		if _, ok := answers[p.UserID]; ok {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

// RoundComplete reports whether every active participant answered the
// current round.
func (s *Session) RoundComplete() bool {
	answers := s.Responses[s.CurrentRound]
	for _, p := range s.Participants {
		if !p.Active() {
			continue
		}
		if _, ok := answers[p.UserID]; !ok {
			return false
		}
	}
	return true
}

// Submit records one response for the current round. The returned bool is
// true when the round has every active participant's answer.
func (s *Session) Submit(userID uuid.UUID, round int, text string, now time.Time) (bool, error) {
	if s.Status != StatusActive {
		return false, ErrSessionNotActive
	}
	idx, ok := s.participant(userID)
	if !ok {
		return false, ErrNotParticipant
	}
	if !s.Participants[idx].Active() {
		return false, ErrParticipantLeft
	}
	if round != s.CurrentRound {
		return false, ErrWrongRound
	}
	if s.Phase != PhaseCollecting || (!s.RoundDeadline.IsZero() && now.After(s.RoundDeadline)) {
		return false, ErrRoundClosed
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return false, ErrEmptyResponse
	}
	if utf8.RuneCountInString(text) > MaxResponseLength {
		return false, ErrResponseTooLong
	}

	answers := s.Responses[round]
	if answers == nil {
		answers = make(map[uuid.UUID]string)
		if s.Responses == nil {
			s.Responses = make(map[int]map[uuid.UUID]string)
		}
		s.Responses[round] = answers
	}
	if _, dup := answers[userID]; dup {
		return false, ErrAlreadyResponded
	}
	answers[userID] = text

	return s.RoundComplete(), nil
}

// CloseRound stops collecting for the current round. Closing the final round
// completes the session.
func (s *Session) CloseRound(now time.Time) error {
	if s.Status != StatusActive {
		return ErrSessionNotActive
	}
	if s.Phase != PhaseCollecting {
		return ErrRoundClosed
	}

	s.Phase = PhaseReviewing
	s.RoundDeadline = time.Time{}
	if s.IsFinalRound() {
		s.Status = StatusCompleted
		s.EndedAt = &now
	}
	return nil
}

// Advance opens the next round. It never moves past TotalRounds because the
// final round completes the session when it closes.
func (s *Session) Advance(now time.Time, roundDuration time.Duration) error {
	if s.Status != StatusActive {
		return ErrSessionNotActive
	}
	if s.Phase != PhaseReviewing {
		return ErrRoundStillOpen
	}
	if s.IsFinalRound() {
		return ErrSessionNotActive
	}

	s.CurrentRound++
	s.Phase = PhaseCollecting
	s.RoundDeadline = now.Add(roundDuration)
	return nil
}

type LeaveOutcome struct {
	Abandoned     bool
	RoundComplete bool
	NewHostID     uuid.UUID
}

// Leave marks a participant as departed. Fewer than two remaining
// participants abandons the session.
func (s *Session) Leave(userID uuid.UUID, now time.Time) (LeaveOutcome, error) {
	var out LeaveOutcome
	if s.IsTerminal() {
		return out, ErrSessionNotActive
	}
	idx, ok := s.participant(userID)
	if !ok {
		return out, ErrNotParticipant
	}
	if !s.Participants[idx].Active() {
		return out, nil
	}

	left := now
	s.Participants[idx].LeftAt = &left

	active := s.ActiveParticipants()
	if len(active) < MinParticipants {
		s.abandon(now)
		out.Abandoned = true
		return out, nil
	}

	if s.HostID == userID {
		s.HostID = active[0]
		out.NewHostID = s.HostID
	}

	out.RoundComplete = s.Phase == PhaseCollecting && s.RoundComplete()
	return out, nil
}

func (s *Session) Abandon(now time.Time) error {
	if s.IsTerminal() {
		return ErrSessionNotActive
	}
	s.abandon(now)
	return nil
}

func (s *Session) abandon(now time.Time) {
	s.Status = StatusAbandoned
	s.RoundDeadline = time.Time{}
	s.EndedAt = &now
}

// TimeLeft is the remaining collection time, floored at zero.
func (s *Session) TimeLeft(now time.Time) time.Duration {
	if s.Phase != PhaseCollecting || s.RoundDeadline.IsZero() {
		return 0
	}
	left := s.RoundDeadline.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
