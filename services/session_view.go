package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"vibelink/game"
	"vibelink/models"
	"vibelink/repository"
)

// SessionState is what clients see of a session. Responses of the round
// still collecting stay hidden.
type SessionState struct {
	SessionID     uuid.UUID          `json:"sessionId"`
	RoomID        uuid.UUID          `json:"roomId"`
	HostID        uuid.UUID          `json:"hostId"`
	Status        string             `json:"status"`
	Phase         string             `json:"phase"`
	CurrentRound  int                `json:"currentRound"`
	TotalRounds   int                `json:"totalRounds"`
	Prompt        string             `json:"prompt"`
	Participants  []ParticipantState `json:"participants"`
	Rounds        []RoundSummary     `json:"rounds"`
	RoundDeadline *time.Time         `json:"roundDeadline,omitempty"`
	TimeLeft      int                `json:"timeLeft"`
	StartedAt     time.Time          `json:"startedAt"`
	EndedAt       *time.Time         `json:"endedAt,omitempty"`
}

type ParticipantState struct {
	UserID    uuid.UUID `json:"userId"`
	Active    bool      `json:"active"`
	Responded bool      `json:"responded"`
}

type RoundSummary struct {
	RoundNumber int             `json:"roundNumber"`
	Prompt      string          `json:"prompt"`
	Responses   []ResponseEntry `json:"responses"`
}

type ResponseEntry struct {
	UserID   uuid.UUID `json:"userId"`
	Response string    `json:"response"`
}

func (st *SessionState) hasParticipant(userID uuid.UUID) bool {
	for _, p := range st.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// refresh recomputes the countdown of a stored snapshot.
func (st *SessionState) refresh(now time.Time) {
	st.TimeLeft = 0
	if st.Status == string(game.StatusActive) && st.Phase == string(game.PhaseCollecting) && st.RoundDeadline != nil {
		st.TimeLeft = secondsLeft(st.RoundDeadline.Sub(now))
	}
}

func secondsLeft(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func stateOf(s *game.Session, now time.Time) *SessionState {
	st := &SessionState{
		SessionID:    s.ID,
		RoomID:       s.RoomID,
		HostID:       s.HostID,
		Status:       string(s.Status),
		Phase:        string(s.Phase),
		CurrentRound: s.CurrentRound,
		TotalRounds:  s.TotalRounds,
		Prompt:       s.CurrentPrompt(),
		TimeLeft:     secondsLeft(s.TimeLeft(now)),
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
	}
	if !s.RoundDeadline.IsZero() {
		deadline := s.RoundDeadline
		st.RoundDeadline = &deadline
	}

	answered := s.Responses[s.CurrentRound]
	for _, p := range s.Participants {
		_, responded := answered[p.UserID]
		st.Participants = append(st.Participants, ParticipantState{
			UserID:    p.UserID,
			Active:    p.Active(),
			Responded: responded,
		})
	}

	st.Rounds = []RoundSummary{}
	for round := 1; round <= s.CurrentRound; round++ {
		if round == s.CurrentRound && s.Phase == game.PhaseCollecting {
			break
		}
		st.Rounds = append(st.Rounds, roundSummary(s, round))
	}
	return st
}

func roundSummary(s *game.Session, round int) RoundSummary {
	sum := RoundSummary{RoundNumber: round, Responses: []ResponseEntry{}}
	if round >= 1 && round <= len(s.Prompts) {
		sum.Prompt = s.Prompts[round-1]
	}
	for _, userID := range s.Responded(round) {
		sum.Responses = append(sum.Responses, ResponseEntry{UserID: userID, Response: s.Responses[round][userID]})
	}
	return sum
}

func sessionFromModel(m *models.GameSession) *game.Session {
	s := &game.Session{
		ID:           m.ID,
		RoomID:       m.RoomID,
		HostID:       m.HostID,
		CurrentRound: m.CurrentRound,
		TotalRounds:  m.TotalRounds,
		Status:       game.Status(m.Status),
		Phase:        game.Phase(m.Phase),
		Prompts:      append([]string(nil), m.Prompts...),
		StartedAt:    m.StartedAt,
		EndedAt:      m.EndedAt,
		Responses:    make(map[int]map[uuid.UUID]string),
	}
	if m.RoundDeadline != nil {
		s.RoundDeadline = *m.RoundDeadline
	}
	for _, p := range m.Participants {
		s.Participants = append(s.Participants, game.Participant{UserID: p.UserID, LeftAt: p.LeftAt})
	}
	for _, r := range m.Responses {
		answers := s.Responses[r.RoundNumber]
		if answers == nil {
			answers = make(map[uuid.UUID]string)
			s.Responses[r.RoundNumber] = answers
		}
		answers[r.UserID] = r.Response
	}
	return s
}

func newSessionModel(s *game.Session) *models.GameSession {
	m := &models.GameSession{
		ID:          s.ID,
		RoomID:      s.RoomID,
		TotalRounds: s.TotalRounds,
		Prompts:     s.Prompts,
		StartedAt:   s.StartedAt,
	}
	applySession(m, s)
	for i, p := range s.Participants {
		m.Participants = append(m.Participants, models.SessionParticipant{
			SessionID: s.ID,
			UserID:    p.UserID,
			Position:  i,
			LeftAt:    p.LeftAt,
		})
	}
	return m
}

// applySession copies the mutable fields back onto the row.
func applySession(m *models.GameSession, s *game.Session) {
	m.HostID = s.HostID
	m.Status = string(s.Status)
	m.Phase = string(s.Phase)
	m.CurrentRound = s.CurrentRound
	m.EndedAt = s.EndedAt
	m.RoundDeadline = nil
	if !s.RoundDeadline.IsZero() {
		deadline := s.RoundDeadline
		m.RoundDeadline = &deadline
	}
}

func loadProfiles(ctx context.Context, users repository.UserRepository, ids []uuid.UUID) (map[uuid.UUID]game.Profile, error) {
	list, err := users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	profiles := make(map[uuid.UUID]game.Profile, len(list))
	for _, u := range list {
		if u.Profile == nil {
			continue
		}
		profiles[u.ID] = game.Profile{
			CommunicationStyle: u.Profile.CommunicationStyle,
			EnergyLevel:        u.Profile.EnergyLevel,
			Interests:          u.Profile.Interests,
		}
	}
	return profiles, nil
}
