package game_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibelink/game"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newSession(t *testing.T, participants int, rounds int) (*game.Session, []uuid.UUID) {
	t.Helper()

	ids := make([]uuid.UUID, participants)
	for i := range ids {
		ids[i] = uuid.New()
	}
	id := uuid.New()
	s, err := game.NewSession(game.Params{
		ID:            id,
		RoomID:        uuid.New(),
		HostID:        ids[0],
		Participants:  ids,
		TotalRounds:   rounds,
		RoundDuration: time.Minute,
		Prompts:       game.DrawPrompts(id, rounds),
	}, t0)
	require.NoError(t, err)
	return s, ids
}

func TestNewSession(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	tests := []struct {
		name    string
		params  game.Params
		wantErr error
	}{
		{
			name:    "too few participants",
			params:  game.Params{Participants: []uuid.UUID{a}, TotalRounds: 3, Prompts: []string{"x", "y", "z"}},
			wantErr: game.ErrTooFewParticipants,
		},
		{
			name:    "duplicate participant",
			params:  game.Params{Participants: []uuid.UUID{a, a}, TotalRounds: 1, Prompts: []string{"x"}},
			wantErr: game.ErrDuplicateParticipant,
		},
		{
			name:    "zero rounds",
			params:  game.Params{Participants: []uuid.UUID{a, b}, TotalRounds: 0},
			wantErr: game.ErrInvalidRounds,
		},
		{
			name:    "too many rounds",
			params:  game.Params{Participants: []uuid.UUID{a, b}, TotalRounds: game.MaxRounds + 1},
			wantErr: game.ErrInvalidRounds,
		},
		{
			name:    "missing prompts",
			params:  game.Params{Participants: []uuid.UUID{a, b}, TotalRounds: 2, Prompts: []string{"x"}},
			wantErr: game.ErrMissingPrompts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := game.NewSession(tt.params, t0)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("opens round one", func(t *testing.T) {
		s, ids := newSession(t, 3, 4)
		assert.Equal(t, game.StatusActive, s.Status)
		assert.Equal(t, game.PhaseCollecting, s.Phase)
		assert.Equal(t, 1, s.CurrentRound)
		assert.Equal(t, 4, s.TotalRounds)
		assert.Equal(t, t0.Add(time.Minute), s.RoundDeadline)
		assert.Equal(t, ids, s.ParticipantIDs())
		assert.NotEmpty(t, s.CurrentPrompt())
	})
}

func TestSession_Submit(t *testing.T) {
	s, ids := newSession(t, 2, 2)

	complete, err := s.Submit(ids[0], 1, "  I love hiking in the mountains  ", t0.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, "I love hiking in the mountains", s.Responses[1][ids[0]])

	_, err = s.Submit(ids[0], 1, "again", t0.Add(2*time.Second))
	assert.ErrorIs(t, err, game.ErrAlreadyResponded)

	_, err = s.Submit(ids[1], 2, "future round", t0.Add(2*time.Second))
	assert.ErrorIs(t, err, game.ErrWrongRound)

	_, err = s.Submit(uuid.New(), 1, "stranger", t0.Add(2*time.Second))
	assert.ErrorIs(t, err, game.ErrNotParticipant)

	_, err = s.Submit(ids[1], 1, "   ", t0.Add(2*time.Second))
	assert.ErrorIs(t, err, game.ErrEmptyResponse)

	_, err = s.Submit(ids[1], 1, strings.Repeat("a", game.MaxResponseLength+1), t0)
	assert.ErrorIs(t, err, game.ErrResponseTooLong)

	complete, err = s.Submit(ids[1], 1, "Mountains and long hikes", t0.Add(3*time.Second))
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, ids, s.Responded(1))
}

func TestSession_SubmitAfterDeadline(t *testing.T) {
	s, ids := newSession(t, 2, 1)

	_, err := s.Submit(ids[0], 1, "too late", t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, game.ErrRoundClosed)
}

func TestSession_RoundProgression(t *testing.T) {
	s, ids := newSession(t, 2, 3)
	now := t0

	for round := 1; round <= 3; round++ {
		assert.Equal(t, round, s.CurrentRound)
		for _, id := range ids {
			_, err := s.Submit(id, round, "answer", now)
			require.NoError(t, err)
		}

		require.NoError(t, s.CloseRound(now))
		assert.LessOrEqual(t, s.CurrentRound, s.TotalRounds)

		if round < 3 {
			assert.Equal(t, game.StatusActive, s.Status)
			assert.Equal(t, game.PhaseReviewing, s.Phase)
			require.NoError(t, s.Advance(now, time.Minute))
		}
		now = now.Add(10 * time.Second)
	}

	assert.Equal(t, game.StatusCompleted, s.Status)
	assert.True(t, s.IsTerminal())
	assert.Equal(t, 3, s.CurrentRound)
	require.NotNil(t, s.EndedAt)

	assert.ErrorIs(t, s.Advance(now, time.Minute), game.ErrSessionNotActive)
	assert.ErrorIs(t, s.CloseRound(now), game.ErrSessionNotActive)
	assert.Equal(t, 3, s.CurrentRound, "round must never exceed total rounds")
}

func TestSession_AdvanceRequiresReview(t *testing.T) {
	s, _ := newSession(t, 2, 2)

	assert.ErrorIs(t, s.Advance(t0, time.Minute), game.ErrRoundStillOpen)
	require.NoError(t, s.CloseRound(t0))
	assert.ErrorIs(t, s.CloseRound(t0), game.ErrRoundClosed)
	require.NoError(t, s.Advance(t0, time.Minute))
	assert.Equal(t, 2, s.CurrentRound)
	assert.Equal(t, game.PhaseCollecting, s.Phase)
}

func TestSession_Leave(t *testing.T) {
	t.Run("remaining participants complete the round", func(t *testing.T) {
		s, ids := newSession(t, 3, 2)

		_, err := s.Submit(ids[1], 1, "hello", t0)
		require.NoError(t, err)
		_, err = s.Submit(ids[2], 1, "hello there", t0)
		require.NoError(t, err)

		out, err := s.Leave(ids[0], t0)
		require.NoError(t, err)
		assert.False(t, out.Abandoned)
		assert.True(t, out.RoundComplete)
		assert.Equal(t, ids[1], out.NewHostID)
		assert.Equal(t, ids[1], s.HostID)
		assert.Equal(t, []uuid.UUID{ids[1], ids[2]}, s.ActiveParticipants())

		_, err = s.Submit(ids[0], 1, "back again", t0)
		assert.ErrorIs(t, err, game.ErrParticipantLeft)
	})

	t.Run("too few participants abandons", func(t *testing.T) {
		s, ids := newSession(t, 2, 2)

		out, err := s.Leave(ids[1], t0)
		require.NoError(t, err)
		assert.True(t, out.Abandoned)
		assert.Equal(t, game.StatusAbandoned, s.Status)

		_, err = s.Leave(ids[0], t0)
		assert.ErrorIs(t, err, game.ErrSessionNotActive)
	})

	t.Run("leaving twice is a no-op", func(t *testing.T) {
		s, ids := newSession(t, 3, 2)

		_, err := s.Leave(ids[2], t0)
		require.NoError(t, err)
		out, err := s.Leave(ids[2], t0)
		require.NoError(t, err)
		assert.False(t, out.Abandoned)
	})

	t.Run("unknown user", func(t *testing.T) {
		s, _ := newSession(t, 2, 1)
		_, err := s.Leave(uuid.New(), t0)
		assert.ErrorIs(t, err, game.ErrNotParticipant)
	})
}

func TestSession_TimeLeft(t *testing.T) {
	s, _ := newSession(t, 2, 1)

	assert.Equal(t, 45*time.Second, s.TimeLeft(t0.Add(15*time.Second)))
	assert.Equal(t, time.Duration(0), s.TimeLeft(t0.Add(2*time.Minute)))

	require.NoError(t, s.CloseRound(t0))
	assert.Equal(t, time.Duration(0), s.TimeLeft(t0))
}

func TestDrawPrompts(t *testing.T) {
	id := uuid.New()

	first := game.DrawPrompts(id, 5)
	second := game.DrawPrompts(id, 5)
	assert.Len(t, first, 5)
	assert.Equal(t, first, second)

	seen := make(map[string]bool)
	for _, p := range first {
		assert.False(t, seen[p], "prompt %q drawn twice", p)
		seen[p] = true
	}

	assert.Len(t, game.DrawPrompts(id, 40), 40)
	assert.Nil(t, game.DrawPrompts(id, 0))
}
