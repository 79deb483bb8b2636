package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibelink/models"
	"vibelink/testutil"
)

// playOut runs a one-round session to completion and returns its id.
func playOut(t *testing.T, env *testEnv, room *models.Room, host *models.User, players ...*models.User) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	state, err := env.games.CreateSession(ctx, host.ID, &CreateSessionRequest{RoomID: room.ID, TotalRounds: 1})
	require.NoError(t, err)
	for _, p := range append([]*models.User{host}, players...) {
		submit(t, env, p, state.SessionID, 1, "board games and long walks")
	}
	return state.SessionID
}

func oneRound() GameConfig {
	return GameConfig{TotalRounds: 1, RoundDuration: time.Hour, ReviewDuration: time.Hour}
}

func TestMatchService_Create(t *testing.T) {
	env := newTestEnv(t, oneRound(), 101)
	ctx := context.Background()
	a, b, c := env.user(t, "a"), env.user(t, "b"), env.user(t, "c")
	room := env.room(t, 5, a, b)

	state, err := env.games.CreateSession(ctx, a.ID, &CreateSessionRequest{RoomID: room.ID})
	require.NoError(t, err)

	req := &CreateMatchRequest{GameSessionID: state.SessionID, RoomID: room.ID, User1ID: a.ID, User2ID: b.ID}
	_, err = env.matches.Create(ctx, a.ID, req)
	assert.ErrorIs(t, err, ErrSessionNotCompleted, "matches need a completed session")

	submit(t, env, a, state.SessionID, 1, "sushi")
	submit(t, env, b, state.SessionID, 1, "sushi")

	_, err = env.matches.Create(ctx, c.ID, req)
	assert.ErrorIs(t, err, ErrMatchForbidden)

	_, err = env.matches.Create(ctx, a.ID, &CreateMatchRequest{GameSessionID: state.SessionID, RoomID: room.ID, User1ID: a.ID, User2ID: a.ID})
	assert.ErrorIs(t, err, ErrInvalidMatch)

	_, err = env.matches.Create(ctx, a.ID, &CreateMatchRequest{GameSessionID: state.SessionID, RoomID: room.ID, User1ID: a.ID, User2ID: c.ID})
	assert.ErrorIs(t, err, ErrInvalidMatch)

	_, err = env.matches.Create(ctx, a.ID, &CreateMatchRequest{GameSessionID: state.SessionID, RoomID: uuid.New(), User1ID: a.ID, User2ID: b.ID})
	assert.ErrorIs(t, err, ErrInvalidMatch)

	_, err = env.matches.Create(ctx, a.ID, &CreateMatchRequest{GameSessionID: uuid.New(), RoomID: room.ID, User1ID: a.ID, User2ID: b.ID})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	m, err := env.matches.Create(ctx, b.ID, req)
	require.NoError(t, err)
	first, second := models.OrderPair(a.ID, b.ID)
	assert.Equal(t, first, m.User1ID)
	assert.Equal(t, second, m.User2ID)
	assert.Greater(t, m.Score, 0.0)

	_, err = env.matches.Create(ctx, a.ID, &CreateMatchRequest{GameSessionID: state.SessionID, RoomID: room.ID, User1ID: b.ID, User2ID: a.ID})
	assert.ErrorIs(t, err, ErrMatchExists, "the reversed pair is the same match")
}

func TestMatchService_GetAndList(t *testing.T) {
	env := newTestEnv(t, oneRound(), 0)
	ctx := context.Background()
	a, b, c := env.user(t, "a"), env.user(t, "b"), env.user(t, "c")
	room := env.room(t, 5, a, b)
	playOut(t, env, room, a, b)

	list, err := env.matches.List(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := env.matches.Get(ctx, list[0].ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, list[0].ID, got.ID)

	_, err = env.matches.Get(ctx, list[0].ID, c.ID)
	assert.ErrorIs(t, err, ErrMatchForbidden)

	_, err = env.matches.Get(ctx, uuid.New(), a.ID)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	list, err = env.matches.List(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMatchService_RecordSessionIsIdempotent(t *testing.T) {
	env := newTestEnv(t, oneRound(), 0)
	ctx := context.Background()
	a, b, c, d := env.user(t, "a"), env.user(t, "b"), env.user(t, "c"), env.user(t, "d")
	room := env.room(t, 5, a, b, c, d)
	id := playOut(t, env, room, a, b, c, d)

	outcome, err := env.matches.RecordSession(ctx, id)
	require.NoError(t, err)
	assert.Len(t, outcome.Pairs, 6)
	assert.Len(t, outcome.Matches, 2, "four players pair off into two matches")

	again, err := env.matches.RecordSession(ctx, id)
	require.NoError(t, err)
	assert.Len(t, again.Matches, 2)

	seen := map[uuid.UUID]int{}
	for _, m := range again.Matches {
		seen[m.User1ID]++
		seen[m.User2ID]++
	}
	for _, n := range seen {
		assert.Equal(t, 1, n, "nobody is matched twice in one session")
	}
}

func TestLeaderboardService_Top(t *testing.T) {
	env := newTestEnv(t, oneRound(), 0)
	ctx := context.Background()
	a, b := env.user(t, "a"), env.user(t, "b")
	room := env.room(t, 5, a, b)
	playOut(t, env, room, a, b)

	top, err := env.board.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 1, top[0].Wins)
	assert.Equal(t, top[0].Score, top[1].Score)
}

func TestLeaderboardService_RedisCache(t *testing.T) {
	client := testutil.Redis(t)
	env := newTestEnv(t, oneRound(), 0)
	board := NewLeaderboardService(env.store, client, discardLogger())
	ctx := context.Background()
	a, b := env.user(t, "a"), env.user(t, "b")

	top, err := board.Top(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, top)

	ttl, err := client.TTL(ctx, "leaderboard:5").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	room := env.room(t, 5, a, b)
	playOut(t, env, room, a, b)

	top, err = board.Top(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, top, "served from cache until invalidated")

	board.Invalidate(ctx)
	top, err = board.Top(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestStateStore_Redis(t *testing.T) {
	client := testutil.Redis(t)
	states := NewStateStore(client, discardLogger())
	ctx := context.Background()

	id := uuid.New()
	deadline := time.Now().UTC().Add(30 * time.Second)
	states.Save(ctx, &SessionState{SessionID: id, Status: "active", Phase: "collecting", RoundDeadline: &deadline})

	got := states.Load(ctx, id)
	require.NotNil(t, got)
	assert.Equal(t, id, got.SessionID)

	ttl, err := client.TTL(ctx, "session:"+id.String()).Result()
	require.NoError(t, err)
	assert.InDelta(t, sessionStateTTL.Seconds(), ttl.Seconds(), 5)

	got.refresh(time.Now().UTC())
	assert.InDelta(t, 30, got.TimeLeft, 1)

	states.Delete(ctx, id)
	assert.Nil(t, states.Load(ctx, id))
	assert.Nil(t, NewStateStore(nil, discardLogger()).Load(ctx, id))
}
