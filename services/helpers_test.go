package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"vibelink/auth"
	"vibelink/events"
	"vibelink/models"
	"vibelink/repository"
)

type sentMessage struct {
	RoomID  uuid.UUID
	UserID  uuid.UUID
	Type    string
	Payload interface{}
}

// recordingHub captures what services push to clients.
type recordingHub struct {
	mu           sync.Mutex
	messages     []sentMessage
	unsubscribed []uuid.UUID
}

func (h *recordingHub) BroadcastToRoom(roomID uuid.UUID, msgType string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, sentMessage{RoomID: roomID, Type: msgType, Payload: payload})
}

func (h *recordingHub) SendToUser(userID uuid.UUID, msgType string, payload interface{}) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, sentMessage{UserID: userID, Type: msgType, Payload: payload})
	return true
}

func (h *recordingHub) Unsubscribe(userID, _ uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribed = append(h.unsubscribed, userID)
}

func (h *recordingHub) count(msgType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.messages {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

// stepClock moves forward a millisecond per reading so join order is
// never ambiguous.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type testEnv struct {
	store   *repository.MemoryStore
	hub     *recordingHub
	auth    *AuthService
	users   *UserService
	rooms   *RoomService
	games   *GameService
	matches *MatchService
	board   *LeaderboardService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, cfg GameConfig, minScore float64) *testEnv {
	t.Helper()

	logger := discardLogger()
	store := repository.NewMemoryStore()
	hub := &recordingHub{}
	pub := events.NopPublisher{}
	tokens := auth.NewTokenService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)

	board := NewLeaderboardService(store, nil, logger)
	matches := NewMatchService(store, hub, board, pub, minScore, logger)
	games := NewGameService(store, hub, NewStateStore(nil, logger), matches, pub, cfg, logger)
	rooms := NewRoomService(store, hub, pub, logger)
	rooms.now = (&stepClock{t: time.Now().UTC()}).Now
	rooms.SetSessionHook(games)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, games.Resume(ctx))
	t.Cleanup(func() {
		cancel()
		games.Wait()
	})

	return &testEnv{
		store:   store,
		hub:     hub,
		auth:    NewAuthService(store, tokens, logger),
		users:   NewUserService(store, rooms, logger),
		rooms:   rooms,
		games:   games,
		matches: matches,
		board:   board,
	}
}

func slowGame() GameConfig {
	return GameConfig{TotalRounds: 2, RoundDuration: time.Hour, ReviewDuration: time.Hour}
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Email: name + "@example.com", Username: name, PasswordHash: "x"}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

// room creates a room hosted by host with the others already joined.
func (e *testEnv) room(t *testing.T, capacity int, host *models.User, others ...*models.User) *models.Room {
	t.Helper()
	ctx := context.Background()
	room, err := e.rooms.Create(ctx, host.ID, &CreateRoomRequest{Name: "lobby", MaxParticipants: capacity})
	require.NoError(t, err)
	for _, u := range others {
		room, err = e.rooms.Join(ctx, room.ID, u.ID)
		require.NoError(t, err)
	}
	return room
}
