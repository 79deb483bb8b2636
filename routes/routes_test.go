package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibelink/auth"
	"vibelink/events"
	"vibelink/handlers"
	"vibelink/middleware"
	"vibelink/models"
	"vibelink/ratelimit"
	"vibelink/repository"
	"vibelink/response"
	"vibelink/routes"
	"vibelink/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorBody `json:"error"`
}

type testAPI struct {
	router *gin.Engine
}

type apiUser struct {
	ID    uuid.UUID
	Token string
}

func newAPI(t *testing.T, maxRequests int) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	pub := events.NopPublisher{}
	tokens := auth.NewTokenService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	hub := services.NewHub(logger)
	go hub.Run(ctx)

	board := services.NewLeaderboardService(store, nil, logger)
	matches := services.NewMatchService(store, hub, board, pub, 0, logger)
	games := services.NewGameService(store, hub, services.NewStateStore(nil, logger), matches, pub, services.GameConfig{
		TotalRounds:    1,
		RoundDuration:  time.Hour,
		ReviewDuration: time.Hour,
	}, logger)
	rooms := services.NewRoomService(store, hub, pub, logger)
	rooms.SetSessionHook(games)
	require.NoError(t, games.Resume(ctx))

	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Window: time.Minute, MaxRequests: maxRequests})
	origins := middleware.NewOriginPolicy("http://app.test")

	router := gin.New()
	routes.SetupRoutes(router, routes.Handlers{
		Auth:        handlers.NewAuthHandler(services.NewAuthService(store, tokens, logger)),
		Users:       handlers.NewUserHandler(services.NewUserService(store, rooms, logger)),
		Rooms:       handlers.NewRoomHandler(rooms, hub, "http://app.test"),
		Games:       handlers.NewGameHandler(games),
		Matches:     handlers.NewMatchHandler(matches),
		Leaderboard: handlers.NewLeaderboardHandler(board),
		Health:      handlers.NewHealthHandler("test"),
		WS:          handlers.NewWSHandler(hub, tokens, origins, logger),
	}, routes.Options{
		Tokens:  tokens,
		Origins: origins,
		Limiter: limiter,
		Logger:  logger,
	})

	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		games.Wait()
	})
	return &testAPI{router: router}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (a *testAPI) register(t *testing.T, name string) apiUser {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    name + "@example.com",
		"username": name,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out struct {
		User  struct{ ID uuid.UUID } `json:"user"`
		Token string                 `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return apiUser{ID: out.User.ID, Token: out.Token}
}

func (a *testAPI) createRoom(t *testing.T, host apiUser, capacity int) uuid.UUID {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/rooms", host.Token, gin.H{"name": "Friday mixer", "maxParticipants": capacity})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Room struct{ ID uuid.UUID } `json:"room"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out.Room.ID
}

func (a *testAPI) startSession(t *testing.T, host apiUser, roomID uuid.UUID) uuid.UUID {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/games/session", host.Token, gin.H{"roomId": roomID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Session struct {
			SessionID uuid.UUID `json:"sessionId"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out.Session.SessionID
}

func respond(sessionID uuid.UUID, text string) gin.H {
	return gin.H{"sessionId": sessionID, "roundNumber": 1, "response": text}
}

func TestHealth(t *testing.T) {
	api := newAPI(t, 100)
	for _, path := range []string{"/health", "/api/health"} {
		rec, _ := api.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "test", body["environment"])
		assert.NotEmpty(t, body["timestamp"])
	}
}

func TestNoRoute(t *testing.T) {
	api := newAPI(t, 100)
	rec, env := api.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Route not found", env.Error.Message)
	assert.Equal(t, "/api/nope", env.Error.Path)
}

func TestAuthFlow(t *testing.T) {
	api := newAPI(t, 100)
	ada := api.register(t, "ada")

	rec, env := api.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "ada@example.com", "username": "ada2", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)

	rec, env = api.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", env.Error.Message)

	rec, env = api.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ADA@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))

	rec, env = api.do(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"token"`)

	rec, _ = api.do(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refreshToken": ada.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "access tokens cannot refresh")

	rec, env = api.do(t, http.MethodGet, "/api/users/me", ada.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "ada@example.com")

	rec, env = api.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing authorization token", env.Error.Message)
}

func TestRegister_Validation(t *testing.T) {
	api := newAPI(t, 100)
	rec, env := api.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": "not-an-email", "username": "a!", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation failed", env.Error.Message)

	fields := map[string]string{}
	for _, fe := range env.Error.Errors {
		fields[fe.Field] = fe.Location
	}
	assert.Equal(t, map[string]string{"email": "body", "username": "body", "password": "body"}, fields)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid request body")
}

func TestUsers(t *testing.T) {
	api := newAPI(t, 100)
	ada := api.register(t, "ada")
	bob := api.register(t, "bob")

	rec, env := api.do(t, http.MethodPatch, "/api/users/"+bob.ID.String(), ada.Token, gin.H{"bio": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Cannot update other user profiles", env.Error.Message)

	rec, env = api.do(t, http.MethodPatch, "/api/users/"+ada.ID.String(), ada.Token, gin.H{
		"bio":     "likes hiking",
		"profile": gin.H{"interests": []string{"Hiking", "hiking", "chess"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Profile updated successfully", env.Message)
	assert.NotContains(t, string(env.Data), "ada@example.com", "update response hides email")

	rec, env = api.do(t, http.MethodPatch, "/api/users/"+ada.ID.String(), ada.Token, gin.H{"age": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, env.Error.Errors, 1)
	assert.Equal(t, "age", env.Error.Errors[0].Field)
	assert.Equal(t, "body", env.Error.Errors[0].Location)

	rec, env = api.do(t, http.MethodPatch, "/api/users/"+ada.ID.String(), ada.Token, gin.H{
		"communication_style": "direct",
		"energy_level":        "high",
		"location":            "Lisbon",
		"age":                 31,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		User models.PublicUser `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.NotNil(t, updated.User.Profile)
	assert.Equal(t, "direct", updated.User.Profile.CommunicationStyle)
	assert.Equal(t, "high", updated.User.Profile.EnergyLevel)
	assert.Equal(t, "Lisbon", updated.User.Profile.Location)
	require.NotNil(t, updated.User.Profile.Age)
	assert.Equal(t, 31, *updated.User.Profile.Age)
	assert.Equal(t, []string{"hiking", "chess"}, updated.User.Profile.Interests, "flat update keeps earlier interests")
	assert.Equal(t, "likes hiking", updated.User.Bio)

	rec, env = api.do(t, http.MethodGet, "/api/users/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", env.Error.Message)

	rec, env = api.do(t, http.MethodGet, "/api/users/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, env.Error.Errors, 1)
	assert.Equal(t, "params", env.Error.Errors[0].Location)

	rec, env = api.do(t, http.MethodGet, "/api/users/"+ada.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), "ada@example.com", "public profiles hide email")

	rec, env = api.do(t, http.MethodGet, "/api/users?pageSize=1&sortBy=username&sortOrder=asc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page services.UserPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "ada", page.Users[0].Username)

	rec, _ = api.do(t, http.MethodGet, "/api/users?sortBy=email", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = api.do(t, http.MethodGet, "/api/users/search?q=hik", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"results"`)
	assert.Contains(t, string(env.Data), "ada")

	rec, env = api.do(t, http.MethodPost, "/api/users/"+bob.ID.String()+"/follow", ada.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User followed successfully", env.Message)

	rec, _ = api.do(t, http.MethodPost, "/api/users/"+ada.ID.String()+"/follow", ada.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = api.do(t, http.MethodGet, "/api/users/"+ada.ID.String()+"/connections", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var conns struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &conns))
	assert.Equal(t, 1, conns.Total)

	rec, env = api.do(t, http.MethodDelete, "/api/users/"+bob.ID.String()+"/follow", ada.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User unfollowed successfully", env.Message)

	rec, env = api.do(t, http.MethodDelete, "/api/users/"+bob.ID.String(), ada.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Cannot delete other accounts", env.Error.Message)

	rec, env = api.do(t, http.MethodDelete, "/api/users/"+bob.ID.String(), bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Account deleted successfully", env.Message)

	rec, _ = api.do(t, http.MethodGet, "/api/users/"+bob.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRooms(t *testing.T) {
	api := newAPI(t, 100)
	host, guest, late := api.register(t, "host"), api.register(t, "guest"), api.register(t, "late")
	roomID := api.createRoom(t, host, 2)
	path := "/api/rooms/" + roomID.String()

	rec, _ := api.do(t, http.MethodPost, path+"/join", guest.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := api.do(t, http.MethodPost, path+"/join", guest.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, "joining twice is a no-op")
	assert.Contains(t, string(env.Data), `"currentParticipants":2`)

	rec, env = api.do(t, http.MethodPost, path+"/join", late.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Room is full", env.Error.Message)

	rec, _ = api.do(t, http.MethodPost, path+"/leave", late.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = api.do(t, http.MethodGet, path, guest.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"online":[]`)

	rec, _ = api.do(t, http.MethodGet, "/api/rooms/"+uuid.NewString(), guest.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.do(t, http.MethodGet, path+"/qr", guest.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec, _ = api.do(t, http.MethodDelete, path, guest.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = api.do(t, http.MethodDelete, path, host.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"status":"closed"`)

	rec, _ = api.do(t, http.MethodGet, "/api/rooms?status=closed", guest.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = api.do(t, http.MethodGet, "/api/rooms?status=gone", guest.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGameAndMatches(t *testing.T) {
	api := newAPI(t, 100)
	host, a, b, outsider := api.register(t, "host"), api.register(t, "alice"), api.register(t, "bobby"), api.register(t, "eve")
	roomID := api.createRoom(t, host, 5)
	for _, u := range []apiUser{a, b} {
		rec, _ := api.do(t, http.MethodPost, "/api/rooms/"+roomID.String()+"/join", u.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, _ := api.do(t, http.MethodPost, "/api/games/session", outsider.Token, gin.H{"roomId": roomID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	sessionID := api.startSession(t, host, roomID)
	sessionPath := "/api/games/session/" + sessionID.String()

	rec, _ = api.do(t, http.MethodPost, "/api/games/session", host.Token, gin.H{"roomId": roomID})
	assert.Equal(t, http.StatusConflict, rec.Code, "one active session per room")

	rec, _ = api.do(t, http.MethodGet, sessionPath, outsider.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/games/response", a.Token, respond(sessionID, "pizza and board games"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := api.do(t, http.MethodPost, "/api/games/response", a.Token, respond(sessionID, "changed my mind"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Response already submitted for this round", env.Error.Message)

	rec, _ = api.do(t, http.MethodGet, sessionPath+"/results", a.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = api.do(t, http.MethodPost, "/api/matches", a.Token, gin.H{
		"gameSessionId": sessionID, "roomId": roomID, "user1Id": a.ID, "user2Id": b.ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Game session is not completed", env.Error.Message)

	rec, _ = api.do(t, http.MethodPost, sessionPath+"/advance", a.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the host advances")

	for _, u := range []apiUser{host, b} {
		rec, _ = api.do(t, http.MethodPost, "/api/games/response", u.Token, respond(sessionID, "pizza and long walks"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec, env = api.do(t, http.MethodGet, sessionPath, a.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"status":"completed"`)

	rec, env = api.do(t, http.MethodGet, sessionPath+"/results", a.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var outcome struct {
		Matches []struct {
			User1ID uuid.UUID `json:"user1Id"`
			User2ID uuid.UUID `json:"user2Id"`
		} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	require.Len(t, outcome.Matches, 1, "three players pair off once")
	m := outcome.Matches[0]

	tokens := map[uuid.UUID]string{host.ID: host.Token, a.ID: a.Token, b.ID: b.Token}
	rec, env = api.do(t, http.MethodPost, "/api/matches", tokens[m.User1ID], gin.H{
		"gameSessionId": sessionID, "roomId": roomID, "user1Id": m.User2ID, "user2Id": m.User1ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "the recorded pair already exists")
	assert.Equal(t, "Match already exists", env.Error.Message)

	rec, _ = api.do(t, http.MethodPost, "/api/matches", outsider.Token, gin.H{
		"gameSessionId": sessionID, "roomId": roomID, "user1Id": m.User1ID, "user2Id": m.User2ID,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/matches", a.Token, gin.H{"gameSessionId": sessionID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = api.do(t, http.MethodGet, "/api/leaderboard?limit=5", a.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"leaderboard"`)

	rec, _ = api.do(t, http.MethodGet, "/api/leaderboard?limit=500", a.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = api.do(t, http.MethodGet, "/api/users/"+host.ID.String()+"/stats", host.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"sessionsPlayed":1`)
}

func TestRateLimit(t *testing.T) {
	api := newAPI(t, 2)
	for i := 0; i < 2; i++ {
		rec, _ := api.do(t, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests, please try again later", env.Error.Message)
	assert.Greater(t, env.Error.RetryAfter, 0)
	assert.LessOrEqual(t, env.Error.RetryAfter, 60)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestWebSocket(t *testing.T) {
	api := newAPI(t, 100)
	ada := api.register(t, "ada")
	srv := httptest.NewServer(api.router)
	t.Cleanup(srv.Close)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+ada.Token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(services.Message{Type: "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)
}
