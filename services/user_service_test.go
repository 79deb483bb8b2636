package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibelink/models"
)

func strPtr(s string) *string { return &s }

func TestUserService_List(t *testing.T) {
	env := newTestEnv(t, slowGame(), 0)
	ctx := context.Background()
	for _, name := range []string{"carol", "alice", "bob"} {
		env.user(t, name)
	}

	page, err := env.users.List(ctx, ListUsersQuery{Page: 1, PageSize: 2, SortBy: "username", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Users, 2)
	assert.Equal(t, "alice", page.Users[0].Username)
	assert.Equal(t, "bob", page.Users[1].Username)

	page, err = env.users.List(ctx, ListUsersQuery{Page: 2, PageSize: 2, SortBy: "username", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "carol", page.Users[0].Username)

	page, err = env.users.List(ctx, ListUsersQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultPageSize, page.PageSize)
}

func TestUserService_UpdateProfile(t *testing.T) {
	env := newTestEnv(t, slowGame(), 0)
	ctx := context.Background()
	u := env.user(t, "dana")

	age := 29
	updated, err := env.users.UpdateProfile(ctx, u.ID, &UpdateProfileRequest{
		Bio: strPtr("  climber  "),
		Profile: &ProfileInput{
			CommunicationStyle: strPtr(models.StyleHumorous),
			Interests:          []string{"Climbing", "jazz", "climbing", " "},
			Age:                &age,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "climber", updated.Bio)
	require.NotNil(t, updated.Profile)
	assert.Equal(t, models.StyleHumorous, updated.Profile.CommunicationStyle)
	assert.Equal(t, []string{"climbing", "jazz"}, updated.Profile.Interests)
	require.NotNil(t, updated.Profile.Age)
	assert.Equal(t, 29, *updated.Profile.Age)

	// A partial profile keeps untouched fields.
	updated, err = env.users.UpdateProfile(ctx, u.ID, &UpdateProfileRequest{
		Profile: &ProfileInput{EnergyLevel: strPtr(models.EnergyLow)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StyleHumorous, updated.Profile.CommunicationStyle)
	assert.Equal(t, models.EnergyLow, updated.Profile.EnergyLevel)
	assert.Equal(t, "climber", updated.Bio)

	_, err = env.users.UpdateProfile(ctx, uuid.New(), &UpdateProfileRequest{Bio: strPtr("x")})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfileRequest_FlatFieldsWin(t *testing.T) {
	age := 40
	req := UpdateProfileRequest{
		EnergyLevel: strPtr(models.EnergyHigh),
		Age:         &age,
		Profile:     &ProfileInput{EnergyLevel: strPtr(models.EnergyLow), Location: strPtr("Oslo")},
	}
	in := req.profileInput()
	require.NotNil(t, in)
	assert.Equal(t, models.EnergyHigh, *in.EnergyLevel)
	assert.Equal(t, "Oslo", *in.Location)
	assert.Equal(t, 40, *in.Age)

	assert.Nil(t, (&UpdateProfileRequest{Bio: strPtr("x")}).profileInput())
}

func TestUserService_Follow(t *testing.T) {
	env := newTestEnv(t, slowGame(), 0)
	ctx := context.Background()
	a, b := env.user(t, "amy"), env.user(t, "ben")

	assert.ErrorIs(t, env.users.Follow(ctx, a.ID, a.ID), ErrCannotFollowSelf)
	assert.ErrorIs(t, env.users.Follow(ctx, a.ID, uuid.New()), ErrUserNotFound)

	require.NoError(t, env.users.Follow(ctx, a.ID, b.ID))
	require.NoError(t, env.users.Follow(ctx, a.ID, b.ID))

	conns, err := env.users.Connections(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, b.ID, conns[0].ID)

	require.NoError(t, env.users.Unfollow(ctx, a.ID, b.ID))
	conns, err = env.users.Connections(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, conns)

	_, err = env.users.Connections(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_Search(t *testing.T) {
	env := newTestEnv(t, slowGame(), 0)
	ctx := context.Background()
	env.user(t, "skywalker")
	env.user(t, "walker")
	env.user(t, "zed")

	results, err := env.users.Search(ctx, "WALK")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = env.users.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUserService_DeleteLeavesRooms(t *testing.T) {
	env := newTestEnv(t, slowGame(), 0)
	ctx := context.Background()
	host, guest := env.user(t, "host"), env.user(t, "guest")
	room := env.room(t, 4, host, guest)

	require.NoError(t, env.users.Delete(ctx, host.ID))

	got, err := env.rooms.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, got.HasParticipant(host.ID))
	assert.Equal(t, guest.ID, got.HostID)

	_, err = env.users.Get(ctx, host.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, env.users.Delete(ctx, host.ID), ErrUserNotFound)
}

func TestUserService_Stats(t *testing.T) {
	env := newTestEnv(t, GameConfig{TotalRounds: 1, RoundDuration: time.Hour, ReviewDuration: time.Hour}, 101)
	ctx := context.Background()
	a, b := env.user(t, "ann"), env.user(t, "bo")
	room := env.room(t, 4, a, b)

	state, err := env.games.CreateSession(ctx, a.ID, &CreateSessionRequest{RoomID: room.ID})
	require.NoError(t, err)
	for _, u := range []*models.User{a, b} {
		_, err := env.games.SubmitResponse(ctx, u.ID, &SubmitResponseRequest{SessionID: state.SessionID, RoundNumber: 1, Response: "pizza"})
		require.NoError(t, err)
	}

	stats, err := env.users.Stats(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{Wins: 0, Losses: 1, TotalMatches: 0, SessionsPlayed: 1}, *stats)

	_, err = env.matches.Create(ctx, a.ID, &CreateMatchRequest{GameSessionID: state.SessionID, RoomID: room.ID, User1ID: a.ID, User2ID: b.ID})
	require.NoError(t, err)

	stats, err = env.users.Stats(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{Wins: 1, Losses: 0, TotalMatches: 1, SessionsPlayed: 1}, *stats)
}
