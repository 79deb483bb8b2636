// Package repository persists users, rooms, game sessions and matches.
//
// Two implementations satisfy Store: a gorm/postgres store for production
// and a process-local memory store for DB_DRIVER=memory and tests.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"vibelink/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the repositories. WithinTx runs fn against a Store bound to
// one transaction: fn's error rolls everything back.
type Store interface {
	Users() UserRepository
	Rooms() RoomRepository
	Sessions() SessionRepository
	Matches() MatchRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

const (
	SortByCreatedAt = "created_at"
	SortByUsername  = "username"
)

type ListUsersParams struct {
	Offset int
	Limit  int
	SortBy string
	Desc   bool
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	List(ctx context.Context, p ListUsersParams) ([]models.User, int64, error)
	// Search matches username or bio case-insensitively.
	Search(ctx context.Context, q string, limit int) ([]models.User, error)
	Update(ctx context.Context, u *models.User) error
	UpsertProfile(ctx context.Context, p *models.UserProfile) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Follow reports false when the edge already existed.
	Follow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error)
	// Following lists the users followerID follows, oldest edge first.
	Following(ctx context.Context, followerID uuid.UUID) ([]models.User, error)
}

type RoomRepository interface {
	// Create inserts the room and its initial participants.
	Create(ctx context.Context, r *models.Room) error
	Get(ctx context.Context, id uuid.UUID) (*models.Room, error)
	// GetForUpdate locks the room row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Room, error)
	List(ctx context.Context, status string) ([]models.Room, error)
	Update(ctx context.Context, r *models.Room) error
	AddParticipant(ctx context.Context, roomID, userID uuid.UUID, joinedAt time.Time) error
	RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	// OpenForUser lists rooms that are not closed and include userID.
	OpenForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	// ListIdle lists open rooms untouched since before.
	ListIdle(ctx context.Context, before time.Time) ([]models.Room, error)
}

type SessionRepository interface {
	// Create inserts the session with its participants. A second active
	// session for the same room is ErrDuplicate.
	Create(ctx context.Context, s *models.GameSession) error
	Get(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	ActiveForRoom(ctx context.Context, roomID uuid.UUID) (*models.GameSession, error)
	ListActive(ctx context.Context) ([]models.GameSession, error)
	// ListForUser returns sessions userID took part in, without responses.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.GameSession, error)
	Update(ctx context.Context, s *models.GameSession) error
	MarkParticipantLeft(ctx context.Context, sessionID, userID uuid.UUID, at time.Time) error
	AddResponse(ctx context.Context, r *models.GameResponse) error
}

type MatchRepository interface {
	Create(ctx context.Context, m *models.Match) error
	Get(ctx context.Context, id uuid.UUID) (*models.Match, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Match, error)
	ListForSession(ctx context.Context, sessionID uuid.UUID) ([]models.Match, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}
