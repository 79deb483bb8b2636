package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Match pairs two users after a completed session. User1ID always sorts
// before User2ID so a pair has exactly one representation.
type Match struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	User1ID       uuid.UUID `json:"user1Id" gorm:"type:uuid;not null;uniqueIndex:idx_match_pair"`
	User2ID       uuid.UUID `json:"user2Id" gorm:"type:uuid;not null;uniqueIndex:idx_match_pair"`
	RoomID        uuid.UUID `json:"roomId" gorm:"type:uuid;not null"`
	GameSessionID uuid.UUID `json:"gameSessionId" gorm:"type:uuid;not null;uniqueIndex:idx_match_pair"`
	Score         float64   `json:"score" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Involves reports whether userID is one side of the match.
func (m *Match) Involves(userID uuid.UUID) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// Partner returns the other side of the match.
func (m *Match) Partner(userID uuid.UUID) uuid.UUID {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// OrderPair returns a and b in canonical order.
func OrderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// LeaderboardEntry is an aggregate row, not a table.
type LeaderboardEntry struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Score    int       `json:"score"`
	Wins     int       `json:"wins"`
}

// UserStats is an aggregate row, not a table.
type UserStats struct {
	Wins           int `json:"wins"`
	Losses         int `json:"losses"`
	TotalMatches   int `json:"totalMatches"`
	SessionsPlayed int `json:"sessionsPlayed"`
}
