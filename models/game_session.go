package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusAbandoned = "abandoned"
)

type GameSession struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	RoomID        uuid.UUID  `json:"roomId" gorm:"type:uuid;not null;index"`
	HostID        uuid.UUID  `json:"hostId" gorm:"type:uuid;not null"`
	Status        string     `json:"status" gorm:"not null;default:'active'"`    // active, completed, abandoned
	Phase         string     `json:"phase" gorm:"not null;default:'collecting'"` // collecting, reviewing
	CurrentRound  int        `json:"currentRound" gorm:"not null"`
	TotalRounds   int        `json:"totalRounds" gorm:"not null"`
	Prompts       []string   `json:"prompts" gorm:"serializer:json;not null"`
	RoundDeadline *time.Time `json:"roundDeadline,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	// Relationships
	Participants []SessionParticipant `json:"participants,omitempty" gorm:"foreignKey:SessionID"`
	Responses    []GameResponse       `json:"-" gorm:"foreignKey:SessionID"`
}

func (s *GameSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type SessionParticipant struct {
	SessionID uuid.UUID  `json:"-" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `json:"userId" gorm:"type:uuid;primaryKey"`
	Position  int        `json:"position" gorm:"not null"`
	LeftAt    *time.Time `json:"leftAt,omitempty"`
}

type GameResponse struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID   uuid.UUID `json:"sessionId" gorm:"type:uuid;not null;uniqueIndex:idx_response_once"`
	RoundNumber int       `json:"roundNumber" gorm:"not null;uniqueIndex:idx_response_once"`
	UserID      uuid.UUID `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_response_once"`
	Response    string    `json:"response" gorm:"not null"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (r *GameResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
