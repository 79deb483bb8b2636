package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoomStatusOpen   = "open"
	RoomStatusInGame = "in_game"
	RoomStatusClosed = "closed"
)

type Room struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name            string         `json:"name" gorm:"not null"`
	Description     string         `json:"description,omitempty"`
	MaxParticipants int            `json:"maxParticipants" gorm:"not null;default:10"`
	HostID          uuid.UUID      `json:"hostId" gorm:"type:uuid;not null"`
	Status          string         `json:"status" gorm:"not null;default:'open'"` // open, in_game, closed
	ClosedAt        *time.Time     `json:"closedAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Participants []RoomParticipant `json:"participants,omitempty" gorm:"foreignKey:RoomID"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// MarshalJSON adds the derived participant count.
func (r Room) MarshalJSON() ([]byte, error) {
	type room Room
	return json.Marshal(struct {
		room
		CurrentParticipants int `json:"currentParticipants"`
	}{room(r), len(r.Participants)})
}

// CurrentParticipants reports the loaded participant count.
func (r *Room) CurrentParticipants() int {
	return len(r.Participants)
}

func (r *Room) IsFull() bool {
	return len(r.Participants) >= r.MaxParticipants
}

func (r *Room) HasParticipant(userID uuid.UUID) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

type RoomParticipant struct {
	RoomID   uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `json:"userId" gorm:"type:uuid;primaryKey"`
	Username string    `json:"username" gorm:"-"`
	JoinedAt time.Time `json:"joinedAt" gorm:"not null"`
}
