package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string         `json:"email" gorm:"uniqueIndex;not null"`
	Username     string         `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string         `json:"-" gorm:"not null"`
	Bio          string         `json:"bio"`
	Avatar       string         `json:"avatar"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Profile *UserProfile `json:"profile,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Communication styles accepted on a profile.
const (
	StyleDirect     = "direct"
	StyleDiplomatic = "diplomatic"
	StyleHumorous   = "humorous"
	StyleEmpathetic = "empathetic"
)

// Energy levels accepted on a profile.
const (
	EnergyHigh   = "high"
	EnergyMedium = "medium"
	EnergyLow    = "low"
)

type UserProfile struct {
	UserID             uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	CommunicationStyle string    `json:"communicationStyle,omitempty"`
	EnergyLevel        string    `json:"energyLevel,omitempty"`
	Interests          []string  `json:"interests" gorm:"serializer:json"`
	Location           string    `json:"location,omitempty"`
	Age                *int      `json:"age,omitempty"`
	CreatedAt          time.Time `json:"-"`
	UpdatedAt          time.Time `json:"-"`
}

// Connection is a directed follow edge between two users.
type Connection struct {
	FollowerID uuid.UUID `json:"followerId" gorm:"type:uuid;primaryKey"`
	FolloweeID uuid.UUID `json:"followeeId" gorm:"type:uuid;primaryKey"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PublicUser is the profile view other users are allowed to see.
type PublicUser struct {
	ID        uuid.UUID    `json:"id"`
	Username  string       `json:"username"`
	Bio       string       `json:"bio,omitempty"`
	Avatar    string       `json:"avatar,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	Profile   *UserProfile `json:"profile,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Bio:       u.Bio,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		Profile:   u.Profile,
	}
}
