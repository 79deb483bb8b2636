package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"vibelink/models"
	"vibelink/repository"
)

const (
	defaultPageSize = 10
	maxSearchResult = 20
)

type ListUsersQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	SortBy    string `form:"sortBy" binding:"omitempty,oneof=created_at username"`
	SortOrder string `form:"sortOrder" binding:"omitempty,oneof=asc desc"`
}

type UserPage struct {
	Users      []models.PublicUser `json:"users"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
	TotalPages int                 `json:"totalPages"`
}

type ProfileInput struct {
	CommunicationStyle *string  `json:"communicationStyle" binding:"omitempty,oneof=direct diplomatic humorous empathetic"`
	EnergyLevel        *string  `json:"energyLevel" binding:"omitempty,oneof=high medium low"`
	Interests          []string `json:"interests" binding:"omitempty,max=20,dive,min=1,max=50"`
	Location           *string  `json:"location" binding:"omitempty,max=100"`
	Age                *int     `json:"age" binding:"omitempty,min=13,max=120"`
}

// UpdateProfileRequest takes the profile fields flat next to bio and
// avatar. The nested "profile" object is still accepted; flat fields win.
type UpdateProfileRequest struct {
	Bio                *string  `json:"bio" binding:"omitempty,max=500"`
	Avatar             *string  `json:"avatar" binding:"omitempty,max=500"`
	CommunicationStyle *string  `json:"communication_style" binding:"omitempty,oneof=direct diplomatic humorous empathetic"`
	EnergyLevel        *string  `json:"energy_level" binding:"omitempty,oneof=high medium low"`
	Interests          []string `json:"interests" binding:"omitempty,max=20,dive,min=1,max=50"`
	Location           *string  `json:"location" binding:"omitempty,max=100"`
	Age                *int     `json:"age" binding:"omitempty,min=13,max=120"`

	Profile *ProfileInput `json:"profile"`
}

// profileInput merges the flat and nested profile fields. It returns nil
// when the request leaves the profile alone.
func (r *UpdateProfileRequest) profileInput() *ProfileInput {
	in := ProfileInput{}
	if r.Profile != nil {
		in = *r.Profile
	}
	touched := r.Profile != nil
	if r.CommunicationStyle != nil {
		in.CommunicationStyle, touched = r.CommunicationStyle, true
	}
	if r.EnergyLevel != nil {
		in.EnergyLevel, touched = r.EnergyLevel, true
	}
	if r.Interests != nil {
		in.Interests, touched = r.Interests, true
	}
	if r.Location != nil {
		in.Location, touched = r.Location, true
	}
	if r.Age != nil {
		in.Age, touched = r.Age, true
	}
	if !touched {
		return nil
	}
	return &in
}

// RoomLeaver lets account deletion walk the user out of open rooms.
type RoomLeaver interface {
	Leave(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error)
}

type UserService struct {
	store  repository.Store
	rooms  RoomLeaver
	logger *slog.Logger
}

func NewUserService(store repository.Store, rooms RoomLeaver, logger *slog.Logger) *UserService {
	return &UserService{store: store, rooms: rooms, logger: logger}
}

func (s *UserService) List(ctx context.Context, q ListUsersQuery) (*UserPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.SortBy == "" {
		q.SortBy = repository.SortByCreatedAt
	}

	users, total, err := s.store.Users().List(ctx, repository.ListUsersParams{
		Offset: (q.Page - 1) * q.PageSize,
		Limit:  q.PageSize,
		SortBy: q.SortBy,
		Desc:   q.SortOrder != "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	totalPages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return &UserPage{
		Users:      publicUsers(users),
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *UserService) Search(ctx context.Context, q string) ([]models.PublicUser, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.PublicUser{}, nil
	}
	users, err := s.store.Users().Search(ctx, q, maxSearchResult)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return publicUsers(users), nil
}

// Me returns the full record, email included.
func (s *UserService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.get(ctx, userID)
}

func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (models.PublicUser, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return models.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *UserService) get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*models.User, error) {
	var updated *models.User
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().Get(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if req.Bio != nil {
			user.Bio = strings.TrimSpace(*req.Bio)
		}
		if req.Avatar != nil {
			user.Avatar = strings.TrimSpace(*req.Avatar)
		}
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}

		if in := req.profileInput(); in != nil {
			profile := models.UserProfile{UserID: userID, Interests: []string{}}
			if user.Profile != nil {
				profile = *user.Profile
				profile.UserID = userID
			}
			applyProfile(&profile, in)
			if err := tx.Users().UpsertProfile(ctx, &profile); err != nil {
				return err
			}
		}

		updated, err = tx.Users().Get(ctx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

func applyProfile(p *models.UserProfile, in *ProfileInput) {
	if in.CommunicationStyle != nil {
		p.CommunicationStyle = *in.CommunicationStyle
	}
	if in.EnergyLevel != nil {
		p.EnergyLevel = *in.EnergyLevel
	}
	if in.Interests != nil {
		seen := make(map[string]bool, len(in.Interests))
		interests := make([]string, 0, len(in.Interests))
		for _, interest := range in.Interests {
			interest = strings.ToLower(strings.TrimSpace(interest))
			if interest == "" || seen[interest] {
				continue
			}
			seen[interest] = true
			interests = append(interests, interest)
		}
		p.Interests = interests
	}
	if in.Location != nil {
		p.Location = strings.TrimSpace(*in.Location)
	}
	if in.Age != nil {
		age := *in.Age
		p.Age = &age
	}
}

// Delete soft-deletes the account after leaving every open room.
func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.get(ctx, userID); err != nil {
		return err
	}

	rooms, err := s.store.Rooms().OpenForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	for _, roomID := range rooms {
		if _, err := s.rooms.Leave(ctx, roomID, userID); err != nil && !errors.Is(err, ErrNotRoomMember) && !errors.Is(err, ErrRoomNotFound) {
			return fmt.Errorf("leave room %s: %w", roomID, err)
		}
	}

	if err := s.store.Users().Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("user deleted", "user_id", userID, "rooms_left", len(rooms))
	return nil
}

// Connections lists the users userID follows.
func (s *UserService) Connections(ctx context.Context, userID uuid.UUID) ([]models.PublicUser, error) {
	if _, err := s.get(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.store.Users().Following(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return publicUsers(users), nil
}

// Follow is idempotent.
func (s *UserService) Follow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	if followerID == followeeID {
		return ErrCannotFollowSelf
	}
	if _, err := s.get(ctx, followeeID); err != nil {
		return err
	}
	if _, err := s.store.Users().Follow(ctx, followerID, followeeID); err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	return nil
}

func (s *UserService) Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	if _, err := s.get(ctx, followeeID); err != nil {
		return err
	}
	if _, err := s.store.Users().Unfollow(ctx, followerID, followeeID); err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	return nil
}

// Stats counts a match as a win and a completed session without one as a
// loss.
func (s *UserService) Stats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	if _, err := s.get(ctx, userID); err != nil {
		return nil, err
	}

	matches, err := s.store.Matches().ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	sessions, err := s.store.Sessions().ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	matched := make(map[uuid.UUID]bool, len(matches))
	for _, m := range matches {
		matched[m.GameSessionID] = true
	}

	stats := &models.UserStats{
		Wins:           len(matches),
		TotalMatches:   len(matches),
		SessionsPlayed: len(sessions),
	}
	for _, sess := range sessions {
		if sess.Status == models.SessionStatusCompleted && !matched[sess.ID] {
			stats.Losses++
		}
	}
	return stats, nil
}

func publicUsers(users []models.User) []models.PublicUser {
	out := make([]models.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}
