package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vibelink/events"
	"vibelink/models"
	"vibelink/repository"
)

const defaultMaxParticipants = 10

type CreateRoomRequest struct {
	Name            string `json:"name" binding:"required,min=1,max=100"`
	Description     string `json:"description" binding:"max=500"`
	MaxParticipants int    `json:"maxParticipants" binding:"omitempty,min=2,max=50"`
}

type ListRoomsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=open in_game closed"`
}

// SessionHook is how room membership changes reach live game sessions.
type SessionHook interface {
	ParticipantLeft(ctx context.Context, roomID, userID uuid.UUID) error
	RoomClosed(ctx context.Context, roomID uuid.UUID) error
}

type roomPayload struct {
	RoomID uuid.UUID `json:"roomId"`
}

// RoomService coordinates membership. Every capacity or membership
// decision is taken inside a transaction that holds the room row lock.
type RoomService struct {
	store     repository.Store
	hub       Broadcaster
	publisher events.Publisher
	sessions  SessionHook
	logger    *slog.Logger
	now       func() time.Time
}

func NewRoomService(store repository.Store, hub Broadcaster, publisher events.Publisher, logger *slog.Logger) *RoomService {
	return &RoomService{
		store:     store,
		hub:       hub,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetSessionHook wires the game service in after both are built.
func (s *RoomService) SetSessionHook(h SessionHook) {
	s.sessions = h
}

func (s *RoomService) Create(ctx context.Context, hostID uuid.UUID, req *CreateRoomRequest) (*models.Room, error) {
	capacity := req.MaxParticipants
	if capacity == 0 {
		capacity = defaultMaxParticipants
	}

	now := s.now()
	room := &models.Room{
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		MaxParticipants: capacity,
		HostID:          hostID,
		Status:          models.RoomStatusOpen,
		Participants:    []models.RoomParticipant{{UserID: hostID, JoinedAt: now}},
	}
	if err := s.store.Rooms().Create(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	created, err := s.Get(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("room created", "room_id", created.ID, "host_id", hostID, "max_participants", capacity)
	return created, nil
}

func (s *RoomService) List(ctx context.Context, q ListRoomsQuery) ([]models.Room, error) {
	rooms, err := s.store.Rooms().List(ctx, q.Status)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

func (s *RoomService) Get(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := s.store.Rooms().Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

func (s *RoomService) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return false, err
	}
	return room.HasParticipant(userID), nil
}

// Join adds userID to the room. Joining a room the user is already in
// returns the room unchanged.
func (s *RoomService) Join(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	var (
		room   *models.Room
		joined bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		r, err := tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		switch {
		case r.Status == models.RoomStatusClosed:
			return ErrRoomClosed
		case r.HasParticipant(userID):
			room = r
			return nil
		case r.IsFull():
			return ErrRoomFull
		}

		if err := tx.Rooms().AddParticipant(ctx, roomID, userID, s.now()); err != nil {
			return err
		}
		joined = true
		room, err = tx.Rooms().Get(ctx, roomID)
		return err
	})
	if err != nil {
		return nil, roomError("join room", err)
	}

	if joined {
		s.logger.Info("user joined room", "room_id", roomID, "user_id", userID, "participants", room.CurrentParticipants())
		s.hub.BroadcastToRoom(roomID, "room_update", room)
		s.emit(ctx, events.RoomJoined, map[string]interface{}{"roomId": roomID, "userId": userID})
	}
	return room, nil
}

// Leave removes userID. The host role passes to the earliest remaining
// joiner and an empty room closes.
func (s *RoomService) Leave(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	var room *models.Room
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		r, err := tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if !r.HasParticipant(userID) {
			return ErrNotRoomMember
		}
		if err := tx.Rooms().RemoveParticipant(ctx, roomID, userID); err != nil {
			return err
		}

		remaining := make([]models.RoomParticipant, 0, len(r.Participants))
		for _, p := range r.Participants {
			if p.UserID != userID {
				remaining = append(remaining, p)
			}
		}

		switch {
		case len(remaining) == 0:
			now := s.now()
			r.Status = models.RoomStatusClosed
			r.ClosedAt = &now
		case r.HostID == userID:
			r.HostID = remaining[0].UserID
		}
		r.Participants = remaining
		if err := tx.Rooms().Update(ctx, r); err != nil {
			return err
		}
		room = r
		return nil
	})
	if err != nil {
		return nil, roomError("leave room", err)
	}

	s.logger.Info("user left room", "room_id", roomID, "user_id", userID, "participants", room.CurrentParticipants())
	s.hub.Unsubscribe(userID, roomID)
	s.hub.BroadcastToRoom(roomID, "room_update", room)
	s.emit(ctx, events.RoomLeft, map[string]interface{}{"roomId": roomID, "userId": userID})

	if s.sessions != nil {
		if err := s.sessions.ParticipantLeft(ctx, roomID, userID); err != nil {
			s.logger.Error("session departure", "room_id", roomID, "user_id", userID, "error", err)
		}
	}
	if room.Status == models.RoomStatusClosed {
		s.closed(ctx, room)
	}
	return room, nil
}

// Close is restricted to the host. Closing a closed room is a no-op.
func (s *RoomService) Close(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	return s.close(ctx, roomID, func(r *models.Room) error {
		if r.HostID != userID {
			return ErrNotRoomHost
		}
		return nil
	})
}

// CloseIdle closes open rooms nobody touched for idle. It returns how many
// rooms were closed.
func (s *RoomService) CloseIdle(ctx context.Context, idle time.Duration) (int, error) {
	rooms, err := s.store.Rooms().ListIdle(ctx, s.now().Add(-idle))
	if err != nil {
		return 0, fmt.Errorf("list idle rooms: %w", err)
	}

	closed := 0
	for _, r := range rooms {
		_, err := s.close(ctx, r.ID, func(locked *models.Room) error {
			if locked.Status != models.RoomStatusOpen {
				return ErrRoomClosed
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, ErrRoomClosed) || errors.Is(err, ErrRoomNotFound) {
				continue
			}
			return closed, err
		}
		closed++
	}
	if closed > 0 {
		s.logger.Info("closed idle rooms", "count", closed, "idle", idle)
	}
	return closed, nil
}

// RunJanitor closes idle rooms every interval until ctx is done.
func (s *RoomService) RunJanitor(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CloseIdle(ctx, idle); err != nil && ctx.Err() == nil {
				s.logger.Error("idle room sweep", "error", err)
			}
		}
	}
}

func (s *RoomService) close(ctx context.Context, roomID uuid.UUID, check func(*models.Room) error) (*models.Room, error) {
	var (
		room    *models.Room
		changed bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		r, err := tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if err := check(r); err != nil {
			return err
		}
		room = r
		if r.Status == models.RoomStatusClosed {
			return nil
		}

		now := s.now()
		r.Status = models.RoomStatusClosed
		r.ClosedAt = &now
		changed = true
		return tx.Rooms().Update(ctx, r)
	})
	if err != nil {
		return nil, roomError("close room", err)
	}

	if changed {
		s.closed(ctx, room)
	}
	return room, nil
}

func (s *RoomService) closed(ctx context.Context, room *models.Room) {
	s.logger.Info("room closed", "room_id", room.ID)
	if s.sessions != nil {
		if err := s.sessions.RoomClosed(ctx, room.ID); err != nil {
			s.logger.Error("abandon session of closed room", "room_id", room.ID, "error", err)
		}
	}
	s.hub.BroadcastToRoom(room.ID, "room_update", room)
	s.emit(ctx, events.RoomClosed, roomPayload{RoomID: room.ID})
}

func (s *RoomService) emit(ctx context.Context, subject string, data interface{}) {
	publish(ctx, s.publisher, s.logger, subject, data)
}

// RegisterHandlers binds the room frames of the websocket protocol.
func (s *RoomService) RegisterHandlers(hub *Hub) {
	hub.Handle("join_room", func(ctx context.Context, c *Client, raw json.RawMessage) error {
		var p roomPayload
		if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == uuid.Nil {
			return errRoomIDRequired
		}
		room, err := s.Join(ctx, p.RoomID, c.UserID())
		if err != nil {
			return err
		}
		hub.Subscribe(c, room.ID)
		hub.Send(c, "room_state", map[string]interface{}{
			"room":   room,
			"online": hub.OnlineUsers(room.ID),
		})
		return nil
	})

	hub.Handle("leave_room", func(ctx context.Context, c *Client, raw json.RawMessage) error {
		var p roomPayload
		if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == uuid.Nil {
			return errRoomIDRequired
		}
		hub.Unsubscribe(c.UserID(), p.RoomID)
		return nil
	})
}

func roomError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrRoomNotFound
	case errors.Is(err, ErrRoomClosed), errors.Is(err, ErrRoomFull),
		errors.Is(err, ErrNotRoomMember), errors.Is(err, ErrNotRoomHost):
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func publish(ctx context.Context, pub events.Publisher, logger *slog.Logger, subject string, data interface{}) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, subject, data); err != nil {
		logger.Warn("publish event", "subject", subject, "error", err)
	}
}
