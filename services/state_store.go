package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionStateTTL = 2 * time.Hour

// StateStore keeps a JSON snapshot of each live session in Redis so any
// instance can answer state requests cheaply. A nil client turns every
// call into a no-op.
type StateStore struct {
	redis  *redis.Client
	logger *slog.Logger
}

func NewStateStore(client *redis.Client, logger *slog.Logger) *StateStore {
	return &StateStore{redis: client, logger: logger}
}

func sessionStateKey(id uuid.UUID) string {
	return "session:" + id.String()
}

func (s *StateStore) Save(ctx context.Context, state *SessionState) {
	if s == nil || s.redis == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Error("marshal session state", "session_id", state.SessionID, "error", err)
		return
	}
	if err := s.redis.Set(ctx, sessionStateKey(state.SessionID), data, sessionStateTTL).Err(); err != nil {
		s.logger.Warn("store session state", "session_id", state.SessionID, "error", err)
	}
}

// Load returns nil on a miss or when Redis is unavailable.
func (s *StateStore) Load(ctx context.Context, id uuid.UUID) *SessionState {
	if s == nil || s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, sessionStateKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("load session state", "session_id", id, "error", err)
		}
		return nil
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("decode session state", "session_id", id, "error", err)
		return nil
	}
	return &state
}

func (s *StateStore) Delete(ctx context.Context, id uuid.UUID) {
	if s == nil || s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, sessionStateKey(id)).Err(); err != nil {
		s.logger.Warn("delete session state", "session_id", id, "error", err)
	}
}
