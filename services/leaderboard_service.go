package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"vibelink/models"
	"vibelink/repository"
)

const (
	leaderboardTTL     = 30 * time.Second
	leaderboardKeyBase = "leaderboard:"
	defaultBoardSize   = 10
	maxBoardSize       = 100
)

// LeaderboardService ranks users by summed match score. Results are cached
// in Redis per limit when a client is configured.
type LeaderboardService struct {
	store  repository.Store
	redis  *redis.Client
	logger *slog.Logger
}

func NewLeaderboardService(store repository.Store, client *redis.Client, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{store: store, redis: client, logger: logger}
}

func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultBoardSize
	}
	if limit > maxBoardSize {
		limit = maxBoardSize
	}

	key := leaderboardKeyBase + strconv.Itoa(limit)
	if cached := s.cached(ctx, key); cached != nil {
		return cached, nil
	}

	entries, err := s.store.Matches().Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	if s.redis != nil {
		data, err := json.Marshal(entries)
		if err == nil {
			err = s.redis.Set(ctx, key, data, leaderboardTTL).Err()
		}
		if err != nil {
			s.logger.Warn("cache leaderboard", "error", err)
		}
	}
	return entries, nil
}

func (s *LeaderboardService) cached(ctx context.Context, key string) []models.LeaderboardEntry {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("read leaderboard cache", "error", err)
		}
		return nil
	}
	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// Invalidate drops every cached page.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if s.redis == nil {
		return
	}
	iter := s.redis.Scan(ctx, 0, leaderboardKeyBase+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("scan leaderboard cache", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("invalidate leaderboard cache", "error", err)
	}
}
