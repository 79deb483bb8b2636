package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"vibelink/events"
	"vibelink/game"
	"vibelink/models"
	"vibelink/repository"
)

type CreateMatchRequest struct {
	GameSessionID uuid.UUID `json:"gameSessionId" binding:"required"`
	RoomID        uuid.UUID `json:"roomId" binding:"required"`
	User1ID       uuid.UUID `json:"user1Id" binding:"required"`
	User2ID       uuid.UUID `json:"user2Id" binding:"required"`
	Score         *float64  `json:"score" binding:"omitempty,min=0,max=100"`
}

// SessionOutcome is the scored result of a completed session together with
// the matches recorded for it.
type SessionOutcome struct {
	game.Results
	Matches []models.Match `json:"matches"`
}

// MatchService records matches. Only completed sessions produce them.
type MatchService struct {
	store       repository.Store
	hub         Broadcaster
	leaderboard *LeaderboardService
	publisher   events.Publisher
	minScore    float64
	logger      *slog.Logger
}

func NewMatchService(store repository.Store, hub Broadcaster, leaderboard *LeaderboardService, publisher events.Publisher, minScore float64, logger *slog.Logger) *MatchService {
	return &MatchService{
		store:       store,
		hub:         hub,
		leaderboard: leaderboard,
		publisher:   publisher,
		minScore:    minScore,
		logger:      logger,
	}
}

// Outcome scores a completed session without recording anything.
func (s *MatchService) Outcome(ctx context.Context, sessionID uuid.UUID) (*SessionOutcome, error) {
	sess, err := s.completedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	results, err := s.score(ctx, sess)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.Matches().ListForSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return &SessionOutcome{Results: results, Matches: matches}, nil
}

// RecordSession pairs the participants of a completed session and stores
// one match per pair. Running it again records nothing new.
func (s *MatchService) RecordSession(ctx context.Context, sessionID uuid.UUID) (*SessionOutcome, error) {
	sess, err := s.completedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	results, err := s.score(ctx, sess)
	if err != nil {
		return nil, err
	}

	var created []models.Match
	for _, pair := range game.PairMatches(results.Pairs, s.minScore) {
		m := &models.Match{
			User1ID:       pair.User1ID,
			User2ID:       pair.User2ID,
			RoomID:        sess.RoomID,
			GameSessionID: sess.ID,
			Score:         pair.Score,
		}
		if err := s.store.Matches().Create(ctx, m); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return nil, fmt.Errorf("create match: %w", err)
		}
		created = append(created, *m)
	}

	if len(created) > 0 {
		s.logger.Info("matches recorded", "session_id", sessionID, "count", len(created))
		s.leaderboard.Invalidate(ctx)
		for i := range created {
			s.announce(ctx, &created[i])
		}
	}

	matches, err := s.store.Matches().ListForSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return &SessionOutcome{Results: results, Matches: matches}, nil
}

// Create records a match by hand. The caller must be one side of it and
// both users must have played the completed session in that room.
func (s *MatchService) Create(ctx context.Context, callerID uuid.UUID, req *CreateMatchRequest) (*models.Match, error) {
	if req.User1ID == req.User2ID {
		return nil, fmt.Errorf("%w: users must differ", ErrInvalidMatch)
	}
	if callerID != req.User1ID && callerID != req.User2ID {
		return nil, ErrMatchForbidden
	}

	sess, err := s.completedSession(ctx, req.GameSessionID)
	if err != nil {
		return nil, err
	}
	if sess.RoomID != req.RoomID {
		return nil, fmt.Errorf("%w: session was not played in this room", ErrInvalidMatch)
	}
	if !sess.IsParticipant(req.User1ID) || !sess.IsParticipant(req.User2ID) {
		return nil, fmt.Errorf("%w: both users must have played the session", ErrInvalidMatch)
	}

	u1, u2 := models.OrderPair(req.User1ID, req.User2ID)
	score := 0.0
	if req.Score != nil {
		score = *req.Score
	} else {
		results, err := s.score(ctx, sess)
		if err != nil {
			return nil, err
		}
		for _, p := range results.Pairs {
			if p.User1ID == u1 && p.User2ID == u2 {
				score = p.Score
				break
			}
		}
	}

	m := &models.Match{
		User1ID:       u1,
		User2ID:       u2,
		RoomID:        sess.RoomID,
		GameSessionID: sess.ID,
		Score:         score,
	}
	if err := s.store.Matches().Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrMatchExists
		}
		return nil, fmt.Errorf("create match: %w", err)
	}

	s.logger.Info("match created", "match_id", m.ID, "session_id", sess.ID, "by", callerID)
	s.leaderboard.Invalidate(ctx)
	s.announce(ctx, m)
	return m, nil
}

func (s *MatchService) List(ctx context.Context, userID uuid.UUID) ([]models.Match, error) {
	matches, err := s.store.Matches().ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return matches, nil
}

func (s *MatchService) Get(ctx context.Context, matchID, userID uuid.UUID) (*models.Match, error) {
	m, err := s.store.Matches().Get(ctx, matchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	if !m.Involves(userID) {
		return nil, ErrMatchForbidden
	}
	return m, nil
}

func (s *MatchService) completedSession(ctx context.Context, sessionID uuid.UUID) (*game.Session, error) {
	m, err := s.store.Sessions().Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if m.Status != models.SessionStatusCompleted {
		return nil, ErrSessionNotCompleted
	}
	return sessionFromModel(m), nil
}

func (s *MatchService) score(ctx context.Context, sess *game.Session) (game.Results, error) {
	profiles, err := loadProfiles(ctx, s.store.Users(), sess.ParticipantIDs())
	if err != nil {
		return game.Results{}, fmt.Errorf("load profiles: %w", err)
	}
	return game.ComputeResults(sess, profiles), nil
}

func (s *MatchService) announce(ctx context.Context, m *models.Match) {
	s.hub.SendToUser(m.User1ID, "match_created", m)
	s.hub.SendToUser(m.User2ID, "match_created", m)
	publish(ctx, s.publisher, s.logger, events.MatchCreated, m)
}
