package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vibelink/events"
	"vibelink/game"
	"vibelink/models"
	"vibelink/repository"
)

type GameConfig struct {
	TotalRounds    int
	RoundDuration  time.Duration
	ReviewDuration time.Duration
}

type CreateSessionRequest struct {
	RoomID         uuid.UUID   `json:"roomId" binding:"required"`
	ParticipantIDs []uuid.UUID `json:"participantIds" binding:"omitempty,max=50"`
	TotalRounds    int         `json:"totalRounds" binding:"omitempty,min=1,max=20"`
}

type SubmitResponseRequest struct {
	SessionID   uuid.UUID `json:"sessionId" binding:"required"`
	RoundNumber int       `json:"roundNumber" binding:"required,min=1"`
	Response    string    `json:"response" binding:"required,max=500"`
}

type sessionRef struct {
	SessionID uuid.UUID `json:"sessionId"`
}

// stage is the part of a session whose change triggers notifications.
type stage struct {
	status game.Status
	phase  game.Phase
	round  int
}

func stageOf(s *game.Session) stage {
	return stage{status: s.Status, phase: s.Phase, round: s.CurrentRound}
}

// change is what a committed transition hands to after. seq is assigned
// while the session row is locked, so it orders transitions of a session
// the way they were committed.
type change struct {
	before stage
	seq    uint64
}

type sessionTimer struct {
	stage  stage
	cancel context.CancelFunc
}

// sessionTrack is the in-process bookkeeping of one session: the newest
// transition whose side effects were applied and the timer it started.
type sessionTrack struct {
	seq   uint64
	timer *sessionTimer

	// saveMu serializes snapshot writes.
	saveMu sync.Mutex
}

// trackRetention keeps a finished session's track around so late side
// effects of older transitions are still recognised as stale.
const trackRetention = time.Minute

// GameService drives sessions through their rounds. Every transition runs
// in a transaction holding the session row lock; timers only ever request
// a transition and re-check the session state under that lock.
type GameService struct {
	store     repository.Store
	hub       Broadcaster
	states    *StateStore
	matches   *MatchService
	publisher events.Publisher
	cfg       GameConfig
	logger    *slog.Logger
	now       func() time.Time

	seq      atomic.Uint64
	baseCtx  context.Context
	timersMu sync.Mutex
	tracks   map[uuid.UUID]*sessionTrack
	wg       sync.WaitGroup
}

func NewGameService(store repository.Store, hub Broadcaster, states *StateStore, matches *MatchService, publisher events.Publisher, cfg GameConfig, logger *slog.Logger) *GameService {
	return &GameService{
		store:     store,
		hub:       hub,
		states:    states,
		matches:   matches,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		baseCtx:   context.Background(),
		tracks:    make(map[uuid.UUID]*sessionTrack),
	}
}

func (s *GameService) CreateSession(ctx context.Context, hostID uuid.UUID, req *CreateSessionRequest) (*SessionState, error) {
	rounds := req.TotalRounds
	if rounds == 0 {
		rounds = s.cfg.TotalRounds
	}

	var (
		sess *game.Session
		seq  uint64
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		room, err := tx.Rooms().GetForUpdate(ctx, req.RoomID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRoomNotFound
			}
			return err
		}
		seq = s.seq.Add(1)
		if room.Status == models.RoomStatusClosed {
			return ErrRoomClosed
		}
		if !room.HasParticipant(hostID) {
			return ErrNotRoomMember
		}

		participants, err := sessionParticipants(room, hostID, req.ParticipantIDs)
		if err != nil {
			return err
		}

		if _, err := tx.Sessions().ActiveForRoom(ctx, room.ID); err == nil {
			return ErrRoomHasSession
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		id := uuid.New()
		sess, err = game.NewSession(game.Params{
			ID:            id,
			RoomID:        room.ID,
			HostID:        hostID,
			Participants:  participants,
			TotalRounds:   rounds,
			RoundDuration: s.cfg.RoundDuration,
			Prompts:       game.DrawPrompts(id, rounds),
		}, s.now())
		if err != nil {
			return err
		}

		if err := tx.Sessions().Create(ctx, newSessionModel(sess)); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrRoomHasSession
			}
			return err
		}

		room.Status = models.RoomStatusInGame
		return tx.Rooms().Update(ctx, room)
	})
	if err != nil {
		return nil, sessionError("create session", err)
	}

	state := stateOf(sess, s.now())
	s.logger.Info("game session started",
		"session_id", sess.ID,
		"room_id", sess.RoomID,
		"participants", len(sess.Participants),
		"rounds", sess.TotalRounds,
	)
	if s.claim(sess.ID, seq) {
		s.snapshot(ctx, sess, seq, state)
	}
	s.hub.BroadcastToRoom(sess.RoomID, "session_started", state)
	publish(ctx, s.publisher, s.logger, events.SessionStarted, sessionEvent(sess))
	s.schedule(sess, seq)
	return state, nil
}

// sessionParticipants defaults to every room member and always includes
// the host.
func sessionParticipants(room *models.Room, hostID uuid.UUID, requested []uuid.UUID) ([]uuid.UUID, error) {
	if len(requested) == 0 {
		ids := make([]uuid.UUID, 0, len(room.Participants))
		for _, p := range room.Participants {
			ids = append(ids, p.UserID)
		}
		return ids, nil
	}

	ids := []uuid.UUID{hostID}
	seen := map[uuid.UUID]bool{hostID: true}
	for _, id := range requested {
		if seen[id] {
			continue
		}
		if !room.HasParticipant(id) {
			return nil, ErrNotRoomMember
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// Get returns the session as seen by a participant or a member of its
// room.
func (s *GameService) Get(ctx context.Context, sessionID, userID uuid.UUID) (*SessionState, error) {
	if st := s.states.Load(ctx, sessionID); st != nil && st.hasParticipant(userID) {
		st.refresh(s.now())
		return st, nil
	}

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, sess, userID); err != nil {
		return nil, err
	}
	return stateOf(sess, s.now()), nil
}

func (s *GameService) SubmitResponse(ctx context.Context, userID uuid.UUID, req *SubmitResponseRequest) (*SessionState, error) {
	sess, ch, err := s.transition(ctx, req.SessionID, func(tx repository.Store, sess *game.Session) error {
		complete, err := sess.Submit(userID, req.RoundNumber, req.Response, s.now())
		if err != nil {
			return err
		}
		err = tx.Sessions().AddResponse(ctx, &models.GameResponse{
			SessionID:   sess.ID,
			RoundNumber: req.RoundNumber,
			UserID:      userID,
			Response:    sess.Responses[req.RoundNumber][userID],
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return game.ErrAlreadyResponded
			}
			return err
		}
		if complete {
			return sess.CloseRound(s.now())
		}
		return nil
	})
	if err != nil {
		return nil, sessionError("submit response", err)
	}

	s.hub.BroadcastToRoom(sess.RoomID, "response_received", map[string]interface{}{
		"sessionId":   sess.ID,
		"roundNumber": req.RoundNumber,
		"userId":      userID,
		"responded":   len(sess.Responded(req.RoundNumber)),
		"expected":    len(sess.ActiveParticipants()),
	})
	return s.after(ctx, ch, sess), nil
}

// Advance is the host's manual step: it closes a collecting round early or
// opens the next round after review.
func (s *GameService) Advance(ctx context.Context, sessionID, userID uuid.UUID) (*SessionState, error) {
	sess, ch, err := s.transition(ctx, sessionID, func(_ repository.Store, sess *game.Session) error {
		if sess.HostID != userID {
			return ErrNotSessionHost
		}
		if sess.Phase == game.PhaseCollecting {
			return sess.CloseRound(s.now())
		}
		return sess.Advance(s.now(), s.cfg.RoundDuration)
	})
	if err != nil {
		return nil, sessionError("advance session", err)
	}
	return s.after(ctx, ch, sess), nil
}

func (s *GameService) Abandon(ctx context.Context, sessionID, userID uuid.UUID) (*SessionState, error) {
	sess, ch, err := s.transition(ctx, sessionID, func(_ repository.Store, sess *game.Session) error {
		if sess.HostID != userID {
			return ErrNotSessionHost
		}
		return sess.Abandon(s.now())
	})
	if err != nil {
		return nil, sessionError("abandon session", err)
	}
	return s.after(ctx, ch, sess), nil
}

// Results is only available once the session completed.
func (s *GameService) Results(ctx context.Context, sessionID, userID uuid.UUID) (*SessionOutcome, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, sess, userID); err != nil {
		return nil, err
	}
	if sess.Status != game.StatusCompleted {
		return nil, ErrSessionNotCompleted
	}
	return s.matches.Outcome(ctx, sessionID)
}

// ParticipantLeft applies a room departure to the room's active session.
func (s *GameService) ParticipantLeft(ctx context.Context, roomID, userID uuid.UUID) error {
	active, err := s.store.Sessions().ActiveForRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	var outcome game.LeaveOutcome
	sess, ch, err := s.transition(ctx, active.ID, func(tx repository.Store, sess *game.Session) error {
		if sess.IsTerminal() || !sess.IsParticipant(userID) {
			return nil
		}
		now := s.now()
		out, err := sess.Leave(userID, now)
		if err != nil {
			return err
		}
		outcome = out
		if err := tx.Sessions().MarkParticipantLeft(ctx, sess.ID, userID, now); err != nil {
			return err
		}
		if outcome.RoundComplete {
			return sess.CloseRound(now)
		}
		return nil
	})
	if err != nil {
		return sessionError("leave session", err)
	}

	if outcome.NewHostID != uuid.Nil {
		s.logger.Info("session host transferred", "session_id", sess.ID, "host_id", outcome.NewHostID)
	}
	s.after(ctx, ch, sess)
	return nil
}

// RoomClosed abandons whatever session the room still runs.
func (s *GameService) RoomClosed(ctx context.Context, roomID uuid.UUID) error {
	active, err := s.store.Sessions().ActiveForRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	sess, ch, err := s.transition(ctx, active.ID, func(_ repository.Store, sess *game.Session) error {
		if sess.IsTerminal() {
			return nil
		}
		return sess.Abandon(s.now())
	})
	if err != nil {
		return sessionError("abandon session", err)
	}
	s.after(ctx, ch, sess)
	return nil
}

// Resume restarts round and review timers of sessions that were active
// when the process last stopped. Timers started afterwards stop when ctx
// is cancelled.
func (s *GameService) Resume(ctx context.Context) error {
	s.timersMu.Lock()
	s.baseCtx = ctx
	s.timersMu.Unlock()

	active, err := s.store.Sessions().ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active sessions: %w", err)
	}
	for i := range active {
		sess := sessionFromModel(&active[i])
		seq := s.seq.Add(1)
		if s.claim(sess.ID, seq) {
			s.snapshot(ctx, sess, seq, stateOf(sess, s.now()))
		}
		s.schedule(sess, seq)
	}
	if len(active) > 0 {
		s.logger.Info("resumed game sessions", "count", len(active))
	}
	return nil
}

// Wait blocks until every timer goroutine has returned.
func (s *GameService) Wait() {
	s.wg.Wait()
}

func (s *GameService) load(ctx context.Context, sessionID uuid.UUID) (*game.Session, error) {
	m, err := s.store.Sessions().Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sessionFromModel(m), nil
}

func (s *GameService) authorize(ctx context.Context, sess *game.Session, userID uuid.UUID) error {
	if sess.IsParticipant(userID) {
		return nil
	}
	room, err := s.store.Rooms().Get(ctx, sess.RoomID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("get room: %w", err)
	}
	if room != nil && room.HasParticipant(userID) {
		return nil
	}
	return ErrNotSessionMember
}

// transition applies fn to the locked session and persists the result.
// A session reaching a terminal state hands its room back to the lobby.
func (s *GameService) transition(ctx context.Context, sessionID uuid.UUID, fn func(tx repository.Store, sess *game.Session) error) (*game.Session, change, error) {
	var (
		sess *game.Session
		ch   change
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		m, err := tx.Sessions().GetForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		sess = sessionFromModel(m)
		before := stageOf(sess)
		ch = change{before: before, seq: s.seq.Add(1)}

		if err := fn(tx, sess); err != nil {
			return err
		}

		after := stageOf(sess)
		if after == before && m.HostID == sess.HostID {
			return nil
		}
		applySession(m, sess)
		if err := tx.Sessions().Update(ctx, m); err != nil {
			return err
		}
		if sess.IsTerminal() && before.status == game.StatusActive {
			return releaseRoom(ctx, tx, sess.RoomID)
		}
		return nil
	})
	return sess, ch, err
}

func releaseRoom(ctx context.Context, tx repository.Store, roomID uuid.UUID) error {
	room, err := tx.Rooms().GetForUpdate(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if room.Status != models.RoomStatusInGame {
		return nil
	}
	room.Status = models.RoomStatusOpen
	return tx.Rooms().Update(ctx, room)
}

// after applies the side effects of a committed transition. Side effects
// of a transition that a newer one already overtook are limited to the
// notifications; the newer transition owns the snapshot and the timer.
func (s *GameService) after(ctx context.Context, ch change, sess *game.Session) *SessionState {
	state := stateOf(sess, s.now())
	fresh := s.claim(sess.ID, ch.seq)
	if fresh {
		s.snapshot(ctx, sess, ch.seq, state)
	} else {
		s.logger.Debug("stale session transition", "session_id", sess.ID, "seq", ch.seq)
	}

	s.notify(ctx, ch.before, sess, state)
	if fresh {
		s.schedule(sess, ch.seq)
	}
	return state
}

// notify tells the room what changed since before.
func (s *GameService) notify(ctx context.Context, before stage, sess *game.Session, state *SessionState) {
	current := stageOf(sess)
	if current == before {
		return
	}

	if before.phase == game.PhaseCollecting && (current.phase == game.PhaseReviewing || sess.Status == game.StatusCompleted) {
		s.hub.BroadcastToRoom(sess.RoomID, "round_ended", map[string]interface{}{
			"sessionId": sess.ID,
			"round":     roundSummary(sess, before.round),
			"final":     sess.Status == game.StatusCompleted,
		})
	}

	switch sess.Status {
	case game.StatusAbandoned:
		s.logger.Info("game session abandoned", "session_id", sess.ID, "round", sess.CurrentRound)
		s.hub.BroadcastToRoom(sess.RoomID, "session_abandoned", state)
		publish(ctx, s.publisher, s.logger, events.SessionAbandoned, sessionEvent(sess))
		return

	case game.StatusCompleted:
		s.complete(ctx, sess, state)
		return
	}

	if current.round != before.round {
		s.hub.BroadcastToRoom(sess.RoomID, "round_started", state)
	}
}

func (s *GameService) complete(ctx context.Context, sess *game.Session, state *SessionState) {
	s.logger.Info("game session completed", "session_id", sess.ID, "rounds", sess.TotalRounds)

	payload := map[string]interface{}{"session": state}
	outcome, err := s.matches.RecordSession(ctx, sess.ID)
	if err != nil {
		s.logger.Error("record matches", "session_id", sess.ID, "error", err)
	} else {
		payload["results"] = outcome
	}

	s.hub.BroadcastToRoom(sess.RoomID, "session_completed", payload)
	publish(ctx, s.publisher, s.logger, events.SessionCompleted, sessionEvent(sess))
}

func sessionEvent(sess *game.Session) map[string]interface{} {
	return map[string]interface{}{
		"sessionId":    sess.ID,
		"roomId":       sess.RoomID,
		"hostId":       sess.HostID,
		"status":       sess.Status,
		"round":        sess.CurrentRound,
		"participants": sess.ParticipantIDs(),
	}
}

// claim records seq as the newest applied transition of the session. It
// reports false when a newer one was applied already.
func (s *GameService) claim(sessionID uuid.UUID, seq uint64) bool {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	tr := s.tracks[sessionID]
	if tr == nil {
		tr = &sessionTrack{}
		s.tracks[sessionID] = tr
	}
	if seq < tr.seq {
		return false
	}
	tr.seq = seq
	return true
}

// current reports whether seq is still the newest applied transition.
func (s *GameService) current(sessionID uuid.UUID, seq uint64) (*sessionTrack, bool) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	tr := s.tracks[sessionID]
	return tr, tr != nil && tr.seq == seq
}

// snapshot writes the cached state of a live session and drops it once
// the session is over.
func (s *GameService) snapshot(ctx context.Context, sess *game.Session, seq uint64, state *SessionState) {
	tr, ok := s.current(sess.ID, seq)
	if !ok {
		return
	}
	tr.saveMu.Lock()
	defer tr.saveMu.Unlock()
	if _, ok := s.current(sess.ID, seq); !ok {
		return
	}
	if sess.IsTerminal() {
		s.states.Delete(ctx, sess.ID)
		return
	}
	s.states.Save(ctx, state)
}

// schedule starts the timer matching the session's phase. A running timer
// for the same round and phase is kept.
func (s *GameService) schedule(sess *game.Session, seq uint64) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	tr := s.tracks[sess.ID]
	if tr == nil || tr.seq != seq {
		return
	}
	if sess.IsTerminal() {
		tr.stop()
		s.retire(sess.ID, tr, seq)
		return
	}

	key := stageOf(sess)
	if tr.timer != nil && tr.timer.stage == key {
		return
	}

	id, round := sess.ID, sess.CurrentRound
	switch sess.Phase {
	case game.PhaseCollecting:
		deadline := sess.RoundDeadline
		roomID := sess.RoomID
		s.startTimerLocked(tr, key, func(ctx context.Context) {
			s.runRoundTimer(ctx, id, roomID, round, deadline)
		})
	case game.PhaseReviewing:
		s.startTimerLocked(tr, key, func(ctx context.Context) {
			s.runReviewTimer(ctx, id, round)
		})
	}
}

// startTimerLocked replaces the track's timer. timersMu must be held.
func (s *GameService) startTimerLocked(tr *sessionTrack, key stage, run func(ctx context.Context)) {
	tr.stop()
	ctx, cancel := context.WithCancel(s.baseCtx)
	t := &sessionTimer{stage: key, cancel: cancel}
	tr.timer = t
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.timersMu.Lock()
			if tr.timer == t {
				tr.timer = nil
			}
			s.timersMu.Unlock()
			cancel()
		}()
		run(ctx)
	}()
}

func (tr *sessionTrack) stop() {
	if tr.timer != nil {
		tr.timer.cancel()
		tr.timer = nil
	}
}

// retire forgets a finished session's track after trackRetention unless
// something newer was applied meanwhile. timersMu must be held.
func (s *GameService) retire(sessionID uuid.UUID, tr *sessionTrack, seq uint64) {
	time.AfterFunc(trackRetention, func() {
		s.timersMu.Lock()
		defer s.timersMu.Unlock()
		if s.tracks[sessionID] == tr && tr.seq == seq && tr.timer == nil {
			delete(s.tracks, sessionID)
		}
	})
}

func (s *GameService) activeTimers() int {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	n := 0
	for _, tr := range s.tracks {
		if tr.timer != nil {
			n++
		}
	}
	return n
}

// runRoundTimer ticks timer_update every second and closes the round at
// its deadline.
func (s *GameService) runRoundTimer(ctx context.Context, sessionID, roomID uuid.UUID, round int, deadline time.Time) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	expire := time.NewTimer(deadline.Sub(s.now()))
	defer expire.Stop()

	for {
		s.hub.BroadcastToRoom(roomID, "timer_update", map[string]interface{}{
			"sessionId":   sessionID,
			"roundNumber": round,
			"timeLeft":    secondsLeft(deadline.Sub(s.now())),
		})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-expire.C:
			s.closeRoundAtDeadline(context.WithoutCancel(ctx), sessionID, round)
			return
		}
	}
}

func (s *GameService) closeRoundAtDeadline(ctx context.Context, sessionID uuid.UUID, round int) {
	sess, ch, err := s.transition(ctx, sessionID, func(_ repository.Store, sess *game.Session) error {
		if sess.Status != game.StatusActive || sess.Phase != game.PhaseCollecting || sess.CurrentRound != round {
			return nil
		}
		return sess.CloseRound(s.now())
	})
	if err != nil {
		s.logger.Error("close round at deadline", "session_id", sessionID, "round", round, "error", err)
		return
	}
	s.after(ctx, ch, sess)
}

func (s *GameService) runReviewTimer(ctx context.Context, sessionID uuid.UUID, round int) {
	wait := time.NewTimer(s.cfg.ReviewDuration)
	defer wait.Stop()

	select {
	case <-ctx.Done():
		return
	case <-wait.C:
	}

	detached := context.WithoutCancel(ctx)
	sess, ch, err := s.transition(detached, sessionID, func(_ repository.Store, sess *game.Session) error {
		if sess.Status != game.StatusActive || sess.Phase != game.PhaseReviewing || sess.CurrentRound != round {
			return nil
		}
		return sess.Advance(s.now(), s.cfg.RoundDuration)
	})
	if err != nil {
		s.logger.Error("advance after review", "session_id", sessionID, "round", round, "error", err)
		return
	}
	s.after(detached, ch, sess)
}

// RegisterHandlers binds the session frames of the websocket protocol.
func (s *GameService) RegisterHandlers(hub *Hub) {
	hub.Handle("submit_response", func(ctx context.Context, c *Client, raw json.RawMessage) error {
		var req SubmitResponseRequest
		if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == uuid.Nil {
			return errInvalidSubmission
		}
		if _, err := s.SubmitResponse(ctx, c.UserID(), &req); err != nil {
			return err
		}
		hub.Send(c, "response_accepted", map[string]interface{}{
			"sessionId":   req.SessionID,
			"roundNumber": req.RoundNumber,
		})
		return nil
	})

	hub.Handle("request_state", func(ctx context.Context, c *Client, raw json.RawMessage) error {
		var ref sessionRef
		if err := json.Unmarshal(raw, &ref); err != nil || ref.SessionID == uuid.Nil {
			return errSessionIDRequired
		}
		state, err := s.Get(ctx, ref.SessionID, c.UserID())
		if err != nil {
			return err
		}
		hub.Send(c, "session_state", state)
		return nil
	})
}

var sessionErrors = []error{
	ErrRoomNotFound, ErrRoomClosed, ErrNotRoomMember, ErrRoomHasSession,
	ErrSessionNotFound, ErrNotSessionHost, ErrNotSessionMember,
	game.ErrTooFewParticipants, game.ErrDuplicateParticipant, game.ErrInvalidRounds,
	game.ErrMissingPrompts, game.ErrSessionNotActive, game.ErrNotParticipant,
	game.ErrParticipantLeft, game.ErrWrongRound, game.ErrRoundClosed,
	game.ErrAlreadyResponded, game.ErrEmptyResponse, game.ErrResponseTooLong,
	game.ErrRoundStillOpen,
}

func sessionError(op string, err error) error {
	for _, known := range sessionErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
