package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vibelink/models"
)

// MemoryStore keeps everything in process. Every operation is serialized;
// a transaction works on a copy of the state that replaces the original
// only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: newMemState(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type memState struct {
	users       map[uuid.UUID]models.User
	profiles    map[uuid.UUID]models.UserProfile
	connections map[[2]uuid.UUID]time.Time

	rooms        map[uuid.UUID]models.Room
	participants map[uuid.UUID][]models.RoomParticipant

	sessions            map[uuid.UUID]models.GameSession
	sessionParticipants map[uuid.UUID][]models.SessionParticipant
	responses           map[uuid.UUID][]models.GameResponse

	matches map[uuid.UUID]models.Match
}

func newMemState() *memState {
	return &memState{
		users:               make(map[uuid.UUID]models.User),
		profiles:            make(map[uuid.UUID]models.UserProfile),
		connections:         make(map[[2]uuid.UUID]time.Time),
		rooms:               make(map[uuid.UUID]models.Room),
		participants:        make(map[uuid.UUID][]models.RoomParticipant),
		sessions:            make(map[uuid.UUID]models.GameSession),
		sessionParticipants: make(map[uuid.UUID][]models.SessionParticipant),
		responses:           make(map[uuid.UUID][]models.GameResponse),
		matches:             make(map[uuid.UUID]models.Match),
	}
}

func (st *memState) clone() *memState {
	c := newMemState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.profiles {
		v.Interests = append([]string(nil), v.Interests...)
		c.profiles[k] = v
	}
	for k, v := range st.connections {
		c.connections[k] = v
	}
	for k, v := range st.rooms {
		c.rooms[k] = v
	}
	for k, v := range st.participants {
		c.participants[k] = append([]models.RoomParticipant(nil), v...)
	}
	for k, v := range st.sessions {
		v.Prompts = append([]string(nil), v.Prompts...)
		c.sessions[k] = v
	}
	for k, v := range st.sessionParticipants {
		c.sessionParticipants[k] = append([]models.SessionParticipant(nil), v...)
	}
	for k, v := range st.responses {
		c.responses[k] = append([]models.GameResponse(nil), v...)
	}
	for k, v := range st.matches {
		c.matches[k] = v
	}
	return c
}

// memView is either the root store (locks per call) or a transaction
// (already holds the lock).
type memView struct {
	root  *MemoryStore
	state *memState
}

func (v *memView) run(fn func(st *memState) error) error {
	if v.root == nil {
		return fn(v.state)
	}
	v.root.mu.Lock()
	defer v.root.mu.Unlock()
	return fn(v.root.state)
}

func (s *MemoryStore) view() *memView { return &memView{root: s} }

func (s *MemoryStore) Users() UserRepository       { return memUsers{v: s.view(), now: s.now} }
func (s *MemoryStore) Rooms() RoomRepository       { return memRooms{v: s.view(), now: s.now} }
func (s *MemoryStore) Sessions() SessionRepository { return memSessions{v: s.view(), now: s.now} }
func (s *MemoryStore) Matches() MatchRepository    { return memMatches{v: s.view(), now: s.now} }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{view: &memView{state: s.state.clone()}, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.view.state
	return nil
}

type memTx struct {
	view *memView
	now  func() time.Time
}

func (t *memTx) Users() UserRepository       { return memUsers{v: t.view, now: t.now} }
func (t *memTx) Rooms() RoomRepository       { return memRooms{v: t.view, now: t.now} }
func (t *memTx) Sessions() SessionRepository { return memSessions{v: t.view, now: t.now} }
func (t *memTx) Matches() MatchRepository    { return memMatches{v: t.view, now: t.now} }

// WithinTx inside a transaction joins it.
func (t *memTx) WithinTx(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func stamp(created, updated *time.Time, now time.Time) {
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

// users

type memUsers struct {
	v   *memView
	now func() time.Time
}

func (st *memState) liveUser(id uuid.UUID) (models.User, bool) {
	u, ok := st.users[id]
	if !ok || u.DeletedAt.Valid {
		return models.User{}, false
	}
	return u, true
}

func (st *memState) withProfile(u models.User) models.User {
	if p, ok := st.profiles[u.ID]; ok {
		p.Interests = append([]string(nil), p.Interests...)
		u.Profile = &p
	} else {
		u.Profile = nil
	}
	return u
}

func (r memUsers) Create(_ context.Context, u *models.User) error {
	return r.v.run(func(st *memState) error {
		for _, existing := range st.users {
			if existing.DeletedAt.Valid {
				continue
			}
			if existing.Email == u.Email || existing.Username == u.Username {
				return ErrDuplicate
			}
		}
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		if _, ok := st.users[u.ID]; ok {
			return ErrDuplicate
		}
		stamp(&u.CreatedAt, &u.UpdatedAt, r.now())
		stored := *u
		stored.Profile = nil
		st.users[u.ID] = stored
		return nil
	})
}

func (r memUsers) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	var out models.User
	err := r.v.run(func(st *memState) error {
		u, ok := st.liveUser(id)
		if !ok {
			return ErrNotFound
		}
		out = st.withProfile(u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	var out models.User
	err := r.v.run(func(st *memState) error {
		for _, u := range st.users {
			if !u.DeletedAt.Valid && u.Email == email {
				out = st.withProfile(u)
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memUsers) GetMany(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	out := []models.User{}
	err := r.v.run(func(st *memState) error {
		for _, id := range ids {
			if u, ok := st.liveUser(id); ok {
				out = append(out, st.withProfile(u))
			}
		}
		return nil
	})
	return out, err
}

func (st *memState) liveUsers() []models.User {
	users := make([]models.User, 0, len(st.users))
	for _, u := range st.users {
		if !u.DeletedAt.Valid {
			users = append(users, st.withProfile(u))
		}
	}
	return users
}

func (r memUsers) List(_ context.Context, p ListUsersParams) ([]models.User, int64, error) {
	var (
		out   []models.User
		total int64
	)
	err := r.v.run(func(st *memState) error {
		users := st.liveUsers()
		sort.Slice(users, func(i, j int) bool {
			a, b := users[i], users[j]
			var less, equal bool
			if p.SortBy == SortByUsername {
				less, equal = a.Username < b.Username, a.Username == b.Username
			} else {
				less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
			}
			if equal {
				return a.ID.String() < b.ID.String()
			}
			if p.Desc {
				return !less
			}
			return less
		})

		total = int64(len(users))
		start := min(p.Offset, len(users))
		end := len(users)
		if p.Limit > 0 {
			end = min(start+p.Limit, len(users))
		}
		out = users[start:end]
		return nil
	})
	return out, total, err
}

func (r memUsers) Search(_ context.Context, q string, limit int) ([]models.User, error) {
	needle := strings.ToLower(q)
	var out []models.User
	err := r.v.run(func(st *memState) error {
		for _, u := range st.liveUsers() {
			if strings.Contains(strings.ToLower(u.Username), needle) || strings.Contains(strings.ToLower(u.Bio), needle) {
				out = append(out, u)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r memUsers) Update(_ context.Context, u *models.User) error {
	return r.v.run(func(st *memState) error {
		stored, ok := st.liveUser(u.ID)
		if !ok {
			return ErrNotFound
		}
		stored.Bio = u.Bio
		stored.Avatar = u.Avatar
		stored.UpdatedAt = r.now()
		u.UpdatedAt = stored.UpdatedAt
		st.users[u.ID] = stored
		return nil
	})
}

func (r memUsers) UpsertProfile(_ context.Context, p *models.UserProfile) error {
	return r.v.run(func(st *memState) error {
		if _, ok := st.liveUser(p.UserID); !ok {
			return ErrNotFound
		}
		if existing, ok := st.profiles[p.UserID]; ok {
			p.CreatedAt = existing.CreatedAt
		}
		stamp(&p.CreatedAt, &p.UpdatedAt, r.now())
		stored := *p
		stored.Interests = append([]string(nil), p.Interests...)
		st.profiles[p.UserID] = stored
		return nil
	})
}

func (r memUsers) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.run(func(st *memState) error {
		u, ok := st.liveUser(id)
		if !ok {
			return ErrNotFound
		}
		u.DeletedAt.Time = r.now()
		u.DeletedAt.Valid = true
		st.users[id] = u
		return nil
	})
}

func (r memUsers) Follow(_ context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	created := false
	err := r.v.run(func(st *memState) error {
		key := [2]uuid.UUID{followerID, followeeID}
		if _, ok := st.connections[key]; ok {
			return nil
		}
		st.connections[key] = r.now()
		created = true
		return nil
	})
	return created, err
}

func (r memUsers) Unfollow(_ context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	removed := false
	err := r.v.run(func(st *memState) error {
		key := [2]uuid.UUID{followerID, followeeID}
		if _, ok := st.connections[key]; ok {
			delete(st.connections, key)
			removed = true
		}
		return nil
	})
	return removed, err
}

func (r memUsers) Following(_ context.Context, followerID uuid.UUID) ([]models.User, error) {
	type edge struct {
		user models.User
		at   time.Time
	}
	var edges []edge
	err := r.v.run(func(st *memState) error {
		for key, at := range st.connections {
			if key[0] != followerID {
				continue
			}
			if u, ok := st.liveUser(key[1]); ok {
				edges = append(edges, edge{user: u, at: at})
			}
		}
		return nil
	})
	sort.Slice(edges, func(i, j int) bool { return edges[i].at.Before(edges[j].at) })

	out := make([]models.User, len(edges))
	for i, e := range edges {
		out[i] = e.user
	}
	return out, err
}

// rooms

type memRooms struct {
	v   *memView
	now func() time.Time
}

func (st *memState) room(id uuid.UUID) (models.Room, bool) {
	room, ok := st.rooms[id]
	if !ok || room.DeletedAt.Valid {
		return models.Room{}, false
	}
	parts := st.participants[id]
	room.Participants = make([]models.RoomParticipant, len(parts))
	for i, p := range parts {
		if u, ok := st.users[p.UserID]; ok {
			p.Username = u.Username
		}
		room.Participants[i] = p
	}
	return room, true
}

func (r memRooms) Create(_ context.Context, room *models.Room) error {
	return r.v.run(func(st *memState) error {
		if room.ID == uuid.Nil {
			room.ID = uuid.New()
		}
		if _, ok := st.rooms[room.ID]; ok {
			return ErrDuplicate
		}
		stamp(&room.CreatedAt, &room.UpdatedAt, r.now())

		parts := make([]models.RoomParticipant, 0, len(room.Participants))
		for i := range room.Participants {
			room.Participants[i].RoomID = room.ID
			parts = append(parts, room.Participants[i])
		}
		sortParticipants(parts)

		stored := *room
		stored.Participants = nil
		st.rooms[room.ID] = stored
		st.participants[room.ID] = parts
		return nil
	})
}

func sortParticipants(parts []models.RoomParticipant) {
	sort.SliceStable(parts, func(i, j int) bool {
		if parts[i].JoinedAt.Equal(parts[j].JoinedAt) {
			return parts[i].UserID.String() < parts[j].UserID.String()
		}
		return parts[i].JoinedAt.Before(parts[j].JoinedAt)
	})
}

func (r memRooms) Get(_ context.Context, id uuid.UUID) (*models.Room, error) {
	var out models.Room
	err := r.v.run(func(st *memState) error {
		room, ok := st.room(id)
		if !ok {
			return ErrNotFound
		}
		out = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate needs no extra locking: every operation is serialized.
func (r memRooms) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return r.Get(ctx, id)
}

func (r memRooms) List(_ context.Context, status string) ([]models.Room, error) {
	out := []models.Room{}
	err := r.v.run(func(st *memState) error {
		for id := range st.rooms {
			room, ok := st.room(id)
			if !ok || (status != "" && room.Status != status) {
				continue
			}
			out = append(out, room)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

func (r memRooms) Update(_ context.Context, room *models.Room) error {
	return r.v.run(func(st *memState) error {
		stored, ok := st.rooms[room.ID]
		if !ok || stored.DeletedAt.Valid {
			return ErrNotFound
		}
		stored.Name = room.Name
		stored.Description = room.Description
		stored.MaxParticipants = room.MaxParticipants
		stored.HostID = room.HostID
		stored.Status = room.Status
		stored.ClosedAt = room.ClosedAt
		stored.UpdatedAt = r.now()
		room.UpdatedAt = stored.UpdatedAt
		st.rooms[room.ID] = stored
		return nil
	})
}

func (r memRooms) AddParticipant(_ context.Context, roomID, userID uuid.UUID, joinedAt time.Time) error {
	return r.v.run(func(st *memState) error {
		room, ok := st.rooms[roomID]
		if !ok {
			return ErrNotFound
		}
		for _, p := range st.participants[roomID] {
			if p.UserID == userID {
				return ErrDuplicate
			}
		}
		parts := append(st.participants[roomID], models.RoomParticipant{
			RoomID:   roomID,
			UserID:   userID,
			JoinedAt: joinedAt,
		})
		sortParticipants(parts)
		st.participants[roomID] = parts

		room.UpdatedAt = r.now()
		st.rooms[roomID] = room
		return nil
	})
}

func (r memRooms) RemoveParticipant(_ context.Context, roomID, userID uuid.UUID) error {
	return r.v.run(func(st *memState) error {
		parts := st.participants[roomID]
		for i, p := range parts {
			if p.UserID != userID {
				continue
			}
			st.participants[roomID] = append(parts[:i:i], parts[i+1:]...)
			if room, ok := st.rooms[roomID]; ok {
				room.UpdatedAt = r.now()
				st.rooms[roomID] = room
			}
			return nil
		}
		return ErrNotFound
	})
}

func (r memRooms) OpenForUser(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	type joined struct {
		id uuid.UUID
		at time.Time
	}
	var rooms []joined
	err := r.v.run(func(st *memState) error {
		for roomID, parts := range st.participants {
			room, ok := st.rooms[roomID]
			if !ok || room.DeletedAt.Valid || room.Status == models.RoomStatusClosed {
				continue
			}
			for _, p := range parts {
				if p.UserID == userID {
					rooms = append(rooms, joined{id: roomID, at: p.JoinedAt})
				}
			}
		}
		return nil
	})
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].at.Before(rooms[j].at) })

	ids := make([]uuid.UUID, len(rooms))
	for i, j := range rooms {
		ids[i] = j.id
	}
	return ids, err
}

func (r memRooms) ListIdle(_ context.Context, before time.Time) ([]models.Room, error) {
	var out []models.Room
	err := r.v.run(func(st *memState) error {
		for _, room := range st.rooms {
			if !room.DeletedAt.Valid && room.Status == models.RoomStatusOpen && room.UpdatedAt.Before(before) {
				out = append(out, room)
			}
		}
		return nil
	})
	return out, err
}

// sessions

type memSessions struct {
	v   *memView
	now func() time.Time
}

func (st *memState) session(id uuid.UUID) (models.GameSession, bool) {
	s, ok := st.sessions[id]
	if !ok {
		return models.GameSession{}, false
	}
	s.Prompts = append([]string(nil), s.Prompts...)
	s.Participants = append([]models.SessionParticipant(nil), st.sessionParticipants[id]...)
	s.Responses = append([]models.GameResponse(nil), st.responses[id]...)
	return s, true
}

func (r memSessions) Create(_ context.Context, s *models.GameSession) error {
	return r.v.run(func(st *memState) error {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if _, ok := st.sessions[s.ID]; ok {
			return ErrDuplicate
		}
		if s.Status == models.SessionStatusActive {
			for _, other := range st.sessions {
				if other.RoomID == s.RoomID && other.Status == models.SessionStatusActive {
					return ErrDuplicate
				}
			}
		}
		stamp(&s.CreatedAt, &s.UpdatedAt, r.now())

		parts := make([]models.SessionParticipant, len(s.Participants))
		for i := range s.Participants {
			s.Participants[i].SessionID = s.ID
			parts[i] = s.Participants[i]
		}
		sort.Slice(parts, func(i, j int) bool { return parts[i].Position < parts[j].Position })

		stored := *s
		stored.Prompts = append([]string(nil), s.Prompts...)
		stored.Participants = nil
		stored.Responses = nil
		st.sessions[s.ID] = stored
		st.sessionParticipants[s.ID] = parts
		return nil
	})
}

func (r memSessions) Get(_ context.Context, id uuid.UUID) (*models.GameSession, error) {
	var out models.GameSession
	err := r.v.run(func(st *memState) error {
		s, ok := st.session(id)
		if !ok {
			return ErrNotFound
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memSessions) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	return r.Get(ctx, id)
}

func (r memSessions) ActiveForRoom(_ context.Context, roomID uuid.UUID) (*models.GameSession, error) {
	var out models.GameSession
	err := r.v.run(func(st *memState) error {
		for id, s := range st.sessions {
			if s.RoomID == roomID && s.Status == models.SessionStatusActive {
				out, _ = st.session(id)
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memSessions) ListActive(_ context.Context) ([]models.GameSession, error) {
	var out []models.GameSession
	err := r.v.run(func(st *memState) error {
		for id, s := range st.sessions {
			if s.Status == models.SessionStatusActive {
				full, _ := st.session(id)
				out = append(out, full)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
		return nil
	})
	return out, err
}

func (r memSessions) ListForUser(_ context.Context, userID uuid.UUID) ([]models.GameSession, error) {
	var out []models.GameSession
	err := r.v.run(func(st *memState) error {
		for id, parts := range st.sessionParticipants {
			for _, p := range parts {
				if p.UserID == userID {
					s := st.sessions[id]
					s.Prompts = append([]string(nil), s.Prompts...)
					out = append(out, s)
					break
				}
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
		return nil
	})
	return out, err
}

func (r memSessions) Update(_ context.Context, s *models.GameSession) error {
	return r.v.run(func(st *memState) error {
		stored, ok := st.sessions[s.ID]
		if !ok {
			return ErrNotFound
		}
		stored.HostID = s.HostID
		stored.Status = s.Status
		stored.Phase = s.Phase
		stored.CurrentRound = s.CurrentRound
		stored.RoundDeadline = s.RoundDeadline
		stored.EndedAt = s.EndedAt
		stored.UpdatedAt = r.now()
		s.UpdatedAt = stored.UpdatedAt
		st.sessions[s.ID] = stored
		return nil
	})
}

func (r memSessions) MarkParticipantLeft(_ context.Context, sessionID, userID uuid.UUID, at time.Time) error {
	return r.v.run(func(st *memState) error {
		parts := st.sessionParticipants[sessionID]
		for i := range parts {
			if parts[i].UserID == userID && parts[i].LeftAt == nil {
				left := at
				parts[i].LeftAt = &left
				return nil
			}
		}
		return ErrNotFound
	})
}

func (r memSessions) AddResponse(_ context.Context, resp *models.GameResponse) error {
	return r.v.run(func(st *memState) error {
		if _, ok := st.sessions[resp.SessionID]; !ok {
			return ErrNotFound
		}
		for _, existing := range st.responses[resp.SessionID] {
			if existing.RoundNumber == resp.RoundNumber && existing.UserID == resp.UserID {
				return ErrDuplicate
			}
		}
		if resp.ID == uuid.Nil {
			resp.ID = uuid.New()
		}
		stamp(&resp.CreatedAt, nil, r.now())
		st.responses[resp.SessionID] = append(st.responses[resp.SessionID], *resp)
		return nil
	})
}

// matches

type memMatches struct {
	v   *memView
	now func() time.Time
}

func (r memMatches) Create(_ context.Context, m *models.Match) error {
	return r.v.run(func(st *memState) error {
		for _, existing := range st.matches {
			if existing.GameSessionID == m.GameSessionID && existing.User1ID == m.User1ID && existing.User2ID == m.User2ID {
				return ErrDuplicate
			}
		}
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		stamp(&m.CreatedAt, nil, r.now())
		st.matches[m.ID] = *m
		return nil
	})
}

func (r memMatches) Get(_ context.Context, id uuid.UUID) (*models.Match, error) {
	var out models.Match
	err := r.v.run(func(st *memState) error {
		m, ok := st.matches[id]
		if !ok {
			return ErrNotFound
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memMatches) filter(keep func(models.Match) bool) ([]models.Match, error) {
	out := []models.Match{}
	err := r.v.run(func(st *memState) error {
		for _, m := range st.matches {
			if keep(m) {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (r memMatches) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Match, error) {
	out, err := r.filter(func(m models.Match) bool { return m.Involves(userID) })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r memMatches) ListForSession(_ context.Context, sessionID uuid.UUID) ([]models.Match, error) {
	out, err := r.filter(func(m models.Match) bool { return m.GameSessionID == sessionID })
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, err
}

func (r memMatches) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	type agg struct {
		score float64
		wins  int
	}
	var entries []models.LeaderboardEntry
	err := r.v.run(func(st *memState) error {
		totals := make(map[uuid.UUID]*agg)
		add := func(id uuid.UUID, score float64) {
			a, ok := totals[id]
			if !ok {
				a = &agg{}
				totals[id] = a
			}
			a.score += score
			a.wins++
		}
		for _, m := range st.matches {
			add(m.User1ID, m.Score)
			add(m.User2ID, m.Score)
		}

		for id, a := range totals {
			u, ok := st.liveUser(id)
			if !ok {
				continue
			}
			entries = append(entries, models.LeaderboardEntry{
				UserID:   id,
				Username: u.Username,
				Score:    int(a.score + 0.5),
				Wins:     a.wins,
			})
		}
		return nil
	})

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.Username < b.Username
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, err
}
