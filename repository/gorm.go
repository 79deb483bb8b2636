package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vibelink/models"
)

const pgUniqueViolation = "23505"

type gormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection. The schema is owned by the
// migrations package.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository       { return gormUsers{db: s.db} }
func (s *gormStore) Rooms() RoomRepository       { return gormRooms{db: s.db} }
func (s *gormStore) Sessions() SessionRepository { return gormSessions{db: s.db} }
func (s *gormStore) Matches() MatchRepository    { return gormMatches{db: s.db} }

func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// users

type gormUsers struct {
	db *gorm.DB
}

func (r gormUsers) Create(ctx context.Context, u *models.User) error {
	return translate(r.db.WithContext(ctx).Omit("Profile").Create(u).Error)
}

func (r gormUsers) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Preload("Profile").First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r gormUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Preload("Profile").First(&u, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r gormUsers) GetMany(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Preload("Profile").Where("id IN ?", ids).Find(&users).Error
	return users, translate(err)
}

func (r gormUsers) List(ctx context.Context, p ListUsersParams) ([]models.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	column := SortByCreatedAt
	if p.SortBy == SortByUsername {
		column = SortByUsername
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Preload("Profile").
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: p.Desc}).
		Order("id").
		Offset(p.Offset).
		Limit(p.Limit).
		Find(&users).Error
	return users, total, translate(err)
}

func (r gormUsers) Search(ctx context.Context, q string, limit int) ([]models.User, error) {
	pattern := likePattern(q)
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("username ILIKE ? OR bio ILIKE ?", pattern, pattern).
		Order("username").
		Limit(limit).
		Find(&users).Error
	return users, translate(err)
}

func (r gormUsers) Update(ctx context.Context, u *models.User) error {
	res := r.db.WithContext(ctx).Model(u).Omit(clause.Associations).Select("bio", "avatar", "updated_at").Updates(u)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormUsers) UpsertProfile(ctx context.Context, p *models.UserProfile) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"communication_style", "energy_level", "interests", "location", "age", "updated_at",
		}),
	}).Create(p).Error
	return translate(err)
}

func (r gormUsers) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormUsers) Follow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Connection{FollowerID: followerID, FolloweeID: followeeID})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r gormUsers) Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Delete(&models.Connection{}, "follower_id = ? AND followee_id = ?", followerID, followeeID)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r gormUsers) Following(ctx context.Context, followerID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN connections c ON c.followee_id = users.id").
		Where("c.follower_id = ?", followerID).
		Order("c.created_at").
		Find(&users).Error
	return users, translate(err)
}

// rooms

type gormRooms struct {
	db *gorm.DB
}

type participantRow struct {
	RoomID   uuid.UUID
	UserID   uuid.UUID
	Username string
	JoinedAt time.Time
}

// loadParticipants fills Participants, earliest joiner first, with
// usernames resolved.
func (r gormRooms) loadParticipants(ctx context.Context, rooms ...*models.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(rooms))
	byID := make(map[uuid.UUID]*models.Room, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
		byID[room.ID] = room
		room.Participants = []models.RoomParticipant{}
	}

	var rows []participantRow
	err := r.db.WithContext(ctx).
		Table("room_participants rp").
		Select("rp.room_id, rp.user_id, u.username, rp.joined_at").
		Joins("JOIN users u ON u.id = rp.user_id").
		Where("rp.room_id IN ?", ids).
		Order("rp.joined_at, rp.user_id").
		Scan(&rows).Error
	if err != nil {
		return translate(err)
	}

	for _, row := range rows {
		room := byID[row.RoomID]
		room.Participants = append(room.Participants, models.RoomParticipant{
			RoomID:   row.RoomID,
			UserID:   row.UserID,
			Username: row.Username,
			JoinedAt: row.JoinedAt,
		})
	}
	return nil
}

func (r gormRooms) Create(ctx context.Context, room *models.Room) error {
	return translate(r.db.WithContext(ctx).Create(room).Error)
}

func (r gormRooms) Get(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	if err := r.loadParticipants(ctx, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r gormRooms) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&room, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	if err := r.loadParticipants(ctx, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r gormRooms) List(ctx context.Context, status string) ([]models.Room, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var rooms []models.Room
	if err := q.Find(&rooms).Error; err != nil {
		return nil, translate(err)
	}

	ptrs := make([]*models.Room, len(rooms))
	for i := range rooms {
		ptrs[i] = &rooms[i]
	}
	if err := r.loadParticipants(ctx, ptrs...); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r gormRooms) Update(ctx context.Context, room *models.Room) error {
	res := r.db.WithContext(ctx).Model(room).
		Omit(clause.Associations).
		Select("name", "description", "max_participants", "host_id", "status", "closed_at", "updated_at").
		Updates(room)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormRooms) AddParticipant(ctx context.Context, roomID, userID uuid.UUID, joinedAt time.Time) error {
	err := r.db.WithContext(ctx).Create(&models.RoomParticipant{
		RoomID:   roomID,
		UserID:   userID,
		JoinedAt: joinedAt,
	}).Error
	if err != nil {
		return translate(err)
	}
	return r.touch(ctx, roomID)
}

func (r gormRooms) RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.RoomParticipant{}, "room_id = ? AND user_id = ?", roomID, userID)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return r.touch(ctx, roomID)
}

func (r gormRooms) touch(ctx context.Context, roomID uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("updated_at", time.Now().UTC()).Error)
}

func (r gormRooms) OpenForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Joins("JOIN room_participants rp ON rp.room_id = rooms.id").
		Where("rp.user_id = ? AND rooms.status <> ?", userID, models.RoomStatusClosed).
		Order("rp.joined_at").
		Pluck("rooms.id", &ids).Error
	return ids, translate(err)
}

func (r gormRooms) ListIdle(ctx context.Context, before time.Time) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.RoomStatusOpen, before).
		Find(&rooms).Error
	return rooms, translate(err)
}

// sessions

type gormSessions struct {
	db *gorm.DB
}

func (r gormSessions) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Responses", func(db *gorm.DB) *gorm.DB { return db.Order("round_number, created_at") })
}

func (r gormSessions) Create(ctx context.Context, s *models.GameSession) error {
	return translate(r.db.WithContext(ctx).Omit("Responses").Create(s).Error)
}

func (r gormSessions) Get(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	var s models.GameSession
	if err := r.preloaded(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r gormSessions) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	var s models.GameSession
	err := r.preloaded(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r gormSessions) ActiveForRoom(ctx context.Context, roomID uuid.UUID) (*models.GameSession, error) {
	var s models.GameSession
	err := r.preloaded(ctx).
		Where("room_id = ? AND status = ?", roomID, models.SessionStatusActive).
		First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r gormSessions) ListActive(ctx context.Context) ([]models.GameSession, error) {
	var sessions []models.GameSession
	err := r.preloaded(ctx).Where("status = ?", models.SessionStatusActive).Order("started_at").Find(&sessions).Error
	return sessions, translate(err)
}

func (r gormSessions) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.GameSession, error) {
	var sessions []models.GameSession
	err := r.db.WithContext(ctx).
		Joins("JOIN session_participants sp ON sp.session_id = game_sessions.id").
		Where("sp.user_id = ?", userID).
		Order("game_sessions.started_at DESC").
		Find(&sessions).Error
	return sessions, translate(err)
}

func (r gormSessions) Update(ctx context.Context, s *models.GameSession) error {
	res := r.db.WithContext(ctx).Model(s).
		Omit(clause.Associations).
		Select("host_id", "status", "phase", "current_round", "round_deadline", "ended_at", "updated_at").
		Updates(s)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormSessions) MarkParticipantLeft(ctx context.Context, sessionID, userID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.SessionParticipant{}).
		Where("session_id = ? AND user_id = ? AND left_at IS NULL", sessionID, userID).
		Update("left_at", at)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormSessions) AddResponse(ctx context.Context, resp *models.GameResponse) error {
	return translate(r.db.WithContext(ctx).Create(resp).Error)
}

// matches

type gormMatches struct {
	db *gorm.DB
}

func (r gormMatches) Create(ctx context.Context, m *models.Match) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

func (r gormMatches) Get(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	var m models.Match
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r gormMatches) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Match, error) {
	var matches []models.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&matches).Error
	return matches, translate(err)
}

func (r gormMatches) ListForSession(ctx context.Context, sessionID uuid.UUID) ([]models.Match, error) {
	var matches []models.Match
	err := r.db.WithContext(ctx).
		Where("game_session_id = ?", sessionID).
		Order("score DESC").
		Find(&matches).Error
	return matches, translate(err)
}

const leaderboardQuery = `
SELECT u.id AS user_id, u.username, ROUND(SUM(m.score))::int AS score, COUNT(*)::int AS wins
FROM (
    SELECT user1_id AS user_id, score FROM matches
    UNION ALL
    SELECT user2_id AS user_id, score FROM matches
) m
JOIN users u ON u.id = m.user_id AND u.deleted_at IS NULL
GROUP BY u.id, u.username
ORDER BY score DESC, wins DESC, u.username
LIMIT ?`

func (r gormMatches) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := r.db.WithContext(ctx).Raw(leaderboardQuery, limit).Scan(&entries).Error
	return entries, translate(err)
}
