package cockroach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	apperrors "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/errors"
)

const videoRoomSchema = `
	CREATE TABLE IF NOT EXISTS video_rooms (
		id               INT8 PRIMARY KEY DEFAULT unique_rowid(),
		session_id       INT8 NULL,
		group_chat_id    INT8 NULL,
		room_id          STRING NOT NULL UNIQUE,
		video_link       STRING NOT NULL,
		provider_room_id STRING NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		closed_at        TIMESTAMPTZ NULL,
		CONSTRAINT video_rooms_one_subject CHECK ((session_id IS NULL) != (group_chat_id IS NULL)),
		INDEX video_rooms_closed_at_idx (closed_at)
	)
`

const videoRoomColumns = `id, session_id, group_chat_id, room_id, video_link, provider_room_id, created_at, closed_at`

// VideoRoomRepository handles video room persistence
type VideoRoomRepository struct {
	pool *pgxpool.Pool
}

// NewVideoRoomRepository creates a new video room repository
func NewVideoRoomRepository(pool *pgxpool.Pool) *VideoRoomRepository {
	return &VideoRoomRepository{pool: pool}
}

// EnsureSchema creates the video_rooms table when missing
func (r *VideoRoomRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, videoRoomSchema); err != nil {
		return fmt.Errorf("failed to create video_rooms table: %w", err)
	}
	return nil
}

// Create inserts room and fills its generated id and creation time
func (r *VideoRoomRepository) Create(ctx context.Context, room *domain.VideoRoom) error {
	query := `
		INSERT INTO video_rooms (session_id, group_chat_id, room_id, video_link, provider_room_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		room.SessionID,
		room.GroupChatID,
		room.RoomID,
		room.VideoLink,
		room.ProviderRoomID,
	).Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		return apperrors.DatabaseError(fmt.Errorf("failed to create video room: %w", err))
	}

	return nil
}

// FindByRoomID retrieves a room by its call room id
func (r *VideoRoomRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.VideoRoom, error) {
	query := `SELECT ` + videoRoomColumns + ` FROM video_rooms WHERE room_id = $1`

	room, err := scanVideoRoom(r.pool.QueryRow(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.RoomNotFoundError(roomID)
		}
		return nil, apperrors.DatabaseError(fmt.Errorf("failed to get video room: %w", err))
	}

	return room, nil
}

// MarkClosed sets closed_at for an open room.
// Returns false when the room was already closed.
func (r *VideoRoomRepository) MarkClosed(ctx context.Context, roomID string, closedAt time.Time) (bool, error) {
	query := `
		UPDATE video_rooms
		SET closed_at = $2
		WHERE room_id = $1 AND closed_at IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, roomID, closedAt)
	if err != nil {
		return false, apperrors.DatabaseError(fmt.Errorf("failed to close video room: %w", err))
	}

	return tag.RowsAffected() == 1, nil
}

// DeleteClosedBefore removes rooms closed before cutoff
func (r *VideoRoomRepository) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM video_rooms WHERE closed_at IS NOT NULL AND closed_at < $1`, cutoff)
	if err != nil {
		return 0, apperrors.DatabaseError(fmt.Errorf("failed to purge video rooms: %w", err))
	}
	return tag.RowsAffected(), nil
}

func scanVideoRoom(row pgx.Row) (*domain.VideoRoom, error) {
	room := &domain.VideoRoom{}
	err := row.Scan(
		&room.ID,
		&room.SessionID,
		&room.GroupChatID,
		&room.RoomID,
		&room.VideoLink,
		&room.ProviderRoomID,
		&room.CreatedAt,
		&room.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return room, nil
}
