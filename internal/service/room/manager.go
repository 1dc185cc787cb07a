// Package room owns the lifecycle of call rooms: provisioning, lookup, closing and retention.
package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	appctx "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/context"
	apperrors "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/errors"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
)

// Repository persists rooms
type Repository interface {
	Create(ctx context.Context, room *domain.VideoRoom) error
	FindByRoomID(ctx context.Context, roomID string) (*domain.VideoRoom, error)
	MarkClosed(ctx context.Context, roomID string, closedAt time.Time) (bool, error)
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Provisioner allocates and releases the media room at the provider
type Provisioner interface {
	Provision(ctx context.Context, roomID string) (string, error)
	Teardown(ctx context.Context, providerRoomID string) error
}

// Manager implements the room lifecycle
type Manager struct {
	repo        Repository
	provisioner Provisioner
	now         func() time.Time
}

// NewManager creates a room manager. A nil provisioner means rooms exist only as records.
func NewManager(repo Repository, provisioner Provisioner) *Manager {
	if provisioner == nil {
		provisioner = NoopProvisioner{}
	}
	return &Manager{
		repo:        repo,
		provisioner: provisioner,
		now:         time.Now,
	}
}

// CreateOneToOneRoom provisions and records a room for a counseling session
func (m *Manager) CreateOneToOneRoom(ctx context.Context, sessionID int64, callID, moderatorURL string) (*domain.VideoRoom, error) {
	return m.create(ctx, &domain.VideoRoom{
		SessionID: &sessionID,
		RoomID:    callID,
		VideoLink: moderatorURL,
	})
}

// CreateGroupRoom provisions and records a room for a group chat
func (m *Manager) CreateGroupRoom(ctx context.Context, chatID int64, callID, moderatorURL string) (*domain.VideoRoom, error) {
	return m.create(ctx, &domain.VideoRoom{
		GroupChatID: &chatID,
		RoomID:      callID,
		VideoLink:   moderatorURL,
	})
}

func (m *Manager) create(ctx context.Context, room *domain.VideoRoom) (*domain.VideoRoom, error) {
	providerRoomID, err := m.provisioner.Provision(ctx, room.RoomID)
	if err != nil {
		return nil, apperrors.UpstreamError("room provider", err)
	}
	room.ProviderRoomID = providerRoomID

	// A provisioned room whose record fails to persist is reclaimed by the provider's empty timeout.
	if err := m.repo.Create(ctx, room); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Video room created",
		zap.String("room_id", room.RoomID),
		zap.String("kind", string(room.Kind())))

	return room, nil
}

// FindByRoomID returns the room or a ROOM_NOT_FOUND error
func (m *Manager) FindByRoomID(ctx context.Context, roomID string) (*domain.VideoRoom, error) {
	return m.repo.FindByRoomID(ctx, roomID)
}

// CloseRoom marks room closed and releases its provider room.
// Closing an already closed room is a logged no-op.
func (m *Manager) CloseRoom(ctx context.Context, room *domain.VideoRoom) error {
	log := logger.FromContext(ctx).With(zap.String("room_id", room.RoomID))

	if room.IsClosed() {
		log.Warn("Video room already closed")
		return nil
	}

	closedAt := m.now().UTC()
	closed, err := m.repo.MarkClosed(ctx, room.RoomID, closedAt)
	if err != nil {
		return err
	}
	if !closed {
		log.Warn("Video room already closed")
		return nil
	}
	room.ClosedAt = &closedAt

	if room.ProviderRoomID != "" {
		// The room is closed in the database already; finish the teardown
		// even if the caller goes away.
		teardownCtx, cancel := appctx.Detached(ctx, appctx.MediumTimeout)
		defer cancel()
		if err := m.provisioner.Teardown(teardownCtx, room.ProviderRoomID); err != nil {
			log.Warn("Unable to delete room at provider side", zap.Error(err))
		}
	}

	return nil
}

// PurgeClosed deletes room records closed before cutoff
func (m *Manager) PurgeClosed(ctx context.Context, cutoff time.Time) (int64, error) {
	removed, err := m.repo.DeleteClosedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Info("Purged closed video rooms", zap.Int64("count", removed))
	}
	return removed, nil
}
