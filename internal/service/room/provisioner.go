package room

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
)

// NoopProvisioner is used when no media provider is configured.
// The call id doubles as the provider room id.
type NoopProvisioner struct{}

func (NoopProvisioner) Provision(ctx context.Context, roomID string) (string, error) {
	return roomID, nil
}

func (NoopProvisioner) Teardown(ctx context.Context, providerRoomID string) error {
	return nil
}

// roomService is the subset of the LiveKit room service client in use
type roomService interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
}

// LiveKitProvisioner creates rooms on a LiveKit server
type LiveKitProvisioner struct {
	client       roomService
	emptyTimeout time.Duration
}

// NewLiveKitProvisioner connects the room service client
func NewLiveKitProvisioner(url, apiKey, apiSecret string, emptyTimeout time.Duration) *LiveKitProvisioner {
	return &LiveKitProvisioner{
		client:       lksdk.NewRoomServiceClient(url, apiKey, apiSecret),
		emptyTimeout: emptyTimeout,
	}
}

// Provision creates a LiveKit room named after the call id
func (p *LiveKitProvisioner) Provision(ctx context.Context, roomID string) (string, error) {
	room, err := p.client.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:         roomID,
		EmptyTimeout: uint32(p.emptyTimeout.Seconds()),
	})
	if err != nil {
		return "", fmt.Errorf("remote livekit error: %w", err)
	}
	return room.GetName(), nil
}

// Teardown deletes the LiveKit room
func (p *LiveKitProvisioner) Teardown(ctx context.Context, providerRoomID string) error {
	if _, err := p.client.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: providerRoomID}); err != nil {
		return fmt.Errorf("remote livekit error: %w", err)
	}
	return nil
}
