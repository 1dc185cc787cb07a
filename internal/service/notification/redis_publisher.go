package notification

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/database"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LiveChannel is the pub/sub channel a recipient's live connections listen on
func LiveChannel(recipientID string) string {
	return "live:" + recipientID
}

// RedisPublisher publishes live events over Redis pub/sub
type RedisPublisher struct {
	client *database.RedisClient
}

// NewRedisPublisher creates a Redis live event publisher
func NewRedisPublisher(client *database.RedisClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends msg to the recipient's live channel
func (p *RedisPublisher) Publish(ctx context.Context, recipientID string, msg *domain.LiveEventMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal live event: %w", err)
	}
	if err := p.client.SafePublish(ctx, LiveChannel(recipientID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish live event: %w", err)
	}
	return nil
}
