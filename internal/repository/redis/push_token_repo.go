package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/database"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
)

// PushTokenExpiry is refreshed on every registration
const PushTokenExpiry = 30 * 24 * time.Hour

// PushTokenRepository stores FCM device tokens per live recipient id
type PushTokenRepository struct {
	client *database.RedisClient
}

// NewPushTokenRepository creates a new push token repository
func NewPushTokenRepository(client *database.RedisClient) *PushTokenRepository {
	return &PushTokenRepository{
		client: client,
	}
}

func userTokensKey(recipientID string) string {
	// Key format: push:tokens:{recipientID}
	return fmt.Sprintf("push:tokens:%s", recipientID)
}

// Add registers token for recipientID
func (r *PushTokenRepository) Add(ctx context.Context, recipientID, token string) error {
	key := userTokensKey(recipientID)
	if err := r.client.SafeSAdd(ctx, key, token).Err(); err != nil {
		return fmt.Errorf("failed to store push token: %w", err)
	}

	if err := r.client.Client.Expire(ctx, key, PushTokenExpiry).Err(); err != nil {
		logger.Warn("Failed to set expiration on push token set",
			zap.String("recipient_id", recipientID),
			zap.Error(err))
	}

	return nil
}

// Remove unregisters tokens for recipientID
func (r *PushTokenRepository) Remove(ctx context.Context, recipientID string, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	members := lo.Map(tokens, func(t string, _ int) interface{} { return t })
	if err := r.client.SafeSRem(ctx, userTokensKey(recipientID), members...).Err(); err != nil {
		return fmt.Errorf("failed to remove push tokens: %w", err)
	}
	return nil
}

// List returns all tokens of recipientID
func (r *PushTokenRepository) List(ctx context.Context, recipientID string) ([]string, error) {
	tokens, err := r.client.SafeSMembers(ctx, userTokensKey(recipientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get push tokens: %w", err)
	}
	return tokens, nil
}
