package notification

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
)

// TokenStore resolves the device tokens of a recipient
type TokenStore interface {
	List(ctx context.Context, recipientID string) ([]string, error)
	Remove(ctx context.Context, recipientID string, tokens ...string) error
}

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMPusher sends call invitations through Firebase Cloud Messaging
type FCMPusher struct {
	client multicastSender
	tokens TokenStore
}

// NewFCMPusher initializes Firebase from a service account file
func NewFCMPusher(ctx context.Context, credentialsPath string, tokens TokenStore) (*FCMPusher, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path is required")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	logger.Info("FCM push provider initialized")

	return &FCMPusher{client: client, tokens: tokens}, nil
}

// Push sends msg to all devices of recipientID and forgets tokens FCM reports as dead
func (p *FCMPusher) Push(ctx context.Context, recipientID string, msg *domain.LiveEventMessage) error {
	tokens, err := p.tokens.List(ctx, recipientID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	content := msg.EventContent
	resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: "Video call",
			Body:  fmt.Sprintf("%s is calling", content.InitiatorUsername),
		},
		Data: map[string]string{
			"eventType":         string(msg.EventType),
			"rcGroupId":         content.RCGroupID,
			"videoCallUrl":      content.VideoCallURL,
			"initiatorRcUserId": content.InitiatorRCUserID,
			"initiatorUsername": content.InitiatorUsername,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	})
	if err != nil {
		return fmt.Errorf("failed to send FCM message: %w", err)
	}

	var invalid []string
	for i, r := range resp.Responses {
		if r.Success || r.Error == nil {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			invalid = append(invalid, tokens[i])
		}
	}
	if len(invalid) > 0 {
		if err := p.tokens.Remove(ctx, recipientID, invalid...); err != nil {
			logger.Warn("Failed to remove invalid push tokens",
				zap.String("recipient_id", recipientID),
				zap.Error(err))
		}
	}

	if resp.SuccessCount == 0 {
		return fmt.Errorf("all %d push deliveries failed", resp.FailureCount)
	}
	return nil
}
