package callid

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/database"
	apperrors "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/errors"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/metrics"
)

const keyPrefix = "videocall:id:"

// RedisRegistry shares active identifiers across replicas.
// SETNX is the atomic check-and-insert; the TTL expires identifiers never released.
type RedisRegistry struct {
	client      *database.RedisClient
	ttl         time.Duration
	newID       IDFunc
	maxAttempts int
	metrics     *metrics.Metrics
}

// NewRedisRegistry creates a registry backed by Redis. A nil newID uses random UUIDs.
func NewRedisRegistry(client *database.RedisClient, ttl time.Duration, newID IDFunc, m *metrics.Metrics) *RedisRegistry {
	return &RedisRegistry{
		client:      client,
		ttl:         ttl,
		newID:       defaultIDFunc(newID),
		maxAttempts: DefaultMaxAttempts,
		metrics:     m,
	}
}

// Generate claims a fresh identifier in Redis
func (r *RedisRegistry) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		id := r.newID()
		claimed, err := r.client.SafeSetNX(ctx, keyPrefix+id, time.Now().Unix(), r.ttl).Result()
		if err != nil {
			return "", apperrors.UpstreamError("identifier registry", err)
		}
		if !claimed {
			r.metrics.RecordCallIDCollision()
			logger.Warn("Call identifier collision, regenerating",
				zap.String("call_id", id),
				zap.Int("attempt", attempt+1))
			continue
		}
		return id, nil
	}

	return "", ErrIdentifierSpaceExhausted
}

// Release deletes the claim on id
func (r *RedisRegistry) Release(ctx context.Context, id string) error {
	if err := r.client.SafeDel(ctx, keyPrefix+id).Err(); err != nil {
		return apperrors.UpstreamError("identifier registry", err)
	}
	return nil
}
