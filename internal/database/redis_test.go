package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/metrics"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *RedisClient, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	m := metrics.NewMetrics("video-service-test")
	client := NewRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), m)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client, m
}

func assertDegradedGauge(t *testing.T, m *metrics.Metrics, value string) {
	t.Helper()
	expected := `
# HELP redis_degraded_mode Indicates if Redis is in degraded mode (1 = degraded, 0 = healthy)
# TYPE redis_degraded_mode gauge
redis_degraded_mode{service="video-service-test"} ` + value + "\n"
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "redis_degraded_mode"))
}

func TestRedisClient_HealthyOperations(t *testing.T) {
	mr, client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.HealthCheck(ctx))
	assert.False(t, client.IsDegraded())

	ok, err := client.SafeSetNX(ctx, "k", "v", time.Minute).Result()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("k"))

	require.NoError(t, client.SafeSAdd(ctx, "set", "a", "b").Err())
	members, err := client.SafeSMembers(ctx, "set").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, client.SafeDel(ctx, "k").Err())
	assert.False(t, mr.Exists("k"))
}

func TestRedisClient_DegradedMode(t *testing.T) {
	mr, client, m := newTestClient(t)
	ctx := context.Background()

	mr.Close()
	require.Error(t, client.HealthCheck(ctx))
	assert.True(t, client.IsDegraded())
	assertDegradedGauge(t, m, "1")

	err := client.SafeSetNX(ctx, "k", "v", time.Minute).Err()
	assert.True(t, errors.Is(err, ErrRedisDegraded))
	assert.True(t, errors.Is(client.SafePublish(ctx, "c", "m").Err(), ErrRedisDegraded))
	assert.Nil(t, client.SafeSubscribe(ctx, "c"))
}

func TestRedisClient_Recovers(t *testing.T) {
	mr, client, m := newTestClient(t)
	ctx := context.Background()

	mr.Close()
	require.Error(t, client.HealthCheck(ctx))
	require.True(t, client.IsDegraded())

	require.NoError(t, mr.Restart())
	require.Eventually(t, func() bool {
		return client.HealthCheck(ctx) == nil
	}, 5*time.Second, 50*time.Millisecond)
	assert.False(t, client.IsDegraded())
	assertDegradedGauge(t, m, "0")
}
