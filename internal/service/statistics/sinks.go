package statistics

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/database"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultStream is the Redis stream statistics consumers read from
const DefaultStream = "videocall:statistics"

// maxStreamLen caps the stream, trimming approximately
const maxStreamLen = 100000

// NopSink discards events
type NopSink struct{}

func (NopSink) Write(ctx context.Context, event *domain.StatisticsEvent) error {
	return nil
}

// RedisStreamSink appends events to a Redis stream
type RedisStreamSink struct {
	client *database.RedisClient
	stream string
}

// NewRedisStreamSink creates a stream sink
func NewRedisStreamSink(client *database.RedisClient, stream string) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{client: client, stream: stream}
}

// Write appends event as its JSON encoding under the "event" field
func (s *RedisStreamSink) Write(ctx context.Context, event *domain.StatisticsEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics event: %w", err)
	}

	err = s.client.SafeXAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":  string(event.EventType),
			"event": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append statistics event: %w", err)
	}
	return nil
}

// CassandraSink archives events in the video_call_events table
type CassandraSink struct {
	db *database.CassandraDB
}

// NewCassandraSink creates a Cassandra sink
func NewCassandraSink(db *database.CassandraDB) *CassandraSink {
	return &CassandraSink{db: db}
}

// Write inserts one event row
func (s *CassandraSink) Write(ctx context.Context, event *domain.StatisticsEvent) error {
	query := `INSERT INTO video_call_events (video_call_uuid, event_time, event_type, user_id, user_role, session_id)
		VALUES (?, ?, ?, ?, ?, ?)`

	if err := s.db.ExecWithContext(ctx, query,
		event.VideoCallUUID,
		event.Timestamp,
		string(event.EventType),
		event.UserID,
		string(event.UserRole),
		event.SessionID,
	); err != nil {
		return fmt.Errorf("failed to insert statistics event: %w", err)
	}
	return nil
}
