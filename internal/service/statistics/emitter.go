// Package statistics reports call start and stop events to the analytics pipeline.
// Recording never blocks and never fails the call it describes.
package statistics

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	appctx "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/context"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/metrics"
)

// DefaultBufferSize is used when no positive buffer size is configured
const DefaultBufferSize = 256

// Sink stores one event
type Sink interface {
	Write(ctx context.Context, event *domain.StatisticsEvent) error
}

// Emitter queues events and writes them from a single worker goroutine
type Emitter struct {
	sink    Sink
	events  chan *domain.StatisticsEvent
	done    chan struct{}
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
}

// NewEmitter starts the worker. Call Close to flush and stop it.
func NewEmitter(sink Sink, bufferSize int, m *metrics.Metrics) *Emitter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	e := &Emitter{
		sink:    sink,
		events:  make(chan *domain.StatisticsEvent, bufferSize),
		done:    make(chan struct{}),
		metrics: m,
	}
	go e.run()
	return e
}

// RecordStart reports the start of a one-to-one call
func (e *Emitter) RecordStart(actorID string, role domain.UserRole, sessionID int64, callID string) {
	e.enqueue(domain.NewStartVideoCallEvent(actorID, role, sessionID, callID))
}

// RecordStop reports the end of a call by its room id
func (e *Emitter) RecordStop(actorID string, role domain.UserRole, roomID string) {
	e.enqueue(domain.NewStopVideoCallEvent(actorID, role, roomID))
}

func (e *Emitter) enqueue(event *domain.StatisticsEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.drop(event, "closed")
		return
	}

	select {
	case e.events <- event:
	default:
		e.drop(event, "buffer_full")
	}
}

func (e *Emitter) drop(event *domain.StatisticsEvent, reason string) {
	e.metrics.RecordStatisticsDropped(reason)
	logger.Warn("Statistics event dropped",
		zap.String("event_type", string(event.EventType)),
		zap.String("call_id", event.VideoCallUUID),
		zap.String("reason", reason))
}

func (e *Emitter) run() {
	defer close(e.done)

	for event := range e.events {
		ctx, cancel := appctx.WithShortTimeout(context.Background())
		if err := e.sink.Write(ctx, event); err != nil {
			e.metrics.RecordStatisticsDropped("sink_error")
			logger.Warn("Failed to write statistics event",
				zap.String("event_type", string(event.EventType)),
				zap.String("call_id", event.VideoCallUUID),
				zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events and waits until queued ones are written
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	close(e.events)
	e.mu.Unlock()

	<-e.done
}
