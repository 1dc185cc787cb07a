// Package notification delivers live events to call invitees.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	appctx "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/context"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/metrics"
)

const (
	// DefaultConcurrency bounds parallel deliveries of one invitation
	DefaultConcurrency = 8

	// DefaultDeliveryTimeout bounds one invitation fan-out
	DefaultDeliveryTimeout = appctx.MediumTimeout
)

// Publisher delivers an event to connected clients of a recipient
type Publisher interface {
	Publish(ctx context.Context, recipientID string, msg *domain.LiveEventMessage) error
}

// Pusher delivers an event to a recipient's devices
type Pusher interface {
	Push(ctx context.Context, recipientID string, msg *domain.LiveEventMessage) error
}

// Dispatcher fans one invitation out to every recipient
type Dispatcher struct {
	publisher   Publisher
	pusher      Pusher
	concurrency int
	timeout     time.Duration
	metrics     *metrics.Metrics
	inflight    sync.WaitGroup
}

// NewDispatcher creates a dispatcher. pusher may be nil when push delivery is disabled.
func NewDispatcher(publisher Publisher, pusher Pusher, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		publisher:   publisher,
		pusher:      pusher,
		concurrency: DefaultConcurrency,
		timeout:     DefaultDeliveryTimeout,
		metrics:     m,
	}
}

// SendCallInvitation starts delivery to every recipient and returns
// without waiting for it. Delivery runs detached from ctx, bounded by the
// delivery timeout, and failures are logged.
func (d *Dispatcher) SendCallInvitation(ctx context.Context, msg *domain.LiveEventMessage, recipientIDs []string) error {
	recipients := lo.Uniq(lo.Compact(recipientIDs))
	if len(recipients) == 0 {
		return nil
	}

	deliveryCtx, cancel := appctx.Detached(ctx, d.timeout)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer cancel()
		if err := d.fanOut(deliveryCtx, msg, recipients); err != nil {
			logger.FromContext(deliveryCtx).Warn("Video call invitation not delivered to every recipient",
				zap.Int("recipients", len(recipients)),
				zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every started invitation has finished delivery
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// fanOut attempts delivery to every recipient once. A failing recipient
// never stops delivery to the others.
func (d *Dispatcher) fanOut(ctx context.Context, msg *domain.LiveEventMessage, recipients []string) error {
	errs := make([]error, len(recipients))
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, recipientID := range recipients {
		g.Go(func() error {
			errs[i] = d.deliver(ctx, recipientID, msg)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, recipientID string, msg *domain.LiveEventMessage) error {
	log := logger.FromContext(ctx).With(zap.String("recipient_id", recipientID))

	var errs []error
	if err := d.publisher.Publish(ctx, recipientID, msg); err != nil {
		d.metrics.RecordNotificationFailure("live")
		log.Warn("Failed to publish live event", zap.Error(err))
		errs = append(errs, fmt.Errorf("live event to %s: %w", recipientID, err))
	}

	if d.pusher != nil {
		if err := d.pusher.Push(ctx, recipientID, msg); err != nil {
			d.metrics.RecordNotificationFailure("push")
			log.Warn("Failed to send push notification", zap.Error(err))
			errs = append(errs, fmt.Errorf("push to %s: %w", recipientID, err))
		}
	}

	return errors.Join(errs...)
}
