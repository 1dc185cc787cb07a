package callid

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/metrics"
)

// MemoryRegistry keeps active identifiers in process memory.
// Suitable for a single replica only.
type MemoryRegistry struct {
	mu          sync.Mutex
	active      map[string]time.Time
	newID       IDFunc
	maxAttempts int
	now         func() time.Time
	metrics     *metrics.Metrics
}

// NewMemoryRegistry creates an in-process registry. A nil newID uses random UUIDs.
func NewMemoryRegistry(newID IDFunc, m *metrics.Metrics) *MemoryRegistry {
	return &MemoryRegistry{
		active:      make(map[string]time.Time),
		newID:       defaultIDFunc(newID),
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		metrics:     m,
	}
}

// Generate returns an identifier not held by any active call.
// Check and insert happen under one lock.
func (r *MemoryRegistry) Generate(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		id := r.newID()
		if _, taken := r.active[id]; taken {
			r.metrics.RecordCallIDCollision()
			logger.Warn("Call identifier collision, regenerating",
				zap.String("call_id", id),
				zap.Int("attempt", attempt+1))
			continue
		}
		r.active[id] = r.now()
		return id, nil
	}

	return "", ErrIdentifierSpaceExhausted
}

// Release frees id for reuse. Unknown ids are ignored.
func (r *MemoryRegistry) Release(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.active, id)
	return nil
}

// Purge drops identifiers issued longer than olderThan ago and returns how many were removed
func (r *MemoryRegistry) Purge(olderThan time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	removed := 0
	for id, issuedAt := range r.active {
		if issuedAt.Before(cutoff) {
			delete(r.active, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of active identifiers
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
