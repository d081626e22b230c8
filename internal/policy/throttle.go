package policy

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type windowCounter struct {
	count       int
	windowStart time.Time
}

// ExecutionThrottle is a fixed-window counter keyed by
// (tenant, action type, operation). The counter map is process-local:
// replicas each enforce their own window, an accepted trade-off for this
// component. Updates are serialized by the mutex so concurrent attempts for
// the same key never undercount.
type ExecutionThrottle struct {
	enabled     bool
	window      time.Duration
	maxAttempts int

	mu       sync.Mutex
	counters map[string]*windowCounter

	now func() time.Time
}

func NewExecutionThrottle(enabled bool, window time.Duration, maxAttempts int) *ExecutionThrottle {
	return &ExecutionThrottle{
		enabled:     enabled,
		window:      window,
		maxAttempts: maxAttempts,
		counters:    make(map[string]*windowCounter),
		now:         time.Now,
	}
}

func (t *ExecutionThrottle) Evaluate(tenantID, actionType string, op OperationKind) ThrottleDecision {
	if !t.enabled {
		return ThrottleDecision{Allowed: true}
	}

	key := fmt.Sprintf("%s|%s|%s", tenantID, actionType, op)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counters[key]
	if !ok || now.Sub(c.windowStart) >= t.window {
		t.counters[key] = &windowCounter{count: 1, windowStart: now}
		return ThrottleDecision{Allowed: true}
	}

	c.count++
	if c.count > t.maxAttempts {
		elapsed := int64(now.Sub(c.windowStart).Seconds())
		retryAfter := int64(t.window.Seconds()) - elapsed
		if retryAfter < 1 {
			retryAfter = 1
		}
		log.WithFields(log.Fields{
			"tenant_id":   tenantID,
			"action_type": actionType,
			"operation":   op,
			"attempts":    c.count,
		}).Warn("Execution throttled")
		return ThrottleDecision{
			Allowed:           false,
			ReasonCode:        ReasonRateLimited,
			Message:           fmt.Sprintf("too many %s attempts for this action type, retry after %ds", op, retryAfter),
			RetryAfterSeconds: retryAfter,
		}
	}
	return ThrottleDecision{Allowed: true}
}
