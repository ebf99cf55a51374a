package exchange

import (
	"time"

	"github.com/sony/gobreaker"
)

// NewBreaker builds a per-venue circuit breaker matching the
// transient-failure classes the corpus retries: it trips after 5
// consecutive failures and probes again after 30s, mirroring
// cryptofunk's retryWithBackoff escalation but as a stateful breaker
// instead of a bare backoff loop, so a flapping venue stops being
// hammered once it is clearly down.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}
