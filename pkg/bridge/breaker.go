package bridge

import (
	"time"

	"github.com/sony/gobreaker"
)

// NewBreaker builds a per-bridge circuit breaker using the same
// trip/reset policy as pkg/exchange's, so a stuck bridge stops
// accepting quote requests instead of repeatedly timing out.
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
