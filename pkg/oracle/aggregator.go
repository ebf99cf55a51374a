// Package oracle implements the oracle aggregator of §4.2: it
// combines an external price feed with a pool-derived time-weighted
// price and reports a confidence-adjusted result.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/shopspring/decimal"
)

// FeedUpdateMaxAge is the staleness bound past which confidence drops.
const FeedUpdateMaxAge = time.Hour

// DivergenceThreshold is the feed/TWAP divergence past which
// confidence is halved.
var DivergenceThreshold = decimal.NewFromFloat(0.02)

// ExternalFeed is a collaborator providing a price and its last
// update time for an asset.
type ExternalFeed interface {
	Price(ctx context.Context, asset string) (price decimal.Decimal, updatedAt time.Time, err error)
}

// PoolTWAP is a collaborator providing a pool-derived time-weighted
// average price for an asset.
type PoolTWAP interface {
	TWAP(ctx context.Context, asset string) (decimal.Decimal, error)
}

// Aggregator implements interfaces.OracleAggregator.
type Aggregator struct {
	feed ExternalFeed
	twap PoolTWAP
	now  func() time.Time
}

// New builds an Aggregator over the given feed and TWAP source.
func New(feed ExternalFeed, twap PoolTWAP) *Aggregator {
	return &Aggregator{feed: feed, twap: twap, now: time.Now}
}

var _ interfaces.OracleAggregator = (*Aggregator)(nil)

// Price returns the feed price along with a confidence in [0,1]
// derived from feed staleness and feed/TWAP divergence (§4.2).
func (a *Aggregator) Price(ctx context.Context, asset string) (decimal.Decimal, float64, error) {
	price, updatedAt, err := a.feed.Price(ctx, asset)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("oracle: external feed: %w", err)
	}

	confidence := 1.0
	if a.now().Sub(updatedAt) > FeedUpdateMaxAge {
		confidence *= 0.5
	}

	twapPrice, twapErr := a.twap.TWAP(ctx, asset)
	if twapErr == nil && !price.IsZero() {
		divergence := price.Sub(twapPrice).Abs().Div(price)
		if divergence.GreaterThan(DivergenceThreshold) {
			confidence *= 0.5
		}
	}

	return price, confidence, nil
}
