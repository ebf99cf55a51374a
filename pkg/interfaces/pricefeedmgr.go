package interfaces

import (
	"github.com/mev-engine/mev-searcher/pkg/types"
)

// PriceDataSink is the narrow push interface the price feed manager
// uses to fan ticks out to a strategy's own cache (§4.6/§9 "avoid
// cycles"). The manager never holds a reference to strategy internals
// beyond this interface.
type PriceDataSink interface {
	UpdatePriceData(data *types.PriceData)
	UpdateOrderbookData(snapshot *types.OrderBookSnapshot)
}

// PriceCacheReader is the read surface strategies use to pull fresh
// ticks out from under the price feed manager's per-key lock.
type PriceCacheReader interface {
	GetPrice(exchange, symbol string) (*types.PriceData, bool)
	GetOrderBook(exchange, symbol string) (*types.OrderBookSnapshot, bool)
	VenueQualityScore(exchange string) float64
}
