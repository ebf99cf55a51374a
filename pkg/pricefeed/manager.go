// Package pricefeed implements the price feed manager of §4.6: it
// validates, caches, and fans out price ticks and order-book
// snapshots, tracking a per-venue quality score derived from the
// accept/reject ratio. Locking follows the teacher's per-key
// discipline in pkg/queue: every cache key owns its own mutex so a
// reader on one (exchange, symbol) pair never blocks a writer on
// another.
package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
)

// CacheTTL is how long an accepted entry survives without a refresh
// before the janitor evicts it.
const CacheTTL = 5 * time.Minute

// MinPrice and MaxPrice bound the sane range a tick's price may fall
// in (§4.6).
var (
	MinPrice = decimal.NewFromFloat(1e-3)
	MaxPrice = decimal.NewFromFloat(1e6)
)

// MaxSpreadFraction is the maximum ask/bid spread relative to mid
// price before a tick is rejected.
var MaxSpreadFraction = decimal.NewFromFloat(0.5)

type priceEntry struct {
	mu        sync.RWMutex
	data      *types.PriceData
	updatedAt time.Time
}

type bookEntry struct {
	mu        sync.RWMutex
	data      *types.OrderBookSnapshot
	updatedAt time.Time
}

type qualityWindow struct {
	mu       sync.Mutex
	accepted int64
	rejected int64
	ema      float64
	init     bool
}

// Manager implements the price feed manager.
type Manager struct {
	mu        sync.RWMutex
	prices    map[string]*priceEntry // key: exchange+"|"+symbol
	books     map[string]*bookEntry
	quality   map[string]*qualityWindow // key: exchange
	sinks     []interfaces.PriceDataSink
	now       func() time.Time
	rejectedC func(exchange, symbol string)
}

// NewManager builds an empty price feed manager. sinks are narrow
// push targets (e.g. the micro-arbitrage strategy's own cache) that
// receive every accepted tick, per §9's no-back-reference discipline.
func NewManager(sinks ...interfaces.PriceDataSink) *Manager {
	return &Manager{
		prices:  make(map[string]*priceEntry),
		books:   make(map[string]*bookEntry),
		quality: make(map[string]*qualityWindow),
		sinks:   sinks,
		now:     time.Now,
	}
}

func key(exchange, symbol string) string { return exchange + "|" + symbol }

// OnPriceTick validates and, if accepted, caches and fans out a tick.
// It returns the validation error, if any, so callers can log it
// with §7's structured classification.
func (m *Manager) OnPriceTick(tick *types.PriceData) error {
	now := m.now()

	if err := validateTick(tick, now); err != nil {
		m.recordQuality(tick.Exchange, false)
		return err
	}

	k := key(tick.Exchange, tick.Symbol)

	m.mu.Lock()
	entry, ok := m.prices[k]
	if !ok {
		entry = &priceEntry{}
		m.prices[k] = entry
	}
	m.mu.Unlock()

	entry.mu.Lock()
	// Idempotence / monotonicity: only a strictly newer sequence
	// replaces the cached tick (§8 laws).
	if entry.data != nil && tick.Sequence <= entry.data.Sequence {
		entry.mu.Unlock()
		return nil
	}
	entry.data = tick
	entry.updatedAt = now
	entry.mu.Unlock()

	m.recordQuality(tick.Exchange, true)

	for _, sink := range m.sinks {
		sink.UpdatePriceData(tick)
	}
	return nil
}

func validateTick(p *types.PriceData, now time.Time) error {
	if err := p.Validate(now); err != nil {
		return err
	}
	if p.Bid.LessThan(MinPrice) || p.Ask.GreaterThan(MaxPrice) {
		return errOutOfRange
	}
	mid := p.Bid.Add(p.Ask).Div(decimal.NewFromInt(2))
	spread := p.Ask.Sub(p.Bid)
	if mid.IsPositive() && spread.GreaterThan(mid.Mul(MaxSpreadFraction)) {
		return errSpreadTooWide
	}
	return nil
}

// OnOrderBook validates and, if accepted, caches and fans out a book
// snapshot.
func (m *Manager) OnOrderBook(snap *types.OrderBookSnapshot) error {
	if err := snap.Validate(); err != nil {
		m.recordQuality(snap.Exchange, false)
		return err
	}

	k := key(snap.Exchange, snap.Symbol)

	m.mu.Lock()
	entry, ok := m.books[k]
	if !ok {
		entry = &bookEntry{}
		m.books[k] = entry
	}
	m.mu.Unlock()

	entry.mu.Lock()
	if entry.data != nil && snap.Sequence <= entry.data.Sequence {
		entry.mu.Unlock()
		return nil
	}
	entry.data = snap
	entry.updatedAt = m.now()
	entry.mu.Unlock()

	m.recordQuality(snap.Exchange, true)

	for _, sink := range m.sinks {
		sink.UpdateOrderbookData(snap)
	}
	return nil
}

func (m *Manager) recordQuality(exchange string, accepted bool) {
	m.mu.Lock()
	w, ok := m.quality[exchange]
	if !ok {
		w = &qualityWindow{}
		m.quality[exchange] = w
	}
	m.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if accepted {
		w.accepted++
	} else {
		w.rejected++
	}
	total := w.accepted + w.rejected
	if total == 0 {
		return
	}
	ratio := float64(w.accepted) / float64(total)
	const alpha = 0.1 // EMA smoothing over ~1-minute windows
	if !w.init {
		w.ema = ratio
		w.init = true
	} else {
		w.ema = alpha*ratio + (1-alpha)*w.ema
	}
}

// GetPrice returns the cached tick for (exchange, symbol), if any.
func (m *Manager) GetPrice(exchange, symbol string) (*types.PriceData, bool) {
	m.mu.RLock()
	entry, ok := m.prices[key(exchange, symbol)]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	if entry.data == nil {
		return nil, false
	}
	cp := *entry.data
	return &cp, true
}

// GetOrderBook returns the cached snapshot for (exchange, symbol), if any.
func (m *Manager) GetOrderBook(exchange, symbol string) (*types.OrderBookSnapshot, bool) {
	m.mu.RLock()
	entry, ok := m.books[key(exchange, symbol)]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	if entry.data == nil {
		return nil, false
	}
	cp := *entry.data
	return &cp, true
}

// VenueQualityScore returns the EMA accept ratio for a venue, or 1.0
// if no ticks have been observed yet.
func (m *Manager) VenueQualityScore(exchange string) float64 {
	m.mu.RLock()
	w, ok := m.quality[exchange]
	m.mu.RUnlock()
	if !ok {
		return 1.0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.init {
		return 1.0
	}
	return w.ema
}

var _ interfaces.PriceCacheReader = (*Manager)(nil)

// RunJanitor evicts cache entries older than CacheTTL until ctx is
// cancelled.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

func (m *Manager) evictStale() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, entry := range m.prices {
		entry.mu.RLock()
		stale := now.Sub(entry.updatedAt) > CacheTTL
		entry.mu.RUnlock()
		if stale {
			delete(m.prices, k)
		}
	}
	for k, entry := range m.books {
		entry.mu.RLock()
		stale := now.Sub(entry.updatedAt) > CacheTTL
		entry.mu.RUnlock()
		if stale {
			delete(m.books, k)
		}
	}
}

var errOutOfRange = validationError("pricefeed: price outside sane range")
var errSpreadTooWide = validationError("pricefeed: spread exceeds 50% of mid")

type validationError string

func (e validationError) Error() string { return string(e) }
