package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// BinanceConfig configures the Binance adapter.
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	Testnet   bool
	// RequestsPerSecond bounds outbound API calls; the adapter owns
	// its own rate limiting per §5 ("rate limiting is the
	// responsibility of each exchange/bridge adapter").
	RequestsPerSecond float64
}

// BinanceClient implements interfaces.ExchangeClient against live
// Binance spot trading, grounded directly on cryptofunk's
// internal/exchange/binance.go.
type BinanceClient struct {
	client  *binance.Client
	mu      sync.Mutex
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	orders  map[string]*interfaces.OrderExecutionResult
	fills   map[string][]interfaces.Fill
	latency time.Duration
}

// NewBinanceClient constructs a BinanceClient.
func NewBinanceClient(cfg BinanceConfig) *BinanceClient {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.Testnet {
		binance.UseTestnet = true
		log.Info().Msg("binance exchange client initialized in testnet mode")
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &BinanceClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
		breaker: NewBreaker("binance"),
		orders:  make(map[string]*interfaces.OrderExecutionResult),
		fills:   make(map[string][]interfaces.Fill),
	}
}

var _ interfaces.ExchangeClient = (*BinanceClient)(nil)

func (b *BinanceClient) Name() string { return "binance" }

func (b *BinanceClient) PlaceOrder(ctx context.Context, order interfaces.Order) (*interfaces.OrderExecutionResult, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("exchange[binance]: rate limit wait: %w", err)
	}

	side := binance.SideTypeBuy
	if order.Side == interfaces.OrderSideSell {
		side = binance.SideTypeSell
	}

	raw, err := b.breaker.Execute(func() (interface{}, error) {
		svc := b.client.NewCreateOrderService().
			Symbol(order.Symbol).
			Side(side).
			Quantity(order.Quantity.StringFixed(8))
		if order.Price.IsZero() {
			svc = svc.Type(binance.OrderTypeMarket)
		} else {
			svc = svc.Type(binance.OrderTypeLimit).
				TimeInForce(binance.TimeInForceTypeGTC).
				Price(order.Price.StringFixed(8))
		}
		return svc.Do(ctx)
	})
	if err != nil {
		log.Error().Err(err).Str("symbol", order.Symbol).Str("side", string(order.Side)).Msg("binance order placement failed")
		return &interfaces.OrderExecutionResult{Status: interfaces.OrderStatusRejected}, fmt.Errorf("exchange[binance]: place order: %w", err)
	}

	resp := raw.(*binance.CreateOrderResponse)
	result := &interfaces.OrderExecutionResult{
		OrderID:     strconv.FormatInt(resp.OrderID, 10),
		Status:      convertBinanceStatus(resp.Status),
		FilledQty:   decimalOrZero(resp.ExecutedQuantity),
		AvgPrice:    decimalOrZero(resp.Price),
		SubmittedAt: time.Now(),
	}

	b.mu.Lock()
	b.orders[result.OrderID] = result
	b.mu.Unlock()

	return result, nil
}

func (b *BinanceClient) CancelOrder(ctx context.Context, orderID string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("exchange[binance]: rate limit wait: %w", err)
	}
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("exchange[binance]: invalid order id %q: %w", orderID, err)
	}
	_, err = b.breaker.Execute(func() (interface{}, error) {
		return b.client.NewCancelOrderService().OrderID(id).Do(ctx)
	})
	if err != nil {
		return fmt.Errorf("exchange[binance]: cancel order: %w", err)
	}
	return nil
}

func (b *BinanceClient) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("exchange[binance]: rate limit wait: %w", err)
	}
	raw, err := b.breaker.Execute(func() (interface{}, error) {
		return b.client.NewGetAccountService().Do(ctx)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("exchange[binance]: get account: %w", err)
	}
	account := raw.(*binance.Account)
	for _, bal := range account.Balances {
		if bal.Asset == asset {
			return decimalOrZero(bal.Free), nil
		}
	}
	return decimal.Zero, nil
}

func (b *BinanceClient) GetCurrentPrice(ctx context.Context, symbol string) (*types.PriceData, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("exchange[binance]: rate limit wait: %w", err)
	}
	raw, err := b.breaker.Execute(func() (interface{}, error) {
		return b.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("exchange[binance]: book ticker: %w", err)
	}
	tickers := raw.([]*binance.BookTicker)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("exchange[binance]: no ticker for %s", symbol)
	}
	t := tickers[0]
	bid := decimalOrZero(t.BidPrice)
	ask := decimalOrZero(t.AskPrice)
	return &types.PriceData{
		Exchange:  b.Name(),
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Last:      bid.Add(ask).Div(decimal.NewFromInt(2)),
		Timestamp: time.Now(),
	}, nil
}

func (b *BinanceClient) GetOrderStatus(ctx context.Context, orderID string) (interfaces.OrderStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	result, ok := b.orders[orderID]
	if !ok {
		return "", fmt.Errorf("exchange[binance]: unknown order %s", orderID)
	}
	return result.Status, nil
}

func (b *BinanceClient) GetOrderFills(ctx context.Context, orderID string) ([]interfaces.Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fills[orderID], nil
}

func (b *BinanceClient) AverageLatency() time.Duration { return b.latency }

func (b *BinanceClient) IsConnected() bool { return b.breaker.State() != gobreaker.StateOpen }

func convertBinanceStatus(status binance.OrderStatusType) interfaces.OrderStatus {
	switch status {
	case binance.OrderStatusTypeFilled:
		return interfaces.OrderStatusFilled
	case binance.OrderStatusTypePartiallyFilled:
		return interfaces.OrderStatusPartiallyFilled
	case binance.OrderStatusTypeCanceled:
		return interfaces.OrderStatusCancelled
	case binance.OrderStatusTypeRejected:
		return interfaces.OrderStatusRejected
	case binance.OrderStatusTypeExpired:
		return interfaces.OrderStatusExpired
	default:
		return interfaces.OrderStatusPending
	}
}

func decimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
