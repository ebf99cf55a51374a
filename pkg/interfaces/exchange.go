package interfaces

import (
	"context"
	"time"

	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus is the lifecycle of a placed order (§4.3).
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
)

// Order is a request to trade a symbol on a venue.
type Order struct {
	Symbol   string
	Side     OrderSide
	Quantity decimal.Decimal
	Price    decimal.Decimal // limit price; zero means market order
}

// OrderExecutionResult is returned by PlaceOrder.
type OrderExecutionResult struct {
	OrderID   string
	Status    OrderStatus
	FilledQty decimal.Decimal
	AvgPrice  decimal.Decimal
	SubmittedAt time.Time
}

// Fill is a single execution report against an order.
type Fill struct {
	OrderID   string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Fee       decimal.Decimal
	Timestamp time.Time
}

// ExchangeClient is the uniform capability set every venue adapter
// (centralized or decentralized) exposes to the strategy layer (§4.3).
// Implementations own their signing, rate limiting, and reconnection;
// this interface exposes only pure async operations with typed errors.
type ExchangeClient interface {
	Name() string
	PlaceOrder(ctx context.Context, order Order) (*OrderExecutionResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	GetCurrentPrice(ctx context.Context, symbol string) (*types.PriceData, error)
	GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error)
	GetOrderFills(ctx context.Context, orderID string) ([]Fill, error)
	AverageLatency() time.Duration
	IsConnected() bool
}
