// Package exchange defines the venue boundary: the capability set every
// adapter implements and the typed errors adapters must return.
package exchange

import (
	"context"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
)

// OrderRequest carries everything a placement verb can need. Verbs ignore
// fields that do not apply to them.
type OrderRequest struct {
	Symbol          string
	Side            domain.Side
	Price           float64 // limit price
	Quantity        float64
	StopPrice       float64 // stop-market trigger
	ActivationPrice float64 // trailing stop activation
	CallbackRate    float64 // trailing stop callback, percent
	ReduceOnly      bool
	ClientID        string
}

// AccountHandler consumes account snapshot frames.
type AccountHandler func(domain.AccountSnapshot)

// OrdersHandler consumes the venue's current open-order list.
type OrdersHandler func([]domain.Order)

// DepthHandler consumes order-book frames.
type DepthHandler func(domain.DepthSnapshot)

// TickerHandler consumes last-price frames.
type TickerHandler func(domain.TickerSnapshot)

// Adapter is the per-venue implementation of order verbs and push
// subscriptions. Placement verbs return the created order (at least its
// id and status) or a *Error classifying the failure.
type Adapter interface {
	Name() string

	PlaceLimit(ctx context.Context, req OrderRequest) (*domain.Order, error)
	PlaceMarket(ctx context.Context, req OrderRequest) (*domain.Order, error)
	PlaceStopMarket(ctx context.Context, req OrderRequest) (*domain.Order, error)
	PlaceTrailingStop(ctx context.Context, req OrderRequest) (*domain.Order, error)
	// PlaceMarketClose closes the whole position for req.Symbol at market.
	PlaceMarketClose(ctx context.Context, req OrderRequest) (*domain.Order, error)

	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelOrders(ctx context.Context, symbol string, orderIDs []string) error
	CancelAllOrders(ctx context.Context, symbol string) error

	// Watch* register a handler and return; the adapter pushes frames from
	// its own goroutines until ctx is canceled.
	WatchAccount(ctx context.Context, h AccountHandler) error
	WatchOrders(ctx context.Context, h OrdersHandler) error
	WatchDepth(ctx context.Context, symbol string, h DepthHandler) error
	WatchTicker(ctx context.Context, symbol string, h TickerHandler) error

	// GetPrecision reports venue quanta; adapters without the endpoint
	// return a zero Precision and the caller keeps configured defaults.
	GetPrecision(ctx context.Context, symbol string) (domain.Precision, error)

	SupportsTrailingStops() bool
}
