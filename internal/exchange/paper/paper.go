// Package paper implements a simulated venue with virtual balance and
// position tracking. It backs paper-trading mode and pre-production
// validation: resting orders fill when a pushed price crosses them, and
// every state change is emitted through the same push feeds a live
// adapter uses.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange"
)

// Venue is the simulated exchange. Safe for concurrent use; feed
// handlers are invoked synchronously from PushPrice.
type Venue struct {
	mu sync.Mutex

	symbol    string
	precision domain.Precision
	balance   float64
	position  domain.Position

	nextID int
	orders map[string]*domain.Order
	fills  []Fill

	lastPrice float64
	now       func() time.Time

	accountHandlers []exchange.AccountHandler
	orderHandlers   []exchange.OrdersHandler
	depthHandlers   []exchange.DepthHandler
	tickerHandlers  []exchange.TickerHandler
}

// Fill records one simulated execution.
type Fill struct {
	OrderID string
	Side    domain.Side
	Price   float64
	Qty     float64
	At      time.Time
}

// New creates a venue for one symbol with an initial quote balance.
func New(symbol string, balance float64, precision domain.Precision) *Venue {
	return &Venue{
		symbol:    symbol,
		precision: precision,
		balance:   balance,
		position:  domain.Position{Symbol: symbol},
		orders:    make(map[string]*domain.Order),
		now:       time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (v *Venue) SetClock(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}

func (v *Venue) Name() string { return "paper" }

func (v *Venue) SupportsTrailingStops() bool { return false }

func (v *Venue) GetPrecision(_ context.Context, _ string) (domain.Precision, error) {
	return v.precision, nil
}

func (v *Venue) newOrder(req exchange.OrderRequest, t domain.OrderType) *domain.Order {
	v.nextID++
	return &domain.Order{
		ID:         fmt.Sprintf("paper-%d", v.nextID),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       t,
		Price:      req.Price,
		StopPrice:  req.StopPrice,
		Quantity:   req.Quantity,
		ReduceOnly: req.ReduceOnly,
		Status:     domain.StatusNew,
		UpdateTime: v.now().UnixMilli(),
	}
}

// PlaceLimit rests a limit order. Crossing the current price fills it
// immediately, matching taker behavior on a real venue.
func (v *Venue) PlaceLimit(_ context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	v.mu.Lock()
	order := v.newOrder(req, domain.TypeLimit)
	v.orders[order.ID] = order
	if v.lastPrice > 0 && crossed(order, v.lastPrice) {
		v.fill(order, order.Price)
	}
	out := *order
	v.mu.Unlock()

	v.emitOrders()
	v.emitAccount()
	return &out, nil
}

// PlaceMarket fills immediately at the last pushed price.
func (v *Venue) PlaceMarket(_ context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	v.mu.Lock()
	if v.lastPrice <= 0 {
		v.mu.Unlock()
		return nil, exchange.NewError(exchange.KindOther, "paper", "", "no market price available")
	}
	order := v.newOrder(req, domain.TypeMarket)
	v.orders[order.ID] = order
	v.fill(order, v.lastPrice)
	out := *order
	v.mu.Unlock()

	v.emitOrders()
	v.emitAccount()
	return &out, nil
}

// PlaceStopMarket rests a stop; the trigger fires on a pushed price at
// or beyond the stop.
func (v *Venue) PlaceStopMarket(_ context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	v.mu.Lock()
	order := v.newOrder(req, domain.TypeStopMarket)
	v.orders[order.ID] = order
	out := *order
	v.mu.Unlock()

	v.emitOrders()
	return &out, nil
}

func (v *Venue) PlaceTrailingStop(_ context.Context, _ exchange.OrderRequest) (*domain.Order, error) {
	return nil, exchange.NewError(exchange.KindOther, "paper", "", "trailing stops not supported")
}

// PlaceMarketClose flattens the whole position at the last price.
func (v *Venue) PlaceMarketClose(_ context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	v.mu.Lock()
	if v.position.Qty == 0 {
		v.mu.Unlock()
		return nil, exchange.NewError(exchange.KindAlreadyGone, "paper", "", "no position to close")
	}
	qty := v.position.Qty
	side := domain.SideSell
	if qty < 0 {
		side = domain.SideBuy
		qty = -qty
	}
	order := v.newOrder(exchange.OrderRequest{Symbol: req.Symbol, Side: side, Quantity: qty, ReduceOnly: true}, domain.TypeMarket)
	v.orders[order.ID] = order
	v.fill(order, v.lastPrice)
	out := *order
	v.mu.Unlock()

	v.emitOrders()
	v.emitAccount()
	return &out, nil
}

func (v *Venue) CancelOrder(_ context.Context, _ string, orderID string) error {
	v.mu.Lock()
	order, ok := v.orders[orderID]
	if !ok || !order.IsOpen() {
		v.mu.Unlock()
		return exchange.NewError(exchange.KindAlreadyGone, "paper", "", "order not open: "+orderID)
	}
	order.Status = domain.StatusCanceled
	order.UpdateTime = v.now().UnixMilli()
	v.mu.Unlock()

	v.emitOrders()
	return nil
}

func (v *Venue) CancelOrders(ctx context.Context, symbol string, orderIDs []string) error {
	for _, id := range orderIDs {
		if err := v.CancelOrder(ctx, symbol, id); err != nil && !exchange.IsAlreadyGone(err) {
			return err
		}
	}
	return nil
}

func (v *Venue) CancelAllOrders(_ context.Context, _ string) error {
	v.mu.Lock()
	ts := v.now().UnixMilli()
	for _, order := range v.orders {
		if order.IsOpen() {
			order.Status = domain.StatusCanceled
			order.UpdateTime = ts
		}
	}
	v.mu.Unlock()

	v.emitOrders()
	return nil
}

func (v *Venue) WatchAccount(_ context.Context, h exchange.AccountHandler) error {
	v.mu.Lock()
	v.accountHandlers = append(v.accountHandlers, h)
	v.mu.Unlock()
	v.emitAccount()
	return nil
}

func (v *Venue) WatchOrders(_ context.Context, h exchange.OrdersHandler) error {
	v.mu.Lock()
	v.orderHandlers = append(v.orderHandlers, h)
	v.mu.Unlock()
	v.emitOrders()
	return nil
}

func (v *Venue) WatchDepth(_ context.Context, _ string, h exchange.DepthHandler) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.depthHandlers = append(v.depthHandlers, h)
	return nil
}

func (v *Venue) WatchTicker(_ context.Context, _ string, h exchange.TickerHandler) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tickerHandlers = append(v.tickerHandlers, h)
	return nil
}

// PushPrice advances the simulated market: crossed orders fill, stop
// triggers fire, then ticker, depth, orders and account frames are
// emitted in that order.
func (v *Venue) PushPrice(price float64) {
	v.mu.Lock()
	v.lastPrice = price
	for _, order := range v.orders {
		if !order.IsOpen() {
			continue
		}
		switch order.Type {
		case domain.TypeLimit:
			if crossed(order, price) {
				v.fill(order, order.Price)
			}
		case domain.TypeStopMarket:
			if stopTriggered(order, price) {
				v.fill(order, price)
			}
		}
	}
	tick := domain.TickerSnapshot{
		Symbol:    v.symbol,
		Last:      price,
		MarkPrice: price,
		UpdatedAt: v.now().UnixMilli(),
	}
	depth := domain.DepthSnapshot{
		Symbol:    v.symbol,
		Bids:      []domain.PriceLevel{{Price: price, Qty: 1}},
		Asks:      []domain.PriceLevel{{Price: price, Qty: 1}},
		UpdatedAt: v.now().UnixMilli(),
	}
	tickers := append([]exchange.TickerHandler(nil), v.tickerHandlers...)
	depths := append([]exchange.DepthHandler(nil), v.depthHandlers...)
	v.mu.Unlock()

	for _, h := range tickers {
		h(tick)
	}
	for _, h := range depths {
		h(depth)
	}
	v.emitOrders()
	v.emitAccount()
}

// crossed reports whether price reached a resting limit order.
func crossed(o *domain.Order, price float64) bool {
	if o.Side == domain.SideBuy {
		return price <= o.Price
	}
	return price >= o.Price
}

// stopTriggered reports whether price reached a stop trigger: stops sit
// on the losing side, so a SELL stop fires below and a BUY stop above.
func stopTriggered(o *domain.Order, price float64) bool {
	if o.Side == domain.SideSell {
		return price <= o.StopPrice
	}
	return price >= o.StopPrice
}

// fill executes an order at price and applies it to the position with
// entry-price averaging. Callers hold the mutex.
func (v *Venue) fill(o *domain.Order, price float64) {
	o.Status = domain.StatusFilled
	o.ExecutedQty = o.Quantity
	o.UpdateTime = v.now().UnixMilli()

	delta := o.Quantity
	if o.Side == domain.SideSell {
		delta = -delta
	}
	prev := v.position.Qty
	next := prev + delta
	switch {
	case prev == 0 || (prev > 0) == (next > 0) && abs(next) > abs(prev):
		// Opening or adding: average the entry price.
		total := abs(prev)*v.position.EntryPrice + abs(delta)*price
		v.position.EntryPrice = total / abs(next)
	case next == 0:
		// Flat: realize PnL into the balance.
		v.balance += prev * (price - v.position.EntryPrice)
		v.position.EntryPrice = 0
	case (prev > 0) != (next > 0):
		// Flipped through zero: realize the closed leg, reopen at price.
		v.balance += prev * (price - v.position.EntryPrice)
		v.position.EntryPrice = price
	default:
		// Reducing: realize the closed portion.
		closed := prev - next
		v.balance += closed * (price - v.position.EntryPrice)
	}
	v.position.Qty = next

	v.fills = append(v.fills, Fill{OrderID: o.ID, Side: o.Side, Price: price, Qty: o.Quantity, At: v.now()})
	slog.Debug("PAPER_FILL",
		slog.String("id", o.ID),
		slog.String("side", string(o.Side)),
		slog.Float64("price", price),
		slog.Float64("qty", o.Quantity))
}

func (v *Venue) emitOrders() {
	v.mu.Lock()
	orders := make([]domain.Order, 0, len(v.orders))
	for _, o := range v.orders {
		orders = append(orders, *o)
	}
	handlers := append([]exchange.OrdersHandler(nil), v.orderHandlers...)
	v.mu.Unlock()

	for _, h := range handlers {
		h(orders)
	}
}

func (v *Venue) emitAccount() {
	v.mu.Lock()
	pos := v.position
	if v.lastPrice > 0 && pos.Qty != 0 {
		pos.UnrealizedPnL = pos.Qty * (v.lastPrice - pos.EntryPrice)
	}
	snap := domain.AccountSnapshot{
		WalletBalance: v.balance,
		Positions:     []domain.Position{pos},
	}
	handlers := append([]exchange.AccountHandler(nil), v.accountHandlers...)
	v.mu.Unlock()

	for _, h := range handlers {
		h(snap)
	}
}

// Fills returns a copy of every simulated execution.
func (v *Venue) Fills() []Fill {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Fill(nil), v.fills...)
}

// Balance returns the current quote balance including realized PnL.
func (v *Venue) Balance() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
