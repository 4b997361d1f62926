// Package aster implements the exchange adapter for the Aster perpetual
// futures venue. REST carries the order verbs; market data and the user
// stream arrive over websocket workers with automatic reconnection.
package aster

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/infra"
)

const listenKeyKeepAlive = 30 * time.Minute

// Adapter is the live venue implementation of exchange.Adapter.
type Adapter struct {
	client *Client
	wsURL  string

	mu              sync.Mutex
	orders          map[string]domain.Order
	positions       map[string]domain.Position
	walletBalance   float64
	accountHandlers []exchange.AccountHandler
	orderHandlers   []exchange.OrdersHandler

	userStarted   bool
	marketWorkers map[string]*infra.WSWorker
	marketFanout  map[string]*marketFan
}

// marketFan fans one symbol's market frames out to every registered
// handler. Handlers are appended before the worker starts or under the
// adapter mutex, so the slices are effectively read-only afterwards.
type marketFan struct {
	ticks  []exchange.TickerHandler
	depths []exchange.DepthHandler
}

func (f *marketFan) emitTick(t domain.TickerSnapshot) {
	for _, h := range f.ticks {
		h(t)
	}
}

func (f *marketFan) emitDepth(d domain.DepthSnapshot) {
	for _, h := range f.depths {
		h(d)
	}
}

// New creates an adapter from the aster section of the configuration.
func New(cfg *infra.Config) *Adapter {
	wsURL := cfg.API.Aster.WSURL
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &Adapter{
		client:        NewClient(cfg.API.Aster.RestURL, cfg.API.Aster.APIKey, cfg.API.Aster.APISecret),
		wsURL:         wsURL,
		orders:        make(map[string]domain.Order),
		positions:     make(map[string]domain.Position),
		marketWorkers: make(map[string]*infra.WSWorker),
		marketFanout:  make(map[string]*marketFan),
	}
}

func (a *Adapter) Name() string { return "aster" }

func (a *Adapter) SupportsTrailingStops() bool { return true }

// Close wipes credentials and stops the websocket workers.
func (a *Adapter) Close() {
	a.client.Close()
	a.mu.Lock()
	workers := make([]*infra.WSWorker, 0, len(a.marketWorkers))
	for _, w := range a.marketWorkers {
		workers = append(workers, w)
	}
	a.mu.Unlock()
	for _, w := range workers {
		w.Stop()
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func clientOrderID(req exchange.OrderRequest) string {
	if req.ClientID != "" {
		return req.ClientID
	}
	return "grid-" + uuid.NewString()
}

func baseParams(req exchange.OrderRequest) url.Values {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("newClientOrderId", clientOrderID(req))
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	return params
}

func (a *Adapter) submit(ctx context.Context, params url.Values) (*domain.Order, error) {
	wire, err := a.client.PlaceOrder(ctx, params)
	if err != nil {
		return nil, err
	}
	order := wire.toDomain()
	return &order, nil
}

func (a *Adapter) PlaceLimit(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	params := baseParams(req)
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("price", formatFloat(req.Price))
	params.Set("quantity", formatFloat(req.Quantity))
	return a.submit(ctx, params)
}

func (a *Adapter) PlaceMarket(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	params := baseParams(req)
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(req.Quantity))
	return a.submit(ctx, params)
}

func (a *Adapter) PlaceStopMarket(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	params := baseParams(req)
	params.Set("type", "STOP_MARKET")
	params.Set("stopPrice", formatFloat(req.StopPrice))
	params.Set("quantity", formatFloat(req.Quantity))
	return a.submit(ctx, params)
}

func (a *Adapter) PlaceTrailingStop(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	params := baseParams(req)
	params.Set("type", "TRAILING_STOP_MARKET")
	params.Set("activationPrice", formatFloat(req.ActivationPrice))
	params.Set("callbackRate", formatFloat(req.CallbackRate))
	params.Set("quantity", formatFloat(req.Quantity))
	return a.submit(ctx, params)
}

// PlaceMarketClose flattens with a reduce-only market order; the venue
// caps the quantity at the open position.
func (a *Adapter) PlaceMarketClose(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	params := baseParams(req)
	params.Set("type", "MARKET")
	params.Set("reduceOnly", "true")
	params.Set("quantity", formatFloat(req.Quantity))
	return a.submit(ctx, params)
}

func (a *Adapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return a.client.CancelOrder(ctx, symbol, orderID)
}

func (a *Adapter) CancelOrders(ctx context.Context, symbol string, orderIDs []string) error {
	for _, id := range orderIDs {
		if err := a.client.CancelOrder(ctx, symbol, id); err != nil && !exchange.IsAlreadyGone(err) {
			return err
		}
	}
	return nil
}

func (a *Adapter) CancelAllOrders(ctx context.Context, symbol string) error {
	return a.client.CancelAllOrders(ctx, symbol)
}

// GetPrecision extracts the symbol's price tick and quantity step from
// exchange metadata.
func (a *Adapter) GetPrecision(ctx context.Context, symbol string) (domain.Precision, error) {
	info, err := a.client.ExchangeInfo(ctx)
	if err != nil {
		return domain.Precision{}, err
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		var prec domain.Precision
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				prec.PriceTick = parseFloat(f.TickSize)
			case "LOT_SIZE":
				prec.QtyStep = parseFloat(f.StepSize)
			}
		}
		return prec, nil
	}
	return domain.Precision{}, exchange.NewError(exchange.KindOther, "aster", "", "unknown symbol "+symbol)
}

func (a *Adapter) WatchAccount(ctx context.Context, h exchange.AccountHandler) error {
	a.mu.Lock()
	a.accountHandlers = append(a.accountHandlers, h)
	a.mu.Unlock()
	return a.ensureUserStream(ctx)
}

func (a *Adapter) WatchOrders(ctx context.Context, h exchange.OrdersHandler) error {
	a.mu.Lock()
	a.orderHandlers = append(a.orderHandlers, h)
	a.mu.Unlock()
	return a.ensureUserStream(ctx)
}

func (a *Adapter) WatchDepth(ctx context.Context, symbol string, h exchange.DepthHandler) error {
	a.ensureMarketStream(ctx, symbol, nil, h)
	return nil
}

func (a *Adapter) WatchTicker(ctx context.Context, symbol string, h exchange.TickerHandler) error {
	a.ensureMarketStream(ctx, symbol, h, nil)
	return nil
}

// ensureMarketStream starts one combined-stream worker per symbol and
// fans frames out to the registered handlers.
func (a *Adapter) ensureMarketStream(ctx context.Context, symbol string, tickH exchange.TickerHandler, depthH exchange.DepthHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()

	handler, exists := a.marketFanout[symbol]
	if !exists {
		handler = &marketFan{}
		a.marketFanout[symbol] = handler
	}
	if tickH != nil {
		handler.ticks = append(handler.ticks, tickH)
	}
	if depthH != nil {
		handler.depths = append(handler.depths, depthH)
	}
	if exists {
		return
	}

	mh := newMarketHandler(a.wsURL, symbol, handler.emitTick, handler.emitDepth)
	worker := infra.NewWSWorker(mh)
	a.marketWorkers[symbol] = worker
	worker.Start(ctx)
}

// ensureUserStream opens the user-data stream once, seeds state from
// REST and starts the keepalive loop.
func (a *Adapter) ensureUserStream(ctx context.Context) error {
	a.mu.Lock()
	if a.userStarted {
		a.mu.Unlock()
		a.emitAccount()
		a.emitOrders()
		return nil
	}
	a.userStarted = true
	a.mu.Unlock()

	listenKey, err := a.client.NewListenKey(ctx)
	if err != nil {
		a.mu.Lock()
		a.userStarted = false
		a.mu.Unlock()
		return err
	}

	a.seedFromREST(ctx)

	uh := newUserHandler(a.wsURL, listenKey, a.handleOrderUpdate, a.handleAccountUpdate)
	worker := infra.NewWSWorker(uh)
	worker.Start(ctx)
	go a.keepAliveLoop(ctx)
	return nil
}

// seedFromREST loads the account and open orders so the engine sees a
// full picture before the first push frame.
func (a *Adapter) seedFromREST(ctx context.Context) {
	if acct, err := a.client.Account(ctx); err == nil {
		snap := acct.toDomain()
		a.mu.Lock()
		a.walletBalance = snap.WalletBalance
		for _, p := range snap.Positions {
			a.positions[p.Symbol] = p
		}
		a.mu.Unlock()
	} else {
		slog.Warn("ASTER_ACCOUNT_SEED_FAILED", slog.Any("error", err))
	}

	a.emitAccount()
	a.emitOrders()
}

// SeedOpenOrders fetches the current resting orders for symbol and
// pushes them to order handlers. Called by the application before the
// engine starts so the startup barrier sees a snapshot.
func (a *Adapter) SeedOpenOrders(ctx context.Context, symbol string) error {
	wires, err := a.client.OpenOrders(ctx, symbol)
	if err != nil {
		return err
	}
	a.mu.Lock()
	for _, w := range wires {
		o := w.toDomain()
		a.orders[o.ID] = o
	}
	a.mu.Unlock()
	a.emitOrders()
	return nil
}

func (a *Adapter) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(listenKeyKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.client.KeepAliveListenKey(ctx); err != nil {
				slog.Warn("ASTER_LISTENKEY_KEEPALIVE_FAILED", slog.Any("error", err))
			}
		}
	}
}

// handleOrderUpdate applies one user-stream order event and emits the
// updated order list. Terminal orders appear in exactly one frame so
// consumers can classify the disappearance, then drop from the map.
func (a *Adapter) handleOrderUpdate(order domain.Order) {
	a.mu.Lock()
	a.orders[order.ID] = order
	a.mu.Unlock()

	a.emitOrders()

	if !order.IsOpen() {
		a.mu.Lock()
		delete(a.orders, order.ID)
		a.mu.Unlock()
	}
}

func (a *Adapter) handleAccountUpdate(update wireAccountUpdate) {
	a.mu.Lock()
	for _, b := range update.Account.Balances {
		if b.Asset == "USDT" {
			a.walletBalance = parseFloat(b.WalletBalance)
		}
	}
	for _, p := range update.Account.Positions {
		a.positions[p.Symbol] = domain.Position{
			Symbol:        p.Symbol,
			Qty:           parseFloat(p.PositionAmt),
			EntryPrice:    parseFloat(p.EntryPrice),
			UnrealizedPnL: parseFloat(p.UnrealizedProfit),
		}
	}
	a.mu.Unlock()

	a.emitAccount()
}

func (a *Adapter) emitOrders() {
	a.mu.Lock()
	orders := make([]domain.Order, 0, len(a.orders))
	for _, o := range a.orders {
		orders = append(orders, o)
	}
	handlers := append([]exchange.OrdersHandler(nil), a.orderHandlers...)
	a.mu.Unlock()

	for _, h := range handlers {
		h(orders)
	}
}

func (a *Adapter) emitAccount() {
	a.mu.Lock()
	snap := domain.AccountSnapshot{WalletBalance: a.walletBalance}
	for _, p := range a.positions {
		snap.Positions = append(snap.Positions, p)
	}
	handlers := append([]exchange.AccountHandler(nil), a.accountHandlers...)
	a.mu.Unlock()

	for _, h := range handlers {
		h(snap)
	}
}
