// Package coordinator provides idempotent, guarded, rate-aware order
// placement and cancellation primitives shared by every strategy engine.
// All mutating venue calls go through here; the engine never talks to the
// adapter's order verbs directly.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/metrics"
	"github.com/yuggg-cyber/ritmex-bot-sub001/pkg/px"
)

// DefaultLockTTL bounds how long an order type stays locked when nothing
// confirms or refutes the in-flight request.
const DefaultLockTTL = 3 * time.Second

// LogFunc is the only observability hook the coordinator requires.
type LogFunc func(category, message string)

// State holds the per-engine single-flight bookkeeping: one lock deadline
// and at most one pending order id per order type. It is owned by exactly
// one engine instance and must only be touched from that engine's loop.
type State struct {
	now       func() time.Time
	deadlines map[domain.OrderType]time.Time
	pending   map[domain.OrderType]string
}

// NewState creates empty coordinator state.
func NewState() *State {
	return &State{
		now:       time.Now,
		deadlines: make(map[domain.OrderType]time.Time),
		pending:   make(map[domain.OrderType]string),
	}
}

// SetClock replaces the time source, for tests.
func (s *State) SetClock(now func() time.Time) { s.now = now }

// Locked reports whether a mutating request for t is still in flight.
// A deadline in the past counts as free; expiry also drops the pending id
// so a wedged venue call cannot deadlock the type forever.
func (s *State) Locked(t domain.OrderType) bool {
	dl, ok := s.deadlines[t]
	if !ok {
		return false
	}
	if s.now().Before(dl) {
		return true
	}
	delete(s.deadlines, t)
	delete(s.pending, t)
	return false
}

// PendingID returns the order id being awaited for t, if any.
func (s *State) PendingID(t domain.OrderType) (string, bool) {
	if !s.Locked(t) {
		return "", false
	}
	id, ok := s.pending[t]
	return id, ok && id != ""
}

// Resolve clears the lock for t once the venue has confirmed or refuted
// the awaited order. A non-empty id only resolves when it matches the
// pending id, so a stale feed frame cannot release a newer lock.
func (s *State) Resolve(t domain.OrderType, id string) {
	if id != "" {
		if pending, ok := s.pending[t]; ok && pending != "" && pending != id {
			return
		}
	}
	delete(s.deadlines, t)
	delete(s.pending, t)
}

func (s *State) acquire(t domain.OrderType, ttl time.Duration) {
	s.deadlines[t] = s.now().Add(ttl)
	delete(s.pending, t)
}

func (s *State) markPending(t domain.OrderType, id string) {
	s.pending[t] = id
}

func (s *State) release(t domain.OrderType) {
	delete(s.deadlines, t)
	delete(s.pending, t)
}

// Guard is the mark-price deviation check applied before placement.
// Price defaults to the request's order price when zero. A nil guard or a
// zero MaxPct always passes.
type Guard struct {
	MarkPrice float64
	Price     float64
	MaxPct    float64
}

// allows reports whether an order at price on side stays within the
// adverse-side deviation bound.
func (g *Guard) allows(side domain.Side, price float64) bool {
	if g == nil || g.MaxPct <= 0 || g.MarkPrice <= 0 {
		return true
	}
	p := g.Price
	if p == 0 {
		p = price
	}
	if p <= 0 {
		return true
	}
	if side == domain.SideBuy {
		return p <= g.MarkPrice*(1+g.MaxPct)
	}
	return p >= g.MarkPrice*(1-g.MaxPct)
}

// PlaceOpts carries the per-call context for a placement.
type PlaceOpts struct {
	Guard *Guard
	// OpenOrders is the caller's latest view of resting orders, used by
	// the dedup pre-pass. Nil skips dedup implicitly.
	OpenOrders []domain.Order
	// SkipDedup disables the pre-pass even when OpenOrders is set.
	SkipDedup bool
}

// Coordinator executes guarded single-flight order verbs against one
// adapter. It mutates only its State; desired-order bookkeeping stays
// with the calling engine.
type Coordinator struct {
	ex      exchange.Adapter
	st      *State
	log     LogFunc
	mets    *metrics.Metrics
	prec    domain.Precision
	lockTTL time.Duration
}

// New creates a coordinator bound to one adapter and one engine's state.
func New(ex exchange.Adapter, st *State, log LogFunc) *Coordinator {
	if log == nil {
		log = func(string, string) {}
	}
	return &Coordinator{ex: ex, st: st, log: log, lockTTL: DefaultLockTTL}
}

// SetPrecision installs venue quanta for rounding. Zero fields disable
// the corresponding rounding.
func (c *Coordinator) SetPrecision(p domain.Precision) { c.prec = p }

// SetMetrics installs the collectors; nil is valid and records nothing.
func (c *Coordinator) SetMetrics(m *metrics.Metrics) { c.mets = m }

// State exposes the single-flight state for the owning engine.
func (c *Coordinator) State() *State { return c.st }

// roundQty floors to the venue step, falling back to the raw quantity when
// flooring collapses to zero. The caller's hard reject is a zero result.
func (c *Coordinator) roundQty(qty float64) float64 {
	r := px.FloorToStep(qty, c.prec.QtyStep)
	if r <= 0 {
		return qty
	}
	return r
}

// PlaceLimit places a resting limit order under the LIMIT lock.
func (c *Coordinator) PlaceLimit(ctx context.Context, req exchange.OrderRequest, opts PlaceOpts) (*domain.Order, error) {
	req.Price = px.FloorToTick(req.Price, c.prec.PriceTick)
	return c.place(ctx, domain.TypeLimit, req, opts, c.ex.PlaceLimit)
}

// PlaceMarket places a market order under the MARKET lock.
func (c *Coordinator) PlaceMarket(ctx context.Context, req exchange.OrderRequest, opts PlaceOpts) (*domain.Order, error) {
	return c.place(ctx, domain.TypeMarket, req, opts, c.ex.PlaceMarket)
}

// PlaceStopMarket places a stop-market order under the STOP_MARKET lock.
func (c *Coordinator) PlaceStopMarket(ctx context.Context, req exchange.OrderRequest, opts PlaceOpts) (*domain.Order, error) {
	req.StopPrice = px.FloorToTick(req.StopPrice, c.prec.PriceTick)
	if req.StopPrice <= 0 {
		c.log("order", fmt.Sprintf("skip STOP_MARKET %s: stop price rounds to zero", req.Side))
		return nil, nil
	}
	return c.place(ctx, domain.TypeStopMarket, req, opts, c.ex.PlaceStopMarket)
}

// PlaceTrailingStop places a trailing stop under its own lock.
func (c *Coordinator) PlaceTrailingStop(ctx context.Context, req exchange.OrderRequest, opts PlaceOpts) (*domain.Order, error) {
	req.ActivationPrice = px.FloorToTick(req.ActivationPrice, c.prec.PriceTick)
	return c.place(ctx, domain.TypeTrailingStopMarket, req, opts, c.ex.PlaceTrailingStop)
}

// PlaceMarketClose closes the whole position at market. Quantity rounding
// and dedup do not apply; the venue computes the close size.
func (c *Coordinator) PlaceMarketClose(ctx context.Context, req exchange.OrderRequest, opts PlaceOpts) (*domain.Order, error) {
	if c.st.Locked(domain.TypeMarket) {
		return nil, nil
	}
	if !opts.Guard.allows(req.Side, req.Price) {
		c.logGuardReject(domain.TypeMarket, req, opts.Guard)
		return nil, nil
	}
	c.st.acquire(domain.TypeMarket, c.lockTTL)
	order, err := c.ex.PlaceMarketClose(ctx, req)
	return c.finish(domain.TypeMarket, req, order, err)
}

type placeFunc func(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error)

// place runs the shared pipeline: guard, rounding, dedup, single-flight,
// execution, error classification.
func (c *Coordinator) place(ctx context.Context, t domain.OrderType, req exchange.OrderRequest, opts PlaceOpts, verb placeFunc) (*domain.Order, error) {
	if !opts.Guard.allows(req.Side, req.Price) {
		c.logGuardReject(t, req, opts.Guard)
		return nil, nil
	}

	req.Quantity = c.roundQty(req.Quantity)
	if req.Quantity <= 0 {
		c.log("order", fmt.Sprintf("skip %s %s %s: quantity rounds to zero", t, req.Side, px.Format(req.Price, c.prec.PriceTick)))
		return nil, nil
	}

	if !opts.SkipDedup && len(opts.OpenOrders) > 0 {
		if err := c.dedup(ctx, t, req.Symbol, req.Side, opts.OpenOrders); err != nil {
			return nil, err
		}
	}

	if c.st.Locked(t) {
		return nil, nil
	}
	c.st.acquire(t, c.lockTTL)

	order, err := verb(ctx, req)
	return c.finish(t, req, order, err)
}

// finish applies the shared exit paths: swallow already-gone, rethrow the
// rest, record the pending id on success.
func (c *Coordinator) finish(t domain.OrderType, req exchange.OrderRequest, order *domain.Order, err error) (*domain.Order, error) {
	if err != nil {
		c.st.release(t)
		if exchange.IsAlreadyGone(err) {
			c.mets.IncAlreadyGone()
			c.log("order", fmt.Sprintf("%s %s already gone, treated as no-op", t, req.Side))
			return nil, nil
		}
		return nil, err
	}
	if order != nil && order.ID != "" {
		c.st.markPending(t, order.ID)
	}
	c.log("order", fmt.Sprintf("placed %s %s %s qty=%s id=%s",
		t, req.Side,
		px.Format(req.Price, c.prec.PriceTick),
		px.Format(req.Quantity, c.prec.QtyStep),
		orderID(order)))
	slog.Debug("ORDER_PLACED",
		slog.String("type", string(t)),
		slog.String("side", string(req.Side)),
		slog.String("id", orderID(order)))
	return order, nil
}

// dedup cancels all but the most-recently-updated resting order of the
// same (effective type, side) before a new placement. Stop-like limit
// orders count as STOP_MARKET, matching the venue echo behavior.
func (c *Coordinator) dedup(ctx context.Context, t domain.OrderType, symbol string, side domain.Side, open []domain.Order) error {
	var keep *domain.Order
	var dupes []string
	for i := range open {
		o := &open[i]
		if o.Symbol != symbol || o.Side != side || o.EffectiveType() != t || !o.IsOpen() {
			continue
		}
		if keep == nil {
			keep = o
			continue
		}
		if o.UpdateTime > keep.UpdateTime {
			dupes = append(dupes, keep.ID)
			keep = o
		} else {
			dupes = append(dupes, o.ID)
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	c.log("order", fmt.Sprintf("dedup %s %s: canceling %d stale order(s)", t, side, len(dupes)))
	c.mets.IncCanceled()
	if err := c.ex.CancelOrders(ctx, symbol, dupes); err != nil && !exchange.IsAlreadyGone(err) {
		return err
	}
	return nil
}

// CancelOrder cancels one order, swallowing the already-gone class.
func (c *Coordinator) CancelOrder(ctx context.Context, symbol, orderID string) error {
	c.mets.IncCanceled()
	err := c.ex.CancelOrder(ctx, symbol, orderID)
	if err != nil && exchange.IsAlreadyGone(err) {
		c.mets.IncAlreadyGone()
		c.log("order", fmt.Sprintf("cancel %s: already gone", orderID))
		return nil
	}
	return err
}

// CancelOrders cancels a batch, swallowing the already-gone class.
func (c *Coordinator) CancelOrders(ctx context.Context, symbol string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c.mets.IncCanceled()
	err := c.ex.CancelOrders(ctx, symbol, ids)
	if err != nil && exchange.IsAlreadyGone(err) {
		c.mets.IncAlreadyGone()
		return nil
	}
	return err
}

// CancelAll cancels every resting order for symbol.
func (c *Coordinator) CancelAll(ctx context.Context, symbol string) error {
	c.mets.IncCanceled()
	err := c.ex.CancelAllOrders(ctx, symbol)
	if err != nil && exchange.IsAlreadyGone(err) {
		c.mets.IncAlreadyGone()
		return nil
	}
	return err
}

func (c *Coordinator) logGuardReject(t domain.OrderType, req exchange.OrderRequest, g *Guard) {
	c.mets.IncGuardReject()
	c.log("guard", fmt.Sprintf("reject %s %s price=%s mark=%s maxPct=%.4f",
		t, req.Side,
		px.Format(req.Price, c.prec.PriceTick),
		px.Format(g.MarkPrice, c.prec.PriceTick),
		g.MaxPct))
}

func orderID(o *domain.Order) string {
	if o == nil {
		return ""
	}
	return o.ID
}
