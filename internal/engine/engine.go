// Package engine implements the grid reconciliation engine: the
// desired-vs-observed state machine that decides, every tick, which
// orders must exist on the venue. All mutating calls go through the
// order coordinator; the engine only owns grid geometry, per-level
// intent bookkeeping and the tick loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/coordinator"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/metrics"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/tradelog"
)

// State is the engine lifecycle. Stopped is terminal: it only results
// from an invalid configuration.
type State int

const (
	StateStopped State = iota
	StateReady
	StateRunning
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

// intentRecord is the engine's belief about a live order it placed.
type intentRecord struct {
	Side   domain.Side
	Price  string
	Level  int
	Intent domain.Intent
	// SourceLevel is the entry rung an EXIT closes; -1 for entries.
	SourceLevel int
	// placedVersion is the order-snapshot version at placement time; the
	// order only counts as vanished once the snapshot has advanced past it.
	placedVersion uint64
}

// suppressKey identifies one placement attempt for the re-attempt block.
type suppressKey struct {
	Side   domain.Side
	Price  string
	Intent domain.Intent
}

// deferredMark captures the account state at the moment an order
// disappeared ambiguously. The next account version bump resolves it.
type deferredMark struct {
	rec     intentRecord
	version uint64
	absPos  float64
	at      time.Time
}

// events drained by the engine loop
type (
	accountEvent struct{ snap domain.AccountSnapshot }
	ordersEvent  struct{ orders []domain.Order }
	depthEvent   struct{ depth domain.DepthSnapshot }
	tickerEvent  struct{ tick domain.TickerSnapshot }
	tickEvent    struct{}
)

// Engine runs one grid strategy instance against one adapter. All state
// is owned by the single loop goroutine; the mutex guards only the
// published snapshot read from outside.
type Engine struct {
	cfg   Config
	ex    exchange.Adapter
	coord *coordinator.Coordinator

	trades *tradelog.Log
	mets   *metrics.Metrics
	now    func() time.Time

	inbox  chan any
	cancel context.CancelFunc

	state      State
	stopReason string

	levels   []Level
	anchored bool

	account        domain.AccountSnapshot
	accountVersion uint64
	position       domain.Position
	openOrders     []domain.Order
	ordersSeen     bool
	ordersVersion  uint64
	depth          *domain.DepthSnapshot
	ticker         *domain.TickerSnapshot

	intents      map[string]intentRecord
	lastKnown    map[string]domain.Order
	prevOpen     map[string]domain.Order
	pendingLong  map[int]struct{}
	pendingShort map[int]struct{}
	suppress     map[suppressKey]time.Time
	deferred     map[int]deferredMark
	closeKeys    map[int]string

	startupDone      bool
	lastPlaceVersion uint64
	lastPlaceAt      time.Time
	lastDesired      []DesiredOrder

	mu       sync.RWMutex
	snapshot Snapshot
	subs     map[int]func(Snapshot)
	nextSub  int
}

// Option customizes engine construction.
type Option func(*Engine)

// WithTradeLog installs a trade log; without one a memory-only log
// capped at cfg.MaxLogEntries is created.
func WithTradeLog(l *tradelog.Log) Option { return func(e *Engine) { e.trades = l } }

// WithMetrics installs prometheus collectors. Nil is valid.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.mets = m } }

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New builds an engine. An invalid configuration yields an engine
// permanently in STOPPED with the reason recorded; Start is then a no-op.
// The public surface never panics or returns errors.
func New(cfg Config, ex exchange.Adapter, opts ...Option) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		cfg:          cfg,
		ex:           ex,
		now:          time.Now,
		inbox:        make(chan any, 256),
		intents:      make(map[string]intentRecord),
		lastKnown:    make(map[string]domain.Order),
		prevOpen:     make(map[string]domain.Order),
		pendingLong:  make(map[int]struct{}),
		pendingShort: make(map[int]struct{}),
		suppress:     make(map[suppressKey]time.Time),
		deferred:     make(map[int]deferredMark),
		closeKeys:    make(map[int]string),
		subs:         make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.trades == nil {
		e.trades = tradelog.New(cfg.MaxLogEntries, nil)
	}

	st := coordinator.NewState()
	st.SetClock(func() time.Time { return e.now() })
	e.coord = coordinator.New(ex, st, e.logSink)
	e.coord.SetPrecision(domain.Precision{PriceTick: cfg.PriceTick, QtyStep: cfg.QtyStep})
	e.coord.SetMetrics(e.mets)

	if err := cfg.Validate(); err != nil {
		e.state = StateStopped
		e.stopReason = err.Error()
		slog.Error("GRID_CONFIG_REJECTED", slog.String("reason", e.stopReason))
		e.trades.Append("engine", "config rejected: "+e.stopReason)
		return e
	}

	levels, err := computeLevels(cfg.LowerPrice, cfg.UpperPrice, cfg.GridLevels)
	if err != nil {
		e.state = StateStopped
		e.stopReason = err.Error()
		slog.Error("GRID_LEVELS_REJECTED", slog.String("reason", e.stopReason))
		return e
	}
	e.levels = levels
	e.state = StateReady
	return e
}

// logSink is the engine's (category, message) observability hook: it
// writes through the trade log and mirrors to slog.
func (e *Engine) logSink(category, message string) {
	e.trades.Append(category, message)
	slog.Info("GRID_LOG", slog.String("category", category), slog.String("message", message))
}

// Coordinator exposes the engine's coordinator, mainly for tests.
func (e *Engine) Coordinator() *coordinator.Coordinator { return e.coord }

// Start fetches venue precision, subscribes the push feeds and launches
// the loop goroutine. Calling Start on a STOPPED engine is a logged no-op.
func (e *Engine) Start(ctx context.Context) {
	if e.state == StateStopped {
		slog.Warn("GRID_START_IGNORED", slog.String("reason", e.stopReason))
		return
	}
	if e.state != StateReady {
		return
	}

	ctx, e.cancel = context.WithCancel(ctx)

	if prec, err := e.ex.GetPrecision(ctx, e.cfg.Symbol); err == nil {
		e.applyPrecision(prec)
	} else {
		slog.Warn("PRECISION_FETCH_FAILED", slog.Any("error", err))
	}

	push := func(ev any) {
		select {
		case e.inbox <- ev:
		case <-ctx.Done():
		}
	}
	watch := func(name string, err error) {
		if err != nil {
			slog.Error("FEED_SUBSCRIBE_FAILED", slog.String("feed", name), slog.Any("error", err))
			e.trades.Append("error", name+" subscription failed: "+err.Error())
		}
	}
	watch("account", e.ex.WatchAccount(ctx, func(s domain.AccountSnapshot) { push(accountEvent{s}) }))
	watch("orders", e.ex.WatchOrders(ctx, func(o []domain.Order) { push(ordersEvent{o}) }))
	watch("depth", e.ex.WatchDepth(ctx, e.cfg.Symbol, func(d domain.DepthSnapshot) { push(depthEvent{d}) }))
	watch("ticker", e.ex.WatchTicker(ctx, e.cfg.Symbol, func(t domain.TickerSnapshot) { push(tickerEvent{t}) }))

	e.state = StateRunning
	e.trades.Append("engine", "grid engine started")
	go e.run(ctx)
}

// Stop cancels the loop. Resting orders stay on the venue; callers that
// want a clean book cancel through the adapter before shutdown.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// run is the single-threaded loop: push-feed frames and ticks share one
// queue, so handlers never interleave.
func (e *Engine) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("GRID_PANIC", slog.Any("panic", r))
			e.trades.Append("error", fmt.Sprintf("engine panic: %v", r))
		}
	}()

	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.trades.Append("engine", "grid engine stopped")
			return
		case <-ticker.C:
			e.processEvent(ctx, tickEvent{})
		case ev := <-e.inbox:
			e.processEvent(ctx, ev)
		}
	}
}

// processEvent dispatches one queue item. Tick failures are logged and
// swallowed: no error is fatal to the loop.
func (e *Engine) processEvent(ctx context.Context, ev any) {
	switch v := ev.(type) {
	case accountEvent:
		e.handleAccount(v.snap)
	case ordersEvent:
		e.handleOrders(v.orders)
	case depthEvent:
		d := v.depth
		e.depth = &d
	case tickerEvent:
		t := v.tick
		e.ticker = &t
	case tickEvent:
		if err := e.handleTick(ctx); err != nil {
			e.mets.IncTickError()
			e.logSink("error", "tick failed: "+err.Error())
		}
	default:
		slog.Warn("GRID_UNKNOWN_EVENT", slog.Any("event", ev))
	}
	e.publish()
}

// handleAccount installs a new account frame. Versioning is engine-owned
// and monotonic regardless of what the adapter reports.
func (e *Engine) handleAccount(snap domain.AccountSnapshot) {
	e.accountVersion++
	snap.Version = e.accountVersion
	e.account = snap
	e.position = snap.PositionFor(e.cfg.Symbol)
	e.mets.SetPosition(e.position.Qty)
}

// handleOrders installs the venue's current open-order list, confirms
// coordinator pending ids and clears suppressions observed active.
func (e *Engine) handleOrders(orders []domain.Order) {
	filtered := orders[:0:0]
	for _, o := range orders {
		if o.Symbol == e.cfg.Symbol {
			filtered = append(filtered, o)
		}
	}
	e.openOrders = filtered
	e.ordersVersion++
	e.ordersSeen = true

	for _, o := range filtered {
		if _, mine := e.intents[o.ID]; mine {
			e.lastKnown[o.ID] = o
		}
		t := o.EffectiveType()
		if id, ok := e.coord.State().PendingID(t); ok && id == o.ID {
			e.coord.State().Resolve(t, o.ID)
		}
		// Fast path: the attempted key turned out to be genuinely active.
		if rec, ok := e.intents[o.ID]; ok && o.IsOpen() {
			delete(e.suppress, suppressKey{Side: rec.Side, Price: rec.Price, Intent: rec.Intent})
		}
	}
	e.mets.SetActiveOrders(len(filtered))
}

// applyPrecision overrides configured quanta with venue-reported ones and
// rebuilds the grid wholesale, dropping the anchor.
func (e *Engine) applyPrecision(p domain.Precision) {
	changed := false
	if p.PriceTick > 0 && p.PriceTick != e.cfg.PriceTick {
		e.cfg.PriceTick = p.PriceTick
		changed = true
	}
	if p.QtyStep > 0 && p.QtyStep != e.cfg.QtyStep {
		e.cfg.QtyStep = p.QtyStep
		changed = true
	}
	if !changed {
		return
	}
	e.coord.SetPrecision(domain.Precision{PriceTick: e.cfg.PriceTick, QtyStep: e.cfg.QtyStep})
	if levels, err := computeLevels(e.cfg.LowerPrice, e.cfg.UpperPrice, e.cfg.GridLevels); err == nil {
		e.levels = levels
		e.anchored = false
	}
	slog.Info("GRID_PRECISION_APPLIED",
		slog.Float64("priceTick", e.cfg.PriceTick),
		slog.Float64("qtyStep", e.cfg.QtyStep))
}

// refPrice is the live reference price: last trade when available,
// otherwise the order-book midpoint.
func (e *Engine) refPrice() float64 {
	if e.ticker != nil && e.ticker.Last > 0 {
		return e.ticker.Last
	}
	if e.depth != nil {
		return e.depth.MidPrice()
	}
	return 0
}

// markPrice prefers the venue mark price for the deviation guard.
func (e *Engine) markPrice() float64 {
	if e.ticker != nil && e.ticker.MarkPrice > 0 {
		return e.ticker.MarkPrice
	}
	return e.refPrice()
}

// maybeAnchor performs the one-shot side assignment. The anchor is the
// live reference price unless an existing position's entry cost would be
// violated, in which case the entry price anchors instead.
func (e *Engine) maybeAnchor() {
	if e.anchored || len(e.levels) == 0 {
		return
	}
	ref := e.refPrice()
	if ref <= 0 {
		return
	}

	anchor := ref
	if e.position.Qty > 0 && e.position.EntryPrice > 0 && ref < e.position.EntryPrice {
		anchor = e.position.EntryPrice
	}
	if e.position.Qty < 0 && e.position.EntryPrice > 0 && ref > e.position.EntryPrice {
		anchor = e.position.EntryPrice
	}

	assignSides(e.levels, anchor)
	e.anchored = true
	e.logSink("engine", fmt.Sprintf("grid anchored at %.8f (ref %.8f)", anchor, ref))
}

func (e *Engine) absPosition() float64 {
	return math.Abs(e.position.Qty)
}
