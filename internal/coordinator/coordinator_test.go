package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange"
)

// stubAdapter counts verb invocations and returns canned results.
type stubAdapter struct {
	placed      []exchange.OrderRequest
	canceled    [][]string
	placeErr    error
	placeResult *domain.Order
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) placeAny(_ context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	s.placed = append(s.placed, req)
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	if s.placeResult != nil {
		return s.placeResult, nil
	}
	return &domain.Order{ID: "stub-1", Symbol: req.Symbol, Side: req.Side, Status: domain.StatusNew}, nil
}

func (s *stubAdapter) PlaceLimit(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	return s.placeAny(ctx, req)
}
func (s *stubAdapter) PlaceMarket(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	return s.placeAny(ctx, req)
}
func (s *stubAdapter) PlaceStopMarket(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	return s.placeAny(ctx, req)
}
func (s *stubAdapter) PlaceTrailingStop(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	return s.placeAny(ctx, req)
}
func (s *stubAdapter) PlaceMarketClose(ctx context.Context, req exchange.OrderRequest) (*domain.Order, error) {
	return s.placeAny(ctx, req)
}

func (s *stubAdapter) CancelOrder(_ context.Context, _ string, id string) error {
	s.canceled = append(s.canceled, []string{id})
	return nil
}
func (s *stubAdapter) CancelOrders(_ context.Context, _ string, ids []string) error {
	s.canceled = append(s.canceled, ids)
	return nil
}
func (s *stubAdapter) CancelAllOrders(context.Context, string) error { return nil }

func (s *stubAdapter) WatchAccount(context.Context, exchange.AccountHandler) error { return nil }
func (s *stubAdapter) WatchOrders(context.Context, exchange.OrdersHandler) error   { return nil }
func (s *stubAdapter) WatchDepth(context.Context, string, exchange.DepthHandler) error {
	return nil
}
func (s *stubAdapter) WatchTicker(context.Context, string, exchange.TickerHandler) error {
	return nil
}
func (s *stubAdapter) GetPrecision(context.Context, string) (domain.Precision, error) {
	return domain.Precision{}, nil
}
func (s *stubAdapter) SupportsTrailingStops() bool { return true }

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCoordinator(stub *stubAdapter) (*Coordinator, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	st := NewState()
	st.SetClock(clock.now)
	c := New(stub, st, nil)
	c.SetPrecision(domain.Precision{PriceTick: 0.01, QtyStep: 0.001})
	return c, clock
}

func limitReq() exchange.OrderRequest {
	return exchange.OrderRequest{Symbol: "BTCUSDT", Side: domain.SideBuy, Price: 100, Quantity: 1}
}

func TestPlaceLimit_SingleFlight(t *testing.T) {
	stub := &stubAdapter{}
	c, _ := newTestCoordinator(stub)
	ctx := context.Background()

	o, err := c.PlaceLimit(ctx, limitReq(), PlaceOpts{})
	if err != nil || o == nil {
		t.Fatalf("first placement failed: order=%v err=%v", o, err)
	}

	// Lock still held: second call must return without touching the venue.
	o2, err := c.PlaceLimit(ctx, limitReq(), PlaceOpts{})
	if err != nil {
		t.Fatalf("locked placement returned error: %v", err)
	}
	if o2 != nil {
		t.Error("locked placement must return no order")
	}
	if len(stub.placed) != 1 {
		t.Fatalf("adapter invoked %d times, want 1", len(stub.placed))
	}
}

func TestPlaceLimit_LockExpiresAfterTTL(t *testing.T) {
	stub := &stubAdapter{}
	c, clock := newTestCoordinator(stub)
	ctx := context.Background()

	if _, err := c.PlaceLimit(ctx, limitReq(), PlaceOpts{}); err != nil {
		t.Fatal(err)
	}
	clock.advance(DefaultLockTTL + time.Millisecond)

	if _, err := c.PlaceLimit(ctx, limitReq(), PlaceOpts{}); err != nil {
		t.Fatal(err)
	}
	if len(stub.placed) != 2 {
		t.Fatalf("adapter invoked %d times after expiry, want 2", len(stub.placed))
	}
}

func TestPlaceLimit_ResolveReleasesLock(t *testing.T) {
	stub := &stubAdapter{}
	c, _ := newTestCoordinator(stub)
	ctx := context.Background()

	if _, err := c.PlaceLimit(ctx, limitReq(), PlaceOpts{}); err != nil {
		t.Fatal(err)
	}
	id, ok := c.State().PendingID(domain.TypeLimit)
	if !ok || id != "stub-1" {
		t.Fatalf("pending id = %q ok=%v, want stub-1", id, ok)
	}

	// Resolving with a different id must not release the lock.
	c.State().Resolve(domain.TypeLimit, "someone-else")
	if !c.State().Locked(domain.TypeLimit) {
		t.Fatal("mismatched resolve must not release the lock")
	}

	c.State().Resolve(domain.TypeLimit, "stub-1")
	if c.State().Locked(domain.TypeLimit) {
		t.Fatal("matching resolve must release the lock")
	}
}

func TestGuard_AdverseSideBoundary(t *testing.T) {
	const p = 0.01
	cases := []struct {
		name  string
		side  domain.Side
		price float64
		pass  bool
	}{
		{"buy above bound", domain.SideBuy, 100 * (1 + p + 0.001), false},
		{"buy below bound", domain.SideBuy, 100 * (1 + p - 0.001), true},
		{"sell below bound", domain.SideSell, 100 * (1 - p - 0.001), false},
		{"sell above bound", domain.SideSell, 100 * (1 - p + 0.001), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubAdapter{}
			c, _ := newTestCoordinator(stub)
			req := exchange.OrderRequest{Symbol: "BTCUSDT", Side: tc.side, Price: tc.price, Quantity: 1}
			g := &Guard{MarkPrice: 100, MaxPct: p}
			o, err := c.PlaceLimit(context.Background(), req, PlaceOpts{Guard: g})
			if err != nil {
				t.Fatal(err)
			}
			if tc.pass && o == nil {
				t.Error("expected placement to pass the guard")
			}
			if !tc.pass && (o != nil || len(stub.placed) != 0) {
				t.Error("expected guard to reject without invoking the adapter")
			}
		})
	}
}

func TestGuard_ScenarioC(t *testing.T) {
	// BUY order at 105 against mark 100 with 1% max deviation: rejected.
	stub := &stubAdapter{}
	c, _ := newTestCoordinator(stub)
	req := exchange.OrderRequest{Symbol: "BTCUSDT", Side: domain.SideBuy, Price: 105, Quantity: 1}
	o, err := c.PlaceLimit(context.Background(), req, PlaceOpts{Guard: &Guard{MarkPrice: 100, MaxPct: 0.01}})
	if err != nil || o != nil || len(stub.placed) != 0 {
		t.Fatalf("want guard reject, got order=%v err=%v calls=%d", o, err, len(stub.placed))
	}
}

func TestRounding_FloorAndFallback(t *testing.T) {
	stub := &stubAdapter{}
	c, _ := newTestCoordinator(stub)
	ctx := context.Background()

	req := limitReq()
	req.Quantity = 1.23456 // step 0.001 -> 1.234
	if _, err := c.PlaceLimit(ctx, req, PlaceOpts{}); err != nil {
		t.Fatal(err)
	}
	if got := stub.placed[0].Quantity; got != 1.234 {
		t.Errorf("quantity = %v, want 1.234", got)
	}

	// Below one step: flooring yields zero, raw quantity is used instead.
	c.State().Resolve(domain.TypeLimit, "stub-1")
	req.Quantity = 0.0004
	if _, err := c.PlaceLimit(ctx, req, PlaceOpts{}); err != nil {
		t.Fatal(err)
	}
	if got := stub.placed[1].Quantity; got != 0.0004 {
		t.Errorf("fallback quantity = %v, want raw 0.0004", got)
	}

	// Zero quantity is a hard reject: no adapter call.
	c.State().Resolve(domain.TypeLimit, "stub-1")
	req.Quantity = 0
	o, err := c.PlaceLimit(ctx, req, PlaceOpts{})
	if err != nil || o != nil {
		t.Fatalf("zero quantity: order=%v err=%v, want no-op", o, err)
	}
	if len(stub.placed) != 2 {
		t.Fatalf("adapter invoked %d times, want 2", len(stub.placed))
	}
}

func TestDedup_ScenarioB(t *testing.T) {
	// Two open STOP_MARKET SELL orders; the older one (updateTime=100) is
	// canceled, the newer survives.
	stub := &stubAdapter{}
	c, _ := newTestCoordinator(stub)

	open := []domain.Order{
		{ID: "old", Symbol: "BTCUSDT", Side: domain.SideSell, Type: domain.TypeStopMarket, Status: domain.StatusNew, UpdateTime: 100},
		{ID: "new", Symbol: "BTCUSDT", Side: domain.SideSell, Type: domain.TypeStopMarket, Status: domain.StatusNew, UpdateTime: 200},
	}
	req := exchange.OrderRequest{Symbol: "BTCUSDT", Side: domain.SideSell, StopPrice: 95, Quantity: 1}
	if _, err := c.PlaceStopMarket(context.Background(), req, PlaceOpts{OpenOrders: open}); err != nil {
		t.Fatal(err)
	}
	if len(stub.canceled) != 1 || len(stub.canceled[0]) != 1 || stub.canceled[0][0] != "old" {
		t.Fatalf("canceled = %v, want [[old]]", stub.canceled)
	}
}

func TestDedup_StopEchoedAsTaggedLimit(t *testing.T) {
	// A stop order echoed as LIMIT with a stop price must dedup against
	// STOP_MARKET placements.
	stub := &stubAdapter{}
	c, _ := newTestCoordinator(stub)

	open := []domain.Order{
		{ID: "echo", Symbol: "BTCUSDT", Side: domain.SideSell, Type: domain.TypeLimit, StopPrice: 96, Status: domain.StatusNew, UpdateTime: 100},
		{ID: "real", Symbol: "BTCUSDT", Side: domain.SideSell, Type: domain.TypeStopMarket, Status: domain.StatusNew, UpdateTime: 200},
	}
	req := exchange.OrderRequest{Symbol: "BTCUSDT", Side: domain.SideSell, StopPrice: 95, Quantity: 1}
	if _, err := c.PlaceStopMarket(context.Background(), req, PlaceOpts{OpenOrders: open}); err != nil {
		t.Fatal(err)
	}
	if len(stub.canceled) != 1 || stub.canceled[0][0] != "echo" {
		t.Fatalf("canceled = %v, want the echoed limit order", stub.canceled)
	}
}

func TestPlace_AlreadyGoneSwallowed(t *testing.T) {
	stub := &stubAdapter{placeErr: exchange.NewError(exchange.KindAlreadyGone, "stub", "", "unknown order")}
	c, _ := newTestCoordinator(stub)

	o, err := c.PlaceLimit(context.Background(), limitReq(), PlaceOpts{})
	if err != nil {
		t.Fatalf("already-gone must be swallowed, got %v", err)
	}
	if o != nil {
		t.Error("already-gone must yield no order")
	}
	if c.State().Locked(domain.TypeLimit) {
		t.Error("lock must be released on the swallowed path")
	}
}

func TestPlace_OtherErrorRethrownAndUnlocked(t *testing.T) {
	stub := &stubAdapter{placeErr: exchange.NewError(exchange.KindRateLimited, "stub", "429", "slow down")}
	c, _ := newTestCoordinator(stub)

	_, err := c.PlaceLimit(context.Background(), limitReq(), PlaceOpts{})
	if !exchange.IsRateLimited(err) {
		t.Fatalf("expected rate-limit error to propagate, got %v", err)
	}
	if c.State().Locked(domain.TypeLimit) {
		t.Error("lock must be released on the error path")
	}
}

func TestLocksAreIndependentPerType(t *testing.T) {
	stub := &stubAdapter{}
	c, _ := newTestCoordinator(stub)
	ctx := context.Background()

	if _, err := c.PlaceLimit(ctx, limitReq(), PlaceOpts{}); err != nil {
		t.Fatal(err)
	}
	// LIMIT locked; MARKET must still go through.
	req := exchange.OrderRequest{Symbol: "BTCUSDT", Side: domain.SideSell, Quantity: 0.5}
	o, err := c.PlaceMarket(ctx, req, PlaceOpts{})
	if err != nil || o == nil {
		t.Fatalf("market placement blocked by limit lock: order=%v err=%v", o, err)
	}
}
