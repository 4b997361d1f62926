package engine

import (
	"time"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/tradelog"
	"github.com/yuggg-cyber/ritmex-bot-sub001/pkg/px"
)

// GridLine is one rung of the grid as seen from outside the loop.
type GridLine struct {
	Index    int         `json:"index"`
	Price    string      `json:"price"`
	Side     domain.Side `json:"side"`
	Active   bool        `json:"active"`
	Pending  bool        `json:"pending"`
	Deferred bool        `json:"deferred"`
}

// Snapshot is the engine's externally visible state. It is an immutable
// copy; readers never observe loop-internal structures.
type Snapshot struct {
	Symbol     string           `json:"symbol"`
	State      string           `json:"state"`
	StopReason string           `json:"stopReason,omitempty"`
	Anchored   bool             `json:"anchored"`
	LastPrice  string           `json:"lastPrice"`
	Position   domain.Position  `json:"position"`
	OpenOrders []domain.Order   `json:"openOrders"`
	Lines      []GridLine       `json:"lines"`
	Desired    []DesiredOrder   `json:"desired"`
	TradeLog   []tradelog.Entry `json:"tradeLog"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// publish rebuilds the snapshot from loop state and notifies subscribers.
// Called only from the loop goroutine.
func (e *Engine) publish() {
	snap := e.buildSnapshot()

	e.mu.Lock()
	e.snapshot = snap
	subs := make([]func(Snapshot), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
		e.mets.IncSnapshot()
	}
}

func (e *Engine) buildSnapshot() Snapshot {
	lines := make([]GridLine, len(e.levels))
	for i, lv := range e.levels {
		priceText := px.Format(lv.Price, e.cfg.PriceTick)
		_, deferredHere := e.deferred[i]
		_, pendingL := e.pendingLong[i]
		_, pendingS := e.pendingShort[i]
		lines[i] = GridLine{
			Index:    i,
			Price:    priceText,
			Side:     lv.Side,
			Active:   e.hasOpenAt(lv.Side, lv.Price),
			Pending:  pendingL || pendingS,
			Deferred: deferredHere,
		}
	}

	open := make([]domain.Order, 0, len(e.openOrders))
	for _, o := range e.openOrders {
		if o.IsOpen() {
			open = append(open, o)
		}
	}

	return Snapshot{
		Symbol:     e.cfg.Symbol,
		State:      e.state.String(),
		StopReason: e.stopReason,
		Anchored:   e.anchored,
		LastPrice:  px.Format(e.refPrice(), e.cfg.PriceTick),
		Position:   e.position,
		OpenOrders: open,
		Lines:      lines,
		Desired:    append([]DesiredOrder(nil), e.lastDesired...),
		TradeLog:   e.trades.Entries(),
		UpdatedAt:  e.now(),
	}
}

// GetSnapshot returns the most recently published snapshot. Safe from
// any goroutine.
func (e *Engine) GetSnapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// Subscribe registers a callback invoked after every published snapshot.
// The returned id unsubscribes.
func (e *Engine) Subscribe(fn func(Snapshot)) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return id
}

// Unsubscribe removes a subscription; unknown ids are ignored.
func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, id)
}
