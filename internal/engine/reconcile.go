package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/coordinator"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange"
	"github.com/yuggg-cyber/ritmex-bot-sub001/pkg/px"
)

// DesiredOrder is one order the reconciler wants resting on the venue.
type DesiredOrder struct {
	Side      domain.Side
	Price     float64
	PriceText string
	Quantity  float64
	Level     int
	Intent    domain.Intent
	// SourceLevel is the entry rung an exit closes; -1 for entries.
	SourceLevel int
	ReduceOnly  bool
}

// handleTick runs one reconciliation pass. Every step is idempotent:
// running the same pass twice against an unchanged venue changes nothing.
func (e *Engine) handleTick(ctx context.Context) error {
	if e.state != StateRunning && e.state != StateHalted {
		return nil
	}

	if !e.startupDone {
		return e.startupBarrier(ctx)
	}

	e.maybeAnchor()
	if !e.anchored {
		return nil
	}

	ref := e.refPrice()

	if e.state == StateHalted {
		e.maybeRestart(ref)
		return nil
	}

	if e.stopLossBreached(ref) {
		return e.haltGrid(ctx, fmt.Sprintf("stop loss breached at %s", px.Format(ref, e.cfg.PriceTick)))
	}

	e.classifyVanished()
	e.resolveDeferred()
	e.expireSuppressions()

	desired := e.desiredOrders()
	e.lastDesired = desired
	e.mets.SetDeferred(len(e.deferred))

	if err := e.placeNext(ctx, desired); err != nil {
		return err
	}

	e.rememberOpen()
	return nil
}

// startupBarrier refuses to act until the first order snapshot has
// arrived, then clears the book so the engine starts from a known-empty
// state instead of adopting orders it has no intent records for.
func (e *Engine) startupBarrier(ctx context.Context) error {
	if !e.ordersSeen {
		return nil
	}
	if err := e.coord.CancelAll(ctx, e.cfg.Symbol); err != nil {
		return fmt.Errorf("startup cancel-all: %w", err)
	}
	e.wipe()
	e.startupDone = true
	e.logSink("engine", "startup barrier passed, order book cleared")
	return nil
}

// wipe drops all per-level bookkeeping. Feed snapshots and the anchor
// decision are not touched; callers reset those separately when needed.
func (e *Engine) wipe() {
	e.intents = make(map[string]intentRecord)
	e.lastKnown = make(map[string]domain.Order)
	e.prevOpen = make(map[string]domain.Order)
	e.pendingLong = make(map[int]struct{})
	e.pendingShort = make(map[int]struct{})
	e.suppress = make(map[suppressKey]time.Time)
	e.deferred = make(map[int]deferredMark)
	e.closeKeys = make(map[int]string)
	e.lastDesired = nil
}

// stopLossBreached reports whether the reference price has left the band
// by more than the configured margin on either side.
func (e *Engine) stopLossBreached(ref float64) bool {
	if ref <= 0 || e.cfg.StopLossPct <= 0 {
		return false
	}
	return ref <= e.cfg.LowerPrice*(1-e.cfg.StopLossPct) ||
		ref >= e.cfg.UpperPrice*(1+e.cfg.StopLossPct)
}

// haltGrid cancels everything, flattens the position at market and parks
// the engine in HALTED until a restart re-arms it.
func (e *Engine) haltGrid(ctx context.Context, reason string) error {
	e.logSink("engine", "halting grid: "+reason)
	if err := e.coord.CancelAll(ctx, e.cfg.Symbol); err != nil {
		return fmt.Errorf("halt cancel-all: %w", err)
	}
	if e.position.Qty != 0 {
		req := exchange.OrderRequest{
			Symbol:     e.cfg.Symbol,
			Side:       e.closeSide(),
			Quantity:   e.absPosition(),
			ReduceOnly: true,
		}
		if _, err := e.coord.PlaceMarketClose(ctx, req, coordinator.PlaceOpts{SkipDedup: true}); err != nil {
			return fmt.Errorf("halt market close: %w", err)
		}
	}
	e.wipe()
	e.state = StateHalted
	e.stopReason = reason
	return nil
}

func (e *Engine) closeSide() domain.Side {
	if e.position.Qty > 0 {
		return domain.SideSell
	}
	return domain.SideBuy
}

// maybeRestart re-arms a halted grid once price has returned inside the
// band with the configured margin to spare.
func (e *Engine) maybeRestart(ref float64) {
	if !e.cfg.AutoRestart || ref <= 0 {
		return
	}
	lo := e.cfg.LowerPrice * (1 + e.cfg.RestartTriggerPct)
	hi := e.cfg.UpperPrice * (1 - e.cfg.RestartTriggerPct)
	if ref < lo || ref > hi {
		return
	}
	e.wipe()
	e.anchored = false
	e.state = StateRunning
	e.stopReason = ""
	e.logSink("engine", fmt.Sprintf("grid restarted at %s", px.Format(ref, e.cfg.PriceTick)))
}

// classifyVanished walks every intent whose order is absent from the
// current snapshot and classifies the disappearance as a fill, a cancel,
// or ambiguous. Ambiguity defers the level until the account confirms.
func (e *Engine) classifyVanished() {
	current := make(map[string]struct{}, len(e.openOrders))
	for _, o := range e.openOrders {
		if o.IsOpen() {
			current[o.ID] = struct{}{}
		}
	}

	for id, rec := range e.intents {
		if _, ok := current[id]; ok {
			continue
		}
		seenBefore := false
		if _, ok := e.prevOpen[id]; ok {
			seenBefore = true
		}
		// An order never observed open only counts as vanished once the
		// snapshot has advanced past its placement.
		if !seenBefore && e.ordersVersion <= rec.placedVersion {
			continue
		}

		last, known := e.lastKnown[id]
		switch {
		case known && last.IsTerminalFill():
			e.onFill(id, rec)
		case known && last.IsTerminalCancel():
			e.onCancel(id, rec)
		default:
			delete(e.intents, id)
			delete(e.lastKnown, id)
			e.deferred[rec.Level] = deferredMark{
				rec:     rec,
				version: e.accountVersion,
				absPos:  e.absPosition(),
				at:      e.now(),
			}
			e.logSink("engine", fmt.Sprintf("order %s vanished ambiguously, level %d deferred", id, rec.Level))
		}
	}
}

// onFill applies a confirmed fill: an entry marks the level pending and
// queues its close target; an exit releases the source exposure.
func (e *Engine) onFill(id string, rec intentRecord) {
	delete(e.intents, id)
	delete(e.lastKnown, id)
	delete(e.suppress, suppressKey{Side: rec.Side, Price: rec.Price, Intent: rec.Intent})

	if rec.Intent == domain.IntentEntry {
		if rec.Side == domain.SideBuy {
			e.pendingLong[rec.Level] = struct{}{}
		} else {
			e.pendingShort[rec.Level] = struct{}{}
		}
		e.logSink("trade", fmt.Sprintf("entry filled at level %d (%s %s)", rec.Level, rec.Side, rec.Price))
		return
	}

	if rec.SourceLevel >= 0 {
		delete(e.pendingLong, rec.SourceLevel)
		delete(e.pendingShort, rec.SourceLevel)
		delete(e.closeKeys, rec.SourceLevel)
	}
	e.logSink("trade", fmt.Sprintf("exit filled at level %d (%s %s)", rec.Level, rec.Side, rec.Price))
}

// onCancel drops the intent without touching pending exposure and lifts
// the suppression window, so the rung can be re-placed right away.
func (e *Engine) onCancel(id string, rec intentRecord) {
	delete(e.intents, id)
	delete(e.lastKnown, id)
	delete(e.suppress, suppressKey{Side: rec.Side, Price: rec.Price, Intent: rec.Intent})
	if rec.Intent == domain.IntentExit && rec.SourceLevel >= 0 {
		delete(e.closeKeys, rec.SourceLevel)
	}
	e.logSink("order", fmt.Sprintf("order %s canceled externally at level %d", id, rec.Level))
}

// resolveDeferred settles ambiguous disappearances. A position change
// since the mark means a fill in the corresponding direction; an
// unchanged position after a fresh account frame resets the baseline.
// Past the timeout the disappearance is treated as a no-op.
func (e *Engine) resolveDeferred() {
	step := e.cfg.QtyStep / 2
	for lvl, dm := range e.deferred {
		if e.accountVersion != dm.version {
			abs := e.absPosition()
			switch {
			case abs > dm.absPos+step:
				delete(e.deferred, lvl)
				e.onFill("", dm.rec)
				continue
			case abs < dm.absPos-step:
				delete(e.deferred, lvl)
				rec := dm.rec
				rec.Intent = domain.IntentExit
				e.onFill("", rec)
				continue
			default:
				dm.version = e.accountVersion
				dm.absPos = abs
				e.deferred[lvl] = dm
			}
		}
		if e.now().Sub(dm.at) >= e.cfg.DeferredTimeout {
			delete(e.deferred, lvl)
			e.logSink("engine", fmt.Sprintf("deferred level %d timed out, treated as no-op", lvl))
		}
	}
}

func (e *Engine) expireSuppressions() {
	now := e.now()
	for k, until := range e.suppress {
		if !now.Before(until) {
			delete(e.suppress, k)
		}
	}
}

// desiredOrders computes the order list the venue should hold. While
// any net position is open, only exits are desired; new entries resume
// once the book is flat again.
func (e *Engine) desiredOrders() []DesiredOrder {
	if e.absPosition() > e.cfg.QtyStep/2 {
		return e.desiredExits()
	}
	return e.desiredEntries()
}

// desiredExits covers open exposure with reduce-only orders: one per
// pending entry level at its static close target, plus a sweeper at the
// nearest profitable rung for exposure no pending level accounts for.
func (e *Engine) desiredExits() []DesiredOrder {
	abs := e.absPosition()
	step := e.cfg.QtyStep / 2
	if abs <= step {
		return nil
	}
	exitSide := e.closeSide()

	// Exposure already covered by resting exits.
	covered := 0.0
	for id, rec := range e.intents {
		if rec.Intent != domain.IntentExit {
			continue
		}
		for _, o := range e.openOrders {
			if o.ID == id && o.IsOpen() {
				covered += o.RemainingQty()
			}
		}
	}
	remaining := abs - covered
	if remaining <= step {
		return nil
	}

	var out []DesiredOrder
	pending := e.pendingLong
	if exitSide == domain.SideBuy {
		pending = e.pendingShort
	}
	for lvl := range pending {
		if remaining <= step {
			break
		}
		if _, busy := e.closeKeys[lvl]; busy {
			continue
		}
		target := e.levels[lvl].CloseTarget
		if target < 0 {
			continue
		}
		qty := e.cfg.OrderSize
		if qty > remaining {
			qty = remaining
		}
		out = append(out, e.exitAt(target, exitSide, qty, lvl))
		remaining -= qty
	}

	// Inherited or otherwise unaccounted exposure.
	if remaining > step {
		if idx := nearestProfitableExit(e.levels, exitSide, e.position.EntryPrice); idx >= 0 {
			out = append(out, e.exitAt(idx, exitSide, remaining, -1))
		}
	}
	return out
}

func (e *Engine) exitAt(level int, side domain.Side, qty float64, source int) DesiredOrder {
	price := e.levels[level].Price
	return DesiredOrder{
		Side:        side,
		Price:       price,
		PriceText:   px.Format(price, e.cfg.PriceTick),
		Quantity:    qty,
		Level:       level,
		Intent:      domain.IntentExit,
		SourceLevel: source,
		ReduceOnly:  true,
	}
}

// desiredEntries scans the rungs for missing entry orders. Each order is
// capped at the remaining position capacity; resting entries do not
// reduce the cap, so the full grid can be laid out before any fill.
func (e *Engine) desiredEntries() []DesiredOrder {
	capacity := e.cfg.MaxPositionSize - e.absPosition()
	var out []DesiredOrder
	for i := range e.levels {
		if capacity <= e.cfg.QtyStep/2 {
			break
		}
		lv := &e.levels[i]
		if !e.entryAllowed(lv.Side) {
			continue
		}
		if _, busy := e.deferred[i]; busy {
			continue
		}
		if lv.Side == domain.SideBuy {
			if _, filled := e.pendingLong[i]; filled {
				continue
			}
		} else {
			if _, filled := e.pendingShort[i]; filled {
				continue
			}
		}
		priceText := px.Format(lv.Price, e.cfg.PriceTick)
		if e.hasOpenAt(lv.Side, lv.Price) {
			continue
		}
		if _, blocked := e.suppress[suppressKey{Side: lv.Side, Price: priceText, Intent: domain.IntentEntry}]; blocked {
			continue
		}
		qty := e.cfg.OrderSize
		if qty > capacity {
			qty = capacity
		}
		out = append(out, DesiredOrder{
			Side:        lv.Side,
			Price:       lv.Price,
			PriceText:   priceText,
			Quantity:    qty,
			Level:       i,
			Intent:      domain.IntentEntry,
			SourceLevel: -1,
		})
	}
	return out
}

func (e *Engine) entryAllowed(side domain.Side) bool {
	switch e.cfg.Direction {
	case DirectionLong:
		return side == domain.SideBuy
	case DirectionShort:
		return side == domain.SideSell
	default:
		return true
	}
}

// hasOpenAt reports whether any resting order already sits at (side, price).
func (e *Engine) hasOpenAt(side domain.Side, price float64) bool {
	for _, o := range e.openOrders {
		if o.IsOpen() && o.Side == side && px.Equal(o.Price, price, e.cfg.PriceTick) {
			return true
		}
	}
	return false
}

// placeNext submits at most one desired order. Placement is gated on the
// LIMIT lock being free and on either the order snapshot having advanced
// since the last attempt or the cooldown having elapsed, so a stalled
// feed cannot cause a placement storm.
func (e *Engine) placeNext(ctx context.Context, desired []DesiredOrder) error {
	if len(desired) == 0 {
		return nil
	}
	if e.coord.State().Locked(domain.TypeLimit) {
		return nil
	}
	if e.ordersVersion <= e.lastPlaceVersion && e.now().Sub(e.lastPlaceAt) < e.cfg.PlacementCooldown {
		return nil
	}

	var pick *DesiredOrder
	for i := range desired {
		d := &desired[i]
		key := suppressKey{Side: d.Side, Price: d.PriceText, Intent: d.Intent}
		if _, blocked := e.suppress[key]; blocked {
			continue
		}
		pick = d
		break
	}
	if pick == nil {
		return nil
	}

	// Block re-attempts before the venue call, so an ambiguous failure
	// cannot double-place within the window.
	e.suppress[suppressKey{Side: pick.Side, Price: pick.PriceText, Intent: pick.Intent}] =
		e.now().Add(e.cfg.SuppressionTTL)
	e.lastPlaceVersion = e.ordersVersion
	e.lastPlaceAt = e.now()

	req := exchange.OrderRequest{
		Symbol:     e.cfg.Symbol,
		Side:       pick.Side,
		Price:      pick.Price,
		Quantity:   pick.Quantity,
		ReduceOnly: pick.ReduceOnly,
	}
	// Grid rungs legitimately stack several limits per side; the
	// keep-newest dedup pass would cancel the older rungs.
	opts := coordinator.PlaceOpts{
		Guard: &coordinator.Guard{
			MarkPrice: e.markPrice(),
			MaxPct:    e.cfg.MaxPriceDeviationPct,
		},
		SkipDedup: true,
	}
	order, err := e.coord.PlaceLimit(ctx, req, opts)
	if err != nil {
		return fmt.Errorf("place %s %s: %w", pick.Side, pick.PriceText, err)
	}
	if order == nil {
		return nil
	}

	e.mets.IncPlaced()
	e.intents[order.ID] = intentRecord{
		Side:          pick.Side,
		Price:         pick.PriceText,
		Level:         pick.Level,
		Intent:        pick.Intent,
		SourceLevel:   pick.SourceLevel,
		placedVersion: e.ordersVersion,
	}
	if pick.Intent == domain.IntentExit && pick.SourceLevel >= 0 {
		e.closeKeys[pick.SourceLevel] = order.ID
	}
	return nil
}

// rememberOpen snapshots the currently open orders for next tick's
// vanish diff.
func (e *Engine) rememberOpen() {
	prev := make(map[string]domain.Order, len(e.openOrders))
	for _, o := range e.openOrders {
		if o.IsOpen() {
			prev[o.ID] = o
		}
	}
	e.prevOpen = prev
}
