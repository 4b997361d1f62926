// Package metrics exposes prometheus collectors for the trading core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the engine and coordinator report into.
// A nil *Metrics is valid; all record methods are no-ops on nil.
type Metrics struct {
	OrdersPlaced    prometheus.Counter
	OrdersCanceled  prometheus.Counter
	GuardRejects    prometheus.Counter
	AlreadyGone     prometheus.Counter
	TickErrors      prometheus.Counter
	DeferredLevels  prometheus.Gauge
	ActiveOrders    prometheus.Gauge
	PositionSize    prometheus.Gauge
	SnapshotUpdates prometheus.Counter
}

// New registers all collectors on reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_orders_placed_total",
			Help: "Orders successfully submitted to the venue.",
		}),
		OrdersCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_orders_canceled_total",
			Help: "Cancel requests issued to the venue.",
		}),
		GuardRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_guard_rejects_total",
			Help: "Placements rejected by the mark-price deviation guard.",
		}),
		AlreadyGone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_already_gone_total",
			Help: "Venue responses classified as order-already-gone and swallowed.",
		}),
		TickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_tick_errors_total",
			Help: "Engine ticks that logged an error and continued.",
		}),
		DeferredLevels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_deferred_levels",
			Help: "Grid levels blocked on ambiguous order disappearance.",
		}),
		ActiveOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_active_orders",
			Help: "Resting orders the engine believes it owns.",
		}),
		PositionSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_position_size",
			Help: "Signed net position size.",
		}),
		SnapshotUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_snapshot_updates_total",
			Help: "Snapshot notifications delivered to subscribers.",
		}),
	}
	reg.MustRegister(
		m.OrdersPlaced, m.OrdersCanceled, m.GuardRejects, m.AlreadyGone,
		m.TickErrors, m.DeferredLevels, m.ActiveOrders, m.PositionSize,
		m.SnapshotUpdates,
	)
	return m
}

// IncPlaced records a successful placement.
func (m *Metrics) IncPlaced() {
	if m != nil {
		m.OrdersPlaced.Inc()
	}
}

// IncCanceled records an issued cancel.
func (m *Metrics) IncCanceled() {
	if m != nil {
		m.OrdersCanceled.Inc()
	}
}

// IncGuardReject records a guard rejection.
func (m *Metrics) IncGuardReject() {
	if m != nil {
		m.GuardRejects.Inc()
	}
}

// IncAlreadyGone records a swallowed already-gone response.
func (m *Metrics) IncAlreadyGone() {
	if m != nil {
		m.AlreadyGone.Inc()
	}
}

// IncTickError records a tick that failed and was skipped.
func (m *Metrics) IncTickError() {
	if m != nil {
		m.TickErrors.Inc()
	}
}

// SetDeferred reports the number of deferred-classification levels.
func (m *Metrics) SetDeferred(n int) {
	if m != nil {
		m.DeferredLevels.Set(float64(n))
	}
}

// SetActiveOrders reports the engine's resting-order count.
func (m *Metrics) SetActiveOrders(n int) {
	if m != nil {
		m.ActiveOrders.Set(float64(n))
	}
}

// SetPosition reports the signed position size.
func (m *Metrics) SetPosition(qty float64) {
	if m != nil {
		m.PositionSize.Set(qty)
	}
}

// IncSnapshot records a delivered snapshot notification.
func (m *Metrics) IncSnapshot() {
	if m != nil {
		m.SnapshotUpdates.Inc()
	}
}
