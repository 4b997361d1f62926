package domain

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the closed set of order kinds the coordinator manages.
// Lock, deadline and pending-id state are all keyed by this type.
type OrderType string

const (
	TypeLimit              OrderType = "LIMIT"
	TypeMarket             OrderType = "MARKET"
	TypeStopMarket         OrderType = "STOP_MARKET"
	TypeTrailingStopMarket OrderType = "TRAILING_STOP_MARKET"
)

// OrderTypes lists every order kind, for exhaustive iteration.
var OrderTypes = []OrderType{TypeLimit, TypeMarket, TypeStopMarket, TypeTrailingStopMarket}

// OrderStatus is the venue-reported order lifecycle state.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusRejected        OrderStatus = "REJECTED"
)

// Intent says why the grid wants an order: ENTRY opens exposure at a rung,
// EXIT is the reduce-only order closing exposure from a paired rung.
type Intent string

const (
	IntentEntry Intent = "ENTRY"
	IntentExit  Intent = "EXIT"
)

// Order is the engine's view of a venue order.
type Order struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Type        OrderType   `json:"type"`
	Price       float64     `json:"price"`
	StopPrice   float64     `json:"stopPrice,omitempty"`
	Quantity    float64     `json:"quantity"`
	ExecutedQty float64     `json:"executedQty"`
	ReduceOnly  bool        `json:"reduceOnly,omitempty"`
	Status      OrderStatus `json:"status"`
	UpdateTime  int64       `json:"updateTime"` // unix milliseconds
}

// IsOpen reports whether the order is still resting on the venue.
func (o *Order) IsOpen() bool {
	return o.Status == StatusNew || o.Status == StatusPartiallyFilled
}

// IsTerminalFill reports a fill by status or by executed quantity. A venue
// may drop an order from the open list before pushing its FILLED status,
// so non-zero executed quantity counts.
func (o *Order) IsTerminalFill() bool {
	return o.Status == StatusFilled || o.ExecutedQty > 0
}

// IsTerminalCancel reports a terminal non-fill status.
func (o *Order) IsTerminalCancel() bool {
	switch o.Status {
	case StatusCanceled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// EffectiveType maps the order onto coordinator lock keys. Some venues echo
// a resting stop order as a tagged LIMIT order with a non-zero stop price;
// those are treated as STOP_MARKET for dedup purposes.
func (o *Order) EffectiveType() OrderType {
	if o.Type == TypeLimit && o.StopPrice != 0 {
		return TypeStopMarket
	}
	return o.Type
}

// RemainingQty returns the unfilled remainder.
func (o *Order) RemainingQty() float64 {
	r := o.Quantity - o.ExecutedQty
	if r < 0 {
		return 0
	}
	return r
}
