package domain

// PriceLevel is one order-book rung.
type PriceLevel struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// DepthSnapshot is one order-book frame. Bids descend, asks ascend.
type DepthSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	UpdatedAt int64        `json:"updatedAt"` // unix milliseconds
}

// BestBid returns the top bid price, zero when the book side is empty.
func (d *DepthSnapshot) BestBid() float64 {
	if len(d.Bids) == 0 {
		return 0
	}
	return d.Bids[0].Price
}

// BestAsk returns the top ask price, zero when the book side is empty.
func (d *DepthSnapshot) BestAsk() float64 {
	if len(d.Asks) == 0 {
		return 0
	}
	return d.Asks[0].Price
}

// MidPrice returns the bid/ask midpoint, falling back to whichever side
// exists when the book is one-sided.
func (d *DepthSnapshot) MidPrice() float64 {
	bid, ask := d.BestBid(), d.BestAsk()
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case bid > 0:
		return bid
	default:
		return ask
	}
}

// TickerSnapshot is one last-price frame.
type TickerSnapshot struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	MarkPrice float64 `json:"markPrice,omitempty"`
	UpdatedAt int64   `json:"updatedAt"`
}

// Precision carries the venue quanta. Zero fields keep engine defaults.
type Precision struct {
	PriceTick float64 `json:"priceTick"`
	QtyStep   float64 `json:"qtyStep"`
}
