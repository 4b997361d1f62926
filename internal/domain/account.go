package domain

// Position is one symbol's net exposure. Qty is signed: positive long,
// negative short.
type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	EntryPrice    float64 `json:"entryPrice"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
}

// IsLong reports a net long position.
func (p *Position) IsLong() bool { return p.Qty > 0 }

// IsShort reports a net short position.
func (p *Position) IsShort() bool { return p.Qty < 0 }

// IsFlat reports zero exposure.
func (p *Position) IsFlat() bool { return p.Qty == 0 }

// AccountSnapshot is one push-feed frame of account state. Version bumps
// monotonically with every frame; the engine uses it to order deferred
// classification against account changes.
type AccountSnapshot struct {
	Version       uint64     `json:"version"`
	WalletBalance float64    `json:"walletBalance"`
	Positions     []Position `json:"positions"`
}

// PositionFor returns the position for symbol, zero-valued when absent.
func (a *AccountSnapshot) PositionFor(symbol string) Position {
	for _, p := range a.Positions {
		if p.Symbol == symbol {
			return p
		}
	}
	return Position{Symbol: symbol}
}
