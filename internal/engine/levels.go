package engine

import (
	"fmt"
	"math"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
)

// Level is one price rung of the grid. Side, CloseTarget and CloseSources
// stay zero-valued until the one-shot anchoring assigns sides.
type Level struct {
	Index int
	Price float64
	Side  domain.Side
	// CloseTarget is the index of the opposite-side rung that closes
	// exposure opened here, -1 when no such rung exists.
	CloseTarget int
	// CloseSources lists the rungs whose exposure closes into this one.
	CloseSources []int
}

// computeLevels builds the geometric progression between the bounds. The
// endpoints are snapped exactly to the configured bounds so repeated
// multiplication cannot drift them.
func computeLevels(lower, upper float64, n int) ([]Level, error) {
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 levels, got %d", n)
	}
	if lower <= 0 || upper <= lower {
		return nil, fmt.Errorf("invalid bounds: lower=%v upper=%v", lower, upper)
	}

	ratio := math.Pow(upper/lower, 1/float64(n-1))
	levels := make([]Level, n)
	for i := range levels {
		levels[i] = Level{
			Index:       i,
			Price:       lower * math.Pow(ratio, float64(i)),
			CloseTarget: -1,
		}
	}
	levels[0].Price = lower
	levels[n-1].Price = upper
	return levels, nil
}

// assignSides locks every rung at or below the anchor to BUY and every
// rung above to SELL, then fixes the close-target mapping: a BUY rung
// closes at the nearest SELL rung above it, a SELL rung at the nearest
// BUY rung below it. The mapping is static until a wholesale rebuild.
func assignSides(levels []Level, anchor float64) {
	for i := range levels {
		if levels[i].Price <= anchor {
			levels[i].Side = domain.SideBuy
		} else {
			levels[i].Side = domain.SideSell
		}
		levels[i].CloseTarget = -1
		levels[i].CloseSources = nil
	}

	for i := range levels {
		switch levels[i].Side {
		case domain.SideBuy:
			for j := i + 1; j < len(levels); j++ {
				if levels[j].Side == domain.SideSell {
					levels[i].CloseTarget = j
					levels[j].CloseSources = append(levels[j].CloseSources, i)
					break
				}
			}
		case domain.SideSell:
			for j := i - 1; j >= 0; j-- {
				if levels[j].Side == domain.SideBuy {
					levels[i].CloseTarget = j
					levels[j].CloseSources = append(levels[j].CloseSources, i)
					break
				}
			}
		}
	}
}

// nearestProfitableExit picks the rung for a reduce-only order closing an
// inherited position: for a SELL exit the lowest SELL rung strictly above
// the entry price, for a BUY exit the highest BUY rung strictly below it.
// Falls back to the outermost rung of that side; -1 when the side has no
// rungs at all.
func nearestProfitableExit(levels []Level, exitSide domain.Side, entryPrice float64) int {
	best := -1
	if exitSide == domain.SideSell {
		for i := range levels {
			if levels[i].Side != domain.SideSell {
				continue
			}
			if levels[i].Price > entryPrice {
				return i
			}
			best = i // highest sell seen so far
		}
		return best
	}
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i].Side != domain.SideBuy {
			continue
		}
		if levels[i].Price < entryPrice {
			return i
		}
		best = i // lowest buy seen so far
	}
	return best
}
