// Package px provides price-tick and quantity-step arithmetic for venue
// quanta. All venue-bound prices and quantities pass through here exactly
// once, at the boundary; engine logic keeps float64 internally.
package px

import (
	"math"

	"github.com/shopspring/decimal"
)

// DecimalsOf returns the number of fractional digits implied by a quantum
// such as 0.001. Quanta smaller than 1e-12 or non-positive report zero.
func DecimalsOf(quantum float64) int {
	if quantum <= 0 {
		return 0
	}
	d := 0
	for quantum < 1-1e-12 && d < 12 {
		quantum *= 10
		d++
	}
	return d
}

// FloorToStep floors qty down to an integer multiple of step.
// A non-positive step leaves qty untouched.
func FloorToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	q := decimal.NewFromFloat(qty)
	s := decimal.NewFromFloat(step)
	f, _ := q.Div(s).Floor().Mul(s).Float64()
	return f
}

// FloorToTick floors price down to an integer multiple of tick.
// A non-positive tick leaves price untouched.
func FloorToTick(price, tick float64) float64 {
	return FloorToStep(price, tick)
}

// RoundToTick rounds price to the nearest integer multiple of tick.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	f, _ := p.Div(t).Round(0).Mul(t).Float64()
	return f
}

// Format renders a value with exactly the fractional digits of the quantum.
// This is the canonical wire representation: two prices compare equal iff
// their formatted strings compare equal.
func Format(value, quantum float64) string {
	return decimal.NewFromFloat(value).StringFixed(int32(DecimalsOf(quantum)))
}

// Equal reports whether two values land on the same quantum cell.
func Equal(a, b, quantum float64) bool {
	if quantum <= 0 {
		return math.Abs(a-b) < 1e-12
	}
	return Format(a, quantum) == Format(b, quantum)
}
