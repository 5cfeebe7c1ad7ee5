// Package pricing implements the Executor's tick-alignment and size
// quantization math (spec §4.4, §9 "Numeric precision"). The Executor's
// price/size rounding is done here on
// github.com/shopspring/decimal rather than float64 so rounding behavior is
// exact and reviewable independent of the IEEE-754 representation the rest
// of the pipeline uses for notionals.
package pricing

import "github.com/shopspring/decimal"

// MinPrice and MaxPrice bound every CLOB limit price.
const (
	MinPrice = 0.01
	MaxPrice = 0.99
)

// sizePrecisionLadder is the retry order the Executor walks when the venue
// rejects an order for "invalid amounts": 5 decimals first, then 4, then 3.
var sizePrecisionLadder = []int32{5, 4, 3}

// SizePrecisions returns the decimal-place ladder to retry size quantization
// at, in order.
func SizePrecisions() []int32 {
	out := make([]int32, len(sizePrecisionLadder))
	copy(out, sizePrecisionLadder)
	return out
}

// AlignPrice rounds ref to the nearest tick using half-up rounding, then
// clamps to [MinPrice, MaxPrice] and rounds to 4 decimal places. Clamping
// happens after alignment so a reference price computed just outside the
// venue's bounds still lands on a valid tick.
func AlignPrice(ref, tick float64) float64 {
	if tick <= 0 {
		tick = 0.001
	}
	r := decimal.NewFromFloat(ref)
	t := decimal.NewFromFloat(tick)

	ticks := r.DivRound(t, 0).Round(0) // round-half-up to nearest whole tick count
	aligned := ticks.Mul(t)

	min := decimal.NewFromFloat(MinPrice)
	max := decimal.NewFromFloat(MaxPrice)
	if aligned.LessThan(min) {
		aligned = min
	}
	if aligned.GreaterThan(max) {
		aligned = max
	}
	f, _ := aligned.Round(4).Float64()
	return f
}

// QuantizeSize floors notional/price to precision decimal places, returning
// false if the result is non-positive (nothing tradeable at that precision).
func QuantizeSize(notional, price float64, precision int32) (float64, bool) {
	if price <= 0 {
		return 0, false
	}
	n := decimal.NewFromFloat(notional)
	p := decimal.NewFromFloat(price)
	raw := n.Div(p)
	floored := raw.Truncate(precision)
	if floored.Sign() <= 0 {
		return 0, false
	}
	f, _ := floored.Float64()
	return f, true
}

// RoundHalfUp2 rounds v to 2 decimal places, half-up — the quote-precision
// rule for marketable buys (spec §4.4: "marketable buy requires quote
// precision <= 2 decimals").
func RoundHalfUp2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
