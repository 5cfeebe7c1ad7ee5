package domain

import "strconv"

// OrderBook is a snapshot of a CLOB token's resting orders plus its tick size.
type OrderBook struct {
	TokenID  string
	TickSize float64
	Bids     []BookEntry // sorted highest to lowest price
	Asks     []BookEntry // sorted lowest to highest price
}

// BookEntry is one price level in an OrderBook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBid returns the highest bid price, or 0 if the book has no bids.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 if the book has no asks.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// ParsePrice converts a decimal-string price field from the CLOB JSON wire
// format to float64, returning 0 on malformed input.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
