package domain

// Quote is a price oracle answer for one identifier.
// The zero value means "unknown": a zero price is never a real price.
type Quote struct {
	Price     float64 // USD price
	MarketCap float64 // USD market cap (fully diluted)
}

// Known reports whether the quote carries a usable price.
func (q Quote) Known() bool {
	return q.Price > 0
}
