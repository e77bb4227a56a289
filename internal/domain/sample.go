package domain

// BaselineOffset names baseline rows in the price sample log.
const BaselineOffset = "baseline"

// PriceSample is one oracle measurement in the analytic sample log.
// Corresponds to price_samples table in ClickHouse.
type PriceSample struct {
	RecordID   int64   // tracking record id
	Identifier string  // token mint address
	Offset     string  // offset name or BaselineOffset
	Price      float64 // USD price, 0 = unknown
	MarketCap  float64 // USD market cap, 0 = unknown
	GainPct    float64 // gain against baseline (0 for baseline rows)
	SampledAt  int64   // Unix timestamp in milliseconds
}
