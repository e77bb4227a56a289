// Package oracle queries token prices. The Client never fails: unknown
// values are reported as zero.
package oracle

import (
	"context"
	"math"
	"time"

	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/logger"
	"solana-trend-monitor/internal/observability"
)

// Lookup resolves the current quote of an identifier.
type Lookup interface {
	Lookup(ctx context.Context, identifier string) (domain.Quote, error)
}

// Client wraps a Lookup and converts every failure into the zero Quote.
type Client struct {
	lookup Lookup
	log    *logger.Entry
}

// NewClient creates a Client. A nil log discards output.
func NewClient(lookup Lookup, log *logger.Entry) *Client {
	if log == nil {
		log = logger.Discard().WithComponent("oracle")
	}
	return &Client{lookup: lookup, log: log}
}

// Quote returns the current price and market cap, or {0,0} if unknown.
// Negative and non-finite values are reported as zero.
func (c *Client) Quote(ctx context.Context, identifier string) domain.Quote {
	start := time.Now()
	q, err := c.lookup.Lookup(ctx, identifier)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		observability.RecordOracleLookup("error", elapsed)
		c.log.WithError(err).WithField("identifier", identifier).Warn("price lookup failed")
		return domain.Quote{}
	}

	q.Price = sanitize(q.Price)
	q.MarketCap = sanitize(q.MarketCap)

	if q.Known() {
		observability.RecordOracleLookup("ok", elapsed)
	} else {
		observability.RecordOracleLookup("unknown", elapsed)
	}
	return q
}

func sanitize(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
