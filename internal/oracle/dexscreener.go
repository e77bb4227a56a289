package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"solana-trend-monitor/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL           = "https://api.dexscreener.com"
	DefaultTimeout           = 10 * time.Second
	DefaultRequestsPerMinute = 300
	DefaultBurst             = 5
)

// ErrNoPairs is returned when the token has no trading pairs.
var ErrNoPairs = errors.New("no pairs for token")

// ErrNotFinite is returned when the API reports a NaN or infinite price.
var ErrNotFinite = errors.New("value is not finite")

// DexScreener implements Lookup against the DEXScreener tokens endpoint.
type DexScreener struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// DexOption configures DexScreener.
type DexOption func(*DexScreener)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) DexOption {
	return func(d *DexScreener) {
		d.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(t time.Duration) DexOption {
	return func(d *DexScreener) {
		d.client.Timeout = t
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) DexOption {
	return func(d *DexScreener) {
		d.client = client
	}
}

// WithRateLimit limits requests per minute with the given burst.
// A non-positive rpm disables limiting.
func WithRateLimit(rpm, burst int) DexOption {
	return func(d *DexScreener) {
		if rpm <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	}
}

// NewDexScreener creates a DEXScreener lookup.
func NewDexScreener(opts ...DexOption) *DexScreener {
	d := &DexScreener{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(float64(DefaultRequestsPerMinute)/60.0), DefaultBurst),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// tokensResponse is the subset of /latest/dex/tokens/{address} we read.
type tokensResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	PriceUSD  string   `json:"priceUsd"`
	FDV       *float64 `json:"fdv"`
	MarketCap *float64 `json:"marketCap"`
}

// Lookup fetches the first pair's USD price and market cap.
func (d *DexScreener) Lookup(ctx context.Context, identifier string) (domain.Quote, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return domain.Quote{}, fmt.Errorf("rate limit: %w", err)
	}

	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, url.PathEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Quote{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Quote{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Pairs) == 0 {
		return domain.Quote{}, ErrNoPairs
	}

	p := parsed.Pairs[0]
	var q domain.Quote
	if p.PriceUSD != "" {
		price, err := strconv.ParseFloat(p.PriceUSD, 64)
		if err != nil {
			return domain.Quote{}, fmt.Errorf("parse priceUsd %q: %w", p.PriceUSD, err)
		}
		if math.IsNaN(price) || math.IsInf(price, 0) {
			return domain.Quote{}, fmt.Errorf("parse priceUsd %q: %w", p.PriceUSD, ErrNotFinite)
		}
		q.Price = price
	}
	switch {
	case p.FDV != nil:
		q.MarketCap = *p.FDV
	case p.MarketCap != nil:
		q.MarketCap = *p.MarketCap
	}
	return q, nil
}

// Compile-time interface check.
var _ Lookup = (*DexScreener)(nil)
