// Package geocode resolves street addresses to coordinates via the Census
// Bureau Geocoder, one bounded batch at a time.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Match statuses reported by the Census batch geocoder, passed through
// unchanged. An unmatched address still appears in the output with
// StatusNoMatch and zero coordinates.
const (
	StatusMatch   = "Match"
	StatusNoMatch = "No_Match"
	StatusTie     = "Tie"
)

// Client submits bounded address batches to an external geocoding service.
// Implementations are pure functions of address content, so resubmitting
// the same batch is safe.
type Client interface {
	// Geocode geocodes a single address.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)

	// BatchGeocode geocodes one bounded batch, returning one Result per
	// submitted address in input order.
	BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error)
}

// AddressInput is one address row submitted for geocoding. ID is preserved
// through the round trip so results can be re-joined to their voters.
type AddressInput struct {
	ID      string
	Street  string
	City    string
	State   string
	ZipCode string
}

// Complete reports whether the row carries the components the batch
// service requires. Incomplete rows must never be submitted.
func (a AddressInput) Complete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.ZipCode) != ""
}

// Result is the fixed-schema record the geocoder returns per submitted
// row. Coordinates are only meaningful when MatchStatus is StatusMatch.
type Result struct {
	ID             string
	InputAddress   string
	MatchStatus    string // Match, No_Match, Tie
	MatchType      string // Exact, Non_Exact; empty when unmatched
	MatchedAddress string
	Latitude       float64
	Longitude      float64
	TigerLineID    string
	Side           string
}

// Matched reports whether the service resolved the row to coordinates.
func (r Result) Matched() bool { return r.MatchStatus == StatusMatch }

// Option configures the Census client.
type Option func(*censusClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *censusClient) { c.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit for Census API calls.
func WithRateLimit(rps float64) Option {
	return func(c *censusClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)) }
}

// WithBaseURL points the client at an alternate geocoder endpoint. Tests
// use this to swap in an httptest server.
func WithBaseURL(base string) Option {
	return func(c *censusClient) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithBenchmark overrides the Census benchmark dataset name.
func WithBenchmark(benchmark string) Option {
	return func(c *censusClient) { c.benchmark = benchmark }
}

type censusClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	benchmark  string
}

// NewClient creates a Census Geocoder client with the given options.
func NewClient(opts ...Option) Client {
	c := &censusClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(50, 50), // Census default: 50 req/s
		baseURL:    censusBaseURL,
		benchmark:  censusBenchmark,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
