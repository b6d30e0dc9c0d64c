// Package marketdata is the read-only client for the upstream market data
// provider. Non-success responses, malformed JSON and empty payloads are all
// reported as fetch failures; the synchronizer decides whether to fall back
// to stale data.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrEmptyPayload is returned when the provider answers successfully but with
// no usable records. Treated identically to a network failure by callers.
var ErrEmptyPayload = errors.New("upstream returned empty payload")

// Client fetches typed records from the upstream provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a provider client with a bounded per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ProfileData is the provider's company profile record.
type ProfileData struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Exchange  string  `json:"exchange"`
	Sector    string  `json:"sector"`
	Currency  string  `json:"currency"`
	MarketCap float64 `json:"marketCap"`
	Status    string  `json:"status"`
}

// PriceData is one daily price record from the provider.
type PriceData struct {
	Symbol   string  `json:"symbol"`
	Date     string  `json:"date"` // YYYY-MM-DD
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	Volume   float64 `json:"volume"`
}

// RatingData is one dated analyst consensus record.
type RatingData struct {
	Symbol       string  `json:"symbol"`
	Date         string  `json:"date"`
	Consensus    string  `json:"consensus"`
	Score        float64 `json:"score"`
	AnalystCount int     `json:"analystCount"`
}

// EarningsData is one reported fiscal period record.
type EarningsData struct {
	Symbol       string  `json:"symbol"`
	PeriodEnd    string  `json:"periodEnd"`
	ReportedEPS  float64 `json:"reportedEps"`
	EstimatedEPS float64 `json:"estimatedEps"`
}

type envelope[T any] struct {
	Data          []T `json:"data"`
	TotalElements int `json:"totalElements"`
}

// FetchProfile fetches the company profile for a symbol.
func (c *Client) FetchProfile(ctx context.Context, symbol string) ([]ProfileData, error) {
	return fetchList[ProfileData](ctx, c, "/profile", url.Values{"symbol": {symbol}})
}

// FetchDailyPrices fetches up to size daily price rows, newest first.
func (c *Client) FetchDailyPrices(ctx context.Context, symbol string, size int) ([]PriceData, error) {
	return fetchList[PriceData](ctx, c, "/stock_prices", url.Values{
		"symbol": {symbol},
		"sort":   {"date:desc"},
		"size":   {fmt.Sprintf("%d", size)},
	})
}

// FetchRatings fetches recent analyst consensus readings, newest first.
func (c *Client) FetchRatings(ctx context.Context, symbol string, size int) ([]RatingData, error) {
	return fetchList[RatingData](ctx, c, "/analyst_ratings", url.Values{
		"symbol": {symbol},
		"sort":   {"date:desc"},
		"size":   {fmt.Sprintf("%d", size)},
	})
}

// FetchEarnings fetches recent earnings reports, newest first.
func (c *Client) FetchEarnings(ctx context.Context, symbol string, size int) ([]EarningsData, error) {
	return fetchList[EarningsData](ctx, c, "/earnings", url.Values{
		"symbol": {symbol},
		"sort":   {"periodEnd:desc"},
		"size":   {fmt.Sprintf("%d", size)},
	})
}

func fetchList[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "stocksignals/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider error (status %d): %s", resp.StatusCode, string(body))
	}

	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%s %s: %w", path, query.Get("symbol"), ErrEmptyPayload)
	}

	return env.Data, nil
}
