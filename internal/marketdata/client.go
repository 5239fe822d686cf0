package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second
)

// HTTPClient implements BarProvider and SplitProvider against a REST bars
// API (GET /v1/bars, GET /v1/splits).
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new market data HTTP client.
func NewHTTPClient(baseURL, apiKey string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface checks.
var (
	_ BarProvider   = (*HTTPClient)(nil)
	_ SplitProvider = (*HTTPClient)(nil)
)

// barRow is the wire shape of one minute bar.
type barRow struct {
	Timestamp int64   `json:"t"` // Unix ms
	Price     float64 `json:"p"`
}

// FetchDayBars returns the blob for a single day, or nil for closed days.
func (c *HTTPClient) FetchDayBars(ctx context.Context, symbol string, day time.Time) (*domain.DayBlob, error) {
	d := calendar.Day(day)
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("day", d.Format("2006-01-02"))

	var rows []barRow
	if err := c.get(ctx, "/v1/bars", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// No rows means no trading that day.
		return nil, nil
	}

	base := d.UnixMilli()
	blob := &domain.DayBlob{
		Symbol:         symbol,
		Day:            d,
		FirstTimestamp: rows[0].Timestamp,
		LastTimestamp:  rows[len(rows)-1].Timestamp,
		RowCount:       len(rows),
		Points:         make([]domain.PricePoint, len(rows)),
	}
	for i, r := range rows {
		blob.Points[i] = domain.PricePoint{
			OffsetMs: uint32(r.Timestamp - base),
			Price:    r.Price,
		}
	}
	return blob, nil
}

// splitRowWire is the wire shape of one split.
type splitRowWire struct {
	EffectiveDate string  `json:"effective_date"` // YYYY-MM-DD
	Factor        float64 `json:"factor"`
}

// FetchSplits returns all known splits for the symbol.
func (c *HTTPClient) FetchSplits(ctx context.Context, symbol string) ([]domain.Split, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var rows []splitRowWire
	if err := c.get(ctx, "/v1/splits", q, &rows); err != nil {
		return nil, err
	}

	splits := make([]domain.Split, 0, len(rows))
	for _, r := range rows {
		day, err := time.Parse("2006-01-02", r.EffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("parse split date %q: %w", r.EffectiveDate, err)
		}
		splits = append(splits, domain.Split{EffectiveDate: day, Factor: r.Factor})
	}
	return splits, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
