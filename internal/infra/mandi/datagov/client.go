package datagov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/agri-market/internal/domain/market"
)

const (
	defaultBaseURL = "https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070"
	defaultLimit   = 50
	defaultTimeout = 12 * time.Second
	maxBodyBytes   = 4 << 20
)

// Options configures the data.gov.in mandi price client.
type Options struct {
	BaseURL      string
	APIKey       string
	Limit        int
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// FetchObserver receives one outcome label per upstream attempt.
type FetchObserver interface {
	ObserveFetch(outcome string)
}

// Client fetches daily commodity prices from data.gov.in.
type Client struct {
	baseURL    string
	apiKey     string
	limit      int
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	observer   FetchObserver
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient builds an API client.
func NewClient(opts Options, observer FetchObserver, logger *slog.Logger) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		apiKey:     strings.TrimSpace(opts.APIKey),
		limit:      limit,
		maxRetries: max(opts.MaxRetries, 0),
		backoff:    opts.RetryBackoff,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		observer: observer,
		logger:   logger.With("component", "mandi.datagov"),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Fetch retrieves live records for one commodity. Failures are logged and
// reported as an empty, not-OK result.
func (c *Client) Fetch(ctx context.Context, commodity, category string) market.FetchResult {
	commodity = strings.TrimSpace(commodity)
	if commodity == "" {
		return market.FetchResult{}
	}

	var (
		raw []record
		err error
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				err = sleepErr
				break
			}
		}
		raw, err = c.fetchOnce(ctx, commodity)
		if err == nil || !isTransient(err) {
			break
		}
		c.logger.Warn("mandi fetch transient failure", "commodity", commodity, "attempt", attempt+1, "error", err)
	}
	if err != nil {
		c.logger.Warn("mandi fetch failed", "commodity", commodity, "error", err)
		return market.FetchResult{}
	}

	records := normalizeRecords(raw, commodity, category, c.now())
	c.logger.Debug("mandi fetch ok", "commodity", commodity, "raw", len(raw), "usable", len(records))
	return market.FetchResult{Records: records, OK: true}
}

func (c *Client) fetchOnce(ctx context.Context, commodity string) ([]record, error) {
	query := url.Values{}
	query.Set("api-key", c.apiKey)
	query.Set("format", "json")
	query.Set("limit", strconv.Itoa(c.limit))
	query.Set("filters[commodity]", commodity)
	endpoint := c.baseURL + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.observe("error")
		return nil, fmt.Errorf("build mandi request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("error")
		return nil, &transientError{err: fmt.Errorf("mandi request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe("status")
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		statusErr := fmt.Errorf("mandi request error: status=%d body=%s", resp.StatusCode, string(payload))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &transientError{err: statusErr}
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.observe("error")
		return nil, &transientError{err: fmt.Errorf("read mandi response: %w", err)}
	}

	var raw apiResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		c.observe("decode")
		return nil, fmt.Errorf("decode mandi response: %w", err)
	}
	c.observe("ok")
	return raw.Records, nil
}

func (c *Client) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveFetch(outcome)
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

type apiResponse struct {
	Records []record `json:"records"`
}

type record struct {
	Commodity   string    `json:"commodity"`
	State       string    `json:"state"`
	District    string    `json:"district"`
	Market      string    `json:"market"`
	Variety     string    `json:"variety"`
	Grade       string    `json:"grade"`
	MinPrice    flexFloat `json:"min_price"`
	MaxPrice    flexFloat `json:"max_price"`
	ModalPrice  flexFloat `json:"modal_price"`
	ArrivalDate string    `json:"arrival_date"`
	Arrivals    flexFloat `json:"arrivals_in_qtl"`
}

// flexFloat accepts numbers encoded either as JSON numbers or strings.
// Unparseable values are treated as missing.
type flexFloat struct {
	value float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return nil
	}
	text = strings.ReplaceAll(strings.Trim(text, `"`), ",", "")
	if text == "" {
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.value, f.valid = v, true
	return nil
}

func normalizeRecords(records []record, commodity, category string, now time.Time) []market.PriceRecord {
	out := make([]market.PriceRecord, 0, len(records))
	for _, rec := range records {
		if !rec.ModalPrice.valid || rec.ModalPrice.value <= 0 {
			continue
		}
		price := rec.ModalPrice.value
		minPrice, maxPrice := price, price
		if rec.MinPrice.valid && rec.MinPrice.value > 0 {
			minPrice = math.Min(rec.MinPrice.value, price)
		}
		if rec.MaxPrice.valid && rec.MaxPrice.value > 0 {
			maxPrice = math.Max(rec.MaxPrice.value, price)
		}

		trending, change, changePercent := market.DeriveTrend(price, minPrice, maxPrice)

		quantity := 0.0
		if rec.Arrivals.valid && rec.Arrivals.value > 0 {
			quantity = rec.Arrivals.value
		}

		out = append(out, market.PriceRecord{
			Commodity:     commodity,
			DisplayName:   firstNonEmpty(strings.TrimSpace(rec.Commodity), commodity),
			Category:      category,
			Price:         price,
			MinPrice:      minPrice,
			MaxPrice:      maxPrice,
			Market:        strings.TrimSpace(rec.Market),
			District:      strings.TrimSpace(rec.District),
			State:         strings.TrimSpace(rec.State),
			Unit:          market.UnitPerQuintal,
			Variety:       firstNonEmpty(strings.TrimSpace(rec.Variety), market.DefaultVariety),
			Grade:         firstNonEmpty(strings.TrimSpace(rec.Grade), market.DefaultGrade),
			ArrivalDate:   parseArrival(rec.ArrivalDate, now),
			Quantity:      quantity,
			Trending:      trending,
			Change:        change,
			ChangePercent: changePercent,
			SourceTier:    market.TierLive,
		})
	}
	return out
}

func parseArrival(value string, now time.Time) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"02/01/2006", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ market.Gateway = (*Client)(nil)
