package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"rates-app/internal/domain"
)

const (
	DefaultURL     = "https://www.cbr-xml-daily.ru/daily_json.js"
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

type cbrPayload struct {
	Date         string                   `json:"Date"`
	PreviousDate string                   `json:"PreviousDate"`
	Valute       map[string]domain.Valute `json:"Valute"`
}

type Client struct {
	url        string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	now        func() time.Time
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		cp := *hc
		c.httpClient = &cp
	}
}

func WithBreakerSettings(st gobreaker.Settings) ClientOption {
	return func(c *Client) {
		if st.IsSuccessful == nil {
			st.IsSuccessful = ignoreCancel
		}
		c.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

func withClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "cbr-source",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: ignoreCancel,
	}
}

func ignoreCancel(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func NewClient(url string, opts ...ClientOption) *Client {
	if url == "" {
		url = DefaultURL
	}

	c := &Client{
		url:        url,
		userAgent:  "rates-app/1.0",
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 {
		c.httpClient.Timeout = c.timeout
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = DefaultTimeout
	}
	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker(DefaultBreakerSettings())
	}
	return c
}

func (c *Client) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchError{Kind: domain.Unreachable, Err: err}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.FetchError{Kind: domain.Unreachable, Err: err}
		}
		return nil, err
	}
	return result.(*domain.Snapshot), nil
}

func (c *Client) State() string {
	return c.breaker.State().String()
}

func (c *Client) fetch(ctx context.Context) (*domain.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.Unreachable, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.Unreachable, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &domain.FetchError{
			Kind:       domain.BadStatus,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.Unreachable, Err: fmt.Errorf("read response: %w", err)}
	}

	snapshot, err := decodeSnapshot(body)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.ParseError, Err: err}
	}
	snapshot.CapturedAt = c.now().UTC()
	return snapshot, nil
}

func decodeSnapshot(body []byte) (*domain.Snapshot, error) {
	var payload cbrPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if payload.Valute == nil {
		return nil, errors.New("response has no Valute section")
	}

	keys := make([]string, 0, len(payload.Valute))
	for k := range payload.Valute {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	snapshot := &domain.Snapshot{
		Date:         payload.Date,
		PreviousDate: payload.PreviousDate,
		Valute:       make([]domain.Valute, 0, len(keys)),
	}
	for _, k := range keys {
		v := payload.Valute[k]
		if v.CharCode == "" {
			v.CharCode = k
		}
		snapshot.Valute = append(snapshot.Valute, v)
	}
	return snapshot, nil
}
