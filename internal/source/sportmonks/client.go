package sportmonks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/matchsync/internal/domain"
	"github.com/timmy/matchsync/internal/logger"
	"github.com/timmy/matchsync/internal/source"
	"golang.org/x/time/rate"
)

const (
	defaultMaxBulkSize = 10
	defaultPerPage     = 50
	maxErrorBody       = 512
)

// Config holds client settings.
type Config struct {
	BaseURL     string
	APIToken    string
	Timeout     time.Duration
	MaxBulkSize int
	PerPage     int
	MaxPages    int // 0 means follow has_more to the end
}

// RequestObserver receives one call per HTTP round trip.
type RequestObserver interface {
	ObserveRequest(endpoint string, statusCode int, elapsed time.Duration)
}

// Client talks to the Sportmonks v3 football API. Every request, including
// each page of a paginated call, waits on the shared limiter first.
type Client struct {
	client      *resty.Client
	limiter     source.Limiter
	observer    RequestObserver
	maxBulkSize int
	perPage     int
	maxPages    int
}

// NewLimiter returns a limiter that admits one request per delay.
func NewLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// NewClient creates a new API client.
// Parameters:
//   - cfg: endpoint, credentials and paging settings.
//   - limiter: shared request pacer; nil disables pacing.
// Returns:
//   - *Client: ready-to-use client.
func NewClient(cfg *Config, limiter source.Limiter) *Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("Accept", "application/json")
	if cfg.APIToken != "" {
		client.SetQueryParam("api_token", cfg.APIToken)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	if limiter == nil {
		limiter = NewLimiter(0)
	}

	c := &Client{
		client:      client,
		limiter:     limiter,
		maxBulkSize: cfg.MaxBulkSize,
		perPage:     cfg.PerPage,
		maxPages:    cfg.MaxPages,
	}
	if c.maxBulkSize <= 0 {
		c.maxBulkSize = defaultMaxBulkSize
	}
	if c.perPage <= 0 {
		c.perPage = defaultPerPage
	}
	return c
}

// WithObserver attaches a request observer (metrics).
func (c *Client) WithObserver(o RequestObserver) *Client {
	c.observer = o
	return c
}

// MaxBulkSize returns the largest id list accepted by FetchBulk.
func (c *Client) MaxBulkSize() int {
	return c.maxBulkSize
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		HasMore     bool `json:"has_more"`
		CurrentPage int  `json:"current_page"`
	} `json:"pagination"`
	Message string `json:"message"`
}

// FetchBulk fetches /fixtures/multi/{ids} with the given includes.
func (c *Client) FetchBulk(ctx context.Context, ids []int64, include []string) (map[int64]domain.Payload, error) {
	if len(ids) == 0 {
		return map[int64]domain.Payload{}, nil
	}
	if len(ids) > c.maxBulkSize {
		return nil, fmt.Errorf("bulk fetch of %d ids exceeds limit %d", len(ids), c.maxBulkSize)
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	path := "/fixtures/multi/" + strings.Join(parts, ",")

	out := make(map[int64]domain.Payload, len(ids))
	err := c.paginate(ctx, path, include, false, func(page []domain.Payload) error {
		for _, item := range page {
			id, ok := item.Int("id")
			if !ok {
				continue
			}
			out[id] = item
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Pages walks a paginated collection endpoint such as /teams.
func (c *Client) Pages(ctx context.Context, endpoint string, include []string, fn func(page []domain.Payload) error) error {
	return c.paginate(ctx, endpoint, include, true, fn)
}

func (c *Client) paginate(ctx context.Context, path string, include []string, perPage bool, fn func([]domain.Payload) error) error {
	for page := 1; ; page++ {
		params := map[string]string{"page": strconv.Itoa(page)}
		if len(include) > 0 {
			params["include"] = strings.Join(include, ";")
		}
		if perPage {
			params["per_page"] = strconv.Itoa(c.perPage)
		}

		env, err := c.get(ctx, path, params)
		if err != nil {
			return err
		}

		items, err := decodeData(env.Data)
		if err != nil {
			return fmt.Errorf("decode %s page %d: %w", path, page, err)
		}
		if err := fn(items); err != nil {
			return err
		}

		if env.Pagination == nil || !env.Pagination.HasMore || len(items) == 0 {
			return nil
		}
		if c.maxPages > 0 && page >= c.maxPages {
			logger.CtxWarn(ctx, "Stopping %s at page limit %d", path, c.maxPages)
			return nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, params map[string]string) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	elapsed := time.Since(start)

	if err != nil {
		c.observe(path, 0, elapsed)
		return nil, &source.TransientError{Err: fmt.Errorf("GET %s: %w", path, err)}
	}
	c.observe(path, resp.StatusCode(), elapsed)

	logger.With(logger.Fields{
		logger.FieldDurationMs: elapsed.Milliseconds(),
		logger.FieldStatus:     resp.StatusCode(),
	}).Debug(ctx, "GET %s page %s", path, params["page"])

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: GET %s", source.ErrRateLimited, path)
	case resp.StatusCode() < 200 || resp.StatusCode() >= 300:
		body := string(resp.Body())
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &source.StatusError{StatusCode: resp.StatusCode(), Path: path, Body: body}
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", domain.ErrUnexpectedShape, path, err)
	}
	return &env, nil
}

func (c *Client) observe(path string, code int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpointLabel(path), code, elapsed)
	}
}

// decodeData accepts a list of objects, a single object, or null.
func decodeData(raw json.RawMessage) ([]domain.Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '{' {
		var one domain.Payload
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnexpectedShape, err)
		}
		return []domain.Payload{one}, nil
	}
	var many []domain.Payload
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnexpectedShape, err)
	}
	return many, nil
}

// endpointLabel drops id lists so metric labels stay bounded.
func endpointLabel(path string) string {
	if strings.HasPrefix(path, "/fixtures/multi/") {
		return "/fixtures/multi"
	}
	return path
}
