// Package ingest pulls store and deal listings from the pricing API and
// reconciles them into the store and deal tables.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/iliyamo/deal-finder/internal/metrics"
	"github.com/iliyamo/deal-finder/internal/utils"
)

// maxBodyBytes bounds a single upstream response.
const maxBodyBytes = 8 << 20

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.Path, e.Code)
}

// DealQuery narrows a deal listing request.
type DealQuery struct {
	StoreIDs   []int
	PageSize   int
	UpperPrice *decimal.Decimal // optional price ceiling
}

func (q DealQuery) values() url.Values {
	v := url.Values{}
	if len(q.StoreIDs) > 0 {
		ids := make([]string, len(q.StoreIDs))
		for i, id := range q.StoreIDs {
			ids[i] = strconv.Itoa(id)
		}
		v.Set("storeID", strings.Join(ids, ","))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.UpperPrice != nil {
		v.Set("upperPrice", q.UpperPrice.String())
	}
	return v
}

// Client talks to the pricing API.  Requests are throttled, bounded by the
// HTTP client timeout and retried on network errors and 5xx/429 responses.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retries int
	backoff time.Duration
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithBackoff sets the initial retry delay.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) { c.backoff = d }
}

// NewClient builds a client for baseURL.  rps <= 0 disables throttling.
func NewClient(baseURL string, timeout time.Duration, rps float64, retries int, opts ...ClientOption) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if retries < 0 {
		retries = 0
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		retries: retries,
		backoff: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stores fetches the full store list.
func (c *Client) Stores(ctx context.Context) ([]json.RawMessage, error) {
	return c.getList(ctx, "/stores", nil)
}

// Deals fetches one page of deals matching q.
func (c *Client) Deals(ctx context.Context, q DealQuery) ([]json.RawMessage, error) {
	return c.getList(ctx, "/deals", q.values())
}

// getList performs a GET and decodes a top-level JSON array, leaving every
// element raw so a bad item cannot fail the whole listing.
func (c *Client) getList(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body []byte
	err := utils.RetryWithBackoff(ctx, c.retries, c.backoff, func(attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return utils.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return utils.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "deal-finder/1.0")

		started := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.ObserveUpstream(path, "error", started)
			if ctx.Err() != nil {
				return utils.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()
		metrics.ObserveUpstream(path, strconv.Itoa(resp.StatusCode), started)

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return &StatusError{Path: path, Code: resp.StatusCode}
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return utils.Permanent(&StatusError{Path: path, Code: resp.StatusCode})
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("GET %s: expected a JSON array: %w", path, err)
	}
	if items == nil {
		return nil, fmt.Errorf("GET %s: expected a JSON array, got null", path)
	}
	return items, nil
}
