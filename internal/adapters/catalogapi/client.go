// Package catalogapi talks to the hotel management service, which owns room
// calendars (stock and nightly price per date).
package catalogapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"stayfinder/internal/adapters/observability"
	"stayfinder/internal/domain"
)

const maxAttempts = 4

var (
	ErrNotFound     = fmt.Errorf("catalog api: %w", domain.ErrNotFound)
	ErrUnauthorized = errors.New("catalog api: 401 unauthorized")
	ErrForbidden    = errors.New("catalog api: 403 forbidden")
)

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
	// first retry delay; doubles per attempt
	baseDelay time.Duration
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:      strings.TrimRight(base, "/"),
		hc:        &http.Client{Timeout: 20 * time.Second},
		key:       key,
		rl:        rate.NewLimiter(rate.Limit(rps), rps),
		baseDelay: 200 * time.Millisecond,
	}, nil
}

// GetCalendar returns the raw calendar payload for [from, to). The newer
// /calendar endpoint is tried first, then the legacy /inventory one.
func (c *Client) GetCalendar(ctx context.Context, hotelID int64, from, to string) (map[string]any, error) {
	q := url.Values{"from": {from}, "to": {to}}
	legacy := url.Values{"start": {from}, "end": {to}}
	candidates := []struct{ endpoint, url string }{
		{"calendar", fmt.Sprintf("%s/hotels/%d/calendar?%s", c.base, hotelID, q.Encode())},
		{"inventory", fmt.Sprintf("%s/hotels/%d/inventory?%s", c.base, hotelID, legacy.Encode())},
	}

	var last error
	for _, cand := range candidates {
		var out map[string]any
		err := c.get(ctx, cand.endpoint, cand.url, &out)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		last = err
	}
	return nil, last
}

// get performs a rate-limited GET and decodes JSON into out. 429 and
// transient 5xx are retried with exponential backoff, honouring Retry-After.
func (c *Client) get(ctx context.Context, endpoint, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.baseDelay
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, maxAttempts-1), ctx)
	policy.Reset()

	for {
		wait, err := c.try(ctx, endpoint, u, out)
		if err == nil || wait < 0 {
			return err
		}
		next := policy.NextBackOff()
		if next == backoff.Stop {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if wait == 0 {
			wait = next
		}
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}
}

// try makes one attempt. wait < 0 means the error is final; wait == 0 means
// retry after the policy's delay; wait > 0 is a server-provided delay.
func (c *Client) try(ctx context.Context, endpoint, u string, out any) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return -1, err
	}
	req.Header.Set("X-API-Key", c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "stayfinder/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("hotel-mgmt", endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return 0, err
	}
	defer resp.Body.Close()
	observability.ObserveExternal("hotel-mgmt", endpoint, resp.StatusCode, time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK:
		return -1, json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return -1, ErrNotFound
	case http.StatusUnauthorized:
		return -1, ErrUnauthorized
	case http.StatusForbidden:
		return -1, ErrForbidden
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		_, _ = io.Copy(io.Discard, resp.Body)
		return retryAfter(resp), fmt.Errorf("catalog api: remote %d", resp.StatusCode)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return -1, fmt.Errorf("catalog api: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date); 0 if absent or invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
