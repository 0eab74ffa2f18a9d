package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const userAgent = "Mozilla/5.0 (compatible; HouseMarketAnalyser/1.0; +https://example.com/bot)"

// Error is a failed page retrieval: network failure, timeout or a non-2xx
// response. It is always transient and per-request; retry policy lives with
// the caller.
type Error struct {
	URL        string
	StatusCode int // 0 when the request never produced a response
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher retrieves the raw content of one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client is the plain-HTTP Fetcher. It enforces a minimum delay between
// consecutive requests (politeness contract) and performs no retries.
type Client struct {
	http     *http.Client
	minDelay time.Duration

	mu      sync.Mutex
	lastReq time.Time
}

// NewClient creates a Client with the given politeness delay and timeout.
func NewClient(minDelay time.Duration, timeout time.Duration) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		minDelay: minDelay,
	}
}

// Fetch retrieves url, waiting out the politeness delay first.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.waitPoliteness(ctx); err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	return body, nil
}

func (c *Client) waitPoliteness(ctx context.Context) error {
	c.mu.Lock()
	wait := c.minDelay - time.Since(c.lastReq)
	c.lastReq = time.Now().Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
