package fetch

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeFetcher renders pages in headless Chrome before returning their
// HTML. It exists for periods when the source site gates plain HTTP clients
// behind scripted challenges; the extraction tiers see the same raw markup
// either way.
type ChromeFetcher struct {
	allocCtx     context.Context
	cancelAlloc  context.CancelFunc
	cancelSilent context.CancelFunc
	minDelay     time.Duration
	timeout      time.Duration

	mu      sync.Mutex
	lastReq time.Time
}

// NewChromeFetcher starts a headless Chrome allocator. chromeBin may be
// empty, in which case common install locations are searched.
func NewChromeFetcher(chromeBin string, minDelay, timeout time.Duration) *ChromeFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if bin := findChromeBinary(chromeBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &ChromeFetcher{
		allocCtx:     silentCtx,
		cancelAlloc:  cancelAlloc,
		cancelSilent: cancelSilent,
		minDelay:     minDelay,
		timeout:      timeout,
	}
}

// Fetch navigates to url and returns the rendered document HTML.
func (f *ChromeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.waitPoliteness(ctx); err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	tabCtx, cancel := chromedp.NewContext(f.allocCtx)
	defer cancel()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	return []byte(html), nil
}

// Close shuts down the browser allocator.
func (f *ChromeFetcher) Close() {
	f.cancelSilent()
	f.cancelAlloc()
}

func (f *ChromeFetcher) waitPoliteness(ctx context.Context) error {
	f.mu.Lock()
	wait := f.minDelay - time.Since(f.lastReq)
	f.lastReq = time.Now().Add(wait)
	f.mu.Unlock()

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

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
