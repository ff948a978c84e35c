package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Fetcher renders pages in a headless browser and returns their markup once
// a named element has appeared. One Fetcher owns one browser allocator for
// the whole process lifetime; Close tears it down.
type Fetcher struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

func NewFetcher(userAgent string) *Fetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(2000, 2000),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
	}
}

// FetchHTML navigates to a URL, waits for waitSelector to become visible
// within the timeout and returns the rendered document markup.
func (f *Fetcher) FetchHTML(ctx context.Context, url, waitSelector string, timeout time.Duration) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	defer cancelTab()

	fetchCtx, cancelFetch := context.WithTimeout(tabCtx, timeout)
	defer cancelFetch()

	go func() {
		select {
		case <-ctx.Done():
			cancelTab()
		case <-fetchCtx.Done():
		}
	}()

	slog.Debug("Navigating", "url", url, "wait_for", waitSelector)

	var html string
	err := chromedp.Run(fetchCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}

	return html, nil
}

// Close shuts the browser allocator down.
func (f *Fetcher) Close() {
	f.cancelAlloc()
}
