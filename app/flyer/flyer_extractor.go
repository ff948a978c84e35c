package flyer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/groceryroute/flyer-comb/app/config"
	"github.com/groceryroute/flyer-comb/app/database"
)

// FlyerExtractor ingests one flyer: it verifies the page loaded, discovers
// candidate items, runs the item extractor on each through a bounded worker
// pool, and persists the successes. Item failures never abort the flyer;
// only a page that refuses to load after the retry budget does.
type FlyerExtractor struct {
	fetcher     PageFetcher
	parser      *Parser
	items       *ItemExtractor
	productRepo database.ProductRepository
	profile     *config.Profile
	maxRetries  int
	itemWorkers int
}

func NewFlyerExtractor(fetcher PageFetcher, parser *Parser, items *ItemExtractor,
	productRepo database.ProductRepository, profile *config.Profile,
	maxRetries, itemWorkers int) *FlyerExtractor {
	if itemWorkers < 1 {
		itemWorkers = 1
	}
	return &FlyerExtractor{
		fetcher:     fetcher,
		parser:      parser,
		items:       items,
		productRepo: productRepo,
		profile:     profile,
		maxRetries:  maxRetries,
		itemWorkers: itemWorkers,
	}
}

// Run processes one flyer and returns the number of products persisted.
// A non-nil error means the flyer page never verified and the flyer should
// stay pending for a future cycle.
func (e *FlyerExtractor) Run(ctx context.Context, flyer database.Flyer) (int, error) {
	html, err := e.loadFlyerPage(ctx, flyer.FlyerURL)
	if err != nil {
		return 0, err
	}

	storeChain, items, err := e.parser.ParseFlyerPage(html)
	if err != nil {
		return 0, fmt.Errorf("failed to parse flyer page: %w", err)
	}

	candidates := make([]ItemRef, 0, len(items))
	for _, item := range items {
		if e.profile.IsDenylisted(item.Label) {
			slog.Debug("Item label denylisted, skipping", "flyer", flyer.FlyerID, "label", item.Label)
			continue
		}
		candidates = append(candidates, item)
	}

	if max := e.profile.Settings.MaxItemsPerRun; max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}

	slog.Info("Extracting flyer items",
		"flyer", flyer.FlyerID,
		"store", storeChain,
		"candidates", len(candidates),
		"denylisted", len(items)-len(candidates))

	var (
		mu        sync.Mutex
		persisted int
		skipped   int
	)

	sem := make(chan struct{}, e.itemWorkers)
	var wg sync.WaitGroup

	for _, item := range candidates {
		wg.Add(1)
		sem <- struct{}{}

		go func(item ItemRef) {
			defer wg.Done()
			defer func() { <-sem }()

			ok := e.processItem(ctx, flyer.FlyerID, item)

			mu.Lock()
			if ok {
				persisted++
			} else {
				skipped++
			}
			mu.Unlock()
		}(item)
	}

	wg.Wait()

	slog.Info("Flyer extraction finished",
		"flyer", flyer.FlyerID,
		"store", storeChain,
		"persisted", persisted,
		"skipped", skipped)

	return persisted, nil
}

// loadFlyerPage fetches the flyer page, retrying the same URL a bounded
// number of times before declaring the flyer unprocessable for this run.
func (e *FlyerExtractor) loadFlyerPage(ctx context.Context, url string) (string, error) {
	timeout := time.Duration(e.profile.Settings.PageTimeout) * time.Second

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying flyer page load", "url", url, "attempt", attempt, "max_retries", e.maxRetries)
		}

		html, err := e.fetcher.FetchHTML(ctx, url, e.profile.Selectors.ItemContainer, timeout)
		if err == nil {
			return html, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("flyer page failed to load after %d attempts: %w", e.maxRetries+1, lastErr)
}

func (e *FlyerExtractor) processItem(ctx context.Context, flyerID int64, item ItemRef) bool {
	product, ok := e.items.Extract(ctx, item)
	if !ok {
		slog.Debug("Item skipped", "flyer", flyerID, "item", item.ID)
		return false
	}

	product.FlyerID = flyerID

	inserted, err := e.productRepo.InsertProduct(*product)
	if err != nil {
		slog.Error("Failed to persist product", "flyer", flyerID, "item", item.ID, "error", err)
		return false
	}

	if !inserted {
		slog.Debug("Product already persisted", "flyer", flyerID, "item", item.ID)
	} else {
		slog.Debug("Product persisted",
			"flyer", flyerID,
			"item", item.ID,
			"name", product.ProductName,
			"price", product.Price,
			"unit", product.Unit)
	}

	return true
}
