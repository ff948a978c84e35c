package flyer

import (
	"context"
	"log/slog"
	"time"

	"github.com/groceryroute/flyer-comb/app/config"
	"github.com/groceryroute/flyer-comb/app/database"
)

// ItemExtractor turns one candidate item into a product record, or decides
// to skip it. The cheap path reads price and unit off the item's detail
// page; when the price element never shows up the extractor hands the
// item's image to the vision fallback. It never returns a partial record.
type ItemExtractor struct {
	fetcher  PageFetcher
	parser   *Parser
	fallback FallbackExtractor
	namer    *Namer
	profile  *config.Profile
}

func NewItemExtractor(fetcher PageFetcher, parser *Parser, fallback FallbackExtractor,
	namer *Namer, profile *config.Profile) *ItemExtractor {
	return &ItemExtractor{
		fetcher:  fetcher,
		parser:   parser,
		fallback: fallback,
		namer:    namer,
		profile:  profile,
	}
}

// Extract returns a complete product and true, or nil and false when the
// item should be skipped.
func (e *ItemExtractor) Extract(ctx context.Context, item ItemRef) (*database.Product, bool) {
	if product, ok := e.structuredAttempt(ctx, item); ok {
		return product, true
	}

	return e.visionFallback(ctx, item)
}

func (e *ItemExtractor) structuredAttempt(ctx context.Context, item ItemRef) (*database.Product, bool) {
	timeout := time.Duration(e.profile.Settings.PriceTimeout) * time.Second

	html, err := e.fetcher.FetchHTML(ctx, item.URL, e.profile.Selectors.ItemPrice, timeout)
	if err != nil {
		slog.Debug("Structured extraction failed, falling back to vision",
			"item", item.ID, "url", item.URL, "error", err)
		return nil, false
	}

	price, unit, err := e.parser.ParseItemPage(html)
	if err != nil {
		slog.Debug("Item page did not yield a price, falling back to vision",
			"item", item.ID, "error", err)
		return nil, false
	}

	if price <= 0 {
		slog.Debug("Structured price not positive, falling back to vision",
			"item", item.ID, "price", price)
		return nil, false
	}

	return &database.Product{
		ProductID:   item.ID,
		ProductName: e.namer.Normalize(ctx, item.Label),
		Price:       price,
		Unit:        unit,
		URL:         item.URL,
		ImageURL:    item.ImageURL,
	}, true
}

func (e *ItemExtractor) visionFallback(ctx context.Context, item ItemRef) (*database.Product, bool) {
	if item.ImageURL == "" {
		slog.Debug("No image to fall back to, skipping item", "item", item.ID)
		return nil, false
	}

	result := e.fallback.Infer(ctx, item.ImageURL)
	if !result.Valid || result.Name == "" || result.Price <= 0 {
		slog.Debug("Vision fallback did not yield a usable product, skipping item",
			"item", item.ID, "valid", result.Valid, "name", result.Name, "price", result.Price)
		return nil, false
	}

	unit := result.Unit
	if unit == "" {
		unit = "each"
	}

	return &database.Product{
		ProductID:   item.ID,
		ProductName: result.Name,
		Price:       result.Price,
		Unit:        unit,
		URL:         item.URL,
		ImageURL:    item.ImageURL,
	}, true
}
