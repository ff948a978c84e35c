package flyer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/groceryroute/flyer-comb/app/vision"
)

type fakeFetcher struct {
	pages   map[string]string
	err     error
	calls   int
	lastSel string
}

func (f *fakeFetcher) FetchHTML(ctx context.Context, url, waitSelector string, timeout time.Duration) (string, error) {
	f.calls++
	f.lastSel = waitSelector
	if f.err != nil {
		return "", f.err
	}
	html, ok := f.pages[url]
	if !ok {
		return "", errors.New("page not found")
	}
	return html, nil
}

type fakeFallback struct {
	result vision.Result
	calls  int
}

func (f *fakeFallback) Infer(ctx context.Context, imageURL string) vision.Result {
	f.calls++
	return f.result
}

func newTestItemExtractor(fetcher *fakeFetcher, fallback *fakeFallback) *ItemExtractor {
	profile := testProfile()
	parser := NewParser(profile)
	namer := NewNamer(&fakeTranslator{echoes: true})
	return NewItemExtractor(fetcher, parser, fallback, namer, profile)
}

func TestItemExtractor_StructuredPath(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/item/9001": itemPageHTML,
	}}
	fallback := &fakeFallback{}
	extractor := newTestItemExtractor(fetcher, fallback)

	item := ItemRef{
		ID:       "9001",
		Label:    "Riz Basmati | Basmati Rice",
		URL:      "https://example.com/item/9001",
		ImageURL: "https://img.example.com/9001.jpg",
	}

	product, ok := extractor.Extract(context.Background(), item)
	if !ok {
		t.Fatal("Expected a product from the structured path")
	}

	if product.ProductID != "9001" {
		t.Errorf("Expected product id 9001, got %s", product.ProductID)
	}
	if product.ProductName != "Basmati Rice" {
		t.Errorf("Expected name 'Basmati Rice', got '%s'", product.ProductName)
	}
	if product.Price != 3.99 {
		t.Errorf("Expected price 3.99, got %f", product.Price)
	}
	if product.Unit != "per lb" {
		t.Errorf("Expected unit 'per lb', got '%s'", product.Unit)
	}
	if fetcher.lastSel != "item-price" {
		t.Errorf("Expected fetch to wait for the price element, waited for %q", fetcher.lastSel)
	}
	if fallback.calls != 0 {
		t.Errorf("Structured success must not invoke the vision fallback, got %d calls", fallback.calls)
	}
}

func TestItemExtractor_FetchFailureFallsBackToVision(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("timeout waiting for selector")}
	fallback := &fakeFallback{result: vision.Result{
		Name:  "Organic Honey",
		Price: 6.49,
		Valid: true,
	}}
	extractor := newTestItemExtractor(fetcher, fallback)

	item := ItemRef{
		ID:       "9002",
		Label:    "Miel Bio",
		URL:      "https://example.com/item/9002",
		ImageURL: "https://img.example.com/9002.jpg",
	}

	product, ok := extractor.Extract(context.Background(), item)
	if !ok {
		t.Fatal("Expected a product from the vision fallback")
	}

	if fallback.calls != 1 {
		t.Errorf("Expected 1 fallback call, got %d", fallback.calls)
	}
	if product.ProductName != "Organic Honey" {
		t.Errorf("Expected vision name to be used as-is, got '%s'", product.ProductName)
	}
	if product.Price != 6.49 {
		t.Errorf("Expected price 6.49, got %f", product.Price)
	}
	if product.Unit != "each" {
		t.Errorf("Expected unit default 'each', got '%s'", product.Unit)
	}
}

func TestItemExtractor_NonPositivePriceFallsBack(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/item/9003": `<html><body><item-price value="0"></item-price></body></html>`,
	}}
	fallback := &fakeFallback{result: vision.Result{Name: "Eggs", Price: 4.29, Unit: "dozen", Valid: true}}
	extractor := newTestItemExtractor(fetcher, fallback)

	item := ItemRef{
		ID:       "9003",
		Label:    "Oeufs",
		URL:      "https://example.com/item/9003",
		ImageURL: "https://img.example.com/9003.jpg",
	}

	product, ok := extractor.Extract(context.Background(), item)
	if !ok {
		t.Fatal("Expected the vision fallback to recover the item")
	}
	if product.Unit != "dozen" {
		t.Errorf("Expected unit 'dozen', got '%s'", product.Unit)
	}
}

func TestItemExtractor_SkipsWhenNoImageForFallback(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("timeout")}
	fallback := &fakeFallback{result: vision.Result{Name: "Should Not Matter", Price: 1, Valid: true}}
	extractor := newTestItemExtractor(fetcher, fallback)

	item := ItemRef{ID: "9004", Label: "Sans Image", URL: "https://example.com/item/9004"}

	if _, ok := extractor.Extract(context.Background(), item); ok {
		t.Error("Expected the item to be skipped without an image")
	}
	if fallback.calls != 0 {
		t.Errorf("Fallback must not run without an image, got %d calls", fallback.calls)
	}
}

func TestItemExtractor_SkipsInvalidVisionResult(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("timeout")}
	fallback := &fakeFallback{result: vision.Result{Valid: false}}
	extractor := newTestItemExtractor(fetcher, fallback)

	item := ItemRef{
		ID:       "9005",
		Label:    "Ecom",
		URL:      "https://example.com/item/9005",
		ImageURL: "https://img.example.com/9005.jpg",
	}

	if _, ok := extractor.Extract(context.Background(), item); ok {
		t.Error("Expected an invalid vision result to skip the item")
	}
}
