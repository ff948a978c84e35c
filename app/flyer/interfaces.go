package flyer

import (
	"context"
	"time"

	"github.com/groceryroute/flyer-comb/app/vision"
)

// PageFetcher renders a page and returns its markup once the named selector
// is present, bounded by the timeout.
type PageFetcher interface {
	FetchHTML(ctx context.Context, url, waitSelector string, timeout time.Duration) (string, error)
}

// FallbackExtractor reads name, price and unit off an item image when
// structured extraction has failed.
type FallbackExtractor interface {
	Infer(ctx context.Context, imageURL string) vision.Result
}

// Translator converts text between language codes. It may fail; callers own
// the retry policy.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}
