package vision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	validityPrompt = "Is this a flyer item with a price. Answer yes or no in lowercase without punctuation"
	detailPrompt   = "What are the name, price and unit of this flyer item? Answer in this format: name, $.cc, unit"
)

var priceRe = regexp.MustCompile(`\$?(\d+(?:[.,]\d{1,2})?)`)

// Result is what the vision fallback learned about one item image. A
// zero-value Result means the image is not a usable priced item.
type Result struct {
	Name  string
	Price float64
	Unit  string
	Valid bool
}

// Extractor answers "what product is on this image and what does it cost"
// by staging the image and asking a regional vision backend. A cheap
// yes/no classification call runs first so full-detail prompts are never
// spent on banner tiles; both calls draw on the shared rate limiter.
type Extractor struct {
	limiter    *RateLimiter
	describer  Describer
	store      ObjectStore
	httpClient *http.Client
	userAgent  string
}

func NewExtractor(limiter *RateLimiter, describer Describer, store ObjectStore,
	httpClient *http.Client, userAgent string) *Extractor {
	return &Extractor{
		limiter:    limiter,
		describer:  describer,
		store:      store,
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// Infer runs the two-call vision flow against one item image. Transport and
// parse failures are logged and degrade to an invalid Result; the caller
// never has to handle an error.
func (e *Extractor) Infer(ctx context.Context, imageURL string) Result {
	data, err := e.downloadImage(ctx, imageURL)
	if err != nil {
		slog.Warn("Failed to download item image", "url", imageURL, "error", err)
		return Result{}
	}

	uri, err := e.store.Stage(ctx, data, "image/jpeg")
	if err != nil {
		slog.Warn("Failed to stage item image", "url", imageURL, "error", err)
		return Result{}
	}
	defer func() {
		if err := e.store.Unstage(ctx, uri); err != nil {
			slog.Warn("Failed to unstage item image", "uri", uri, "error", err)
		}
	}()

	answer, err := e.describe(ctx, uri, validityPrompt)
	if err != nil {
		slog.Warn("Validity pre-check failed", "url", imageURL, "error", err)
		return Result{}
	}

	if sanitizeAnswer(answer) != "yes" {
		slog.Debug("Image rejected by validity pre-check", "url", imageURL, "answer", answer)
		return Result{}
	}

	text, err := e.describe(ctx, uri, detailPrompt)
	if err != nil {
		slog.Warn("Detail prompt failed", "url", imageURL, "error", err)
		return Result{}
	}

	name, price, unit := parseDetail(text)
	return Result{Name: name, Price: price, Unit: unit, Valid: true}
}

// describe reserves a slot, dispatches one inference call against the
// reserved region and refunds the slot when the call never made it onto
// the wire.
func (e *Extractor) describe(ctx context.Context, imageURI, prompt string) (string, error) {
	region, err := e.limiter.AwaitCapacity(ctx)
	if err != nil {
		return "", err
	}

	text, err := e.describer.Describe(ctx, region, imageURI, prompt)
	if err != nil {
		e.limiter.Release(region)
		return "", fmt.Errorf("inference call to region %s failed: %w", region, err)
	}

	return text, nil
}

func (e *Extractor) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}

	return data, nil
}

// sanitizeAnswer reduces a model answer to its letters, lowercased, so
// "Yes." and " yes\n" both read as "yes".
func sanitizeAnswer(answer string) string {
	var b strings.Builder
	for _, r := range answer {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// parseDetail splits a "name, price, unit" answer. Missing or malformed
// fields come back as zero values; a pair without a unit is accepted.
func parseDetail(text string) (string, float64, string) {
	parts := strings.Split(text, ",")
	if len(parts) < 2 {
		return strings.TrimSpace(text), 0, ""
	}

	name := strings.TrimSpace(parts[0])
	price := cleanPrice(strings.TrimSpace(parts[1]))

	unit := ""
	if len(parts) >= 3 {
		unit = strings.TrimSpace(parts[2])
	}

	return name, price, unit
}

// cleanPrice extracts a dollar amount from free-form model output.
func cleanPrice(text string) float64 {
	match := priceRe.FindStringSubmatch(text)
	if match == nil {
		return 0
	}

	normalized := strings.ReplaceAll(match[1], ",", ".")
	price, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0
	}

	return price
}
