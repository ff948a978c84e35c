package flyer

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const translationAttempts = 3

// Namer turns raw bilingual or French-only item labels into normalized
// English names. Labels like "Pommes Gala | Gala Apples" keep the segment
// after the pipe; everything else goes through translation with bounded
// retries, degrading to the original label when the service is down.
type Namer struct {
	translator Translator
	title      cases.Caser
}

func NewNamer(translator Translator) *Namer {
	return &Namer{
		translator: translator,
		title:      cases.Title(language.English),
	}
}

// Normalize returns the best available English name for a raw label:
// whitespace collapsed, each word title-cased. It never fails.
func (n *Namer) Normalize(ctx context.Context, raw string) string {
	name := raw

	if idx := strings.Index(raw, "|"); idx >= 0 {
		name = raw[idx+1:]
	} else {
		name = n.translateWithRetries(ctx, raw)
	}

	return n.title.String(strings.Join(strings.Fields(name), " "))
}

func (n *Namer) translateWithRetries(ctx context.Context, text string) string {
	for attempt := 1; attempt <= translationAttempts; attempt++ {
		translated, err := n.translator.Translate(ctx, text, "fr", "en")
		if err == nil && strings.TrimSpace(translated) != "" {
			return translated
		}

		slog.Debug("Translation attempt failed", "attempt", attempt, "text", text, "error", err)
	}

	slog.Warn("Translation failed, keeping original label", "text", text)
	return text
}
