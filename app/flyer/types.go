package flyer

import (
	"time"
)

// Ref is one flyer discovered on the listing page.
type Ref struct {
	ID         int64
	URL        string
	StoreChain string
	ValidUntil *time.Time
}

// ItemRef is one candidate item found inside a flyer page. Label is the raw
// (possibly bilingual) text from the markup; extraction decides whether the
// item becomes a product.
type ItemRef struct {
	ID       string
	Label    string
	URL      string
	ImageURL string
}
