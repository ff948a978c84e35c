package vision

import (
	"context"
)

// Describer is one inference call against a regional vision backend.
type Describer interface {
	Describe(ctx context.Context, region, imageURI, prompt string) (string, error)
}

// ObjectStore stages image bytes where the inference backend can read them.
// Staged objects are transient; callers must unstage on every path.
type ObjectStore interface {
	Stage(ctx context.Context, data []byte, contentType string) (string, error)
	Unstage(ctx context.Context, uri string) error
}
