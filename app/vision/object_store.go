package vision

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

var _ ObjectStore = (*BlobStore)(nil)

// BlobStore stages images in a transient HTTP blob store: PUT to create,
// DELETE to remove once inference is done.
type BlobStore struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

func NewBlobStore(httpClient *http.Client, baseURL, userAgent string) *BlobStore {
	return &BlobStore{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
	}
}

// Stage uploads image bytes under a unique name and returns the object URI.
func (s *BlobStore) Stage(ctx context.Context, data []byte, contentType string) (string, error) {
	uri := fmt.Sprintf("%s/item-%d-%d.jpg", s.baseURL, time.Now().UnixNano(), rand.Intn(10000))

	req, err := http.NewRequestWithContext(ctx, "PUT", uri, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return uri, nil
}

// Unstage deletes a staged object. A missing object is not an error so
// cleanup stays safe to repeat.
func (s *BlobStore) Unstage(ctx context.Context, uri string) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", uri, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent &&
		resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return nil
}
