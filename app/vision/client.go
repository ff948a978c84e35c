package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

var _ Describer = (*Client)(nil)

// Client talks to the regional vision inference endpoints over HTTP. The
// endpoint template holds a single %s that is filled with the region name.
type Client struct {
	httpClient   *http.Client
	endpointTmpl string
	userAgent    string
}

func NewClient(httpClient *http.Client, endpointTmpl, userAgent string) *Client {
	return &Client{
		httpClient:   httpClient,
		endpointTmpl: endpointTmpl,
		userAgent:    userAgent,
	}
}

type describeRequest struct {
	ImageURI string `json:"image_uri"`
	Prompt   string `json:"prompt"`
}

type describeResponse struct {
	Text string `json:"text"`
}

// Describe sends one prompt about a staged image to the region's endpoint.
func (c *Client) Describe(ctx context.Context, region, imageURI, prompt string) (string, error) {
	payload, err := json.Marshal(describeRequest{ImageURI: imageURI, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf(c.endpointTmpl, region)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed describeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return parsed.Text, nil
}
