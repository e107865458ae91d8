package texture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFetcher resolves texture resource names against a tenant asset
// store over HTTP, matching the stdlib-only client style used for the
// orchestrator's invalidation POST (no fat HTTP client dependency).
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher builds a Fetcher that GETs baseURL + "/" + resourceName.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch retrieves the raw encoded bytes for a texture resource name.
func (f *HTTPFetcher) Fetch(ctx context.Context, resourceName string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", f.baseURL, resourceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("texture: building request for %s: %w", resourceName, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("texture: fetching %s: %w", resourceName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("texture: resource %s not found", resourceName)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("texture: fetching %s: status %d", resourceName, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("texture: reading body for %s: %w", resourceName, err)
	}
	return data, nil
}
