package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Invalidator notifies the viewer front-end that a public map's cached
// bytes are stale. Best-effort: errors are logged, never fatal to a
// generation run (§4.9, §7).
type Invalidator struct {
	baseURL string
	client  *http.Client
}

// NewInvalidator builds an Invalidator posting to baseURL +
// "/internal/public-cache/invalidate/{slug}".
func NewInvalidator(baseURL string) *Invalidator {
	return &Invalidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Notify fires a POST for slug and returns immediately; failures are
// logged, not returned, matching the fire-and-forget contract.
func (inv *Invalidator) Notify(ctx context.Context, slug string) {
	if inv == nil || inv.baseURL == "" {
		return
	}
	go func() {
		url := fmt.Sprintf("%s/internal/public-cache/invalidate/%s", inv.baseURL, slug)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, nil)
		if err != nil {
			slog.Warn("orchestrator: building invalidate request", "slug", slug, "error", err)
			return
		}
		resp, err := inv.client.Do(req)
		if err != nil {
			slog.Warn("orchestrator: invalidate POST failed", "slug", slug, "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			slog.Warn("orchestrator: invalidate POST returned error status", "slug", slug, "status", resp.StatusCode)
		}
	}()
}
