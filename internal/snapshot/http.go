package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/talgya/isle-planner/internal/catalog"
)

// HTTPReader fetches the JSON export from a reader service, for example a
// companion process running next to the game client.
type HTTPReader struct {
	url     string
	token   string
	catalog *catalog.Catalog
	client  *http.Client
	now     func() time.Time

	mu          sync.Mutex
	cached      *Snapshot
	cachedAt    time.Time
	cacheTTL    time.Duration
	lastFailAt  time.Time
	failBackoff time.Duration
}

// NewHTTPReader creates a reader for url. token, when set, is sent as a
// bearer token.
func NewHTTPReader(url, token string, cat *catalog.Catalog, cacheTTL time.Duration) *HTTPReader {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &HTTPReader{
		url:      url,
		token:    token,
		catalog:  cat,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		cacheTTL: cacheTTL,
	}
}

// Read returns the latest export, using the cache if fresh. After a failure
// the service is not called again until a backoff of 1 to 10 minutes has
// passed; the last good snapshot is served meanwhile.
func (r *HTTPReader) Read(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.cached != nil && now.Sub(r.cachedAt) < r.cacheTTL {
		return r.cached, nil
	}

	if r.failBackoff > 0 && now.Sub(r.lastFailAt) < r.failBackoff {
		if r.cached != nil {
			return r.cached, nil
		}
		return nil, fmt.Errorf("snapshot service backoff (%s remaining)", r.failBackoff-now.Sub(r.lastFailAt))
	}

	snap, err := r.fetch(ctx)
	if err != nil {
		r.lastFailAt = now
		if r.failBackoff == 0 {
			r.failBackoff = time.Minute
		} else if r.failBackoff < 10*time.Minute {
			r.failBackoff *= 2
		}
		slog.Warn("snapshot fetch failed", "url", r.url, "backoff", r.failBackoff, "error", err)
		if r.cached != nil {
			return r.cached, nil
		}
		return nil, err
	}

	r.cached = snap
	r.cachedAt = now
	r.failBackoff = 0
	return snap, nil
}

func (r *HTTPReader) fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot service call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read snapshot response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot service error %d: %s", resp.StatusCode, string(body))
	}

	snap, err := Parse(body, r.catalog)
	if err != nil {
		return nil, err
	}
	slog.Debug("snapshot fetched", "day", snap.Day, "items", len(snap.Items))
	return snap, nil
}
