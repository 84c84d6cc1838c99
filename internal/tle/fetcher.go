package tle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxBodyBytes bounds a single download.
const maxBodyBytes = 50 << 20

// Source retrieves the raw element text of a group.
type Source interface {
	Fetch(ctx context.Context, g Group) ([]byte, error)
}

// Fetcher retrieves raw element text over HTTP.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher with a 30 second request timeout.
func NewFetcher(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With("component", "tle_fetcher"),
	}
}

// Fetch performs an HTTP GET of g.URL. Failures are returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, g Group) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, nil)
	if err != nil {
		return nil, &FetchError{Group: g.Name, URL: g.URL, Err: fmt.Errorf("creating request: %w", err)}
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Group: g.Name, URL: g.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Group: g.Name, URL: g.URL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &FetchError{Group: g.Name, URL: g.URL, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &FetchError{Group: g.Name, URL: g.URL, Err: fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)}
	}

	f.logger.Debug("fetched element text",
		"group", g.Name,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}
