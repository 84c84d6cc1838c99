package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/api/v1/catalogs", "/api/v1/catalogs"},
		{"/api/v1/passes", "/api/v1/passes"},
		{"/api/v1/visible", "/api/v1/visible"},

		// Parameterized routes collapse to one label.
		{"/api/v1/catalogs/iss", "/api/v1/catalogs/{group}"},
		{"/api/v1/catalogs/noaa/refresh", "/api/v1/catalogs/{group}/refresh"},
		{"/api/v1/satellites/iss/ISS%20(ZARYA)/passes", "/api/v1/satellites/{group}/{name}/passes"},
		{"/api/v1/satellites/noaa/NOAA%2019/look", "/api/v1/satellites/{group}/{name}/look"},
		{"/api/v1/satellites/meteor/METEOR-M2/passes/stream", "/api/v1/satellites/{group}/{name}/passes/stream"},
		{"/api/v1/users/42/location", "/api/v1/users/{user_id}/location"},
		{"/api/v1/users/42/passes", "/api/v1/users/{user_id}/passes"},

		// Unknown/bot paths collapse to "other".
		{"/", "other"},
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/api/v1/catalogs/iss/refresh/now", "other"},
		{"/api/v1/users/42", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 distinct users produce exactly
// one path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := range 100 {
		seen[normalizeRoute(fmt.Sprintf("/api/v1/users/%d/location", i))] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewarePreservesStatusAndFlusher(t *testing.T) {
	var flushable bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		flushable = http.NewResponseController(w).Flush() == nil
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/passes", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if !flushable {
		t.Error("wrapped writer should expose the recorder's Flush")
	}
}
