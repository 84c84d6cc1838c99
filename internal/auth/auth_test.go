package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		cfg    Config
		method string
		path   string
		header string
		want   int
	}{
		{"disabled", Config{}, http.MethodPost, "/api/v1/catalogs/iss/refresh", "", http.StatusNoContent},
		{"GET is public", Config{Enabled: true, Token: "s3cret"}, http.MethodGet, "/api/v1/passes", "", http.StatusNoContent},
		{"probe is public", Config{Enabled: true, Token: "s3cret"}, http.MethodPost, "/healthz", "", http.StatusNoContent},
		{"missing token", Config{Enabled: true, Token: "s3cret"}, http.MethodPost, "/api/v1/catalogs/iss/refresh", "", http.StatusUnauthorized},
		{"wrong token", Config{Enabled: true, Token: "s3cret"}, http.MethodPut, "/api/v1/users/1/location", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", Config{Enabled: true, Token: "s3cret"}, http.MethodPut, "/api/v1/users/1/location", "s3cret", http.StatusUnauthorized},
		{"empty bearer", Config{Enabled: true, Token: "s3cret"}, http.MethodDelete, "/api/v1/users/1/location", "Bearer ", http.StatusUnauthorized},
		{"valid token", Config{Enabled: true, Token: "s3cret"}, http.MethodDelete, "/api/v1/users/1/location", "Bearer s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Middleware(tt.cfg)(ok).ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}
