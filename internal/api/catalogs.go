package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Forken21/botsat/internal/httputil"
	"github.com/Forken21/botsat/internal/tle"
)

var errNotLoaded = errors.New("catalog not loaded")

type catalogInfo struct {
	Group       string     `json:"group"`
	URL         string     `json:"url"`
	Filter      string     `json:"filter,omitempty"`
	Loaded      bool       `json:"loaded"`
	FetchedAt   *time.Time `json:"fetched_at,omitempty"`
	AgeSeconds  float64    `json:"age_seconds,omitempty"`
	Count       int        `json:"count"`
	Stale       bool       `json:"stale"`
	ParseErrors int        `json:"parse_errors"`
}

type catalogDetail struct {
	catalogInfo
	Satellites []string `json:"satellites"`
}

func (s *Server) describe(g tle.Group, now time.Time) catalogInfo {
	info := catalogInfo{Group: g.Name, URL: g.URL, Filter: g.Filter}
	cat := s.store.Get(g.Name)
	if cat == nil {
		return info
	}
	fetched := cat.FetchedAt.UTC()
	info.Loaded = true
	info.FetchedAt = &fetched
	info.AgeSeconds = cat.Age(now).Seconds()
	info.Count = cat.Len()
	info.Stale = cat.IsStale(now, s.refresher.MaxAge())
	info.ParseErrors = len(cat.ParseErrors)
	return info
}

func (s *Server) group(name string) (tle.Group, bool) {
	for _, g := range s.refresher.Groups() {
		if g.Name == name {
			return g, true
		}
	}
	return tle.Group{}, false
}

// catalog returns the group's snapshot, refreshing it first when stale.
// A failed refresh with an older snapshot available serves that snapshot
// and reports stale.
func (s *Server) catalog(ctx context.Context, group string) (cat *tle.Catalog, stale bool, err error) {
	cat, err = s.refresher.EnsureFresh(ctx, group, s.now())
	if err == nil {
		return cat, false, nil
	}
	if cat == nil || errors.Is(err, tle.ErrUnknownGroup) {
		return nil, false, err
	}
	s.logger.Warn("serving stale catalog",
		"group", group,
		"fetched_at", cat.FetchedAt.UTC().Format(time.RFC3339),
		"error", err,
	)
	return cat, true, nil
}

func (s *Server) handleListCatalogs(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	groups := s.refresher.Groups()
	out := make([]catalogInfo, 0, len(groups))
	for _, g := range groups {
		out = append(out, s.describe(g, now))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"catalogs": out})
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "group")
	g, ok := s.group(name)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: %s", tle.ErrUnknownGroup, name))
		return
	}
	cat := s.store.Get(name)
	if cat == nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", errNotLoaded, name))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, catalogDetail{
		catalogInfo: s.describe(g, s.now()),
		Satellites:  cat.Names(),
	})
}

func (s *Server) handleRefreshCatalog(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "group")
	g, ok := s.group(name)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: %s", tle.ErrUnknownGroup, name))
		return
	}
	if _, err := s.refresher.Refresh(r.Context(), name); err != nil {
		s.logger.Warn("forced refresh failed",
			"request_id", RequestID(r.Context()),
			"group", name,
			"error", err,
		)
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.describe(g, s.now()))
}
