package api

import (
	"cmp"
	"context"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Forken21/botsat/internal/httputil"
	"github.com/Forken21/botsat/internal/passes"
	"github.com/Forken21/botsat/internal/propagation"
	"github.com/Forken21/botsat/internal/stream"
	"github.com/Forken21/botsat/internal/tle"
	"github.com/Forken21/botsat/internal/transform"
)

// selection is the set of satellites a multi-satellite query runs over.
type selection struct {
	sets        []*tle.ElementSet
	catalogs    []*tle.Catalog
	stale       bool
	unavailable []string
}

// selectSatellites gathers the satellites of group (every group when
// empty) whose names contain filter. With every group selected, groups
// that cannot be loaded are skipped and listed as unavailable.
func (s *Server) selectSatellites(ctx context.Context, group, filter string) (selection, error) {
	var (
		sel   selection
		names []string
	)
	if group != "" {
		names = []string{group}
	} else {
		for _, g := range s.refresher.Groups() {
			names = append(names, g.Name)
		}
	}

	seen := make(map[string]bool)
	var lastErr error
	for _, name := range names {
		cat, stale, err := s.catalog(ctx, name)
		if err != nil {
			if group != "" {
				return sel, err
			}
			lastErr = err
			sel.unavailable = append(sel.unavailable, name)
			continue
		}
		sel.stale = sel.stale || stale
		sel.catalogs = append(sel.catalogs, cat)
		for _, es := range cat.Match(filter) {
			if !seen[es.Name] {
				seen[es.Name] = true
				sel.sets = append(sel.sets, es)
			}
		}
	}
	if len(sel.unavailable) == len(names) && lastErr != nil {
		return sel, lastErr
	}
	return sel, nil
}

type passesResponse struct {
	Start        time.Time               `json:"start"`
	MinElevation float64                 `json:"min_elevation"`
	Count        int                     `json:"count"`
	Satellites   int                     `json:"satellites"`
	Total        int                     `json:"total"`
	Page         int                     `json:"page"`
	Pages        int                     `json:"pages"`
	Entries      []passes.Entry          `json:"entries"`
	Failures     []passes.SatelliteError `json:"failures"`
	Stale        bool                    `json:"stale,omitempty"`
	Unavailable  []string                `json:"unavailable,omitempty"`
}

func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, minEl, start, err := s.searchParams(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count, err := countParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := intParam(q, "page", 1, 1, 1<<20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pageSize, err := intParam(q, "page_size", passes.DefaultPageSize, 1, maxPageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sel, err := s.selectSatellites(r.Context(), q.Get("group"), q.Get("filter"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res := s.finder.Predict(r.Context(), passes.Request{
		Observer:     obs,
		Sets:         sel.sets,
		Start:        start,
		MinElevation: minEl,
		MaxPasses:    count,
	})
	if err := r.Context().Err(); err != nil {
		return
	}

	chunks := passes.Chunk(res.Entries, pageSize)
	if page > len(chunks) && len(chunks) > 0 {
		s.writeError(w, r, invalidParam("page %d out of range, %d pages", page, len(chunks)))
		return
	}
	entries := []passes.Entry{}
	if len(chunks) > 0 {
		entries = chunks[page-1]
	}

	httputil.WriteJSON(w, http.StatusOK, passesResponse{
		Start:        start,
		MinElevation: minEl,
		Count:        count,
		Satellites:   len(sel.sets),
		Total:        len(res.Entries),
		Page:         page,
		Pages:        len(chunks),
		Entries:      entries,
		Failures:     nonNil(res.Failures),
		Stale:        sel.stale,
		Unavailable:  sel.unavailable,
	})
}

// resolve looks up the {group}/{name} satellite of the request.
func (s *Server) resolve(r *http.Request) (es *tle.ElementSet, stale bool, err error) {
	name, err := satelliteParam(r)
	if err != nil {
		return nil, false, err
	}
	cat, stale, err := s.catalog(r.Context(), chi.URLParam(r, "group"))
	if err != nil {
		return nil, false, err
	}
	es, err = cat.Get(name)
	return es, stale, err
}

type satellitePassesResponse struct {
	Satellite    string                  `json:"satellite"`
	Group        string                  `json:"group"`
	Epoch        time.Time               `json:"epoch"`
	Start        time.Time               `json:"start"`
	MinElevation float64                 `json:"min_elevation"`
	Passes       []passes.Pass           `json:"passes"`
	Failures     []passes.SatelliteError `json:"failures"`
	Stale        bool                    `json:"stale,omitempty"`
}

func (s *Server) handleSatellitePasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, minEl, start, err := s.searchParams(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count, err := countParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	es, stale, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	found, err := s.finder.FindPasses(es, obs, start, minEl, count)
	failures := []passes.SatelliteError{}
	if err != nil {
		failures = append(failures, passes.SatelliteError{Name: es.Name, Kind: propagation.ErrorKind(err), Err: err})
	}

	httputil.WriteJSON(w, http.StatusOK, satellitePassesResponse{
		Satellite:    es.Name,
		Group:        chi.URLParam(r, "group"),
		Epoch:        es.Epoch,
		Start:        start,
		MinElevation: minEl,
		Passes:       nonNil(found),
		Failures:     failures,
		Stale:        stale,
	})
}

func (s *Server) handleSatelliteStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, minEl, start, err := s.searchParams(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count, err := countParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	es, stale, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	meta := stream.Meta{
		Satellite:    es.Name,
		Group:        chi.URLParam(r, "group"),
		Epoch:        es.Epoch,
		Latitude:     obs.LatDeg,
		Longitude:    obs.LonDeg,
		Altitude:     obs.AltM,
		MinElevation: minEl,
		Start:        start,
		MaxCount:     count,
		Stale:        stale,
	}
	s.stream.ServePasses(w, r, meta, s.finder.Passes(es, obs, start, minEl))
}

// searchParams reads the observer, min_el and start shared by the pass
// endpoints.
func (s *Server) searchParams(q url.Values) (obs transform.Observer, minEl float64, start time.Time, err error) {
	if obs, err = observerParam(q); err != nil {
		return
	}
	if minEl, err = minElevationParam(q); err != nil {
		return
	}
	start, err = timeParam(q, "start", s.now().UTC())
	return
}

type lookResponse struct {
	Satellite     string    `json:"satellite"`
	Group         string    `json:"group"`
	Time          time.Time `json:"time"`
	Azimuth       float64   `json:"azimuth"`
	Elevation     float64   `json:"elevation"`
	RangeKm       float64   `json:"range_km"`
	RangeRateKmS  float64   `json:"range_rate_km_s"`
	MinElevation  float64   `json:"min_elevation"`
	Visible       bool      `json:"visible"`
	EpochAgeHours float64   `json:"epoch_age_hours"`
	Stale         bool      `json:"stale,omitempty"`
}

func (s *Server) handleLook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, err := observerParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	minEl, err := minElevationParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	at, err := timeParam(q, "at", s.now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	es, stale, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	la, err := s.prop.Look(es, obs, at)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lookResponse{
		Satellite:     es.Name,
		Group:         chi.URLParam(r, "group"),
		Time:          at,
		Azimuth:       la.AzimuthDeg,
		Elevation:     la.ElevationDeg,
		RangeKm:       la.RangeKm,
		RangeRateKmS:  la.RangeRateKmS,
		MinElevation:  minEl,
		Visible:       la.ElevationDeg >= minEl,
		EpochAgeHours: at.Sub(es.Epoch).Hours(),
		Stale:         stale,
	})
}

type visibleSatellite struct {
	Satellite string  `json:"satellite"`
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	RangeKm   float64 `json:"range_km"`
	SubLat    float64 `json:"sub_lat"`
	SubLon    float64 `json:"sub_lon"`
	AltKm     float64 `json:"alt_km"`
}

type visibleResponse struct {
	Time         time.Time          `json:"time"`
	MinElevation float64            `json:"min_elevation"`
	Checked      int                `json:"checked"`
	Errors       int                `json:"errors"`
	Satellites   []visibleSatellite `json:"satellites"`
	Stale        bool               `json:"stale,omitempty"`
	Unavailable  []string           `json:"unavailable,omitempty"`
}

func (s *Server) handleVisible(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, err := observerParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	minEl, err := minElevationParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	at, err := timeParam(q, "at", s.now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sel, err := s.selectSatellites(r.Context(), q.Get("group"), q.Get("filter"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	looks, ok, bad := s.prop.Pool().LookBatch(r.Context(), sel.sets, obs, at)
	if err := r.Context().Err(); err != nil {
		return
	}

	out := []visibleSatellite{}
	for _, l := range looks {
		if l.Look.ElevationDeg < minEl {
			continue
		}
		out = append(out, visibleSatellite{
			Satellite: l.Name,
			Azimuth:   l.Look.AzimuthDeg,
			Elevation: l.Look.ElevationDeg,
			RangeKm:   l.Look.RangeKm,
			SubLat:    l.SubPoint.LatDeg,
			SubLon:    l.SubPoint.LonDeg,
			AltKm:     l.SubPoint.AltKm,
		})
	}
	slices.SortFunc(out, func(a, b visibleSatellite) int {
		if c := cmp.Compare(b.Elevation, a.Elevation); c != 0 {
			return c
		}
		return cmp.Compare(a.Satellite, b.Satellite)
	})

	httputil.WriteJSON(w, http.StatusOK, visibleResponse{
		Time:         at,
		MinElevation: minEl,
		Checked:      ok,
		Errors:       bad,
		Satellites:   out,
		Stale:        sel.stale,
		Unavailable:  sel.unavailable,
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
