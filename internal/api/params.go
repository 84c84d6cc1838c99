package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Forken21/botsat/internal/httputil"
	"github.com/Forken21/botsat/internal/location"
	"github.com/Forken21/botsat/internal/propagation"
	"github.com/Forken21/botsat/internal/sgp4"
	"github.com/Forken21/botsat/internal/tle"
	"github.com/Forken21/botsat/internal/transform"
)

// Query defaults and limits.
const (
	defaultMinElevation = 10.0
	defaultCount        = 10
	maxCount            = 50
	maxPageSize         = 100
)

var (
	errInvalidParam = errors.New("invalid parameter")
	errCountBudget  = fmt.Errorf("%w: count must be in [1, %d]", errInvalidParam, maxCount)
)

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidParam, fmt.Sprintf(format, args...))
}

func floatParam(q url.Values, key string, def float64) (float64, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, invalidParam("%s must be a number", key)
	}
	return v, nil
}

func intParam(q url.Values, key string, def, lo, hi int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalidParam("%s must be an integer", key)
	}
	if v < lo || v > hi {
		return 0, invalidParam("%s must be in [%d, %d]", key, lo, hi)
	}
	return v, nil
}

func timeParam(q url.Values, key string, def time.Time) (time.Time, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, invalidParam("%s must be RFC 3339", key)
	}
	return t.UTC(), nil
}

// observerParam reads lat, lon (required) and alt in metres (default 0).
func observerParam(q url.Values) (transform.Observer, error) {
	if q.Get("lat") == "" || q.Get("lon") == "" {
		return transform.Observer{}, invalidParam("lat and lon are required")
	}
	lat, err := floatParam(q, "lat", 0)
	if err != nil {
		return transform.Observer{}, err
	}
	lon, err := floatParam(q, "lon", 0)
	if err != nil {
		return transform.Observer{}, err
	}
	alt, err := floatParam(q, "alt", 0)
	if err != nil {
		return transform.Observer{}, err
	}
	return transform.NewObserver(lat, lon, alt)
}

func minElevationParam(q url.Values) (float64, error) {
	minEl, err := floatParam(q, "min_el", defaultMinElevation)
	if err != nil {
		return 0, err
	}
	if minEl < -90 || minEl > 90 {
		return 0, invalidParam("min_el must be in [-90, 90]")
	}
	return minEl, nil
}

// countParam enforces the per-request pass budget.
func countParam(q url.Values) (int, error) {
	s := q.Get("count")
	if s == "" {
		return defaultCount, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxCount {
		return 0, errCountBudget
	}
	return n, nil
}

// satelliteParam returns the {name} path segment, unescaped.
func satelliteParam(r *http.Request) (string, error) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		return "", invalidParam("bad satellite name")
	}
	return name, nil
}

func isPropagationError(err error) bool {
	var perr *sgp4.PropagationError
	return errors.As(err, &perr) ||
		errors.Is(err, sgp4.ErrDecayed) ||
		errors.Is(err, sgp4.ErrKeplerNotConverged) ||
		errors.Is(err, sgp4.ErrModelLimits) ||
		errors.Is(err, propagation.ErrInvalidOutput)
}

// writeError maps an error onto a status code and writes it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fetchErr *tle.FetchError
	switch {
	case errors.Is(err, errCountBudget):
		writeJSONError(w, http.StatusBadRequest, err.Error(), "max_count", maxCount)
	case errors.Is(err, errInvalidParam),
		errors.Is(err, transform.ErrInvalidLocation),
		errors.Is(err, location.ErrInvalidUser):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tle.ErrNotFound),
		errors.Is(err, tle.ErrUnknownGroup),
		errors.Is(err, location.ErrNotFound),
		errors.Is(err, errNotLoaded):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &fetchErr), errors.Is(err, tle.ErrNoRecords):
		httputil.WriteError(w, http.StatusBadGateway, err.Error())
	case isPropagationError(err):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error(), "kind", propagation.ErrorKind(err))
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		s.logger.Error("request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string, kv ...any) {
	body := map[string]any{"error": msg}
	for i := 0; i+1 < len(kv); i += 2 {
		body[kv[i].(string)] = kv[i+1]
	}
	httputil.WriteJSON(w, status, body)
}
