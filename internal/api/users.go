package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Forken21/botsat/internal/cache"
	"github.com/Forken21/botsat/internal/httputil"
	"github.com/Forken21/botsat/internal/passes"
	"github.com/Forken21/botsat/internal/tle"
	"github.com/Forken21/botsat/internal/transform"
)

// commandWindow is how far ahead the chat commands look.
const commandWindow = 24 * time.Hour

const noPassesMessage = "no visible passes in the next 24h"

// commandGroups maps a chat command to the catalog group it searches.
// An empty group searches every group.
var commandGroups = map[string]string{
	"pases":  "",
	"iss":    tle.GroupISS,
	"noaa":   tle.GroupNOAA,
	"meteor": tle.GroupMeteor,
}

type locationBody struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
	Alt float64  `json:"alt"`
}

type locationResponse struct {
	UserID string  `json:"user_id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Alt    float64 `json:"alt"`
}

func newLocationResponse(userID string, obs transform.Observer) locationResponse {
	return locationResponse{UserID: userID, Lat: obs.LatDeg, Lon: obs.LonDeg, Alt: obs.AltM}
}

func (s *Server) handlePutLocation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var body locationBody
	dec := json.NewDecoder(io.LimitReader(r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, invalidParam("request body: %v", err))
		return
	}
	if body.Lat == nil || body.Lon == nil {
		s.writeError(w, r, invalidParam("lat and lon are required"))
		return
	}
	obs, err := transform.NewObserver(*body.Lat, *body.Lon, body.Alt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.locations.Set(r.Context(), userID, obs); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("location saved", "request_id", RequestID(r.Context()), "user_id", userID)
	httputil.WriteJSON(w, http.StatusOK, newLocationResponse(userID, obs))
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	obs, err := s.locations.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newLocationResponse(userID, obs))
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if err := s.locations.Delete(r.Context(), userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userPassesResponse struct {
	UserID   string                  `json:"user_id"`
	Command  string                  `json:"command"`
	Location locationResponse        `json:"location"`
	Start    time.Time               `json:"start"`
	Entries  []passes.Entry          `json:"entries"`
	Failures []passes.SatelliteError `json:"failures"`
	Pages    []string                `json:"pages,omitempty"`
	Message  string                  `json:"message,omitempty"`
	Stale    bool                    `json:"stale,omitempty"`
}

// handleUserPasses answers a chat command from the user's stored location:
// up to ten passes per satellite rising within the next 24 hours.
func (s *Server) handleUserPasses(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	q := r.URL.Query()

	command := strings.ToLower(strings.TrimPrefix(q.Get("command"), "/"))
	if command == "" {
		command = "pases"
	}
	group, ok := commandGroups[command]
	if !ok {
		s.writeError(w, r, invalidParam("unknown command %q", command))
		return
	}
	format := q.Get("format")
	if format != "" && format != "json" && format != "text" {
		s.writeError(w, r, invalidParam("format must be json or text"))
		return
	}
	minEl, err := minElevationParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start, err := timeParam(q, "start", s.now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.cache != nil {
		// Cached answers are shared per start minute.
		start = s.cache.RoundToStep(start)
	}

	obs, err := s.locations.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sel, err := s.selectSatellites(r.Context(), group, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.commandPasses(r.Context(), command, obs, sel, start, minEl)
	if err != nil {
		return
	}

	resp := userPassesResponse{
		UserID:   userID,
		Command:  command,
		Location: newLocationResponse(userID, obs),
		Start:    start,
		Entries:  nonNil(res.Entries),
		Failures: nonNil(res.Failures),
		Stale:    sel.stale,
	}
	if len(res.Entries) == 0 {
		resp.Message = noPassesMessage
	}
	if format == "text" {
		resp.Pages = renderPages(res.Entries)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// commandPasses runs the 24 hour search for a chat command, reusing a
// cached answer for the same place, mask and start minute while the
// catalogs are unchanged.
func (s *Server) commandPasses(ctx context.Context, command string, obs transform.Observer, sel selection, start time.Time, minEl float64) (passes.Result, error) {
	var (
		key     cache.Key
		version string
	)
	if s.cache != nil {
		key = s.cache.Key(command, obs, minEl, defaultCount, start)
		version = cache.Version(sel.catalogs...)
		if res, ok := s.cache.Get(key, version); ok {
			return res, nil
		}
	}

	res := s.dayFinder.Predict(ctx, passes.Request{
		Observer:     obs,
		Sets:         sel.sets,
		Start:        start,
		MinElevation: minEl,
		MaxPasses:    defaultCount,
	})
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if s.cache != nil {
		s.cache.Put(key, version, res)
	}
	return res, nil
}

// renderMessage formats one pass the way the chat bot replies.
func renderMessage(e passes.Entry) string {
	rise := e.Pass.Rise.Time.UTC()
	return fmt.Sprintf("🛰 %s\n📅 %s\n⏰ %s", e.Satellite, rise.Format("02/01/2006"), rise.Format("15:04:05 UTC"))
}

// renderPages groups the messages into pages of passes.DefaultPageSize.
func renderPages(entries []passes.Entry) []string {
	if len(entries) == 0 {
		return []string{noPassesMessage}
	}
	chunks := passes.Chunk(entries, passes.DefaultPageSize)
	pages := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		msgs := make([]string, len(chunk))
		for i, e := range chunk {
			msgs[i] = renderMessage(e)
		}
		pages = append(pages, strings.Join(msgs, "\n\n"))
	}
	return pages
}
