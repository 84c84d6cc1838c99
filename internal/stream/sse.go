// Package stream serves pass predictions as Server-Sent Events. Passes are
// pulled from the finder one at a time and written as they are found, so a
// client that disconnects stops the search.
//
// SSE message format:
//
//	event: meta
//	data: {"satellite":"ISS (ZARYA)","group":"iss",...}
//
//	event: pass
//	data: {"satellite":"ISS (ZARYA)","rise":{...},"culmination":{...},"set":{...},...}
//
//	event: done
//	data: {"count":5}
//
// A propagation failure is sent as an "error" event and ends the stream.
// Keep-alive comments (:\n\n) are sent when KeepaliveInterval passes
// between events.
package stream

import (
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/Forken21/botsat/internal/httputil"
	"github.com/Forken21/botsat/internal/metrics"
	"github.com/Forken21/botsat/internal/passes"
	"github.com/Forken21/botsat/internal/propagation"
)

// Config holds streaming settings.
type Config struct {
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"` // default: 10
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval"`    // default: 30s
	TrustProxy         bool          `yaml:"-"`
}

// Handler manages SSE streaming connections.
type Handler struct {
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a streaming handler, filling config defaults.
func NewHandler(config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger.With("component", "stream"),
	}
}

// Meta is the first event of a pass stream.
type Meta struct {
	Satellite    string    `json:"satellite"`
	Group        string    `json:"group"`
	Epoch        time.Time `json:"epoch"`
	Latitude     float64   `json:"lat"`
	Longitude    float64   `json:"lon"`
	Altitude     float64   `json:"alt"`
	MinElevation float64   `json:"min_elevation"`
	Start        time.Time `json:"start"`
	MaxCount     int       `json:"count"`
	Stale        bool      `json:"stale,omitempty"`
}

type errorMessage struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type doneMessage struct {
	Count int `json:"count"`
}

// ServePasses streams up to meta.MaxCount passes from seq.
func (h *Handler) ServePasses(w http.ResponseWriter, r *http.Request, meta Meta, seq iter.Seq2[passes.Pass, error]) {
	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, ok := h.limiter.acquire(ip)
	if !ok {
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.StreamOpened()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"satellite", meta.Satellite,
		"count", meta.MaxCount,
	)

	sent := 0
	defer func() {
		release()
		metrics.StreamClosed()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"passes_sent", sent,
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		logger:  h.logger,
	}
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry interval (3-7s) so clients do not reconnect in lockstep.
	if err := c.sendRetry(3000 + rand.IntN(4000)); err != nil {
		return
	}
	if err := c.sendEvent("meta", meta); err != nil {
		h.logger.Warn("stream send error (meta)", "remote_ip", ip, "error", err)
		return
	}

	next, stop := iter.Pull2(seq)
	defer stop()

	ctx := r.Context()
	lastWrite := time.Now()
	for sent < meta.MaxCount {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p, err, ok := next()
		if !ok {
			break
		}
		if err != nil {
			msg := errorMessage{Error: err.Error(), Kind: propagation.ErrorKind(err)}
			if err := c.sendEvent("error", msg); err != nil {
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			}
			return
		}

		if time.Since(lastWrite) >= h.config.KeepaliveInterval {
			if err := c.sendKeepalive(); err != nil {
				return
			}
		}
		if err := c.sendEvent("pass", p); err != nil {
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return
		}
		lastWrite = time.Now()
		sent++
	}

	if err := c.sendEvent("done", doneMessage{Count: sent}); err != nil {
		h.logger.Debug("stream send error (done)", "remote_ip", ip, "error", err)
	}
}

// formatRetry renders the SSE reconnection hint.
func formatRetry(ms int) string {
	return fmt.Sprintf("retry: %d\n\n", ms)
}
