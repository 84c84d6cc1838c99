package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Forken21/botsat/internal/passes"
	"github.com/Forken21/botsat/internal/sgp4"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

var t0 = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)

func fakePass(i int) passes.Pass {
	rise := t0.Add(time.Duration(i) * 100 * time.Minute)
	return passes.Pass{
		Satellite:        "ISS (ZARYA)",
		Rise:             passes.Event{Kind: passes.Rise, Time: rise, ElevationDeg: 10},
		Culmination:      passes.Event{Kind: passes.Culmination, Time: rise.Add(4 * time.Minute), ElevationDeg: 45},
		Set:              passes.Event{Kind: passes.Set, Time: rise.Add(8 * time.Minute), ElevationDeg: 10},
		Duration:         8 * time.Minute,
		DurationSeconds:  480,
		PeakElevationDeg: 45,
	}
}

// fakeSeq yields n passes, then failErr if set. pulled counts yields.
func fakeSeq(n int, failErr error, pulled *int) iter.Seq2[passes.Pass, error] {
	return func(yield func(passes.Pass, error) bool) {
		for i := range n {
			*pulled++
			if !yield(fakePass(i), nil) {
				return
			}
		}
		if failErr != nil {
			yield(passes.Pass{}, failErr)
		}
	}
}

func testMeta(count int) Meta {
	return Meta{Satellite: "ISS (ZARYA)", Group: "iss", MinElevation: 10, Start: t0, MaxCount: count}
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, body io.Reader) (events []sseEvent, retry bool) {
	t.Helper()
	sc := bufio.NewScanner(body)
	var cur sseEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "retry: "):
			retry = true
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "" && cur.name != "":
			events = append(events, cur)
			cur = sseEvent{}
		}
	}
	return events, retry
}

func TestServePassesStopsAtCount(t *testing.T) {
	h := NewHandler(Config{}, testLogger())
	var pulled int

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/satellites/iss/ISS/passes/stream", nil)
	h.ServePasses(w, r, testMeta(3), fakeSeq(10, nil, &pulled))

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	events, retry := readEvents(t, w.Body)
	if !retry {
		t.Error("missing retry hint")
	}
	if len(events) != 5 {
		t.Fatalf("got %d events, want meta + 3 passes + done", len(events))
	}
	if events[0].name != "meta" || events[4].name != "done" {
		t.Errorf("events = %v", events)
	}
	for _, ev := range events[1:4] {
		if ev.name != "pass" {
			t.Errorf("event %q, want pass", ev.name)
		}
		var p struct {
			Satellite string  `json:"satellite"`
			Peak      float64 `json:"max_elevation"`
			Rise      struct {
				Kind string `json:"kind"`
			} `json:"rise"`
		}
		if err := json.Unmarshal([]byte(ev.data), &p); err != nil {
			t.Fatalf("pass payload %q: %v", ev.data, err)
		}
		if p.Satellite != "ISS (ZARYA)" || p.Peak != 45 || p.Rise.Kind != "rise" {
			t.Errorf("pass payload = %+v", p)
		}
	}
	if events[4].data != `{"count":3}` {
		t.Errorf("done = %s", events[4].data)
	}
	if pulled != 3 {
		t.Errorf("pulled %d passes, want 3 (lazy)", pulled)
	}
}

func TestServePassesExhaustedSequence(t *testing.T) {
	h := NewHandler(Config{}, testLogger())
	var pulled int
	w := httptest.NewRecorder()
	h.ServePasses(w, httptest.NewRequest(http.MethodGet, "/", nil), testMeta(10), fakeSeq(2, nil, &pulled))

	events, _ := readEvents(t, w.Body)
	last := events[len(events)-1]
	if last.name != "done" || last.data != `{"count":2}` {
		t.Errorf("last event = %+v", last)
	}
}

func TestServePassesError(t *testing.T) {
	h := NewHandler(Config{}, testLogger())
	var pulled int
	failure := &sgp4.PropagationError{Tsince: 600, Err: sgp4.ErrDecayed}

	w := httptest.NewRecorder()
	h.ServePasses(w, httptest.NewRequest(http.MethodGet, "/", nil), testMeta(10), fakeSeq(1, failure, &pulled))

	events, _ := readEvents(t, w.Body)
	if len(events) != 3 {
		t.Fatalf("got %d events, want meta, pass, error", len(events))
	}
	last := events[2]
	if last.name != "error" {
		t.Fatalf("last event = %q, want error", last.name)
	}
	var msg errorMessage
	if err := json.Unmarshal([]byte(last.data), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Kind != "decayed" {
		t.Errorf("kind = %q, want decayed", msg.Kind)
	}
}

func TestServePassesStopsOnDisconnect(t *testing.T) {
	h := NewHandler(Config{}, testLogger())
	var pulled int

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	h.ServePasses(w, r, testMeta(10), fakeSeq(10, nil, &pulled))

	if pulled != 0 {
		t.Errorf("pulled %d passes after disconnect", pulled)
	}
	if h.limiter.active() != 0 {
		t.Errorf("limiter holds %d slots after disconnect", h.limiter.active())
	}
}

func TestRateLimiting(t *testing.T) {
	l := newStreamLimiter(2)

	rel1, ok1 := l.acquire("1.2.3.4")
	_, ok2 := l.acquire("1.2.3.4")
	_, ok3 := l.acquire("1.2.3.4")
	if !ok1 || !ok2 {
		t.Fatal("first two connections should be allowed")
	}
	if ok3 {
		t.Error("third connection from the same IP should be rejected")
	}
	if _, ok := l.acquire("5.6.7.8"); !ok {
		t.Error("another IP should not be affected")
	}

	rel1()
	rel1() // idempotent
	if got := l.count("1.2.3.4"); got != 1 {
		t.Errorf("count after release = %d, want 1", got)
	}
	if _, ok := l.acquire("1.2.3.4"); !ok {
		t.Error("connection should be allowed after release")
	}
}

func TestRateLimitingConcurrent(t *testing.T) {
	l := newStreamLimiter(5)
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := l.acquire("9.9.9.9"); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted != 5 {
		t.Errorf("granted %d, want 5", granted)
	}
}

func TestRateLimitHTTPResponse(t *testing.T) {
	h := NewHandler(Config{MaxConcurrentPerIP: 1}, testLogger())
	hold, ok := h.limiter.acquire("192.0.2.1")
	if !ok {
		t.Fatal("acquire failed")
	}
	defer hold()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	w := httptest.NewRecorder()
	var pulled int
	h.ServePasses(w, r, testMeta(1), fakeSeq(1, nil, &pulled))

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if pulled != 0 {
		t.Error("rejected stream ran the search")
	}
}

func TestMessageFormat(t *testing.T) {
	if got := formatEvent("pass", []byte(`{"a":1}`)); got != "event: pass\ndata: {\"a\":1}\n\n" {
		t.Errorf("formatEvent = %q", got)
	}
	if got := formatRetry(4200); got != "retry: 4200\n\n" {
		t.Errorf("formatRetry = %q", got)
	}
}

func TestKeepaliveFormat(t *testing.T) {
	var sb strings.Builder
	c := &client{w: &sb, flusher: nopFlusher{}, logger: testLogger()}
	if err := c.sendKeepalive(); err != nil {
		t.Fatal(err)
	}
	if sb.String() != ":\n\n" {
		t.Errorf("keepalive = %q", sb.String())
	}
}

func TestClientWriteError(t *testing.T) {
	c := &client{w: failingWriter{}, flusher: nopFlusher{}, logger: testLogger()}
	if err := c.sendEvent("pass", map[string]int{"a": 1}); err == nil {
		t.Error("expected write error")
	}
}

type nopFlusher struct{}

func (nopFlusher) Flush() {}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }
