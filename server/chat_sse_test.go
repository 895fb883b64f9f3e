package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hi115009/rechat/db"
	"github.com/hi115009/rechat/telemetry"
	"github.com/hi115009/rechat/testutil"
)

// flushableRecorder wraps httptest.ResponseRecorder to implement http.Flusher
type flushableRecorder struct {
	*httptest.ResponseRecorder
	mu      sync.Mutex
	flushed int
}

func newFlushableRecorder() *flushableRecorder {
	return &flushableRecorder{ResponseRecorder: httptest.NewRecorder()}
}

func (f *flushableRecorder) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed++
}

func (f *flushableRecorder) FlushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushed
}

func parseSSEEvents(t *testing.T, body string) []chatMessageJSON {
	t.Helper()
	var events []chatMessageJSON
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev chatMessageJSON
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatalf("decode event %q: %v", data, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestChatSSEReplay(t *testing.T) {
	telemetry.Init()
	database := testutil.SetupTestDB(t)
	h := NewMux(database)
	ctx := context.Background()

	vid := fmt.Sprintf("testsse%d", time.Now().UnixNano())
	if err := db.UpsertVideo(ctx, database, db.Video{TwitchVideoID: vid}); err != nil {
		t.Fatalf("upsert video: %v", err)
	}
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, rel := range []float64{0, 0.1, 0.2} {
		_, err := database.ExecContext(ctx, `INSERT INTO chat_messages (video_id, comment_id, username, message, rel_timestamp, abs_timestamp)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			vid, fmt.Sprintf("%s-m%d", vid, i), fmt.Sprintf("user%d", i), fmt.Sprintf("msg %d", i), rel, base.Add(time.Duration(rel*float64(time.Second))))
		if err != nil {
			t.Fatalf("insert message: %v", err)
		}
	}

	t.Run("order and pacing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/videos/"+vid+"/chat/stream?speed=2", nil)
		w := newFlushableRecorder()
		start := time.Now()
		h.ServeHTTP(w, req)
		elapsed := time.Since(start)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
			t.Errorf("Content-Type = %q", ct)
		}
		events := parseSSEEvents(t, w.Body.String())
		if len(events) != 3 {
			t.Fatalf("got %d events, want 3", len(events))
		}
		for i, ev := range events {
			if ev.Username != fmt.Sprintf("user%d", i) {
				t.Errorf("event %d username = %q", i, ev.Username)
			}
		}
		// Two 100ms gaps at double speed pace out to at least ~100ms total.
		if elapsed < 90*time.Millisecond {
			t.Errorf("replay finished in %v, expected pacing delays", elapsed)
		}
		if w.FlushCount() < 3 {
			t.Errorf("flushed %d times, want one per event", w.FlushCount())
		}
	})

	t.Run("from offset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/videos/"+vid+"/chat/stream?from=0.15&speed=100", nil)
		w := newFlushableRecorder()
		h.ServeHTTP(w, req)
		events := parseSSEEvents(t, w.Body.String())
		if len(events) != 1 || events[0].Username != "user2" {
			t.Errorf("events from 0.15 = %+v, want only user2", events)
		}
	})

	t.Run("invalid speed falls back", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/videos/"+vid+"/chat/stream?speed=-4", nil)
		w := newFlushableRecorder()
		start := time.Now()
		h.ServeHTTP(w, req)
		elapsed := time.Since(start)
		if events := parseSSEEvents(t, w.Body.String()); len(events) != 3 {
			t.Fatalf("got %d events, want 3", len(events))
		}
		// Real-time pacing: two 100ms gaps.
		if elapsed < 190*time.Millisecond {
			t.Errorf("replay finished in %v, expected 1x pacing", elapsed)
		}
	})

	t.Run("client gone", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		req := httptest.NewRequest(http.MethodGet, "/videos/"+vid+"/chat/stream?speed=0.01", nil).WithContext(cancelCtx)
		w := newFlushableRecorder()
		done := make(chan struct{})
		go func() {
			h.ServeHTTP(w, req)
			close(done)
		}()
		time.Sleep(50 * time.Millisecond)
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not return after context cancel")
		}
	})
}
