package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hi115009/rechat/db"
	"github.com/hi115009/rechat/telemetry"
)

// maxReplaySpeed bounds the speed parameter so a replay cannot degenerate
// into an unpaced dump of the whole table.
const maxReplaySpeed = 100.0

type chatMessageJSON struct {
	Abs         time.Time `json:"abs_timestamp"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Message     string    `json:"message"`
	Badges      string    `json:"badges"`
	Rel         float64   `json:"rel_timestamp"`
	IsAction    bool      `json:"is_action"`
}

func toChatJSON(m db.ChatMessage) chatMessageJSON {
	return chatMessageJSON{
		Abs:         m.AbsTimestamp,
		Username:    m.Username,
		DisplayName: m.DisplayName,
		Message:     m.Message,
		Badges:      m.Badges,
		Rel:         m.RelTimestamp,
		IsAction:    m.IsAction,
	}
}

// handleChatJSON returns chat messages for a video within an optional offset range.
func (h *Handlers) handleChatJSON(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Params: from, to (offset seconds), limit (default 1000)
	from := parseFloat64Query(r, "from", 0)
	to := parseFloat64Query(r, "to", 0)
	limit := parseIntQuery(r, "limit", 1000)
	msgs, err := db.QueryMessages(r.Context(), h.db, videoID, from, to, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]chatMessageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toChatJSON(m))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// handleChatSSE replays messages using Server-Sent Events at a given playback speed.
func (h *Handlers) handleChatSSE(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	from := parseFloat64Query(r, "from", 0)
	speed := parseFloat64Query(r, "speed", 1.0)
	if speed <= 0 {
		speed = 1.0
	}
	if speed > maxReplaySpeed {
		speed = maxReplaySpeed
	}
	ctx := r.Context()
	it, err := db.StreamMessages(ctx, h.db, videoID, from)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := it.Close(); err != nil {
			slog.Warn("failed to close message stream", slog.Any("err", err))
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if telemetry.SSEActive != nil {
		telemetry.SSEActive.Inc()
		defer telemetry.SSEActive.Dec()
	}

	prev := from
	enc := json.NewEncoder(w)
	for it.Next() {
		m := it.Message()
		// sleep for the offset delta scaled by speed
		if m.RelTimestamp > prev {
			delay := time.Duration(((m.RelTimestamp - prev) / speed) * float64(time.Second))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		// write SSE event
		if _, err := w.Write([]byte("data: ")); err != nil {
			slog.Warn("failed to write SSE data prefix", slog.Any("err", err))
			return
		}
		_ = enc.Encode(toChatJSON(m))
		if _, err := w.Write([]byte("\n")); err != nil {
			slog.Warn("failed to write SSE newline", slog.Any("err", err))
			return
		}
		flusher.Flush()
		prev = m.RelTimestamp
	}
	if err := it.Err(); err != nil {
		slog.Warn("message stream ended with error", slog.Any("err", err), slog.String("video_id", videoID))
	}
}
