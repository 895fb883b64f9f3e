package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleStatus returns a lightweight summary of the catalog and the serving
// process: row counts, uptime, version, and the last import scan heartbeat.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	resp := map[string]any{
		"version":        Version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	var videos, messages int64
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&videos)
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages`).Scan(&messages)
	resp["videos"] = videos
	resp["messages"] = messages

	// Job heartbeats written by the background loops.
	var lastScan string
	_ = h.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key='job_import_scan_last'`).Scan(&lastScan)
	if lastScan != "" {
		resp["last_import_scan"] = lastScan
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
