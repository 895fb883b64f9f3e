package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hi115009/rechat/db"
)

// videoJSON is the wire shape for catalog rows. Zero times are omitted so a
// half-imported row does not surface epoch timestamps.
type videoJSON struct {
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	ImportedAt   *time.Time `json:"imported_at,omitempty"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Channel      string     `json:"channel"`
	CommentCount int        `json:"comment_count"`
}

func toVideoJSON(v db.Video) videoJSON {
	out := videoJSON{
		ID:           v.TwitchVideoID,
		Title:        v.Title,
		Channel:      v.Channel,
		CommentCount: v.CommentCount,
	}
	if !v.StartedAt.IsZero() {
		t := v.StartedAt
		out.StartedAt = &t
	}
	if !v.EndedAt.IsZero() {
		t := v.EndedAt
		out.EndedAt = &t
	}
	if !v.ImportedAt.IsZero() {
		t := v.ImportedAt
		out.ImportedAt = &t
	}
	return out
}

// HandleVideosList returns the catalog, newest first.
func (h *Handlers) HandleVideosList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 100)
	videos, err := db.ListVideos(r.Context(), h.db, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	list := make([]videoJSON, 0, len(videos))
	for _, v := range videos {
		list = append(list, toVideoJSON(v))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// HandleVideosDispatcher routes requests under /videos/{id}/* to appropriate sub-handlers.
func (h *Handlers) HandleVideosDispatcher(w http.ResponseWriter, r *http.Request) {
	// crude routing
	path := strings.TrimPrefix(r.URL.Path, "/videos/")
	parts := strings.Split(path, "/")
	videoID := parts[0]
	tail := ""
	if len(parts) > 1 {
		tail = strings.Join(parts[1:], "/")
	}
	switch {
	case videoID == "" || videoID == "/":
		http.NotFound(w, r)
	case tail == "":
		h.handleVideoDetail(w, r, videoID)
	case tail == "chat":
		h.handleChatJSON(w, r, videoID)
	case tail == "chat/stream":
		h.handleChatSSE(w, r, videoID)
	case tail == "transcript":
		h.handleTranscript(w, r, videoID)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handlers) handleVideoDetail(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, err := db.GetVideo(r.Context(), h.db, videoID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if v == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toVideoJSON(*v))
}
