package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hi115009/rechat/db"
	"github.com/hi115009/rechat/transcript"
)

// handleTranscript streams a plain-text transcript of the stored messages,
// one line per message in the same format the file renderer produces.
func (h *Handlers) handleTranscript(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	showBadges := parseBoolQuery(r, "badges", false)

	v, err := db.GetVideo(r.Context(), h.db, videoID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if v == nil {
		http.NotFound(w, r)
		return
	}

	it, err := db.StreamMessages(r.Context(), h.db, videoID, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := it.Close(); err != nil {
			slog.Warn("failed to close message stream", slog.Any("err", err))
		}
	}()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", videoID+".txt"))

	bw := bufio.NewWriter(w)
	for it.Next() {
		m := it.Message()
		if _, err := bw.WriteString(transcript.FormatLine(m.Comment(), showBadges)); err != nil {
			return
		}
		if err := bw.WriteByte('\n'); err != nil {
			return
		}
	}
	if err := it.Err(); err != nil {
		// Headers are long gone; all we can do is cut the body short.
		slog.Warn("transcript stream ended with error", slog.Any("err", err), slog.String("video_id", videoID))
		return
	}
	if err := bw.Flush(); err != nil {
		slog.Warn("failed to flush transcript", slog.Any("err", err))
	}
}
