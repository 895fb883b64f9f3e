package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hi115009/rechat/archive"
)

// ChatRecord builds one archived comment record in the replay wire shape.
// Badges are id/version pairs, e.g. "moderator/1"; a bare id gets version 1.
func ChatRecord(id, contentID string, offset float64, created time.Time, login, display, body string, badges ...string) string {
	parts := make([]string, len(badges))
	for i, b := range badges {
		bid, ver, found := strings.Cut(b, "/")
		if !found {
			ver = "1"
		}
		parts[i] = fmt.Sprintf(`{"_id":%q,"version":%q}`, bid, ver)
	}
	return fmt.Sprintf(`{"_id":%q,"created_at":%q,"content_offset_seconds":%v,"content_id":%q,"commenter":{"display_name":%q,"_id":"u-%s","name":%q},"source":"chat","message":{"body":%q,"is_action":false,"user_badges":[%s]}}`,
		id, created.UTC().Format(time.RFC3339), offset, contentID, display, id, login, body, strings.Join(parts, ","))
}

// WriteArchive writes a complete archive file containing the given records.
func WriteArchive(t *testing.T, path string, records ...string) {
	t.Helper()
	w, err := archive.Create(path, true)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	for _, rec := range records {
		if err := w.Append(json.RawMessage(rec)); err != nil {
			t.Fatalf("append record: %v", err)
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("finalize archive: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
}
