package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hi115009/rechat/comment"
	"github.com/hi115009/rechat/telemetry"
)

func importRecord(id, contentID string, offset float64, created, login, display, body string) string {
	return fmt.Sprintf(`{"_id":%q,"created_at":%q,"content_offset_seconds":%v,"content_id":%q,"commenter":{"display_name":%q,"_id":"u-%s","name":%q},"source":"chat","message":{"body":%q,"is_action":false,"user_badges":[{"_id":"subscriber","version":"3"}]}}`,
		id, created, offset, contentID, display, id, login, body)
}

func writeTestArchive(t *testing.T, path string, finished bool, records ...string) {
	t.Helper()
	content := []byte{0xEF, 0xBB, 0xBF, '['}
	content = append(content, strings.Join(records, ",")...)
	if finished {
		content = append(content, ']')
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBadgesString(t *testing.T) {
	if got := badgesString(nil); got != "" {
		t.Errorf("badgesString(nil) = %q, want empty", got)
	}
	badges := []comment.Badge{{ID: "moderator", Version: "1"}, {ID: "subscriber", Version: "12"}}
	if got, want := badgesString(badges), "moderator/1,subscriber/12"; got != want {
		t.Errorf("badgesString = %q, want %q", got, want)
	}
}

func TestParseBadges(t *testing.T) {
	if got := parseBadges(""); got != nil {
		t.Errorf("parseBadges(\"\") = %v, want nil", got)
	}
	got := parseBadges("moderator/1,subscriber/12")
	want := []comment.Badge{{ID: "moderator", Version: "1"}, {ID: "subscriber", Version: "12"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("parseBadges = %v, want %v", got, want)
	}
	// Versionless entries survive with an empty version.
	if got := parseBadges("vip"); len(got) != 1 || got[0].ID != "vip" || got[0].Version != "" {
		t.Errorf("parseBadges(\"vip\") = %v", got)
	}
	if got := badgesString(parseBadges("admin/1,broadcaster/1")); got != "admin/1,broadcaster/1" {
		t.Errorf("round trip = %q", got)
	}
}

func TestChatMessageComment(t *testing.T) {
	row := ChatMessage{
		VideoID:      "777",
		CommentID:    "abc",
		Username:     "bar",
		DisplayName:  "Foo",
		Message:      "hi",
		Source:       "chat",
		Badges:       "moderator/1",
		AbsTimestamp: time.Date(2020, 1, 1, 1, 2, 5, 0, time.UTC),
		RelTimestamp: 3725,
	}
	m := row.Comment()
	if m.ID != "abc" || m.ContentID != "777" {
		t.Errorf("ids = %q/%q", m.ID, m.ContentID)
	}
	if m.ContentOffset != 3725*time.Second {
		t.Errorf("ContentOffset = %v, want 3725s", m.ContentOffset)
	}
	if m.UserName != "bar" || m.UserDisplayName != "Foo" || m.MessageText != "hi" {
		t.Errorf("message fields = %+v", m)
	}
	if !m.IsModerator() || m.IsNonChat {
		t.Errorf("badge/source flags wrong: %+v", m)
	}
}

func TestVideoIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/777.json", "777"},
		{"/data/v123456789.json", "123456789"},
		{"somechannel-20200101.json", "somechannel-20200101"},
		{"v.json", "v"},
		{"/data/vlog.json", "vlog"},
	}
	for _, tt := range tests {
		if got := videoIDFromPath(tt.path); got != tt.want {
			t.Errorf("videoIDFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCandidateArchives(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "replay.txt", ".hidden.json", "upper.JSON"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.json"), 0o755); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	got := candidateArchives(entries)
	want := []string{"a.json", "b.json", "upper.JSON"}
	if len(got) != len(want) {
		t.Fatalf("candidateArchives = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidateArchives[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestImportArchive(t *testing.T) {
	database := testDB(t)
	telemetry.Init()
	ctx := context.Background()
	vid := fmt.Sprintf("testimp%d", time.Now().UnixNano())
	path := filepath.Join(t.TempDir(), vid+".json")
	writeTestArchive(t, path, true,
		importRecord("m1", vid, 10, "2020-01-01T00:00:10Z", "alice", "Alice", "first"),
		importRecord("m2", vid, 20, "2020-01-01T00:00:20Z", "bob", "Bob", "second"),
		importRecord("m3", vid, 3725, "2020-01-01T01:02:05Z", "carol", "Carol", "third"),
	)

	stats, err := ImportArchive(ctx, database, path)
	if err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if stats.VideoID != vid {
		t.Errorf("VideoID = %q, want %q", stats.VideoID, vid)
	}
	if stats.Records != 3 || stats.Inserted != 3 || stats.Duplicates != 0 {
		t.Errorf("stats = %+v, want 3 records all inserted", stats)
	}
	if want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC); !stats.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", stats.Start, want)
	}

	v, err := GetVideo(ctx, database, vid)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if v == nil {
		t.Fatal("video row missing after import")
	}
	if v.CommentCount != 3 || v.ArchivePath != path || v.ImportedAt.IsZero() {
		t.Errorf("video row = %+v, want count 3, path, import mark", v)
	}

	msgs, err := QueryMessages(ctx, database, vid, 0, 0, 0)
	if err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Username != "alice" || msgs[0].DisplayName != "Alice" || msgs[0].Message != "first" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[0].Badges != "subscriber/3" {
		t.Errorf("badges = %q, want subscriber/3", msgs[0].Badges)
	}

	// A second import of the same archive must skip every record.
	again, err := ImportArchive(ctx, database, path)
	if err != nil {
		t.Fatalf("second ImportArchive: %v", err)
	}
	if again.Inserted != 0 || again.Duplicates != 3 {
		t.Errorf("second import stats = %+v, want 0 inserted, 3 duplicates", again)
	}
}

func TestImportArchiveTruncated(t *testing.T) {
	database := testDB(t)
	telemetry.Init()
	ctx := context.Background()
	vid := fmt.Sprintf("testtrunc%d", time.Now().UnixNano())
	path := filepath.Join(t.TempDir(), vid+".json")
	// A fetch that never finished: record written, array never closed.
	writeTestArchive(t, path, false,
		importRecord("m1", vid, 10, "2020-01-01T00:00:10Z", "alice", "Alice", "first"),
	)

	if _, err := ImportArchive(ctx, database, path); err == nil {
		t.Fatal("ImportArchive succeeded on a truncated archive")
	}
	// The transaction must have rolled everything back.
	v, err := GetVideo(ctx, database, vid)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if v != nil {
		t.Errorf("video row %+v survived a rolled-back import", v)
	}
	msgs, err := QueryMessages(ctx, database, vid, 0, 0, 0)
	if err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("%d message rows survived a rolled-back import", len(msgs))
	}
}
