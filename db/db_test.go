package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set; skipping postgres test")
	}
	database, err := Connect(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	if err := Migrate(context.Background(), database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func TestMigrateIdempotent(t *testing.T) {
	database := testDB(t)
	// A second pass over the embedded schema must be a no-op.
	if err := Migrate(context.Background(), database); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestVideoRoundTrip(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	id := fmt.Sprintf("testvid-%d", time.Now().UnixNano())
	started := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := UpsertVideo(ctx, database, Video{TwitchVideoID: id, Title: "first stream", Channel: "somechannel", StartedAt: started}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// A partial update must not clobber columns it does not carry.
	if err := UpsertVideo(ctx, database, Video{TwitchVideoID: id, CommentCount: 5}); err != nil {
		t.Fatalf("partial upsert: %v", err)
	}

	v, err := GetVideo(ctx, database, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v == nil {
		t.Fatal("video not found after upsert")
	}
	if v.Title != "first stream" || v.Channel != "somechannel" {
		t.Errorf("title/channel = %q/%q, want kept values", v.Title, v.Channel)
	}
	if !v.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", v.StartedAt, started)
	}
	if v.CommentCount != 5 {
		t.Errorf("CommentCount = %d, want 5", v.CommentCount)
	}

	missing, err := GetVideo(ctx, database, id+"-absent")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("GetVideo for an absent id = %+v, want nil", missing)
	}

	list, err := ListVideos(ctx, database, 500)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, lv := range list {
		if lv.TwitchVideoID == id {
			found = true
		}
	}
	if !found {
		t.Error("ListVideos does not include the upserted video")
	}
}

func TestQueryMessagesWindow(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	id := fmt.Sprintf("testwin-%d", time.Now().UnixNano())
	if err := UpsertVideo(ctx, database, Video{TwitchVideoID: id}); err != nil {
		t.Fatalf("upsert video: %v", err)
	}
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, rel := range []float64{10, 20, 30} {
		_, err := database.ExecContext(ctx, `INSERT INTO chat_messages (video_id, comment_id, username, message, rel_timestamp, abs_timestamp)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			id, fmt.Sprintf("%s-m%d", id, i), "someone", fmt.Sprintf("msg %d", i), rel, base.Add(time.Duration(rel)*time.Second))
		if err != nil {
			t.Fatalf("insert message: %v", err)
		}
	}

	all, err := QueryMessages(ctx, database, id, 0, 0, 0)
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d messages, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].RelTimestamp < all[i-1].RelTimestamp {
			t.Errorf("messages out of offset order: %v then %v", all[i-1].RelTimestamp, all[i].RelTimestamp)
		}
	}

	window, err := QueryMessages(ctx, database, id, 15, 25, 0)
	if err != nil {
		t.Fatalf("query window: %v", err)
	}
	if len(window) != 1 || window[0].RelTimestamp != 20 {
		t.Errorf("window [15,25) = %+v, want the single rel=20 message", window)
	}

	it, err := StreamMessages(ctx, database, id, 15)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer it.Close()
	var rels []float64
	for it.Next() {
		rels = append(rels, it.Message().RelTimestamp)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("stream err: %v", err)
	}
	if len(rels) != 2 || rels[0] != 20 || rels[1] != 30 {
		t.Errorf("streamed offsets from 15 = %v, want [20 30]", rels)
	}
}
