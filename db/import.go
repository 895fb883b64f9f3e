package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/hi115009/rechat/archive"
	"github.com/hi115009/rechat/comment"
	"github.com/hi115009/rechat/telemetry"
)

// ImportStats summarizes one archive ingestion.
type ImportStats struct {
	VideoID    string
	Records    int
	Inserted   int
	Duplicates int
	Start      time.Time
	End        time.Time
}

// ImportArchive ingests an archive file into the catalog inside a single
// transaction: every record becomes a chat_messages row, with duplicates by
// comment id skipped, and the videos row gains the derived start and end
// times, the record count, and the import mark. A malformed or truncated
// archive rolls the whole transaction back, so a file a fetch never finished
// imports nothing and is picked up again once it is complete.
func ImportArchive(ctx context.Context, dbx *sql.DB, path string) (*ImportStats, error) {
	sc, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	started := time.Now()
	tx, err := dbx.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chat_messages (video_id, comment_id, username, display_name, message, is_action, source, badges, abs_timestamp, rel_timestamp)
		VALUES ($1,NULLIF($2,''),$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (video_id, comment_id) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert chat: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			slog.Warn("failed to close prepared statement", slog.Any("err", err))
		}
	}()

	stats := &ImportStats{}
	var first, last *comment.Message
	videoID := ""
	for sc.Next() {
		m, err := comment.Parse(sc.Record())
		if err != nil {
			return nil, fmt.Errorf("import %s: record %d: %w", path, stats.Records+1, err)
		}
		if videoID == "" {
			videoID = m.ContentID
			if videoID == "" {
				videoID = videoIDFromPath(path)
			}
			if videoID == "" {
				return nil, fmt.Errorf("import %s: cannot determine video id", path)
			}
			// The parent row must exist before message rows reference it.
			if err := UpsertVideo(ctx, tx, Video{TwitchVideoID: videoID}); err != nil {
				return nil, fmt.Errorf("upsert video %s: %w", videoID, err)
			}
		}
		if first == nil {
			first = m
		}
		last = m
		res, err := stmt.ExecContext(ctx, videoID, m.ID, m.UserName, m.UserDisplayName, m.MessageText,
			m.IsAction, m.Source, badgesString(m.UserBadges), m.CreatedAt, m.ContentOffset.Seconds())
		if err != nil {
			return nil, fmt.Errorf("import %s: insert record %d: %w", path, stats.Records+1, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			stats.Inserted += int(n)
		}
		stats.Records++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	if videoID == "" {
		videoID = videoIDFromPath(path)
		if videoID == "" {
			return nil, fmt.Errorf("import %s: cannot determine video id", path)
		}
	}
	stats.VideoID = videoID
	stats.Duplicates = stats.Records - stats.Inserted
	if first != nil {
		t := archive.DeriveTimes(first, last)
		stats.Start, stats.End = t.Start, t.End
	}

	if err := UpsertVideo(ctx, tx, Video{
		TwitchVideoID: videoID,
		StartedAt:     stats.Start,
		EndedAt:       stats.End,
		ArchivePath:   path,
		CommentCount:  stats.Records,
		ImportedAt:    time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("upsert video %s: %w", videoID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import tx: %w", err)
	}

	telemetry.RecordsImported.Add(float64(stats.Inserted))
	telemetry.ImportDuration.Observe(time.Since(started).Seconds())
	slog.Info("archive imported",
		slog.String("component", "db_import"),
		slog.String("video_id", videoID),
		slog.String("path", path),
		slog.Int("records", stats.Records),
		slog.Int("inserted", stats.Inserted),
		slog.Int("duplicates", stats.Duplicates),
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	return stats, nil
}

// badgesString flattens a badge list for the text column, id/version pairs
// joined by commas.
func badgesString(badges []comment.Badge) string {
	if len(badges) == 0 {
		return ""
	}
	parts := make([]string, len(badges))
	for i, b := range badges {
		parts[i] = b.ID + "/" + b.Version
	}
	return strings.Join(parts, ",")
}

// parseBadges is the inverse of badgesString. Entries without a version keep
// an empty Version rather than being dropped.
func parseBadges(s string) []comment.Badge {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	badges := make([]comment.Badge, 0, len(parts))
	for _, p := range parts {
		id, version, _ := strings.Cut(p, "/")
		if id == "" {
			continue
		}
		badges = append(badges, comment.Badge{ID: id, Version: version})
	}
	return badges
}

// videoIDFromPath recovers a video id from an archive filename when the
// records do not carry one: the file stem, with a leading "v" stripped from
// all-digit Twitch ids.
func videoIDFromPath(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if rest := strings.TrimPrefix(stem, "v"); rest != stem && rest != "" && allDigits(rest) {
		return rest
	}
	return stem
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
