package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/hi115009/rechat/archive"
	"github.com/hi115009/rechat/telemetry"
)

// RecordOptions adjust a recording session. Channel is required; everything
// else has a sensible default.
type RecordOptions struct {
	Channel string
	// VideoID is the archival content id. When empty, a session id of the
	// form live-<channel>-<unix start> is synthesized.
	VideoID string
	// Start anchors the content offsets; defaults to the session start.
	Start time.Time
	// Dest is the archive path; when empty it lands in DataDir (default
	// "data") as <video id>.json.
	Dest      string
	DataDir   string
	Overwrite bool
}

// RecordResult summarizes a finished recording session. Warning carries
// non-fatal trouble, such as a failed timestamp stamping.
type RecordResult struct {
	Path     string
	VideoID  string
	Messages int
	Warning  error
}

// Record joins the channel anonymously and streams every chat message into a
// replay archive until ctx is canceled, then finalizes the archive and stamps
// its times. The archive is well-formed only after a clean shutdown, which is
// what lets the import scanner skip recordings still in flight.
func Record(ctx context.Context, opts RecordOptions) (*RecordResult, error) {
	if opts.Channel == "" {
		return nil, fmt.Errorf("channel required")
	}
	start := opts.Start
	if start.IsZero() {
		start = time.Now().UTC()
	}
	videoID := opts.VideoID
	if videoID == "" {
		videoID = sessionVideoID(opts.Channel, start)
	}
	dest := opts.Dest
	if dest == "" {
		dir := opts.DataDir
		if dir == "" {
			dir = "data"
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir data dir: %w", err)
		}
		dest = filepath.Join(dir, videoID+".json")
	}
	w, err := archive.Create(dest, opts.Overwrite)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	logger := slog.Default().With(slog.String("component", "chat_record"), slog.String("channel", opts.Channel), slog.String("video_id", videoID))

	var (
		mu        sync.Mutex
		appendErr error
		lastAt    time.Time
	)
	client := twitch.NewAnonymousClient()
	client.OnConnect(func() {
		logger.Info("chat recorder connected")
	})
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		rec := buildRecord(msg, videoID, start)
		data, err := json.Marshal(rec)
		if err != nil {
			logger.Warn("marshal chat record", slog.Any("err", err))
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if appendErr != nil {
			return
		}
		if err := w.Append(data); err != nil {
			appendErr = err
			return
		}
		lastAt = rec.CreatedAt
		telemetry.MessagesRecorded.Inc()
	})
	client.Join(opts.Channel)

	connErr := make(chan error, 1)
	go func() { connErr <- client.Connect() }()
	select {
	case <-ctx.Done():
		if err := client.Disconnect(); err != nil {
			logger.Warn("chat disconnect", slog.Any("err", err))
		}
		<-connErr
	case err := <-connErr:
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("twitch chat connect: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if appendErr != nil {
		return nil, fmt.Errorf("write archive record: %w", appendErr)
	}
	if err := w.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	count := w.Count()
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	res := &RecordResult{Path: dest, VideoID: videoID, Messages: count}
	if count > 0 {
		t := archive.Times{Start: start, End: lastAt}
		if err := t.Apply(dest); err != nil {
			res.Warning = err
			logger.Warn("recording metadata incomplete", slog.Any("err", err))
		}
	}
	logger.Info("chat recording complete", slog.String("path", dest), slog.Int("messages", count))
	return res, nil
}

// sessionVideoID names a live recording session.
func sessionVideoID(channel string, start time.Time) string {
	return fmt.Sprintf("live-%s-%d", strings.ToLower(channel), start.Unix())
}

// Wire shapes matching the replay API's records, so recordings flow through
// the same parser, renderer, and importer as fetched archives.
type wireRecord struct {
	ID                   string        `json:"_id"`
	CreatedAt            time.Time     `json:"created_at"`
	ContentOffsetSeconds float64       `json:"content_offset_seconds"`
	ContentID            string        `json:"content_id"`
	Source               string        `json:"source"`
	Commenter            wireCommenter `json:"commenter"`
	Message              wireMessage   `json:"message"`
}

type wireCommenter struct {
	DisplayName string `json:"display_name"`
	ID          string `json:"_id"`
	Name        string `json:"name"`
}

type wireMessage struct {
	Body       string      `json:"body"`
	IsAction   bool        `json:"is_action"`
	UserBadges []wireBadge `json:"user_badges"`
}

type wireBadge struct {
	ID      string `json:"_id"`
	Version string `json:"version"`
}

// buildRecord converts one IRC message into an archival record. Offsets are
// anchored at start and clamped to zero so a message delivered before the
// anchor never yields a negative offset.
func buildRecord(msg twitch.PrivateMessage, videoID string, start time.Time) wireRecord {
	created := msg.Time.UTC()
	if msg.Time.IsZero() {
		created = time.Now().UTC()
	}
	offset := created.Sub(start)
	if offset < 0 {
		offset = 0
	}
	display := msg.User.DisplayName
	if display == "" {
		display = msg.User.Name
	}
	var badges []wireBadge
	if len(msg.User.Badges) > 0 {
		ids := make([]string, 0, len(msg.User.Badges))
		for id := range msg.User.Badges {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		badges = make([]wireBadge, len(ids))
		for i, id := range ids {
			badges[i] = wireBadge{ID: id, Version: strconv.Itoa(msg.User.Badges[id])}
		}
	}
	return wireRecord{
		ID:                   msg.ID,
		CreatedAt:            created,
		ContentOffsetSeconds: offset.Seconds(),
		ContentID:            videoID,
		Source:               "chat",
		Commenter: wireCommenter{
			DisplayName: display,
			ID:          msg.User.ID,
			Name:        msg.User.Name,
		},
		Message: wireMessage{
			Body:       msg.Message,
			IsAction:   msg.Action,
			UserBadges: badges,
		},
	}
}
