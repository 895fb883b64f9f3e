package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hi115009/rechat/comment"
	"github.com/hi115009/rechat/telemetry"
	"github.com/hi115009/rechat/twitchapi"
)

// ProgressFunc receives fetch progress after every page: the cumulative page
// count and the content offset of the most recent record. offsetKnown is
// false until a record has been seen, and goes false again when the latest
// record does not parse; the fetch itself keeps going either way.
type ProgressFunc func(pages int, offset time.Duration, offsetKnown bool)

// FetchOptions adjust a Fetch. OnProgress may be nil.
type FetchOptions struct {
	Overwrite  bool
	OnProgress ProgressFunc
}

// FetchResult summarizes a completed fetch. Warning carries non-fatal
// trouble, such as a failed timestamp stamping, that does not invalidate the
// archive on disk.
type FetchResult struct {
	Pages    int
	Comments int
	Times    *Times
	Warning  error
}

// Fetch walks the paginated chat replay of videoID and streams every record
// into an archive at dest. Pages are requested strictly in sequence, each
// from the cursor the previous response supplied, until a response carries
// none; at most one page is held in memory at a time. A transport error or a
// malformed page aborts the fetch, possibly leaving a partial file behind.
func Fetch(ctx context.Context, client *twitchapi.CommentsClient, videoID, dest string, opts FetchOptions) (*FetchResult, error) {
	w, err := Create(dest, opts.Overwrite)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	started := time.Now()
	var (
		firstRaw    json.RawMessage
		lastRaw     json.RawMessage
		lastOffset  time.Duration
		offsetKnown bool
		cursor      string
		pages       int
	)
	for {
		var page *twitchapi.CommentsPage
		if pages == 0 {
			page, err = client.FirstPage(ctx, videoID)
		} else {
			page, err = client.NextPage(ctx, videoID, cursor)
		}
		if err != nil {
			telemetry.FetchErrors.Inc()
			return nil, fmt.Errorf("fetch page %d for video %s: %w", pages+1, videoID, err)
		}
		pages++
		for _, rec := range page.Comments {
			if err := w.Append(rec); err != nil {
				telemetry.FetchErrors.Inc()
				return nil, fmt.Errorf("write archive record: %w", err)
			}
		}
		telemetry.PagesFetched.Inc()
		telemetry.CommentsArchived.Add(float64(len(page.Comments)))
		if n := len(page.Comments); n > 0 {
			if firstRaw == nil {
				firstRaw = page.Comments[0]
			}
			lastRaw = page.Comments[n-1]
			if m, err := comment.Parse(lastRaw); err == nil {
				lastOffset = m.ContentOffset
				offsetKnown = true
			} else {
				offsetKnown = false
			}
		}
		slog.Debug("fetched comments page",
			slog.String("component", "archive"),
			slog.String("video_id", videoID),
			slog.Int("page", pages),
			slog.Int("comments", len(page.Comments)),
			slog.Duration("offset", lastOffset))
		if opts.OnProgress != nil {
			opts.OnProgress(pages, lastOffset, offsetKnown)
		}
		if page.Next == nil {
			break
		}
		cursor = *page.Next
	}

	if err := w.Finalize(); err != nil {
		telemetry.FetchErrors.Inc()
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	res := &FetchResult{Pages: pages, Comments: w.Count()}
	// Close before stamping times so the flush does not clobber them.
	if err := w.Close(); err != nil {
		telemetry.FetchErrors.Inc()
		return nil, fmt.Errorf("close archive: %w", err)
	}

	if res.Comments > 0 {
		first, ferr := comment.Parse(firstRaw)
		last, lerr := comment.Parse(lastRaw)
		switch {
		case ferr != nil:
			res.Warning = fmt.Errorf("archive times unavailable: first record: %w", ferr)
		case lerr != nil:
			res.Warning = fmt.Errorf("archive times unavailable: last record: %w", lerr)
		default:
			t := DeriveTimes(first, last)
			if err := t.Apply(dest); err != nil {
				res.Warning = err
			} else {
				res.Times = &t
			}
		}
	}
	if res.Warning != nil {
		slog.Warn("archive metadata incomplete",
			slog.String("component", "archive"),
			slog.String("video_id", videoID),
			slog.String("path", dest),
			slog.Any("err", res.Warning))
	}
	telemetry.FetchDuration.Observe(time.Since(started).Seconds())
	slog.Info("archive complete",
		slog.String("component", "archive"),
		slog.String("video_id", videoID),
		slog.String("path", dest),
		slog.Int("pages", res.Pages),
		slog.Int("comments", res.Comments),
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	return res, nil
}
