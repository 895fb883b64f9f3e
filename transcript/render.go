package transcript

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hi115009/rechat/archive"
	"github.com/hi115009/rechat/comment"
	"github.com/hi115009/rechat/telemetry"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// RenderOptions adjust a Render.
type RenderOptions struct {
	Overwrite  bool
	ShowBadges bool
}

// RenderResult summarizes a completed render. Warning carries non-fatal
// trouble, such as a failed timestamp stamping, that does not invalidate the
// transcript on disk.
type RenderResult struct {
	Lines   int
	Warning error
}

// DefaultDestination returns where the transcript for src lands when the
// caller does not say: the source path with its extension replaced by .txt,
// or with a -p suffix when the source itself already is a .txt file.
func DefaultDestination(src string) string {
	ext := filepath.Ext(src)
	stem := strings.TrimSuffix(src, ext)
	if strings.EqualFold(ext, ".txt") {
		return stem + "-p.txt"
	}
	return stem + ".txt"
}

// Render streams the archive at src into a transcript at dest, resolving
// dest through DefaultDestination when empty. Every record must parse; the
// first malformed one aborts the render. Rendering the same archive twice
// yields byte-identical output.
func Render(src, dest string, opts RenderOptions) (*RenderResult, error) {
	if dest == "" {
		dest = DefaultDestination(src)
	}
	sc, err := archive.Open(src)
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	flags := os.O_WRONLY | os.O_CREATE
	if opts.Overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if _, err := bw.Write(bom); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}

	started := time.Now()
	var first, last *comment.Message
	lines := 0
	for sc.Next() {
		m, err := comment.Parse(sc.Record())
		if err != nil {
			return nil, fmt.Errorf("render %s: record %d: %w", src, lines+1, err)
		}
		if first == nil {
			first = m
		}
		last = m
		if _, err := bw.WriteString(FormatLine(m, opts.ShowBadges)); err != nil {
			return nil, fmt.Errorf("write transcript: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return nil, fmt.Errorf("write transcript: %w", err)
		}
		lines++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}
	// Close before stamping times so the flush does not clobber them.
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close transcript: %w", err)
	}

	res := &RenderResult{Lines: lines}
	if first != nil {
		if err := archive.DeriveTimes(first, last).Apply(dest); err != nil {
			res.Warning = err
			slog.Warn("transcript metadata incomplete",
				slog.String("component", "transcript"),
				slog.String("path", dest),
				slog.Any("err", err))
		}
	}
	telemetry.RendersSucceeded.Inc()
	telemetry.TranscriptLines.Add(float64(lines))
	slog.Info("transcript complete",
		slog.String("component", "transcript"),
		slog.String("source", src),
		slog.String("path", dest),
		slog.Int("lines", lines),
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	return res, nil
}
