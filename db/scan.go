package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// StartImportScanner periodically sweeps dataDir for archive files that are
// not yet in the catalog and imports them. A failed or partial import is
// retried on the next sweep, so a fetch still in flight just gets picked up
// once its archive is complete.
func StartImportScanner(ctx context.Context, dbc *sql.DB, dataDir string, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("import scanner starting",
		slog.String("component", "import_scan"),
		slog.String("dir", dataDir),
		slog.Duration("interval", interval))
	// Kick an immediate run so we don't wait a full interval after boot.
	if err := scanOnce(ctx, dbc, dataDir); err != nil {
		slog.Warn("import scan", slog.String("component", "import_scan"), slog.Any("err", err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("import scanner stopped", slog.String("component", "import_scan"))
			return
		case <-ticker.C:
			if err := scanOnce(ctx, dbc, dataDir); err != nil {
				slog.Warn("import scan", slog.String("component", "import_scan"), slog.Any("err", err))
			}
		}
	}
}

func scanOnce(ctx context.Context, dbc *sql.DB, dataDir string) error {
	_, _ = dbc.ExecContext(ctx, `INSERT INTO kv (key,value,updated_at) VALUES ('job_import_scan_last', to_char(NOW() AT TIME ZONE 'UTC','YYYY-MM-DD"T"HH24:MI:SS.MS"Z"'), NOW())
		ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`)
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return fmt.Errorf("read data dir: %w", err)
	}
	for _, name := range candidateArchives(entries) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		path := filepath.Join(dataDir, name)
		var one int
		err := dbc.QueryRowContext(ctx, `SELECT 1 FROM videos WHERE archive_path=$1 AND imported_at IS NOT NULL`, path).Scan(&one)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if _, err := ImportArchive(ctx, dbc, path); err != nil {
			slog.Warn("archive import failed",
				slog.String("component", "import_scan"),
				slog.String("path", path),
				slog.Any("err", err))
		}
	}
	return nil
}

// candidateArchives filters a directory listing down to the files worth
// importing: plain .json files, with dotfiles and subdirectories skipped.
// Order is stable so repeated sweeps visit files the same way.
func candidateArchives(entries []os.DirEntry) []string {
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".json") {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
