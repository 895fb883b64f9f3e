// Command rechat archives Twitch chat replays and plays them back.
// It:
//   - Downloads a video's chat replay into a JSON archive file.
//   - Renders an archive into a plain-text transcript.
//   - Records live channel chat into the same archive format.
//   - Imports archives into Postgres and serves them over a replay HTTP API.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hi115009/rechat/archive"
	"github.com/hi115009/rechat/chat"
	"github.com/hi115009/rechat/config"
	"github.com/hi115009/rechat/db"
	"github.com/hi115009/rechat/server"
	"github.com/hi115009/rechat/telemetry"
	"github.com/hi115009/rechat/transcript"
	"github.com/hi115009/rechat/twitchapi"
)

// version is stamped by the build via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) { // text | json
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("rechat", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]
	args := os.Args[2:]
	var cmdErr error
	switch cmd {
	case "download":
		cmdErr = runDownload(ctx, cfg, args)
	case "render":
		cmdErr = runRender(args)
	case "record":
		cmdErr = runRecord(ctx, cfg, args)
	case "import":
		cmdErr = runImport(ctx, cfg, args)
	case "serve":
		cmdErr = runServe(ctx, cfg)
	case "version":
		fmt.Println(version)
	default:
		usage()
		cmdErr = fmt.Errorf("unknown command %q", cmd)
	}
	if cmdErr != nil {
		slog.Error(cmd+" failed", slog.Any("err", cmdErr))
		stop()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `rechat archives Twitch chat replays and plays them back.

Usage:
  rechat download [-o] [-render] [-b] <video-id-or-url> [dest.json]
  rechat render [-o] [-b] <archive.json> [dest.txt]
  rechat record [-o] <channel> [dest.json]
  rechat import <archive.json ...>
  rechat serve
  rechat version
`)
}

// helixClient builds a Helix client when app credentials are configured,
// or returns nil: every Helix lookup is a best-effort extra.
func helixClient(cfg *config.Config) *twitchapi.HelixClient {
	if err := cfg.ValidateHelixReady(); err != nil {
		return nil
	}
	return &twitchapi.HelixClient{
		ClientID: cfg.TwitchClientID,
		AppTokenSource: &twitchapi.TokenSource{
			ClientID:     cfg.TwitchClientID,
			ClientSecret: cfg.TwitchClientSecret,
		},
	}
}

func runDownload(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	overwrite := fs.Bool("o", false, "overwrite an existing destination")
	render := fs.Bool("render", false, "render a transcript after the download")
	badges := fs.Bool("b", false, "show badge markers in the chained transcript")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: rechat download [-o] [-render] [-b] <video-id-or-url> [dest.json]")
	}
	videoID, err := twitchapi.ParseVideoID(fs.Arg(0))
	if err != nil {
		return err
	}
	dest := fs.Arg(1)
	if dest == "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		dest = filepath.Join(cfg.DataDir, videoID+".json")
	}

	// Best-effort metadata for the log; the replay API needs no credentials.
	if helix := helixClient(cfg); helix != nil {
		hctx, cancel := context.WithTimeout(ctx, 8*time.Second)
		if v, err := helix.GetVideo(hctx, videoID); err != nil {
			slog.Warn("video metadata lookup failed", slog.Any("err", err))
		} else {
			slog.Info("video metadata",
				slog.String("title", v.Title),
				slog.String("channel", v.UserLogin),
				slog.Duration("duration", v.Duration))
		}
		cancel()
	}

	client := &twitchapi.CommentsClient{BaseURL: cfg.CommentsURL, ClientID: cfg.CommentsClientID}
	sawProgress := false
	_, err = archive.Fetch(ctx, client, videoID, dest, archive.FetchOptions{
		Overwrite: *overwrite,
		OnProgress: func(pages int, offset time.Duration, offsetKnown bool) {
			sawProgress = true
			if offsetKnown {
				fmt.Fprintf(os.Stderr, "\rpage %d, %s", pages, transcript.FormatTimestamp(offset))
			} else {
				fmt.Fprintf(os.Stderr, "\rpage %d", pages)
			}
		},
	})
	if sawProgress {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if *render {
		if _, err := transcript.Render(dest, "", transcript.RenderOptions{Overwrite: *overwrite, ShowBadges: *badges}); err != nil {
			return err
		}
	}
	return nil
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	overwrite := fs.Bool("o", false, "overwrite an existing destination")
	badges := fs.Bool("b", false, "show badge markers")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: rechat render [-o] [-b] <archive.json> [dest.txt]")
	}
	_, err := transcript.Render(fs.Arg(0), fs.Arg(1), transcript.RenderOptions{Overwrite: *overwrite, ShowBadges: *badges})
	return err
}

func runRecord(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	overwrite := fs.Bool("o", false, "overwrite an existing destination")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: rechat record [-o] <channel> [dest.json]")
	}
	channel := fs.Arg(0)

	// Anchor offsets to the broadcast start when Helix can tell us; offsets
	// otherwise count from the moment the recorder joined.
	var start time.Time
	if helix := helixClient(cfg); helix != nil {
		hctx, cancel := context.WithTimeout(ctx, 8*time.Second)
		if s, err := helix.GetStream(hctx, channel); err != nil {
			slog.Warn("stream lookup failed", slog.Any("err", err))
		} else if s != nil {
			start = s.StartedAt
			slog.Info("recording against live broadcast",
				slog.String("title", s.Title),
				slog.Time("started_at", s.StartedAt))
		} else {
			slog.Warn("channel is not live; offsets anchor to recorder start", slog.String("channel", channel))
		}
		cancel()
	}

	_, err := chat.Record(ctx, chat.RecordOptions{
		Channel:   channel,
		Start:     start,
		Dest:      fs.Arg(1),
		DataDir:   cfg.DataDir,
		Overwrite: *overwrite,
	})
	return err
}

func runImport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: rechat import <archive.json ...>")
	}
	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB(database)
	helix := helixClient(cfg)
	for _, path := range fs.Args() {
		stats, err := db.ImportArchive(ctx, database, path)
		if err != nil {
			return err
		}
		if helix == nil {
			continue
		}
		// Title and channel are not part of the archive; backfill them from
		// Helix when credentials allow. Recorder session ids are unknown to
		// Helix, so a failed lookup is only worth a warning.
		hctx, cancel := context.WithTimeout(ctx, 8*time.Second)
		v, err := helix.GetVideo(hctx, stats.VideoID)
		cancel()
		if err != nil {
			slog.Warn("video metadata lookup failed",
				slog.String("video_id", stats.VideoID), slog.Any("err", err))
			continue
		}
		if err := db.UpsertVideo(ctx, database, db.Video{
			TwitchVideoID: stats.VideoID,
			Title:         v.Title,
			Channel:       v.UserLogin,
		}); err != nil {
			slog.Warn("video metadata upsert failed",
				slog.String("video_id", stats.VideoID), slog.Any("err", err))
		}
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB(database)

	go db.StartImportScanner(ctx, database, cfg.DataDir, cfg.ImportScanInterval)

	// Auto chat recorder: poll the channel and capture whenever it goes live.
	if os.Getenv("CHAT_AUTO_START") == "1" {
		switch {
		case cfg.ValidateChatReady() != nil:
			slog.Warn("auto chat recorder disabled (CHAT_CHANNEL not set)")
		case cfg.ValidateHelixReady() != nil:
			slog.Warn("auto chat recorder disabled (live polling needs twitch app credentials)")
		default:
			go chat.StartAutoRecorder(ctx, helixClient(cfg), chat.AutoOptions{
				Channel: cfg.ChatChannel,
				DataDir: cfg.DataDir,
			})
		}
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	server.Version = version
	return server.Start(ctx, database, cfg.Addr)
}

// openDB connects and migrates using the dual approach: versioned migrations
// (golang-migrate) when the migrations directory is present, embedded SQL as
// the fallback for trees deployed without it.
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			closeDB(database)
			return nil, fmt.Errorf("migrate db: %w", err)
		}
	}
	return database, nil
}

func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		slog.Error("failed to close database", slog.Any("err", err))
	}
}
