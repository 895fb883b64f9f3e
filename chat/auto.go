package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/hi115009/rechat/twitchapi"
)

// AutoOptions adjust the auto recorder.
type AutoOptions struct {
	Channel      string
	DataDir      string
	PollInterval time.Duration
}

// StartAutoRecorder polls the channel's live status and records chat for the
// duration of every live session. Each session gets its own archive in the
// data directory; the import scanner picks it up after the recorder
// finalizes it at stream end. The loop runs until ctx is canceled.
func StartAutoRecorder(ctx context.Context, helix *twitchapi.HelixClient, opts AutoOptions) {
	if opts.Channel == "" {
		slog.Info("auto chat: channel empty; abort")
		return
	}
	pollEvery := opts.PollInterval
	if pollEvery <= 0 {
		pollEvery = 30 * time.Second
	}
	slog.Info("auto chat: started poller",
		slog.String("component", "chat_auto"),
		slog.String("channel", opts.Channel),
		slog.Duration("interval", pollEvery))

	var (
		recCancel context.CancelFunc
		recDone   chan struct{}
	)
	stopRecorder := func() {
		if recCancel == nil {
			return
		}
		recCancel()
		<-recDone
		recCancel = nil
	}
	defer stopRecorder()

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		if recCancel != nil {
			select {
			case <-recDone:
				// Recorder exited on its own; allow a restart on the next
				// live poll.
				recCancel = nil
			default:
			}
		}
		stream, err := helix.GetStream(ctx, opts.Channel)
		switch {
		case err != nil:
			slog.Debug("auto chat: stream lookup", slog.String("component", "chat_auto"), slog.Any("err", err))
		case stream == nil:
			if recCancel != nil {
				slog.Info("auto chat: stream ended; finalizing recording",
					slog.String("component", "chat_auto"),
					slog.String("channel", opts.Channel))
				stopRecorder()
			}
		case recCancel == nil:
			started := stream.StartedAt.UTC()
			videoID := sessionVideoID(opts.Channel, started)
			slog.Info("auto chat: stream live; starting recorder",
				slog.String("component", "chat_auto"),
				slog.String("channel", opts.Channel),
				slog.String("video_id", videoID),
				slog.Time("started_at", started))
			recCtx, cancel := context.WithCancel(ctx)
			recCancel = cancel
			done := make(chan struct{})
			recDone = done
			go func() {
				defer close(done)
				// Overwrite handles a recorder restart within one session.
				if _, err := Record(recCtx, RecordOptions{
					Channel:   opts.Channel,
					VideoID:   videoID,
					Start:     started,
					DataDir:   opts.DataDir,
					Overwrite: true,
				}); err != nil {
					slog.Warn("auto chat: recorder exited", slog.String("component", "chat_auto"), slog.Any("err", err))
				}
			}()
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
