package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HelixClient provides the few Helix lookups the tool needs. All of them are
// best-effort extras on top of the replay pipeline, so callers treat failures
// as warnings.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) get(ctx context.Context, rawURL string, query map[string]string, out any) error {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("helix request failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Video is the Helix metadata for an archived video.
type Video struct {
	ID        string
	Title     string
	UserLogin string
	CreatedAt time.Time
	Duration  time.Duration
}

// GetVideo fetches metadata for a single video id.
func (hc *HelixClient) GetVideo(ctx context.Context, id string) (*Video, error) {
	if id == "" {
		return nil, fmt.Errorf("video id empty")
	}
	var body struct {
		Data []struct {
			ID        string    `json:"id"`
			Title     string    `json:"title"`
			UserLogin string    `json:"user_login"`
			CreatedAt time.Time `json:"created_at"`
			Duration  string    `json:"duration"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "https://api.twitch.tv/helix/videos", map[string]string{"id": id}, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("video not found")
	}
	v := body.Data[0]
	return &Video{
		ID:        v.ID,
		Title:     v.Title,
		UserLogin: v.UserLogin,
		CreatedAt: v.CreatedAt,
		Duration:  time.Duration(parseTwitchDuration(v.Duration)) * time.Second,
	}, nil
}

// Stream is the Helix state of a live broadcast.
type Stream struct {
	UserLogin string
	Title     string
	StartedAt time.Time
}

// GetStream returns the live stream for a login, or nil when the channel is
// offline.
func (hc *HelixClient) GetStream(ctx context.Context, login string) (*Stream, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			UserLogin string    `json:"user_login"`
			Title     string    `json:"title"`
			StartedAt time.Time `json:"started_at"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "https://api.twitch.tv/helix/streams", map[string]string{"user_login": login}, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	s := body.Data[0]
	return &Stream{UserLogin: s.UserLogin, Title: s.Title, StartedAt: s.StartedAt}, nil
}

// parseTwitchDuration parses Twitch duration format like "3h15m42s" into
// whole seconds.
func parseTwitchDuration(s string) int {
	var total int
	cur := ""
	for _, r := range s {
		if r >= '0' && r <= '9' {
			cur += string(r)
			continue
		}
		if cur == "" {
			continue
		}
		n := 0
		for _, d := range cur {
			n = n*10 + int(d-'0')
		}
		switch r {
		case 'h':
			total += n * 3600
		case 'm':
			total += n * 60
		case 's':
			total += n
		}
		cur = ""
	}
	return total
}
