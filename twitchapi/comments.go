// Package twitchapi contains minimal clients for the Twitch APIs this tool
// talks to: the legacy v5 comments endpoint that serves chat replays, and
// Helix lookups for video and stream metadata using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultCommentsURL is the base of the v5 API that serves chat replays
	// for archived videos.
	DefaultCommentsURL = "https://api.twitch.tv/v5"
	// DefaultCommentsClientID is the public web player client id, which the
	// v5 endpoints accept without further authentication.
	DefaultCommentsClientID = "kimne78kx3ncx6brgo4mv6wki5h1ko"

	commentsAccept = "application/vnd.twitchtv.v5+json"
)

// CommentsClient fetches pages of a video's chat replay. The zero value uses
// the default base URL, client id, and http.DefaultClient.
type CommentsClient struct {
	BaseURL    string
	ClientID   string
	HTTPClient *http.Client
}

func (c *CommentsClient) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *CommentsClient) base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultCommentsURL
}

func (c *CommentsClient) clientID() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return DefaultCommentsClientID
}

// CommentsPage is one page of the paginated replay walk. Comments stay raw so
// they can be archived byte-for-byte. Next is nil when the response carried
// no continuation cursor (absent or null), which ends the walk; an empty
// string is a real cursor and does not.
type CommentsPage struct {
	Comments []json.RawMessage `json:"comments"`
	Next     *string           `json:"_next"`
}

// FirstPage requests the start of a video's replay (content offset zero).
func (c *CommentsClient) FirstPage(ctx context.Context, videoID string) (*CommentsPage, error) {
	return c.page(ctx, videoID, url.Values{"content_offset_seconds": []string{"0"}})
}

// NextPage requests the page a previous response pointed at.
func (c *CommentsClient) NextPage(ctx context.Context, videoID, cursor string) (*CommentsPage, error) {
	return c.page(ctx, videoID, url.Values{"cursor": []string{cursor}})
}

func (c *CommentsClient) page(ctx context.Context, videoID string, params url.Values) (*CommentsPage, error) {
	if videoID == "" {
		return nil, fmt.Errorf("video id empty")
	}
	u := fmt.Sprintf("%s/videos/%s/comments?%s", c.base(), url.PathEscape(videoID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", commentsAccept)
	req.Header.Set("Client-ID", c.clientID())
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, fmt.Errorf("comments request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read comments response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("comments request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var page CommentsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode comments page: %w", err)
	}
	return &page, nil
}
