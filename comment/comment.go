// Package comment defines the typed view of a Twitch chat replay comment and
// the strict decoder that produces it from an archived wire record.
package comment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Badge is a role or status marker attached to a commenter at message time.
type Badge struct {
	ID      string
	Version string
}

// Message is the normalized view of a single comment record. It is
// constructed by Parse and never mutated afterwards.
type Message struct {
	// ID is the record's own identifier and ContentID the video it belongs
	// to. Both are optional on the wire and empty when absent.
	ID        string
	ContentID string
	// CreatedAt is the absolute time the message was posted.
	CreatedAt time.Time
	// ContentOffset is the elapsed time from the start of the video to the
	// message. Always non-negative.
	ContentOffset time.Duration
	// IsAction reports "/me"-style messages, which render as third-person
	// narration rather than a quoted utterance.
	IsAction bool
	// Source is the raw source tag from the wire ("chat" for live chat).
	// IsNonChat reports messages posted outside the live chat, e.g. VOD
	// comments. Kept for callers that want to filter; nothing here does.
	Source    string
	IsNonChat bool
	// MessageText is the raw body, carried as-is.
	MessageText string
	// UserName is the login name; UserDisplayName the display name with any
	// trailing spaces removed (the API occasionally pads them).
	UserName        string
	UserDisplayName string
	// UserBadges is the full badge list in wire order.
	UserBadges []Badge
}

// Wire-side shapes. Required fields are pointers so that absence is
// distinguishable from a zero value.
type record struct {
	ID                   string       `json:"_id"`
	ContentID            string       `json:"content_id"`
	CreatedAt            *time.Time   `json:"created_at"`
	ContentOffsetSeconds *float64     `json:"content_offset_seconds"`
	Source               string       `json:"source"`
	Commenter            *commenter   `json:"commenter"`
	Message              *messageBody `json:"message"`
}

type commenter struct {
	DisplayName string `json:"display_name"`
	ID          string `json:"_id"`
	Name        string `json:"name"`
}

type messageBody struct {
	Body       *string     `json:"body"`
	IsAction   bool        `json:"is_action"`
	UserBadges []wireBadge `json:"user_badges"`
}

type wireBadge struct {
	ID      string `json:"_id"`
	Version string `json:"version"`
}

// Parse decodes one archived comment record into a Message. It fails rather
// than defaulting when created_at, content_offset_seconds, commenter, or
// message.body is missing or malformed, or when the offset is negative.
func Parse(data []byte) (*Message, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode comment record: %w", err)
	}
	if rec.CreatedAt == nil {
		return nil, fmt.Errorf("comment record missing created_at")
	}
	if rec.ContentOffsetSeconds == nil {
		return nil, fmt.Errorf("comment record missing content_offset_seconds")
	}
	if *rec.ContentOffsetSeconds < 0 {
		return nil, fmt.Errorf("comment record has negative content_offset_seconds %v", *rec.ContentOffsetSeconds)
	}
	if rec.Commenter == nil {
		return nil, fmt.Errorf("comment record missing commenter")
	}
	if rec.Message == nil || rec.Message.Body == nil {
		return nil, fmt.Errorf("comment record missing message.body")
	}

	m := &Message{
		ID:              rec.ID,
		ContentID:       rec.ContentID,
		CreatedAt:       *rec.CreatedAt,
		ContentOffset:   time.Duration(*rec.ContentOffsetSeconds * float64(time.Second)),
		IsAction:        rec.Message.IsAction,
		Source:          rec.Source,
		IsNonChat:       rec.Source != "chat",
		MessageText:     *rec.Message.Body,
		UserName:        rec.Commenter.Name,
		UserDisplayName: strings.TrimRight(rec.Commenter.DisplayName, " "),
	}
	if len(rec.Message.UserBadges) > 0 {
		m.UserBadges = make([]Badge, len(rec.Message.UserBadges))
		for i, b := range rec.Message.UserBadges {
			m.UserBadges[i] = Badge{ID: b.ID, Version: b.Version}
		}
	}
	return m, nil
}

// IsAdmin reports whether the commenter carried the admin badge.
func (m *Message) IsAdmin() bool { return m.hasBadge("admin") }

// IsBroadcaster reports whether the commenter is the channel owner.
func (m *Message) IsBroadcaster() bool { return m.hasBadge("broadcaster") }

// IsModerator reports whether the commenter carried the moderator badge.
func (m *Message) IsModerator() bool { return m.hasBadge("moderator") }

// IsSubscriber reports whether the commenter carried the subscriber badge.
func (m *Message) IsSubscriber() bool { return m.hasBadge("subscriber") }

func (m *Message) hasBadge(id string) bool {
	for _, b := range m.UserBadges {
		if strings.EqualFold(b.ID, id) {
			return true
		}
	}
	return false
}
