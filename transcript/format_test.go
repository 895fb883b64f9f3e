package transcript

import (
	"testing"
	"time"

	"github.com/hi115009/rechat/comment"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		offset time.Duration
		want   string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{60 * time.Second, "00:01:00"},
		{3725 * time.Second, "01:02:05"},
		{5900 * time.Millisecond, "00:00:05"},
		{100000 * time.Second, "27:46:40"},
		{360000 * time.Second, "100:00:00"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.offset); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.offset, got, tt.want)
		}
	}
}

func TestFormatLine(t *testing.T) {
	allBadges := []comment.Badge{
		{ID: "subscriber", Version: "12"},
		{ID: "admin", Version: "1"},
		{ID: "moderator", Version: "1"},
		{ID: "broadcaster", Version: "1"},
	}
	tests := []struct {
		name       string
		msg        comment.Message
		showBadges bool
		want       string
	}{
		{
			name: "plain message",
			msg: comment.Message{
				ContentOffset:   3725 * time.Second,
				UserName:        "foo",
				UserDisplayName: "Foo",
				MessageText:     "hi",
			},
			want: "[01:02:05] Foo: hi",
		},
		{
			name: "login shown when it differs",
			msg: comment.Message{
				UserName:        "bar",
				UserDisplayName: "Foo",
				MessageText:     "hi",
			},
			want: "[00:00:00] Foo (bar): hi",
		},
		{
			name: "login hidden on case-only difference",
			msg: comment.Message{
				UserName:        "foo",
				UserDisplayName: "FOO",
				MessageText:     "hi",
			},
			want: "[00:00:00] FOO: hi",
		},
		{
			name: "action drops the colon",
			msg: comment.Message{
				UserName:        "foo",
				UserDisplayName: "Foo",
				MessageText:     "waves",
				IsAction:        true,
			},
			want: "[00:00:00] Foo waves",
		},
		{
			name: "action with differing login",
			msg: comment.Message{
				UserName:        "bar",
				UserDisplayName: "Foo",
				MessageText:     "waves",
				IsAction:        true,
			},
			want: "[00:00:00] Foo (bar) waves",
		},
		{
			name: "badges in fixed order",
			msg: comment.Message{
				UserName:        "foo",
				UserDisplayName: "Foo",
				MessageText:     "hi",
				UserBadges:      allBadges,
			},
			showBadges: true,
			want:       "[00:00:00] *#@+Foo: hi",
		},
		{
			name: "badges hidden by default",
			msg: comment.Message{
				UserName:        "foo",
				UserDisplayName: "Foo",
				MessageText:     "hi",
				UserBadges:      allBadges,
			},
			want: "[00:00:00] Foo: hi",
		},
		{
			name: "unrecognized badges ignored",
			msg: comment.Message{
				UserName:        "foo",
				UserDisplayName: "Foo",
				MessageText:     "hi",
				UserBadges:      []comment.Badge{{ID: "premium", Version: "1"}, {ID: "moderator", Version: "1"}},
			},
			showBadges: true,
			want:       "[00:00:00] @Foo: hi",
		},
		{
			name: "empty body",
			msg: comment.Message{
				UserName:        "foo",
				UserDisplayName: "Foo",
			},
			want: "[00:00:00] Foo: ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLine(&tt.msg, tt.showBadges); got != tt.want {
				t.Errorf("FormatLine = %q, want %q", got, tt.want)
			}
		})
	}
}
