// Package transcript renders chat replay archives into plain text, one line
// per message.
package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/hi115009/rechat/comment"
)

// FormatTimestamp renders a content offset as zero-padded HH:MM:SS. The hour
// field grows past two digits instead of wrapping, so very long streams stay
// unambiguous.
func FormatTimestamp(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// FormatLine renders one message as a transcript line, without a trailing
// newline. With showBadges set, role markers precede the name in a fixed
// order: * admin, # broadcaster, @ moderator, + subscriber. The login name
// follows in parentheses only when it differs from the display name beyond
// letter case, and action messages drop the colon after the name.
func FormatLine(m *comment.Message, showBadges bool) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(FormatTimestamp(m.ContentOffset))
	b.WriteString("] ")
	if showBadges {
		if m.IsAdmin() {
			b.WriteByte('*')
		}
		if m.IsBroadcaster() {
			b.WriteByte('#')
		}
		if m.IsModerator() {
			b.WriteByte('@')
		}
		if m.IsSubscriber() {
			b.WriteByte('+')
		}
	}
	b.WriteString(m.UserDisplayName)
	if !strings.EqualFold(m.UserDisplayName, m.UserName) {
		b.WriteString(" (")
		b.WriteString(m.UserName)
		b.WriteByte(')')
	}
	if !m.IsAction {
		b.WriteByte(':')
	}
	b.WriteByte(' ')
	b.WriteString(m.MessageText)
	return b.String()
}
