package archive

import (
	"fmt"
	"os"
	"time"

	"github.com/hi115009/rechat/comment"
)

// Times are the timestamps an archive carries in its file metadata: Start is
// the inferred video start (first message time minus its content offset),
// End the time of the last message.
type Times struct {
	Start time.Time
	End   time.Time
}

// DeriveTimes computes archive timestamps from the first and last message of
// a pass.
func DeriveTimes(first, last *comment.Message) Times {
	return Times{
		Start: first.CreatedAt.Add(-first.ContentOffset),
		End:   last.CreatedAt,
	}
}

// Apply stamps the times onto the file at path: the inferred start as access
// time and the last message time as modification time, which is as close as
// portable file metadata gets to "created when the video started, modified
// when the last message arrived".
func (t Times) Apply(path string) error {
	if err := os.Chtimes(path, t.Start, t.End); err != nil {
		return fmt.Errorf("set file times: %w", err)
	}
	return nil
}
