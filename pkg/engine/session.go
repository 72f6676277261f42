package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutputSession buffers the ordered lines one evaluation produced and hands
// them out in bounded pages. Capture is unbounded so a computation is never
// truncated mid-flight; only delivery is capped. A session is superseded by
// the caller's next evaluation.
type OutputSession struct {
	ID      string
	lines   []string
	cursor  int
	created time.Time
}

// newSession wraps captured lines in a fresh session.
func newSession(lines []string) *OutputSession {
	return &OutputSession{
		ID:      uuid.New().String(),
		lines:   lines,
		created: time.Now(),
	}
}

// Total returns the total number of captured lines.
func (s *OutputSession) Total() int { return len(s.lines) }

// Remaining returns the number of undelivered lines.
func (s *OutputSession) Remaining() int { return len(s.lines) - s.cursor }

// Drain delivers up to maxLines undelivered lines and reports whether more
// remain. Lines are never lost, duplicated, or reordered across drains.
func (s *OutputSession) Drain(maxLines int) (delivered []string, moreAvailable bool) {
	if maxLines <= 0 || s.cursor >= len(s.lines) {
		return nil, s.cursor < len(s.lines)
	}
	end := s.cursor + maxLines
	if end > len(s.lines) {
		end = len(s.lines)
	}
	// Copy so callers appending a trailing notice cannot overwrite the
	// undelivered remainder through the shared backing array.
	delivered = append([]string(nil), s.lines[s.cursor:end]...)
	s.cursor = end
	return delivered, s.cursor < len(s.lines)
}

// expired reports whether the session's remainder is past its TTL.
func (s *OutputSession) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.created) > ttl
}

// truncationNotice is the trailing line appended to a page when undelivered
// output remains.
func truncationNotice(remaining int) string {
	return fmt.Sprintf("... (%d more lines - type 'more' to continue)", remaining)
}

// captureSink collects puts output during one evaluation.
type captureSink struct {
	lines []string
}

func (c *captureSink) Puts(line string) {
	c.lines = append(c.lines, line)
}
