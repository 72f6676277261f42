package engine

import (
	"fmt"
	"testing"
	"time"
)

func sessionLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line%d", i)
	}
	return lines
}

// TestSessionDrain verifies bounded paging: no loss, no duplication, no
// reordering across drains.
func TestSessionDrain(t *testing.T) {
	sess := newSession(sessionLines(10))
	if sess.Total() != 10 || sess.Remaining() != 10 {
		t.Fatalf("Total = %d, Remaining = %d", sess.Total(), sess.Remaining())
	}

	var drained []string
	pages := 0
	for sess.Remaining() > 0 {
		page, more := sess.Drain(4)
		pages++
		drained = append(drained, page...)
		if more != (sess.Remaining() > 0) {
			t.Errorf("page %d: more = %v with %d remaining", pages, more, sess.Remaining())
		}
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(drained) != 10 {
		t.Fatalf("drained %d lines", len(drained))
	}
	for i, line := range drained {
		if line != fmt.Sprintf("line%d", i) {
			t.Errorf("line %d = %q", i, line)
		}
	}

	// Draining an exhausted session yields nothing.
	page, more := sess.Drain(4)
	if len(page) != 0 || more {
		t.Errorf("exhausted drain = %v, more = %v", page, more)
	}
}

// TestSessionDrainIsolation verifies a delivered page does not alias the
// session's buffer: appending a notice line to one page must not overwrite
// the first line of the next.
func TestSessionDrainIsolation(t *testing.T) {
	sess := newSession(sessionLines(10))

	page, more := sess.Drain(4)
	if !more {
		t.Fatal("more = false with 6 lines remaining")
	}
	_ = append(page, truncationNotice(sess.Remaining()))

	next, _ := sess.Drain(4)
	want := []string{"line4", "line5", "line6", "line7"}
	for i, line := range next {
		if line != want[i] {
			t.Errorf("line %d = %q, want %q", i, line, want[i])
		}
	}
}

// TestSessionDrainEdge covers empty sessions and non-positive page sizes.
func TestSessionDrainEdge(t *testing.T) {
	empty := newSession(nil)
	if empty.Remaining() != 0 {
		t.Errorf("Remaining = %d", empty.Remaining())
	}
	page, more := empty.Drain(5)
	if len(page) != 0 || more {
		t.Errorf("empty drain = %v, more = %v", page, more)
	}

	sess := newSession(sessionLines(3))
	page, more = sess.Drain(0)
	if len(page) != 0 || !more {
		t.Errorf("zero-cap drain = %v, more = %v", page, more)
	}
	if sess.Remaining() != 3 {
		t.Errorf("zero-cap drain consumed lines: remaining = %d", sess.Remaining())
	}
}

// TestSessionExpiry verifies the TTL check.
func TestSessionExpiry(t *testing.T) {
	sess := newSession(sessionLines(1))
	now := time.Now()
	if sess.expired(time.Minute, now) {
		t.Error("fresh session should not be expired")
	}
	if !sess.expired(time.Minute, now.Add(2*time.Minute)) {
		t.Error("session past TTL should be expired")
	}
}

// TestSessionIDsUnique verifies each session gets its own identifier.
func TestSessionIDsUnique(t *testing.T) {
	a := newSession(nil)
	b := newSession(nil)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids = %q, %q", a.ID, b.ID)
	}
}
