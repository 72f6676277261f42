// Package engine wraps the interpreter with atomic commit/rollback/history
// semantics and the bounded, resumable output channel each evaluation
// produces. It is the single owner of the live environment: all front-end
// adapters drive it through Submit/More/History/Rollback.
package engine

import (
	"time"
)

// CallerContext is the per-invocation identity a front-end adapter supplies.
// The engine never authenticates callers itself.
type CallerContext struct {
	// Name is the caller identity (nick, username, session ID).
	Name string
	// Origin is the channel or connection the request came from.
	Origin string
	// Admin grants access to gated operations.
	Admin bool
}

// key scopes pending output continuations, mirroring how each front-end
// connection owns its own remainder.
func (c CallerContext) key() string {
	return c.Origin + ":" + c.Name
}

// Commit is an immutable record of one accepted environment transition.
type Commit struct {
	ID        string    // SHA-1 over parent id, author, message, and snapshot
	Seq       int64     // monotonic sequence, total order
	Timestamp time.Time // when the transition was accepted
	Author    string    // caller identity
	Message   string    // evaluated source, or a synthesized rollback message
	Summary   string    // +proc/-proc/+var/-var change summary
	Snapshot  []byte    // full environment snapshot (stable serialization)
}

// CommitInfo is the commit metadata surfaced to adapters.
type CommitInfo struct {
	ID        string    `json:"commit_id"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Summary   string    `json:"summary,omitempty"`
}

// Info returns the commit's metadata view.
func (c *Commit) Info() *CommitInfo {
	return &CommitInfo{
		ID:        c.ID,
		Seq:       c.Seq,
		Timestamp: c.Timestamp,
		Author:    c.Author,
		Message:   c.Message,
		Summary:   c.Summary,
	}
}

// CommitStore is the durable log/storage provider the engine consumes. An
// implementation must make Append atomic: a commit either fully persists or
// not at all.
type CommitStore interface {
	// Append persists a commit. IDs and sequence numbers are assigned by
	// the engine before the call.
	Append(c *Commit) error
	// LoadLatest returns the most recent commit, or (nil, nil) when the
	// store is empty.
	LoadLatest() (*Commit, error)
	// LoadAt returns the commit with the given id, wrapping
	// errors.ErrCommitNotFound when absent.
	LoadAt(id string) (*Commit, error)
	// History returns the most recent limit commits, newest first.
	History(limit int) ([]*CommitInfo, error)
	// Close releases the store.
	Close() error
}

// Result is what one Submit or More call delivers to an adapter.
type Result struct {
	// SessionID identifies the output session this page came from.
	SessionID string
	// Output is the delivered slice of lines, capped at the configured
	// page size with a trailing truncation notice when more remains.
	Output []string
	// IsError reports that the evaluation failed; the last output line
	// carries the error-prefixed message.
	IsError bool
	// MoreAvailable is true exactly while undelivered lines remain.
	MoreAvailable bool
	// Commit is set when the evaluation produced a new commit.
	Commit *CommitInfo
}

// Health is the engine liveness view.
type Health struct {
	Status  string `json:"status"`
	Commits int64  `json:"commits"`
}

// Config tunes the engine. Zero values select the defaults.
type Config struct {
	// MaxOutputLines caps each delivered page. Capture during evaluation
	// is unbounded; only delivery is paginated.
	MaxOutputLines int
	// EvalTimeout bounds wall-clock time per evaluation.
	EvalTimeout time.Duration
	// MaxSteps bounds command dispatches per evaluation.
	MaxSteps int
	// SessionTTL bounds how long an undrained continuation stays
	// addressable.
	SessionTTL time.Duration
	// AdminVars lists global variables writable only by admin callers.
	AdminVars []string
}

const (
	defaultMaxOutputLines = 10
	defaultEvalTimeout    = 5 * time.Second
	defaultMaxSteps       = 1_000_000
	defaultSessionTTL     = 5 * time.Minute

	// DefaultHistoryLimit is the history page size when the caller passes
	// zero.
	DefaultHistoryLimit = 20
)

func (c Config) withDefaults() Config {
	if c.MaxOutputLines <= 0 {
		c.MaxOutputLines = defaultMaxOutputLines
	}
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = defaultEvalTimeout
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = defaultMaxSteps
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	return c
}
