package engine

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/slopdrop/slopdrop/pkg/errors"
	"github.com/slopdrop/slopdrop/pkg/tcl"
)

// Engine owns the live environment and serializes every mutation against it.
// One evaluation is in flight at a time: Submit and Rollback hold the
// environment lock for their full duration, so callers may queue but never
// observe a partially-mutated environment.
type Engine struct {
	cfg   Config
	store CommitStore
	cache tcl.CacheStore
	gate  *Gate

	mu      sync.Mutex // serializes evaluation and environment publishing
	env     *tcl.Env   // snapshot of the latest commit
	lastID  string
	lastSeq int64

	sessMu   sync.Mutex
	sessions map[string]*OutputSession // caller key -> pending continuation
}

// New creates an engine over the given durable store and side-cache. The
// live environment is restored from the latest commit; an empty store starts
// with a fresh environment.
func New(store CommitStore, cache tcl.CacheStore, cfg Config) (*Engine, error) {
	e := &Engine{
		cfg:      cfg.withDefaults(),
		store:    store,
		cache:    cache,
		gate:     NewGate(cfg.AdminVars),
		env:      tcl.NewEnv(),
		sessions: make(map[string]*OutputSession),
	}
	latest, err := store.LoadLatest()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest commit: %w", err)
	}
	if latest != nil {
		env, err := tcl.UnmarshalEnv(latest.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to restore environment from commit %s: %w", latest.ID, err)
		}
		e.env = env
		e.lastID = latest.ID
		e.lastSeq = latest.Seq
	}
	return e, nil
}

// Submit parses, authorizes, and evaluates source against the environment.
// On success with at least one observed mutation, exactly one commit is
// recorded before the result is returned. Script-level failures come back in
// the result with IsError set and commit nothing; only storage faults are
// returned as errors.
func (e *Engine) Submit(ctx context.Context, source string, caller CallerContext) (*Result, error) {
	cmds, err := tcl.Parse(source)
	if err != nil {
		return e.deliverError(caller, nil, err), nil
	}
	if err := e.gate.Authorize(cmds, e.snapshotEnv(), caller); err != nil {
		return e.deliverError(caller, nil, err), nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Copy-on-write staging: the script mutates a private clone, and the
	// clone is published only if evaluation succeeds. Partial work from a
	// failing script never reaches the durable environment.
	staged := e.env.Clone()
	sink := &captureSink{}
	interp := tcl.New(staged,
		tcl.WithSink(sink),
		tcl.WithCache(e.cache),
		tcl.WithCaller(tcl.Caller{Name: caller.Name, Origin: caller.Origin, Admin: caller.Admin}),
		tcl.WithMaxSteps(e.cfg.MaxSteps),
		tcl.WithAdminVars(e.cfg.AdminVars),
	)

	evalCtx, cancel := context.WithTimeout(ctx, e.cfg.EvalTimeout)
	defer cancel()

	value, err := interp.Run(evalCtx, source)
	if err != nil {
		return e.deliverError(caller, sink.lines, err), nil
	}

	lines := sink.lines
	if value != "" {
		lines = append(lines, value)
	}

	res := &Result{}
	if !staged.Equal(e.env) {
		commit, err := e.buildCommit(staged, caller, commitMessage(source))
		if err != nil {
			return nil, err
		}
		if err := e.store.Append(commit); err != nil {
			// Durability, not script correctness, is at risk: surface this
			// distinctly and leave the published environment untouched.
			return nil, fmt.Errorf("%w: failed to append commit: %v", errors.ErrStorageFault, err)
		}
		e.publish(staged, commit)
		res.Commit = commit.Info()
	}

	e.deliver(caller, lines, res)
	return res, nil
}

// More drains the next page of the caller's most recent session. Once the
// caller submits a new evaluation, the previous remainder is unreachable.
func (e *Engine) More(caller CallerContext) *Result {
	e.sessMu.Lock()
	defer e.sessMu.Unlock()
	e.pruneSessionsLocked()

	sess, ok := e.sessions[caller.key()]
	if !ok || sess.Remaining() == 0 {
		delete(e.sessions, caller.key())
		return &Result{Output: []string{"No cached output. Run a command first."}}
	}
	res := &Result{SessionID: sess.ID}
	res.Output, res.MoreAvailable = sess.Drain(e.cfg.MaxOutputLines)
	if res.MoreAvailable {
		res.Output = append(res.Output, truncationNotice(sess.Remaining()))
	} else {
		delete(e.sessions, caller.key())
	}
	return res
}

// History returns the most recent limit commits, newest first. Zero selects
// the default page size. Served from the store's own lock so readers do not
// block behind a long evaluation.
func (e *Engine) History(limit int) ([]*CommitInfo, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	infos, err := e.store.History(limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read history: %v", errors.ErrStorageFault, err)
	}
	return infos, nil
}

// Rollback replaces the live environment with the snapshot of the given
// commit and appends a new commit recording the rollback, so history is
// append-only and the rollback is itself revertible. Admin-only.
func (e *Engine) Rollback(id string, caller CallerContext) (*CommitInfo, error) {
	if !caller.Admin {
		return nil, errors.NewEvalError("rollback", "rollback requires privileges", errors.ErrPermissionDenied)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	target, err := e.store.LoadAt(id)
	if err != nil {
		return nil, err
	}
	env, err := tcl.UnmarshalEnv(target.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to restore snapshot of commit %s: %v", errors.ErrStorageFault, target.ID, err)
	}

	commit, err := e.buildCommit(env, caller, fmt.Sprintf("Rollback to %s", shortID(target.ID)))
	if err != nil {
		return nil, err
	}
	if err := e.store.Append(commit); err != nil {
		return nil, fmt.Errorf("%w: failed to append rollback commit: %v", errors.ErrStorageFault, err)
	}
	e.publish(env, commit)
	return commit.Info(), nil
}

// Health reports engine liveness and the current commit count.
func (e *Engine) Health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Health{Status: "ok", Commits: e.lastSeq}
}

// Env returns a snapshot copy of the published environment, for adapters
// that need completion data without holding the evaluation lock.
func (e *Engine) Env() *tcl.Env {
	return e.snapshotEnv()
}

func (e *Engine) snapshotEnv() *tcl.Env {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.env.Clone()
}

// buildCommit assembles the next commit for the staged environment. Called
// with the environment lock held.
func (e *Engine) buildCommit(staged *tcl.Env, caller CallerContext, message string) (*Commit, error) {
	snapshot, err := staged.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to serialize environment: %v", errors.ErrStorageFault, err)
	}
	changes := e.env.Diff(staged)
	author := caller.Name
	if author == "" {
		author = "unknown"
	}
	h := sha1.New()
	h.Write([]byte(e.lastID))
	h.Write([]byte(author))
	h.Write([]byte(message))
	h.Write(snapshot)
	return &Commit{
		ID:        hex.EncodeToString(h.Sum(nil)),
		Seq:       e.lastSeq + 1,
		Timestamp: time.Now().UTC(),
		Author:    author,
		Message:   message,
		Summary:   changes.Summary(),
		Snapshot:  snapshot,
	}, nil
}

// publish makes the staged environment the live one. Called with the
// environment lock held, after the commit is durably appended.
func (e *Engine) publish(env *tcl.Env, commit *Commit) {
	e.env = env
	e.lastID = commit.ID
	e.lastSeq = commit.Seq
}

// deliver pages the captured lines into the result and parks the remainder
// as the caller's pending continuation.
func (e *Engine) deliver(caller CallerContext, lines []string, res *Result) {
	sess := newSession(lines)
	res.SessionID = sess.ID
	res.Output, res.MoreAvailable = sess.Drain(e.cfg.MaxOutputLines)
	if res.MoreAvailable {
		res.Output = append(res.Output, truncationNotice(sess.Remaining()))
	}

	e.sessMu.Lock()
	defer e.sessMu.Unlock()
	e.pruneSessionsLocked()
	if res.MoreAvailable {
		e.sessions[caller.key()] = sess
	} else {
		delete(e.sessions, caller.key())
	}
}

// deliverError renders a script-level failure as error output: captured
// lines first, then a single error-prefixed line. No commit is produced.
func (e *Engine) deliverError(caller CallerContext, captured []string, err error) *Result {
	lines := append(captured, "error: "+err.Error())
	res := &Result{IsError: true}
	e.deliver(caller, lines, res)
	return res
}

func (e *Engine) pruneSessionsLocked() {
	now := time.Now()
	for k, s := range e.sessions {
		if s.expired(e.cfg.SessionTTL, now) {
			delete(e.sessions, k)
		}
	}
}

// commitMessage synthesizes the commit message from the evaluated source,
// collapsed to one line and truncated the way the history view renders it.
func commitMessage(source string) string {
	flat := strings.Join(strings.Fields(source), " ")
	if len(flat) > 100 {
		flat = flat[:100] + "..."
	}
	return "Evaluated " + flat
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
