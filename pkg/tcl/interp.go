package tcl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr/vm"
	"github.com/slopdrop/slopdrop/pkg/errors"
)

// OutputSink receives the ordered lines a single evaluation produces.
type OutputSink interface {
	Puts(line string)
}

// discardSink is used when no sink is injected.
type discardSink struct{}

func (discardSink) Puts(string) {}

// CacheStore is the injected side-cache capability behind the cache::*
// builtins. Cache mutations are not part of versioned state.
type CacheStore interface {
	Put(bucket, key, value string) error
	Get(bucket, key string) (string, bool, error)
	Keys(bucket string) ([]string, error)
	Exists(bucket, key string) (bool, error)
	Delete(bucket, key string) (bool, error)
}

// Caller is the ambient per-invocation identity supplied by a front-end
// adapter. The interpreter never authenticates anyone.
type Caller struct {
	Name   string
	Origin string
	Admin  bool
}

const (
	defaultMaxSteps  = 1_000_000
	defaultMaxDepth  = 1000
	contextVarNick   = "nick"
	contextVarOrigin = "channel"
)

// builtinFn implements one builtin command. args excludes the command name
// and is fully substituted.
type builtinFn func(in *Interp, args []string) (result, error)

// builtins is the fixed, non-redefinable command table. Populated by the
// registerBuiltin calls in the builtin_*.go files.
var builtins = make(map[string]builtinFn)

func registerBuiltin(name string, fn builtinFn) {
	builtins[name] = fn
}

// BuiltinNames returns the sorted names of all builtin commands.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether name is a fixed builtin command.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// flowKind is the typed control-flow channel threaded through every
// evaluation step instead of host-language panics: return, break, and
// continue short-circuit upward until a procedure call or loop absorbs them.
type flowKind int

const (
	flowNormal flowKind = iota
	flowReturn
	flowBreak
	flowContinue
)

type result struct {
	val  string
	flow flowKind
}

func normal(val string) result { return result{val: val} }

// frame is one procedure-local variable scope. Names linked via the global
// command resolve against the shared environment instead.
type frame struct {
	vars   map[string]string
	linked map[string]bool
}

// Interp evaluates parsed commands against an environment. It is not safe
// for concurrent use; the engine serializes access.
type Interp struct {
	env       *Env
	sink      OutputSink
	cache     CacheStore
	caller    Caller
	context   map[string]string // read-only script bindings (nick, channel)
	ctx       context.Context
	maxSteps  int
	maxDepth  int
	steps     int
	frames    []*frame
	programs  map[string]*vm.Program // compiled expr cache
	pending   string                 // puts -nonewline buffer
	adminVars map[string]bool        // global names writable only by admins
}

// Option configures an Interp.
type Option func(*Interp)

// WithSink directs puts output to the given sink.
func WithSink(s OutputSink) Option {
	return func(in *Interp) { in.sink = s }
}

// WithCache injects the side-cache used by the cache::* builtins.
func WithCache(c CacheStore) Option {
	return func(in *Interp) { in.cache = c }
}

// WithCaller binds the caller identity; nick and channel become read-only
// script variables.
func WithCaller(c Caller) Option {
	return func(in *Interp) {
		in.caller = c
		in.context[contextVarNick] = c.Name
		in.context[contextVarOrigin] = c.Origin
	}
}

// WithMaxSteps bounds the number of command dispatches per evaluation.
// Zero means the default budget.
func WithMaxSteps(n int) Option {
	return func(in *Interp) {
		if n > 0 {
			in.maxSteps = n
		}
	}
}

// WithAdminVars marks global variable names writable only by admin callers.
func WithAdminVars(names []string) Option {
	return func(in *Interp) {
		for _, name := range names {
			in.adminVars[name] = true
		}
	}
}

// WithMaxDepth bounds procedure call nesting.
func WithMaxDepth(n int) Option {
	return func(in *Interp) {
		if n > 0 {
			in.maxDepth = n
		}
	}
}

// New creates an interpreter over env. The environment is mutated in place;
// callers wanting staging semantics pass a clone.
func New(env *Env, opts ...Option) *Interp {
	in := &Interp{
		env:       env,
		sink:      discardSink{},
		context:   make(map[string]string),
		maxSteps:  defaultMaxSteps,
		maxDepth:  defaultMaxDepth,
		programs:  make(map[string]*vm.Program),
		adminVars: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Env returns the environment the interpreter evaluates against.
func (in *Interp) Env() *Env { return in.env }

// Caller returns the bound caller identity.
func (in *Interp) Caller() Caller { return in.caller }

// Run parses and evaluates source, returning the value of the last command.
// Script-level failures come back as *errors.EvalError; the caller context
// governs the step budget and wall-clock deadline.
func (in *Interp) Run(ctx context.Context, source string) (string, error) {
	in.ctx = ctx
	in.steps = 0
	cmds, err := Parse(source)
	if err != nil {
		return "", err
	}
	r, err := in.evalCommands(cmds)
	in.flushPending()
	if err != nil {
		return "", err
	}
	switch r.flow {
	case flowBreak:
		return "", errors.Runtime("break", `invoked "break" outside of a loop`)
	case flowContinue:
		return "", errors.Runtime("continue", `invoked "continue" outside of a loop`)
	}
	return r.val, nil
}

// evalScript re-parses and evaluates nested source: bracket substitutions,
// proc bodies, and control-flow blocks all come through here.
func (in *Interp) evalScript(source string) (result, error) {
	cmds, err := Parse(source)
	if err != nil {
		return result{}, err
	}
	return in.evalCommands(cmds)
}

func (in *Interp) evalCommands(cmds []Command) (result, error) {
	r := normal("")
	for _, cmd := range cmds {
		var err error
		r, err = in.evalCommand(cmd)
		if err != nil {
			return result{}, err
		}
		if r.flow != flowNormal {
			return r, nil
		}
	}
	return r, nil
}

func (in *Interp) evalCommand(cmd Command) (result, error) {
	if err := in.spendStep(); err != nil {
		return result{}, err
	}
	words := make([]string, len(cmd.Words))
	for i, w := range cmd.Words {
		v, err := in.resolveWord(w)
		if err != nil {
			return result{}, err
		}
		words[i] = v
	}
	if len(words) == 0 {
		return normal(""), nil
	}
	name, args := words[0], words[1:]
	if fn, ok := builtins[name]; ok {
		return fn(in, args)
	}
	if p, ok := in.env.Procs[name]; ok {
		return in.callProc(p, args)
	}
	return result{}, errors.NewEvalError(name, fmt.Sprintf("invalid command name %q", name), errors.ErrUndefinedCommand)
}

// spendStep enforces the execution budget: a step count and the context
// deadline, both surfacing as ErrTimeout so nothing commits.
func (in *Interp) spendStep() error {
	in.steps++
	if in.maxSteps > 0 && in.steps > in.maxSteps {
		return errors.NewEvalError("", fmt.Sprintf("evaluation exceeded %d steps", in.maxSteps), errors.ErrTimeout)
	}
	if in.ctx != nil {
		select {
		case <-in.ctx.Done():
			return errors.NewEvalError("", "evaluation timed out", errors.ErrTimeout)
		default:
		}
	}
	return nil
}

// resolveWord substitutes a word into its final string value: nested command
// substitutions first (innermost, left to right), then variables, literal
// fragments concatenated in order.
func (in *Interp) resolveWord(w Word) (string, error) {
	if len(w.Segments) == 1 {
		seg := w.Segments[0]
		if seg.Kind == SegLiteral {
			return seg.Text, nil
		}
	}
	var b strings.Builder
	for _, seg := range w.Segments {
		switch seg.Kind {
		case SegLiteral:
			b.WriteString(seg.Text)
		case SegVariable:
			v, err := in.getVar(seg.Text)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		case SegScript:
			r, err := in.evalScript(seg.Text)
			if err != nil {
				return "", err
			}
			b.WriteString(r.val)
		}
	}
	return b.String(), nil
}

// currentFrame returns the innermost procedure frame, or nil at global scope.
func (in *Interp) currentFrame() *frame {
	if len(in.frames) == 0 {
		return nil
	}
	return in.frames[len(in.frames)-1]
}

func (in *Interp) getVar(name string) (string, error) {
	if global, ok := strings.CutPrefix(name, "::"); ok {
		return in.getGlobal(global)
	}
	if f := in.currentFrame(); f != nil && !f.linked[name] {
		if v, ok := f.vars[name]; ok {
			return v, nil
		}
		return "", errors.Runtime("", `can't read "%s": no such variable`, name)
	}
	return in.getGlobal(name)
}

func (in *Interp) getGlobal(name string) (string, error) {
	if v, ok := in.context[name]; ok {
		return v, nil
	}
	if v, ok := in.env.Vars[name]; ok {
		return v, nil
	}
	return "", errors.Runtime("", `can't read "%s": no such variable`, name)
}

func (in *Interp) setVar(name, value string) error {
	if global, ok := strings.CutPrefix(name, "::"); ok {
		return in.setGlobal(global, value)
	}
	if f := in.currentFrame(); f != nil && !f.linked[name] {
		f.vars[name] = value
		return nil
	}
	return in.setGlobal(name, value)
}

func (in *Interp) setGlobal(name, value string) error {
	if _, ok := in.context[name]; ok {
		return errors.NewEvalError("set", fmt.Sprintf("%q is a read-only context variable", name), errors.ErrReadOnlyVariable)
	}
	if in.adminVars[name] && !in.caller.Admin {
		return errors.NewEvalError("set", fmt.Sprintf("writing %q requires privileges", name), errors.ErrPermissionDenied)
	}
	in.env.Vars[name] = value
	return nil
}

func (in *Interp) unsetVar(name string) error {
	if global, ok := strings.CutPrefix(name, "::"); ok {
		name = global
	} else if f := in.currentFrame(); f != nil && !f.linked[name] {
		if _, ok := f.vars[name]; !ok {
			return errors.Runtime("unset", `can't unset "%s": no such variable`, name)
		}
		delete(f.vars, name)
		return nil
	}
	if _, ok := in.context[name]; ok {
		return errors.NewEvalError("unset", fmt.Sprintf("%q is a read-only context variable", name), errors.ErrReadOnlyVariable)
	}
	if in.adminVars[name] && !in.caller.Admin {
		return errors.NewEvalError("unset", fmt.Sprintf("writing %q requires privileges", name), errors.ErrPermissionDenied)
	}
	if _, ok := in.env.Vars[name]; !ok {
		return errors.Runtime("unset", `can't unset "%s": no such variable`, name)
	}
	delete(in.env.Vars, name)
	return nil
}

// callProc binds arguments into a fresh local frame and evaluates the body.
// A return from the body is absorbed here: it never unwinds past the
// procedure boundary into the caller's surrounding commands.
func (in *Interp) callProc(p Proc, args []string) (result, error) {
	if len(in.frames) >= in.maxDepth {
		return result{}, errors.Runtime(p.Name, "too many nested procedure calls (max %d)", in.maxDepth)
	}
	f := &frame{vars: make(map[string]string), linked: make(map[string]bool)}

	params := p.Params
	variadic := len(params) > 0 && params[len(params)-1].Name == "args"
	if variadic {
		params = params[:len(params)-1]
	}
	required := 0
	for _, prm := range params {
		if !prm.HasDefault {
			required++
		}
	}
	if len(args) < required || (!variadic && len(args) > len(params)) {
		return result{}, errors.NewEvalError(p.Name, arityMessage(p), errors.ErrArityMismatch)
	}
	for i, prm := range params {
		if i < len(args) {
			f.vars[prm.Name] = args[i]
		} else {
			f.vars[prm.Name] = prm.Default
		}
	}
	if variadic {
		var rest []string
		if len(args) > len(params) {
			rest = args[len(params):]
		}
		f.vars["args"] = listJoin(rest)
	}

	in.frames = append(in.frames, f)
	r, err := in.evalScript(p.Body)
	in.frames = in.frames[:len(in.frames)-1]
	if err != nil {
		return result{}, err
	}
	switch r.flow {
	case flowReturn, flowNormal:
		return normal(r.val), nil
	case flowBreak:
		return result{}, errors.Runtime(p.Name, `invoked "break" outside of a loop`)
	default:
		return result{}, errors.Runtime(p.Name, `invoked "continue" outside of a loop`)
	}
}

// arityMessage renders the conventional wrong-number-of-arguments message.
func arityMessage(p Proc) string {
	parts := []string{p.Name}
	for _, prm := range p.Params {
		if prm.Name == "args" {
			parts = append(parts, "?arg ...?")
		} else if prm.HasDefault {
			parts = append(parts, "?"+prm.Name+"?")
		} else {
			parts = append(parts, prm.Name)
		}
	}
	return fmt.Sprintf("wrong # args: should be %q", strings.Join(parts, " "))
}

// emit writes a full output line, flushing any pending -nonewline fragment.
func (in *Interp) emit(line string) {
	if in.pending != "" {
		line = in.pending + line
		in.pending = ""
	}
	in.sink.Puts(line)
}

func (in *Interp) flushPending() {
	if in.pending != "" {
		in.sink.Puts(in.pending)
		in.pending = ""
	}
}
