package engine

import (
	"fmt"

	"github.com/slopdrop/slopdrop/pkg/errors"
	"github.com/slopdrop/slopdrop/pkg/tcl"
)

// Gate is the pre-dispatch privilege check: it classifies parsed top-level
// commands before any evaluation or mutation happens, so a denial has no
// side effects. The interpreter enforces the same rules again at dispatch
// time, which is what makes nested invocations inside procedure bodies
// inherit the submitting caller's privilege rather than the definer's.
type Gate struct {
	adminVars map[string]bool
}

// NewGate builds a gate where the named global variables are admin-only.
func NewGate(adminVars []string) *Gate {
	g := &Gate{adminVars: make(map[string]bool, len(adminVars))}
	for _, v := range adminVars {
		g.adminVars[v] = true
	}
	return g
}

// variable-writing builtins checked against the admin variable list
var varWriters = map[string]bool{
	"set":     true,
	"unset":   true,
	"append":  true,
	"lappend": true,
	"incr":    true,
}

// Authorize inspects top-level commands and rejects admin-gated ones for
// non-admin callers. Only statically-known (literal) command and variable
// names can be classified here; dynamic invocations are caught by the
// dispatch-time checks.
func (g *Gate) Authorize(cmds []tcl.Command, env *tcl.Env, caller CallerContext) error {
	if caller.Admin {
		return nil
	}
	for _, cmd := range cmds {
		name, ok := cmd.Name()
		if !ok {
			continue
		}
		switch {
		case name == "proc":
			if len(cmd.Words) < 2 {
				continue
			}
			procName, ok := cmd.Words[1].Literal()
			if !ok {
				continue
			}
			if _, exists := env.Procs[procName]; exists {
				return errors.NewEvalError("proc",
					fmt.Sprintf("redefining %q requires privileges", procName),
					errors.ErrPermissionDenied)
			}
		case varWriters[name]:
			if len(cmd.Words) < 2 {
				continue
			}
			varName, ok := cmd.Words[1].Literal()
			if !ok {
				continue
			}
			if g.adminVars[varName] {
				return errors.NewEvalError(name,
					fmt.Sprintf("writing %q requires privileges", varName),
					errors.ErrPermissionDenied)
			}
		}
	}
	return nil
}
