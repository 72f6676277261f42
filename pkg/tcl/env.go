package tcl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Param is one declared procedure parameter, optionally with a default value
// used when the caller omits trailing arguments.
type Param struct {
	Name       string `json:"name"`
	Default    string `json:"default,omitempty"`
	HasDefault bool   `json:"has_default,omitempty"`
}

// Proc is a user-defined procedure. The body is unparsed source text,
// re-parsed on each call.
type Proc struct {
	Name   string  `json:"name"`
	Params []Param `json:"params"`
	Body   string  `json:"body"`
}

// Env is the canonical mutable store of variables and procedures. Exactly
// one live instance is published per engine; evaluation runs against a
// staged deep copy and the copy is published only on success.
type Env struct {
	Vars  map[string]string `json:"vars"`
	Procs map[string]Proc   `json:"procs"`
}

// NewEnv creates an empty environment.
func NewEnv() *Env {
	return &Env{
		Vars:  make(map[string]string),
		Procs: make(map[string]Proc),
	}
}

// Clone returns a deep copy. Proc values are copied including their
// parameter slices so later mutation of the clone never aliases the
// original.
func (e *Env) Clone() *Env {
	c := &Env{
		Vars:  make(map[string]string, len(e.Vars)),
		Procs: make(map[string]Proc, len(e.Procs)),
	}
	for k, v := range e.Vars {
		c.Vars[k] = v
	}
	for k, p := range e.Procs {
		params := make([]Param, len(p.Params))
		copy(params, p.Params)
		c.Procs[k] = Proc{Name: p.Name, Params: params, Body: p.Body}
	}
	return c
}

// Equal reports whether two environments hold identical variables and
// procedures.
func (e *Env) Equal(other *Env) bool {
	if len(e.Vars) != len(other.Vars) || len(e.Procs) != len(other.Procs) {
		return false
	}
	for k, v := range e.Vars {
		if ov, ok := other.Vars[k]; !ok || ov != v {
			return false
		}
	}
	for k, p := range e.Procs {
		op, ok := other.Procs[k]
		if !ok || !procEqual(p, op) {
			return false
		}
	}
	return true
}

func procEqual(a, b Proc) bool {
	if a.Name != b.Name || a.Body != b.Body || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}

// envSnapshot is the serialized form: sorted slices so the bytes are stable
// and usable as hash input.
type envSnapshot struct {
	Vars  []varEntry `json:"vars"`
	Procs []Proc     `json:"procs"`
}

type varEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Marshal serializes the environment to stable bytes: entries are sorted by
// name so identical environments always produce identical output.
func (e *Env) Marshal() ([]byte, error) {
	snap := envSnapshot{
		Vars:  make([]varEntry, 0, len(e.Vars)),
		Procs: make([]Proc, 0, len(e.Procs)),
	}
	for k, v := range e.Vars {
		snap.Vars = append(snap.Vars, varEntry{Name: k, Value: v})
	}
	for _, p := range e.Procs {
		snap.Procs = append(snap.Procs, p)
	}
	sort.Slice(snap.Vars, func(i, j int) bool { return snap.Vars[i].Name < snap.Vars[j].Name })
	sort.Slice(snap.Procs, func(i, j int) bool { return snap.Procs[i].Name < snap.Procs[j].Name })
	return json.Marshal(snap)
}

// UnmarshalEnv reconstructs an environment from Marshal output.
func UnmarshalEnv(data []byte) (*Env, error) {
	var snap envSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode environment snapshot: %w", err)
	}
	e := NewEnv()
	for _, v := range snap.Vars {
		e.Vars[v.Name] = v.Value
	}
	for _, p := range snap.Procs {
		e.Procs[p.Name] = p
	}
	return e, nil
}

// Changes describes what one accepted transition created, updated, or
// removed. Used to build human-readable commit summaries.
type Changes struct {
	NewProcs     []string
	DeletedProcs []string
	NewVars      []string
	DeletedVars  []string
}

// HasChanges reports whether anything changed at all.
func (c Changes) HasChanges() bool {
	return len(c.NewProcs) > 0 || len(c.DeletedProcs) > 0 ||
		len(c.NewVars) > 0 || len(c.DeletedVars) > 0
}

// Summary renders the changes in the +proc/-proc/+var/-var form used in
// commit records.
func (c Changes) Summary() string {
	var parts []string
	if len(c.NewProcs) > 0 {
		parts = append(parts, "+proc: "+strings.Join(c.NewProcs, ", "))
	}
	if len(c.DeletedProcs) > 0 {
		parts = append(parts, "-proc: "+strings.Join(c.DeletedProcs, ", "))
	}
	if len(c.NewVars) > 0 {
		parts = append(parts, "+var: "+strings.Join(c.NewVars, ", "))
	}
	if len(c.DeletedVars) > 0 {
		parts = append(parts, "-var: "+strings.Join(c.DeletedVars, ", "))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, " | ")
}

// Diff computes what changed between e (before) and other (after). New
// covers both created and updated entries, matching how the commit summary
// reads.
func (e *Env) Diff(other *Env) Changes {
	var c Changes
	for k, p := range other.Procs {
		if old, ok := e.Procs[k]; !ok || !procEqual(old, p) {
			c.NewProcs = append(c.NewProcs, k)
		}
	}
	for k := range e.Procs {
		if _, ok := other.Procs[k]; !ok {
			c.DeletedProcs = append(c.DeletedProcs, k)
		}
	}
	for k, v := range other.Vars {
		if old, ok := e.Vars[k]; !ok || old != v {
			c.NewVars = append(c.NewVars, k)
		}
	}
	for k := range e.Vars {
		if _, ok := other.Vars[k]; !ok {
			c.DeletedVars = append(c.DeletedVars, k)
		}
	}
	sort.Strings(c.NewProcs)
	sort.Strings(c.DeletedProcs)
	sort.Strings(c.NewVars)
	sort.Strings(c.DeletedVars)
	return c
}
