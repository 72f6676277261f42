package engine

import (
	goerrors "errors"
	"testing"

	"github.com/slopdrop/slopdrop/pkg/errors"
	"github.com/slopdrop/slopdrop/pkg/tcl"
)

// TestGateAuthorize covers the static pre-dispatch classification of
// admin-gated commands.
func TestGateAuthorize(t *testing.T) {
	env := tcl.NewEnv()
	env.Procs["existing"] = tcl.Proc{Name: "existing", Body: "return 1"}
	gate := NewGate([]string{"motd"})

	tests := []struct {
		name   string
		source string
		caller CallerContext
		denied bool
	}{
		{"new proc allowed", "proc fresh {} {return 1}", alice, false},
		{"redefinition denied", "proc existing {} {return 2}", alice, true},
		{"redefinition allowed for admin", "proc existing {} {return 2}", op, false},
		{"admin var set denied", "set motd hi", alice, true},
		{"admin var unset denied", "unset motd", alice, true},
		{"admin var lappend denied", "lappend motd hi", alice, true},
		{"plain var allowed", "set other hi", alice, false},
		{"admin caller allowed", "set motd hi", op, false},
		{"reads allowed", "puts $motd", alice, false},
		{"dynamic name passes gate", `set name motd; set $name hi`, alice, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds, err := tcl.Parse(tt.source)
			if err != nil {
				t.Fatalf("Parse error = %v", err)
			}
			err = gate.Authorize(cmds, env, tt.caller)
			if tt.denied {
				if !goerrors.Is(err, errors.ErrPermissionDenied) {
					t.Errorf("error = %v, want ErrPermissionDenied", err)
				}
			} else if err != nil {
				t.Errorf("Authorize error = %v, want nil", err)
			}
		})
	}
}
