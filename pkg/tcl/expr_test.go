package tcl

import (
	"context"
	"strings"
	"testing"
)

// TestExprArithmetic covers integer and float arithmetic, precedence, and
// result formatting.
func TestExprArithmetic(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"addition", "expr {2 + 3}", "5"},
		{"precedence", "expr {2 + 3 * 4}", "14"},
		{"parentheses", "expr {(2 + 3) * 4}", "20"},
		{"integer division", "expr {7 / 2}", "3"},
		{"integer division floors", "expr {-7 / 2}", "-4"},
		{"division result composes", "expr {(7 / 2) * 2}", "6"},
		{"modulo", "expr {7 % 3}", "1"},
		{"modulo takes divisor sign", "expr {-7 % 3}", "2"},
		{"negative", "expr {-5 + 2}", "-3"},
		{"float arithmetic", "expr {1.5 + 2.25}", "3.75"},
		{"integral float keeps point", "expr {1.5 + 2.5}", "4.0"},
		{"mixed promotes to float", "expr {3.0 / 2}", "1.5"},
		{"comparison true", "expr {1 < 2}", "1"},
		{"comparison false", "expr {2 < 1}", "0"},
		{"equality", "expr {3 == 3}", "1"},
		{"string eq", `expr {"abc" eq "abc"}`, "1"},
		{"string ne", `expr {"abc" ne "abd"}`, "1"},
		{"logical and", "expr {(1 < 2) && (2 < 3)}", "1"},
		{"logical or", "expr {(2 < 1) || (1 < 2)}", "1"},
		{"sqrt", "expr {sqrt(16)}", "4.0"},
		{"pow", "expr {pow(2, 10)}", "1024.0"},
		{"double", "expr {double(3)}", "3.0"},
		{"fmod", "expr {fmod(7.5, 2)}", "1.5"},
		{"abs", "expr {abs(-4)}", "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRun(t, tt.source)
			if got != tt.want {
				t.Errorf("Run(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}

// TestExprSubstitution covers variable and command expansion inside
// expression text.
func TestExprSubstitution(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"variable operand", "set a 6; expr {$a * 7}", "42"},
		{"two variables", "set a 3; set b 4; expr {$a + $b}", "7"},
		{"command operand", "expr {[llength {a b c}] + 1}", "4"},
		{"string variable quoted", `set s abc; expr {$s eq "abc"}`, "1"},
		{"float variable", "set f 2.5; expr {$f * 2}", "5.0"},
		{"braced string operand", `set s hi; expr {$s eq {hi}}`, "1"},
		{"unbraced expression words", "set a 2; expr $a + 3", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRun(t, tt.source)
			if got != tt.want {
				t.Errorf("Run(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}

// TestExprErrors verifies malformed and failing expressions surface as
// script errors rather than faults.
func TestExprErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		contains string
	}{
		{"divide by zero", "expr {1 / 0}", "divide by zero"},
		{"zero over zero", "expr {0 / 0}", "divide by zero"},
		{"float divide by zero", "expr {1.5 / 0}", "divide by zero"},
		{"variable zero divisor", "set d 0; expr {10 / $d}", "divide by zero"},
		{"modulo by zero", "expr {7 % 0}", "divide by zero"},
		{"float overflow", "expr {pow(10, 400)}", "out of range"},
		{"fmod by zero", "expr {fmod(1, 0)}", "divide by zero"},
		{"malformed expression", "expr {1 +}", "invalid expression"},
		{"missing variable", "expr {$nope + 1}", `can't read "nope"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.source)
			if err == nil {
				t.Fatalf("Run(%q) should fail", tt.source)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.contains)
			}
		})
	}
}

// TestExprProgramCache verifies repeated evaluation of the same operand text
// reuses the compiled program.
func TestExprProgramCache(t *testing.T) {
	in := New(NewEnv())
	if _, err := in.Run(context.Background(), "set i 0; while {$i < 10} {incr i}"); err != nil {
		t.Fatalf("Run error = %v", err)
	}
	// The loop condition substitutes to a new text per value of i, but the
	// final comparison text appears once per distinct substitution.
	if len(in.programs) == 0 {
		t.Error("compiled program cache should be populated")
	}
}

// TestExprRand verifies rand() stays within [0, 1).
func TestExprRand(t *testing.T) {
	for i := 0; i < 5; i++ {
		got := mustRun(t, "expr {rand()}")
		f := mustRun(t, "expr {"+got+" >= 0 && "+got+" < 1}")
		if f != "1" {
			t.Fatalf("rand() = %s, out of range", got)
		}
	}
}
