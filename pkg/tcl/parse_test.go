package tcl

import (
	"testing"

	"github.com/slopdrop/slopdrop/pkg/errors"
)

// TestParseCommandSplitting tests separation of commands by newlines and
// semicolons, comment handling, and blank input.
func TestParseCommandSplitting(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		wantCount int
		wantNames []string
	}{
		{
			name:      "single command",
			source:    "set a 5",
			wantCount: 1,
			wantNames: []string{"set"},
		},
		{
			name:      "semicolon separated",
			source:    "set a 1; set b 2",
			wantCount: 2,
			wantNames: []string{"set", "set"},
		},
		{
			name:      "newline separated",
			source:    "set a 1\nputs $a",
			wantCount: 2,
			wantNames: []string{"set", "puts"},
		},
		{
			name:      "comment line skipped",
			source:    "# a comment\nset a 1",
			wantCount: 1,
			wantNames: []string{"set"},
		},
		{
			name:      "empty source",
			source:    "",
			wantCount: 0,
		},
		{
			name:      "only separators",
			source:    " ;\n;\t\n",
			wantCount: 0,
		},
		{
			name:      "escaped newline continues command",
			source:    "set a \\\n5",
			wantCount: 1,
			wantNames: []string{"set"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds, err := Parse(tt.source)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.source, err)
			}
			if len(cmds) != tt.wantCount {
				t.Fatalf("Parse(%q) commands = %d, want %d", tt.source, len(cmds), tt.wantCount)
			}
			for i, want := range tt.wantNames {
				name, ok := cmds[i].Name()
				if !ok {
					t.Errorf("command %d name not statically known", i)
					continue
				}
				if name != want {
					t.Errorf("command %d name = %q, want %q", i, name, want)
				}
			}
		})
	}
}

// TestParseWordForms tests braced, quoted, and bare word tokenization.
func TestParseWordForms(t *testing.T) {
	t.Run("braced word is verbatim", func(t *testing.T) {
		cmds, err := Parse(`set body {puts $x; [nested]}`)
		if err != nil {
			t.Fatalf("Parse error = %v", err)
		}
		w := cmds[0].Words[2]
		if !w.Braced {
			t.Error("word should be marked braced")
		}
		text, ok := w.Literal()
		if !ok {
			t.Fatal("braced word should be a single literal")
		}
		if text != "puts $x; [nested]" {
			t.Errorf("braced content = %q", text)
		}
	})

	t.Run("nested braces stay balanced", func(t *testing.T) {
		cmds, err := Parse(`proc f {} {if {1} {puts hi}}`)
		if err != nil {
			t.Fatalf("Parse error = %v", err)
		}
		text, _ := cmds[0].Words[3].Literal()
		if text != "if {1} {puts hi}" {
			t.Errorf("body = %q", text)
		}
	})

	t.Run("quoted word carries substitutions", func(t *testing.T) {
		cmds, err := Parse(`puts "a $x [cmd] b"`)
		if err != nil {
			t.Fatalf("Parse error = %v", err)
		}
		segs := cmds[0].Words[1].Segments
		kinds := []SegmentKind{SegLiteral, SegVariable, SegLiteral, SegScript, SegLiteral}
		if len(segs) != len(kinds) {
			t.Fatalf("segments = %d, want %d", len(segs), len(kinds))
		}
		for i, k := range kinds {
			if segs[i].Kind != k {
				t.Errorf("segment %d kind = %d, want %d", i, segs[i].Kind, k)
			}
		}
		if segs[1].Text != "x" {
			t.Errorf("variable segment = %q, want x", segs[1].Text)
		}
		if segs[3].Text != "cmd" {
			t.Errorf("script segment = %q, want cmd", segs[3].Text)
		}
	})

	t.Run("empty quoted word", func(t *testing.T) {
		cmds, err := Parse(`set a ""`)
		if err != nil {
			t.Fatalf("Parse error = %v", err)
		}
		text, ok := cmds[0].Words[2].Literal()
		if !ok || text != "" {
			t.Errorf("want empty literal, got %q ok=%v", text, ok)
		}
	})

	t.Run("braced variable name", func(t *testing.T) {
		cmds, err := Parse(`puts ${my var}`)
		if err != nil {
			t.Fatalf("Parse error = %v", err)
		}
		seg := cmds[0].Words[1].Segments[0]
		if seg.Kind != SegVariable || seg.Text != "my var" {
			t.Errorf("segment = %+v", seg)
		}
	})

	t.Run("lone dollar is literal", func(t *testing.T) {
		cmds, err := Parse(`puts a$`)
		if err != nil {
			t.Fatalf("Parse error = %v", err)
		}
		text, ok := cmds[0].Words[1].Literal()
		if !ok || text != "a$" {
			t.Errorf("word = %q ok=%v, want a$", text, ok)
		}
	})

	t.Run("nested brackets in substitution", func(t *testing.T) {
		cmds, err := Parse(`set a [lindex [list x y] 0]`)
		if err != nil {
			t.Fatalf("Parse error = %v", err)
		}
		seg := cmds[0].Words[2].Segments[0]
		if seg.Kind != SegScript || seg.Text != "lindex [list x y] 0" {
			t.Errorf("segment = %+v", seg)
		}
	})

	t.Run("escapes in quotes", func(t *testing.T) {
		cmds, err := Parse(`puts "a\n\t\"b"`)
		if err != nil {
			t.Fatalf("Parse error = %v", err)
		}
		text, _ := cmds[0].Words[1].Literal()
		if text != "a\n\t\"b" {
			t.Errorf("text = %q", text)
		}
	})
}

// TestParseErrors tests that unbalanced constructs fail with a ParseError
// naming the construct, before any evaluation could happen.
func TestParseErrors(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		construct string
	}{
		{"unterminated brace", "set a {unclosed", "brace"},
		{"unterminated nested brace", "proc f {} {if {1 {", "brace"},
		{"unterminated bracket", "set a [cmd", "bracket"},
		{"unterminated quote", `set a "open`, "quote"},
		{"brace inside bracket", "set a [cmd {x]", "brace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.source)
			if err == nil {
				t.Fatalf("Parse(%q) should fail", tt.source)
			}
			if !IsParseError(err) {
				t.Fatalf("error %v is not a ParseError", err)
			}
			var pe *errors.ParseError
			if !asParseError(err, &pe) {
				t.Fatalf("cannot unwrap ParseError from %v", err)
			}
			if pe.Construct != tt.construct {
				t.Errorf("construct = %q, want %q", pe.Construct, tt.construct)
			}
		})
	}
}

func asParseError(err error, target **errors.ParseError) bool {
	pe, ok := err.(*errors.ParseError)
	if ok {
		*target = pe
	}
	return ok
}
