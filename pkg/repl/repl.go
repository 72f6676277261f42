// Package repl provides the interactive console front end.
package repl

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joeycumines/go-prompt"
	istrings "github.com/joeycumines/go-prompt/strings"

	"github.com/slopdrop/slopdrop/pkg/engine"
	"github.com/slopdrop/slopdrop/pkg/tcl"
)

// REPL drives the engine from an interactive prompt. Meta-commands start
// with a dot; everything else is submitted to the engine as script source.
type REPL struct {
	eng    *engine.Engine
	caller engine.CallerContext
}

// New creates a REPL. Console users are admin: the console is the local
// operator's surface, the way a bot owner's direct session would be.
func New(eng *engine.Engine) *REPL {
	user := "console"
	if u := os.Getenv("USER"); u != "" {
		user = u
	}
	return &REPL{
		eng: eng,
		caller: engine.CallerContext{
			Name:   user,
			Origin: "console",
			Admin:  true,
		},
	}
}

// Run blocks on the interactive loop until the user exits.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Println("slopdrop console. Type .help for meta-commands, .exit to quit.")

	executor := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		if strings.HasPrefix(line, ".") {
			if r.meta(line) {
				os.Exit(0)
			}
			return
		}
		res, err := r.eng.Submit(ctx, line, r.caller)
		if err != nil {
			fmt.Printf("fatal: %v\n", err)
			return
		}
		r.printResult(res)
	}

	p := prompt.New(executor,
		prompt.WithPrefix("slopdrop> "),
		prompt.WithTitle("slopdrop"),
		prompt.WithCompleter(r.complete),
	)
	p.Run()
	return nil
}

// meta handles dot-commands; it returns true when the loop should exit.
func (r *REPL) meta(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".exit", ".quit":
		return true
	case ".help":
		fmt.Println(".more              drain the next page of output")
		fmt.Println(".history [n]       show the last n commits (default 20)")
		fmt.Println(".rollback <id>     restore the environment of a commit")
		fmt.Println(".exit              leave the console")
	case ".more":
		r.printResult(r.eng.More(r.caller))
	case ".history":
		limit := 0
		if len(fields) > 1 {
			fmt.Sscanf(fields[1], "%d", &limit)
		}
		infos, err := r.eng.History(limit)
		if err != nil {
			fmt.Printf("history: %v\n", err)
			return false
		}
		for _, info := range infos {
			line := fmt.Sprintf("%s  %s  %s", info.ID[:8], info.Timestamp.Format("2006-01-02 15:04:05"), info.Message)
			if info.Summary != "" {
				line += "  [" + info.Summary + "]"
			}
			fmt.Println(line)
		}
	case ".rollback":
		if len(fields) < 2 {
			fmt.Println("usage: .rollback <commit-id>")
			return false
		}
		info, err := r.eng.Rollback(fields[1], r.caller)
		if err != nil {
			fmt.Printf("rollback: %v\n", err)
			return false
		}
		fmt.Printf("rolled back; new commit %s\n", info.ID[:8])
	default:
		fmt.Printf("unknown meta-command %s (try .help)\n", fields[0])
	}
	return false
}

func (r *REPL) printResult(res *engine.Result) {
	for _, line := range res.Output {
		fmt.Println(line)
	}
	if res.Commit != nil && res.Commit.Summary != "" {
		fmt.Printf("(committed %s: %s)\n", res.Commit.ID[:8], res.Commit.Summary)
	}
}

// complete suggests builtin names, defined procedures, and meta-commands for
// the word under the cursor.
func (r *REPL) complete(document prompt.Document) ([]prompt.Suggest, istrings.RuneNumber, istrings.RuneNumber) {
	before := document.TextBeforeCursor()
	word := document.GetWordBeforeCursor()
	end := istrings.RuneNumber(len([]rune(before)))
	start := end - istrings.RuneNumber(len([]rune(word)))
	if word == "" {
		return nil, start, end
	}

	var names []string
	if strings.HasPrefix(word, ".") {
		names = []string{".more", ".history", ".rollback", ".help", ".exit"}
	} else {
		names = append(names, tcl.BuiltinNames()...)
		env := r.eng.Env()
		for name := range env.Procs {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	var suggestions []prompt.Suggest
	for _, name := range names {
		if strings.HasPrefix(name, word) {
			suggestions = append(suggestions, prompt.Suggest{Text: name})
		}
	}
	return suggestions, start, end
}
