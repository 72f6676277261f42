package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slopdrop/slopdrop/pkg/engine"
)

// NewEvalCommand creates the one-shot evaluation command.
func NewEvalCommand() *cobra.Command {
	var admin bool

	cmd := &cobra.Command{
		Use:   "eval [script]",
		Short: "Evaluate a script and exit",
		Long: `Evaluate a script against the local state database and print the
result. The script is read from the argument, or from stdin when no
argument is given. Mutations commit exactly as they do in long-running
front ends.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			if len(args) == 1 {
				source = args[0]
			} else {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				source = string(data)
			}
			if strings.TrimSpace(source) == "" {
				return fmt.Errorf("no script to evaluate")
			}

			eng, cleanup, err := openEngine(GlobalConfig)
			if err != nil {
				return err
			}
			defer cleanup()

			caller := engine.CallerContext{Name: "cli", Origin: "cli", Admin: admin}
			res, err := eng.Submit(cmd.Context(), source, caller)
			if err != nil {
				return err
			}

			failed := res.IsError

			// Drain every page so a one-shot invocation never strands
			// output. Pages with more remaining carry a trailing
			// continuation notice, dropped here since we keep going.
			for {
				lines := res.Output
				if res.MoreAvailable && len(lines) > 0 {
					lines = lines[:len(lines)-1]
				}
				for _, line := range lines {
					fmt.Println(line)
				}
				if !res.MoreAvailable {
					break
				}
				res = eng.More(caller)
			}

			if failed {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "Run with admin privileges")

	return cmd
}
