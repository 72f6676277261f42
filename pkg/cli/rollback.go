package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slopdrop/slopdrop/pkg/engine"
)

// NewRollbackCommand creates the rollback command.
func NewRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <commit-id>",
		Short: "Restore the environment of a previous commit",
		Long: `Restore the environment recorded by the given commit. The commit ID
may be abbreviated to a prefix of at least 8 characters. History is
append-only: the rollback is recorded as a new commit, so it can itself
be rolled back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := openEngine(GlobalConfig)
			if err != nil {
				return err
			}
			defer cleanup()

			caller := engine.CallerContext{Name: "cli", Origin: "cli", Admin: true}
			info, err := eng.Rollback(args[0], caller)
			if err != nil {
				return err
			}
			fmt.Printf("Rolled back to %s; recorded as commit %s\n", args[0], info.ID[:8])
			return nil
		},
	}
}
