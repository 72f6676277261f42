package cli

import (
	"github.com/spf13/cobra"

	"github.com/slopdrop/slopdrop/pkg/repl"
)

// NewReplCommand creates the interactive console command.
func NewReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive console",
		Long: `Start an interactive console against the local state database.
Console sessions run with admin privileges. Meta-commands (.more, .history,
.rollback) mirror the operations available over HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := openEngine(GlobalConfig)
			if err != nil {
				return err
			}
			defer cleanup()

			return repl.New(eng).Run(cmd.Context())
		},
	}
}
