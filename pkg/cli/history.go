package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the commit history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent commits",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := openEngine(GlobalConfig)
			if err != nil {
				return err
			}
			defer cleanup()

			infos, err := eng.History(limit)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("No commits yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "COMMIT\tWHEN\tAUTHOR\tMESSAGE\tCHANGES")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					info.ID[:8],
					info.Timestamp.Format("2006-01-02 15:04:05"),
					info.Author,
					info.Message,
					info.Summary,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of commits to show (default 20)")

	return cmd
}
