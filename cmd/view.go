package cmd

import (
	"github.com/spf13/cobra"

	"gooze.dev/pkg/grafter/internal/domain"
)

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view [run-id]",
		Short: "View stored repair runs",
		Long:  "List the runs stored in the run history, or show the results of one run.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, release, err := commandWorkflow(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer release()

			viewArgs := domain.ViewArgs{}
			if len(args) == 1 {
				viewArgs.RunID = args[0]
			}

			return wf.View(cmd.Context(), viewArgs)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(newViewCmd())
}
