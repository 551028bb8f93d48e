package cli

import (
	"github.com/spf13/cobra"

	"scooby/session"
	"scooby/tui"
)

func newTUICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui [query]",
		Short: "Open the interactive browser (default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTUI,
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	store, err := queryArg(args)
	if err != nil {
		return err
	}
	return tui.Run(cmd.Context(), func(opts session.Options) *session.Session {
		return newSession(store, opts)
	})
}
