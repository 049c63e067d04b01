package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRoot constructs the drumbeat root command with the client commands
// attached. The binary adds its server commands on top.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "drumbeat",
		Short: "drumbeat task hand-off queue",
		Long: "drumbeat hands work items from producers to workers. Producers schedule one pending\n" +
			"message per subject, workers poll for pending messages and post back the outcome.",
		SilenceUsage: true,
	}
	root.AddCommand(NewMessageCommand(baseURL))
	root.AddCommand(NewHealthCommand(baseURL))
	return root
}

// NewHealthCommand constructs the `health` command.
func NewHealthCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is serving",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := transportFor(cmd, baseURL).Health(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
}
