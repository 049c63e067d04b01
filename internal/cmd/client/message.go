package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brugmanjoost/drumbeat/internal/cmd/client/transports"
)

// NewMessageCommand constructs the `message` command group and subcommands.
func NewMessageCommand(baseURL BaseURLFunc) *cobra.Command {
	msgCmd := &cobra.Command{
		Use:     "message",
		Aliases: []string{"msg"},
		Short:   "Message operations on a queue",
		Long: `Message operations on a queue.

Lifecycle:
  pending → [postback completed|failed] → completed | failed
     ↓
  [cancel] → cancelled

Admin tokens may create, cancel, delete and see every message. Worker tokens
see pending messages only and report outcomes with postback.`,
	}
	msgCmd.PersistentFlags().StringP("queue", "q", "", "Queue name")
	msgCmd.PersistentFlags().String("token", "", "Access token (default $"+TokenEnv+")")
	_ = msgCmd.MarkPersistentFlagRequired("queue")

	msgCmd.AddCommand(
		newMessageCreateCommand(baseURL),
		newMessageListCommand(baseURL),
		newMessageGetCommand(baseURL),
		newMessageCancelCommand(baseURL),
		newMessagePostbackCommand(baseURL),
		newMessageDeleteCommand(baseURL),
	)
	return msgCmd
}

// newMessageCreateCommand constructs the `message create` subcommand.
func newMessageCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a message for a subject",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			subject, _ := cmd.Flags().GetString("subject")
			body, err := jsonFlag(cmd, "body")
			if err != nil {
				return err
			}
			id, err := transportFor(cmd, baseURL).Create(cmd.Context(), queue, subject, body)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "id:", id)
			return nil
		},
	}
	createCmd.Flags().String("subject", "", "Subject; at most one pending message per subject")
	createCmd.Flags().String("body", "", "Request body (JSON)")
	_ = createCmd.MarkFlagRequired("subject")
	return createCmd
}

// newMessageListCommand constructs the `message list` subcommand.
func newMessageListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List messages of a queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			status, _ := cmd.Flags().GetString("status")
			filter, _ := cmd.Flags().GetString("filter")
			list, err := transportFor(cmd, baseURL).List(cmd.Context(), transports.ListRequest{Queue: queue, Status: status, Filter: filter})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
	listCmd.Flags().String("status", "", "Only messages in this state: pending|cancelled|completed|failed")
	listCmd.Flags().String("filter", "", `CEL expression, e.g. 'request.branch == "main"'`)
	return listCmd
}

// newMessageGetCommand constructs the `message get` subcommand.
func newMessageGetCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			m, err := transportFor(cmd, baseURL).Get(cmd.Context(), queue, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

// newMessageCancelCommand constructs the `message cancel` subcommand.
func newMessageCancelCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			if err := transportFor(cmd, baseURL).Cancel(cmd.Context(), queue, id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Message %d cancelled\n", id)
			return nil
		},
	}
}

// newMessagePostbackCommand constructs the `message postback` subcommand.
func newMessagePostbackCommand(baseURL BaseURLFunc) *cobra.Command {
	postbackCmd := &cobra.Command{
		Use:   "postback <id>",
		Short: "Report the outcome of a pending message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			status, _ := cmd.Flags().GetString("status")
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			body, err := jsonFlag(cmd, "body")
			if err != nil {
				return err
			}
			if err := transportFor(cmd, baseURL).Postback(cmd.Context(), queue, id, status, body); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Message %d %s\n", id, status)
			return nil
		},
	}
	postbackCmd.Flags().String("status", "completed", "Outcome: completed|failed")
	postbackCmd.Flags().String("body", "", "Response body (JSON)")
	return postbackCmd
}

// newMessageDeleteCommand constructs the `message delete` subcommand.
func newMessageDeleteCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a message in any state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			if err := transportFor(cmd, baseURL).Delete(cmd.Context(), queue, id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Message %d deleted from queue %s\n", id, queue)
			return nil
		},
	}
}
