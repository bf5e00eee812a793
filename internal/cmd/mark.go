package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, errID := parseID(args[0])
			if errID != nil {
				return errID
			}

			e, errEnv := newEnv(true)
			if errEnv != nil {
				return errEnv
			}
			defer e.Close()

			if _, err := e.requireSession(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if _, err := e.inbox.Restore(ctx); err != nil {
				return err
			}

			if err := e.checkAuth(e.inbox.MarkAsRead(ctx, id)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d as read, %d unread\n", id, e.inbox.Snapshot().UnreadCount)

			return nil
		},
	}
}

func readAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, errEnv := newEnv(true)
			if errEnv != nil {
				return errEnv
			}
			defer e.Close()

			if _, err := e.requireSession(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := e.fetch(ctx); err != nil {
				return err
			}

			if err := e.checkAuth(e.inbox.MarkAllAsRead(ctx)); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read")

			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, errID := parseID(args[0])
			if errID != nil {
				return errID
			}

			e, errEnv := newEnv(true)
			if errEnv != nil {
				return errEnv
			}
			defer e.Close()

			if _, err := e.requireSession(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if _, err := e.inbox.Restore(ctx); err != nil {
				return err
			}

			if err := e.checkAuth(e.inbox.Delete(ctx, id)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)

			return nil
		},
	}
}
