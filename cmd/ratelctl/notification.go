package main

import (
	"github.com/spf13/cobra"

	"github.com/dreamware/ratelsync/internal/resource"
)

func newNotificationCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notification",
		Aliases: []string{"notifications"},
		Short:   "Read and manage notifications",
	}

	var filter resource.NotificationFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.Notifications.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	list.Flags().BoolVar(&filter.UnreadOnly, "unread", false, "Only unread notifications")

	unread := &cobra.Command{
		Use:   "unread-count",
		Short: "Show the number of unread notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.svc.Notifications.UnreadCount(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Notifications.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return done(cmd, "deleted notification %s", args[0])
		},
	}

	readAll := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Notifications.MarkAllAsRead(cmd.Context()); err != nil {
				return err
			}
			c, err := a.svc.Notifications.UnreadCount(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		},
	}

	cmd.AddCommand(list, unread, del, readAll)
	return cmd
}
