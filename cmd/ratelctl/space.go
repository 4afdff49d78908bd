package main

import (
	"github.com/spf13/cobra"

	"github.com/dreamware/ratelsync/internal/resource"
)

func newSpaceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "space",
		Short: "Read and manage spaces",
	}

	get := &cobra.Command{
		Use:   "get <space-pk> [space-pk...]",
		Short: "Show one or more spaces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.svc.Spaces.Prefetch(ctx, args...); err != nil {
				return err
			}
			spaces := make([]*resource.Space, 0, len(args))
			for _, pk := range args {
				sp, err := a.svc.Spaces.Get(ctx, pk)
				if err != nil {
					return err
				}
				spaces = append(spaces, sp)
			}
			if len(spaces) == 1 {
				return printJSON(cmd, spaces[0])
			}
			return printJSON(cmd, spaces)
		},
	}

	var filter resource.SpaceFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List spaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.Spaces.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	list.Flags().StringVar(&filter.Status, "status", "", "Only spaces with this status")
	list.Flags().StringVar(&filter.Bookmark, "bookmark", "", "Continue after this bookmark")

	setTitle := &cobra.Command{
		Use:   "set-title <space-pk> <title>",
		Short: "Rename a space",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Spaces.UpdateTitle(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			sp, err := a.svc.Spaces.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, sp)
		},
	}

	del := &cobra.Command{
		Use:   "delete <space-pk>",
		Short: "Delete a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Spaces.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return done(cmd, "deleted space %s", args[0])
		},
	}

	prerequisite := &cobra.Command{
		Use:   "prerequisite <space-pk>",
		Short: "Show what is left to do before joining a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pre, err := a.svc.Spaces.Prerequisite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, pre)
		},
	}

	cmd.AddCommand(get, list, setTitle, del, prerequisite)
	return cmd
}
