package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/ratelsync/internal/resource"
)

func newTeamCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Read and create teams",
	}

	get := &cobra.Command{
		Use:   "get <teamname>",
		Short: "Show a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.svc.Teams.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, t)
		},
	}

	list := &cobra.Command{
		Use:   "list [username]",
		Short: "List the teams of a user, the signed-in user by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var username string
			if len(args) == 1 {
				username = args[0]
			} else {
				me, err := a.svc.Users.Me(ctx)
				if err != nil {
					return err
				}
				username = me.Username
			}
			teams, err := a.svc.Teams.List(ctx, username)
			if err != nil {
				return err
			}
			return printJSON(cmd, teams)
		},
	}

	var req resource.CreateTeamRequest
	create := &cobra.Command{
		Use:   "create <teamname>",
		Short: "Create a team owned by the signed-in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Username = args[0]
			if req.Nickname == "" {
				req.Nickname = args[0]
			}
			t, err := a.svc.Teams.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, t)
		},
	}
	create.Flags().StringVar(&req.Nickname, "nickname", "", "Display name (default: teamname)")
	create.Flags().StringVar(&req.Description, "description", "", "Team description")

	cmd.AddCommand(get, list, create)
	return cmd
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Read user info",
	}

	me := &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.svc.Users.Me(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, u)
		},
	}

	get := &cobra.Command{
		Use:   "get <username> [username...]",
		Short: "Show one or more users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users := make([]*resource.User, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, name := range args {
				g.Go(func() error {
					u, err := a.svc.Users.ByUsername(ctx, name)
					if err != nil {
						return err
					}
					users[i] = u
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			if len(users) == 1 {
				return printJSON(cmd, users[0])
			}
			return printJSON(cmd, users)
		},
	}

	cmd.AddCommand(me, get)
	return cmd
}
