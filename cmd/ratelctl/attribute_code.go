package main

import (
	"github.com/spf13/cobra"

	"github.com/dreamware/ratelsync/internal/resource"
)

func newAttributeCodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attribute-code",
		Short: "Manage attribute codes (admin)",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List attribute codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.AttributeCodes.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	var req resource.CreateAttributeCodeRequest
	create := &cobra.Command{
		Use:   "create <code>",
		Short: "Create an attribute code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Code = args[0]
			c, err := a.svc.AttributeCodes.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		},
	}
	create.Flags().StringVar(&req.Description, "description", "", "What the code verifies")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an attribute code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.AttributeCodes.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return done(cmd, "deleted attribute code %s", args[0])
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}
