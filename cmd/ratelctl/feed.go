package main

import (
	"github.com/spf13/cobra"

	"github.com/dreamware/ratelsync/internal/resource"
)

func newFeedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Read feeds",
	}

	var filter resource.FeedFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List the feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.Feeds.Feed(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	list.Flags().StringVar(&filter.Status, "status", "", "Only posts with this status")
	list.Flags().StringVar(&filter.Username, "username", "", "Only posts by this author")

	cmd.AddCommand(list)
	return cmd
}

func newPostCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Read and publish posts",
	}

	get := &cobra.Command{
		Use:   "get <post-pk>",
		Short: "Show a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.svc.Feeds.Post(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}

	var req resource.CreatePostRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Publish a post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.svc.Feeds.CreatePost(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}
	create.Flags().StringVar(&req.Title, "title", "", "Post title (required)")
	create.Flags().StringVar(&req.HTMLContents, "content", "", "Post body as HTML")
	create.Flags().StringVar(&req.SpacePk, "space", "", "Space to post in")

	var unlike bool
	like := &cobra.Command{
		Use:   "like <post-pk>",
		Short: "Like or unlike a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Feeds.LikePost(cmd.Context(), args[0], !unlike); err != nil {
				return err
			}
			p, err := a.svc.Feeds.Post(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}
	like.Flags().BoolVar(&unlike, "unlike", false, "Remove the like instead")

	del := &cobra.Command{
		Use:   "delete <post-pk>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Feeds.DeletePost(cmd.Context(), args[0]); err != nil {
				return err
			}
			return done(cmd, "deleted post %s", args[0])
		},
	}

	cmd.AddCommand(get, create, like, del)
	return cmd
}
