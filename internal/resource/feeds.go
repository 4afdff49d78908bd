package resource

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dreamware/ratelsync/internal/api"
	"github.com/dreamware/ratelsync/internal/query"
	"github.com/dreamware/ratelsync/internal/querykey"
)

// Feeds reads feeds and reads and mutates posts.
type Feeds struct{ base }

// Feed returns the feed matching filter (GET /v3/feeds).
func (f *Feeds) Feed(ctx context.Context, filter FeedFilter) (*ListResponse[Post], error) {
	p := withQuery("/v3/feeds", map[string]string{"status": filter.Status, "username": filter.Username})
	return query.Fetch(ctx, f.q, get[*ListResponse[Post]](f.base, querykey.Feeds.List(filter), p))
}

// Post returns one post (GET /v3/posts/{pk}).
func (f *Feeds) Post(ctx context.Context, postPk string) (*Post, error) {
	if postPk == "" {
		return nil, api.Invalid("post_pk", "required")
	}
	return query.Fetch(ctx, f.q, get[*Post](f.base, querykey.Posts.Detail(postPk), path("/v3/posts", postPk)))
}

// CreatePost publishes a post (POST /v3/posts). Every feed is invalidated.
func (f *Feeds) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	m := query.Mutation[CreatePostRequest, *Post]{
		Name: "post.create",
		Validate: func(r CreatePostRequest) error {
			if strings.TrimSpace(r.Title) == "" {
				return api.Invalid("title", "required")
			}
			if utf8.RuneCountInString(r.Title) > MaxTitleLength {
				return api.Invalid("title", "must be at most %d characters", MaxTitleLength)
			}
			return nil
		},
		Fn: func(ctx context.Context, r CreatePostRequest) (*Post, error) {
			var out Post
			if err := f.api.Call(ctx, http.MethodPost, "/v3/posts", r, &out); err != nil {
				return nil, err
			}
			return &out, nil
		},
		Effect: func(CreatePostRequest) query.Effect {
			return query.Invalidates(querykey.Feeds.All())
		},
	}
	return query.Mutate(ctx, f.q, m, req)
}

type likeVars struct {
	PostPk string
	Like   bool
}

// LikePost likes or unlikes a post (POST /v3/posts/{pk}/likes). The cached
// post reflects the change immediately and is restored if the request fails.
func (f *Feeds) LikePost(ctx context.Context, postPk string, like bool) error {
	m := query.Mutation[likeVars, struct{}]{
		Name: "post.like",
		Validate: func(v likeVars) error {
			if v.PostPk == "" {
				return api.Invalid("post_pk", "required")
			}
			return nil
		},
		Fn: func(ctx context.Context, v likeVars) (struct{}, error) {
			body := map[string]bool{"like": v.Like}
			return struct{}{}, f.api.Call(ctx, http.MethodPost, path("/v3/posts", v.PostPk, "likes"), body, nil)
		},
		Effect: func(v likeVars) query.Effect {
			return query.Patches(query.PatchOf(querykey.Posts.Detail(v.PostPk), func(old *Post) *Post {
				if old == nil || old.Liked == v.Like {
					return old
				}
				next := *old
				next.Liked = v.Like
				if v.Like {
					next.Likes++
				} else if next.Likes > 0 {
					next.Likes--
				}
				return &next
			}))
		},
	}
	_, err := query.Mutate(ctx, f.q, m, likeVars{PostPk: postPk, Like: like})
	return err
}

// DeletePost removes a post (DELETE /v3/posts/{pk}). Posts and feeds are
// invalidated together.
func (f *Feeds) DeletePost(ctx context.Context, postPk string) error {
	m := query.Mutation[string, struct{}]{
		Name: "post.delete",
		Validate: func(pk string) error {
			if pk == "" {
				return api.Invalid("post_pk", "required")
			}
			return nil
		},
		Fn: func(ctx context.Context, pk string) (struct{}, error) {
			return struct{}{}, f.api.Call(ctx, http.MethodDelete, path("/v3/posts", pk), nil, nil)
		},
		Effect: func(string) query.Effect {
			return query.Invalidates(querykey.Posts.All(), querykey.Feeds.All())
		},
	}
	_, err := query.Mutate(ctx, f.q, m, postPk)
	return err
}
