package resource

import (
	"context"
	"net/http"

	"github.com/dreamware/ratelsync/internal/api"
	"github.com/dreamware/ratelsync/internal/query"
	"github.com/dreamware/ratelsync/internal/querykey"
)

// Notifications reads and mutates the user's inbox.
type Notifications struct{ base }

// List returns the inbox (GET /v3/notifications).
func (n *Notifications) List(ctx context.Context, filter NotificationFilter) (*ListResponse[Notification], error) {
	params := map[string]string{}
	if filter.UnreadOnly {
		params["unread_only"] = "true"
	}
	p := withQuery("/v3/notifications", params)
	return query.Fetch(ctx, n.q, get[*ListResponse[Notification]](n.base, querykey.Notifications.List(filter), p))
}

// UnreadCount returns the unread badge (GET /v3/notifications/unread-count).
func (n *Notifications) UnreadCount(ctx context.Context) (*UnreadCount, error) {
	return query.Fetch(ctx, n.q, get[*UnreadCount](n.base, querykey.Notifications.UnreadCount(), "/v3/notifications/unread-count"))
}

// Delete removes one notification (DELETE /v3/notifications/{id}). On
// success every notification query is invalidated; on failure the cache is
// left untouched and the error is returned.
func (n *Notifications) Delete(ctx context.Context, id string) error {
	m := query.Mutation[string, struct{}]{
		Name: "notification.delete",
		Validate: func(id string) error {
			if id == "" {
				return api.Invalid("id", "required")
			}
			return nil
		},
		Fn: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, n.api.Call(ctx, http.MethodDelete, path("/v3/notifications", id), nil, nil)
		},
		Effect: func(string) query.Effect {
			return query.Invalidates(querykey.Notifications.All())
		},
	}
	_, err := query.Mutate(ctx, n.q, m, id)
	return err
}

// MarkAllAsRead clears the inbox badge (POST /v3/notifications/mark-all-as-read).
func (n *Notifications) MarkAllAsRead(ctx context.Context) error {
	m := query.Mutation[struct{}, struct{}]{
		Name: "notification.mark-all-as-read",
		Fn: func(ctx context.Context, _ struct{}) (struct{}, error) {
			return struct{}{}, n.api.Call(ctx, http.MethodPost, "/v3/notifications/mark-all-as-read", nil, nil)
		},
		Effect: func(struct{}) query.Effect {
			return query.Invalidates(querykey.Notifications.All())
		},
	}
	_, err := query.Mutate(ctx, n.q, m, struct{}{})
	return err
}
