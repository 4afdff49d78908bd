package resource

import (
	"context"

	"github.com/dreamware/ratelsync/internal/api"
	"github.com/dreamware/ratelsync/internal/query"
	"github.com/dreamware/ratelsync/internal/querykey"
)

// Users reads user info.
type Users struct{ base }

// Me returns the signed-in user (GET /v3/me).
func (u *Users) Me(ctx context.Context) (*User, error) {
	return query.Fetch(ctx, u.q, get[*User](u.base, querykey.Users.Me(), "/v3/me"))
}

// ByUsername returns a user's public info (GET /v3/users/{username}).
func (u *Users) ByUsername(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, api.Invalid("username", "required")
	}
	return query.Fetch(ctx, u.q, get[*User](u.base, querykey.Users.ByUsername(username), path("/v3/users", username)))
}
