package resource

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dreamware/ratelsync/internal/query"
	"github.com/dreamware/ratelsync/internal/querykey"
)

// Caller performs one API request. *api.Client implements it.
type Caller interface {
	Call(ctx context.Context, method, path string, body, out any) error
}

// Services bundles the read and mutation operations of every resource.
type Services struct {
	Spaces         *Spaces
	Feeds          *Feeds
	Notifications  *Notifications
	Teams          *Teams
	Users          *Users
	AttributeCodes *AttributeCodes
}

// New wires every resource service to the same API caller and query client.
func New(api Caller, q *query.Client) *Services {
	b := base{api: api, q: q}
	return &Services{
		Spaces:         &Spaces{b},
		Feeds:          &Feeds{b},
		Notifications:  &Notifications{b},
		Teams:          &Teams{b},
		Users:          &Users{b},
		AttributeCodes: &AttributeCodes{b},
	}
}

// DefaultPolicies are the per-kind cache policies of the Ratel resources.
//
// User info rarely changes within a session and is not refetched on focus;
// notifications must stay close to real time.
var DefaultPolicies = map[string]query.Policy{
	querykey.KindSpaces:         {StaleTime: time.Minute, GCTime: 10 * time.Minute, RefetchOnWindowFocus: true},
	querykey.KindFeeds:          {StaleTime: 30 * time.Second, GCTime: 5 * time.Minute, RefetchOnWindowFocus: true},
	querykey.KindPosts:          {StaleTime: time.Minute, GCTime: 10 * time.Minute, RefetchOnWindowFocus: true},
	querykey.KindNotifications:  {StaleTime: 10 * time.Second, GCTime: 5 * time.Minute, RefetchOnWindowFocus: true},
	querykey.KindTeams:          {StaleTime: 5 * time.Minute, GCTime: 30 * time.Minute, RefetchOnWindowFocus: false},
	querykey.KindUsers:          {StaleTime: 5 * time.Minute, GCTime: 30 * time.Minute, RefetchOnWindowFocus: false},
	querykey.KindAttributeCodes: {StaleTime: 5 * time.Minute, GCTime: 30 * time.Minute, RefetchOnWindowFocus: false},
}

// prerequisitePolicy makes prerequisite checks always hit the server.
var prerequisitePolicy = query.Policy{StaleTime: 0, GCTime: time.Minute}

// RegisterPolicies registers DefaultPolicies, then overrides, in r.
func RegisterPolicies(r *query.PolicyRegistry, overrides map[string]query.Policy) error {
	for kind, p := range DefaultPolicies {
		if err := r.Register(kind, p); err != nil {
			return err
		}
	}
	for kind, p := range overrides {
		if err := r.Register(kind, p); err != nil {
			return err
		}
	}
	return nil
}

type base struct {
	api Caller
	q   *query.Client
}

// get builds a read of path decoded into T.
func get[T any](b base, key querykey.Key, path string) query.Query[T] {
	return query.Query[T]{
		Key: key,
		Fn: func(ctx context.Context) (T, error) {
			var out T
			err := b.api.Call(ctx, http.MethodGet, path, nil, &out)
			return out, err
		},
	}
}

// path joins escaped segments under a root, e.g. path("/v3/spaces", pk).
func path(root string, segments ...string) string {
	var sb strings.Builder
	sb.WriteString(root)
	for _, s := range segments {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(s))
	}
	return sb.String()
}

// withQuery appends non-empty parameters as a query string.
func withQuery(p string, params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		if val != "" {
			v.Set(k, val)
		}
	}
	if len(v) == 0 {
		return p
	}
	return p + "?" + v.Encode()
}
