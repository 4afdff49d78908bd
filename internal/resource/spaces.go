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

// MaxTitleLength bounds space and post titles.
const MaxTitleLength = 100

// Spaces reads and mutates spaces.
type Spaces struct{ base }

// Get returns one space (GET /v3/spaces/{pk}).
func (s *Spaces) Get(ctx context.Context, spacePk string) (*Space, error) {
	if spacePk == "" {
		return nil, api.Invalid("space_pk", "required")
	}
	return query.Fetch(ctx, s.q, s.getQuery(spacePk))
}

func (s *Spaces) getQuery(spacePk string) query.Query[*Space] {
	return get[*Space](s.base, querykey.Spaces.Detail(spacePk), path("/v3/spaces", spacePk))
}

// List returns the spaces matching filter (GET /v3/spaces).
func (s *Spaces) List(ctx context.Context, filter SpaceFilter) (*ListResponse[Space], error) {
	p := withQuery("/v3/spaces", map[string]string{"status": filter.Status, "bookmark": filter.Bookmark})
	return query.Fetch(ctx, s.q, get[*ListResponse[Space]](s.base, querykey.Spaces.List(filter), p))
}

// Prefetch loads several spaces concurrently.
func (s *Spaces) Prefetch(ctx context.Context, spacePks ...string) error {
	qs := make([]query.Prefetchable, 0, len(spacePks))
	for _, pk := range spacePks {
		if pk == "" {
			return api.Invalid("space_pk", "required")
		}
		qs = append(qs, s.getQuery(pk))
	}
	return s.q.Prefetch(ctx, qs...)
}

// Prerequisite returns the caller's join checklist for a space. It is
// always fetched from the server.
func (s *Spaces) Prerequisite(ctx context.Context, spacePk string) (*SpacePrerequisite, error) {
	if spacePk == "" {
		return nil, api.Invalid("space_pk", "required")
	}
	q := get[*SpacePrerequisite](s.base, querykey.Spaces.Prerequisite(spacePk), path("/v3/spaces", spacePk, "prerequisite"))
	policy := prerequisitePolicy
	q.Policy = &policy
	return query.Fetch(ctx, s.q, q)
}

type updateTitleVars struct {
	SpacePk string
	Title   string
}

// UpdateTitle renames a space (PATCH /v3/spaces/{pk}). The cached space is
// patched before the request is sent and restored if it fails, so a read
// right after success shows the new title without a network call.
func (s *Spaces) UpdateTitle(ctx context.Context, spacePk, title string) error {
	m := query.Mutation[updateTitleVars, struct{}]{
		Name: "space.update-title",
		Validate: func(v updateTitleVars) error {
			if v.SpacePk == "" {
				return api.Invalid("space_pk", "required")
			}
			if strings.TrimSpace(v.Title) == "" {
				return api.Invalid("title", "required")
			}
			if utf8.RuneCountInString(v.Title) > MaxTitleLength {
				return api.Invalid("title", "must be at most %d characters", MaxTitleLength)
			}
			return nil
		},
		Fn: func(ctx context.Context, v updateTitleVars) (struct{}, error) {
			body := map[string]string{"title": v.Title}
			return struct{}{}, s.api.Call(ctx, http.MethodPatch, path("/v3/spaces", v.SpacePk), body, nil)
		},
		Effect: func(v updateTitleVars) query.Effect {
			return query.Patches(query.PatchOf(querykey.Spaces.Detail(v.SpacePk), func(old *Space) *Space {
				if old == nil {
					return nil
				}
				next := *old
				next.Title = v.Title
				return &next
			}))
		},
	}
	_, err := query.Mutate(ctx, s.q, m, updateTitleVars{SpacePk: spacePk, Title: title})
	return err
}

// Delete removes a space (DELETE /v3/spaces/{pk}). Spaces and feeds are
// invalidated together since feeds embed space posts.
func (s *Spaces) Delete(ctx context.Context, spacePk string) error {
	m := query.Mutation[string, struct{}]{
		Name: "space.delete",
		Validate: func(pk string) error {
			if pk == "" {
				return api.Invalid("space_pk", "required")
			}
			return nil
		},
		Fn: func(ctx context.Context, pk string) (struct{}, error) {
			return struct{}{}, s.api.Call(ctx, http.MethodDelete, path("/v3/spaces", pk), nil, nil)
		},
		Effect: func(string) query.Effect {
			return query.Invalidates(querykey.Spaces.All(), querykey.Feeds.All())
		},
	}
	_, err := query.Mutate(ctx, s.q, m, spacePk)
	return err
}
