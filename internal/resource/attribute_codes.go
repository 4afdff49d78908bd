package resource

import (
	"context"
	"net/http"
	"strings"

	"github.com/dreamware/ratelsync/internal/api"
	"github.com/dreamware/ratelsync/internal/query"
	"github.com/dreamware/ratelsync/internal/querykey"
)

// AttributeCodes manages admin verification codes under /m3.
type AttributeCodes struct{ base }

// List returns every attribute code (GET /m3/attribute-codes).
func (a *AttributeCodes) List(ctx context.Context) (*ListResponse[AttributeCode], error) {
	return query.Fetch(ctx, a.q, get[*ListResponse[AttributeCode]](a.base, querykey.AttributeCodes.Lists(), "/m3/attribute-codes"))
}

// Create adds an attribute code (POST /m3/attribute-codes).
func (a *AttributeCodes) Create(ctx context.Context, req CreateAttributeCodeRequest) (*AttributeCode, error) {
	m := query.Mutation[CreateAttributeCodeRequest, *AttributeCode]{
		Name: "attribute-code.create",
		Validate: func(r CreateAttributeCodeRequest) error {
			if strings.TrimSpace(r.Code) == "" {
				return api.Invalid("code", "required")
			}
			return nil
		},
		Fn: func(ctx context.Context, r CreateAttributeCodeRequest) (*AttributeCode, error) {
			var out AttributeCode
			if err := a.api.Call(ctx, http.MethodPost, "/m3/attribute-codes", r, &out); err != nil {
				return nil, err
			}
			return &out, nil
		},
		Effect: func(CreateAttributeCodeRequest) query.Effect {
			return query.Invalidates(querykey.AttributeCodes.All())
		},
	}
	return query.Mutate(ctx, a.q, m, req)
}

// Delete removes an attribute code (DELETE /m3/attribute-codes/{id}).
func (a *AttributeCodes) Delete(ctx context.Context, id string) error {
	m := query.Mutation[string, struct{}]{
		Name: "attribute-code.delete",
		Validate: func(id string) error {
			if id == "" {
				return api.Invalid("id", "required")
			}
			return nil
		},
		Fn: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, a.api.Call(ctx, http.MethodDelete, path("/m3/attribute-codes", id), nil, nil)
		},
		Effect: func(string) query.Effect {
			return query.Invalidates(querykey.AttributeCodes.All())
		},
	}
	_, err := query.Mutate(ctx, a.q, m, id)
	return err
}
