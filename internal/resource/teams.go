package resource

import (
	"context"
	"net/http"
	"regexp"

	"github.com/dreamware/ratelsync/internal/api"
	"github.com/dreamware/ratelsync/internal/query"
	"github.com/dreamware/ratelsync/internal/querykey"
)

var teamnamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,29}$`)

// Teams reads and creates teams.
type Teams struct{ base }

// Get returns one team (GET /v3/teams/{teamname}).
func (t *Teams) Get(ctx context.Context, teamname string) (*Team, error) {
	if teamname == "" {
		return nil, api.Invalid("teamname", "required")
	}
	return query.Fetch(ctx, t.q, get[*Team](t.base, querykey.Teams.Detail(teamname), path("/v3/teams", teamname)))
}

// List returns the teams username belongs to (GET /v3/users/{username}/teams).
func (t *Teams) List(ctx context.Context, username string) ([]Team, error) {
	if username == "" {
		return nil, api.Invalid("username", "required")
	}
	return query.Fetch(ctx, t.q, get[[]Team](t.base, querykey.Teams.ByMember(username), path("/v3/users", username, "teams")))
}

// Create creates a team owned by the caller (POST /v3/teams). Team lists and
// user info, which carries team membership, are invalidated in one step.
func (t *Teams) Create(ctx context.Context, req CreateTeamRequest) (*Team, error) {
	m := query.Mutation[CreateTeamRequest, *Team]{
		Name: "team.create",
		Validate: func(r CreateTeamRequest) error {
			if !teamnamePattern.MatchString(r.Username) {
				return api.Invalid("username", "must be 3-30 lowercase letters, digits, '-' or '_'")
			}
			if r.Nickname == "" {
				return api.Invalid("nickname", "required")
			}
			return nil
		},
		Fn: func(ctx context.Context, r CreateTeamRequest) (*Team, error) {
			var out Team
			if err := t.api.Call(ctx, http.MethodPost, "/v3/teams", r, &out); err != nil {
				return nil, err
			}
			return &out, nil
		},
		Effect: func(CreateTeamRequest) query.Effect {
			return query.Invalidates(querykey.Teams.Lists(), querykey.Users.All())
		},
	}
	return query.Mutate(ctx, t.q, m, req)
}
