package querykey

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedFilter struct {
	Status string `json:"status"`
	Page   int    `json:"page"`
}

type spaceID string

func (s spaceID) String() string { return "space:" + string(s) }

func TestNewIsDeterministic(t *testing.T) {
	tests := []struct {
		name  string
		kind  string
		parts []any
		want  Key
	}{
		{"kind only", KindSpaces, nil, Key{"spaces"}},
		{"string id", KindSpaces, []any{"detail", "sp_1"}, Key{"spaces", "detail", "sp_1"}},
		{"integer id", KindAttributeCodes, []any{"detail", 42}, Key{"attribute-codes", "detail", "42"}},
		{"int64 id", KindPosts, []any{int64(7)}, Key{"posts", "7"}},
		{"bool part", KindNotifications, []any{true}, Key{"notifications", "true"}},
		{"stringer", KindSpaces, []any{spaceID("a")}, Key{"spaces", "space:a"}},
		{"struct filter", KindFeeds, []any{feedFilter{Status: "draft", Page: 2}}, Key{"feeds", `{"status":"draft","page":2}`}},
		{"map filter sorted", KindFeeds, []any{map[string]int{"b": 2, "a": 1}}, Key{"feeds", `{"a":1,"b":2}`}},
		{"nil filter", KindFeeds, []any{nil}, Key{"feeds", "null"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := New(tt.kind, tt.parts...)
			second := New(tt.kind, tt.parts...)

			if diff := cmp.Diff(tt.want, first); diff != "" {
				t.Errorf("New() mismatch (-want +got):\n%s", diff)
			}
			assert.True(t, first.Equal(second))
			assert.Equal(t, first.Hash(), second.Hash())
		})
	}
}

func TestExtendDoesNotAliasReceiver(t *testing.T) {
	base := make(Key, 1, 8)
	base[0] = "spaces"

	a := base.Extend("a")
	b := base.Extend("b")

	assert.Equal(t, Key{"spaces", "a"}, a)
	assert.Equal(t, Key{"spaces", "b"}, b)
	assert.Equal(t, Key{"spaces"}, base)
}

func TestHasPrefix(t *testing.T) {
	detail := Spaces.Detail("sp_1")

	assert.True(t, detail.HasPrefix(Spaces.All()))
	assert.True(t, detail.HasPrefix(Spaces.Details()))
	assert.True(t, detail.HasPrefix(detail))
	assert.True(t, detail.HasPrefix(Key{}))
	assert.False(t, detail.HasPrefix(Spaces.Lists()))
	assert.False(t, detail.HasPrefix(Spaces.Detail("sp_2")))
	assert.False(t, Spaces.All().HasPrefix(detail))
	assert.False(t, detail.HasPrefix(Feeds.All()))
}

func TestFactoriesExtendTheirCollection(t *testing.T) {
	tests := []struct {
		name       string
		narrow     Key
		collection Key
	}{
		{"space detail", Spaces.Detail("sp_1"), Spaces.All()},
		{"space prerequisite", Spaces.Prerequisite("sp_1"), Spaces.Detail("sp_1")},
		{"space list", Spaces.List(map[string]string{"q": "dao"}), Spaces.Lists()},
		{"feed list", Feeds.List(feedFilter{Status: "published"}), Feeds.All()},
		{"post detail", Posts.Detail("po_1"), Posts.All()},
		{"unread count", Notifications.UnreadCount(), Notifications.All()},
		{"notification list", Notifications.List(nil), Notifications.All()},
		{"team by member", Teams.ByMember("alice"), Teams.Lists()},
		{"team detail", Teams.Detail("core"), Teams.All()},
		{"me", Users.Me(), Users.All()},
		{"user by name", Users.ByUsername("alice"), Users.Details()},
		{"attribute code", AttributeCodes.Detail(3), AttributeCodes.All()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.narrow.HasPrefix(tt.collection), "%s should extend %s", tt.narrow, tt.collection)
			assert.Greater(t, len(tt.narrow), len(tt.collection))
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindNotifications, Notifications.UnreadCount().Kind())
	assert.Equal(t, "", Key{}.Kind())
}

func TestHashRoundTripsThroughParse(t *testing.T) {
	k := Spaces.Detail("sp/with\"odd")
	parsed, err := Parse(k.Hash())
	require.NoError(t, err)
	assert.True(t, k.Equal(parsed))

	// Segments containing the separator do not collide.
	assert.NotEqual(t, Key{"a/b"}.Hash(), Key{"a", "b"}.Hash())

	_, err = Parse("not json")
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "spaces/detail/sp_1", Spaces.Detail("sp_1").String())
}
