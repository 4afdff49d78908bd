package querykey

// Resource kinds. Each one is the first segment of every key of its family
// and selects the cache policy for that family.
const (
	KindSpaces         = "spaces"
	KindFeeds          = "feeds"
	KindPosts          = "posts"
	KindNotifications  = "notifications"
	KindTeams          = "teams"
	KindUsers          = "user-info"
	KindAttributeCodes = "attribute-codes"
)

// family is the shared shape of every resource key factory:
//
//	All()            [kind]
//	Lists()          [kind, "list"]
//	List(filter)     [kind, "list", filter]
//	Details()        [kind, "detail"]
//	Detail(id)       [kind, "detail", id]
type family struct {
	kind string
}

// All addresses every cached value of the family.
func (f family) All() Key { return New(f.kind) }

// Lists addresses every list query of the family.
func (f family) Lists() Key { return f.All().Extend("list") }

// List addresses one list query. A nil filter is the unfiltered list.
func (f family) List(filter any) Key { return f.Lists().Extend(filter) }

// Details addresses every single-resource query of the family.
func (f family) Details() Key { return f.All().Extend("detail") }

// Detail addresses one resource by identity.
func (f family) Detail(id any) Key { return f.Details().Extend(id) }

// SpaceKeys is the key factory for spaces.
type SpaceKeys struct{ family }

// Prerequisite addresses the prerequisite check of a space. It lives under
// Detail so deleting or invalidating the space reaches it too.
func (s SpaceKeys) Prerequisite(spacePk string) Key {
	return s.Detail(spacePk).Extend("prerequisite")
}

// FeedKeys is the key factory for feeds. Lists take a feed filter.
type FeedKeys struct{ family }

// PostKeys is the key factory for single posts.
type PostKeys struct{ family }

// NotificationKeys is the key factory for notifications.
type NotificationKeys struct{ family }

// UnreadCount addresses the unread badge counter.
func (n NotificationKeys) UnreadCount() Key { return n.All().Extend("unread-count") }

// TeamKeys is the key factory for teams.
type TeamKeys struct{ family }

// ByMember addresses the teams a user belongs to.
func (t TeamKeys) ByMember(username string) Key { return t.Lists().Extend("member", username) }

// UserKeys is the key factory for user info.
type UserKeys struct{ family }

// Me addresses the signed-in user's info.
func (u UserKeys) Me() Key { return u.All().Extend("me") }

// ByUsername addresses a public user profile.
func (u UserKeys) ByUsername(username string) Key { return u.Detail(username) }

// AttributeCodeKeys is the key factory for attribute codes.
type AttributeCodeKeys struct{ family }

// The factories. These are the only places keys are spelled out.
var (
	Spaces         = SpaceKeys{family{KindSpaces}}
	Feeds          = FeedKeys{family{KindFeeds}}
	Posts          = PostKeys{family{KindPosts}}
	Notifications  = NotificationKeys{family{KindNotifications}}
	Teams          = TeamKeys{family{KindTeams}}
	Users          = UserKeys{family{KindUsers}}
	AttributeCodes = AttributeCodeKeys{family{KindAttributeCodes}}
)
