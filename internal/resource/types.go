package resource

// Space is a community space.
type Space struct {
	Pk             string `json:"pk"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Status         string `json:"status"`
	AuthorUsername string `json:"author_username"`
	Likes          int64  `json:"likes"`
	CreatedAt      int64  `json:"created_at"`
}

// SpaceFilter narrows a space listing.
type SpaceFilter struct {
	Status   string `json:"status,omitempty"`
	Bookmark string `json:"bookmark,omitempty"`
}

// SpacePrerequisite is the checklist a user must complete before joining a
// space. It changes as the user acts, so it is never served from cache.
type SpacePrerequisite struct {
	Completed bool     `json:"completed"`
	Pending   []string `json:"pending,omitempty"`
}

// Post is a feed item.
type Post struct {
	Pk             string `json:"pk"`
	Title          string `json:"title"`
	HTMLContents   string `json:"html_contents"`
	AuthorUsername string `json:"author_username"`
	SpacePk        string `json:"space_pk,omitempty"`
	Status         string `json:"status"`
	Likes          int64  `json:"likes"`
	Liked          bool   `json:"liked"`
	CreatedAt      int64  `json:"created_at"`
}

// FeedFilter narrows a feed listing.
type FeedFilter struct {
	Status   string `json:"status,omitempty"`
	Username string `json:"username,omitempty"`
}

// CreatePostRequest is the body of POST /v3/posts.
type CreatePostRequest struct {
	Title        string `json:"title"`
	HTMLContents string `json:"html_contents"`
	SpacePk      string `json:"space_pk,omitempty"`
}

// Notification is an entry of the user's inbox.
type Notification struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt int64  `json:"created_at"`
}

// NotificationFilter narrows the inbox.
type NotificationFilter struct {
	UnreadOnly bool `json:"unread_only,omitempty"`
}

// UnreadCount is the unread badge counter.
type UnreadCount struct {
	Count int `json:"count"`
}

// Team is a group account.
type Team struct {
	Pk          string   `json:"pk"`
	Username    string   `json:"username"`
	Nickname    string   `json:"nickname"`
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members,omitempty"`
}

// CreateTeamRequest is the body of POST /v3/teams.
type CreateTeamRequest struct {
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
	Description string `json:"description,omitempty"`
}

// User is a user's public info plus the teams they belong to.
type User struct {
	Pk       string   `json:"pk"`
	Username string   `json:"username"`
	Nickname string   `json:"nickname"`
	Teams    []string `json:"teams,omitempty"`
}

// AttributeCode is an admin-managed verification code.
type AttributeCode struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// CreateAttributeCodeRequest is the body of POST /m3/attribute-codes.
type CreateAttributeCodeRequest struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// ListResponse is the envelope of every list endpoint.
type ListResponse[T any] struct {
	Items    []T    `json:"items"`
	Bookmark string `json:"bookmark,omitempty"`
}
