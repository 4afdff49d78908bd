// Package apiserver serves an in-memory implementation of the Ratel REST API.
//
// It backs the resource and integration tests and the ratel-api command,
// so the caching layer can be exercised against real HTTP without the
// production backend.
//
// # Routes
//
//	GET    /v3/spaces                        list spaces (?status, ?bookmark)
//	GET    /v3/spaces/{pk}                   one space
//	PATCH  /v3/spaces/{pk}                   update title/description
//	DELETE /v3/spaces/{pk}                   delete a space and its posts
//	GET    /v3/spaces/{pk}/prerequisite      join checklist
//	GET    /v3/feeds                         feed (?status, ?username, ?bookmark)
//	POST   /v3/posts                         create a post
//	GET    /v3/posts/{pk}                    one post
//	DELETE /v3/posts/{pk}                    delete a post
//	POST   /v3/posts/{pk}/likes              like or unlike
//	GET    /v3/notifications                 inbox (?unread_only)
//	GET    /v3/notifications/unread-count    unread badge
//	DELETE /v3/notifications/{id}            delete a notification
//	POST   /v3/notifications/mark-all-as-read
//	POST   /v3/teams                         create a team
//	GET    /v3/teams/{teamname}              one team
//	GET    /v3/users/{username}/teams        teams of a user
//	GET    /v3/users/{username}              one user
//	GET    /v3/me                            current user
//	GET    /m3/attribute-codes               list codes
//	POST   /m3/attribute-codes               create a code
//	DELETE /m3/attribute-codes/{id}          delete a code
//
// Errors are JSON objects with a "message" field.
//
// # Testing Hooks
//
// Hits reports how many requests reached a route, which is how tests prove
// a read was served from cache. FailNext queues an error status for the next
// request to a route, which is how tests drive mutation rollback.
//
//	srv := apiserver.New()
//	ts := httptest.NewServer(srv.Handler())
//	defer ts.Close()
//	srv.FailNext(http.MethodDelete, "/v3/notifications/n1", http.StatusInternalServerError)
package apiserver
