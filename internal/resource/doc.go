// Package resource exposes the Ratel API resources (spaces, feeds and posts,
// notifications, teams, users and attribute codes) as cached reads and
// mutations.
//
// Every read goes through a query.Client under a key from package querykey,
// so repeated and concurrent reads of the same resource share one request
// and are served from cache while fresh. Every mutation declares its cache
// effect up front:
//
//   - Spaces.UpdateTitle and Feeds.LikePost patch the cached value before
//     the request is sent and restore it if the request fails.
//   - Every other mutation invalidates the families it affects once the
//     server confirms it. A failed mutation leaves the cache untouched.
//
// # Usage
//
//	reg := query.NewPolicyRegistry(query.DefaultPolicy)
//	if err := resource.RegisterPolicies(reg, nil); err != nil {
//	    return err
//	}
//	svc := resource.New(api.NewClient(baseURL), query.NewClient(query.WithPolicies(reg)))
//
//	space, err := svc.Spaces.Get(ctx, "sp_1")
//	err = svc.Spaces.UpdateTitle(ctx, "sp_1", "New Title")
//
// # Policies
//
// DefaultPolicies sets a stale time per kind. Notifications go stale after
// ten seconds; user info, teams and attribute codes after five minutes and
// are not refetched on window focus. Space prerequisites are never served
// from cache.
//
// # Validation
//
// Input is checked before anything is sent or patched. Failures are
// *api.ValidationError values naming the offending field.
package resource
