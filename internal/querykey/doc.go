// Package querykey is the single source of truth for cache keys.
//
// # Overview
//
// Every cached value is addressed by a Key, an ordered list of segments that
// starts with the resource kind and narrows down to one resource:
//
//	["spaces"]                         all space data
//	["spaces","detail"]                every single-space query
//	["spaces","detail","sp_1"]         space sp_1
//	["spaces","detail","sp_1","prerequisite"]
//
// Because a narrower key always extends the key of its containing
// collection, invalidating a prefix reaches every dependent read:
//
//	client.Invalidate(querykey.Spaces.All())
//
// # Factories
//
// Keys are never written as literals at call sites. Each resource kind has a
// factory (Spaces, Feeds, Posts, Notifications, Teams, Users, AttributeCodes)
// and both the read that subscribes to a key and the mutation that
// invalidates it ask the same factory, so they cannot drift apart.
//
// # Determinism
//
// Identity parts are rendered by Segment. Filters given as structs or maps are
// encoded as JSON, whose map keys are sorted, so two equal filters built in
// different places produce equal keys.
package querykey
