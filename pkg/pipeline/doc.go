// Package pipeline implements onion-style middleware composition.
//
// A Pipeline wraps a destination handler in stages; the first stage is the
// outermost layer and sees the passable value first:
//
//	h := pipeline.New(logging, auth).Then(handle)
//	err := h(req)
//
// The Resolver turns string references such as "auth", "throttle:60,1" or a
// group name like "web" into middleware values. Groups expand recursively,
// duplicates are dropped (first occurrence wins), excluded references are
// removed and the result is sorted with SortByPriority.
package pipeline
