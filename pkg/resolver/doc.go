// Package resolver implements the permission precedence engine.
//
// A resolution walks an explicit, ordered list of tiers and returns the
// first tier that yields a non-empty permission set. The order of the tier
// slice is the precedence order; there is no other ranking mechanism, no
// shared accumulator, and no "collect all then pick" step. A single-slot
// result guard turns any attempt to populate two tiers into an
// InconsistentState failure, which is surfaced rather than recovered: a
// merged tier would silently grant the wrong rights.
//
// Administrative resolution (four tiers) may legitimately end empty,
// meaning the user holds no elevated rights. Default object access
// resolution (ten tiers plus fallback) always ends populated: the fallback
// grants ChangeRights to the Creator pseudo-group so every newly created
// entity carries at least one access rule.
package resolver
