// Package permission defines the core permission value types for the Stelae
// authorization engine: object-access levels and their total order, the
// administrative operation kinds, the Permission value and its set semantics,
// and the canonical permission-string codec.
//
// # Levels
//
// Object-access levels form a strict total order:
//
//	RestrictedView < View < Modify < Delete < ChangeRights
//
// A Set never holds two grants for the same subject; merging keeps the
// higher level. This rule is implemented explicitly in Set.Add rather than
// relying on map or slice semantics, because silently keeping the lower
// level would weaken a user's rights.
//
// # Permission strings
//
// Newly created resources and values embed a serialized permission string of
// the form "CR groupA|M groupB,groupC|V groupD". Format produces the
// canonical ordering (descending level); Parse accepts any token order and
// round-trips losslessly for level and group IRI.
package permission
