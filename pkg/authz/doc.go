// Package authz is the service facade over the permission engine. It
// combines membership resolution, precedence-based permission resolution,
// and mutation coordination behind a small set of operations consumed by
// the HTTP API and by embedding services.
package authz
