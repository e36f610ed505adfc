// Package api exposes the permission engine over HTTP: CRUD on
// administrative and default object access permission records, resolution
// endpoints, and the per-user permissions-data aggregate. Authentication
// happens upstream; the authenticated user IRI arrives in the
// X-Stelae-User header.
package api
