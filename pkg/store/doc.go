// Package store defines the permission record types and persistence
// interfaces: administrative permissions keyed by (project, group) and
// default object access permissions keyed by (project, selector), with an
// in-memory implementation, a read-through cached wrapper for the default
// object access hot path, and a PostgreSQL implementation in the postgres
// subpackage.
package store
