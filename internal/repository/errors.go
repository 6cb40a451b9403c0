// Package repository implements plain-SQL persistence for principals,
// sessions and the revoked-token ledger.  Sentinel errors defined here
// let the auth engine distinguish failure scenarios without depending
// on database/sql internals.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.  It replaces
// sql.ErrNoRows at the repository boundary so that in-memory fakes can
// produce the same signal.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates the unique email
// constraint.
var ErrEmailExists = errors.New("email already exists")
