// Package repository holds the storage backends of the booking engine:
// in-memory stores for single-process deployments and MySQL stores for
// shared ones.  Both satisfy the same store interfaces and report
// failures with the sentinels from the model package, so callers never
// need to know which backend they talk to.
package repository

import "errors"

// ErrConflict is returned when a write collides with an existing
// record that is not a seat, such as a duplicate booking or receipt
// id.  Seat collisions are reported as *model.SeatConflictError.
var ErrConflict = errors.New("conflict")

// ErrInvalidCredentials is returned by the user directory when the
// email is unknown or the password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")
