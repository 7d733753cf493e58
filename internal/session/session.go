// Package session generates the process-wide identifiers spec §9 calls
// "global state": a session id, fixed for the life of one run and immutable
// after startup.
package session

import "github.com/google/uuid"

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}
