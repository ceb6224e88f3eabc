package session

import "errors"

// ErrNoUser is returned when an operation needs a cached user and none is
// stored.
var ErrNoUser = errors.New("no authenticated user in session")

// Store holds the console's auth session: tokens and the cached user record.
// Implementations must be safe for concurrent use.
type Store interface {
	// Token returns the bearer token to use on API calls. When a superadmin
	// token is stored it takes precedence over the regular one. Empty when
	// unauthenticated.
	Token() string
	SetToken(token string) error
	SetSuperadminToken(token string) error

	// User returns the cached user record, or an error when it is missing or
	// cannot be decoded.
	User() (*User, error)
	SetUser(u *User) error

	// TenantID is best-effort: it returns the cached user's tenant id, or
	// empty when the user is missing or unreadable. It never fails.
	TenantID() string

	// CurrentBranchID returns the cached user's active branch id, or empty.
	CurrentBranchID() string

	// SetCurrentBranchID rewrites the cached user with a new active branch.
	SetCurrentBranchID(id string) error
}
