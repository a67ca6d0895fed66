package auth

import (
	"errors"
	"time"
)

// ErrInvalidCredentials is returned for any authentication failure; the
// caller never learns whether the account exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User represents an authenticated account. Permissions hold the flattened
// permission codes granted through the user's roles.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	Superuser    bool
	Permissions  map[string]struct{}
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPermission reports whether the user carries the permission code.
func (u *User) HasPermission(code string) bool {
	if u == nil {
		return false
	}
	if u.Superuser {
		return true
	}
	_, ok := u.Permissions[code]
	return ok
}

// IsSuperuser reports whether the user bypasses permission checks.
func (u *User) IsSuperuser() bool {
	return u != nil && u.Superuser
}
