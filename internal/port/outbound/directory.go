package outbound

import (
	"context"
	"time"
)

// UserStatus describes what the user directory knows about an email.
type UserStatus struct {
	Exists   bool
	Verified bool
}

// Signup is one collected beta-access request.
type Signup struct {
	Email     string
	UserAgent string
	IPAddress string
	CreatedAt time.Time
}

// Directory is the boundary to the external user store backing the beta
// program: the allow-list lookup, account status, and signup collection.
type Directory interface {
	// IsBetaEmail reports whether the email is on the beta allow-list.
	IsBetaEmail(ctx context.Context, email string) (bool, error)

	// Status returns the account status for an email. Unknown emails
	// return the zero UserStatus, not an error.
	Status(ctx context.Context, email string) (UserStatus, error)

	// RecordSignup stores a beta-access request for a non-beta user.
	RecordSignup(ctx context.Context, s Signup) error
}
