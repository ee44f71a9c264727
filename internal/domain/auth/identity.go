// Package auth contains the domain types and logic for token verification
// and role-based authorization.
package auth

// Identity represents a verified caller, derived once per request from a
// decoded bearer token. It is never persisted and is discarded when the
// request ends.
type Identity struct {
	// Subject is the unique user ID from the token's "sub" claim.
	Subject string
	// Email is the user's email address.
	Email string
	// Role is the base role from the token ("authenticated" by default).
	Role string
	// CustomRole is the optional custom role claim ("user_role").
	// Empty for regular users; "admin" marks privileged identities.
	CustomRole string
	// IssuedAt is the "iat" claim, seconds since epoch (0 if absent).
	IssuedAt int64
	// ExpiresAt is the "exp" claim, seconds since epoch.
	ExpiresAt int64
	// AssuranceLevel is the "aal" claim (e.g. "aal1", "aal2"), if present.
	AssuranceLevel string
	// Claims holds every claim of the decoded token, including the ones
	// extracted above. Callers must treat it as read-only.
	Claims map[string]any
}

// IsAdmin reports whether the identity carries the admin custom role.
func (i *Identity) IsAdmin() bool {
	return i.CustomRole == RoleAdmin
}
