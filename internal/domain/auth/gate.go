package auth

import (
	"github.com/threadgate/threadgate/internal/domain/fault"
)

// RoleAdmin is the single privileged role the gateway recognizes.
// There is no role hierarchy: authorization is a string-equality check.
const RoleAdmin = "admin"

// RequireRole gates a privileged operation on the identity's custom role.
// It returns the identity unchanged when the role matches and an
// authorization Failure (403) otherwise. The check is pure and idempotent.
// Composition is always "resolve identity, then gate" — never reordered.
func RequireRole(identity *Identity, role string) (*Identity, error) {
	if identity == nil {
		return nil, fault.Authentication("Authentication required")
	}
	if identity.CustomRole != role {
		return nil, fault.Authorization("Admin access required").
			With("required_role", role)
	}
	return identity, nil
}
