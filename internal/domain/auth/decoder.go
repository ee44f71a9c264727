package auth

import (
	"errors"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/threadgate/threadgate/internal/domain/fault"
)

// ExpectedAudience is the audience every token must carry. The external
// issuer stamps all end-user tokens with this value.
const ExpectedAudience = "authenticated"

// Decoder validates bearer tokens and extracts a typed Identity.
// Verification is local: signature check with a shared HMAC-SHA256 secret,
// plus audience and issuer matching. Token validity is a point-in-time
// fact, so the decoder never retries.
type Decoder struct {
	secret   []byte
	issuer   string
	audience string
	logger   *slog.Logger
}

// NewDecoder creates a Decoder for the given signing secret and expected
// issuer. An empty secret is allowed here; Decode reports it as a
// configuration failure so that misconfiguration is distinguishable from a
// bad token in logs.
func NewDecoder(secret, issuer string, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: ExpectedAudience,
		logger:   logger,
	}
}

// Decode verifies the raw token and returns the caller's Identity.
// It fails with an authentication Failure when the token is absent,
// malformed, signed with the wrong key, expired, or missing a required
// claim, and with a configuration Failure when no signing secret is
// configured.
func (d *Decoder) Decode(raw string) (*Identity, error) {
	if len(d.secret) == 0 {
		d.logger.Error("jwt secret not configured, rejecting token verification")
		return nil, fault.Configuration("JWT signing secret not configured").
			With("config_key", "auth.jwt_secret")
	}
	if raw == "" {
		return nil, fault.Authentication("Missing bearer token").
			With("reason", "token_absent")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return d.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(d.audience),
		jwt.WithIssuer(d.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			d.logger.Warn("rejected expired token")
			return nil, fault.Authentication("Token has expired").
				With("reason", "token_expired")
		}
		// WithExpirationRequired surfaces a missing exp here, before the
		// claim checks below ever run. Same failure mode, same log shape.
		if errors.Is(err, jwt.ErrTokenRequiredClaimMissing) {
			d.logger.Warn("rejected token with missing claim", "claim", "exp")
			return nil, fault.Authentication("Token validation failed: missing required claim").
				With("reason", "claim_missing").
				With("claim", "exp")
		}
		d.logger.Warn("rejected invalid token", "error", err)
		return nil, fault.Authentication("Invalid token").
			With("reason", "token_invalid")
	}

	// Signature, audience, issuer and expiry are good; now require the
	// claims the gateway depends on. Their absence is a distinct failure
	// mode from a bad signature and is logged as such, even though both
	// surface as 401.
	identity, missing := identityFromClaims(claims)
	if missing != "" {
		d.logger.Warn("rejected token with missing claim", "claim", missing)
		return nil, fault.Authentication("Token validation failed: missing required claim").
			With("reason", "claim_missing").
			With("claim", missing)
	}
	return identity, nil
}

// identityFromClaims builds an Identity from verified claims. Returns the
// name of the first missing required claim, or "" when all are present.
func identityFromClaims(claims jwt.MapClaims) (*Identity, string) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, "sub"
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return nil, "email"
	}
	exp := claimInt64(claims, "exp")
	if exp == 0 {
		return nil, "exp"
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = "authenticated"
	}
	customRole, _ := claims["user_role"].(string)
	aal, _ := claims["aal"].(string)

	return &Identity{
		Subject:        sub,
		Email:          email,
		Role:           role,
		CustomRole:     customRole,
		IssuedAt:       claimInt64(claims, "iat"),
		ExpiresAt:      exp,
		AssuranceLevel: aal,
		Claims:         claims,
	}, ""
}

// claimInt64 reads a numeric claim. JSON numbers decode as float64.
func claimInt64(claims jwt.MapClaims, name string) int64 {
	switch v := claims[name].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case jwt.NumericDate:
		return v.Unix()
	default:
		return 0
	}
}
