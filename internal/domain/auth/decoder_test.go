package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/threadgate/threadgate/internal/domain/fault"
)

const (
	testSecret = "test-signing-secret"
	testIssuer = "https://auth.example.com/v1"
)

// signToken mints an HS256 token with the given claims, merged over a
// valid baseline.
func signToken(t *testing.T, secret string, overrides map[string]any) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":       "user-123",
		"email":     "user@example.com",
		"role":      "authenticated",
		"aud":       "authenticated",
		"iss":       testIssuer,
		"iat":       time.Now().Add(-time.Minute).Unix(),
		"exp":       time.Now().Add(time.Hour).Unix(),
		"aal":       "aal1",
		"user_role": "",
	}
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func assertKind(t *testing.T, err error, kind fault.Kind) *fault.Failure {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s failure, got nil", kind)
	}
	var f *fault.Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *fault.Failure, got %T: %v", err, err)
	}
	if f.Kind != kind {
		t.Fatalf("Kind = %q, want %q (message: %s)", f.Kind, kind, f.Message)
	}
	return f
}

func TestDecodeValidToken(t *testing.T) {
	d := NewDecoder(testSecret, testIssuer, nil)
	raw := signToken(t, testSecret, map[string]any{"user_role": "admin"})

	id, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if id.Subject != "user-123" {
		t.Errorf("Subject = %q", id.Subject)
	}
	if id.Email != "user@example.com" {
		t.Errorf("Email = %q", id.Email)
	}
	if id.Role != "authenticated" {
		t.Errorf("Role = %q", id.Role)
	}
	if id.CustomRole != "admin" || !id.IsAdmin() {
		t.Errorf("CustomRole = %q, IsAdmin = %v", id.CustomRole, id.IsAdmin())
	}
	if id.ExpiresAt <= time.Now().Unix() {
		t.Errorf("ExpiresAt = %d not in the future", id.ExpiresAt)
	}
	if id.AssuranceLevel != "aal1" {
		t.Errorf("AssuranceLevel = %q", id.AssuranceLevel)
	}
}

func TestDecodeDefaultsBaseRole(t *testing.T) {
	d := NewDecoder(testSecret, testIssuer, nil)
	raw := signToken(t, testSecret, map[string]any{"role": nil})

	id, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if id.Role != "authenticated" {
		t.Errorf("Role = %q, want authenticated default", id.Role)
	}
}

func TestDecodeExpiredToken(t *testing.T) {
	d := NewDecoder(testSecret, testIssuer, nil)
	raw := signToken(t, testSecret, map[string]any{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	f := assertKind(t, mustFail(t, d, raw), fault.KindAuthentication)
	if f.Status != 401 {
		t.Errorf("Status = %d, want 401", f.Status)
	}
	if f.Context["reason"] != "token_expired" {
		t.Errorf("reason = %v, want token_expired", f.Context["reason"])
	}
}

func TestDecodeWrongKey(t *testing.T) {
	d := NewDecoder(testSecret, testIssuer, nil)
	raw := signToken(t, "some-other-secret", nil)

	f := assertKind(t, mustFail(t, d, raw), fault.KindAuthentication)
	if f.Context["reason"] != "token_invalid" {
		t.Errorf("reason = %v, want token_invalid", f.Context["reason"])
	}
}

func TestDecodeWrongAudience(t *testing.T) {
	d := NewDecoder(testSecret, testIssuer, nil)
	raw := signToken(t, testSecret, map[string]any{"aud": "service_role"})
	assertKind(t, mustFail(t, d, raw), fault.KindAuthentication)
}

func TestDecodeWrongIssuer(t *testing.T) {
	d := NewDecoder(testSecret, testIssuer, nil)
	raw := signToken(t, testSecret, map[string]any{"iss": "https://evil.example.com"})
	assertKind(t, mustFail(t, d, raw), fault.KindAuthentication)
}

func TestDecodeMalformedToken(t *testing.T) {
	d := NewDecoder(testSecret, testIssuer, nil)
	assertKind(t, mustFail(t, d, "not-a-jwt"), fault.KindAuthentication)
}

func TestDecodeMissingToken(t *testing.T) {
	d := NewDecoder(testSecret, testIssuer, nil)
	f := assertKind(t, mustFail(t, d, ""), fault.KindAuthentication)
	if f.Context["reason"] != "token_absent" {
		t.Errorf("reason = %v, want token_absent", f.Context["reason"])
	}
}

func TestDecodeMissingRequiredClaims(t *testing.T) {
	tests := []struct {
		name  string
		claim string
	}{
		{name: "missing sub", claim: "sub"},
		{name: "missing email", claim: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(testSecret, testIssuer, nil)
			raw := signToken(t, testSecret, map[string]any{tt.claim: nil})
			f := assertKind(t, mustFail(t, d, raw), fault.KindAuthentication)
			if f.Context["claim"] != tt.claim {
				t.Errorf("claim = %v, want %q", f.Context["claim"], tt.claim)
			}
		})
	}
}

func TestDecodeMissingExpiry(t *testing.T) {
	// exp is enforced by the parser itself (WithExpirationRequired), so a
	// token without it fails verification outright. It still reports the
	// missing-claim failure mode, not a generic invalid token, so the logs
	// separate it from a bad signature.
	d := NewDecoder(testSecret, testIssuer, nil)
	raw := signToken(t, testSecret, map[string]any{"exp": nil})

	f := assertKind(t, mustFail(t, d, raw), fault.KindAuthentication)
	if f.Context["reason"] != "claim_missing" {
		t.Errorf("reason = %v, want claim_missing", f.Context["reason"])
	}
	if f.Context["claim"] != "exp" {
		t.Errorf("claim = %v, want exp", f.Context["claim"])
	}
}

func TestDecodeUnconfiguredSecret(t *testing.T) {
	// Misconfiguration is a 500 configuration failure, never a 401.
	// The two must stay distinguishable in logs and correlation context.
	d := NewDecoder("", testIssuer, nil)
	raw := signToken(t, testSecret, nil)

	f := assertKind(t, mustFail(t, d, raw), fault.KindConfiguration)
	if f.Status != 500 {
		t.Errorf("Status = %d, want 500", f.Status)
	}
	if f.Context["config_key"] != "auth.jwt_secret" {
		t.Errorf("config_key = %v", f.Context["config_key"])
	}
}

func TestDecodeRejectsUnsignedAlg(t *testing.T) {
	d := NewDecoder(testSecret, testIssuer, nil)
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":   "user-123",
		"email": "user@example.com",
		"aud":   "authenticated",
		"iss":   testIssuer,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	assertKind(t, mustFail(t, d, raw), fault.KindAuthentication)
}

func mustFail(t *testing.T, d *Decoder, raw string) error {
	t.Helper()
	id, err := d.Decode(raw)
	if err == nil {
		t.Fatalf("Decode succeeded with identity %+v, want failure", id)
	}
	return err
}
