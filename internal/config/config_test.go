package config

import (
	"strings"
	"testing"
	"time"
)

// validSettings returns a Settings that passes validation.
func validSettings() *Settings {
	s := Default()
	s.Auth.JWTIssuer = "https://auth.example.com/v1"
	s.Agent.URL = "http://localhost:2024"
	return &s
}

func TestValidateDefaultsWithRequiredFields(t *testing.T) {
	s := validSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantMsg string
	}{
		{
			name:    "missing agent url",
			mutate:  func(s *Settings) { s.Agent.URL = "" },
			wantMsg: "Agent.URL is required",
		},
		{
			name:    "invalid agent url",
			mutate:  func(s *Settings) { s.Agent.URL = "not a url" },
			wantMsg: "must be a valid URL",
		},
		{
			name:    "missing issuer",
			mutate:  func(s *Settings) { s.Auth.JWTIssuer = "" },
			wantMsg: "Auth.JWTIssuer is required",
		},
		{
			name:    "bad environment",
			mutate:  func(s *Settings) { s.Environment = "prod" },
			wantMsg: "must be one of",
		},
		{
			name:    "bad trusted proxy",
			mutate:  func(s *Settings) { s.Security.TrustedProxies = []string{"10.0.0.1"} },
			wantMsg: "must be a valid CIDR",
		},
		{
			name:    "bad timeout",
			mutate:  func(s *Settings) { s.Security.RequestTimeout = "soon" },
			wantMsg: "must be a positive duration",
		},
		{
			name:    "zero max body",
			mutate:  func(s *Settings) { s.Security.MaxBodyBytes = 0 },
			wantMsg: "must be at least",
		},
		{
			name: "production requires secret",
			mutate: func(s *Settings) {
				s.Environment = "production"
				s.Auth.JWTSecret = ""
			},
			wantMsg: "auth.jwt_secret is required in production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := s.Validate()
			if err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidateAcceptsTrustedProxyCIDRs(t *testing.T) {
	s := validSettings()
	s.Security.TrustedProxies = []string{"10.0.0.0/8", "fd00::/8", "192.168.1.0/24"}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParsedDurations(t *testing.T) {
	s := validSettings()
	s.Agent.Timeout = "45s"
	s.Security.RequestTimeout = "2m"
	if got := s.AgentTimeout(); got != 45*time.Second {
		t.Errorf("AgentTimeout = %v", got)
	}
	if got := s.SecurityRequestTimeout(); got != 2*time.Minute {
		t.Errorf("SecurityRequestTimeout = %v", got)
	}

	// Hand-built settings without durations fall back sanely.
	var empty Settings
	if got := empty.AgentTimeout(); got != 30*time.Second {
		t.Errorf("fallback AgentTimeout = %v", got)
	}
}

func TestIsProduction(t *testing.T) {
	s := validSettings()
	if s.IsProduction() {
		t.Error("development reported as production")
	}
	s.Environment = "production"
	if !s.IsProduction() {
		t.Error("production not reported")
	}
}
