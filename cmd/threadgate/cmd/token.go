package cmd

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/threadgate/threadgate/internal/config"
	"github.com/threadgate/threadgate/internal/domain/auth"
)

var (
	tokenSubject string
	tokenEmail   string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token",
	Long: `Mint a bearer token signed with the configured secret.

Intended for local development and testing against a gateway that shares
the same signing secret. Refuses to run without a configured secret.

Examples:
  threadgate token --email dev@example.com
  threadgate token --email admin@example.com --role admin --ttl 2h`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "dev-user", "subject (user ID) claim")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "dev@example.com", "email claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "custom role claim (e.g. admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if settings.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured; set it before minting tokens")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   tokenSubject,
		"email": tokenEmail,
		"role":  "authenticated",
		"aud":   auth.ExpectedAudience,
		"iss":   settings.Auth.JWTIssuer,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
		"aal":   "aal1",
	}
	if tokenRole != "" {
		claims["user_role"] = tokenRole
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(settings.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Println(raw)
	return nil
}
