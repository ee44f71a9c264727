package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/threadgate/threadgate/internal/port/outbound"
)

// Beta access statuses reported by CheckUser.
const (
	StatusNotBeta             = "not_beta"
	StatusNewUser             = "new_user"
	StatusPendingVerification = "pending_verification"
	StatusVerifiedUser        = "verified_user"
)

// signupAck is the canned acknowledgement for collected beta interest.
const signupAck = "Thanks for your interest! We'll notify you when access opens up."

// UserCheck is the beta-access picture for one email.
type UserCheck struct {
	Email      string `json:"email"`
	IsBetaUser bool   `json:"is_beta_user"`
	Exists     bool   `json:"exists"`
	Verified   bool   `json:"verified"`
	Status     string `json:"status"`
}

// BetaService answers beta-access questions against the user directory
// and collects signups from callers outside the allow-list.
type BetaService struct {
	directory outbound.Directory
	logger    *slog.Logger
	now       func() time.Time
}

// NewBetaService creates a BetaService.
func NewBetaService(directory outbound.Directory, logger *slog.Logger) *BetaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BetaService{directory: directory, logger: logger, now: time.Now}
}

// CheckUser classifies an email against the allow-list and known accounts.
func (s *BetaService) CheckUser(ctx context.Context, email string) (UserCheck, error) {
	isBeta, err := s.directory.IsBetaEmail(ctx, email)
	if err != nil {
		return UserCheck{}, err
	}

	check := UserCheck{Email: email, IsBetaUser: isBeta, Status: StatusNotBeta}
	if !isBeta {
		return check, nil
	}

	status, err := s.directory.Status(ctx, email)
	if err != nil {
		return UserCheck{}, err
	}
	check.Exists = status.Exists
	check.Verified = status.Verified
	switch {
	case !status.Exists:
		check.Status = StatusNewUser
	case !status.Verified:
		check.Status = StatusPendingVerification
	default:
		check.Status = StatusVerifiedUser
	}
	return check, nil
}

// RecordInterest stores a signup from a caller outside the allow-list and
// returns the acknowledgement message.
func (s *BetaService) RecordInterest(ctx context.Context, signup outbound.Signup) (string, error) {
	if signup.CreatedAt.IsZero() {
		signup.CreatedAt = s.now().UTC()
	}
	if err := s.directory.RecordSignup(ctx, signup); err != nil {
		return "", err
	}
	s.logger.Info("beta interest recorded", "email", signup.Email)
	return signupAck, nil
}
