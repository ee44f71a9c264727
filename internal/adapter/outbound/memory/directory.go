// Package memory provides in-memory outbound adapters used in development
// and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/threadgate/threadgate/internal/port/outbound"
)

// Directory is an in-memory user directory. It implements
// outbound.Directory and is safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	beta    map[string]struct{}
	users   map[string]outbound.UserStatus
	signups []outbound.Signup
}

// NewDirectory creates an empty in-memory directory.
func NewDirectory() *Directory {
	return &Directory{
		beta:  make(map[string]struct{}),
		users: make(map[string]outbound.UserStatus),
	}
}

// AddBetaEmail puts an email on the beta allow-list.
func (d *Directory) AddBetaEmail(email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.beta[normalize(email)] = struct{}{}
}

// SetUserStatus records the account status for an email.
func (d *Directory) SetUserStatus(email string, status outbound.UserStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[normalize(email)] = status
}

// IsBetaEmail reports whether the email is on the beta allow-list.
func (d *Directory) IsBetaEmail(_ context.Context, email string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.beta[normalize(email)]
	return ok, nil
}

// Status returns the account status for an email.
func (d *Directory) Status(_ context.Context, email string) (outbound.UserStatus, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.users[normalize(email)], nil
}

// RecordSignup stores a beta-access request.
func (d *Directory) RecordSignup(_ context.Context, s outbound.Signup) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signups = append(d.signups, s)
	return nil
}

// Signups returns a copy of the collected signups.
func (d *Directory) Signups() []outbound.Signup {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]outbound.Signup, len(d.signups))
	copy(out, d.signups)
	return out
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
