// Package session tracks whether the user is authenticated and under what
// display name. State changes are synchronous and never touch the network.
package session

import (
	"sync"

	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/logging"
)

// DefaultName is shown when an authenticated user has no stored name.
const DefaultName = "User"

// Vault is the persisted credential surface the store reads at boot and
// purges on logout.
type Vault interface {
	Load() (domain.Credential, error)
	Purge() error
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Authenticated bool   `json:"authenticated"`
	DisplayName   string `json:"displayName,omitempty"`
}

// Store holds the session state. When Authenticated is false DisplayName is
// empty; when true it is non-empty.
type Store struct {
	mu    sync.RWMutex
	state Snapshot
	vault Vault
	log   *logging.Logger
}

// New creates an unauthenticated store backed by vault.
func New(vault Vault) *Store {
	return &Store{vault: vault, log: logging.New("session")}
}

// Restore rebuilds the session from the persisted credential. A present
// token is trusted as-is; a stale one surfaces on the first authenticated
// request. A read error leaves the session unauthenticated.
func (s *Store) Restore() {
	cred, err := s.vault.Load()
	if err != nil {
		s.log.Warn("restore_failed", nil, err)
		cred = domain.Credential{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !cred.Present() {
		s.state = Snapshot{}
		return
	}
	s.state = Snapshot{Authenticated: true, DisplayName: normalize(cred.FullName)}
	s.log.Debug("restored", map[string]interface{}{"name": s.state.DisplayName})
}

// Login marks the session authenticated as name, overwriting any previous
// session. Persisting the credential is the caller's job.
func (s *Store) Login(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Snapshot{Authenticated: true, DisplayName: normalize(name)}
}

// Logout clears the session and purges the persisted credential. Calling it
// when already logged out is a no-op apart from the purge.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.state = Snapshot{}
	s.mu.Unlock()

	if err := s.vault.Purge(); err != nil {
		s.log.Warn("purge_failed", nil, err)
		return err
	}
	return nil
}

// IsAuthenticated reports whether a user is signed in.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Authenticated
}

// DisplayName returns the signed-in user's name, or "" when signed out.
func (s *Store) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.DisplayName
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func normalize(name string) string {
	if name == "" {
		return DefaultName
	}
	return name
}
