// Package credential persists the bearer token and display name across
// restarts. Access is synchronous and has no effects beyond its own storage.
package credential

import (
	"errors"
	"fmt"

	"github.com/joss/storefront/internal/domain"
)

// ErrClosed indicates the backing store has been closed.
var ErrClosed = errors.New("credential store is closed")

// KV is the persisted key/value surface.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Delete removes keys. Missing keys are not an error.
	Delete(keys ...string) error
}

// Vault reads and writes the credential pair through a KV.
type Vault struct {
	kv KV
}

// NewVault wraps kv.
func NewVault(kv KV) *Vault {
	return &Vault{kv: kv}
}

// Load returns the persisted credential. A missing token yields a zero
// Credential and no error.
func (v *Vault) Load() (domain.Credential, error) {
	token, ok, err := v.kv.Get(domain.KeyToken)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("read %s: %w", domain.KeyToken, err)
	}
	if !ok || token == "" {
		return domain.Credential{}, nil
	}
	name, _, err := v.kv.Get(domain.KeyFullName)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("read %s: %w", domain.KeyFullName, err)
	}
	return domain.Credential{Token: token, FullName: name}, nil
}

// Save persists c. An empty token is rejected: it would read back as absent.
func (v *Vault) Save(c domain.Credential) error {
	if c.Token == "" {
		return errors.New("refusing to persist empty token")
	}
	if err := v.kv.Set(domain.KeyToken, c.Token); err != nil {
		return fmt.Errorf("write %s: %w", domain.KeyToken, err)
	}
	if err := v.kv.Set(domain.KeyFullName, c.FullName); err != nil {
		return fmt.Errorf("write %s: %w", domain.KeyFullName, err)
	}
	return nil
}

// Purge deletes both keys. Purging an empty store is a no-op.
func (v *Vault) Purge() error {
	return v.kv.Delete(domain.KeyToken, domain.KeyFullName)
}

// Token returns the persisted bearer token, or "" when absent or unreadable.
// Requests issued without a token fail server-side, which is where a
// missing or stale credential is meant to surface.
func (v *Vault) Token() string {
	token, ok, err := v.kv.Get(domain.KeyToken)
	if err != nil || !ok {
		return ""
	}
	return token
}
