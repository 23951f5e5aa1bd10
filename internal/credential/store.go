// Package credential holds the long-lived session credential harvested from
// an interactive login.
package credential

import (
	"sync"
	"time"
)

// Credential is the opaque session token (the value of the named session
// cookie) plus its acquisition time.
type Credential struct {
	Token      string
	AcquiredAt time.Time
}

// Masked returns a redacted form of the token safe for logs and diagnostics.
func (c Credential) Masked() string {
	if len(c.Token) <= 8 {
		return "********"
	}
	return c.Token[:8] + "..."
}

// Store holds zero or one credential for the lifetime of the process.
// Writes are atomic with respect to reads; there is no persistence.
type Store struct {
	mu   sync.RWMutex
	cred *Credential
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the stored credential, or nil if none is held.
func (s *Store) Get() *Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return nil
	}
	c := *s.cred
	return &c
}

// Put replaces the stored credential.
func (s *Store) Put(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &Credential{Token: token, AcquiredAt: time.Now()}
}

// Clear evicts the stored credential.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
}
