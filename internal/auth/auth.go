// Package auth provides the credential source the channel binds to.
//
// The token is owned here; the channel holds a read-only reference for the
// duration of a dial and never persists it.
package auth

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Change is published on every sign-in or sign-out. Token is empty on
// sign-out. Consumers should still read Current when handling a change:
// intermediate states may be coalesced.
type Change struct {
	Token string
}

// TokenSource holds the current opaque credential and publishes sign-in /
// sign-out transitions. The change channel keeps only the newest state, so
// a slow consumer converges on the latest credential instead of replaying
// stale ones.
type TokenSource struct {
	mu      sync.RWMutex
	token   string
	changes chan Change
}

// NewTokenSource creates a signed-out source.
func NewTokenSource() *TokenSource {
	return &TokenSource{
		changes: make(chan Change, 1),
	}
}

// Current returns the token and whether a session is active.
func (s *TokenSource) Current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// SignIn installs a credential and publishes the change.
func (s *TokenSource) SignIn(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.publish(Change{Token: token})
}

// SignOut clears the credential and publishes the change.
func (s *TokenSource) SignOut() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	s.publish(Change{})
}

// Changes returns the change notification channel.
func (s *TokenSource) Changes() <-chan Change {
	return s.changes
}

// publish replaces any unconsumed change with the newest one.
func (s *TokenSource) publish(c Change) {
	for {
		select {
		case s.changes <- c:
			return
		default:
			select {
			case <-s.changes:
			default:
			}
		}
	}
}

// TokenFromEnv reads a credential from an environment variable.
func TokenFromEnv(key string) (string, error) {
	token := strings.TrimSpace(os.Getenv(key))
	if token == "" {
		return "", fmt.Errorf("environment variable %s is not set", key)
	}
	return token, nil
}
