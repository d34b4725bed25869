// Package memory provides in-memory implementations of the licensing stores.
// It backs tests and local development; production uses storage/postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/erbtraffic/licensebot/licensing"
)

// Store holds users and licenses in process memory. The zero value is not
// usable; construct it with New.
type Store struct {
	mu       sync.RWMutex
	users    map[string]licensing.User
	licenses map[string]licensing.License
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]licensing.User),
		licenses: make(map[string]licensing.License),
	}
}

// EnsureUser creates the user record unless it already exists.
func (s *Store) EnsureUser(_ context.Context, u licensing.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return false, nil
	}
	s.users[u.ID] = u
	return true, nil
}

// GetUser returns the user record or licensing.ErrUserNotFound.
func (s *Store) GetUser(_ context.Context, id string) (licensing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return licensing.User{}, fmt.Errorf("%w: %s", licensing.ErrUserNotFound, id)
	}
	return u, nil
}

// SetPendingPlan records the selected plan code on the user.
func (s *Store) SetPendingPlan(_ context.Context, id, plan string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: %s", licensing.ErrUserNotFound, id)
	}
	u.PendingPlan = &plan
	s.users[id] = u
	return nil
}

// CreateIfNoneForUser inserts the license unless the user owns any license
// record already. The lock is held across check and insert, so concurrent
// trial requests cannot both succeed.
func (s *Store) CreateIfNoneForUser(_ context.Context, l licensing.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.licenses {
		if existing.UserID == l.UserID {
			return licensing.ErrAlreadyLicensed
		}
	}
	if _, ok := s.licenses[l.Key]; ok {
		return fmt.Errorf("memory: duplicate key %s", l.Key)
	}
	s.licenses[l.Key] = l
	return nil
}

// Create inserts the license unconditionally.
func (s *Store) Create(_ context.Context, l licensing.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.licenses[l.Key]; ok {
		return fmt.Errorf("memory: duplicate key %s", l.Key)
	}
	s.licenses[l.Key] = l
	return nil
}

// FirstActive returns the user's active license, oldest first with the key
// as tie-break, matching the Postgres store's ordering.
func (s *Store) FirstActive(_ context.Context, userID string) (*licensing.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []licensing.License
	for _, l := range s.licenses {
		if l.UserID == userID && l.Status == licensing.StatusActive {
			matches = append(matches, l)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].Key < matches[j].Key
	})
	first := matches[0]
	return &first, nil
}

// LicenseCount reports the number of stored license records for a user.
// Test helper.
func (s *Store) LicenseCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.licenses {
		if l.UserID == userID {
			n++
		}
	}
	return n
}
