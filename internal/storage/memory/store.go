// Package memory provides an in-process implementation of the storage
// interfaces for the service, handler and server tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/pos-backend/internal/models"
	"github.com/hongminglow/pos-backend/internal/storage"
)

var (
	_ storage.UserStore  = (*Store)(nil)
	_ storage.AuditStore = (*Store)(nil)
	_ storage.Pinger     = (*Store)(nil)
)

// Store keeps users and audit events in memory.
type Store struct {
	mu     sync.RWMutex
	users  map[int64]models.User
	events []models.AuditEvent
	nextID int64

	// Fail* inject errors for the matching operation when set.
	FailLookup error
	FailTouch  error
	FailAppend error
	FailPing   error
}

// New returns an empty store.
func New() *Store {
	return &Store{users: make(map[int64]models.User)}
}

// Add inserts a user, assigning an id when zero. The email is lower-cased.
func (s *Store) Add(user models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		s.nextID++
		user.ID = s.nextID
	} else if user.ID > s.nextID {
		s.nextID = user.ID
	}
	user.Email = strings.ToLower(user.Email)
	s.users[user.ID] = user
	return user
}

// Update replaces a stored user.
func (s *Store) Update(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// Delete removes a user.
func (s *Store) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// FindByEmail matches the email exactly; callers normalise case.
func (s *Store) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailLookup != nil {
		return models.User{}, s.FailLookup
	}
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// FindByID fetches a user by id.
func (s *Store) FindByID(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailLookup != nil {
		return models.User{}, s.FailLookup
	}
	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

// TouchLastAccess stamps the user's last access time.
func (s *Store) TouchLastAccess(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTouch != nil {
		return s.FailTouch
	}
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	at = at.UTC()
	u.LastAccessAt = &at
	s.users[id] = u
	return nil
}

// Append records an audit event.
func (s *Store) Append(_ context.Context, event models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppend != nil {
		return s.FailAppend
	}
	if event.UserID == 0 || event.Action == "" {
		return errors.New("audit event requires user id and action")
	}
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded audit events.
func (s *Store) Events() []models.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Ping reports FailPing, if set.
func (s *Store) Ping(context.Context) error {
	return s.FailPing
}
