package auth

import "sync"

// Store holds the credentials of one session.
// It is either empty (never logged in) or holds a complete Credentials value.
type Store struct {
	mu    sync.RWMutex
	creds *Credentials
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Get returns the current credentials and whether any are set
func (s *Store) Get() (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds == nil {
		return Credentials{}, false
	}
	return *s.creds, true
}

// Set replaces the credentials
func (s *Store) Set(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = &creds
}

// Update applies fn to the current credentials under the write lock.
// It returns false, without calling fn, when the store is empty.
func (s *Store) Update(fn func(Credentials) Credentials) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds == nil {
		return false
	}
	next := fn(*s.creds)
	s.creds = &next
	return true
}

// Clear discards the credentials
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
}
