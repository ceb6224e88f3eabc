package session

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store for tests and single-process setups. It
// round-trips the user through JSON so decode failures can be exercised the
// same way they occur with a persistent store.
type MemStore struct {
	mu              sync.Mutex
	token           string
	superadminToken string
	userJSON        string
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.superadminToken != "" {
		return s.superadminToken
	}
	return s.token
}

func (s *MemStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemStore) SetSuperadminToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.superadminToken = token
	return nil
}

func (s *MemStore) User() (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decodeUser()
}

func (s *MemStore) SetUser(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.userJSON = ""
		return nil
	}
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	s.userJSON = string(data)
	return nil
}

// SetRawUser stores an arbitrary user payload, valid or not.
func (s *MemStore) SetRawUser(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userJSON = raw
}

func (s *MemStore) TenantID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.decodeUser()
	if err != nil {
		return ""
	}
	return u.TenantID
}

func (s *MemStore) CurrentBranchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.decodeUser()
	if err != nil {
		return ""
	}
	return u.CurrentBranch
}

func (s *MemStore) SetCurrentBranchID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.decodeUser()
	if err != nil {
		return err
	}
	u.CurrentBranch = id
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	s.userJSON = string(data)
	return nil
}

func (s *MemStore) decodeUser() (*User, error) {
	if s.userJSON == "" {
		return nil, ErrNoUser
	}
	var u User
	if err := json.Unmarshal([]byte(s.userJSON), &u); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	return &u, nil
}
