package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/appetiteclub/apt"
)

const (
	tokenFile           = "token"
	superadminTokenFile = "superadmin_token"
	userFile            = "user"
)

// FileStore persists the session under a directory, one file per key. It is
// the console's stand-in for the browser-local storage the platform web
// client uses, so other processes (login CLI, tests) can share a session.
type FileStore struct {
	dir    string
	logger apt.Logger
	mu     sync.Mutex
}

func NewFileStore(dir string, logger apt.Logger) (*FileStore, error) {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token := s.read(superadminTokenFile); token != "" {
		return token
	}
	return s.read(tokenFile)
}

func (s *FileStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(tokenFile, []byte(token))
}

func (s *FileStore) SetSuperadminToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		return s.remove(superadminTokenFile)
	}
	return s.write(superadminTokenFile, []byte(token))
}

func (s *FileStore) User() (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readUser()
}

func (s *FileStore) SetUser(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		return s.remove(userFile)
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return s.write(userFile, data)
}

func (s *FileStore) TenantID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.readUser()
	if err != nil {
		if !errors.Is(err, ErrNoUser) {
			s.logger.Error("Could not read cached user for tenant id", "error", err)
		}
		return ""
	}
	return u.TenantID
}

func (s *FileStore) CurrentBranchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.readUser()
	if err != nil {
		return ""
	}
	return u.CurrentBranch
}

func (s *FileStore) SetCurrentBranchID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.readUser()
	if err != nil {
		return err
	}
	u.CurrentBranch = id
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return s.write(userFile, data)
}

func (s *FileStore) readUser() (*User, error) {
	raw := s.read(userFile)
	if raw == "" {
		return nil, ErrNoUser
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	return &u, nil
}

func (s *FileStore) read(name string) string {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *FileStore) write(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}
