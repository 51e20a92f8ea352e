package crmclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/white/crm-backend/internal/models"
)

const keyringService = "crmctl"

// ErrSessionNotFound is returned by a store holding no session for a server.
var ErrSessionNotFound = errors.New("session not found")

// Session is what a successful login leaves behind.
type Session struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	User         models.UserProfile `json:"user"`
}

// SessionStore persists one session per server URL.
type SessionStore interface {
	Load(server string) (*Session, error)
	Save(server string, s *Session) error
	Clear(server string) error
}

// KeyringStore keeps sessions in the system keyring, falling back to a
// 0600 file when no keyring is available.
type KeyringStore struct {
	useKeyring  bool
	fallbackDir string
}

// NewKeyringStore probes the keyring once. CRMCTL_NO_KEYRING forces the file.
func NewKeyringStore(fallbackDir string) *KeyringStore {
	if os.Getenv("CRMCTL_NO_KEYRING") != "" {
		return &KeyringStore{fallbackDir: fallbackDir}
	}

	probe := keyringService + "::probe"
	if err := keyring.Set(keyringService, probe, "ok"); err == nil {
		_ = keyring.Delete(keyringService, probe)
		return &KeyringStore{useKeyring: true, fallbackDir: fallbackDir}
	}
	fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, session stored at %s\n",
		filepath.Join(fallbackDir, "sessions.json"))
	return &KeyringStore{fallbackDir: fallbackDir}
}

// UsingKeyring reports whether sessions go to the system keyring.
func (s *KeyringStore) UsingKeyring() bool { return s.useKeyring }

func keyringKey(server string) string {
	return keyringService + "::" + server
}

func (s *KeyringStore) Load(server string) (*Session, error) {
	if s.useKeyring {
		data, err := keyring.Get(keyringService, keyringKey(server))
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, fmt.Errorf("failed to read keyring: %w", err)
		}
		var sess Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("invalid stored session: %w", err)
		}
		return &sess, nil
	}

	all, err := s.loadFile()
	if err != nil {
		return nil, err
	}
	sess, ok := all[server]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *KeyringStore) Save(server string, sess *Session) error {
	if s.useKeyring {
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		return keyring.Set(keyringService, keyringKey(server), string(data))
	}

	all, err := s.loadFile()
	if err != nil {
		return err
	}
	all[server] = sess
	return s.saveFile(all)
}

func (s *KeyringStore) Clear(server string) error {
	if s.useKeyring {
		err := keyring.Delete(keyringService, keyringKey(server))
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		return nil
	}

	all, err := s.loadFile()
	if err != nil {
		return err
	}
	if _, ok := all[server]; !ok {
		return nil
	}
	delete(all, server)
	return s.saveFile(all)
}

func (s *KeyringStore) path() string {
	return filepath.Join(s.fallbackDir, "sessions.json")
}

func (s *KeyringStore) loadFile() (map[string]*Session, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Session{}, nil
		}
		return nil, err
	}
	all := map[string]*Session{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("invalid session file: %w", err)
	}
	return all, nil
}

func (s *KeyringStore) saveFile(all map[string]*Session) error {
	if err := os.MkdirAll(s.fallbackDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.fallbackDir, "sessions-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	dest := s.path()
	if err := os.Rename(tmpPath, dest); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(dest)
			return os.Rename(tmpPath, dest)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*Session{}}
}

func (m *MemoryStore) Load(server string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[server]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (m *MemoryStore) Save(server string, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	m.sessions[server] = &cp
	return nil
}

func (m *MemoryStore) Clear(server string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, server)
	return nil
}
