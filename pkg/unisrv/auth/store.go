package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	KeyringService = "unisrv-cli"
	KeyringUser    = "auth_session"
)

// Session is the credential bundle returned by login and refresh.
type Session struct {
	UserID           string    `json:"user_id"`
	AccessToken      string    `json:"access_token"`
	ExpiresAt        time.Time `json:"access_token_expiry"`
	RefreshSessionID string    `json:"refresh_session_id"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_token_expiry"`
}

// Store persists at most one Session. Load returns nil and no error when
// nothing is stored.
type Store interface {
	Save(Session) error
	Load() (*Session, error)
	Clear() error
}

// KeyringStore keeps the Session as a JSON document in the OS secret store.
type KeyringStore struct {
	Service string
	User    string
}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{Service: KeyringService, User: KeyringUser}
}

func (k *KeyringStore) Save(s Session) error {
	content, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := keyring.Set(k.Service, k.User, string(content)); err != nil {
		return fmt.Errorf("failed to store session in keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Load() (*Session, error) {
	content, err := keyring.Get(k.Service, k.User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session from keyring: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		return nil, fmt.Errorf("failed to parse stored session: %w", err)
	}
	return &s, nil
}

func (k *KeyringStore) Clear() error {
	if err := keyring.Delete(k.Service, k.User); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete session from keyring: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
	Saves   int
}

func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	m.Saves++
	return nil
}

func (m *MemoryStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
