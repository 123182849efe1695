// Package credstore holds the bearer token and the cached user profile between runs.
//
// A store is the durable backing copy of a session. It never inspects the token and
// never validates the profile; both are opaque to it.
package credstore

import (
	"context"
	"errors"
	"sync"
)

// ErrCorrupt is returned when persisted credentials cannot be decoded.
var ErrCorrupt = errors.New("credstore: corrupt credentials")

// Credentials is the record persisted by a Store: the opaque bearer token and the
// JSON-serialized user profile blob.
type Credentials struct {
	Token   string
	Profile []byte
}

// Empty reports whether neither field is set.
func (c Credentials) Empty() bool {
	return c.Token == "" && len(c.Profile) == 0
}

func (c Credentials) clone() Credentials {
	out := Credentials{Token: c.Token}
	if c.Profile != nil {
		out.Profile = append([]byte(nil), c.Profile...)
	}
	return out
}

// Store persists credentials. Save writes both fields as one unit; a concurrent Load
// observes either the previous record or the new one.
type Store interface {
	Save(ctx context.Context, creds Credentials) error
	Load(ctx context.Context) (Credentials, error)
	Clear(ctx context.Context) error
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save replaces the stored record.
func (m *MemoryStore) Save(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds.clone()
	return nil
}

// Load returns a copy of the stored record.
func (m *MemoryStore) Load(ctx context.Context) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.clone(), nil
}

// Clear removes both fields.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)
