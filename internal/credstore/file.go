package credstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Atrox/homedir"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const fileFormatVersion = 1

// argon2id parameters for sealing keys.
const (
	kdfTime    = 2
	kdfMemory  = 19 * 1024
	kdfThreads = 1
	saltSize   = 16
)

// fileRecord is the on-disk document. Either Token/User or Salt/Sealed are set.
type fileRecord struct {
	Version int             `json:"version"`
	Token   string          `json:"token,omitempty"`
	User    json.RawMessage `json:"user,omitempty"`
	Salt    []byte          `json:"salt,omitempty"`
	Sealed  []byte          `json:"sealed,omitempty"`
}

type sealedPayload struct {
	Token string          `json:"token,omitempty"`
	User  json.RawMessage `json:"user,omitempty"`
}

// FileStore persists credentials in a single JSON file, optionally sealed with a passphrase.
type FileStore struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

// NewFileStore constructs a FileStore at path. A leading ~ is expanded to the home directory.
// When passphrase is non-empty the record is sealed with XChaCha20-Poly1305.
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("credstore: file path required")
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("credstore: expand path: %w", err)
	}
	fs := &FileStore{path: expanded}
	if passphrase != "" {
		fs.passphrase = []byte(passphrase)
	}
	return fs, nil
}

// Path returns the resolved file location.
func (f *FileStore) Path() string {
	return f.path
}

// Save writes the record to a temporary file and renames it into place.
func (f *FileStore) Save(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record, err := f.encode(creds)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("credstore: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("credstore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("credstore: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("credstore: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("credstore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credstore: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("credstore: rename: %w", err)
	}
	return nil
}

// Load reads the record. A missing file yields empty credentials.
func (f *FileStore) Load(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("credstore: read: %w", err)
	}
	var record fileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return f.decode(record)
}

// Clear removes the file.
func (f *FileStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credstore: remove: %w", err)
	}
	return nil
}

func (f *FileStore) encode(creds Credentials) (fileRecord, error) {
	record := fileRecord{Version: fileFormatVersion}
	if f.passphrase == nil {
		record.Token = creds.Token
		record.User = rawOrNil(creds.Profile)
		return record, nil
	}
	plain, err := json.Marshal(sealedPayload{Token: creds.Token, User: rawOrNil(creds.Profile)})
	if err != nil {
		return fileRecord{}, err
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fileRecord{}, err
	}
	aead, err := chacha20poly1305.NewX(f.deriveKey(salt))
	if err != nil {
		return fileRecord{}, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fileRecord{}, err
	}
	record.Salt = salt
	record.Sealed = aead.Seal(nonce, nonce, plain, nil)
	return record, nil
}

func (f *FileStore) decode(record fileRecord) (Credentials, error) {
	if record.Sealed == nil {
		return Credentials{Token: record.Token, Profile: []byte(record.User)}, nil
	}
	if f.passphrase == nil {
		return Credentials{}, fmt.Errorf("%w: sealed record but no passphrase configured", ErrCorrupt)
	}
	aead, err := chacha20poly1305.NewX(f.deriveKey(record.Salt))
	if err != nil {
		return Credentials{}, err
	}
	if len(record.Sealed) < aead.NonceSize() {
		return Credentials{}, fmt.Errorf("%w: sealed payload too short", ErrCorrupt)
	}
	nonce, ciphertext := record.Sealed[:aead.NonceSize()], record.Sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var payload sealedPayload
	if err := json.Unmarshal(plain, &payload); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return Credentials{Token: payload.Token, Profile: []byte(payload.User)}, nil
}

func (f *FileStore) deriveKey(salt []byte) []byte {
	return argon2.IDKey(f.passphrase, salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
