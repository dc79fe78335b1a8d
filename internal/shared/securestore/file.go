package securestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const saltSize = 16

// ErrDecrypt means the passphrase is wrong or the file was tampered with.
var ErrDecrypt = errors.New("securestore: unable to decrypt credentials")

type envelope struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// File keeps all items in one file sealed with XChaCha20-Poly1305 under a key
// derived by argon2id from the passphrase and a per-file salt. Every write
// re-seals the whole map with a fresh nonce and replaces the file atomically.
type File struct {
	path       string
	passphrase []byte

	mu      sync.Mutex
	salt    []byte
	key     []byte
	keySalt []byte
	items   map[string]string
}

var _ Store = (*File)(nil)

func NewFile(path, passphrase string) (*File, error) {
	if path == "" {
		return nil, errors.New("securestore: path is required")
	}
	if passphrase == "" {
		return nil, errors.New("securestore: passphrase is required")
	}
	return &File{path: path, passphrase: []byte(passphrase)}, nil
}

func (f *File) GetSecureData(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return "", false, err
	}
	value, ok := f.items[key]
	return value, ok, nil
}

func (f *File) SetSecureData(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}
	next := f.cloneItems()
	next[key] = value
	return f.commit(next)
}

func (f *File) DeleteItem(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}
	if _, ok := f.items[key]; !ok {
		return nil
	}
	next := f.cloneItems()
	delete(next, key)
	return f.commit(next)
}

func (f *File) cloneItems() map[string]string {
	next := make(map[string]string, len(f.items)+1)
	for k, v := range f.items {
		next[k] = v
	}
	return next
}

// commit writes items to disk and only then makes them visible to readers.
func (f *File) commit(items map[string]string) error {
	salt := f.salt
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("securestore: failed to generate salt: %w", err)
		}
	}
	if err := f.persist(salt, items); err != nil {
		return err
	}
	f.salt = salt
	f.items = items
	return nil
}

// load reads the file once per process; later calls use the decrypted map.
func (f *File) load() error {
	if f.items != nil {
		return nil
	}

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.items = make(map[string]string)
		return nil
	}
	if err != nil {
		return fmt.Errorf("securestore: failed to read %s: %w", f.path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("securestore: corrupt credentials file: %w", err)
	}

	aead, err := chacha20poly1305.NewX(f.deriveKey(env.Salt))
	if err != nil {
		return fmt.Errorf("securestore: failed to init cipher: %w", err)
	}
	if len(env.Nonce) != aead.NonceSize() {
		return ErrDecrypt
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return ErrDecrypt
	}

	items := make(map[string]string)
	if err := json.Unmarshal(plaintext, &items); err != nil {
		return fmt.Errorf("securestore: corrupt credentials payload: %w", err)
	}

	f.salt = env.Salt
	f.items = items
	return nil
}

func (f *File) persist(salt []byte, items map[string]string) error {
	aead, err := chacha20poly1305.NewX(f.deriveKey(salt))
	if err != nil {
		return fmt.Errorf("securestore: failed to init cipher: %w", err)
	}

	plaintext, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("securestore: failed to encode items: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("securestore: failed to generate nonce: %w", err)
	}

	raw, err := json.Marshal(envelope{Salt: salt, Nonce: nonce, Data: aead.Seal(nil, nonce, plaintext, nil)})
	if err != nil {
		return fmt.Errorf("securestore: failed to encode envelope: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("securestore: failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("securestore: failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("securestore: failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("securestore: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("securestore: failed to replace credentials file: %w", err)
	}
	return nil
}

func (f *File) deriveKey(salt []byte) []byte {
	if f.key != nil && string(salt) == string(f.keySalt) {
		return f.key
	}
	f.key = argon2.IDKey(f.passphrase, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	f.keySalt = salt
	return f.key
}
