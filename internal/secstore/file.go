package secstore

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const saltLen = 16

// FileStore keeps credentials in a single sealed file. The whole
// key-value map is encrypted with XChaCha20-Poly1305 under a key
// derived from the caller's secret, so tokens never touch disk in the
// clear.
type FileStore struct {
	mu     sync.Mutex
	path   string
	secret []byte
	values map[string]string
}

// NewFileStore opens (or creates) the sealed file at path. The secret
// is the caller's long-lived local secret; losing it makes the stored
// credentials unreadable, which only forces a fresh sign-in.
func NewFileStore(path string, secret []byte) (*FileStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("secstore: empty secret")
	}
	s := &FileStore{
		path:   path,
		secret: append([]byte(nil), secret...),
		values: make(map[string]string),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores the value under key and reseals the file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.save()
}

// Delete removes key and reseals the file. Deleting an absent key is
// not an error.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.save()
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("secstore: read %s: %w", s.path, err)
	}
	if len(raw) < saltLen+chacha20poly1305.NonceSizeX {
		return fmt.Errorf("secstore: %s is truncated", s.path)
	}

	salt := raw[:saltLen]
	nonce := raw[saltLen : saltLen+chacha20poly1305.NonceSizeX]
	sealed := raw[saltLen+chacha20poly1305.NonceSizeX:]

	aead, err := s.aead(salt)
	if err != nil {
		return err
	}
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return fmt.Errorf("secstore: unseal %s: %w", s.path, err)
	}
	if err := json.Unmarshal(plain, &s.values); err != nil {
		return fmt.Errorf("secstore: decode %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) save() error {
	plain, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("secstore: encode: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("secstore: salt: %w", err)
	}
	aead, err := s.aead(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("secstore: nonce: %w", err)
	}

	out := make([]byte, 0, saltLen+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plain, nil)

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("secstore: mkdir %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("secstore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("secstore: rename: %w", err)
	}
	return nil
}

// aead derives the sealing key from the secret and per-file salt using
// HKDF-SHA256.
func (s *FileStore) aead(salt []byte) (cipher.AEAD, error) {
	h := hkdf.New(sha256.New, s.secret, salt, []byte("liyt-credential-store"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("secstore: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secstore: cipher: %w", err)
	}
	return aead, nil
}

var _ Store = (*FileStore)(nil)
