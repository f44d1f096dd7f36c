package infra

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

const (
	keyFileName = "store.key"
	keySize     = 32 // SQLCipher raw key length
)

// ErrKeyExists is returned by StoreKey when another process created the
// key first.
var ErrKeyExists = errors.New("store key already exists")

// FileKeyProvider keeps the store key in a 0600 file beside the database.
// The daemon and CLI processes share it.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: filepath.Join(dataDir, keyFileName)}
}

// Path returns the key file location.
func (p *FileKeyProvider) Path() string {
	return p.keyPath
}

// GetKey reads and validates the store key.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// StoreKey publishes key. The file is written aside and hard-linked into
// place, so readers never see a partial key and an existing key is never
// replaced.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	dir := filepath.Dir(p.keyPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, keyFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, werr := tmp.WriteString(base64.StdEncoding.EncodeToString(key))
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Link(tmp.Name(), p.keyPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrKeyExists
		}
		return fmt.Errorf("failed to publish key file: %w", err)
	}
	return nil
}

// KeyExists checks if the key file exists.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// GenerateKey creates a new random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating one on first use.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		if errors.Is(err, ErrKeyExists) {
			return provider.GetKey()
		}
		return nil, err
	}
	return key, nil
}

// OpenStore opens the encrypted store in dataDir, creating its key on first use.
func OpenStore(dataDir string) (*EncryptedStore, error) {
	key, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load store key: %w", err)
	}
	return NewEncryptedStore(dataDir, key)
}

// Ensure FileKeyProvider implements domain.KeyProvider.
var _ domain.KeyProvider = (*FileKeyProvider)(nil)
