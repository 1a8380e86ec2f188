package infra

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

const (
	settingsKeyFile  = "settings.key"
	pendingKeySuffix = ".next"
	keySize          = 32 // 256-bit SQLCipher raw key
)

// FileKeyProvider keeps the settings database key next to the database,
// hex encoded the way SQLCipher takes raw keys (x'...').
//
// Rotation stages the new key in "settings.key.next" before the database is
// rekeyed, so a crash in between leaves a key that still opens it.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the settings store in dataDir.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{
		keyPath: filepath.Join(dataDir, settingsKeyFile),
	}
}

// KeyPath returns the key file path.
func (p *FileKeyProvider) KeyPath() string {
	return p.keyPath
}

func (p *FileKeyProvider) pendingPath() string {
	return p.keyPath + pendingKeySuffix
}

// GetKey reads the active key.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	return readKeyFile(p.keyPath)
}

// StoreKey replaces the active key.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	return writeKeyFile(p.keyPath, key)
}

// KeyExists reports whether an active key was stored.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// createKey writes key only if no active key exists yet. Returns
// os.ErrExist when another process won the race. The key file appears fully
// written or not at all.
func (p *FileKeyProvider) createKey(key []byte) error {
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.keyPath), settingsKeyFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, werr := tmp.WriteString(hex.EncodeToString(key))
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("failed to write key file: %w", werr)
	}

	// CreateTemp files are 0600. Link fails with EEXIST instead of replacing
	// a key another process created.
	return os.Link(tmp.Name(), p.keyPath)
}

// StagePendingKey records the key a rotation is about to switch to.
func (p *FileKeyProvider) StagePendingKey(key []byte) error {
	return writeKeyFile(p.pendingPath(), key)
}

// PendingKey returns the staged key, or nil when no rotation is in flight.
func (p *FileKeyProvider) PendingKey() ([]byte, error) {
	key, err := readKeyFile(p.pendingPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return key, err
}

// PromotePendingKey makes the staged key the active one.
func (p *FileKeyProvider) PromotePendingKey() error {
	if err := os.Rename(p.pendingPath(), p.keyPath); err != nil {
		return fmt.Errorf("failed to promote pending key: %w", err)
	}
	return nil
}

// DiscardPendingKey drops a staged key that was never applied.
func (p *FileKeyProvider) DiscardPendingKey() error {
	if err := os.Remove(p.pendingPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GenerateKey creates a new random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating one on first use. When the
// daemon and a CLI command start at once, both end up with the same key.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	fp, ok := provider.(*FileKeyProvider)
	if !ok {
		if err := provider.StoreKey(key); err != nil {
			return nil, err
		}
		return key, nil
	}
	switch err := fp.createKey(key); {
	case err == nil:
		return key, nil
	case errors.Is(err, os.ErrExist):
		return fp.GetKey()
	default:
		return nil, err
	}
}

func readKeyFile(path string) ([]byte, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// writeKeyFile replaces path atomically with 0600 permissions.
func writeKeyFile(path string, key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// Ensure FileKeyProvider implements domain.KeyProvider.
var _ domain.KeyProvider = (*FileKeyProvider)(nil)
