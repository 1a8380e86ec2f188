package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	settingsDBName = "settings.db"
)

// EncryptedSettingsStore implements domain.SettingsStore using a SQLCipher
// encrypted SQLite database. Each storage key is one row holding a JSON value.
type EncryptedSettingsStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedSettingsStore opens (or creates) the encrypted settings database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedSettingsStore(dataDir string, key []byte) (*EncryptedSettingsStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, settingsDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only shows up on first access.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedSettingsStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// OpenEncryptedSettingsStore loads (or generates) the key in dataDir and opens the store.
// If the active key is rejected and a rotation left a staged key behind, the
// staged key is tried and promoted.
func OpenEncryptedSettingsStore(dataDir string) (*EncryptedSettingsStore, error) {
	provider := NewFileKeyProvider(dataDir)
	key, err := EnsureKey(provider)
	if err != nil {
		return nil, err
	}

	store, openErr := NewEncryptedSettingsStore(dataDir, key)
	if openErr == nil {
		return store, nil
	}

	pending, err := provider.PendingKey()
	if err != nil || pending == nil {
		return nil, openErr
	}
	store, err = NewEncryptedSettingsStore(dataDir, pending)
	if err != nil {
		return nil, openErr
	}
	if err := provider.PromotePendingKey(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// Rekey re-encrypts the database with newKey. Connections opened afterwards
// need newKey, so close the store once it returns.
func (s *EncryptedSettingsStore) Rekey(ctx context.Context, newKey []byte) error {
	if len(newKey) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(newKey), keySize)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	defer conn.Close()

	pragma := fmt.Sprintf(`PRAGMA rekey = "x'%s'"`, hex.EncodeToString(newKey))
	if _, err := conn.ExecContext(ctx, pragma); err != nil {
		return fmt.Errorf("failed to rekey settings database: %w", err)
	}
	return nil
}

// RotateSettingsKey re-encrypts the settings database in dataDir under a
// fresh key and makes that key the active one. The daemon must not be
// running: its open connections still hold the old key.
func RotateSettingsKey(ctx context.Context, dataDir string) error {
	provider := NewFileKeyProvider(dataDir)

	store, err := OpenEncryptedSettingsStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	newKey, err := GenerateKey()
	if err != nil {
		return err
	}
	if err := provider.StagePendingKey(newKey); err != nil {
		return err
	}
	if err := store.Rekey(ctx, newKey); err != nil {
		_ = provider.DiscardPendingKey()
		return err
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("failed to close settings database: %w", err)
	}

	check, err := NewEncryptedSettingsStore(dataDir, newKey)
	if err != nil {
		return fmt.Errorf("rekeyed database does not open with the new key: %w", err)
	}
	check.Close()

	return provider.PromotePendingKey()
}

func (s *EncryptedSettingsStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO meta (key, value) VALUES ('revision', 0);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns a settings snapshot.
func (s *EncryptedSettingsStore) Load(ctx context.Context) (domain.Settings, error) {
	values, err := s.readValues(ctx, s.db)
	if err != nil {
		return domain.Settings{}, err
	}
	return decodeSettings(values), nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *EncryptedSettingsStore) readValues(ctx context.Context, q queryer) (map[string][]byte, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string][]byte)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = []byte(v)
	}
	return values, rows.Err()
}

// Update applies a partial update and bumps the revision.
func (s *EncryptedSettingsStore) Update(ctx context.Context, patch domain.SettingsPatch) error {
	values, err := encodePatch(patch)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	return s.writeValues(ctx, values)
}

func (s *EncryptedSettingsStore) writeValues(ctx context.Context, values map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
			k, string(v), now,
		); err != nil {
			return fmt.Errorf("failed to write %s: %w", k, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE meta SET value = value + 1 WHERE key = 'revision'`); err != nil {
		return fmt.Errorf("failed to bump revision: %w", err)
	}
	return tx.Commit()
}

// EnsureDefaults writes defaults for keys that were never stored.
func (s *EncryptedSettingsStore) EnsureDefaults(ctx context.Context) ([]string, error) {
	existing, err := s.readValues(ctx, s.db)
	if err != nil {
		return nil, err
	}

	missing := make(map[string][]byte)
	var written []string
	defaults := defaultValues()
	for _, k := range domain.SettingsKeys {
		if k == domain.KeyDailyLockUntil {
			continue // absent means no lock
		}
		if _, ok := existing[k]; !ok {
			missing[k] = defaults[k]
			written = append(written, k)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if err := s.writeValues(ctx, missing); err != nil {
		return nil, err
	}
	return written, nil
}

// Revision returns the write counter.
func (s *EncryptedSettingsStore) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'revision'`).Scan(&rev)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return rev, err
}

// GetStorePath returns the database file path.
func (s *EncryptedSettingsStore) GetStorePath() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedSettingsStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedSettingsStore implements domain.SettingsStore.
var _ domain.SettingsStore = (*EncryptedSettingsStore)(nil)
