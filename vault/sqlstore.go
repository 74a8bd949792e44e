package vault

import (
	"context"
	"database/sql"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var sqlKeyInfo = []byte("pinguard sqlite v1")

// SQLStore keeps secrets in a SQLite table. Values are sealed with a key
// derived from the device key before they reach the database.
type SQLStore struct {
	db  *sql.DB
	key []byte
}

var _ Store = (*SQLStore)(nil)

// OpenSQL opens (or creates) the database at path and applies migrations.
func OpenSQL(path string, deviceKey []byte) (*SQLStore, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		path,
	)
	return openSQL(dsn, deviceKey)
}

func openSQL(dsn string, deviceKey []byte) (*SQLStore, error) {
	key, err := DeriveSubkey(deviceKey, sqlKeyInfo)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db, key: key}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, name string) (string, bool, error) {
	const query = `SELECT value FROM secrets WHERE name = ?`
	var sealed string
	err := s.db.QueryRowContext(ctx, query, name).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get secret %q: %w", name, err)
	}

	value, err := s.open(name, sealed)
	if err != nil {
		return "", false, fmt.Errorf("decrypt secret %q: %w", name, err)
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, name, value string) error {
	sealed, err := s.seal(name, value)
	if err != nil {
		return err
	}
	const query = `INSERT OR REPLACE INTO secrets (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	if _, err := s.db.ExecContext(ctx, query, name, sealed); err != nil {
		return fmt.Errorf("set secret %q: %w", name, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete secret %q: %w", name, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	zero(s.key)
	return s.db.Close()
}

// seal binds the ciphertext to the row name so values cannot be swapped
// between rows.
func (s *SQLStore) seal(name, value string) (string, error) {
	nonce, ct, err := AEADSeal(s.key, []byte(value), []byte(name))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(append(nonce, ct...)), nil
}

func (s *SQLStore) open(name, sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	if len(data) < NonceLen {
		return "", ErrCorrupt
	}
	pt, err := AEADOpen(s.key, data[:NonceLen], []byte(name), data[NonceLen:])
	if err != nil {
		return "", ErrAuthFailed
	}
	return string(pt), nil
}
