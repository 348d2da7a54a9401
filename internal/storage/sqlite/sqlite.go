package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"todohub/internal/msauth"
)

// CredentialStore implements msauth.Store on top of SQLite. Atomicity of a
// save comes from running the whole replace in one transaction; a mutex
// serializes writers on top of that so saves never interleave.
type CredentialStore struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
func New(dbPath string) (*CredentialStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &CredentialStore{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates the database schema. The CHECK keeps the table to a
// single row; multi-account support only needs the key column to stop
// being constant.
func (s *CredentialStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS credentials (
			account_key TEXT PRIMARY KEY CHECK (account_key = 'default'),
			account_kind TEXT NOT NULL,
			tenant_id TEXT,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at DATETIME NOT NULL,
			scopes TEXT NOT NULL,
			state TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load retrieves the stored credential record.
// Implements the msauth.Store interface.
func (s *CredentialStore) Load(ctx context.Context) (*msauth.Record, error) {
	var (
		record msauth.Record
		kind   string
		scopes string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT account_kind, tenant_id, access_token, refresh_token, expires_at, scopes, state, updated_at
		FROM credentials WHERE account_key = 'default'
	`).Scan(&kind, &record.TenantID, &record.AccessToken, &record.RefreshToken,
		&record.ExpiresAt, &scopes, &record.State, &record.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, msauth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	record.AccountKind = msauth.AccountKind(kind)
	if scopes != "" {
		record.Scopes = strings.Fields(scopes)
	}

	return &record, nil
}

// Save replaces the stored credential record in a single transaction.
// Implements the msauth.Store interface.
func (s *CredentialStore) Save(ctx context.Context, record *msauth.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (account_key, account_kind, tenant_id, access_token, refresh_token, expires_at, scopes, state, updated_at)
		VALUES ('default', ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_key) DO UPDATE SET
			account_kind = excluded.account_kind,
			tenant_id = excluded.tenant_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scopes = excluded.scopes,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, string(record.AccountKind), record.TenantID, record.AccessToken, record.RefreshToken,
		record.ExpiresAt, strings.Join(record.Scopes, " "), record.State, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credentials: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *CredentialStore) Close() error {
	return s.db.Close()
}
