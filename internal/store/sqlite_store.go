package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// SQLiteStore provides SQLite persistence for asset metadata.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore initializes a new SQLite store and runs migrations.
// WAL mode and busy_timeout suit the read-heavy streaming workload.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audio_assets (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		storage_path TEXT NOT NULL UNIQUE,
		byte_size INTEGER NOT NULL,
		duration_millis INTEGER NOT NULL DEFAULT 0,
		degraded INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audio_assets_owner ON audio_assets(owner_id);
	CREATE INDEX IF NOT EXISTS idx_audio_assets_owner_created ON audio_assets(owner_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create inserts a new asset row.
func (s *SQLiteStore) Create(ctx context.Context, a Asset) error {
	query := `
	INSERT INTO audio_assets (id, owner_id, title, description, storage_path, byte_size, duration_millis, degraded, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.OwnerID, a.Title, a.Description, a.StoragePath,
		a.ByteSize, a.DurationMillis, boolToInt(a.Degraded),
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Get retrieves a single asset scoped to its owner.
func (s *SQLiteStore) Get(ctx context.Context, ownerID, id string) (Asset, error) {
	query := `
	SELECT id, owner_id, title, description, storage_path, byte_size, duration_millis, degraded, created_at
	FROM audio_assets
	WHERE id = ? AND owner_id = ?
	`
	a, err := scanAsset(s.db.QueryRowContext(ctx, query, id, ownerID))
	if err == sql.ErrNoRows {
		return Asset{}, ErrNotFound
	}
	return a, err
}

// ListByOwner returns all assets for an owner, newest first.
func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string) ([]Asset, error) {
	query := `
	SELECT id, owner_id, title, description, storage_path, byte_size, duration_millis, degraded, created_at
	FROM audio_assets
	WHERE owner_id = ?
	ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var assets []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// Delete removes one asset row scoped to its owner.
func (s *SQLiteStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audio_assets WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (Asset, error) {
	var a Asset
	var degraded int
	var createdAt string

	err := row.Scan(&a.ID, &a.OwnerID, &a.Title, &a.Description, &a.StoragePath,
		&a.ByteSize, &a.DurationMillis, &degraded, &createdAt)
	if err != nil {
		return Asset{}, err
	}

	a.Degraded = degraded != 0
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		a.CreatedAt = t
	}
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
