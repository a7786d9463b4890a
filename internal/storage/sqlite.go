package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Verification audit log
	CREATE TABLE IF NOT EXISTS verifications (
		id TEXT PRIMARY KEY,
		package TEXT NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL,
		operation TEXT NOT NULL,
		result TEXT NOT NULL,
		detail TEXT,
		duration_ms INTEGER NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_verifications_package ON verifications(package);
	CREATE INDEX IF NOT EXISTS idx_verifications_address ON verifications(address);
	CREATE INDEX IF NOT EXISTS idx_verifications_result ON verifications(result);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// CreateVerification records a verification attempt
func (s *SQLiteStore) CreateVerification(ctx context.Context, v *Verification) error {
	if v.ID == "" {
		v.ID = generateID()
	}
	query := `
		INSERT INTO verifications (id, package, fingerprint, address, operation, result, detail, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	`
	_, err := s.db.ExecContext(ctx, query, v.ID, v.Package, v.Fingerprint, v.Address, v.Operation, v.Result, v.Detail, v.DurationMS)
	return err
}

// GetVerification retrieves a verification record by ID
func (s *SQLiteStore) GetVerification(ctx context.Context, id string) (*Verification, error) {
	query := `
		SELECT id, package, fingerprint, address, operation, result, detail, duration_ms, created_at
		FROM verifications
		WHERE id = ?
	`
	var v Verification
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.Package, &v.Fingerprint, &v.Address, &v.Operation, &v.Result, &v.Detail, &v.DurationMS, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &v, err
}

// ListVerifications lists verification records with filtering and cursor-based pagination
func (s *SQLiteStore) ListVerifications(ctx context.Context, filter VerificationFilter, pagination PaginationParams) (*PaginatedResult[Verification], error) {
	if pagination.Limit <= 0 {
		pagination.Limit = 50
	}

	query := `
		SELECT id, package, fingerprint, address, operation, result, detail, duration_ms, created_at
		FROM verifications
	`
	var conditions []string
	var args []any

	if pagination.Cursor != "" {
		conditions = append(conditions, "id > ?")
		args = append(args, pagination.Cursor)
	}
	if filter.Package != "" {
		conditions = append(conditions, "package = ?")
		args = append(args, filter.Package)
	}
	if filter.Address != "" {
		conditions = append(conditions, "address = ?")
		args = append(args, filter.Address)
	}
	if filter.Result != "" {
		conditions = append(conditions, "result = ?")
		args = append(args, filter.Result)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, pagination.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Verification
	for rows.Next() {
		var v Verification
		if err := rows.Scan(&v.ID, &v.Package, &v.Fingerprint, &v.Address, &v.Operation, &v.Result, &v.Detail, &v.DurationMS, &v.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, v)
	}

	hasMore := len(records) > pagination.Limit
	var nextCursor string
	if hasMore {
		records = records[:pagination.Limit]
	}
	if len(records) > 0 {
		nextCursor = records[len(records)-1].ID
	}

	return &PaginatedResult[Verification]{
		Data:       records,
		HasMore:    hasMore,
		NextCursor: nextCursor,
	}, rows.Err()
}
