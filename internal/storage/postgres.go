package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Verification audit log
	CREATE TABLE IF NOT EXISTS verifications (
		id UUID PRIMARY KEY,
		package TEXT NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL,
		operation TEXT NOT NULL,
		result TEXT NOT NULL,
		detail TEXT,
		duration_ms BIGINT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW()
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
func (s *PostgresStore) CreateVerification(ctx context.Context, v *Verification) error {
	if v.ID == "" {
		v.ID = generateID()
	}
	query := `
		INSERT INTO verifications (id, package, fingerprint, address, operation, result, detail, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err := s.db.ExecContext(ctx, query, v.ID, v.Package, v.Fingerprint, v.Address, v.Operation, v.Result, v.Detail, v.DurationMS)
	return err
}

// GetVerification retrieves a verification record by ID
func (s *PostgresStore) GetVerification(ctx context.Context, id string) (*Verification, error) {
	query := `
		SELECT id, package, fingerprint, address, operation, result, detail, duration_ms, created_at::TEXT
		FROM verifications
		WHERE id = $1
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
func (s *PostgresStore) ListVerifications(ctx context.Context, filter VerificationFilter, pagination PaginationParams) (*PaginatedResult[Verification], error) {
	if pagination.Limit <= 0 {
		pagination.Limit = 50
	}

	query := `
		SELECT id, package, fingerprint, address, operation, result, detail, duration_ms, created_at::TEXT
		FROM verifications
	`
	var conditions []string
	var args []any

	if pagination.Cursor != "" {
		args = append(args, pagination.Cursor)
		conditions = append(conditions, fmt.Sprintf("id > $%d", len(args)))
	}
	if filter.Package != "" {
		args = append(args, filter.Package)
		conditions = append(conditions, fmt.Sprintf("package = $%d", len(args)))
	}
	if filter.Address != "" {
		args = append(args, filter.Address)
		conditions = append(conditions, fmt.Sprintf("address = $%d", len(args)))
	}
	if filter.Result != "" {
		args = append(args, filter.Result)
		conditions = append(conditions, fmt.Sprintf("result = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, pagination.Limit+1)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))

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
