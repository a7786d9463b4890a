package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pendergraft/sourceproof/internal/config"
)

// VerificationStore handles verification audit records
type VerificationStore interface {
	CreateVerification(ctx context.Context, v *Verification) error
	GetVerification(ctx context.Context, id string) (*Verification, error)
	ListVerifications(ctx context.Context, filter VerificationFilter, pagination PaginationParams) (*PaginatedResult[Verification], error)
}

// Store combines storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	VerificationStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Verification is an audit record of a single verification attempt
type Verification struct {
	ID          string
	Package     string
	Fingerprint string
	Address     string
	Operation   string
	Result      string
	Detail      string
	DurationMS  int64
	CreatedAt   string
}

// VerificationFilter contains filter options for listing verifications
type VerificationFilter struct {
	Package string
	Address string
	Result  string
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
