package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hongminglow/istc-be/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

// Options tune the connection pool and per-query deadlines.
type Options struct {
	MaxConns     int32
	QueryTimeout time.Duration
}

// Store provides Postgres-backed persistence for the API.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewStore creates a new Store and runs migrations.
func NewStore(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool, timeout: opts.QueryTimeout}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that the database answers within the query timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// uniqueFields maps unique constraint names to the field reported to callers.
var uniqueFields = map[string]string{
	"users_email_key":                 "email",
	"users_username_key":              "username",
	"roles_name_key":                  "name",
	"password_reset_tokens_token_key": "token",
}

// mapError turns driver errors into the storage error types.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		field, ok := uniqueFields[pgErr.ConstraintName]
		if !ok {
			field = strings.TrimSuffix(pgErr.ConstraintName, "_key")
		}
		return &storage.DuplicateKeyError{Field: field}
	case "23502":
		return &storage.ValidationError{Messages: []string{fmt.Sprintf("%s is required", pgErr.ColumnName)}}
	case "23503":
		return &storage.ValidationError{Messages: []string{"referenced record does not exist or is still in use"}}
	case "23514", "22001":
		return &storage.ValidationError{Messages: []string{pgErr.Message}}
	}
	return err
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// execOne runs a statement expected to touch at least one row.
func execOne(ctx context.Context, db execer, query string, args ...any) error {
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
