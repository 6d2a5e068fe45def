package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/istc-be/internal/storage/postgres/migrations"
)

func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrations_Success(t *testing.T) {
	db := newMockDB(t)

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()
	var gotDir string
	gooseUpContext = func(_ context.Context, got *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		if got != db {
			return errors.New("unexpected db")
		}
		gotDir = dir
		return nil
	}

	require.NoError(t, runMigrations(context.Background(), db))
	assert.Equal(t, ".", gotDir)
}

func TestRunMigrations_PropagatesError(t *testing.T) {
	db := newMockDB(t)

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()
	boom := errors.New("boom")
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom }

	err := runMigrations(context.Background(), db)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "apply migrations")
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrations.FS.ReadDir(".")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "00001_init.sql")
	assert.Contains(t, names, "00002_seed_roles.sql")

	seed, err := migrations.FS.ReadFile("00002_seed_roles.sql")
	require.NoError(t, err)
	for _, role := range []string{"'admin'", "'user'", "'editor'", "'viewer'"} {
		assert.Contains(t, string(seed), role)
	}
}
