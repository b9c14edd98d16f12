package database

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestApplyMigrationsRunsSQLFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0002_b.sql"), []byte("CREATE TABLE b (id TEXT)"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_a.sql"), []byte("CREATE TABLE a (id TEXT)"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "sqlmock")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id TEXT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id TEXT)")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ApplyMigrations(context.Background(), db, dir, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyMigrationsSkipsEmptyDir(t *testing.T) {
	require.NoError(t, ApplyMigrations(context.Background(), nil, "", nil))
}

func TestApplyMigrationsMissingDir(t *testing.T) {
	raw, _, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	err = ApplyMigrations(context.Background(), sqlx.NewDb(raw, "sqlmock"), filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
}
