package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ApplyMigrations executes every *.sql file in dir in lexical order. Statements are expected
// to be idempotent (CREATE ... IF NOT EXISTS) since no version table is kept.
func ApplyMigrations(ctx context.Context, db *sqlx.DB, dir string, logger *zap.Logger) error {
	if dir == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file.Name(), err)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file.Name(), err)
		}
		logger.Info("migration applied", zap.String("file", file.Name()))
	}

	return nil
}
