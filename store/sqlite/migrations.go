package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the mantle document table (SQLite).
var Migrations = migrate.NewGroup("mantle")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_documents",
			Version: "20240601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mantle_documents (
    id              TEXT PRIMARY KEY,
    type            TEXT,
    body            TEXT NOT NULL DEFAULT '{}',
    created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mantle_documents`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "index_document_type",
			Version: "20240601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE INDEX IF NOT EXISTS idx_mantle_documents_type ON mantle_documents (type) WHERE type IS NOT NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP INDEX IF EXISTS idx_mantle_documents_type`)
				return err
			},
		},
	)
}
