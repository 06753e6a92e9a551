package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the patients snapshot table used by PostgresStore: one JSONB
// document per patient plus its position in the stored sequence, so LoadAll
// returns records in the order they were saved.  It is safe to run repeatedly.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create patients table: %w", err)
	}
	return nil
}
