// package repositories provides persistence layer implementations for local model types.
package repositories

import (
	"database/sql"
	"fmt"
)

// scanner is satisfied by [*sql.Row] and [*sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// requireAffected returns notFound when result changed no rows.
func requireAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
