package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/jellytodo/internal/models"
	"github.com/desertthunder/jellytodo/internal/shared"
)

// ItemMappingRepository persists [models.ItemMapping] rows in the item_mappings table.
type ItemMappingRepository struct {
	db *sql.DB
}

// NewItemMappingRepository creates a new [ItemMappingRepository] with the given database connection
func NewItemMappingRepository(db *sql.DB) *ItemMappingRepository {
	return &ItemMappingRepository{db: db}
}

const itemMappingColumns = `id, item_id, task_id, series_name, created_at, completed_at`

// Save inserts a mapping, or points an existing item at a new task and clears its completion.
func (r *ItemMappingRepository) Save(ctx context.Context, m *models.ItemMapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if m.ID == "" {
		m.ID = shared.GenerateID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.CompletedAt = nil

	query := `
		INSERT INTO item_mappings (id, item_id, task_id, series_name, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, NULL)
		ON CONFLICT(item_id) DO UPDATE SET
			task_id = excluded.task_id,
			series_name = excluded.series_name,
			created_at = excluded.created_at,
			completed_at = NULL
	`

	if _, err := r.db.ExecContext(ctx, query, m.ID, m.ItemID, m.TaskID, m.SeriesName, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to save item mapping: %w", err)
	}

	return nil
}

// Get retrieves the mapping for a media item.
func (r *ItemMappingRepository) Get(ctx context.Context, itemID string) (*models.ItemMapping, error) {
	query := `SELECT ` + itemMappingColumns + ` FROM item_mappings WHERE item_id = ?`

	m, err := scanItemMapping(r.db.QueryRowContext(ctx, query, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item mapping %s", shared.ErrNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item mapping: %w", err)
	}
	return m, nil
}

// MarkCompleted stamps the item's mapping as completed. Already-completed mappings keep their first timestamp.
func (r *ItemMappingRepository) MarkCompleted(ctx context.Context, itemID string) error {
	query := `
		UPDATE item_mappings
		SET completed_at = COALESCE(completed_at, ?)
		WHERE item_id = ?
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), itemID)
	if err != nil {
		return fmt.Errorf("failed to mark item mapping completed: %w", err)
	}

	return requireAffected(result, fmt.Errorf("%w: item mapping %s", shared.ErrNotFound, itemID))
}

// ListBySeries returns the mappings for one series, oldest first.
func (r *ItemMappingRepository) ListBySeries(ctx context.Context, seriesName string) ([]*models.ItemMapping, error) {
	query := `SELECT ` + itemMappingColumns + ` FROM item_mappings WHERE series_name = ? ORDER BY created_at ASC, item_id ASC`
	return r.list(ctx, query, seriesName)
}

// List returns every mapping, oldest first.
func (r *ItemMappingRepository) List(ctx context.Context) ([]*models.ItemMapping, error) {
	query := `SELECT ` + itemMappingColumns + ` FROM item_mappings ORDER BY created_at ASC, item_id ASC`
	return r.list(ctx, query)
}

// Delete removes the mapping for a media item.
func (r *ItemMappingRepository) Delete(ctx context.Context, itemID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM item_mappings WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete item mapping: %w", err)
	}
	return requireAffected(result, fmt.Errorf("%w: item mapping %s", shared.ErrNotFound, itemID))
}

func (r *ItemMappingRepository) list(ctx context.Context, query string, args ...any) ([]*models.ItemMapping, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query item mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.ItemMapping
	for rows.Next() {
		m, err := scanItemMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item mapping: %w", err)
		}
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item mappings: %w", err)
	}

	return mappings, nil
}

func scanItemMapping(s scanner) (*models.ItemMapping, error) {
	var (
		m           models.ItemMapping
		completedAt sql.NullTime
	)

	if err := s.Scan(&m.ID, &m.ItemID, &m.TaskID, &m.SeriesName, &m.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		m.CompletedAt = &t
	}
	return &m, nil
}
