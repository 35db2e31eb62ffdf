package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jukeboxd/internal/core"
)

// SortStore persists the preferred sort order per browse category.
type SortStore struct {
	db *sql.DB
}

var _ core.SortGateway = (*SortStore)(nil)

func NewSortStore(db *sql.DB) *SortStore {
	return &SortStore{db: db}
}

// SortOrderFor returns the saved order for category, falling back to title.
func (s *SortStore) SortOrderFor(ctx context.Context, category core.Category) core.SortOrder {
	var order string
	err := s.db.QueryRowContext(ctx,
		`SELECT sort_order FROM sort_prefs WHERE category = ?`, string(category)).
		Scan(&order)
	if errors.Is(err, sql.ErrNoRows) || err != nil {
		return core.SortByTitle
	}
	return core.SortOrder(order)
}

// SetSortOrder saves the preferred order for category.
func (s *SortStore) SetSortOrder(ctx context.Context, category core.Category, order core.SortOrder) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sort_prefs (category, sort_order)
		VALUES (?, ?)
		ON CONFLICT(category) DO UPDATE SET
			sort_order = excluded.sort_order`,
		string(category), string(order)); err != nil {
		return fmt.Errorf("failed to save sort order for %s: %w", category, err)
	}
	return nil
}
