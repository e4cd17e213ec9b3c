package postgres

import (
	"context"
	"fmt"
)

// Get returns the cached ASIN list for a search key and bumps the entry's
// hit counter in the same statement. A missing key maps to ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]string, error) {
	var asins []string
	err := s.db.QueryRow(ctx, `
UPDATE search_cache SET hits = hits + 1 WHERE query_key = $1 RETURNING asins`,
		key).Scan(&asins)
	if err != nil {
		return nil, fmt.Errorf("search cache get: %w", classify(err))
	}
	return asins, nil
}

// Put stores or replaces the ASIN list for a search key. The hit counter
// resets on replacement because the cached list changed.
func (s *Store) Put(ctx context.Context, key string, asins []string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO search_cache (query_key, asins)
VALUES ($1, $2)
ON CONFLICT (query_key) DO UPDATE SET
	asins = EXCLUDED.asins,
	hits = 0,
	updated_at = now()`,
		key, asins)
	if err != nil {
		return fmt.Errorf("search cache put: %w", classify(err))
	}
	return nil
}
