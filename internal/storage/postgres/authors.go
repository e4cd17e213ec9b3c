package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

const authorColumns = "id, asin, region, name, description, image, no_description"

func scanAuthor(row pgx.Row) (catalog.Author, error) {
	var a catalog.Author
	err := row.Scan(&a.ID, &a.ASIN, &a.Region, &a.Name, &a.Description, &a.Image, &a.NoDescription)
	return a, err
}

// GetAuthorsByASIN returns every stored row for the author identifier. An
// empty result maps to ErrNotFound so callers need no length check.
func (s *Store) GetAuthorsByASIN(ctx context.Context, asin string) ([]catalog.Author, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+authorColumns+" FROM authors WHERE asin = $1 ORDER BY id", asin)
	if err != nil {
		return nil, fmt.Errorf("select authors: %w", classify(err))
	}
	var authors []catalog.Author
	if err := eachRow(rows, func(r pgx.Rows) error {
		a, err := scanAuthor(r)
		if err != nil {
			return err
		}
		authors = append(authors, a)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scan authors: %w", err)
	}
	if len(authors) == 0 {
		return nil, store.ErrNotFound
	}
	return authors, nil
}

// FindAuthorByName returns the first author whose name contains the fragment.
func (s *Store) FindAuthorByName(ctx context.Context, name string) (catalog.Author, error) {
	a, err := scanAuthor(s.db.QueryRow(ctx,
		"SELECT "+authorColumns+" FROM authors WHERE name ILIKE $1 ORDER BY id LIMIT 1",
		"%"+name+"%"))
	if err != nil {
		return catalog.Author{}, fmt.Errorf("find author by name: %w", classify(err))
	}
	return a, nil
}

// SaveAuthor upserts a detail-fetched author. Unlike the batch path this
// overwrites description and image: the detail page is the authority for
// those fields, and NoDescription records a confirmed-absent result.
func (s *Store) SaveAuthor(ctx context.Context, a catalog.Author) (catalog.Author, error) {
	var row pgx.Row
	if a.ASIN != nil && *a.ASIN != "" {
		row = s.db.QueryRow(ctx, `
INSERT INTO authors (asin, region, name, description, image, no_description)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (asin, name, region) WHERE asin IS NOT NULL
DO UPDATE SET description = EXCLUDED.description,
	image = EXCLUDED.image,
	no_description = EXCLUDED.no_description
RETURNING `+authorColumns,
			a.ASIN, a.Region, a.Name, a.Description, a.Image, a.NoDescription)
	} else {
		row = s.db.QueryRow(ctx, `
INSERT INTO authors (asin, region, name, description, image, no_description)
VALUES (NULL, $1, $2, $3, $4, $5)
ON CONFLICT (name, region) WHERE asin IS NULL
DO UPDATE SET description = EXCLUDED.description,
	image = EXCLUDED.image,
	no_description = EXCLUDED.no_description
RETURNING `+authorColumns,
			a.Region, a.Name, a.Description, a.Image, a.NoDescription)
	}
	saved, err := scanAuthor(row)
	if err != nil {
		return catalog.Author{}, fmt.Errorf("save author %s: %w", a.Name, classify(err))
	}
	saved.Genres = a.Genres
	return saved, nil
}
