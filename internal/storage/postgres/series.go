package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
)

const seriesColumns = "asin, title, description, fetched_description"

func scanSeries(row pgx.Row) (catalog.Series, error) {
	var sr catalog.Series
	err := row.Scan(&sr.ASIN, &sr.Title, &sr.Description, &sr.FetchedDescription)
	return sr, err
}

// GetSeries returns one series or ErrNotFound.
func (s *Store) GetSeries(ctx context.Context, asin string) (catalog.Series, error) {
	sr, err := scanSeries(s.db.QueryRow(ctx,
		"SELECT "+seriesColumns+" FROM series WHERE asin = $1", asin))
	if err != nil {
		return catalog.Series{}, fmt.Errorf("select series %s: %w", asin, classify(err))
	}
	return sr, nil
}

// SaveSeries upserts a detail-fetched series, overwriting the description
// and the confirmed-absent flag.
func (s *Store) SaveSeries(ctx context.Context, sr catalog.Series) (catalog.Series, error) {
	saved, err := scanSeries(s.db.QueryRow(ctx, `
INSERT INTO series (asin, title, description, fetched_description)
VALUES ($1, $2, $3, $4)
ON CONFLICT (asin) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	fetched_description = EXCLUDED.fetched_description
RETURNING `+seriesColumns,
		sr.ASIN, sr.Title, sr.Description, sr.FetchedDescription))
	if err != nil {
		return catalog.Series{}, fmt.Errorf("save series %s: %w", sr.ASIN, classify(err))
	}
	return saved, nil
}

// SearchSeriesByTitle returns series whose title contains the fragment.
func (s *Store) SearchSeriesByTitle(ctx context.Context, title string, limit int) ([]catalog.Series, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.Query(ctx,
		"SELECT "+seriesColumns+" FROM series WHERE title ILIKE $1 ORDER BY title LIMIT $2",
		"%"+title+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search series: %w", classify(err))
	}
	var out []catalog.Series
	if err := eachRow(rows, func(r pgx.Rows) error {
		sr, err := scanSeries(r)
		if err != nil {
			return err
		}
		out = append(out, sr)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scan series: %w", err)
	}
	return out, nil
}
