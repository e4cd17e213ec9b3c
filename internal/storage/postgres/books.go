package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

const bookColumns = `asin, region, title, subtitle, description, summary,
publisher, copyright, isbn, language, format, image, rating, release_date,
explicit, has_pdf, whispersync, length_minutes, content_type,
content_delivery_type, episode_number, episode_type, sku, sku_group,
created_at, updated_at`

func scanBook(row pgx.Row) (catalog.Book, error) {
	var b catalog.Book
	err := row.Scan(
		&b.ASIN, &b.Region, &b.Title, &b.Subtitle, &b.Description, &b.Summary,
		&b.Publisher, &b.Copyright, &b.ISBN, &b.Language, &b.Format, &b.Image,
		&b.Rating, &b.ReleaseDate, &b.Explicit, &b.HasPDF, &b.WhisperSync,
		&b.LengthMinutes, &b.ContentType, &b.ContentDeliveryType,
		&b.EpisodeNumber, &b.EpisodeType, &b.SKU, &b.SKUGroup,
		&b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// GetBooks loads books by ASIN with relations attached. ASINs with no row
// are absent from the result; the order is storage order, callers re-sort.
func (s *Store) GetBooks(ctx context.Context, asins []string) ([]catalog.Book, error) {
	if len(asins) == 0 {
		return nil, nil
	}
	query := "SELECT " + bookColumns + " FROM books WHERE asin = ANY($1)"
	rows, err := s.db.Query(ctx, query, asins)
	if err != nil {
		return nil, fmt.Errorf("select books: %w", classify(err))
	}
	books, err := collectBooks(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachRelations(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

// GetBooksBySeries loads the books linked to a series, relations attached.
func (s *Store) GetBooksBySeries(ctx context.Context, seriesASIN string, limit, offset int) ([]catalog.Book, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := "SELECT " + bookColumns + ` FROM books
WHERE asin IN (SELECT book_asin FROM book_series WHERE series_asin = $1)
ORDER BY asin LIMIT $2 OFFSET $3`
	rows, err := s.db.Query(ctx, query, seriesASIN, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select series books: %w", classify(err))
	}
	books, err := collectBooks(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachRelations(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

// SearchBooks runs the cross-region fallback search: case-insensitive
// substring match on title, subtitle or summary, optionally narrowed to a
// linked author name. No region filter on purpose.
func (s *Store) SearchBooks(ctx context.Context, f store.SearchFilter) ([]catalog.Book, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 25
	}
	pattern := "%" + f.Title + "%"
	query := "SELECT " + bookColumns + ` FROM books
WHERE (title ILIKE $1 OR subtitle ILIKE $1 OR summary ILIKE $1)`
	args := []any{pattern}
	if f.Author != "" {
		query += ` AND asin IN (
SELECT ab.book_asin FROM author_books ab
JOIN authors a ON a.id = ab.author_id
WHERE a.name ILIKE $2)`
		args = append(args, "%"+f.Author+"%")
	}
	query += fmt.Sprintf(" ORDER BY title LIMIT %d OFFSET %d", limit, f.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", classify(err))
	}
	books, err := collectBooks(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachRelations(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

func collectBooks(rows pgx.Rows) ([]catalog.Book, error) {
	defer rows.Close()
	var books []catalog.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", classify(err))
	}
	return books, nil
}

// attachRelations loads the four relation sets for every book in one query
// per relation kind and distributes the rows onto the books in place.
func (s *Store) attachRelations(ctx context.Context, books []catalog.Book) error {
	if len(books) == 0 {
		return nil
	}
	byASIN := make(map[string]*catalog.Book, len(books))
	asins := make([]string, len(books))
	for i := range books {
		byASIN[books[i].ASIN] = &books[i]
		asins[i] = books[i].ASIN
	}

	rows, err := s.db.Query(ctx, `
SELECT ab.book_asin, a.id, a.asin, a.region, a.name, a.description, a.image, a.no_description
FROM author_books ab JOIN authors a ON a.id = ab.author_id
WHERE ab.book_asin = ANY($1) ORDER BY a.id`, asins)
	if err != nil {
		return fmt.Errorf("select book authors: %w", classify(err))
	}
	if err := eachRow(rows, func(r pgx.Rows) error {
		var asin string
		var a catalog.Author
		if err := r.Scan(&asin, &a.ID, &a.ASIN, &a.Region, &a.Name, &a.Description, &a.Image, &a.NoDescription); err != nil {
			return err
		}
		byASIN[asin].Authors = append(byASIN[asin].Authors, a)
		return nil
	}); err != nil {
		return fmt.Errorf("scan book authors: %w", err)
	}

	rows, err = s.db.Query(ctx, `
SELECT book_asin, narrator_name FROM book_narrators
WHERE book_asin = ANY($1) ORDER BY narrator_name`, asins)
	if err != nil {
		return fmt.Errorf("select book narrators: %w", classify(err))
	}
	if err := eachRow(rows, func(r pgx.Rows) error {
		var asin, name string
		if err := r.Scan(&asin, &name); err != nil {
			return err
		}
		byASIN[asin].Narrators = append(byASIN[asin].Narrators, catalog.Narrator{Name: name})
		return nil
	}); err != nil {
		return fmt.Errorf("scan book narrators: %w", err)
	}

	rows, err = s.db.Query(ctx, `
SELECT bg.book_asin, g.asin, g.name, g.type
FROM book_genres bg JOIN genres g ON g.asin = bg.genre_asin
WHERE bg.book_asin = ANY($1) ORDER BY g.asin`, asins)
	if err != nil {
		return fmt.Errorf("select book genres: %w", classify(err))
	}
	if err := eachRow(rows, func(r pgx.Rows) error {
		var asin string
		var g catalog.Genre
		if err := r.Scan(&asin, &g.ASIN, &g.Name, &g.Type); err != nil {
			return err
		}
		byASIN[asin].Genres = append(byASIN[asin].Genres, g)
		return nil
	}); err != nil {
		return fmt.Errorf("scan book genres: %w", err)
	}

	rows, err = s.db.Query(ctx, `
SELECT bs.book_asin, sr.asin, sr.title, sr.description, sr.fetched_description, bs.series_position
FROM book_series bs JOIN series sr ON sr.asin = bs.series_asin
WHERE bs.book_asin = ANY($1) ORDER BY sr.asin`, asins)
	if err != nil {
		return fmt.Errorf("select book series: %w", classify(err))
	}
	if err := eachRow(rows, func(r pgx.Rows) error {
		var asin string
		var m catalog.SeriesMembership
		if err := r.Scan(&asin, &m.ASIN, &m.Title, &m.Description, &m.FetchedDescription, &m.Position); err != nil {
			return err
		}
		byASIN[asin].Series = append(byASIN[asin].Series, m)
		return nil
	}); err != nil {
		return fmt.Errorf("scan book series: %w", err)
	}

	return nil
}

func eachRow(rows pgx.Rows, scan func(pgx.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return classify(rows.Err())
}
