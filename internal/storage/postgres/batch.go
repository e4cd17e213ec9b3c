package postgres

import (
	"context"
	"fmt"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

// ApplyBatch writes one deduplicated batch transactionally: genres, authors
// (both key groups), narrators, series, books, then each book's relation
// sets. Conflict errors surface classified so the caller's retry loop can
// distinguish them from permanent failures.
//
// The returned books carry the author row ids assigned during the upsert,
// so the caller gets a fully populated result without a second read.
func (s *Store) ApplyBatch(ctx context.Context, batch catalog.Batch) ([]catalog.Book, error) {
	if batch.Empty() {
		return nil, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", classify(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := upsertGenres(ctx, tx, batch.Genres); err != nil {
		return nil, err
	}
	authorIDs, err := upsertAuthors(ctx, tx, batch.AuthorsWithASIN, batch.AuthorsNameOnly)
	if err != nil {
		return nil, err
	}
	if err := upsertNarrators(ctx, tx, batch.Narrators); err != nil {
		return nil, err
	}
	if err := upsertSeries(ctx, tx, batch.Series); err != nil {
		return nil, err
	}

	books := make([]catalog.Book, len(batch.Books))
	copy(books, batch.Books)
	for i := range books {
		if err := upsertBook(ctx, tx, books[i]); err != nil {
			return nil, err
		}
		for j := range books[i].Authors {
			if id, ok := authorIDs[books[i].Authors[j].Key()]; ok {
				books[i].Authors[j].ID = id
			}
		}
		if err := replaceAllRelations(ctx, tx, books[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch: %w", classify(err))
	}
	return books, nil
}

func upsertGenres(ctx context.Context, q querier, genres []catalog.Genre) error {
	for _, g := range genres {
		_, err := q.Exec(ctx, `
INSERT INTO genres (asin, name, type) VALUES ($1, $2, $3)
ON CONFLICT (asin) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type`,
			g.ASIN, g.Name, g.Type)
		if err != nil {
			return fmt.Errorf("upsert genre %s: %w", g.ASIN, classify(err))
		}
	}
	return nil
}

// upsertAuthors writes both author key groups and returns the assigned row
// id per natural key. Descriptions coalesce so a catalog write never wipes
// data a detail fetch already filled in.
func upsertAuthors(ctx context.Context, q querier, withASIN, nameOnly []catalog.Author) (map[string]int64, error) {
	ids := make(map[string]int64, len(withASIN)+len(nameOnly))
	for _, a := range withASIN {
		var id int64
		err := q.QueryRow(ctx, `
INSERT INTO authors (asin, region, name, description)
VALUES ($1, $2, $3, $4)
ON CONFLICT (asin, name, region) WHERE asin IS NOT NULL
DO UPDATE SET description = COALESCE(authors.description, EXCLUDED.description)
RETURNING id`,
			a.ASIN, a.Region, a.Name, a.Description).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert author %s: %w", a.Name, classify(err))
		}
		ids[a.Key()] = id
	}
	for _, a := range nameOnly {
		var id int64
		err := q.QueryRow(ctx, `
INSERT INTO authors (asin, region, name, description)
VALUES (NULL, $1, $2, $3)
ON CONFLICT (name, region) WHERE asin IS NULL
DO UPDATE SET description = COALESCE(authors.description, EXCLUDED.description)
RETURNING id`,
			a.Region, a.Name, a.Description).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert author %s: %w", a.Name, classify(err))
		}
		ids[a.Key()] = id
	}
	return ids, nil
}

func upsertNarrators(ctx context.Context, q querier, narrators []catalog.Narrator) error {
	for _, n := range narrators {
		_, err := q.Exec(ctx, `
INSERT INTO narrators (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, n.Name)
		if err != nil {
			return fmt.Errorf("upsert narrator %s: %w", n.Name, classify(err))
		}
	}
	return nil
}

func upsertSeries(ctx context.Context, q querier, series []catalog.Series) error {
	for _, sr := range series {
		_, err := q.Exec(ctx, `
INSERT INTO series (asin, title) VALUES ($1, $2)
ON CONFLICT (asin) DO UPDATE SET title = EXCLUDED.title`, sr.ASIN, sr.Title)
		if err != nil {
			return fmt.Errorf("upsert series %s: %w", sr.ASIN, classify(err))
		}
	}
	return nil
}

func upsertBook(ctx context.Context, q querier, b catalog.Book) error {
	_, err := q.Exec(ctx, `
INSERT INTO books (
	asin, region, title, subtitle, description, summary, publisher, copyright,
	isbn, language, format, image, rating, release_date, explicit, has_pdf,
	whispersync, length_minutes, content_type, content_delivery_type,
	episode_number, episode_type, sku, sku_group
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24
)
ON CONFLICT (asin) DO UPDATE SET
	region = EXCLUDED.region,
	title = EXCLUDED.title,
	subtitle = EXCLUDED.subtitle,
	description = EXCLUDED.description,
	summary = EXCLUDED.summary,
	publisher = EXCLUDED.publisher,
	copyright = EXCLUDED.copyright,
	isbn = EXCLUDED.isbn,
	language = EXCLUDED.language,
	format = EXCLUDED.format,
	image = EXCLUDED.image,
	rating = EXCLUDED.rating,
	release_date = EXCLUDED.release_date,
	explicit = EXCLUDED.explicit,
	has_pdf = EXCLUDED.has_pdf,
	whispersync = EXCLUDED.whispersync,
	length_minutes = EXCLUDED.length_minutes,
	content_type = EXCLUDED.content_type,
	content_delivery_type = EXCLUDED.content_delivery_type,
	episode_number = EXCLUDED.episode_number,
	episode_type = EXCLUDED.episode_type,
	sku = EXCLUDED.sku,
	sku_group = EXCLUDED.sku_group,
	updated_at = now()`,
		b.ASIN, b.Region, b.Title, b.Subtitle, b.Description, b.Summary,
		b.Publisher, b.Copyright, b.ISBN, b.Language, b.Format, b.Image,
		b.Rating, b.ReleaseDate, b.Explicit, b.HasPDF, b.WhisperSync,
		b.LengthMinutes, b.ContentType, b.ContentDeliveryType,
		b.EpisodeNumber, b.EpisodeType, b.SKU, b.SKUGroup)
	if err != nil {
		return fmt.Errorf("upsert book %s: %w", b.ASIN, classify(err))
	}
	return nil
}

// ReplaceRelations replaces one of a book's relation sets wholesale so the
// stored set always mirrors the latest upstream snapshot.
func (s *Store) ReplaceRelations(ctx context.Context, bookASIN string, kind store.RelationKind, set store.RelationSet) error {
	return replaceRelations(ctx, s.db, bookASIN, kind, set)
}

func replaceAllRelations(ctx context.Context, q querier, b catalog.Book) error {
	authorIDs := make([]int64, 0, len(b.Authors))
	for _, a := range b.Authors {
		if a.ID != 0 {
			authorIDs = append(authorIDs, a.ID)
		}
	}
	narrators := make([]string, 0, len(b.Narrators))
	for _, n := range b.Narrators {
		narrators = append(narrators, n.Name)
	}
	genres := make([]string, 0, len(b.Genres))
	for _, g := range b.Genres {
		genres = append(genres, g.ASIN)
	}
	series := make([]store.SeriesLink, 0, len(b.Series))
	for _, m := range b.Series {
		series = append(series, store.SeriesLink{SeriesASIN: m.ASIN, Position: m.Position})
	}

	steps := []struct {
		kind store.RelationKind
		set  store.RelationSet
	}{
		{store.RelationAuthors, store.RelationSet{AuthorIDs: authorIDs}},
		{store.RelationNarrators, store.RelationSet{Narrators: narrators}},
		{store.RelationGenres, store.RelationSet{Genres: genres}},
		{store.RelationSeries, store.RelationSet{Series: series}},
	}
	for _, step := range steps {
		if err := replaceRelations(ctx, q, b.ASIN, step.kind, step.set); err != nil {
			return err
		}
	}
	return nil
}

func replaceRelations(ctx context.Context, q querier, bookASIN string, kind store.RelationKind, set store.RelationSet) error {
	var deleteSQL string
	switch kind {
	case store.RelationAuthors:
		deleteSQL = "DELETE FROM author_books WHERE book_asin = $1"
	case store.RelationNarrators:
		deleteSQL = "DELETE FROM book_narrators WHERE book_asin = $1"
	case store.RelationGenres:
		deleteSQL = "DELETE FROM book_genres WHERE book_asin = $1"
	case store.RelationSeries:
		deleteSQL = "DELETE FROM book_series WHERE book_asin = $1"
	default:
		return fmt.Errorf("unknown relation kind %q", kind)
	}
	if _, err := q.Exec(ctx, deleteSQL, bookASIN); err != nil {
		return fmt.Errorf("clear %s relations for %s: %w", kind, bookASIN, classify(err))
	}

	switch kind {
	case store.RelationAuthors:
		for _, id := range set.AuthorIDs {
			if _, err := q.Exec(ctx, `
INSERT INTO author_books (author_id, book_asin) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, id, bookASIN); err != nil {
				return fmt.Errorf("link author %d to %s: %w", id, bookASIN, classify(err))
			}
		}
	case store.RelationNarrators:
		for _, name := range set.Narrators {
			if _, err := q.Exec(ctx, `
INSERT INTO book_narrators (book_asin, narrator_name) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, bookASIN, name); err != nil {
				return fmt.Errorf("link narrator %s to %s: %w", name, bookASIN, classify(err))
			}
		}
	case store.RelationGenres:
		for _, asin := range set.Genres {
			if _, err := q.Exec(ctx, `
INSERT INTO book_genres (book_asin, genre_asin) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, bookASIN, asin); err != nil {
				return fmt.Errorf("link genre %s to %s: %w", asin, bookASIN, classify(err))
			}
		}
	case store.RelationSeries:
		for _, link := range set.Series {
			if _, err := q.Exec(ctx, `
INSERT INTO book_series (book_asin, series_asin, series_position) VALUES ($1, $2, $3)
ON CONFLICT (book_asin, series_asin) DO UPDATE SET series_position = EXCLUDED.series_position`,
				bookASIN, link.SeriesASIN, link.Position); err != nil {
				return fmt.Errorf("link series %s to %s: %w", link.SeriesASIN, bookASIN, classify(err))
			}
		}
	}
	return nil
}
