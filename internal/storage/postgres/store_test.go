package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

var bookColumnList = []string{
	"asin", "region", "title", "subtitle", "description", "summary",
	"publisher", "copyright", "isbn", "language", "format", "image",
	"rating", "release_date", "explicit", "has_pdf", "whispersync",
	"length_minutes", "content_type", "content_delivery_type",
	"episode_number", "episode_type", "sku", "sku_group",
	"created_at", "updated_at",
}

func bookRow(mock pgxmock.PgxPoolIface, asin, title string) *pgxmock.Rows {
	now := time.Unix(1700000000, 0).UTC()
	return mock.NewRows(bookColumnList).AddRow(
		asin, catalog.RegionUS, title, nil, nil, nil,
		nil, nil, nil, nil, nil, nil,
		nil, nil, false, false, false,
		nil, nil, nil,
		nil, nil, nil, nil,
		now, now,
	)
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s, err := NewStoreWithDB(mock)
	require.NoError(t, err)
	return mock, s
}

func TestGetBooksAttachesRelations(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	asins := []string{"B000000001"}
	authorASIN := "B00G0WYW92"

	mock.ExpectQuery("FROM books WHERE asin = ANY").
		WithArgs(asins).
		WillReturnRows(bookRow(mock, "B000000001", "Project Hail Mary"))
	mock.ExpectQuery("FROM author_books ab JOIN authors a").
		WithArgs(asins).
		WillReturnRows(mock.NewRows([]string{"book_asin", "id", "asin", "region", "name", "description", "image", "no_description"}).
			AddRow("B000000001", int64(7), &authorASIN, catalog.RegionUS, "Andy Weir", nil, nil, false))
	mock.ExpectQuery("FROM book_narrators").
		WithArgs(asins).
		WillReturnRows(mock.NewRows([]string{"book_asin", "narrator_name"}).
			AddRow("B000000001", "Ray Porter"))
	mock.ExpectQuery("FROM book_genres bg JOIN genres g").
		WithArgs(asins).
		WillReturnRows(mock.NewRows([]string{"book_asin", "asin", "name", "type"}).
			AddRow("B000000001", "g1", "Science Fiction", catalog.GenreTypeGenre))
	mock.ExpectQuery("FROM book_series bs JOIN series sr").
		WithArgs(asins).
		WillReturnRows(mock.NewRows([]string{"book_asin", "asin", "title", "description", "fetched_description", "series_position"}))

	books, err := s.GetBooks(context.Background(), asins)
	require.NoError(t, err)
	require.Len(t, books, 1)

	b := books[0]
	assert.Equal(t, "Project Hail Mary", b.Title)
	require.Len(t, b.Authors, 1)
	assert.Equal(t, int64(7), b.Authors[0].ID)
	require.Len(t, b.Narrators, 1)
	assert.Equal(t, "Ray Porter", b.Narrators[0].Name)
	require.Len(t, b.Genres, 1)
	assert.Empty(t, b.Series)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBooksEmptyInput(t *testing.T) {
	t.Parallel()

	_, s := newMockStore(t)
	books, err := s.GetBooks(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, books)
}

func TestSaveAuthorOverwritesDetailFields(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	desc := "writes about space"
	asin := "B00G0WYW92"

	mock.ExpectQuery("INSERT INTO authors").
		WithArgs(&asin, catalog.RegionUS, "Andy Weir", &desc, (*string)(nil), false).
		WillReturnRows(mock.NewRows([]string{"id", "asin", "region", "name", "description", "image", "no_description"}).
			AddRow(int64(7), &asin, catalog.RegionUS, "Andy Weir", &desc, nil, false))

	saved, err := s.SaveAuthor(context.Background(), catalog.Author{
		ASIN:        &asin,
		Region:      catalog.RegionUS,
		Name:        "Andy Weir",
		Description: &desc,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), saved.ID)
	require.NotNil(t, saved.Description)
	assert.Equal(t, desc, *saved.Description)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAuthorsByASINNotFound(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	mock.ExpectQuery("FROM authors WHERE asin").
		WithArgs("B000MISSING").
		WillReturnRows(mock.NewRows([]string{"id", "asin", "region", "name", "description", "image", "no_description"}))

	_, err := s.GetAuthorsByASIN(context.Background(), "B000MISSING")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchCacheGetIncrementsHits(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	mock.ExpectQuery("UPDATE search_cache SET hits = hits").
		WithArgs("books.abc").
		WillReturnRows(mock.NewRows([]string{"asins"}).AddRow([]string{"B1", "B2"}))

	asins, err := s.Get(context.Background(), "books.abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2"}, asins)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchCacheGetMiss(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	mock.ExpectQuery("UPDATE search_cache SET hits = hits").
		WithArgs("books.miss").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "books.miss")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatchClassifiesUniqueViolation(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO genres").
		WithArgs("g1", "Science Fiction", catalog.GenreTypeGenre).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "genres_pkey"})
	mock.ExpectRollback()

	batch := catalog.MergeBatch([]catalog.Book{{
		ASIN: "B000000001", Region: catalog.RegionUS, Title: "One",
		Genres: []catalog.Genre{{ASIN: "g1", Name: "Science Fiction", Type: catalog.GenreTypeGenre}},
	}})

	_, err := s.ApplyBatch(context.Background(), batch)
	assert.ErrorIs(t, err, store.ErrUniqueViolation)
	assert.True(t, store.RetryableWrite(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatchCommitsAndAssignsAuthorIDs(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	authorASIN := "B00G0WYW92"
	book := catalog.Book{
		ASIN: "B000000001", Region: catalog.RegionUS, Title: "One",
		Authors: []catalog.Author{{ASIN: &authorASIN, Region: catalog.RegionUS, Name: "Andy Weir"}},
	}
	batch := catalog.MergeBatch([]catalog.Book{book})

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO authors").
		WithArgs(&authorASIN, catalog.RegionUS, "Andy Weir", (*string)(nil)).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec("INSERT INTO books").
		WithArgs(
			"B000000001", catalog.RegionUS, "One", (*string)(nil), (*string)(nil), (*string)(nil),
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			(*float64)(nil), (*time.Time)(nil), false, false, false,
			(*int)(nil), (*string)(nil), (*string)(nil),
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM author_books").
		WithArgs("B000000001").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO author_books").
		WithArgs(int64(42), "B000000001").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM book_narrators").
		WithArgs("B000000001").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM book_genres").
		WithArgs("B000000001").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM book_series").
		WithArgs("B000000001").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	written, err := s.ApplyBatch(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, written, 1)
	require.Len(t, written[0].Authors, 1)
	assert.Equal(t, int64(42), written[0].Authors[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyDeadlock(t *testing.T) {
	t.Parallel()

	err := classify(&pgconn.PgError{Code: "40P01"})
	assert.ErrorIs(t, err, store.ErrDeadlock)

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
	assert.NoError(t, classify(nil))
}
