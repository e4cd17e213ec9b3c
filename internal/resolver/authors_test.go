package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

func TestGetAuthorRefetchesWhenDetailMissing(t *testing.T) {
	t.Parallel()

	asin := "A000000001"
	st := newFakeStore()
	st.authors = []catalog.Author{{ID: 1, ASIN: &asin, Region: catalog.RegionUS, Name: "Sparse Author"}}

	desc := "filled in by detail page"
	img := "https://img.example/a.jpg"
	details := &fakeDetails{author: catalog.Author{
		ASIN: &asin, Region: catalog.RegionUS, Name: "Sparse Author",
		Description: &desc, Image: &img,
	}}

	svc := newService(st, newFakeCache(), newFakeUpstream(), details, fastConfig())
	author, err := svc.GetAuthor(context.Background(), asin, catalog.RegionUS, false)
	require.NoError(t, err)
	assert.Equal(t, 1, details.calls, "missing description triggers a detail fetch")
	require.NotNil(t, author.Description)
	assert.Equal(t, desc, *author.Description)
}

func TestGetAuthorConfirmedAbsentIsNotRefetched(t *testing.T) {
	t.Parallel()

	asin := "A000000001"
	st := newFakeStore()
	st.authors = []catalog.Author{{
		ID: 1, ASIN: &asin, Region: catalog.RegionUS, Name: "Quiet Author",
		NoDescription: true,
	}}
	details := &fakeDetails{}

	svc := newService(st, newFakeCache(), newFakeUpstream(), details, fastConfig())
	author, err := svc.GetAuthor(context.Background(), asin, catalog.RegionUS, false)
	require.NoError(t, err)
	assert.Equal(t, 0, details.calls, "confirmed-absent author served from storage")
	assert.Equal(t, "Quiet Author", author.Name)
}

func TestGetAuthorForceRefresh(t *testing.T) {
	t.Parallel()

	asin := "A000000001"
	desc := "old"
	st := newFakeStore()
	st.authors = []catalog.Author{{
		ID: 1, ASIN: &asin, Region: catalog.RegionUS, Name: "Complete Author",
		Description: &desc, Image: &desc,
	}}
	newDesc := "new"
	details := &fakeDetails{author: catalog.Author{
		ASIN: &asin, Region: catalog.RegionUS, Name: "Complete Author",
		Description: &newDesc, Image: &newDesc,
	}}

	svc := newService(st, newFakeCache(), newFakeUpstream(), details, fastConfig())
	author, err := svc.GetAuthor(context.Background(), asin, catalog.RegionUS, true)
	require.NoError(t, err)
	assert.Equal(t, 1, details.calls)
	assert.Equal(t, "new", *author.Description)
}

func TestGetAuthorDetailFailureServesStoredRow(t *testing.T) {
	t.Parallel()

	asin := "A000000001"
	st := newFakeStore()
	st.authors = []catalog.Author{{ID: 1, ASIN: &asin, Region: catalog.RegionUS, Name: "Sparse Author"}}
	details := &fakeDetails{err: assert.AnError}

	svc := newService(st, newFakeCache(), newFakeUpstream(), details, fastConfig())
	author, err := svc.GetAuthor(context.Background(), asin, catalog.RegionUS, false)
	require.NoError(t, err)
	assert.Equal(t, "Sparse Author", author.Name)
}

func TestGetAuthorUnknownIsNotFound(t *testing.T) {
	t.Parallel()

	details := &fakeDetails{err: assert.AnError}
	svc := newService(newFakeStore(), newFakeCache(), newFakeUpstream(), details, fastConfig())
	_, err := svc.GetAuthor(context.Background(), "A000MISSING", catalog.RegionUS, false)
	assert.Error(t, err)
}

func TestAuthorBooksCacheHitSkipsListing(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.books["B1"] = catalog.Book{ASIN: "B1", Title: "Cached One"}
	st.books["B2"] = catalog.Book{ASIN: "B2", Title: "Cached Two"}
	cache := newFakeCache()
	up := newFakeUpstream()

	svc := newService(st, cache, up, &fakeDetails{}, fastConfig())

	// Seed the cache by resolving once without it.
	up.listPages = [][]catalog.RawProduct{{rawBook("B1", "One"), rawBook("B2", "Two")}}
	_, err := svc.AuthorBooks(context.Background(), "A000000001", catalog.RegionUS, false)
	require.NoError(t, err)
	require.Equal(t, 1, cache.putCalls, "bypass still writes back")

	books, err := svc.AuthorBooks(context.Background(), "A000000001", catalog.RegionUS, true)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, 1, up.listCalls, "second resolution served from cache")
}

func TestAuthorBooksListingOrderPreserved(t *testing.T) {
	t.Parallel()

	up := newFakeUpstream()
	up.listPages = [][]catalog.RawProduct{
		{rawBook("B2", "Second"), rawBook("B1", "First")},
		{rawBook("B3", "Third")},
	}

	svc := newService(newFakeStore(), newFakeCache(), up, &fakeDetails{}, fastConfig())
	books, err := svc.AuthorBooks(context.Background(), "A000000001", catalog.RegionUS, false)
	require.NoError(t, err)

	got := make([]string, len(books))
	for i, b := range books {
		got[i] = b.ASIN
	}
	assert.Equal(t, []string{"B2", "B1", "B3"}, got)
}

func TestFindAuthorFallsBackToUpstreamSearch(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	up := newFakeUpstream()
	authorASIN := "A000000001"
	prod := rawBook("B1", "Found Via Search")
	prod.Authors = []catalog.RawPerson{{ASIN: authorASIN, Name: "Searchable Author"}}
	up.searchResults = []catalog.RawProduct{prod}

	svc := newService(st, newFakeCache(), up, &fakeDetails{}, fastConfig())
	author, err := svc.FindAuthor(context.Background(), "Searchable", catalog.RegionUS)
	require.NoError(t, err)
	assert.Equal(t, "Searchable Author", author.Name)
	assert.Equal(t, 1, up.searchCalls)

	// Second lookup is served from storage.
	_, err = svc.FindAuthor(context.Background(), "Searchable", catalog.RegionUS)
	require.NoError(t, err)
	assert.Equal(t, 1, up.searchCalls)
}

func TestFindAuthorUnknown(t *testing.T) {
	t.Parallel()

	svc := newService(newFakeStore(), newFakeCache(), newFakeUpstream(), &fakeDetails{}, fastConfig())
	_, err := svc.FindAuthor(context.Background(), "Nobody", catalog.RegionUS)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
