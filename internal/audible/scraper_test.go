package audible

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
)

const authorPage = `<html><body>
<h1 class="bc-heading">Andy  Weir</h1>
<img class="author-image-outline" src="https://img.example/author._SL200_.jpg">
<div class="bc-expander-content"><span>Andy Weir built a career writing about space.</span></div>
<a class="bc-color-link" href="/cat/Science-Fiction-Fantasy/18580606011?ref=nav">Science Fiction &amp; Fantasy</a>
<a class="bc-color-link" href="/cat/Science-Fiction-Fantasy/18580606011">Science Fiction &amp; Fantasy</a>
</body></html>`

func newTestScraper(t *testing.T, handler http.Handler) *Scraper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := NewScraper(ScraperConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestFetchAuthorDetailParsesPage(t *testing.T) {
	t.Parallel()

	s := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/author/B00G0WYW92", r.URL.Path)
		fmt.Fprint(w, authorPage)
	}))

	author, err := s.FetchAuthorDetail(context.Background(), "B00G0WYW92", catalog.RegionUS)
	require.NoError(t, err)

	assert.Equal(t, "Andy Weir", author.Name)
	require.NotNil(t, author.ASIN)
	assert.Equal(t, "B00G0WYW92", *author.ASIN)
	require.NotNil(t, author.Description)
	assert.Equal(t, "Andy Weir built a career writing about space.", *author.Description)
	assert.False(t, author.NoDescription)
	require.NotNil(t, author.Image)
	assert.Equal(t, "https://img.example/author.jpg", *author.Image, "size suffix stripped")
	require.Len(t, author.Genres, 1, "duplicate category links collapse")
	assert.Equal(t, "18580606011", author.Genres[0].ASIN)
}

func TestFetchAuthorDetailConfirmedAbsentDescription(t *testing.T) {
	t.Parallel()

	s := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1 class="bc-heading">Quiet Author</h1></body></html>`)
	}))

	author, err := s.FetchAuthorDetail(context.Background(), "B000QUIET1", catalog.RegionUS)
	require.NoError(t, err)
	assert.Nil(t, author.Description)
	assert.True(t, author.NoDescription)
}

func TestFetchAuthorDetailRetriesOn503(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, authorPage)
	}))

	author, err := s.FetchAuthorDetail(context.Background(), "B00G0WYW92", catalog.RegionUS)
	require.NoError(t, err)
	assert.Equal(t, "Andy Weir", author.Name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchAuthorDetailNotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := s.FetchAuthorDetail(context.Background(), "B000MISSING", catalog.RegionUS)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load(), "404 is authoritative, no retry")
}
