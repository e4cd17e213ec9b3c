package audible

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, RequestsPerSec: 1000}, zap.NewNop())
}

func TestFetchCatalogToleratesPartialResults(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1.0/catalog/products", r.URL.Path)
		assert.Equal(t, "B000000001,B000000002", r.URL.Query().Get("asins"))
		fmt.Fprint(w, `{"products":[{"asin":"B000000001","title":"Only One Came Back"}],"total_results":1}`)
	}))

	products, err := client.FetchCatalog(context.Background(), []string{"B000000001", "B000000002"}, catalog.RegionUS)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "B000000001", products[0].ASIN)
}

func TestFetchProductNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.FetchProduct(context.Background(), "B000MISSING", catalog.RegionUS)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchProductEmptyBodyIsNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"product":{}}`)
	}))

	_, err := client.FetchProduct(context.Background(), "B000MISSING", catalog.RegionUS)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchProductServerErrorIsNotNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.FetchProduct(context.Background(), "B000000001", catalog.RegionUS)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFetchChapters(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1.0/content/B000000001/metadata", r.URL.Path)
		fmt.Fprint(w, `{"content_metadata":{"chapter_info":{
			"is_accurate":true,"runtime_length_ms":3600000,
			"chapters":[{"title":"Chapter 1","length_ms":1800000,"start_offset_ms":0,"start_offset_sec":0},
			            {"title":"Chapter 2","length_ms":1800000,"start_offset_ms":1800000,"start_offset_sec":1800}]}}}`)
	}))

	track, err := client.FetchChapters(context.Background(), "B000000001", catalog.RegionUS)
	require.NoError(t, err)
	assert.Equal(t, "B000000001", track.ASIN)
	assert.True(t, track.IsAccurate)
	require.Len(t, track.Chapters, 2)
	assert.Equal(t, "Chapter 2", track.Chapters[1].Title)
	assert.Equal(t, int64(1800), track.Chapters[1].StartOffsetSec)
}

func TestSearchProductsPassesQuery(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hail mary", r.URL.Query().Get("title"))
		assert.Equal(t, "weir", r.URL.Query().Get("author"))
		fmt.Fprint(w, `{"products":[{"asin":"B000000001","title":"Project Hail Mary"}]}`)
	}))

	products, err := client.SearchProducts(context.Background(), "hail mary", "weir", catalog.RegionUS, 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
}
