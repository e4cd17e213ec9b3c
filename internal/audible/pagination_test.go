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

func TestPageIteratorWalksContinuationTokens(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		token := r.URL.Query().Get("continuation_token")
		switch n {
		case 1:
			assert.Empty(t, token)
			fmt.Fprint(w, `{"products":[{"asin":"B1","title":"One"}],"continuation_token":"page2"}`)
		case 2:
			assert.Equal(t, "page2", token)
			fmt.Fprint(w, `{"products":[{"asin":"B2","title":"Two"}]}`)
		default:
			t.Errorf("unexpected page request %d", n)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{BaseURL: srv.URL, RequestsPerSec: 1000}, zap.NewNop())
	it := client.ListAuthorBooks("A000000001", catalog.RegionUS)

	products, err := it.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "B1", products[0].ASIN)
	assert.Equal(t, "B2", products[1].ASIN)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPageIteratorBoundedWhenUpstreamNeverEnds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		fmt.Fprintf(w, `{"products":[{"asin":"B%d","title":"Page"}],"continuation_token":"next%d"}`, n, n)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{BaseURL: srv.URL, RequestsPerSec: 1000}, zap.NewNop())
	it := client.ListAuthorBooks("A000000001", catalog.RegionUS)

	products, err := it.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, maxListingPages)
	assert.Equal(t, int32(maxListingPages), calls.Load())
}

func TestPageIteratorResumeFromToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "saved", r.URL.Query().Get("continuation_token"))
		fmt.Fprint(w, `{"products":[{"asin":"B9","title":"Resumed"}]}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{BaseURL: srv.URL, RequestsPerSec: 1000}, zap.NewNop())
	it := client.ListAuthorBooks("A000000001", catalog.RegionUS).ResumeFrom("saved")

	products, err := it.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "B9", products[0].ASIN)
}
