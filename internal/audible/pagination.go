package audible

import (
	"context"
	"fmt"
	"net/url"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
)

// maxListingPages bounds pagination walks. The provider does not always
// signal end-of-pagination, so without a cap a listing walk could loop on a
// repeated continuation token forever.
const maxListingPages = 10

// PageIterator walks a paginated catalog listing sequentially. Each page's
// continuation token seeds the next request; the iterator stops when the
// provider omits the token, returns an empty page, or the page cap is hit.
// Restartable from a saved token via ResumeFrom.
type PageIterator struct {
	client *Client
	region catalog.Region
	path   string
	params url.Values

	token string
	pages int
	done  bool
}

// ListAuthorBooks returns an iterator over the catalog listing of an
// author's books.
func (c *Client) ListAuthorBooks(authorASIN string, region catalog.Region) *PageIterator {
	params := url.Values{}
	params.Set("author_asin", authorASIN)
	params.Set("response_groups", responseGroups)
	params.Set("num_results", "50")
	return &PageIterator{
		client: c,
		region: region,
		path:   "/1.0/catalog/products",
		params: params,
	}
}

// ResumeFrom seeds the iterator with a previously observed continuation
// token so a walk can continue where an earlier one stopped.
func (it *PageIterator) ResumeFrom(token string) *PageIterator {
	it.token = token
	return it
}

// Token returns the continuation token of the most recent page.
func (it *PageIterator) Token() string { return it.token }

// Next fetches the next page. ok=false means the walk is exhausted; the
// error is non-nil only for fetch failures, which also end the walk.
func (it *PageIterator) Next(ctx context.Context) ([]catalog.RawProduct, bool, error) {
	if it.done {
		return nil, false, nil
	}
	if it.pages >= maxListingPages {
		it.done = true
		return nil, false, nil
	}
	it.pages++

	params := url.Values{}
	for k, v := range it.params {
		params[k] = v
	}
	if it.token != "" {
		params.Set("continuation_token", it.token)
	}

	var resp productsResponse
	if err := it.client.getJSON(ctx, it.region, it.path, params, &resp); err != nil {
		it.done = true
		return nil, false, fmt.Errorf("listing page %d: %w", it.pages, err)
	}
	if len(resp.Products) == 0 {
		it.done = true
		return nil, false, nil
	}
	if resp.ContinuationToken == "" || resp.ContinuationToken == it.token {
		it.done = true
	}
	it.token = resp.ContinuationToken
	return resp.Products, true, nil
}

// Collect drains the iterator into one slice.
func (it *PageIterator) Collect(ctx context.Context) ([]catalog.RawProduct, error) {
	var all []catalog.RawProduct
	for {
		page, ok, err := it.Next(ctx)
		if err != nil {
			return all, err
		}
		if !ok {
			return all, nil
		}
		all = append(all, page...)
	}
}
