package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/audible"
	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/metrics"
	"github.com/audiobookdb/audiobookdb/internal/searchcache"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

// authorStale reports whether a stored author must be refetched. An author
// missing description or image is stale until a detail fetch confirms the
// absence; after that it is served from storage indefinitely.
func authorStale(a catalog.Author, forceRefresh bool) bool {
	if forceRefresh {
		return true
	}
	if a.NoDescription {
		return false
	}
	return a.Description == nil || a.Image == nil
}

// GetAuthor resolves one author, refetching the detail page when the stored
// row is stale. A detail-fetch failure degrades to the stored row when one
// exists rather than failing the request.
func (s *Service) GetAuthor(ctx context.Context, asin string, region catalog.Region, forceRefresh bool) (catalog.Author, error) {
	var current *catalog.Author
	stored, err := s.store.GetAuthorsByASIN(ctx, asin)
	switch {
	case err == nil:
		current = &stored[0]
		for i := range stored {
			if stored[i].Region == region {
				current = &stored[i]
				break
			}
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return catalog.Author{}, fmt.Errorf("load author %s: %w", asin, err)
	}

	if current != nil && !authorStale(*current, forceRefresh) {
		return *current, nil
	}

	detail, err := s.details.FetchAuthorDetail(ctx, asin, region)
	if err != nil {
		if current != nil {
			s.logger.Warn("author detail fetch failed, serving stored row",
				zap.String("asin", asin), zap.Error(err))
			return *current, nil
		}
		if errors.Is(err, audible.ErrNotFound) {
			return catalog.Author{}, fmt.Errorf("author %s: %w", asin, store.ErrNotFound)
		}
		return catalog.Author{}, fmt.Errorf("fetch author %s: %w", asin, err)
	}

	saved, err := s.store.SaveAuthor(ctx, detail)
	if err != nil {
		return catalog.Author{}, fmt.Errorf("save author %s: %w", asin, err)
	}
	return saved, nil
}

// AuthorBooks resolves the books credited to an author. The resolved ASIN
// list is cached under a stable key; useCache=false skips the read but the
// fresh result is written back either way.
func (s *Service) AuthorBooks(ctx context.Context, asin string, region catalog.Region, useCache bool) ([]catalog.Book, error) {
	key := searchcache.Key("author-books", asin, string(region))
	if useCache {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			metrics.ObserveSearchCache("hit")
			return s.ResolveBooks(ctx, cached, region, false)
		} else if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.ObserveSearchCache("miss")
	} else {
		metrics.ObserveSearchCache("bypass")
	}

	raws, err := s.upstream.ListAuthorBooks(asin, region).Collect(ctx)
	if err != nil && len(raws) == 0 {
		return nil, fmt.Errorf("list author books %s: %w", asin, err)
	}

	var fresh []catalog.Book
	order := make([]string, 0, len(raws))
	for _, raw := range raws {
		if b, ok := catalog.Normalize(raw, region); ok {
			fresh = append(fresh, b)
			order = append(order, b.ASIN)
		}
	}
	written, err := s.commitBatch(ctx, catalog.MergeBatch(fresh))
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, key, order); err != nil {
		s.logger.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
	}
	catalog.SortByRequested(written, order)
	return written, nil
}

// FindAuthor resolves an author by display name: stored rows first, then an
// upstream search whose results are committed before the lookup re-runs.
func (s *Service) FindAuthor(ctx context.Context, name string, region catalog.Region) (catalog.Author, error) {
	a, err := s.store.FindAuthorByName(ctx, name)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return catalog.Author{}, fmt.Errorf("find author %q: %w", name, err)
	}

	raws, err := s.upstream.SearchProducts(ctx, "", name, region, s.cfg.SearchLimit)
	if err != nil {
		return catalog.Author{}, fmt.Errorf("search author %q: %w", name, err)
	}
	var fresh []catalog.Book
	for _, raw := range raws {
		if b, ok := catalog.Normalize(raw, region); ok {
			fresh = append(fresh, b)
		}
	}
	if _, err := s.commitBatch(ctx, catalog.MergeBatch(fresh)); err != nil {
		return catalog.Author{}, err
	}

	a, err = s.store.FindAuthorByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return catalog.Author{}, fmt.Errorf("author %q: %w", name, store.ErrNotFound)
		}
		return catalog.Author{}, fmt.Errorf("find author %q: %w", name, err)
	}
	return a, nil
}
