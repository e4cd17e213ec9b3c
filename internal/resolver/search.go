package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/metrics"
	"github.com/audiobookdb/audiobookdb/internal/searchcache"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

// SearchBooks resolves a free-text title/author search. The region's
// upstream search runs first and its results are committed; if it yields
// nothing the stored catalog is searched across all regions, so data
// fetched under another region still satisfies the query. The resolved ASIN
// list is cached; useCache=false skips the read but still writes back.
func (s *Service) SearchBooks(ctx context.Context, title, author string, region catalog.Region, useCache bool) ([]catalog.Book, error) {
	if title == "" && author == "" {
		return nil, nil
	}

	key := searchcache.Key("books", title, author, string(region))
	if useCache {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			metrics.ObserveSearchCache("hit")
			books, err := s.ResolveBooks(ctx, cached, region, false)
			if err != nil {
				return nil, err
			}
			return books, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.ObserveSearchCache("miss")
	} else {
		metrics.ObserveSearchCache("bypass")
	}

	var books []catalog.Book
	raws, err := s.upstream.SearchProducts(ctx, title, author, region, s.cfg.SearchLimit)
	if err != nil {
		// Upstream search failure is not fatal: stored data may still
		// satisfy the query via the cross-region fallback below.
		s.logger.Warn("upstream search failed",
			zap.String("title", title),
			zap.String("author", author),
			zap.String("region", string(region)),
			zap.Error(err))
	} else {
		var fresh []catalog.Book
		order := make([]string, 0, len(raws))
		for _, raw := range raws {
			if b, ok := catalog.Normalize(raw, region); ok {
				fresh = append(fresh, b)
				order = append(order, b.ASIN)
			}
		}
		books, err = s.commitBatch(ctx, catalog.MergeBatch(fresh))
		if err != nil {
			return nil, err
		}
		catalog.SortByRequested(books, order)
	}

	if len(books) == 0 {
		books, err = s.store.SearchBooks(ctx, store.SearchFilter{
			Title:  title,
			Author: author,
			Limit:  s.cfg.SearchLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("fallback search: %w", err)
		}
	}

	order := make([]string, len(books))
	for i, b := range books {
		order[i] = b.ASIN
	}
	if err := s.cache.Put(ctx, key, order); err != nil {
		s.logger.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
	}
	return books, nil
}
