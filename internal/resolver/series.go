package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/audible"
	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/metrics"
	"github.com/audiobookdb/audiobookdb/internal/searchcache"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

// seriesStale mirrors authorStale: a missing description only forces a
// refetch until one fetch has confirmed there is none.
func seriesStale(sr catalog.Series, forceRefresh bool) bool {
	if forceRefresh {
		return true
	}
	if sr.FetchedDescription {
		return false
	}
	return sr.Description == nil
}

// GetSeries resolves one series, fetching its catalog record when the
// stored row is missing or stale.
func (s *Service) GetSeries(ctx context.Context, asin string, region catalog.Region, forceRefresh bool) (catalog.Series, error) {
	var current *catalog.Series
	stored, err := s.store.GetSeries(ctx, asin)
	switch {
	case err == nil:
		current = &stored
	case errors.Is(err, store.ErrNotFound):
	default:
		return catalog.Series{}, fmt.Errorf("load series %s: %w", asin, err)
	}

	if current != nil && !seriesStale(*current, forceRefresh) {
		return *current, nil
	}

	prod, err := s.upstream.FetchProduct(ctx, asin, region)
	if err != nil {
		if current != nil {
			s.logger.Warn("series fetch failed, serving stored row",
				zap.String("asin", asin), zap.Error(err))
			return *current, nil
		}
		if errors.Is(err, audible.ErrNotFound) {
			return catalog.Series{}, fmt.Errorf("series %s: %w", asin, store.ErrNotFound)
		}
		return catalog.Series{}, fmt.Errorf("fetch series %s: %w", asin, err)
	}

	title := strings.Join(strings.Fields(prod.Title), " ")
	if title == "" {
		if current != nil {
			return *current, nil
		}
		return catalog.Series{}, fmt.Errorf("series %s: %w", asin, store.ErrNotFound)
	}
	fresh := catalog.Series{
		ASIN:  asin,
		Title: title,
		// A fetch that came back with no summary is a confirmed absence.
		FetchedDescription: true,
	}
	if desc := strings.Join(strings.Fields(prod.PublisherSummary), " "); desc != "" {
		fresh.Description = &desc
	} else if desc := strings.Join(strings.Fields(prod.MerchandisingSummary), " "); desc != "" {
		fresh.Description = &desc
	}

	saved, err := s.store.SaveSeries(ctx, fresh)
	if err != nil {
		return catalog.Series{}, fmt.Errorf("save series %s: %w", asin, err)
	}
	return saved, nil
}

// SeriesBooks resolves the books in a series, ordered by series position
// with "0" and absent positions last. When nothing is stored locally the
// series' catalog record supplies the child ASINs to resolve.
func (s *Service) SeriesBooks(ctx context.Context, seriesASIN string, region catalog.Region, useCache bool) ([]catalog.Book, error) {
	key := searchcache.Key("series-books", seriesASIN, string(region))
	if useCache {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			metrics.ObserveSearchCache("hit")
			books, err := s.ResolveBooks(ctx, cached, region, false)
			if err != nil {
				return nil, err
			}
			catalog.SortBySeriesPosition(books, seriesASIN)
			return books, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.ObserveSearchCache("miss")
	} else {
		metrics.ObserveSearchCache("bypass")
	}

	books, err := s.store.GetBooksBySeries(ctx, seriesASIN, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load series books %s: %w", seriesASIN, err)
	}
	if len(books) == 0 {
		prod, err := s.upstream.FetchProduct(ctx, seriesASIN, region)
		if err != nil {
			if errors.Is(err, audible.ErrNotFound) {
				return nil, fmt.Errorf("series %s: %w", seriesASIN, store.ErrNotFound)
			}
			return nil, fmt.Errorf("fetch series %s: %w", seriesASIN, err)
		}
		var children []string
		for _, rel := range prod.Relationships {
			if rel.RelationshipToProduct == "child" && rel.ASIN != "" {
				children = append(children, rel.ASIN)
			}
		}
		books, err = s.ResolveBooks(ctx, children, region, false)
		if err != nil {
			return nil, err
		}
	}

	catalog.SortBySeriesPosition(books, seriesASIN)
	order := make([]string, len(books))
	for i, b := range books {
		order[i] = b.ASIN
	}
	if err := s.cache.Put(ctx, key, order); err != nil {
		s.logger.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
	}
	return books, nil
}

// FindSeries resolves series by title fragment from storage.
func (s *Service) FindSeries(ctx context.Context, title string) ([]catalog.Series, error) {
	out, err := s.store.SearchSeriesByTitle(ctx, title, s.cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search series %q: %w", title, err)
	}
	return out, nil
}
