package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/metrics"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

// ResolveBooks returns the requested books in request order. Stored books
// are served as-is unless forceRefresh is set; missing ids are fetched from
// upstream in chunks, normalized, committed, and merged into the result.
// Ids that resolve to nothing after a genuine fetch are omitted.
func (s *Service) ResolveBooks(ctx context.Context, asins []string, region catalog.Region, forceRefresh bool) ([]catalog.Book, error) {
	if len(asins) == 0 {
		return nil, nil
	}

	have := make(map[string]catalog.Book, len(asins))
	if !forceRefresh {
		stored, err := s.store.GetBooks(ctx, asins)
		if err != nil {
			return nil, fmt.Errorf("load stored books: %w", err)
		}
		for _, b := range stored {
			have[b.ASIN] = b
		}
		metrics.ObserveBooksResolved("store", len(stored))
	}

	var missing []string
	seen := make(map[string]bool, len(asins))
	for _, asin := range asins {
		if seen[asin] {
			continue
		}
		seen[asin] = true
		if _, ok := have[asin]; !ok {
			missing = append(missing, asin)
		}
	}

	if len(missing) > 0 {
		raws, fetchErr := s.fetchChunks(ctx, missing, region)
		var fresh []catalog.Book
		for _, raw := range raws {
			if b, ok := catalog.Normalize(raw, region); ok {
				fresh = append(fresh, b)
			}
		}
		if len(fresh) > 0 {
			written, err := s.commitBatch(ctx, catalog.MergeBatch(fresh))
			if err != nil {
				return nil, err
			}
			for _, b := range written {
				have[b.ASIN] = b
			}
			metrics.ObserveBooksResolved("upstream", len(written))
		}
		// Every chunk failing with nothing stored means the caller gets
		// nothing at all; that deserves an error, partial results do not.
		if fetchErr != nil && len(have) == 0 {
			return nil, fetchErr
		}
	}

	out := make([]catalog.Book, 0, len(have))
	for _, asin := range asins {
		if b, ok := have[asin]; ok {
			out = append(out, b)
			delete(have, asin)
		}
	}
	return out, nil
}

// GetBook resolves a single book; an id that resolves to nothing maps to
// ErrNotFound instead of an empty slice.
func (s *Service) GetBook(ctx context.Context, asin string, region catalog.Region, forceRefresh bool) (catalog.Book, error) {
	books, err := s.ResolveBooks(ctx, []string{asin}, region, forceRefresh)
	if err != nil {
		return catalog.Book{}, err
	}
	if len(books) == 0 {
		return catalog.Book{}, fmt.Errorf("book %s: %w", asin, store.ErrNotFound)
	}
	return books[0], nil
}

// fetchChunks fans the missing ids out to upstream in fixed-size chunks.
// Chunks run concurrently with staggered starts; a failed chunk is logged
// and skipped so its siblings still resolve. The returned error is the last
// chunk failure, non-nil only when at least one chunk failed.
func (s *Service) fetchChunks(ctx context.Context, asins []string, region catalog.Region) ([]catalog.RawProduct, error) {
	chunks := chunkStrings(asins, s.cfg.ChunkSize)
	results := make([][]catalog.RawProduct, len(chunks))

	var mu sync.Mutex
	var lastErr error

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			if i > 0 && s.cfg.ChunkStagger > 0 {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-time.After(time.Duration(i) * s.cfg.ChunkStagger):
				}
			}
			start := time.Now()
			raws, err := s.upstream.FetchCatalog(gctx, chunk, region)
			if err != nil {
				metrics.ObserveUpstreamRequest("catalog", "error", time.Since(start))
				s.logger.Warn("catalog chunk fetch failed",
					zap.Int("chunk", i),
					zap.Int("asins", len(chunk)),
					zap.String("region", string(region)),
					zap.Error(err))
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			metrics.ObserveUpstreamRequest("catalog", "ok", time.Since(start))
			results[i] = raws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []catalog.RawProduct
	for _, r := range results {
		all = append(all, r...)
	}
	return all, lastErr
}

func chunkStrings(items []string, size int) [][]string {
	var chunks [][]string
	for len(items) > size {
		chunks = append(chunks, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}
