// Package resolver implements the catalog reconciliation engine: given
// requested identifiers and a region it decides what is already stored,
// fetches only what is missing or stale, normalizes and deduplicates the
// upstream payloads, commits them under concurrent writers, and returns
// results in the caller's order.
package resolver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/audible"
	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

// Upstream is the catalog fetch collaborator. It must tolerate partial
// results: fewer records than requested ids is not an error.
type Upstream interface {
	FetchCatalog(ctx context.Context, asins []string, region catalog.Region) ([]catalog.RawProduct, error)
	FetchProduct(ctx context.Context, asin string, region catalog.Region) (catalog.RawProduct, error)
	SearchProducts(ctx context.Context, title, author string, region catalog.Region, num int) ([]catalog.RawProduct, error)
	FetchChapters(ctx context.Context, asin string, region catalog.Region) (catalog.Track, error)
	ListAuthorBooks(authorASIN string, region catalog.Region) ProductPages
}

// ProductPages walks a paginated upstream listing.
type ProductPages interface {
	Next(ctx context.Context) ([]catalog.RawProduct, bool, error)
	Collect(ctx context.Context) ([]catalog.RawProduct, error)
}

// DetailFetcher is the HTML detail collaborator for author pages.
type DetailFetcher interface {
	FetchAuthorDetail(ctx context.Context, asin string, region catalog.Region) (catalog.Author, error)
}

// UpstreamClient adapts the concrete API client to the Upstream interface.
type UpstreamClient struct {
	*audible.Client
}

// ListAuthorBooks widens the client's iterator to the ProductPages interface.
func (u UpstreamClient) ListAuthorBooks(authorASIN string, region catalog.Region) ProductPages {
	return u.Client.ListAuthorBooks(authorASIN, region)
}

// Config tunes the cache-or-fetch engine.
type Config struct {
	// ChunkSize caps the ids per upstream catalog request.
	ChunkSize int
	// ChunkStagger delays each chunk after the first to smooth burst load.
	ChunkStagger time.Duration
	// MaxCommitAttempts bounds the write-conflict retry loop.
	MaxCommitAttempts int
	// CommitBase and CommitJitter shape the per-attempt retry delay:
	// (base + random jitter) scaled by the attempt number.
	CommitBase   time.Duration
	CommitJitter time.Duration
	// SearchLimit caps search result sizes.
	SearchLimit int
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 50
	}
	if c.MaxCommitAttempts <= 0 {
		c.MaxCommitAttempts = 10
	}
	if c.CommitBase <= 0 {
		c.CommitBase = 150 * time.Millisecond
	}
	if c.CommitJitter <= 0 {
		c.CommitJitter = 100 * time.Millisecond
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 25
	}
	return c
}

// Service is the reconciliation engine. All methods are safe for concurrent
// use; cross-request coordination happens through the store's optimistic
// writes, never through locks held here.
type Service struct {
	store    store.CatalogStore
	cache    store.SearchCache
	upstream Upstream
	details  DetailFetcher
	logger   *zap.Logger
	cfg      Config
}

// New constructs a Service.
func New(st store.CatalogStore, cache store.SearchCache, up Upstream, details DetailFetcher, logger *zap.Logger, cfg Config) *Service {
	return &Service{
		store:    st,
		cache:    cache,
		upstream: up,
		details:  details,
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}
}
