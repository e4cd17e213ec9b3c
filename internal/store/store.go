// Package store declares the persistence interfaces the reconciliation
// engine depends on. Implementations live in other packages (see
// storage/postgres); this package must not import database drivers.
package store

import (
	"context"
	"errors"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
)

// Typed write/read failures. The storage implementation classifies driver
// errors into these sentinels so callers never match on error text.
var (
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUniqueViolation signals a unique-constraint conflict, usually a
	// lost race against a concurrent writer inserting the same natural key.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrDeadlock signals the transaction was chosen as a deadlock victim.
	ErrDeadlock = errors.New("deadlock detected")
)

// RetryableWrite reports whether err is a write conflict that a retry can
// resolve once the winning transaction has committed.
func RetryableWrite(err error) bool {
	return errors.Is(err, ErrUniqueViolation) || errors.Is(err, ErrDeadlock)
}

// RelationKind names one of a book's four relation sets.
type RelationKind string

// Relation kinds subject to wholesale replacement.
const (
	RelationAuthors   RelationKind = "authors"
	RelationNarrators RelationKind = "narrators"
	RelationGenres    RelationKind = "genres"
	RelationSeries    RelationKind = "series"
)

// SeriesLink is one series membership row for relation replacement.
type SeriesLink struct {
	SeriesASIN string
	Position   *string
}

// RelationSet carries the replacement rows for one RelationKind; only the
// field matching the kind is consulted.
type RelationSet struct {
	AuthorIDs []int64
	Narrators []string
	Genres    []string
	Series    []SeriesLink
}

// SearchFilter narrows the cross-region fallback book search. Title matches
// title, subtitle or summary; Author matches any linked author name. Both
// are case-insensitive substring matches.
type SearchFilter struct {
	Title  string
	Author string
	Limit  int
	Offset int
}

// CatalogStore is the transactional relational store for catalog entities.
//
// Every upsert is unconditional: the store never assumes "skip when the
// natural key exists with an identical payload". Relation sets always
// mirror the most recent upstream snapshot via ReplaceRelations.
type CatalogStore interface {
	// GetBooks loads books by ASIN with all relations attached. Missing
	// ASINs are simply absent from the result.
	GetBooks(ctx context.Context, asins []string) ([]catalog.Book, error)
	// GetBooksBySeries loads the books linked to a series.
	GetBooksBySeries(ctx context.Context, seriesASIN string, limit, offset int) ([]catalog.Book, error)
	// SearchBooks runs the cross-region fallback search.
	SearchBooks(ctx context.Context, f SearchFilter) ([]catalog.Book, error)

	// ApplyBatch writes a deduplicated batch as one transaction: genres,
	// authors (both key groups), narrators, series, books, then relation
	// replacement per book. It returns the books with freshly assigned
	// author row ids attached so the caller needs no second read.
	ApplyBatch(ctx context.Context, batch catalog.Batch) ([]catalog.Book, error)
	// ReplaceRelations replaces one of a book's relation sets wholesale.
	ReplaceRelations(ctx context.Context, bookASIN string, kind RelationKind, set RelationSet) error

	// GetAuthorsByASIN returns every stored row for the author identifier,
	// one per region the author was fetched under.
	GetAuthorsByASIN(ctx context.Context, asin string) ([]catalog.Author, error)
	// FindAuthorByName returns the first author whose name contains the
	// fragment, or ErrNotFound.
	FindAuthorByName(ctx context.Context, name string) (catalog.Author, error)
	// SaveAuthor upserts a detail-fetched author, overwriting description,
	// image and the confirmed-absent flag.
	SaveAuthor(ctx context.Context, a catalog.Author) (catalog.Author, error)

	// GetSeries returns one series or ErrNotFound.
	GetSeries(ctx context.Context, asin string) (catalog.Series, error)
	// SaveSeries upserts a detail-fetched series.
	SaveSeries(ctx context.Context, s catalog.Series) (catalog.Series, error)
	// SearchSeriesByTitle returns series whose title matches the fragment.
	SearchSeriesByTitle(ctx context.Context, title string, limit int) ([]catalog.Series, error)

	// GetTrack returns a book's chapter track or ErrNotFound.
	GetTrack(ctx context.Context, asin string) (catalog.Track, error)
	// SaveTrack upserts a chapter track.
	SaveTrack(ctx context.Context, t catalog.Track) error
}

// SearchCache maps a normalized query key to a previously resolved ordered
// ASIN list. Entries never expire; per-identifier staleness checks
// downstream are the refresh mechanism.
type SearchCache interface {
	// Get returns the cached ASINs and increments the entry's hit counter,
	// or ErrNotFound for an unknown key.
	Get(ctx context.Context, key string) ([]string, error)
	// Put stores (or replaces) the ASIN list for the key.
	Put(ctx context.Context, key string, asins []string) error
}
