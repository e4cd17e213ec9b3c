package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/audiobookdb/audiobookdb/internal/audible"
	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

// GetChapters resolves a book's chapter track, write-through on fetch.
func (s *Service) GetChapters(ctx context.Context, asin string, region catalog.Region, forceRefresh bool) (catalog.Track, error) {
	if !forceRefresh {
		track, err := s.store.GetTrack(ctx, asin)
		if err == nil {
			return track, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return catalog.Track{}, fmt.Errorf("load track %s: %w", asin, err)
		}
	}

	track, err := s.upstream.FetchChapters(ctx, asin, region)
	if err != nil {
		if errors.Is(err, audible.ErrNotFound) {
			// forceRefresh skipped the read above; an existing track is
			// still better than nothing when upstream has dropped it.
			if stored, gerr := s.store.GetTrack(ctx, asin); gerr == nil {
				return stored, nil
			}
			return catalog.Track{}, fmt.Errorf("chapters %s: %w", asin, store.ErrNotFound)
		}
		return catalog.Track{}, fmt.Errorf("fetch chapters %s: %w", asin, err)
	}

	if err := s.store.SaveTrack(ctx, track); err != nil {
		return catalog.Track{}, fmt.Errorf("save track %s: %w", asin, err)
	}
	return track, nil
}
