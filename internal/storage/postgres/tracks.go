package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
)

// GetTrack returns a book's chapter track or ErrNotFound.
func (s *Store) GetTrack(ctx context.Context, asin string) (catalog.Track, error) {
	var t catalog.Track
	var chapters []byte
	err := s.db.QueryRow(ctx,
		"SELECT asin, chapters, is_accurate, runtime_length_ms FROM tracks WHERE asin = $1",
		asin).Scan(&t.ASIN, &chapters, &t.IsAccurate, &t.RuntimeLengthMs)
	if err != nil {
		return catalog.Track{}, fmt.Errorf("select track %s: %w", asin, classify(err))
	}
	if err := json.Unmarshal(chapters, &t.Chapters); err != nil {
		return catalog.Track{}, fmt.Errorf("decode chapters for %s: %w", asin, err)
	}
	return t, nil
}

// SaveTrack upserts a chapter track, chapters stored as a JSONB document.
func (s *Store) SaveTrack(ctx context.Context, t catalog.Track) error {
	chapters, err := json.Marshal(t.Chapters)
	if err != nil {
		return fmt.Errorf("encode chapters for %s: %w", t.ASIN, err)
	}
	_, err = s.db.Exec(ctx, `
INSERT INTO tracks (asin, chapters, is_accurate, runtime_length_ms)
VALUES ($1, $2, $3, $4)
ON CONFLICT (asin) DO UPDATE SET
	chapters = EXCLUDED.chapters,
	is_accurate = EXCLUDED.is_accurate,
	runtime_length_ms = EXCLUDED.runtime_length_ms`,
		t.ASIN, chapters, t.IsAccurate, t.RuntimeLengthMs)
	if err != nil {
		return fmt.Errorf("save track %s: %w", t.ASIN, classify(err))
	}
	return nil
}
