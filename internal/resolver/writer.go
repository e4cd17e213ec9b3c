package resolver

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/metrics"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

// WriteError reports a commit that failed after exhausting conflict
// retries. The correlation id also appears in the error log so an operator
// can find the failing batch from a user-reported error response.
type WriteError struct {
	CorrelationID string
	Err           error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("batch write failed after retries (correlation id %s)", e.CorrelationID)
}

func (e *WriteError) Unwrap() error { return e.Err }

// commitBatch applies a batch through the store, retrying unique-violation
// and deadlock failures. Concurrent requests for overlapping ASIN sets race
// to insert the same author/genre/series rows; the loser of such a race
// sees the winner's committed row on its next attempt.
func (s *Service) commitBatch(ctx context.Context, batch catalog.Batch) ([]catalog.Book, error) {
	if batch.Empty() {
		return nil, nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxCommitAttempts; attempt++ {
		written, err := s.store.ApplyBatch(ctx, batch)
		if err == nil {
			metrics.ObserveCommitAttempt("ok")
			return written, nil
		}
		if !store.RetryableWrite(err) {
			metrics.ObserveCommitAttempt("fatal")
			return nil, fmt.Errorf("commit batch: %w", err)
		}
		metrics.ObserveCommitAttempt("conflict")
		lastErr = err
		if attempt == s.cfg.MaxCommitAttempts {
			break
		}

		delay := (s.cfg.CommitBase + randomJitter(s.cfg.CommitJitter)) * time.Duration(attempt)
		s.logger.Debug("write conflict, retrying commit",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	id := uuid.NewString()
	metrics.ObserveCommitExhausted()
	s.logger.Error("write retries exhausted",
		zap.String("correlation_id", id),
		zap.Int("attempts", s.cfg.MaxCommitAttempts),
		zap.Int("books", len(batch.Books)),
		zap.Error(lastErr))
	return nil, &WriteError{CorrelationID: id, Err: lastErr}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}
