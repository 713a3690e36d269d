package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/401-Nick/lra-alerts/internal/logger"
	"github.com/401-Nick/lra-alerts/internal/models"
)

// DefaultBatchCeiling stays safely under the 500-operation hard limit the
// underlying store enforces per atomic batch.
const DefaultBatchCeiling = 450

// BatchStore commits one bounded slice of write operations atomically.
// The pgx implementation lives in internal/repository.
type BatchStore interface {
	WriteBatch(ctx context.Context, ops []models.WriteOp) error
}

// Writer applies a diff as a sequence of bounded atomic batches. Each full
// batch commits before the next is sent, so a large ingest is several
// sequential commits rather than one unbounded transaction. A failure
// mid-run leaves the earlier batches durable: state delivery is
// at-least-once, and reruns re-diff against the partially updated store.
type Writer struct {
	store   BatchStore
	ceiling int
	log     *logger.Logger
}

// NewWriter creates a Writer with the given per-batch operation ceiling.
// A non-positive ceiling falls back to DefaultBatchCeiling.
func NewWriter(store BatchStore, ceiling int, log *logger.Logger) *Writer {
	if ceiling <= 0 {
		ceiling = DefaultBatchCeiling
	}
	return &Writer{
		store:   store,
		ceiling: ceiling,
		log:     log,
	}
}

// Apply persists the diff. Added and changed listings are upserted
// wholesale; removed listings are flagged, never deleted. Returns the
// number of batches committed alongside any error, so callers can log how
// far a failed run got.
func (w *Writer) Apply(ctx context.Context, diff models.Diff, now time.Time) (int, error) {
	ops := planOperations(diff, now)
	if len(ops) == 0 {
		return 0, nil
	}

	batches := chunkOperations(ops, w.ceiling)

	for i, batch := range batches {
		if err := w.store.WriteBatch(ctx, batch); err != nil {
			return i, fmt.Errorf("batch %d/%d (%d ops) failed: %w", i+1, len(batches), len(batch), err)
		}
		w.log.Debug("Batch committed", map[string]interface{}{
			"batch": i + 1,
			"of":    len(batches),
			"ops":   len(batch),
		})
	}

	return len(batches), nil
}

// planOperations flattens a diff into the ordered write list: upserts for
// added and changed listings, then removal flags. UpdatedAt is stamped
// here so every document written by one run carries the same timestamp.
func planOperations(diff models.Diff, now time.Time) []models.WriteOp {
	ops := make([]models.WriteOp, 0, len(diff.Added)+len(diff.Changed)+len(diff.Removed))

	for _, l := range diff.Added {
		l.UpdatedAt = now
		ops = append(ops, models.WriteOp{Kind: models.OpUpsert, Listing: l})
	}
	for _, l := range diff.Changed {
		l.UpdatedAt = now
		ops = append(ops, models.WriteOp{Kind: models.OpUpsert, Listing: l})
	}
	for _, l := range diff.Removed {
		ops = append(ops, models.WriteOp{Kind: models.OpMarkRemoved, Listing: l, RemovedAt: now})
	}

	return ops
}

// chunkOperations splits ops into slices of at most ceiling operations.
func chunkOperations(ops []models.WriteOp, ceiling int) [][]models.WriteOp {
	if len(ops) == 0 {
		return nil
	}

	batches := make([][]models.WriteOp, 0, (len(ops)+ceiling-1)/ceiling)
	for start := 0; start < len(ops); start += ceiling {
		end := start + ceiling
		if end > len(ops) {
			end = len(ops)
		}
		batches = append(batches, ops[start:end])
	}
	return batches
}
