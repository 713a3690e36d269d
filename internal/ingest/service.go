// Package ingest implements the LRA inventory ingestion pipeline: diffing
// freshly fetched listings against stored state, persisting the delta in
// bounded atomic batches, and fanning out the post-commit work.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/401-Nick/lra-alerts/internal/alerts"
	"github.com/401-Nick/lra-alerts/internal/logger"
	"github.com/401-Nick/lra-alerts/internal/models"
)

// ErrRunInProgress is returned when a run is triggered while another run
// holds the ingest lock. Concurrent runs over the same store are not
// supported; callers retry later.
var ErrRunInProgress = errors.New("an ingest run is already in progress")

// Source produces the complete normalized listing set for one run.
type Source interface {
	FetchListings(ctx context.Context) ([]models.Listing, error)
}

// ListingStore is the slice of the listings repository the pipeline reads.
type ListingStore interface {
	// DiffStates returns the minimal id -> (fingerprint, removed) projection
	// of every stored listing.
	DiffStates(ctx context.Context) (map[string]models.DiffState, error)
	// ListingsByID loads full listings for the given IDs, used to hydrate
	// the removed partition before alerting on it.
	ListingsByID(ctx context.Context, ids []string) ([]models.Listing, error)
}

// AlertDispatcher fans a diff out to subscribers.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, diff models.Diff) alerts.Report
}

// SelectionAggregator recomputes the distinct filter values from
// freshly committed state.
type SelectionAggregator interface {
	Snapshot(ctx context.Context) (models.Selections, error)
}

// CSVExporter writes the full inventory CSV for the run and returns a
// time-limited retrieval URL. Nil-able: deployments without an object
// store simply skip the artifact.
type CSVExporter interface {
	Export(ctx context.Context, runTime time.Time) (string, error)
}

// SnapshotStore persists the exports/current document.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
}

// Service runs the ingest pipeline end to end. One run is a sequential
// fetch -> diff -> write; alert dispatch and the selections/export refresh
// run concurrently once the writer has committed, since neither depends on
// the other.
type Service struct {
	source     Source
	store      ListingStore
	writer     *Writer
	dispatcher AlertDispatcher
	selections SelectionAggregator
	exporter   CSVExporter
	snapshots  SnapshotStore
	log        *logger.Logger

	mu sync.Mutex
}

// NewService wires the pipeline. exporter may be nil to disable the CSV
// artifact; everything else is required.
func NewService(
	source Source,
	store ListingStore,
	writer *Writer,
	dispatcher AlertDispatcher,
	selections SelectionAggregator,
	exporter CSVExporter,
	snapshots SnapshotStore,
	log *logger.Logger,
) *Service {
	return &Service{
		source:     source,
		store:      store,
		writer:     writer,
		dispatcher: dispatcher,
		selections: selections,
		exporter:   exporter,
		snapshots:  snapshots,
		log:        log,
	}
}

// Run executes one ingest run and returns its summary. Failures before the
// first batch commit leave the store untouched; a failure between batches
// leaves the committed batches durable, and the next run re-diffs against
// that partial state and resumes correctly.
func (s *Service) Run(ctx context.Context) (models.RunSummary, error) {
	if !s.mu.TryLock() {
		return models.RunSummary{}, ErrRunInProgress
	}
	defer s.mu.Unlock()

	runStart := time.Now().UTC()
	log := s.log.With(map[string]interface{}{"run_id": uuid.New().String()})

	log.Info("Ingest run starting", nil)

	incoming, err := s.source.FetchListings(ctx)
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("fetching source listings: %w", err)
	}

	stored, err := s.store.DiffStates(ctx)
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("loading stored diff state: %w", err)
	}

	diff := Classify(incoming, stored)
	s.hydrateRemoved(ctx, &diff, log)

	summary := models.RunSummary{
		Added:     len(diff.Added),
		Changed:   len(diff.Changed),
		Removed:   len(diff.Removed),
		Unchanged: diff.Unchanged,
		Total:     len(incoming),
	}

	log.Info("Diff computed", map[string]interface{}{
		"added":     summary.Added,
		"changed":   summary.Changed,
		"removed":   summary.Removed,
		"unchanged": summary.Unchanged,
	})

	committed, err := s.writer.Apply(ctx, diff, runStart)
	if err != nil {
		log.Error("Persisting diff failed", err, map[string]interface{}{
			"batches_committed": committed,
		})
		return summary, fmt.Errorf("persisting diff: %w", err)
	}

	summary.CSV = s.afterCommit(ctx, diff, summary, runStart, log)

	log.Info("Ingest run complete", map[string]interface{}{
		"total":       summary.Total,
		"duration_ms": time.Since(runStart).Milliseconds(),
	})

	return summary, nil
}

// hydrateRemoved replaces the bare IDs in the removed partition with the
// stored documents so the dispatcher can resolve zip/ward/neighborhood
// subscribers for them. A lookup failure downgrades to bare-ID alerts
// rather than failing the run.
func (s *Service) hydrateRemoved(ctx context.Context, diff *models.Diff, log *logger.Logger) {
	if len(diff.Removed) == 0 {
		return
	}

	ids := make([]string, len(diff.Removed))
	for i, l := range diff.Removed {
		ids[i] = l.ID
	}

	full, err := s.store.ListingsByID(ctx, ids)
	if err != nil {
		log.Warn("Could not hydrate removed listings for alerting", map[string]interface{}{
			"error": err.Error(),
			"count": len(ids),
		})
		return
	}
	if len(full) == len(diff.Removed) {
		diff.Removed = full
	}
}

// afterCommit runs alert dispatch and the selections/CSV refresh as
// independent concurrent tasks. Both are best-effort: their failures are
// logged and never roll back the already-committed diff. Returns the CSV
// URL, if an export was produced.
func (s *Service) afterCommit(ctx context.Context, diff models.Diff, summary models.RunSummary, runStart time.Time, log *logger.Logger) string {
	var (
		wg     sync.WaitGroup
		csvURL string
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		report := s.dispatcher.Dispatch(ctx, diff)
		log.Info("Alert dispatch settled", map[string]interface{}{
			"delivered": report.Delivered,
			"failed":    report.Failed,
		})
	}()

	go func() {
		defer wg.Done()
		csvURL = s.refreshExports(ctx, summary, runStart, log)
	}()

	wg.Wait()
	return csvURL
}

// refreshExports recomputes the selections snapshot, writes the CSV
// artifact when an exporter is configured, and overwrites exports/current.
func (s *Service) refreshExports(ctx context.Context, summary models.RunSummary, runStart time.Time, log *logger.Logger) string {
	selections, err := s.selections.Snapshot(ctx)
	if err != nil {
		log.Error("Selections aggregation failed", err, nil)
		return ""
	}

	var csvURL string
	if s.exporter != nil {
		csvURL, err = s.exporter.Export(ctx, runStart)
		if err != nil {
			log.Error("CSV export failed", err, nil)
			csvURL = ""
		}
	}

	summary.CSV = csvURL
	snap := models.Snapshot{
		Selections:  selections,
		Summary:     summary,
		CSVURL:      csvURL,
		GeneratedAt: time.Now().UTC(),
	}
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		log.Error("Saving exports snapshot failed", err, nil)
	}

	return csvURL
}
