package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/401-Nick/lra-alerts/internal/alerts"
	"github.com/401-Nick/lra-alerts/internal/logger"
	"github.com/401-Nick/lra-alerts/internal/models"
)

// MockSource is a mock implementation of Source for testing
type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchListings(ctx context.Context) ([]models.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

// MockListingStore is a mock implementation of ListingStore for testing
type MockListingStore struct {
	mock.Mock
}

func (m *MockListingStore) DiffStates(ctx context.Context) (map[string]models.DiffState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.DiffState), args.Error(1)
}

func (m *MockListingStore) ListingsByID(ctx context.Context, ids []string) ([]models.Listing, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

// MockDispatcher is a mock implementation of AlertDispatcher for testing
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, diff models.Diff) alerts.Report {
	args := m.Called(ctx, diff)
	return args.Get(0).(alerts.Report)
}

// MockAggregator is a mock implementation of SelectionAggregator for testing
type MockAggregator struct {
	mock.Mock
}

func (m *MockAggregator) Snapshot(ctx context.Context) (models.Selections, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Selections), args.Error(1)
}

// MockExporter is a mock implementation of CSVExporter for testing
type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) Export(ctx context.Context, runTime time.Time) (string, error) {
	args := m.Called(ctx, runTime)
	return args.String(0), args.Error(1)
}

// MockSnapshotStore is a mock implementation of SnapshotStore for testing
type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func newTestService(source *MockSource, store *MockListingStore, batchStore BatchStore,
	dispatcher *MockDispatcher, aggregator *MockAggregator, exporter CSVExporter,
	snapshots *MockSnapshotStore) *Service {
	log := logger.New("test")
	return NewService(source, store, NewWriter(batchStore, 450, log), dispatcher, aggregator, exporter, snapshots, log)
}

func TestRun_FullPipeline(t *testing.T) {
	// Arrange
	source := new(MockSource)
	store := new(MockListingStore)
	batchStore := &recordingStore{}
	dispatcher := new(MockDispatcher)
	aggregator := new(MockAggregator)
	exporter := new(MockExporter)
	snapshots := new(MockSnapshotStore)

	incoming := []models.Listing{sampleListing()}
	source.On("FetchListings", mock.Anything).Return(incoming, nil)
	store.On("DiffStates", mock.Anything).Return(map[string]models.DiffState{}, nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(alerts.Report{Delivered: 2})
	aggregator.On("Snapshot", mock.Anything).Return(models.Selections{Zips: []string{"63115"}}, nil)
	exporter.On("Export", mock.Anything, mock.Anything).Return("https://bucket/lra-2026-08-24.csv", nil)
	snapshots.On("SaveSnapshot", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(source, store, batchStore, dispatcher, aggregator, exporter, snapshots)

	// Act
	summary, err := svc.Run(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Added)
	assert.Zero(t, summary.Changed)
	assert.Zero(t, summary.Removed)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, "https://bucket/lra-2026-08-24.csv", summary.CSV)
	require.Len(t, batchStore.batches, 1)
	dispatcher.AssertExpectations(t)
	snapshots.AssertExpectations(t)
}

func TestRun_IdempotentRerunWritesNothing(t *testing.T) {
	// Arrange: stored state already matches the source exactly.
	source := new(MockSource)
	store := new(MockListingStore)
	batchStore := &recordingStore{}
	dispatcher := new(MockDispatcher)
	aggregator := new(MockAggregator)
	snapshots := new(MockSnapshotStore)

	l := sampleListing()
	source.On("FetchListings", mock.Anything).Return([]models.Listing{sampleListing()}, nil)
	store.On("DiffStates", mock.Anything).Return(map[string]models.DiffState{
		l.ID: {Fingerprint: Fingerprint(&l)},
	}, nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(alerts.Report{})
	aggregator.On("Snapshot", mock.Anything).Return(models.Selections{}, nil)
	snapshots.On("SaveSnapshot", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(source, store, batchStore, dispatcher, aggregator, nil, snapshots)

	// Act
	summary, err := svc.Run(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Zero(t, summary.Added+summary.Changed+summary.Removed)
	assert.Empty(t, batchStore.batches)
}

func TestRun_SourceFailureLeavesStoreUntouched(t *testing.T) {
	source := new(MockSource)
	store := new(MockListingStore)
	batchStore := &recordingStore{}
	dispatcher := new(MockDispatcher)
	aggregator := new(MockAggregator)
	snapshots := new(MockSnapshotStore)

	source.On("FetchListings", mock.Anything).Return(nil, errors.New("service unavailable"))

	svc := newTestService(source, store, batchStore, dispatcher, aggregator, nil, snapshots)

	_, err := svc.Run(context.Background())

	require.Error(t, err)
	assert.Empty(t, batchStore.batches)
	store.AssertNotCalled(t, "DiffStates")
	dispatcher.AssertNotCalled(t, "Dispatch")
}

func TestRun_HydratesRemovedBeforeDispatch(t *testing.T) {
	// Arrange: one stored listing vanishes from the source. The dispatcher
	// must see the stored document, not a bare ID.
	source := new(MockSource)
	store := new(MockListingStore)
	batchStore := &recordingStore{}
	dispatcher := new(MockDispatcher)
	aggregator := new(MockAggregator)
	snapshots := new(MockSnapshotStore)

	gone := sampleListing()
	source.On("FetchListings", mock.Anything).Return([]models.Listing{}, nil)
	store.On("DiffStates", mock.Anything).Return(map[string]models.DiffState{
		gone.ID: {Fingerprint: Fingerprint(&gone)},
	}, nil)
	store.On("ListingsByID", mock.Anything, []string{gone.ID}).Return([]models.Listing{gone}, nil)

	var dispatched models.Diff
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		dispatched = args.Get(1).(models.Diff)
	}).Return(alerts.Report{})
	aggregator.On("Snapshot", mock.Anything).Return(models.Selections{}, nil)
	snapshots.On("SaveSnapshot", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(source, store, batchStore, dispatcher, aggregator, nil, snapshots)

	// Act
	summary, err := svc.Run(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Removed)
	require.Len(t, dispatched.Removed, 1)
	assert.NotNil(t, dispatched.Removed[0].Zip)
	store.AssertExpectations(t)
}

func TestRun_ExportFailureDoesNotFailRun(t *testing.T) {
	source := new(MockSource)
	store := new(MockListingStore)
	batchStore := &recordingStore{}
	dispatcher := new(MockDispatcher)
	aggregator := new(MockAggregator)
	exporter := new(MockExporter)
	snapshots := new(MockSnapshotStore)

	source.On("FetchListings", mock.Anything).Return([]models.Listing{sampleListing()}, nil)
	store.On("DiffStates", mock.Anything).Return(map[string]models.DiffState{}, nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(alerts.Report{})
	aggregator.On("Snapshot", mock.Anything).Return(models.Selections{}, nil)
	exporter.On("Export", mock.Anything, mock.Anything).Return("", errors.New("bucket unreachable"))
	snapshots.On("SaveSnapshot", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(source, store, batchStore, dispatcher, aggregator, exporter, snapshots)

	summary, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, summary.CSV)
	snapshots.AssertExpectations(t)
}

func TestRun_ConcurrentRunRejected(t *testing.T) {
	// Arrange: the first run blocks inside the source fetch until released.
	source := new(MockSource)
	store := new(MockListingStore)
	batchStore := &recordingStore{}
	dispatcher := new(MockDispatcher)
	aggregator := new(MockAggregator)
	snapshots := new(MockSnapshotStore)

	release := make(chan struct{})
	started := make(chan struct{})
	source.On("FetchListings", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return([]models.Listing{}, nil)
	store.On("DiffStates", mock.Anything).Return(map[string]models.DiffState{}, nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(alerts.Report{})
	aggregator.On("Snapshot", mock.Anything).Return(models.Selections{}, nil)
	snapshots.On("SaveSnapshot", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(source, store, batchStore, dispatcher, aggregator, nil, snapshots)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.Run(context.Background())
	}()
	<-started

	// Act: trigger while the first run holds the lock.
	_, err := svc.Run(context.Background())

	// Assert
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	wg.Wait()
}
