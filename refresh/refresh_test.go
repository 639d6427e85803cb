package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Pawfulness/umamusume-tracker/cache"
	"github.com/Pawfulness/umamusume-tracker/model"

	"github.com/stretchr/testify/require"
)

// stubSource is a controllable upstream. When gate is non-nil, Fetch blocks
// until the gate is closed; started receives one value per fetch as it
// begins.
type stubSource struct {
	fetches atomic.Int32
	records []model.RawRecord
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (s *stubSource) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	s.fetches.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	return s.records, s.err
}

func liveRecords() []model.RawRecord {
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(24 * time.Hour)
	return []model.RawRecord{
		{ID: "a", Title: "A", Start: start, End: end, Category: model.CategoryBanner},
		{ID: "b", Title: "B", Start: start, End: end, Category: model.CategoryEvent},
	}
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	store := cache.NewStore()
	source := &stubSource{records: liveRecords()}
	coord := NewCoordinator(source, store, time.Second)

	outcome, err := coord.Refresh(context.Background())
	require.NoError(t, err)
	require.NoError(t, outcome.Err)
	require.Equal(t, 2, outcome.SlideCount)

	snap := store.Current()
	require.Equal(t, model.FreshnessOK, snap.Freshness)
	require.Len(t, snap.Slides, 2)
	require.Same(t, outcome.Snapshot, snap)
	require.Equal(t, int32(1), source.fetches.Load())
	require.Equal(t, StateIdle, coord.State())
}

func TestFailedRefreshLeavesSnapshotUntouched(t *testing.T) {
	store := cache.NewStore()
	source := &stubSource{records: liveRecords()}
	coord := NewCoordinator(source, store, time.Second)

	_, err := coord.Refresh(context.Background())
	require.NoError(t, err)
	before := store.Current()

	source.err = errors.New("upstream down")
	outcome, err := coord.Refresh(context.Background())
	require.NoError(t, err)
	require.Error(t, outcome.Err)
	require.Nil(t, outcome.Snapshot)

	after := store.Current()
	require.Equal(t, model.FreshnessStale, after.Freshness)
	require.Equal(t, before.Slides, after.Slides)
	require.True(t, after.GeneratedAt.Equal(before.GeneratedAt))
	require.Equal(t, StateIdle, coord.State())
}

func TestFailedRefreshKeepsNeverPopulated(t *testing.T) {
	store := cache.NewStore()
	source := &stubSource{err: errors.New("upstream down")}
	coord := NewCoordinator(source, store, time.Second)

	outcome, err := coord.Refresh(context.Background())
	require.NoError(t, err)
	require.Error(t, outcome.Err)
	require.Equal(t, model.FreshnessNeverPopulated, store.Current().Freshness)
}

// Blocking callers arriving while a run is in flight coalesce onto a single
// follow-up run: K callers cause at most one extra fetch and all receive
// the same outcome.
func TestBlockingCallersCoalesce(t *testing.T) {
	store := cache.NewStore()
	source := &stubSource{
		records: liveRecords(),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 16),
	}
	coord := NewCoordinator(source, store, 5*time.Second)

	firstDone := make(chan *Outcome, 1)
	go func() {
		outcome, _ := coord.Refresh(context.Background())
		firstDone <- outcome
	}()

	// Wait until the first run is inside its fetch.
	<-source.started
	require.Equal(t, StateRunning, coord.State())

	const k = 8
	var wg, launched sync.WaitGroup
	outcomes := make([]*Outcome, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		launched.Add(1)
		go func(i int) {
			defer wg.Done()
			launched.Done()
			outcome, _ := coord.Refresh(context.Background())
			outcomes[i] = outcome
		}(i)
	}

	// All K callers attach to one queued follow-up. The first run stays
	// gated until every caller has had a chance to attach.
	launched.Wait()
	require.Eventually(t, func() bool {
		return coord.State() == StateRunningPending
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	close(source.gate)
	wg.Wait()
	first := <-firstDone

	require.Equal(t, int32(2), source.fetches.Load())
	for i := 1; i < k; i++ {
		require.Same(t, outcomes[0], outcomes[i])
	}
	require.NotSame(t, first, outcomes[0])
	require.Equal(t, StateIdle, coord.State())
}

// Fire-and-forget triggers during an in-flight run neither wait nor queue:
// two triggers in the same instant cause exactly one upstream fetch.
func TestTriggerAsyncCoalesces(t *testing.T) {
	store := cache.NewStore()
	source := &stubSource{
		records: liveRecords(),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 4),
	}
	coord := NewCoordinator(source, store, 5*time.Second)

	require.True(t, coord.TriggerAsync())
	<-source.started
	require.False(t, coord.TriggerAsync())
	require.Equal(t, StateRunning, coord.State())

	close(source.gate)
	require.Eventually(t, func() bool {
		return coord.State() == StateIdle
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, int32(1), source.fetches.Load())
	require.Equal(t, model.FreshnessOK, store.Current().Freshness)
}

func TestRefreshDetachesOnContextCancel(t *testing.T) {
	store := cache.NewStore()
	source := &stubSource{
		records: liveRecords(),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 4),
	}
	coord := NewCoordinator(source, store, 5*time.Second)

	require.True(t, coord.TriggerAsync())
	<-source.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := coord.Refresh(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The in-flight run still completes in the background.
	close(source.gate)
	require.Eventually(t, func() bool {
		return coord.State() == StateIdle
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, model.FreshnessOK, store.Current().Freshness)
}
