// Package refresh coordinates the fetch→transform→publish pipeline so that
// at most one run is in flight at any moment and bursts of refresh requests
// collapse into at most one follow-up run.
package refresh

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Pawfulness/umamusume-tracker/cache"
	"github.com/Pawfulness/umamusume-tracker/metrics"
	"github.com/Pawfulness/umamusume-tracker/model"
	"github.com/Pawfulness/umamusume-tracker/transformer"
)

// Source supplies the raw upstream batch for one refresh run.
type Source interface {
	Fetch(ctx context.Context) ([]model.RawRecord, error)
}

// State is the coordinator's position in its refresh lifecycle.
type State int

const (
	// StateIdle means no refresh is running.
	StateIdle State = iota
	// StateRunning means one refresh run is in flight.
	StateRunning
	// StateRunningPending means a run is in flight and one follow-up run
	// is queued to start as soon as it finishes.
	StateRunningPending
)

// Outcome reports how a single refresh run ended. Every caller that waited
// on the same run receives the same Outcome value.
type Outcome struct {
	Err         error
	Snapshot    *model.Snapshot
	SlideCount  int
	Dropped     int
	Expired     int
	CompletedAt time.Time
}

// run is one execution of the pipeline. Waiters block on done; outcome is
// written before done is closed.
type run struct {
	done    chan struct{}
	outcome *Outcome
}

func newRun() *run {
	return &run{done: make(chan struct{})}
}

// Coordinator serializes refresh execution. Failure of a run never touches
// the published slides; the store is only marked stale.
type Coordinator struct {
	source  Source
	store   *cache.Store
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	active  *run
	pending *run
}

func NewCoordinator(source Source, store *cache.Store, timeout time.Duration) *Coordinator {
	return &Coordinator{
		source:  source,
		store:   store,
		timeout: timeout,
		now:     time.Now,
	}
}

// State reports the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.active == nil:
		return StateIdle
	case c.pending == nil:
		return StateRunning
	default:
		return StateRunningPending
	}
}

// TriggerAsync starts a refresh without waiting for it. It returns false,
// and starts nothing, if a run is already in flight: fire-and-forget
// callers only care that some refresh is happening, so a burst of triggers
// during a two-second fetch results in exactly one upstream call.
func (c *Coordinator) TriggerAsync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		metrics.RefreshCoalesced.Inc()
		return false
	}
	c.active = newRun()
	go c.execute(c.active)
	return true
}

// Refresh runs the pipeline and blocks until a run that started at or after
// this call completes, returning that run's outcome. If a run is already in
// flight, the caller attaches to the single queued follow-up run — creating
// it if it does not exist yet — so any number of concurrent callers cause
// at most one additional upstream fetch, and all of them receive the same
// outcome.
//
// A canceled context detaches the caller; the run itself is not cancelable
// and finishes in the background.
func (c *Coordinator) Refresh(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	var r *run
	switch {
	case c.active == nil:
		r = newRun()
		c.active = r
		go c.execute(r)
	case c.pending != nil:
		metrics.RefreshCoalesced.Inc()
		r = c.pending
	default:
		metrics.RefreshCoalesced.Inc()
		r = newRun()
		c.pending = r
	}
	c.mu.Unlock()

	select {
	case <-r.done:
		return r.outcome, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// execute drains the active run and any follow-up queued while it ran. The
// outcome is in place before done is closed, and the active/pending slots
// are rotated before waiters wake, so a waiter that immediately re-triggers
// sees consistent state.
func (c *Coordinator) execute(r *run) {
	for r != nil {
		r.outcome = c.runOnce()

		c.mu.Lock()
		next := c.pending
		c.active = next
		c.pending = nil
		c.mu.Unlock()

		close(r.done)
		r = next
	}
}

// runOnce performs a single fetch→transform→publish pass. On any failure
// the previously published snapshot stays authoritative and is only marked
// stale.
func (c *Coordinator) runOnce() *Outcome {
	started := c.now()
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	records, err := c.source.Fetch(ctx)
	if err != nil {
		log.Printf("[ERROR] Refresh failed: %v", err)
		c.store.MarkStale()
		metrics.RefreshTotal.WithLabelValues("failed").Inc()
		return &Outcome{Err: err, CompletedAt: c.now()}
	}

	slides, stats := transformer.Transform(records, c.now())
	if stats.Dropped > 0 {
		log.Printf("[WARN] Dropped %d records that could not be normalized", stats.Dropped)
	}

	snap := &model.Snapshot{
		Slides:      slides,
		GeneratedAt: c.now(),
		Freshness:   model.FreshnessOK,
	}
	c.store.Publish(snap)

	metrics.RefreshTotal.WithLabelValues("success").Inc()
	metrics.RefreshDuration.Observe(c.now().Sub(started).Seconds())
	metrics.RecordsDropped.Add(float64(stats.Dropped))
	metrics.RecordsExpired.Add(float64(stats.Expired))
	metrics.SnapshotSlides.Set(float64(len(slides)))
	log.Printf("[INFO] Updated cache: %d slides (%d dropped, %d expired)",
		len(slides), stats.Dropped, stats.Expired)

	return &Outcome{
		Snapshot:    snap,
		SlideCount:  len(slides),
		Dropped:     stats.Dropped,
		Expired:     stats.Expired,
		CompletedAt: c.now(),
	}
}
