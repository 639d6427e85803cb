// Package cache holds the currently published slide snapshot for
// lock-free concurrent reads.
package cache

import (
	"sync/atomic"

	"github.com/Pawfulness/umamusume-tracker/model"
)

// Store publishes immutable snapshots. Reads never block on a refresh in
// progress; Publish and MarkStale are only called by the refresh
// coordinator, which runs at most one refresh at a time, so there is a
// single writer.
type Store struct {
	current atomic.Pointer[model.Snapshot]
}

func NewStore() *Store {
	s := &Store{}
	s.current.Store(model.EmptySnapshot())
	return s
}

// Publish atomically replaces the visible snapshot. The snapshot must be
// fully built before it is handed to Publish; readers see either the old or
// the new snapshot, never a mix.
func (s *Store) Publish(snap *model.Snapshot) {
	s.current.Store(snap)
}

// Current returns the visible snapshot. Before the first successful refresh
// it returns an empty snapshot marked never-populated.
func (s *Store) Current() *model.Snapshot {
	return s.current.Load()
}

// MarkStale flags the visible snapshot as stale after a failed refresh,
// leaving its slides and generation timestamp untouched. A never-populated
// snapshot stays never-populated.
func (s *Store) MarkStale() {
	cur := s.current.Load()
	if cur.Freshness != model.FreshnessOK {
		return
	}
	stale := *cur
	stale.Freshness = model.FreshnessStale
	s.current.Store(&stale)
}
