// Package transformer normalizes scraped records into the dashboard's
// slide schedule.
package transformer

import (
	"sort"
	"time"

	"github.com/Pawfulness/umamusume-tracker/model"
)

// Stats counts records that did not make it into the output.
type Stats struct {
	// Dropped is the number of records that could not be normalized
	// (missing identifier, title or end time).
	Dropped int
	// Expired is the number of records whose window had fully elapsed.
	Expired int
}

// Transform converts a scraped batch into the slide schedule. It is a pure
// function of its inputs: the same records and the same now always produce
// the same slides.
//
// Records missing an identifier, title or end time are dropped and counted.
// Records whose end time is before now are filtered out. When two records
// share an identifier the one with the latest end time wins; on equal end
// times the earlier record in the batch wins. Output is ordered by start
// time ascending, with lexical identifier order as the tie-break.
func Transform(records []model.RawRecord, now time.Time) ([]model.Slide, Stats) {
	var stats Stats

	byID := make(map[string]model.RawRecord, len(records))
	for _, rec := range records {
		if rec.ID == "" || rec.Title == "" || rec.End.IsZero() {
			stats.Dropped++
			continue
		}
		if rec.End.Before(now) {
			stats.Expired++
			continue
		}
		if prev, ok := byID[rec.ID]; ok && !rec.End.After(prev.End) {
			continue
		}
		byID[rec.ID] = rec
	}

	slides := make([]model.Slide, 0, len(byID))
	for _, rec := range byID {
		slides = append(slides, model.Slide{
			ID:       rec.ID,
			Title:    rec.Title,
			Start:    rec.Start,
			End:      rec.End,
			Category: rec.Category,
			Image:    rec.Image,
			Link:     rec.Link,
		})
	}

	sort.Slice(slides, func(i, j int) bool {
		if !slides[i].Start.Equal(slides[j].Start) {
			return slides[i].Start.Before(slides[j].Start)
		}
		return slides[i].ID < slides[j].ID
	})

	return slides, stats
}
