package fetcher

import (
	"strings"
	"time"
)

// Date text on the schedule page comes in a few shapes:
//
//	"23 Aug 2025 14:00 - 1 Sep 2025 13:59"
//	"23 Aug 2025 - 1 Sep 2025"
//	"Ends 29 Dec 2025 14:59"
//	"Ends 29 Dec 2025"
var timeLayouts = []string{
	"2 Jan 2006 15:04",
	"2 Jan 2006",
}

// parseTimeWindow extracts a start/end window from a card's date text.
// "Ends ..." text yields an end time only. Date-only deadlines run to the
// end of the stated day. Unparseable text yields zero times; the
// transformer decides what to do with incomplete records.
func parseTimeWindow(text string) (start, end time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return start, end
	}

	if rest, ok := strings.CutPrefix(text, "Ends "); ok {
		end, _ = parseStamp(rest, true)
		return start, end
	}

	if from, to, ok := strings.Cut(text, " - "); ok {
		start, _ = parseStamp(from, false)
		end, _ = parseStamp(to, true)
		return start, end
	}

	// A single date with no prefix is an end-of-window deadline.
	end, _ = parseStamp(text, true)
	return start, end
}

func parseStamp(text string, deadline bool) (time.Time, bool) {
	text = strings.TrimSpace(text)
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, text)
		if err != nil {
			continue
		}
		if deadline && layout == "2 Jan 2006" {
			// "Ends 29 Dec" means active through the 29th.
			t = t.Add(24*time.Hour - time.Second)
		}
		return t, true
	}
	return time.Time{}, false
}
