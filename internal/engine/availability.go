package engine

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	appLog "autoplan/internal/log"
	"autoplan/internal/model"
)

// Warning records a non-fatal input problem, such as a time block whose
// end does not come after its start. The run continues without the
// offending block.
type Warning struct {
	BlockID string
	Reason  string
}

// validBlock is a time block whose wall-clock window has already been
// parsed into minutes from midnight.
type validBlock struct {
	block    model.TimeBlock
	startMin int
	endMin   int
}

// FreeIntervals turns recurring time blocks plus busy commitments into
// the concrete availability of [rangeStart, rangeEnd).
//
// For each calendar day in range:
//   - non-working days are skipped entirely
//   - windows of all matching enabled blocks are unioned
//   - every overlapping busy interval is subtracted
//
// The returned intervals are disjoint and sorted ascending by start.
// Identical inputs always produce an identical interval set.
func FreeIntervals(rangeStart, rangeEnd time.Time, rules model.SchedulingRules, busy []model.ExistingEvent) ([]model.FreeInterval, []Warning) {
	blocks, warnings := vetBlocks(rules.TimeBlocks)

	sortedBusy := append([]model.ExistingEvent(nil), busy...)
	sort.Slice(sortedBusy, func(i, j int) bool {
		return sortedBusy[i].Start.Before(sortedBusy[j].Start)
	})

	loc := rangeStart.Location()
	free := make([]model.FreeInterval, 0)

	day := time.Date(rangeStart.Year(), rangeStart.Month(), rangeStart.Day(), 0, 0, 0, 0, loc)
	for day.Before(rangeEnd) {
		weekday := day.Weekday()
		if rules.WorkingDays[model.WeekdayKey(weekday)] {
			windows := dayWindows(day, weekday, blocks)
			for _, w := range windows {
				w = clip(w, rangeStart, rangeEnd)
				if !w.End.After(w.Start) {
					continue
				}
				free = append(free, subtractBusy(w, sortedBusy)...)
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return free, warnings
}

// vetBlocks filters out disabled and malformed blocks, recording one
// warning per malformed block.
func vetBlocks(blocks []model.TimeBlock) ([]validBlock, []Warning) {
	out := make([]validBlock, 0, len(blocks))
	var warnings []Warning

	for _, b := range blocks {
		if !b.Enabled {
			continue
		}
		if !knownSelector(b.Day) {
			warnings = append(warnings, Warning{
				BlockID: b.ID,
				Reason:  fmt.Sprintf("unknown day selector %q", b.Day),
			})
			continue
		}
		startMin, err := parseHHMM(b.Start)
		if err == nil {
			var endMin int
			endMin, err = parseHHMM(b.End)
			if err == nil && endMin <= startMin {
				err = errors.New("end is not after start")
			}
			if err == nil {
				out = append(out, validBlock{block: b, startMin: startMin, endMin: endMin})
				continue
			}
		}
		warnings = append(warnings, Warning{BlockID: b.ID, Reason: err.Error()})
		appLog.Warn("skipping malformed time block", "block", b.ID, "reason", err.Error())
	}

	return out, warnings
}

// dayWindows resolves all blocks applying to the given day and unions
// their windows into disjoint intervals.
func dayWindows(day time.Time, weekday time.Weekday, blocks []validBlock) []model.FreeInterval {
	windows := make([]model.FreeInterval, 0, len(blocks))
	for _, vb := range blocks {
		if !selectorMatches(vb.block.Day, weekday) {
			continue
		}
		windows = append(windows, model.FreeInterval{
			Start: day.Add(time.Duration(vb.startMin) * time.Minute),
			End:   day.Add(time.Duration(vb.endMin) * time.Minute),
		})
	}
	return mergeIntervals(windows)
}

// selectorMatches reports whether a day selector applies to a weekday.
// Selectors are matched case-insensitively.
func selectorMatches(selector string, weekday time.Weekday) bool {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "all":
		return true
	case "weekday":
		return weekday >= time.Monday && weekday <= time.Friday
	case "weekend":
		return weekday == time.Saturday || weekday == time.Sunday
	default:
		return strings.EqualFold(selector, model.WeekdayKey(weekday))
	}
}

func knownSelector(selector string) bool {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "all", "weekday", "weekend",
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		return true
	default:
		return false
	}
}

// mergeIntervals sorts intervals by start and merges overlapping or
// touching ones into a minimal disjoint set.
func mergeIntervals(in []model.FreeInterval) []model.FreeInterval {
	if len(in) <= 1 {
		return in
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Start.Before(in[j].Start) })

	out := in[:1]
	for _, iv := range in[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtractBusy carves every overlapping busy interval out of a window,
// yielding zero or more disjoint sub-intervals. busy must be sorted by
// start time.
func subtractBusy(window model.FreeInterval, busy []model.ExistingEvent) []model.FreeInterval {
	out := make([]model.FreeInterval, 0, 1)
	cursor := window.Start

	for _, b := range busy {
		if !b.Start.Before(window.End) {
			break
		}
		if !b.End.After(cursor) {
			continue
		}
		if b.Start.After(cursor) {
			out = append(out, model.FreeInterval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(window.End) {
			return out
		}
	}

	if cursor.Before(window.End) {
		out = append(out, model.FreeInterval{Start: cursor, End: window.End})
	}
	return out
}

func clip(iv model.FreeInterval, start, end time.Time) model.FreeInterval {
	if iv.Start.Before(start) {
		iv.Start = start
	}
	if iv.End.After(end) {
		iv.End = end
	}
	return iv
}

// parseHHMM parses a wall-clock "HH:MM" string into minutes from
// midnight.
func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
