package ics

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "autoplan/internal/log"
	"autoplan/internal/model"
)

// maxOccurrencesPerEvent caps recurrence expansion so a runaway RRULE
// cannot blow up a planning run.
const maxOccurrencesPerEvent = 1000

// ExpandBusy flattens parsed calendar events into concrete busy
// intervals inside [rangeStart, rangeEnd), expanding RRULEs and
// honoring EXDATEs. All-day events block their whole day. The result is
// sorted ascending by start.
//
// This is purely ingest of prior commitments; the planner itself never
// produces recurring events.
func ExpandBusy(events []ParsedEvent, rangeStart, rangeEnd time.Time, loc *time.Location) []model.ExistingEvent {
	if loc == nil {
		loc = time.Local
	}

	busy := make([]model.ExistingEvent, 0, len(events))
	for _, ev := range events {
		if ev.RawRRule == "" {
			busy = appendOccurrence(busy, ev, ev.Start, ev.End, rangeStart, rangeEnd, loc)
			continue
		}
		busy = append(busy, expandRecurring(ev, rangeStart, rangeEnd, loc)...)
	}

	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy
}

func expandRecurring(ev ParsedEvent, rangeStart, rangeEnd time.Time, loc *time.Location) []model.ExistingEvent {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("rrule parse failed; event ignored", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	starts := set.Between(rangeStart.In(ev.Start.Location()), rangeEnd.In(ev.Start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		appLog.Warn("recurrence expansion truncated", "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	duration := ev.End.Sub(ev.Start)
	out := make([]model.ExistingEvent, 0, len(starts))
	for _, s := range starts {
		out = appendOccurrence(out, ev, s, s.Add(duration), rangeStart, rangeEnd, loc)
	}
	return out
}

// appendOccurrence normalizes one occurrence into the display location
// and appends it when it intersects the range.
func appendOccurrence(busy []model.ExistingEvent, ev ParsedEvent, start, end time.Time, rangeStart, rangeEnd time.Time, loc *time.Location) []model.ExistingEvent {
	if ev.AllDay {
		day := start.In(loc)
		start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		end = start.Add(24 * time.Hour)
	} else {
		start = start.In(loc)
		end = end.In(loc)
	}

	if !start.Before(rangeEnd) || !end.After(rangeStart) {
		return busy
	}

	return append(busy, model.ExistingEvent{
		ID:      fmt.Sprintf("%s/%s", ev.UID, start.Format(time.RFC3339)),
		Summary: ev.Summary,
		Start:   start,
		End:     end,
	})
}
