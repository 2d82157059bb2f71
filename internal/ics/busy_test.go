package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"autoplan/internal/model"
)

var monday = time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)

func fixtureICS() []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//fixture//EN",
		"BEGIN:VEVENT",
		"UID:meeting-1",
		"DTSTART:20260105T100000Z",
		"DTEND:20260105T110000Z",
		"SUMMARY:Standup",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:broken-no-uid-placeholder",
		"DTSTART:20260106T090000Z",
		"DTEND:20260106T093000Z",
		"SUMMARY:Review",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func TestParseICS(t *testing.T) {
	t.Parallel()
	events, err := ParseICS(Source{ID: "work"}, fixtureICS())
	if err != nil {
		t.Fatalf("ParseICS error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].UID != "meeting-1" || events[0].Summary != "Standup" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if !events[0].Start.Equal(monday.Add(10 * time.Hour)) {
		t.Fatalf("start = %v, want 10:00", events[0].Start)
	}
	if events[0].AllDay {
		t.Fatal("timed event marked all-day")
	}
}

func TestParseICSEmptyBody(t *testing.T) {
	t.Parallel()
	if _, err := ParseICS(Source{ID: "work"}, nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestExpandBusySingleEvent(t *testing.T) {
	t.Parallel()
	ev := ParsedEvent{
		UID:     "e1",
		Summary: "Standup",
		Start:   monday.Add(10 * time.Hour),
		End:     monday.Add(11 * time.Hour),
	}
	busy := ExpandBusy([]ParsedEvent{ev}, monday, monday.AddDate(0, 0, 7), time.UTC)
	if len(busy) != 1 {
		t.Fatalf("busy = %v, want one interval", busy)
	}
	if !busy[0].Start.Equal(ev.Start) || !busy[0].End.Equal(ev.End) {
		t.Fatalf("busy = %v..%v", busy[0].Start, busy[0].End)
	}
}

func TestExpandBusyOutsideRangeDropped(t *testing.T) {
	t.Parallel()
	ev := ParsedEvent{
		UID:   "e1",
		Start: monday.AddDate(0, 1, 0),
		End:   monday.AddDate(0, 1, 0).Add(time.Hour),
	}
	busy := ExpandBusy([]ParsedEvent{ev}, monday, monday.AddDate(0, 0, 7), time.UTC)
	if len(busy) != 0 {
		t.Fatalf("busy = %v, want none", busy)
	}
}

func TestExpandBusyDailyRecurrence(t *testing.T) {
	t.Parallel()
	ev := ParsedEvent{
		UID:      "daily",
		Summary:  "Standup",
		Start:    monday.Add(10 * time.Hour),
		End:      monday.Add(10*time.Hour + 30*time.Minute),
		RawRRule: "FREQ=DAILY;COUNT=3",
	}
	busy := ExpandBusy([]ParsedEvent{ev}, monday, monday.AddDate(0, 0, 7), time.UTC)
	if len(busy) != 3 {
		t.Fatalf("busy = %d intervals, want 3", len(busy))
	}
	for i, b := range busy {
		wantStart := monday.AddDate(0, 0, i).Add(10 * time.Hour)
		if !b.Start.Equal(wantStart) {
			t.Fatalf("occurrence %d starts %v, want %v", i, b.Start, wantStart)
		}
		if b.End.Sub(b.Start) != 30*time.Minute {
			t.Fatalf("occurrence %d duration = %v", i, b.End.Sub(b.Start))
		}
	}
}

func TestExpandBusyHonorsExDates(t *testing.T) {
	t.Parallel()
	ev := ParsedEvent{
		UID:      "daily",
		Start:    monday.Add(10 * time.Hour),
		End:      monday.Add(11 * time.Hour),
		RawRRule: "FREQ=DAILY;COUNT=3",
		ExDates:  []time.Time{monday.AddDate(0, 0, 1).Add(10 * time.Hour)},
	}
	busy := ExpandBusy([]ParsedEvent{ev}, monday, monday.AddDate(0, 0, 7), time.UTC)
	if len(busy) != 2 {
		t.Fatalf("busy = %d intervals, want 2 after exdate", len(busy))
	}
	for _, b := range busy {
		if b.Start.Day() == 6 {
			t.Fatalf("excluded occurrence still present: %v", b.Start)
		}
	}
}

func TestExpandBusyAllDayBlocksWholeDay(t *testing.T) {
	t.Parallel()
	ev := ParsedEvent{
		UID:    "holiday",
		Start:  monday,
		End:    monday.AddDate(0, 0, 1),
		AllDay: true,
	}
	busy := ExpandBusy([]ParsedEvent{ev}, monday, monday.AddDate(0, 0, 7), time.UTC)
	if len(busy) != 1 {
		t.Fatalf("busy = %v, want one interval", busy)
	}
	if !busy[0].Start.Equal(monday) || !busy[0].End.Equal(monday.Add(24*time.Hour)) {
		t.Fatalf("all-day busy = %v..%v", busy[0].Start, busy[0].End)
	}
}

func TestBuildCalendarRoundTrip(t *testing.T) {
	t.Parallel()
	events := []model.ProposedEvent{
		{
			ID:          "ev-1",
			TaskID:      "t1",
			Summary:     "Write report (1/2)",
			Description: "Source: inbox\nTask: t1",
			Start:       monday.Add(9 * time.Hour),
			End:         monday.Add(10 * time.Hour),
			ColorID:     "3",
			IsTemp:      true,
		},
		{
			ID:      "ev-2",
			TaskID:  "t2",
			Summary: "Review PR",
			Start:   monday.Add(10 * time.Hour),
			End:     monday.Add(11 * time.Hour),
		},
	}

	payload := BuildCalendar(events)
	cal, err := ical.ParseCalendar(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("serialized calendar does not parse: %v", err)
	}
	if got := len(cal.Events()); got != 2 {
		t.Fatalf("round-trip events = %d, want 2", got)
	}
	first := cal.Events()[0]
	if p := first.GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Write report (1/2)" {
		t.Fatalf("summary lost in round trip: %v", p)
	}
}
