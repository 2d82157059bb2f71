// Package ics is the calendar collaborator: it ingests busy intervals
// from subscribed ICS feeds and serializes proposed events back out as
// a calendar payload.
package ics

import (
	"context"
	"time"

	appLog "autoplan/internal/log"
	"autoplan/internal/model"
)

// Client bundles the fetch/parse/expand pipeline behind the single
// question the planner asks: what is busy in this range?
type Client struct {
	fetcher  *Fetcher
	sources  []Source
	location *time.Location
}

func NewClient(cacheDir string, sources []Source, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		fetcher:  NewFetcher(cacheDir),
		sources:  sources,
		location: loc,
	}
}

// Busy returns every existing commitment intersecting
// [rangeStart, rangeEnd), sorted by start. Sources that fail to fetch
// are skipped with a log entry; partial busy data beats no plan at all.
func (c *Client) Busy(ctx context.Context, rangeStart, rangeEnd time.Time) ([]model.ExistingEvent, error) {
	if len(c.sources) == 0 {
		return nil, nil
	}

	results, errs := c.fetcher.FetchAll(ctx, c.sources)
	if len(errs) > 0 {
		appLog.Warn("some calendars unavailable", "failed", len(errs), "total", len(c.sources))
	}

	var parsed []ParsedEvent
	for _, res := range results {
		events, err := ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("calendar parse failed", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	return ExpandBusy(parsed, rangeStart, rangeEnd, c.location), nil
}
