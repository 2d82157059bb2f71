// Package engine implements the deterministic task-to-time-slot
// planner: availability calculation, weighted ranking, first-fit slot
// allocation with long-task chunking, and event materialization.
//
// The engine is a pure computation over caller-supplied inputs. It
// performs no I/O, holds no state between runs, and is safe for
// concurrent use from independent invocations.
package engine

import (
	"math/rand"
	"time"

	appLog "autoplan/internal/log"
	"autoplan/internal/model"
)

// Engine runs scheduling passes. The zero value is usable; the fields
// exist so tests can pin the clock, the jitter seed, and the scoring
// strategy.
type Engine struct {
	// Rand supplies ranking jitter. Nil draws a fresh seed per run, so
	// only an externally fixed seed makes runs replay-stable.
	Rand *rand.Rand

	// Now overrides the clock used for urgency scoring. Nil means
	// time.Now.
	Now func() time.Time

	// Scorer overrides the base scoring strategy. Nil means a
	// WeightedScorer built from the rules' weights.
	Scorer Scorer
}

// Result is the outcome of one scheduling run. UnscheduledTaskIDs lists
// tasks with at least one chunk that fit nowhere in the horizon; this
// is partial-success data, not a failure.
type Result struct {
	Events             []model.ProposedEvent
	UnscheduledTaskIDs []string
	Warnings           []Warning
}

// ValidateRules rejects rules whose weight or factor fields fall
// outside [0,1] or whose duration caps are not positive. Values are
// never silently clamped.
func ValidateRules(rules model.SchedulingRules) error {
	for _, w := range []float64{rules.PriorityWeight, rules.TimeWeight, rules.RandomnessFactor} {
		if w < 0 || w > 1 {
			return ErrInvalidRules
		}
	}
	if rules.MaxTaskDuration <= 0 || rules.MaxLongTaskDuration <= 0 || rules.LongTaskThreshold <= 0 {
		return ErrInvalidRules
	}
	return nil
}

// Schedule produces a conflict-free set of proposed events for the
// pending tasks over [rangeStart, rangeEnd).
//
// Structural input problems (bad rules, inverted range) abort the run
// with a typed error. Per-task placement failures are accumulated into
// the result instead, so callers can present partial success.
func (e *Engine) Schedule(tasks []model.Task, rules model.SchedulingRules, rangeStart, rangeEnd time.Time, existing []model.ExistingEvent, source string) (Result, error) {
	if err := ValidateRules(rules); err != nil {
		return Result{}, err
	}
	if !rangeEnd.After(rangeStart) {
		return Result{}, ErrInvalidDateRange
	}

	free, warnings := FreeIntervals(rangeStart, rangeEnd, rules, existing)

	rng := e.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}
	scorer := e.Scorer
	if scorer == nil {
		scorer = WeightedScorer{PriorityWeight: rules.PriorityWeight, TimeWeight: rules.TimeWeight}
	}

	ranked := rankTasks(tasks, rules, scorer, rng, now)
	placed, unscheduled := allocate(ranked, free, rules)
	events := materialize(placed, source)

	appLog.Info("scheduling run complete",
		"tasks", len(tasks),
		"events", len(events),
		"unscheduled", len(unscheduled),
		"warnings", len(warnings),
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
	)

	return Result{
		Events:             events,
		UnscheduledTaskIDs: unscheduled,
		Warnings:           warnings,
	}, nil
}
