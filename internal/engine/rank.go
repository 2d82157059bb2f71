package engine

import (
	"math/rand"
	"sort"
	"time"

	"autoplan/internal/model"
)

// defaultUrgencyHorizon is the due-date window over which urgency decays
// from 1 (due now or overdue) to 0 (due at or beyond the horizon).
const defaultUrgencyHorizon = 14 * 24 * time.Hour

// Scorer computes the base score of a task. The scoring strategy is
// pluggable; WeightedScorer is the default.
type Scorer interface {
	Score(task model.Task, now time.Time) float64
}

// WeightedScorer blends normalized priority and due-date urgency with
// configurable weights.
type WeightedScorer struct {
	PriorityWeight float64
	TimeWeight     float64

	// Horizon bounds the urgency scale. Zero means the default.
	Horizon time.Duration
}

func (s WeightedScorer) Score(task model.Task, now time.Time) float64 {
	return s.PriorityWeight*task.Priority.Normalized() + s.TimeWeight*s.urgency(task.DueDate, now)
}

// urgency rewards an earlier due date with a higher value. Tasks
// without a due date sit at the middle of the scale.
func (s WeightedScorer) urgency(due *time.Time, now time.Time) float64 {
	if due == nil {
		return 0.5
	}
	horizon := s.Horizon
	if horizon <= 0 {
		horizon = defaultUrgencyHorizon
	}
	left := due.Sub(now)
	if left <= 0 {
		return 1.0
	}
	if left >= horizon {
		return 0
	}
	return 1 - float64(left)/float64(horizon)
}

// rankTasks orders tasks descending by final score. The final score adds
// jitter drawn from rng scaled by the randomness factor; ties keep the
// original input order so a fixed seed reproduces the same ranking.
func rankTasks(tasks []model.Task, rules model.SchedulingRules, scorer Scorer, rng *rand.Rand, now time.Time) []model.Task {
	scores := make([]float64, len(tasks))
	for i, t := range tasks {
		scores[i] = scorer.Score(t, now)
		if rules.RandomnessFactor > 0 {
			scores[i] += rules.RandomnessFactor * (rng.Float64() - 0.5)
		}
	}

	out := append([]model.Task(nil), tasks...)
	idx := make([]int, len(tasks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	for i, j := range idx {
		out[i] = tasks[j]
	}
	return out
}
