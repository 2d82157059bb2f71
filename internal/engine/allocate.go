package engine

import (
	"time"

	"autoplan/internal/model"
)

// allocation is a single placed chunk of a task. chunk is 1-based;
// chunks is the total the task was split into.
type allocation struct {
	task   model.Task
	chunk  int
	chunks int
	start  time.Time
	end    time.Time
}

// chunkDurations resolves the effective duration of a task into one or
// more chunk lengths in minutes.
//
//   - unset duration defaults to MaxTaskDuration
//   - durations above LongTaskThreshold are split into pieces of at
//     most MaxLongTaskDuration, final piece possibly shorter
//   - anything else is capped at MaxTaskDuration
//
// Tasks are truncated to fit the caps, never rejected.
func chunkDurations(minutes int, rules model.SchedulingRules) []int {
	if minutes <= 0 {
		minutes = rules.MaxTaskDuration
	}
	if minutes > rules.LongTaskThreshold {
		out := make([]int, 0, minutes/rules.MaxLongTaskDuration+1)
		for minutes > 0 {
			c := rules.MaxLongTaskDuration
			if minutes < c {
				c = minutes
			}
			out = append(out, c)
			minutes -= c
		}
		return out
	}
	if minutes > rules.MaxTaskDuration {
		minutes = rules.MaxTaskDuration
	}
	return []int{minutes}
}

// allocate greedily places ranked tasks into the free-interval list,
// consuming intervals as it goes. free must be sorted chronologically
// and is mutated by the call.
//
// Placement is first-fit: every chunk takes the earliest interval with
// enough remaining capacity. Chunks after the first only consider
// intervals that start at or after the previous chunk's end, so chunks
// of one task never run out of order. A chunk that fits nowhere leaves
// the task's remaining chunks unscheduled; that is a normal outcome,
// not an error.
func allocate(ranked []model.Task, free []model.FreeInterval, rules model.SchedulingRules) ([]allocation, []string) {
	var placed []allocation
	var unscheduled []string

	for _, task := range ranked {
		chunks := chunkDurations(task.DurationMinutes, rules)
		var notBefore time.Time

		for i, mins := range chunks {
			idx := firstFit(free, mins, notBefore)
			if idx < 0 {
				unscheduled = append(unscheduled, task.ID)
				break
			}

			iv := free[idx]
			start := iv.Start
			end := start.Add(time.Duration(mins) * time.Minute)
			placed = append(placed, allocation{
				task:   task,
				chunk:  i + 1,
				chunks: len(chunks),
				start:  start,
				end:    end,
			})
			notBefore = end

			if end.Before(iv.End) {
				free[idx] = model.FreeInterval{Start: end, End: iv.End}
			} else {
				free = append(free[:idx], free[idx+1:]...)
			}
		}
	}

	return placed, unscheduled
}

// firstFit returns the index of the earliest interval with capacity for
// mins minutes starting no earlier than notBefore, or -1.
func firstFit(free []model.FreeInterval, mins int, notBefore time.Time) int {
	for i, iv := range free {
		if iv.Start.Before(notBefore) {
			continue
		}
		if iv.Minutes() >= mins {
			return i
		}
	}
	return -1
}
