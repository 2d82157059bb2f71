package model

import "time"

// Priority is the coarse importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Normalized maps a priority onto the [0,1] scoring scale.
// Unknown values score like medium so a bad tag never sinks a task.
func (p Priority) Normalized() float64 {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 1.0
	default:
		return 0.5
	}
}

// Task is a pending unit of work supplied by a task source.
// The planner never mutates a Task; it only derives placements from it.
type Task struct {
	ID    string
	Title string

	// DurationMinutes is the estimated length. Zero means unset; the
	// planner substitutes the configured default.
	DurationMinutes int

	Priority Priority

	// Energy is an advisory tag ("deep", "shallow", ...) carried through
	// for callers. The planner itself does not read it.
	Energy string

	// DueDate, if non-nil, raises urgency the closer it is.
	DueDate *time.Time

	// Source identifies the collection the task came from.
	Source string
}

// TimeBlock is a recurring availability template: a wall-clock window
// that applies to one weekday, a day group, or every day.
type TimeBlock struct {
	ID string `yaml:"id"`

	// Day selects which days the block applies to: a lowercase weekday
	// name ("monday".."sunday"), "weekday", "weekend", or "all".
	Day string `yaml:"day"`

	// Start and End are wall-clock "HH:MM" strings, end exclusive.
	Start string `yaml:"start"`
	End   string `yaml:"end"`

	Enabled bool `yaml:"enabled"`
}

// SchedulingRules is the single validated configuration surface of the
// planner. Weight and factor fields must lie in [0,1]; out-of-range
// values are rejected at the boundary, never clamped.
type SchedulingRules struct {
	// MaxTaskDuration caps any single placement, in minutes. Tasks
	// without a duration default to this value.
	MaxTaskDuration int `yaml:"max_task_duration"`

	// MaxLongTaskDuration caps each chunk of a long task, in minutes.
	MaxLongTaskDuration int `yaml:"max_long_task_duration"`

	// LongTaskThreshold is the duration in minutes above which a task
	// is split into chunks instead of being capped.
	LongTaskThreshold int `yaml:"long_task_threshold"`

	PriorityWeight   float64 `yaml:"priority_weight"`
	TimeWeight       float64 `yaml:"time_weight"`
	RandomnessFactor float64 `yaml:"randomness_factor"`

	// WorkingDays is keyed by lowercase weekday name.
	WorkingDays map[string]bool `yaml:"working_days"`

	TimeBlocks []TimeBlock `yaml:"time_blocks"`
}

// ExistingEvent is an immutable busy interval from a prior commitment.
// It is only ever subtracted from availability.
type ExistingEvent struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
}

// FreeInterval is a concrete, date-bound open range [Start, End) left
// over after subtracting busy commitments from time-block templates.
// It lives only inside a single planning run.
type FreeInterval struct {
	Start time.Time
	End   time.Time
}

// Minutes returns the interval's remaining capacity in whole minutes.
func (f FreeInterval) Minutes() int {
	return int(f.End.Sub(f.Start) / time.Minute)
}

// ProposedEvent is a planner output: a concrete time-boxed placement
// ready for a calendar collaborator to persist or upload.
type ProposedEvent struct {
	ID     string
	TaskID string

	// Summary is the task title, suffixed "(k/n)" for chunked tasks.
	Summary string

	// Description embeds a machine-parsable "Source: ..." marker plus
	// the originating task id, for later reconciliation.
	Description string

	Start time.Time
	End   time.Time

	// ColorID is derived from the schedule source.
	ColorID string

	// IsTemp marks the event as not yet persisted; persistence is the
	// caller's decision.
	IsTemp bool
}

// WeekdayKey returns the lowercase weekday name used as the key into
// SchedulingRules.WorkingDays and TimeBlock day selectors.
func WeekdayKey(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}
