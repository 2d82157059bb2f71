package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"autoplan/internal/model"
)

// CalendarConfig describes a single subscribed busy calendar.
type CalendarConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the planning API.
	Listen string `yaml:"listen"`

	// Timezone is the IANA timezone proposed events are expressed in.
	Timezone string `yaml:"timezone"`

	// PlanCron is a cron-style schedule (e.g. "0 6 * * *") for the
	// daemon's automatic re-planning runs.
	PlanCron string `yaml:"plan_cron"`

	// HorizonDays is how many days ahead each run plans.
	HorizonDays int `yaml:"horizon_days"`

	// StorePath is the SQLite task database file.
	StorePath string `yaml:"store_path"`

	// CacheDir holds the ICS fetch cache.
	CacheDir string `yaml:"cache_dir"`

	// OutputPath, if set, is where one-shot runs write the planned
	// events as an ICS file.
	OutputPath string `yaml:"output_path"`

	// ScheduleSource tags every proposed event with the collection it
	// was planned from.
	ScheduleSource string `yaml:"schedule_source"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Calendars is the list of subscribed busy ICS sources.
	Calendars []CalendarConfig `yaml:"calendars"`

	// Rules is the scheduling rule set. The engine validates it at the
	// boundary of every run; out-of-range weights abort, they are never
	// clamped here.
	Rules model.SchedulingRules `yaml:"rules"`

	// BasicAuth, if non-nil, protects all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty"`
}

// DefaultRules returns the documented default rule set: one hour per
// task, two-hour chunks for anything above two hours, priority-leaning
// weights, mild jitter, Mon-Fri 09:00-17:00.
func DefaultRules() model.SchedulingRules {
	return model.SchedulingRules{
		MaxTaskDuration:     60,
		MaxLongTaskDuration: 120,
		LongTaskThreshold:   120,
		PriorityWeight:      0.65,
		TimeWeight:          0.35,
		RandomnessFactor:    0.2,
		WorkingDays: map[string]bool{
			"monday":    true,
			"tuesday":   true,
			"wednesday": true,
			"thursday":  true,
			"friday":    true,
			"saturday":  false,
			"sunday":    false,
		},
		TimeBlocks: []model.TimeBlock{
			{ID: "workday", Day: "weekday", Start: "09:00", End: "17:00", Enabled: true},
		},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "UTC",
		PlanCron:       "0 6 * * *",
		HorizonDays:    7,
		StorePath:      "./var/tasks.db",
		CacheDir:       "./var/ics-cache",
		ScheduleSource: "autoplan",
		LogLevel:       "info",
		Calendars:      []CalendarConfig{},
		Rules:          DefaultRules(),
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave. It repairs structure only; rule weights are left for
// the engine boundary to judge.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.PlanCron == "" {
		c.PlanCron = "0 6 * * *"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 7
	}
	if c.StorePath == "" {
		c.StorePath = "./var/tasks.db"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.ScheduleSource == "" {
		c.ScheduleSource = "autoplan"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	if c.Rules.WorkingDays == nil {
		c.Rules.WorkingDays = DefaultRules().WorkingDays
	}
	if c.Rules.TimeBlocks == nil {
		c.Rules.TimeBlocks = DefaultRules().TimeBlocks
	}
}

// Load loads configuration from the given YAML path.
//
// The file's contents are overlaid on DefaultConfig, so omitted fields
// keep their defaults while explicit values (including zeros) win. If
// the file does not exist, a default config is written there first.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with
// 0600 permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".autoplan-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
