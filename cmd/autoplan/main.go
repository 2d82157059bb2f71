package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"autoplan/internal/config"
	"autoplan/internal/engine"
	"autoplan/internal/ics"
	appLog "autoplan/internal/log"
	"autoplan/internal/model"
	"autoplan/internal/store"
	"autoplan/internal/web"
)

// flagConfig holds parsed CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	dump       bool
}

func main() {
	appLog.Info("autoplan starting", "version", "0.1.0-dev")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(conf.LogLevel)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"plan_cron", conf.PlanCron,
		"horizon_days", conf.HorizonDays,
		"calendar_count", len(conf.Calendars),
		"store_path", conf.StorePath,
		"once", flags.once,
		"dump", flags.dump,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st, err := store.Open(conf.StorePath)
	if err != nil {
		appLog.Error("failed to open task store", err, "path", conf.StorePath)
		os.Exit(1)
	}
	defer st.Close()

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone; falling back to local", err, "timezone", conf.Timezone)
		loc = time.Local
	}

	var busy web.BusySource
	if sources := icsSources(conf); len(sources) > 0 {
		busy = ics.NewClient(conf.CacheDir, sources, loc)
	}

	eng := &engine.Engine{}

	if flags.once {
		if err := runPlanOnce(ctx, conf, st, busy, eng, loc, flags.dump); err != nil {
			appLog.Error("planning run failed", err)
			os.Exit(1)
		}
		appLog.Info("autoplan exiting")
		return
	}

	// Daemon mode: periodic re-planning plus the HTTP API.
	c := cron.New()
	if conf.PlanCron != "" {
		_, err := c.AddFunc(conf.PlanCron, func() {
			if err := runPlanOnce(ctx, conf, st, busy, eng, loc, false); err != nil {
				appLog.Error("scheduled planning run failed", err)
			}
		})
		if err != nil {
			appLog.Error("invalid plan_cron expression", err, "plan_cron", conf.PlanCron)
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
	}

	go func() {
		if err := web.StartServer(ctx, conf, st, busy, eng); err != nil {
			appLog.Error("HTTP server stopped", err)
			cancel()
		}
	}()

	<-ctx.Done()
	appLog.Info("autoplan exiting")
}

// icsSources converts configured calendars into fetchable sources,
// defaulting missing IDs the same way the API does.
func icsSources(conf *config.Config) []ics.Source {
	sources := make([]ics.Source, 0, len(conf.Calendars))
	for _, cal := range conf.Calendars {
		if cal.URL == "" {
			continue
		}
		id := cal.ID
		if id == "" {
			if cal.Name != "" {
				id = cal.Name
			} else {
				id = cal.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, URL: cal.URL})
	}
	return sources
}

// runPlanOnce executes a single planning pass: pending tasks and busy
// calendars in, proposed events out. The result is written to
// conf.OutputPath as ICS when set, otherwise to stdout; -dump switches
// the output to the full JSON result.
func runPlanOnce(ctx context.Context, conf *config.Config, st *store.Store, busy web.BusySource, eng *engine.Engine, loc *time.Location, dump bool) error {
	now := time.Now().In(loc)
	rangeStart := now
	rangeEnd := now.AddDate(0, 0, conf.HorizonDays)

	tasks, err := st.ListPending(ctx)
	if err != nil {
		return err
	}

	var existing []model.ExistingEvent
	if busy != nil {
		existing, err = busy.Busy(ctx, rangeStart, rangeEnd)
		if err != nil {
			return err
		}
	}

	result, err := eng.Schedule(tasks, conf.Rules, rangeStart, rangeEnd, existing, conf.ScheduleSource)
	if err != nil {
		return err
	}

	appLog.Info("planning run finished",
		"tasks", len(tasks),
		"busy", len(existing),
		"events", len(result.Events),
		"unscheduled", len(result.UnscheduledTaskIDs),
		"warnings", len(result.Warnings),
	)

	if dump {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	body := ics.BuildCalendar(result.Events)
	if conf.OutputPath != "" {
		return os.WriteFile(conf.OutputPath, []byte(body), 0o644)
	}
	_, err = os.Stdout.WriteString(body)
	return err
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run a single planning pass and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "With -once, print the full planning result as JSON")

	flag.Parse()

	return cfg
}
