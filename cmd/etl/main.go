// Command etl runs the orders analytics pipeline: it loads the run config,
// optionally initializes a metrics backend, and executes one run or a
// cron-scheduled series of runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"ordersetl/internal/metrics"
	"ordersetl/internal/metrics/datadog"
	"ordersetl/internal/metrics/prompush"
	"ordersetl/internal/pipeline"

	// register all writer backends with the sink factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "ordersetl/internal/sink/all"
)

func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		schedule          string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/run.json", "run config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&schedule, "schedule", "", "cron expression; when set, run repeatedly instead of once")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := pipeline.ValidateConfig(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if pipeline.HasErrors(issues) {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	jobName := cfg.Job
	if jobName == "" {
		jobName = "ordersetl"
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		// Decide Pushgateway URL: flag → env → default.
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := prompush.NewBackend(prompush.Options{URL: gwURL, JobName: jobName})
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v backend=%v job_name=%v", gwURL, backendName, jobName)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "datadog":
		// The Datadog backend buffers, submits periodically, and submits one
		// final time on Close.
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	runner := pipeline.NewDefaultRunner()
	if *verbose {
		runner.Logger = log.Default()
	}

	if schedule != "" {
		runScheduled(runner, cfg, schedule, *verbose)
		return
	}

	start := time.Now()
	m, err := runner.Run(context.Background(), cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *verbose {
		log.Printf("run_id=%s rows_out=%d completed in %s",
			m.RunID, m.RowsOutAnalytics, time.Since(start).Truncate(time.Millisecond))
	}
}

// runScheduled executes the pipeline on the given cron expression until the
// process is killed. A failed run logs and waits for the next tick; it does
// not stop the schedule.
func runScheduled(runner *pipeline.Runner, cfg pipeline.Config, schedule string, verbose bool) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		start := time.Now()
		m, err := runner.Run(context.Background(), cfg)
		if err != nil {
			log.Printf("scheduled run failed: %v", err)
			return
		}
		if verbose {
			log.Printf("run_id=%s rows_out=%d completed in %s",
				m.RunID, m.RowsOutAnalytics, time.Since(start).Truncate(time.Millisecond))
		}
	})
	if err != nil {
		fatalf("invalid -schedule %q: %v", schedule, err)
	}

	log.Printf("scheduled: %q", schedule)
	c.Run()
}

// loadConfig reads and decodes the run config. Unknown fields are rejected so
// a typo in a config file fails loudly instead of silently using a default.
func loadConfig(path string) (pipeline.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg pipeline.Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return pipeline.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
