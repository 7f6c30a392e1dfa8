// Package pipeline sequences the orders analytics run: Extract, Validate-Raw,
// Transform, Validate-Post, Load, Metadata. It is the only package with side
// effects; every stage below it is a pure function from datasets to datasets.
//
// Failure semantics: any error before Load aborts the run with nothing
// written. Load and Metadata failures after partial writes are reported
// as-is; there is no rollback of already-written outputs.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"ordersetl/internal/dataset"
	"ordersetl/internal/join"
	"ordersetl/internal/metrics"
	"ordersetl/internal/quality"
	"ordersetl/internal/runmeta"
	"ordersetl/internal/sink"
	"ordersetl/internal/source"
	"ordersetl/internal/source/csvsrc"
	"ordersetl/internal/source/htmlsrc"
	"ordersetl/internal/transform"
)

// Logger is the minimal logging interface used by the runner.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

var ordersColumns = []string{"order_id", "user_id", "amount", "quantity", "created_at", "status"}
var usersColumns = []string{"user_id", "country", "signup_date"}

var ordersSchema = map[string]transform.ColumnType{
	"order_id":   transform.TypeText,
	"user_id":    transform.TypeText,
	"amount":     transform.TypeNumeric,
	"quantity":   transform.TypeNumeric,
	"created_at": transform.TypeText,
	"status":     transform.TypeText,
}

var usersSchema = map[string]transform.ColumnType{
	"user_id":     transform.TypeText,
	"country":     transform.TypeText,
	"signup_date": transform.TypeText,
}

// joinSuffix disambiguates right-side columns whose names collide with the
// left side.
const joinSuffix = "_user"

// Runner executes runs. All collaborators are seams: tests inject fake
// loaders and writers, production uses NewDefaultRunner.
type Runner struct {
	// Loaders maps source kind to loader.
	Loaders map[string]source.Loader

	// NewWriter constructs the writer backend for the Load stage.
	NewWriter func(ctx context.Context, cfg sink.Config) (sink.Writer, error)

	// Logger receives stage logs. Nil means discard.
	Logger Logger

	// now is injected for deterministic metadata tests. Production uses time.Now.
	now func() time.Time
}

// NewDefaultRunner wires the production collaborators.
func NewDefaultRunner() *Runner {
	return &Runner{
		Loaders: map[string]source.Loader{
			"csv":  csvsrc.NewLoader(),
			"html": htmlsrc.NewLoader(),
		},
		NewWriter: sink.New,
		now:       time.Now,
	}
}

// Run executes one full run and returns the metadata record it wrote. On any
// fatal failure the returned metadata is the zero value and no metadata
// artifact exists on disk.
func (r *Runner) Run(ctx context.Context, cfg Config) (runmeta.Meta, error) {
	logf := r.logger()

	if issues := ValidateConfig(cfg); HasErrors(issues) {
		for _, iss := range issues {
			if iss.Severity == SeverityError {
				return runmeta.Meta{}, fmt.Errorf("config: %s: %s", iss.Path, iss.Message)
			}
		}
	}

	nowFn := r.now
	if nowFn == nil {
		nowFn = time.Now
	}
	meta := runmeta.NewBuilder(nowFn)
	meta.SetConfig(cfg)
	logf("run_id=%s job=%s", meta.RunID(), cfg.Job)

	var orders, users *dataset.Dataset
	err := r.step("extract", logf, func() error {
		var err error
		if orders, err = r.load(ctx, cfg.Orders); err != nil {
			return err
		}
		users, err = r.load(ctx, cfg.Users)
		return err
	})
	if err != nil {
		return runmeta.Meta{}, err
	}
	meta.SetInputCounts(orders.NumRows(), users.NumRows())
	metrics.IncCounter("etl_records_total", float64(orders.NumRows()), metrics.Labels{"kind": "orders_raw"})
	metrics.IncCounter("etl_records_total", float64(users.NumRows()), metrics.Labels{"kind": "users"})

	err = r.step("validate_raw", logf, func() error {
		if err := quality.RequireColumns(orders, "orders_raw", ordersColumns); err != nil {
			return err
		}
		if err := quality.AssertNonEmpty(orders, "orders_raw"); err != nil {
			return err
		}
		if err := quality.RequireColumns(users, "users", usersColumns); err != nil {
			return err
		}
		return quality.AssertNonEmpty(users, "users")
	})
	if err != nil {
		return runmeta.Meta{}, err
	}

	var analytics, missingness *dataset.Dataset
	err = r.step("transform", logf, func() error {
		var err error
		if analytics, missingness, err = r.transform(cfg, meta, orders, users); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return runmeta.Meta{}, err
	}

	err = r.step("validate_post", logf, func() error {
		if err := quality.AssertInRange(analytics, "analytics", "amount", 0, math.Inf(1)); err != nil {
			return err
		}
		if err := quality.AssertInRange(analytics, "analytics", "quantity", 0, math.Inf(1)); err != nil {
			return err
		}
		return join.CheckRowCount(orders, analytics)
	})
	if err != nil {
		return runmeta.Meta{}, err
	}

	err = r.step("load", logf, func() error {
		return r.loadOutputs(ctx, cfg, users, analytics, missingness)
	})
	if err != nil {
		return runmeta.Meta{}, err
	}
	meta.SetOutputCount(analytics.NumRows())
	metrics.IncCounter("etl_records_total", float64(analytics.NumRows()), metrics.Labels{"kind": "analytics"})

	var m runmeta.Meta
	err = r.step("metadata", logf, func() error {
		m = meta.Build("succeeded")
		return runmeta.WriteFile(cfg.MetaPath, m)
	})
	if err != nil {
		return runmeta.Meta{}, err
	}

	return m, nil
}

// transform turns raw orders and users into the final analytics table plus
// the missingness diagnostic. Ordering matters: range gates run on pre-cap
// values so a negative amount aborts the run instead of being winsorized
// into range.
func (r *Runner) transform(cfg Config, meta *runmeta.Builder, orders, users *dataset.Dataset) (analytics, missingness *dataset.Dataset, err error) {
	mapping := cfg.statusMap()
	if err := transform.ValidateMapping(mapping); err != nil {
		return nil, nil, err
	}

	orders, err = transform.EnforceSchema(orders, ordersSchema)
	if err != nil {
		return nil, nil, err
	}

	status, _ := orders.Column("status")
	statusClean := transform.ApplyMapping(transform.NormalizeText(status), mapping)
	orders, err = orders.WithColumn("status_clean", statusClean)
	if err != nil {
		return nil, nil, err
	}

	orders, err = transform.AddMissingFlags(orders, []string{"amount", "quantity"})
	if err != nil {
		return nil, nil, err
	}
	missingness = transform.MissingnessReport(orders)

	if err := quality.AssertInRange(orders, "orders_clean", "amount", 0, math.Inf(1)); err != nil {
		return nil, nil, err
	}
	if err := quality.AssertInRange(orders, "orders_clean", "quantity", 0, math.Inf(1)); err != nil {
		return nil, nil, err
	}

	orders, err = transform.ParseDatetime(orders, "created_at", cfg.utc())
	if err != nil {
		return nil, nil, err
	}
	if n, ok := orders.NullCount("created_at"); ok {
		meta.SetMissingCreatedAt(int64(n))
		metrics.SetGauge("etl_missing_created_at", float64(n), nil)
	}
	orders, err = transform.AddTimeParts(orders, "created_at")
	if err != nil {
		return nil, nil, err
	}

	users, err = transform.EnforceSchema(users, usersSchema)
	if err != nil {
		return nil, nil, err
	}
	if err := quality.AssertUniqueKey(users, "users", "user_id"); err != nil {
		return nil, nil, err
	}

	joined, err := join.SafeLeftJoin(orders, users, "user_id", join.ManyToOne, joinSuffix)
	if err != nil {
		return nil, nil, err
	}
	if err := join.CheckRowCount(orders, joined); err != nil {
		return nil, nil, err
	}

	if country, ok := joined.Column("country"); ok && joined.NumRows() > 0 {
		matched := 0
		for _, v := range country {
			if v != nil {
				matched++
			}
		}
		rate := float64(matched) / float64(joined.NumRows())
		meta.SetCountryMatchRate(rate)
		metrics.SetGauge("etl_country_match_rate", rate, nil)
	}

	analytics, err = transform.CapOutliers(joined, "amount", cfg.outlierK())
	if err != nil {
		return nil, nil, err
	}
	return analytics, missingness, nil
}

// loadOutputs persists the run's artifacts through one writer. Analytics is
// mandatory; users, orders-clean, and missingness are written when the config
// names a destination for them.
func (r *Runner) loadOutputs(ctx context.Context, cfg Config, users, analytics, missingness *dataset.Dataset) error {
	w, err := r.NewWriter(ctx, sink.Config{Kind: cfg.Sink.Kind, DSN: cfg.Sink.DSN})
	if err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	defer w.Close()

	if cfg.Outputs.Users != "" {
		if err := w.WriteDataset(ctx, cfg.Outputs.Users, users); err != nil {
			return err
		}
	}
	if err := w.WriteDataset(ctx, cfg.Outputs.Analytics, analytics); err != nil {
		return err
	}
	if cfg.Outputs.OrdersClean != "" {
		if err := w.WriteDataset(ctx, cfg.Outputs.OrdersClean, ordersCleanView(analytics)); err != nil {
			return err
		}
	}
	if cfg.Outputs.Missingness != "" {
		if err := w.WriteDataset(ctx, cfg.Outputs.Missingness, missingness); err != nil {
			return err
		}
	}
	return nil
}

// ordersCleanView drops the user-side columns from the analytics table,
// leaving the cleaned orders on their own.
func ordersCleanView(analytics *dataset.Dataset) *dataset.Dataset {
	drop := make([]string, 0, len(usersColumns)*2)
	for _, c := range usersColumns {
		if c == "user_id" {
			continue
		}
		drop = append(drop, c, c+joinSuffix)
	}
	return analytics.Drop(drop...)
}

func (r *Runner) load(ctx context.Context, spec SourceSpec) (*dataset.Dataset, error) {
	l := r.Loaders[spec.Kind]
	if l == nil {
		return nil, fmt.Errorf("no loader for kind=%q", spec.Kind)
	}
	return l.Load(ctx, spec.Path)
}

// step runs one stage with timing, metrics, and the stage log line.
func (r *Runner) step(name string, logf func(format string, v ...any), fn func() error) error {
	start := time.Now()
	err := fn()
	dur := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IncCounter("etl_step_total", 1, metrics.Labels{"step": name, "status": status})
	metrics.ObserveHistogram("etl_step_duration_seconds", dur.Seconds(), metrics.Labels{"step": name, "status": status})

	if err != nil {
		logf("stage=%s status=error duration=%s err=%v", name, durMS(dur), err)
		return fmt.Errorf("stage %s: %w", name, err)
	}
	logf("stage=%s ok duration=%s", name, durMS(dur))
	return nil
}

func (r *Runner) logger() func(format string, v ...any) {
	if r.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return r.Logger.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func durMS(d time.Duration) time.Duration {
	return d.Truncate(time.Millisecond)
}
