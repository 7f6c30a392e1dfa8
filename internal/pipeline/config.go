package pipeline

import (
	"fmt"

	"ordersetl/internal/transform"
)

// SourceSpec names one raw extract: the loader kind and its location.
type SourceSpec struct {
	// Kind selects the loader: "csv" or "html".
	Kind string `json:"kind"`
	// Path is the loader-specific location (a file path).
	Path string `json:"path"`
}

// SinkSpec selects the writer backend for all outputs of a run.
type SinkSpec struct {
	// Kind selects a registered backend: "csv", "sqlite", "postgres", "mssql".
	Kind string `json:"kind"`
	// DSN is backend-specific; unused by the csv backend.
	DSN string `json:"dsn,omitempty"`
}

// Outputs names the write destinations. Destination meaning is sink-specific:
// file paths for the csv backend, table names for database backends. Analytics
// is required; the rest are skipped when empty.
type Outputs struct {
	Analytics   string `json:"analytics"`
	Users       string `json:"users,omitempty"`
	OrdersClean string `json:"orders_clean,omitempty"`
	Missingness string `json:"missingness,omitempty"`
}

// Config is the immutable run configuration. It is consumed once at Run start
// and echoed verbatim into the run metadata artifact.
type Config struct {
	// Job names the run for logs and metric tags.
	Job string `json:"job,omitempty"`

	Orders SourceSpec `json:"orders"`
	Users  SourceSpec `json:"users"`

	Sink    SinkSpec `json:"sink"`
	Outputs Outputs  `json:"outputs"`

	// MetaPath is where the run metadata JSON artifact is written.
	MetaPath string `json:"meta_path"`

	// StatusMap overrides the default status vocabulary. Keys must be in
	// normalized form (lowercase, single-spaced).
	StatusMap map[string]string `json:"status_map,omitempty"`

	// UTC controls timestamp normalization; nil means true.
	UTC *bool `json:"utc,omitempty"`

	// OutlierK is the IQR fence multiplier; zero means 1.5.
	OutlierK float64 `json:"outlier_k,omitempty"`
}

// DefaultStatusMap is the built-in status vocabulary.
func DefaultStatusMap() map[string]string {
	return map[string]string{
		"paid":     "paid",
		"refund":   "refund",
		"refunded": "refund",
	}
}

func (c Config) statusMap() map[string]string {
	if len(c.StatusMap) > 0 {
		return c.StatusMap
	}
	return DefaultStatusMap()
}

func (c Config) utc() bool {
	if c.UTC == nil {
		return true
	}
	return *c.UTC
}

func (c Config) outlierK() float64 {
	if c.OutlierK > 0 {
		return c.OutlierK
	}
	return transform.DefaultIQRFactor
}

// Severity classifies a configuration issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding from ValidateConfig. Path is a dotted field path into
// the config document.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue is error-severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var loaderKinds = map[string]bool{"csv": true, "html": true}
var sinkKinds = map[string]bool{"csv": true, "sqlite": true, "postgres": true, "mssql": true}
var dsnRequired = map[string]bool{"sqlite": true, "postgres": true, "mssql": true}

// ValidateConfig checks a run configuration and returns all findings, not
// just the first. Errors make the config unrunnable; warnings flag outputs
// that will be skipped.
func ValidateConfig(c Config) []Issue {
	var issues []Issue

	addErr := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, a...)})
	}
	addWarn := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, a...)})
	}

	checkSource := func(path string, s SourceSpec) {
		if !loaderKinds[s.Kind] {
			addErr(path+".kind", "unknown loader kind %q (want csv or html)", s.Kind)
		}
		if s.Path == "" {
			addErr(path+".path", "path is required")
		}
	}
	checkSource("orders", c.Orders)
	checkSource("users", c.Users)

	if !sinkKinds[c.Sink.Kind] {
		addErr("sink.kind", "unknown sink kind %q (want csv, sqlite, postgres, or mssql)", c.Sink.Kind)
	} else if dsnRequired[c.Sink.Kind] && c.Sink.DSN == "" {
		addErr("sink.dsn", "dsn is required for sink kind %q", c.Sink.Kind)
	}

	if c.Outputs.Analytics == "" {
		addErr("outputs.analytics", "analytics destination is required")
	}
	if c.Outputs.Users == "" {
		addWarn("outputs.users", "no destination; users output will be skipped")
	}
	if c.Outputs.OrdersClean == "" {
		addWarn("outputs.orders_clean", "no destination; orders-clean output will be skipped")
	}

	if c.MetaPath == "" {
		addErr("meta_path", "meta_path is required")
	}

	if len(c.StatusMap) > 0 {
		if err := transform.ValidateMapping(c.StatusMap); err != nil {
			addErr("status_map", "%v", err)
		}
	}

	if c.OutlierK < 0 {
		addErr("outlier_k", "must be >= 0 (got %v)", c.OutlierK)
	}

	return issues
}
