package config

import (
	"fmt"
	"strings"

	"starschema/internal/datasource"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "catalog.dsn",
// "remote.output"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over cfg. It does not mutate cfg or touch
// the network; callers decide whether warnings are fatal.
func Validate(cfg Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and catalog rows",
		})
	}

	switch cfg.Mode {
	case ModeLocal:
		issues = append(issues, validatePaths("local", cfg.Local)...)
	case ModeRemote:
		issues = append(issues, validatePaths("remote", cfg.Remote)...)
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "mode",
			Message:  fmt.Sprintf("mode %q is not one of %s, %s", cfg.Mode, ModeLocal, ModeRemote),
		})
	}

	issues = append(issues, validateEngine(cfg)...)
	issues = append(issues, validateLock(cfg)...)
	issues = append(issues, validateCatalog(cfg.Catalog)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	return issues
}

func validatePaths(prefix string, p PathSet) []Issue {
	var issues []Issue
	for _, f := range []struct{ name, value string }{
		{"song_input", p.SongInput},
		{"log_input", p.LogInput},
		{"output", p.Output},
	} {
		path := prefix + "." + f.name
		if strings.TrimSpace(f.value) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: path + " must not be empty"})
			continue
		}
		if _, err := datasource.Parse(f.value); err != nil {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: err.Error()})
		}
	}
	if p.Output != "" && !strings.HasSuffix(p.Output, "/") {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     prefix + ".output",
			Message:  "output does not end with '/'; table names are appended directly",
		})
	}
	return issues
}

func usesObjectStore(cfg Config) bool {
	p, err := cfg.Paths()
	if err != nil {
		return false
	}
	for _, v := range []string{p.SongInput, p.LogInput, p.Output} {
		if loc, err := datasource.Parse(v); err == nil && loc.Scheme == datasource.SchemeS3 {
			return true
		}
	}
	return false
}

func validateEngine(cfg Config) []Issue {
	var issues []Issue
	if cfg.Engine.Workers < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "engine.workers", Message: "workers must not be negative"})
	}
	if _, err := cfg.Location(); err != nil {
		issues = append(issues, Issue{Severity: SeverityError, Path: "engine.timezone", Message: err.Error()})
	}
	if cfg.IDGen.Node < 0 || cfg.IDGen.Node > 1023 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "idgen.node",
			Message:  fmt.Sprintf("node=%d; must be within [0, 1023]", cfg.IDGen.Node),
		})
	}

	hasKey := cfg.AWS.AccessKeyID != ""
	hasSecret := cfg.AWS.SecretAccessKey != ""
	if hasKey != hasSecret {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "AWS_ACCESS_KEY_ID",
			Message:  "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together",
		})
	} else if !hasKey && usesObjectStore(cfg) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "AWS_ACCESS_KEY_ID",
			Message:  "no static credentials; the SDK default credential chain will be used",
		})
	}
	return issues
}

func validateLock(cfg Config) []Issue {
	var issues []Issue
	switch cfg.Lock.Kind {
	case "", "none":
	case "file":
		if usesObjectStore(cfg) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "lock.kind",
				Message:  "file lock only excludes runs on this host; use postgres for shared object-store outputs",
			})
		}
	case "postgres":
		if strings.TrimSpace(cfg.Lock.DSN) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: "lock.dsn", Message: "postgres lock requires ETL_LOCK_DSN"})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "lock.kind",
			Message:  fmt.Sprintf("unknown lock kind %q", cfg.Lock.Kind),
		})
	}
	return issues
}

func validateCatalog(c CatalogConfig) []Issue {
	var issues []Issue
	switch c.Kind {
	case "", "none":
		return nil
	case "sqlite", "postgres", "mssql", "mysql":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "catalog.kind",
			Message:  fmt.Sprintf("unknown catalog kind %q; ensure a matching storage backend is registered", c.Kind),
		})
	}
	if strings.TrimSpace(c.DSN) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "catalog.dsn", Message: "catalog.dsn must not be empty"})
	}
	if strings.TrimSpace(c.Table) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "catalog.table", Message: "catalog.table must not be empty"})
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{{Severity: SeverityError, Path: "metrics.pushgateway_url", Message: "pushgateway backend requires a URL"}}
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			return []Issue{{Severity: SeverityError, Path: "metrics.datadog_addr", Message: "datadog backend requires an agent address"}}
		}
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q", m.Backend),
		}}
	}
	return nil
}
