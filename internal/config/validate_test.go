package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validLocal() Config {
	return Config{
		Job:     "starschema",
		Mode:    ModeLocal,
		Local:   DefaultLocal,
		Remote:  DefaultRemote,
		Engine:  EngineConfig{Workers: 2, Timezone: "UTC"},
		IDGen:   IDGenConfig{Node: 1},
		Lock:    LockConfig{Kind: "file", Dir: "/tmp"},
		Catalog: CatalogConfig{Kind: "none", Table: "etl_runs"},
		Metrics: MetricsConfig{Backend: "none"},
	}
}

func TestValidate_ValidMinimal(t *testing.T) {
	if issues := Validate(validLocal()); len(issues) != 0 {
		t.Fatalf("expected no issues; got %+v", issues)
	}
}

func TestValidate_MissingJob(t *testing.T) {
	cfg := validLocal()
	cfg.Job = "  "

	issues := Validate(cfg)
	if !hasIssue(t, issues, SeverityError, "job", "job must not be empty") {
		t.Fatalf("expected SeverityError for job; got issues: %+v", issues)
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := validLocal()
	cfg.Mode = "cloud"

	issues := Validate(cfg)
	if !hasIssue(t, issues, SeverityError, "mode", `"cloud"`) {
		t.Fatalf("expected mode error; got %+v", issues)
	}
}

func TestValidate_Paths(t *testing.T) {
	cfg := validLocal()
	cfg.Local.LogInput = ""
	cfg.Local.Output = "gs://bucket/out"

	issues := Validate(cfg)
	if !hasIssue(t, issues, SeverityError, "local.log_input", "must not be empty") {
		t.Errorf("expected log_input error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "local.output", "unsupported scheme") {
		t.Errorf("expected output scheme error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "local.output", "does not end with '/'") {
		t.Errorf("expected trailing slash warning; got %+v", issues)
	}
}

func TestValidate_InactiveModeIgnored(t *testing.T) {
	cfg := validLocal()
	cfg.Remote = PathSet{}

	if issues := Validate(cfg); len(issues) != 0 {
		t.Fatalf("remote paths should not be checked in local mode; got %+v", issues)
	}
}

func TestValidate_Engine(t *testing.T) {
	cfg := validLocal()
	cfg.Engine.Workers = -1
	cfg.Engine.Timezone = "Nowhere/Special"
	cfg.IDGen.Node = 2048

	issues := Validate(cfg)
	if !hasIssue(t, issues, SeverityError, "engine.workers", "negative") {
		t.Errorf("expected workers error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "engine.timezone", "") {
		t.Errorf("expected timezone error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "idgen.node", "node=2048") {
		t.Errorf("expected idgen.node error; got %+v", issues)
	}
}

func TestValidate_Credentials(t *testing.T) {
	cfg := validLocal()
	cfg.AWS.AccessKeyID = "AKIA"

	issues := Validate(cfg)
	if !hasIssue(t, issues, SeverityError, "AWS_ACCESS_KEY_ID", "set together") {
		t.Fatalf("expected half-credential error; got %+v", issues)
	}
}

func TestValidate_RemoteWithoutCredentialsWarns(t *testing.T) {
	cfg := validLocal()
	cfg.Mode = ModeRemote
	cfg.Lock.Kind = "none"

	issues := Validate(cfg)
	if HasErrors(issues) {
		t.Fatalf("expected warnings only; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "AWS_ACCESS_KEY_ID", "default credential chain") {
		t.Fatalf("expected credential chain warning; got %+v", issues)
	}
}

func TestValidate_Lock(t *testing.T) {
	cases := []struct {
		name string
		mode string
		lock LockConfig
		sev  IssueSeverity
		path string
		msg  string
	}{
		{"postgres without dsn", ModeLocal, LockConfig{Kind: "postgres"}, SeverityError, "lock.dsn", "ETL_LOCK_DSN"},
		{"unknown kind", ModeLocal, LockConfig{Kind: "zookeeper"}, SeverityError, "lock.kind", "zookeeper"},
		{"file lock on s3", ModeRemote, LockConfig{Kind: "file"}, SeverityWarning, "lock.kind", "this host"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validLocal()
			cfg.Mode = tc.mode
			cfg.Lock = tc.lock
			if issues := Validate(cfg); !hasIssue(t, issues, tc.sev, tc.path, tc.msg) {
				t.Fatalf("expected %s at %s; got %+v", tc.sev, tc.path, issues)
			}
		})
	}
}

func TestValidate_Catalog(t *testing.T) {
	cfg := validLocal()
	cfg.Catalog = CatalogConfig{Kind: "sqlite"}

	issues := Validate(cfg)
	if !hasIssue(t, issues, SeverityError, "catalog.dsn", "must not be empty") {
		t.Errorf("expected dsn error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "catalog.table", "must not be empty") {
		t.Errorf("expected table error; got %+v", issues)
	}

	for _, kind := range []string{"sqlite", "postgres", "mssql", "mysql"} {
		cfg.Catalog = CatalogConfig{Kind: kind, DSN: "x", Table: "t"}
		for _, is := range Validate(cfg) {
			if strings.HasPrefix(is.Path, "catalog.") {
				t.Errorf("%s: unexpected issue %+v", kind, is)
			}
		}
	}

	cfg.Catalog = CatalogConfig{Kind: "oracle", DSN: "x", Table: "t"}
	if issues := Validate(cfg); !hasIssue(t, issues, SeverityWarning, "catalog.kind", "oracle") {
		t.Errorf("expected unknown kind warning; got %+v", issues)
	}
}

func TestValidate_Metrics(t *testing.T) {
	cfg := validLocal()
	cfg.Metrics = MetricsConfig{Backend: "pushgateway"}
	if issues := Validate(cfg); !hasIssue(t, issues, SeverityError, "metrics.pushgateway_url", "requires a URL") {
		t.Errorf("expected pushgateway error; got %+v", issues)
	}

	cfg.Metrics = MetricsConfig{Backend: "graphite"}
	if issues := Validate(cfg); !hasIssue(t, issues, SeverityError, "metrics.backend", "graphite") {
		t.Errorf("expected backend error; got %+v", issues)
	}
}

func TestIssue_Error(t *testing.T) {
	got := Issue{Severity: SeverityError, Path: "job", Message: "empty"}.Error()
	if want := "error at job: empty"; got != want {
		t.Fatalf("Error()=%q, want %q", got, want)
	}
}
