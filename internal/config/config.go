// Package config loads the job configuration.
//
// Values come from an optional YAML file with environment variable overrides
// (cleanenv). Object-store secrets are never read from YAML: they come from
// the environment or from a dotenv-format secret file, and are handed to the
// engine explicitly rather than exported into the process environment.
//
// Example (trimmed):
//
//	job: starschema-nightly
//	mode: remote
//	remote:
//	  output: s3a://my-bucket/warehouse/
//	engine:
//	  workers: 8
//	  timezone: UTC
//	catalog:
//	  kind: sqlite
//	  dsn: file:runs.db
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Modes select one of the configured path sets.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// DefaultEnvFile is the secret file read when no -env-file is given.
const DefaultEnvFile = "secret.env"

// Config is the full job configuration.
type Config struct {
	// Job labels metrics, logs and catalog rows.
	Job string `yaml:"job" env:"ETL_JOB" env-default:"starschema"`
	// Mode is "local" or "remote".
	Mode string `yaml:"mode" env:"ETL_MODE" env-default:"local"`

	Local  PathSet `yaml:"local" env-prefix:"ETL_LOCAL_"`
	Remote PathSet `yaml:"remote" env-prefix:"ETL_REMOTE_"`

	Engine  EngineConfig  `yaml:"engine"`
	Join    JoinConfig    `yaml:"join"`
	IDGen   IDGenConfig   `yaml:"idgen"`
	Lock    LockConfig    `yaml:"lock"`
	Catalog CatalogConfig `yaml:"catalog"`
	Metrics MetricsConfig `yaml:"metrics"`

	// AWS holds object-store secrets. Env or secret file only.
	AWS AWSConfig `yaml:"-"`
}

// PathSet is where one mode reads its inputs and writes its tables.
type PathSet struct {
	SongInput string `yaml:"song_input" env:"SONG_INPUT"`
	LogInput  string `yaml:"log_input" env:"LOG_INPUT"`
	Output    string `yaml:"output" env:"OUTPUT"`
}

// EngineConfig tunes reading and writing.
type EngineConfig struct {
	// Workers bounds concurrent file decodes. Zero means NumCPU.
	Workers  int    `yaml:"workers" env:"ETL_WORKERS"`
	Timezone string `yaml:"timezone" env:"ETL_TIMEZONE" env-default:"UTC"`
	Region   string `yaml:"region" env:"AWS_REGION" env-default:"us-west-2"`
	// Endpoint points at an S3-compatible store instead of AWS.
	Endpoint   string `yaml:"endpoint" env:"ETL_S3_ENDPOINT"`
	StagingDir string `yaml:"staging_dir" env:"ETL_STAGING_DIR"`
	// AllowArrays accepts input files holding a top-level JSON array.
	AllowArrays bool `yaml:"allow_arrays" env:"ETL_ALLOW_ARRAYS"`
}

// JoinConfig controls how log events are matched to songs.
type JoinConfig struct {
	// FoldKeys compares artist and title after Unicode folding instead of
	// exactly. Enabling it can change the songplays row count.
	FoldKeys bool `yaml:"fold_keys" env:"ETL_JOIN_FOLD_KEYS" env-default:"false"`
}

// IDGenConfig configures songplay_id generation.
type IDGenConfig struct {
	Node int64 `yaml:"node" env:"ETL_IDGEN_NODE" env-default:"1"`
}

// LockConfig selects destination locking: "file", "postgres" or "none".
type LockConfig struct {
	Kind string `yaml:"kind" env:"ETL_LOCK_KIND" env-default:"file"`
	Dir  string `yaml:"dir" env:"ETL_LOCK_DIR"`
	DSN  string `yaml:"-" env:"ETL_LOCK_DSN"`
}

// CatalogConfig selects where run reports are stored: "none", "sqlite",
// "postgres", "mssql" or "mysql".
type CatalogConfig struct {
	Kind  string `yaml:"kind" env:"ETL_CATALOG_KIND" env-default:"none"`
	DSN   string `yaml:"dsn" env:"ETL_CATALOG_DSN"`
	Table string `yaml:"table" env:"ETL_CATALOG_TABLE" env-default:"etl_runs"`
}

// MetricsConfig selects a metrics backend: "none", "pushgateway" or "datadog".
type MetricsConfig struct {
	Backend        string `yaml:"backend" env:"ETL_METRICS_BACKEND" env-default:"none"`
	PushgatewayURL string `yaml:"pushgateway_url" env:"ETL_PUSHGATEWAY_URL"`
	DatadogAddr    string `yaml:"datadog_addr" env:"ETL_DATADOG_ADDR" env-default:"127.0.0.1:8125"`
}

// AWSConfig carries static object-store credentials.
type AWSConfig struct {
	AccessKeyID     string `yaml:"-" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `yaml:"-" env:"AWS_SESSION_TOKEN"`
}

// Default path sets, used for any field left empty.
var (
	DefaultLocal = PathSet{
		SongInput: "data/song_data/*/*/*/*.json",
		LogInput:  "data/log_data/*.json",
		Output:    "data/out/",
	}
	DefaultRemote = PathSet{
		SongInput: "s3a://udacity-dend/song_data/*/*/*/*.json",
		LogInput:  "s3a://udacity-dend/log_data/*.json",
		Output:    "s3a://udacity-dend/",
	}
)

// Load reads path (optional) with environment overrides, then fills missing
// secrets from envFile. A missing envFile is not an error. An empty path
// reads the environment only.
func Load(path, envFile string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	secrets, err := readSecrets(envFile)
	if err != nil {
		return nil, err
	}
	cfg.AWS.fill(secrets)
	cfg.applyDefaults()
	return cfg, nil
}

// readSecrets parses a dotenv file without touching the process environment.
func readSecrets(envFile string) (map[string]string, error) {
	if envFile == "" {
		return nil, nil
	}
	m, err := godotenv.Read(envFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read secret file %s: %w", envFile, err)
	}
	return m, nil
}

// fill sets every field still empty from m. The environment wins over the
// file.
func (a *AWSConfig) fill(m map[string]string) {
	set := func(dst *string, key string) {
		if *dst == "" {
			*dst = m[key]
		}
	}
	set(&a.AccessKeyID, "AWS_ACCESS_KEY_ID")
	set(&a.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	set(&a.SessionToken, "AWS_SESSION_TOKEN")
}

func (c *Config) applyDefaults() {
	c.Local = c.Local.withDefaults(DefaultLocal)
	c.Remote = c.Remote.withDefaults(DefaultRemote)
	if c.Engine.Workers <= 0 {
		c.Engine.Workers = runtime.NumCPU()
	}
	if c.Lock.Dir == "" {
		c.Lock.Dir = os.TempDir()
	}
}

func (p PathSet) withDefaults(d PathSet) PathSet {
	if p.SongInput == "" {
		p.SongInput = d.SongInput
	}
	if p.LogInput == "" {
		p.LogInput = d.LogInput
	}
	if p.Output == "" {
		p.Output = d.Output
	}
	return p
}

// Paths returns the path set of the active mode.
func (c *Config) Paths() (PathSet, error) {
	switch c.Mode {
	case ModeLocal:
		return c.Local, nil
	case ModeRemote:
		return c.Remote, nil
	default:
		return PathSet{}, fmt.Errorf("unknown mode %q (want %s or %s)", c.Mode, ModeLocal, ModeRemote)
	}
}

// Location resolves Engine.Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Engine.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine.timezone: %w", err)
	}
	return loc, nil
}
