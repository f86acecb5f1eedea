package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"starschema/internal/config"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "starschema/internal/storage/all"
)

// main is the entry point for the ETL binary. It loads the job config,
// optionally initializes a metrics backend, and builds the five star-schema
// tables.
func main() {
	var (
		cfgPath  string
		envFile  string
		mode     string
		validate bool
	)

	flag.StringVar(&cfgPath, "config", "", "job config YAML path (optional; env overrides apply)")
	flag.StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file holding AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY")
	flag.StringVar(&mode, "mode", "", "path set to use: local or remote (overrides config)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	log, err := newLogger(*verbose)
	if err != nil {
		fatalf("init logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(cfgPath, envFile)
	if err != nil {
		fatalf("load config: %v", err)
	}
	if mode != "" {
		cfg.Mode = mode
	}

	issues := config.Validate(*cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Error("configuration is invalid", zap.String("config", cfgPath))
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if validate {
		log.Info("configuration is valid", zap.String("config", cfgPath))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := run(ctx, cfg, log); err != nil {
		log.Error("run failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

// newLogger returns a JSON production logger, or a console logger at debug
// level when verbose is set.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopmentConfig().Build()
	}
	return zap.NewProductionConfig().Build()
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
