package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"starschema/internal/config"
	"starschema/internal/engine"
	"starschema/internal/pipeline"
	"starschema/internal/probe"
)

// main is the entrypoint for the input probe. It loads the song and/or log
// inputs of the configured mode exactly as the job would, then prints the
// inferred schema and whether the required columns are present. Nothing is
// written to the output.
func main() {
	var (
		flagConfig  = flag.String("config", "", "job config YAML path (optional; env overrides apply)")
		flagEnvFile = flag.String("env-file", config.DefaultEnvFile, "dotenv file holding AWS credentials")
		flagMode    = flag.String("mode", "", "path set to probe: local or remote (overrides config)")
		flagDataset = flag.String("dataset", "all", "which input to probe: song_data, log_data or all")
		flagJSON    = flag.Bool("json", false, "print results as JSON")
		flagTimeout = flag.Duration("timeout", 10*time.Minute, "overall deadline")
	)
	flag.Parse()

	cfg, err := config.Load(*flagConfig, *flagEnvFile)
	if err != nil {
		fatalf("load config: %v", err)
	}
	if *flagMode != "" {
		cfg.Mode = *flagMode
	}
	paths, err := cfg.Paths()
	if err != nil {
		fatalf("%v", err)
	}

	var targets [][2]string
	switch *flagDataset {
	case pipeline.SongData:
		targets = [][2]string{{pipeline.SongData, paths.SongInput}}
	case pipeline.LogData:
		targets = [][2]string{{pipeline.LogData, paths.LogInput}}
	case "all":
		targets = [][2]string{{pipeline.SongData, paths.SongInput}, {pipeline.LogData, paths.LogInput}}
	default:
		fmt.Fprintf(os.Stderr, "unknown -dataset %q\n", *flagDataset)
		flag.Usage()
		os.Exit(2)
	}

	eng, err := engine.New(engine.Config{
		Workers:  cfg.Engine.Workers,
		Region:   cfg.Engine.Region,
		Endpoint: cfg.Engine.Endpoint,
		Credentials: engine.Credentials{
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			SessionToken:    cfg.AWS.SessionToken,
		},
		RunID:       "probe-" + uuid.NewString(),
		AllowArrays: cfg.Engine.AllowArrays,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		fatalf("engine: %v", err)
	}
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()

	var (
		results []*probe.Result
		failed  bool
	)
	for _, t := range targets {
		res, err := probe.Probe(ctx, eng, t[0], t[1], pipeline.InputColumns(t[0]))
		if err != nil {
			fatalf("%v", err)
		}
		results = append(results, res)
		failed = failed || !res.OK()
	}

	if *flagJSON {
		err = probe.WriteJSON(os.Stdout, results)
	} else {
		for _, r := range results {
			if err = r.WriteText(os.Stdout); err != nil {
				break
			}
		}
	}
	if err != nil {
		fatalf("write: %v", err)
	}
	if failed {
		os.Exit(1)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
