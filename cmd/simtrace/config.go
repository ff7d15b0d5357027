package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the contents of the optional YAML configuration file.
type Config struct {
	Output struct {
		// Format is either "json" or "table".
		Format string `yaml:"format"`
		Indent string `yaml:"indent"`
		// DiskLanes controls whether disk operations and their rows are part of the output.
		DiskLanes bool `yaml:"disk_lanes"`
	} `yaml:"output"`
	Utilization struct {
		// Size of a utilization bucket, in seconds. Zero disables utilization output.
		BucketSize float64 `yaml:"bucket_size"`
	} `yaml:"utilization"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Output.Format = "json"
	cfg.Output.Indent = "  "
	cfg.Output.DiskLanes = true
	cfg.Utilization.BucketSize = 1
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// loadConfig reads a configuration file. Settings missing from the file keep their defaults.
func loadConfig(configPath string) (Config, error) {
	config := defaultConfig()
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := config.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return config, nil
}

func (cfg *Config) validate() error {
	switch cfg.Output.Format {
	case "json", "table":
	default:
		return fmt.Errorf("invalid output format %q: must be 'json' or 'table'", cfg.Output.Format)
	}
	if cfg.Utilization.BucketSize < 0 {
		return fmt.Errorf("invalid bucket size %g", cfg.Utilization.BucketSize)
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return err
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.Log.Format)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", s)
	}
	return level, nil
}

// ExitError is an error that carries the process's exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

type options struct {
	input  string
	output string
	config Config
}

// parseArgs processes command line arguments. Flags override the configuration file. It returns true if the
// program should exit without doing any work.
func parseArgs(args []string, output io.Writer) (*options, bool, error) {
	flagSet := flag.NewFlagSet("simtrace", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
simtrace - lays out the tasks and disk operations of a simulation trace.

Usage:
  simtrace [options] TRACE

Arguments:
  TRACE
    Path to a JSON trace, optionally compressed with snappy (.sz) or zstd (.zst). Use - for standard input.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to a YAML configuration file.")
	outputFlag := flagSet.String("o", "", "Write output to this file instead of standard output.")
	formatFlag := flagSet.String("format", "", "Output format. Options: 'json' or 'table'.")
	indentFlag := flagSet.String("indent", "", "Indentation of JSON output.")
	bucketFlag := flagSet.Float64("bucket", 0, "Size of host utilization buckets, in seconds. 0 disables them.")
	diskFlag := flagSet.Bool("disk", true, "Include disk operations in the output.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: "expected exactly one trace"}
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "format":
			cfg.Output.Format = strings.ToLower(*formatFlag)
		case "indent":
			cfg.Output.Indent = *indentFlag
		case "bucket":
			cfg.Utilization.BucketSize = *bucketFlag
		case "disk":
			cfg.Output.DiskLanes = *diskFlag
		case "log-level":
			cfg.Log.Level = strings.ToLower(*logLevelFlag)
		}
	})
	if err := cfg.validate(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return &options{
		input:  flagSet.Arg(0),
		output: *outputFlag,
		config: cfg,
	}, false, nil
}
