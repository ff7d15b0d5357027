// Command simtrace lays out the tasks and disk operations of a WRENCH simulation trace and writes the result as
// JSON or as a task details table.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"honnef.co/go/simtrace/layout"
	"honnef.co/go/simtrace/trace"
	"honnef.co/go/simtrace/trace/ptrace"
)

func main() {
	// Use a minimal logger until the configured one is known.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	level, _ := parseLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// progressLogger returns a progress callback that logs every tenth of completed work at debug level.
func progressLogger(stage string) func(float64) {
	next := 0.0
	return func(p float64) {
		if p >= next {
			slog.Debug("progress", "stage", stage, "done", p)
			next = p + 0.1
		}
	}
}

func logDiagnostics(logger *slog.Logger, diags []ptrace.Diagnostic) {
	for _, d := range diags {
		logger.Warn(d.Message,
			"kind", d.Kind.String(),
			"source", d.Source.String(),
			"record", d.Record,
			"label", d.Label)
	}
}

func run(outW io.Writer, args []string) error {
	opts, shouldExit, err := parseArgs(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}
	cfg := opts.config
	slog.SetDefault(newLogger(os.Stderr, cfg))

	r, err := openTrace(opts.input, os.Stdin)
	if err != nil {
		return fmt.Errorf("couldn't open trace: %w", err)
	}
	raw, err := trace.Parse(r)
	r.Close()
	if err != nil {
		return fmt.Errorf("couldn't parse trace %s: %w", opts.input, err)
	}
	slog.Debug("read trace", "path", opts.input, "tasks", len(raw.Tasks), "disk_hosts", len(raw.Disk))

	tr, err := ptrace.Parse(raw, progressLogger("processing"))
	if err != nil {
		return fmt.Errorf("couldn't process trace: %w", err)
	}
	l, err := layout.Compute(tr, progressLogger("layout"))
	if err != nil {
		return fmt.Errorf("couldn't lay out trace: %w", err)
	}
	logDiagnostics(slog.Default(), l.Diagnostics())
	slog.Info("laid out trace",
		"tasks", len(tr.Tasks),
		"hosts", len(tr.Hosts),
		"disk_operations", len(tr.DiskOperations),
		"diagnostics", len(l.Diagnostics()))

	if opts.output == "" {
		return writeOutput(outW, l, cfg)
	}
	f, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	if err := writeOutput(f, l, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeOutput(w io.Writer, l *layout.Layout, cfg Config) error {
	var err error
	switch cfg.Output.Format {
	case "table":
		err = writeTable(w, l)
	default:
		err = writeJSON(w, l, cfg)
	}
	if err != nil {
		return fmt.Errorf("couldn't write output: %w", err)
	}
	return nil
}
