package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/dylink"
	"github.com/wippyai/dylink/cmd/dylink/internal/config"
	"github.com/wippyai/dylink/gen"
)

type options struct {
	dir         string
	tag         string
	suffix      string
	runtime     string
	configFile  string
	check       bool
	stdout      bool
	keepGoing   bool
	interactive bool
	verbose     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.dir, "dir", ".", "Package directory to scan for input files")
	flag.StringVar(&opts.tag, "tag", "", "Build tag marking input files (default \"dylink\")")
	flag.StringVar(&opts.suffix, "suffix", "", "Output file suffix (default \"_dylink.go\")")
	flag.StringVar(&opts.runtime, "runtime", "", "Runtime import path")
	flag.StringVar(&opts.configFile, "config", "", "Configuration file (default: dylink.yaml in -dir or the module root)")
	flag.BoolVar(&opts.check, "check", false, "Fail if any output is missing or out of date; write nothing")
	flag.BoolVar(&opts.stdout, "stdout", false, "Print generated code instead of writing files")
	flag.BoolVar(&opts.keepGoing, "keep-going", false, "Write outputs even when some functions were rejected")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive mode with TUI")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: dylink [flags] [file.go ...]")
		fmt.Fprintln(os.Stderr, "       dylink -check")
		fmt.Fprintln(os.Stderr, "       dylink -i  (interactive mode)")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, opts, flag.Args())
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, files []string) error {
	cfg, err := config.Resolve(opts.dir, opts.configFile)
	if err != nil {
		return err
	}
	if opts.tag != "" {
		cfg.Options.Tag = opts.tag
	}
	if opts.suffix != "" {
		cfg.Options.Suffix = opts.suffix
	}
	if opts.runtime != "" {
		cfg.Options.RuntimePath = opts.runtime
	}
	if opts.verbose {
		cfg.LogLevel = zapcore.DebugLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	gen.SetLogger(logger.Named("gen"))
	dylink.SetLogger(logger.Named("runtime"))

	logger.Debug("configuration",
		zap.String("dir", cfg.Dir),
		zap.String("import_path", cfg.ImportPath),
		zap.String("config", cfg.File))

	g := gen.New(cfg.Options)
	var results []*gen.Result
	if len(files) > 0 {
		results, err = g.Files(ctx, files)
	} else {
		results, err = g.Dir(ctx, cfg.Dir)
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		logger.Info("no input files", zap.String("tag", g.Options().Tag))
		return nil
	}

	if opts.interactive {
		return runInteractive(g, results)
	}

	report := newReporter(os.Stderr)
	failed := report.Results(results)

	switch {
	case opts.stdout:
		for _, r := range results {
			if !r.Rejected() {
				os.Stdout.Write(r.Source)
			}
		}
	case opts.check:
		stale, err := report.Stale(results)
		if err != nil {
			return err
		}
		if stale > 0 {
			return fmt.Errorf("%d generated file(s) out of date; run dylink", stale)
		}
	case failed > 0 && !opts.keepGoing:
		return fmt.Errorf("%d diagnostic(s); nothing written", failed)
	default:
		for _, r := range results {
			if r.Rejected() {
				continue
			}
			if err := r.Write(); err != nil {
				return err
			}
			logger.Info("wrote", zap.String("file", r.Output), zap.Int("functions", len(r.Units)))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d diagnostic(s)", failed)
	}
	return nil
}

func newLogger(level zapcore.Level, format string) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if format == config.FormatJSON {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
