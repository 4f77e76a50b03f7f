package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/nao1215/rdpscan/internal/config"
	"github.com/nao1215/rdpscan/internal/database"
	seclog "github.com/nao1215/rdpscan/internal/log"
	"github.com/nao1215/rdpscan/internal/model"
	"github.com/nao1215/rdpscan/internal/pipeline"
	"github.com/nao1215/rdpscan/internal/protocol"
	"github.com/nao1215/rdpscan/internal/report"
	"github.com/nao1215/rdpscan/internal/target"
	"github.com/spf13/cobra"
)

// errScanInterrupted is returned after a cancelled scan has been reported.
var errScanInterrupted = errors.New("scan interrupted")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [targets-file]",
		Short: "Probe a list of endpoints for RDP",
		Long: `Scan reads IPv4 endpoints (one ip:port per line) and probes each of them
once for an RDP negotiation response.

Every alive endpoint is printed to standard output as soon as it is found.
Progress is drawn on standard error when it is a terminal; other outcomes
are only shown with --verbose. With --output, --json or --markdown a summary
is written at the end (to standard error unless --output is given). Every
run is recorded in the scan history database.

Blank lines and lines starting with '#' are ignored. Use '-' to read the
list from standard input.

Examples:
  # Scan a list with the defaults (100 concurrent probes, 10s timeout)
  rdpscan scan -i targets.txt

  # Faster scan with a short timeout
  rdpscan scan -i targets.txt --rate 1000 --timeout 2

  # Read targets from a pipe and skip private networks
  cat targets.txt | rdpscan scan -i - --exclude 10.0.0.0/8,192.168.0.0/16

  # Route probes through a SOCKS5 proxy
  rdpscan scan -i targets.txt --proxy socks5://127.0.0.1:1080

  # Save a Markdown report
  rdpscan scan -i targets.txt --markdown -o report.md

Configuration file (.rdpscan) example:
  rate: 200
  timeout: 5
  exclude:
    - 10.0.0.0/8`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScanCmd,
	}

	// Input
	cmd.Flags().StringP("input", "i", "",
		"Target list file, one ip:port per line ('-' for stdin)")

	// Scan behavior flags
	cmd.Flags().IntP("rate", "r", config.DefaultRate,
		"Maximum number of concurrent probes")
	cmd.Flags().IntP("timeout", "t", int(config.DefaultTimeout/time.Second),
		"Timeout in seconds for each connect, write and read")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy URL (e.g., socks5://127.0.0.1:1080)")
	cmd.Flags().StringSlice("exclude", nil,
		"Networks or addresses to skip (CIDR, comma separated)")
	cmd.Flags().Bool("no-progress", false,
		"Do not draw the progress bar")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .rdpscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Write the summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Write the summary as Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the summary to the specified file path")

	// History flags
	cmd.Flags().Bool("no-db", false,
		"Do not record this run in the scan history database")
	cmd.Flags().String("db-dir", "",
		"Directory of the scan history database (default: XDG data dir)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signals. In-flight probes still finish.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, waiting for in-flight probes...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. Flags set on the command line win over the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	cfg.InputFile, err = flags.GetString("input")
	if err != nil {
		return nil, err
	}
	if cfg.InputFile == "" && len(args) > 0 {
		cfg.InputFile = args[0]
	}

	cfg.Rate, err = flags.GetInt("rate")
	if err != nil {
		return nil, err
	}

	timeoutSec, err := flags.GetInt("timeout")
	if err != nil {
		return nil, err
	}
	cfg.Timeout = time.Duration(timeoutSec) * time.Second

	cfg.Proxy, err = flags.GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.Exclude, err = flags.GetStringSlice("exclude")
	if err != nil {
		return nil, err
	}

	cfg.NoProgress, err = flags.GetBool("no-progress")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = flags.GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = flags.GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = flags.GetString("output")
	if err != nil {
		return nil, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = getVerboseFlag(cmd)

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit --config must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if cfg.ConfigFilePath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return cfg, nil
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	cfg.Apply(file, flags.Changed)

	return cfg, nil
}

// setupLogger creates a structured logger that masks proxy credentials.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return seclog.NewSecureLogger(w, verbose)
}

// runScan loads the targets, runs the probes and the post-scan steps.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	endpoints, err := loadTargets(cfg, logger)
	if err != nil {
		return err
	}

	// Open the history database before scanning so a bad --db-dir fails fast.
	var db *database.ScanDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	dialer, err := protocol.NewDialer(cfg.Proxy)
	if err != nil {
		return fmt.Errorf("failed to create dialer: %w", err)
	}
	if cfg.Proxy != "" {
		logger.Info("probing through proxy", "proxy", cfg.Proxy)
	}

	prober := protocol.NewProber(
		protocol.WithTimeout(cfg.Timeout),
		protocol.WithDialer(dialer),
	)
	scheduler := pipeline.NewScheduler(prober,
		pipeline.WithRate(cfg.Rate),
		pipeline.WithSchedulerLogger(logger),
	)

	var progress report.Progress = report.NopProgress{}
	if showProgress(cfg, stderr) {
		progress = report.NewBarProgress(len(endpoints), stderr)
	}

	reporter := report.NewReporter(len(endpoints),
		report.WithInput(cfg.InputFile),
		report.WithOutput(stdout),
		report.WithProgress(progress),
		report.WithReporterVerbose(cfg.Verbose),
		report.WithReporterLogger(logger),
	)

	summary := <-reporter.Start(scheduler.Start(ctx, endpoints))
	summary.Interrupted = scheduler.Err() != nil

	// Post-scan steps run even after an interrupt so partial results are kept.
	post := newPostScanPipeline(cfg, logger, stderr, db)
	if err := post.Execute(context.WithoutCancel(ctx), &summary); err != nil {
		return err
	}

	if summary.Interrupted {
		return fmt.Errorf("%w after %d of %d probes", errScanInterrupted, summary.Completed, summary.Total)
	}
	return nil
}

// loadTargets reads the target list and removes excluded networks.
func loadTargets(cfg *config.Config, logger *slog.Logger) ([]model.Endpoint, error) {
	endpoints, err := target.LoadFile(cfg.InputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}

	exclude, err := target.ParsePrefixes(cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclusion: %w", err)
	}

	loaded := len(endpoints)
	endpoints = target.Filter(endpoints, exclude)
	if skipped := loaded - len(endpoints); skipped > 0 {
		logger.Info("excluded targets", "skipped", skipped, "remaining", len(endpoints))
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("every target is excluded: %w", target.ErrNoTargets)
	}

	return endpoints, nil
}

// newPostScanPipeline builds the steps that consume the final summary.
func newPostScanPipeline(cfg *config.Config, logger *slog.Logger, stderr io.Writer, db *database.ScanDB) *pipeline.Pipeline {
	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)

	// Non-alive outcomes stay silent unless a report was asked for.
	if cfg.WantsReport() {
		reportOpts := []pipeline.ReportStepOption{
			pipeline.WithReportOutput(stderr),
			pipeline.WithReportLogger(logger),
		}
		if cfg.ReportFile != "" {
			reportOpts = append(reportOpts, pipeline.WithReportFile(cfg.ReportFile))
		}
		colored := cfg.ReportFile == "" && isTerminal(stderr)
		p.AddStep(pipeline.NewReportStep(summaryWriter(cfg, colored), reportOpts...))
	}

	if db != nil {
		p.AddStep(pipeline.NewHistoryStep(db, pipeline.WithHistoryLogger(logger)))
	}

	return p
}

// summaryWriter selects the summary format requested in cfg.
func summaryWriter(cfg *config.Config, colored bool) func(io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return func(w io.Writer) report.Writer {
			return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
		}
	case cfg.MarkdownReport:
		return func(w io.Writer) report.Writer {
			return report.NewMarkdownWriter(w)
		}
	default:
		// Alive endpoints already went to stdout; a file gets the full list.
		listAlive := cfg.ReportFile != ""
		return func(w io.Writer) report.Writer {
			return report.NewSimpleWriter(w, report.WithColor(colored), report.WithAliveList(listAlive))
		}
	}
}

// showProgress reports whether the progress bar should be drawn.
// Verbose mode logs one line per probe, which would tear the bar.
func showProgress(cfg *config.Config, stderr io.Writer) bool {
	return !cfg.Verbose && !cfg.NoProgress && isTerminal(stderr)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
