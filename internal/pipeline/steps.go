package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/rdpscan/internal/model"
	"github.com/nao1215/rdpscan/internal/report"
)

// ReportStep renders the summary with a report.Writer.
// When a path is set, the report goes to that file; otherwise to the
// writer the step was built with.
type ReportStep struct {
	// newWriter builds the report writer for the destination.
	newWriter func(io.Writer) report.Writer

	// output is used when path is empty.
	output io.Writer

	// path is the report file, created or truncated on each run.
	path string

	// logger for structured logging.
	logger *slog.Logger
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportFile writes the report to path instead of the default output.
func WithReportFile(path string) ReportStepOption {
	return func(s *ReportStep) {
		s.path = path
	}
}

// WithReportOutput sets the destination used when no file is configured.
func WithReportOutput(w io.Writer) ReportStepOption {
	return func(s *ReportStep) {
		if w != nil {
			s.output = w
		}
	}
}

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewReportStep creates a report step. newWriter is called once per run
// with the destination writer.
func NewReportStep(newWriter func(io.Writer) report.Writer, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		newWriter: newWriter,
		output:    os.Stderr,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the summary.
func (s *ReportStep) Do(_ context.Context, summary *model.Summary) error {
	if s.path == "" {
		if _, err := s.newWriter(s.output).Write(summary); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}

	f, err := os.Create(filepath.Clean(s.path))
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if _, err := s.newWriter(f).Write(summary); err != nil {
		_ = f.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}

	s.logger.Info("report saved", "path", s.path)
	return nil
}

// RunStore persists scan runs. database.ScanDB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, summary *model.Summary) (int64, error)
}

// HistoryStep records the run in the history database.
type HistoryStep struct {
	// store persists the summary.
	store RunStore

	// logger for structured logging.
	logger *slog.Logger

	// lastID is the ID assigned by the most recent Do.
	lastID int64
}

// HistoryStepOption configures a HistoryStep.
type HistoryStepOption func(*HistoryStep)

// WithHistoryLogger sets a custom logger for the history step.
func WithHistoryLogger(logger *slog.Logger) HistoryStepOption {
	return func(s *HistoryStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHistoryStep creates a history step backed by store.
func NewHistoryStep(store RunStore, opts ...HistoryStepOption) *HistoryStep {
	s := &HistoryStep{
		store:  store,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do saves the summary.
func (s *HistoryStep) Do(ctx context.Context, summary *model.Summary) error {
	id, err := s.store.SaveRun(ctx, summary)
	if err != nil {
		return fmt.Errorf("failed to save scan history: %w", err)
	}
	s.lastID = id

	s.logger.Info("scan saved to history",
		"run_id", id,
		"alive", summary.AliveCount(),
	)
	return nil
}

// RunID returns the ID of the last saved run, or 0 if none was saved.
func (s *HistoryStep) RunID() int64 {
	return s.lastID
}
