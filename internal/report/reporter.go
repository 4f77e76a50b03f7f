package report

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/rdpscan/internal/model"
	"github.com/nao1215/rdpscan/internal/protocol"
)

// Reporter is the single consumer of the outcome stream.
//
// It prints every alive endpoint as soon as it arrives, advances the progress
// display once per outcome and builds the run Summary. The progress display
// and the completed counter are owned by the goroutine running Run; no other
// component touches them.
type Reporter struct {
	// total is the number of endpoints scheduled, used for progress sizing.
	total int

	// input names the target list in the summary.
	input string

	// output receives one line per alive endpoint.
	output io.Writer

	// progress is advanced once per outcome.
	progress Progress

	// verbose logs a diagnostic line per outcome.
	verbose bool

	// logger receives verbose diagnostics.
	logger *slog.Logger
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithOutput sets the destination of alive endpoint lines. Default is os.Stdout.
func WithOutput(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		if w != nil {
			r.output = w
		}
	}
}

// WithProgress sets the progress display. Default is NopProgress.
func WithProgress(p Progress) ReporterOption {
	return func(r *Reporter) {
		if p != nil {
			r.progress = p
		}
	}
}

// WithReporterVerbose enables one diagnostic log line per outcome.
func WithReporterVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) {
		r.verbose = verbose
	}
}

// WithReporterLogger sets the logger used for diagnostics.
func WithReporterLogger(logger *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// WithInput records the name of the target list in the summary.
func WithInput(input string) ReporterOption {
	return func(r *Reporter) {
		r.input = input
	}
}

// NewReporter creates a Reporter for a run of total endpoints.
func NewReporter(total int, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		total:    total,
		output:   os.Stdout,
		progress: NopProgress{},
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Start runs the Reporter on its own goroutine. The returned channel
// receives the Summary once outcomes is closed.
func (r *Reporter) Start(outcomes <-chan model.Outcome) <-chan model.Summary {
	done := make(chan model.Summary, 1)

	go func() {
		done <- r.Run(outcomes)
		close(done)
	}()

	return done
}

// Run consumes outcomes until the channel is closed, then finishes the
// progress display and returns the Summary.
func (r *Reporter) Run(outcomes <-chan model.Outcome) model.Summary {
	summary := model.NewSummary(r.total)
	summary.Input = r.input
	summary.StartedAt = time.Now()

	for o := range outcomes {
		if o.Alive() {
			r.progress.Suspend(func() {
				_, _ = fmt.Fprintln(r.output, o.Endpoint.String()) //nolint:errcheck // terminal output
			})
		}
		if r.verbose {
			r.logOutcome(o)
		}

		summary.Record(o)
		r.progress.Increment()
	}

	r.progress.Finish()
	summary.Elapsed = time.Since(summary.StartedAt)

	return *summary
}

// logOutcome writes the diagnostic line for one outcome.
func (r *Reporter) logOutcome(o model.Outcome) {
	attrs := []any{
		"endpoint", o.Endpoint.String(),
		"kind", o.Kind.String(),
		"elapsed", o.Elapsed,
		"bytes", len(o.Response),
	}
	if len(o.Response) > 0 {
		attrs = append(attrs, "response", hex.EncodeToString(o.Response))
	}
	if o.Negotiation == protocol.NegotiationFailure {
		attrs = append(attrs, "failure_code", protocol.FailureCodeName(o.Code))
	}
	if o.Kind == model.KindConnectFailure {
		attrs = append(attrs, "timed_out", o.TimedOut)
	}
	if o.Err != nil {
		attrs = append(attrs, "error", o.Err)
	}

	r.logger.Debug("probe completed", attrs...)
}
