package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/rdpscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultRate is the default maximum number of probes in flight.
const DefaultRate = 100

// Prober probes a single endpoint.
// protocol.Prober satisfies this interface; tests substitute fakes.
type Prober interface {
	Probe(ctx context.Context, ep model.Endpoint) model.Outcome
}

// Scheduler drives a bounded number of concurrent probes over a target list.
//
// Admission is gated by errgroup.SetLimit, so at most rate probes run at any
// instant. Outcomes are delivered on a channel in completion order.
type Scheduler struct {
	// prober performs each probe.
	prober Prober

	// rate is the maximum number of concurrent probes.
	rate int

	// logger is used for scheduler-level logging.
	logger *slog.Logger

	// mu guards admitted and err, which are written once the run ends.
	mu       sync.Mutex
	admitted int
	err      error
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithRate sets the maximum number of concurrent probes.
// Default is DefaultRate if not specified.
func WithRate(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.rate = n
		}
	}
}

// WithSchedulerLogger sets a custom logger for the scheduler.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a Scheduler that probes with prober.
func NewScheduler(prober Prober, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		prober: prober,
		rate:   DefaultRate,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Rate returns the concurrency limit.
func (s *Scheduler) Rate() int {
	return s.rate
}

// Start schedules every endpoint exactly once and returns the outcome stream.
// The channel has capacity rate and is closed after the last outcome.
//
// Cancelling ctx stops admitting new endpoints. Probes already admitted run
// to completion under their own timeouts and still deliver their outcome,
// so the stream always closes with one outcome per admitted endpoint.
// Use Err and Admitted after the channel is closed to detect interruption.
func (s *Scheduler) Start(ctx context.Context, endpoints []model.Endpoint) <-chan model.Outcome {
	out := make(chan model.Outcome, s.rate)

	go func() {
		defer close(out)
		s.run(ctx, endpoints, out)
	}()

	return out
}

// run admits endpoints in input order and waits for every probe.
func (s *Scheduler) run(ctx context.Context, endpoints []model.Endpoint, out chan<- model.Outcome) {
	s.logger.Info("starting scan",
		"total_endpoints", len(endpoints),
		"rate", s.rate,
	)

	startTime := time.Now()

	// Probes outlive an interrupt; each network step is deadline-bounded.
	probeCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.rate)

	admitted := 0
	for _, ep := range endpoints {
		if ctx.Err() != nil {
			break
		}

		// Go blocks while rate probes are in flight.
		g.Go(func() error {
			out <- s.prober.Probe(probeCtx, ep)
			return nil
		})
		admitted++
	}

	_ = g.Wait() //nolint:errcheck // probes never return errors

	s.mu.Lock()
	s.admitted = admitted
	if admitted < len(endpoints) {
		s.err = ctx.Err()
	}
	s.mu.Unlock()

	if admitted < len(endpoints) {
		s.logger.Warn("scan interrupted",
			"admitted", admitted,
			"total_endpoints", len(endpoints),
			"reason", ctx.Err(),
		)
	}

	s.logger.Info("scan complete",
		"admitted", admitted,
		"elapsed", time.Since(startTime),
	)
}

// Admitted returns how many endpoints were scheduled by the last run.
// It is only meaningful after the outcome channel has been closed.
func (s *Scheduler) Admitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admitted
}

// Err returns the context error that stopped admission early, or nil when
// every endpoint was scheduled. It is only meaningful after the outcome
// channel has been closed.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
