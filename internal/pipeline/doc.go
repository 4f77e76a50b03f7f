// Package pipeline schedules probes and runs post-scan steps.
//
// The Scheduler drives a bounded number of concurrent probes over the target
// list. Admission is gated by errgroup.SetLimit: at most rate probes are in
// flight at any instant, every endpoint is admitted exactly once, and
// outcomes are delivered on a bounded channel in completion order. The
// channel is the only link between the probing goroutines and the reporter.
//
// Once the reporter has produced the run summary, a Pipeline executes the
// post-scan steps in order: writing the summary report and recording the run
// in the history database.
package pipeline
