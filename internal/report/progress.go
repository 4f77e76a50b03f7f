package report

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

// Progress is the display handle advanced by the Reporter.
// Only the Reporter goroutine calls these methods, so implementations need
// no locking.
type Progress interface {
	// Increment advances the completed count by one and redraws.
	Increment()

	// Suspend clears the display, runs fn and redraws, so that fn can print
	// lines to the same terminal without corrupting the bar.
	Suspend(fn func())

	// Finish draws the final state and releases the display.
	Finish()
}

// clearLine moves to column 0 and erases the current terminal line.
const clearLine = "\r\x1b[2K"

// progressTemplate renders "completed / total [bar] percent elapsed".
const progressTemplate = `{{counters . }} {{bar . }} {{percent . }} {{etime . }}`

// BarProgress renders a progress bar with cheggaaa/pb in static mode:
// the bar is only redrawn by explicit calls, never by a background refresher.
type BarProgress struct {
	bar    *pb.ProgressBar
	output io.Writer
}

// NewBarProgress creates and starts a progress bar for total probes on output.
func NewBarProgress(total int, output io.Writer) *BarProgress {
	bar := pb.New(total)
	bar.SetTemplateString(progressTemplate)
	bar.SetWriter(output)
	bar.Set(pb.Static, true)
	bar.Start()
	bar.Write()

	return &BarProgress{
		bar:    bar,
		output: output,
	}
}

// Increment implements Progress.
func (p *BarProgress) Increment() {
	p.bar.Increment()
	p.bar.Write()
}

// Suspend implements Progress.
func (p *BarProgress) Suspend(fn func()) {
	_, _ = io.WriteString(p.output, clearLine) //nolint:errcheck // display only
	fn()
	p.bar.Write()
}

// Finish implements Progress.
func (p *BarProgress) Finish() {
	p.bar.Write()
	p.bar.Finish()
	_, _ = io.WriteString(p.output, "\n") //nolint:errcheck // display only
}

// Current returns the number of increments so far.
func (p *BarProgress) Current() int64 {
	return p.bar.Current()
}

// NopProgress is a Progress that draws nothing.
// It is used in verbose mode and when stderr is not a terminal.
type NopProgress struct{}

// Increment implements Progress.
func (NopProgress) Increment() {}

// Suspend implements Progress.
func (NopProgress) Suspend(fn func()) { fn() }

// Finish implements Progress.
func (NopProgress) Finish() {}
