package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/nao1215/rdpscan/internal/model"
)

// SimpleWriter outputs a human-readable text summary.
// Colors are applied only when enabled, so the same writer can target a
// terminal or a file.
type SimpleWriter struct {
	baseWriter

	// colored enables ANSI colors.
	colored bool

	// listAlive includes the alive endpoint list in the summary.
	listAlive bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithColor enables colored output.
func WithColor(colored bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.colored = colored
	}
}

// WithAliveList includes every alive endpoint in the summary.
// Off by default because alive endpoints are already streamed to stdout.
func WithAliveList(list bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.listAlive = list
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	if w.listAlive {
		w.writeAlive(&sb, summary)
	}
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// paint returns a color that is disabled unless the writer is colored.
func (w *SimpleWriter) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if w.colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// writeHeader writes the run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	sb.WriteString(w.paint(color.Bold).Sprint("RDPSCAN SUMMARY"))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	if summary.Input != "" {
		sb.WriteString(fmt.Sprintf("Targets:   %s\n", summary.Input))
	}
	if !summary.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Started:   %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST")))
	}
	sb.WriteString(fmt.Sprintf("Elapsed:   %s\n", summary.Elapsed.Round(time.Millisecond)))

	status := statusText(summary)
	if summary.Interrupted {
		status = w.paint(color.FgYellow).Sprint(status)
	}
	sb.WriteString(fmt.Sprintf("Status:    %s\n", status))
	sb.WriteString("\n")
}

// writeCounts writes probe counts per outcome kind.
func (w *SimpleWriter) writeCounts(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString(fmt.Sprintf("  %-20s %d / %d\n", "probed", summary.Completed, summary.Total))
	sb.WriteString(fmt.Sprintf("  %-20s %s\n", "alive",
		w.paint(color.FgGreen, color.Bold).Sprint(summary.AliveCount())))

	for _, kind := range failureKinds() {
		n := summary.Count(kind)
		if n == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-20s %s\n", kind.String(), w.paint(color.FgRed).Sprint(n)))
	}
	sb.WriteString("\n")
}

// writeAlive writes the alive endpoints in completion order.
func (w *SimpleWriter) writeAlive(sb *strings.Builder, summary *model.Summary) {
	if len(summary.Alive) == 0 {
		sb.WriteString("No RDP endpoints found\n\n")
		return
	}

	sb.WriteString("Alive endpoints:\n")
	for _, ep := range summary.Alive {
		sb.WriteString(fmt.Sprintf("  [+] %s\n", ep))
	}
	sb.WriteString("\n")
}
