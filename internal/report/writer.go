package report

import (
	"io"

	"github.com/nao1215/rdpscan/internal/model"
)

// Writer defines the interface for end-of-run summary output.
// Implementations write the Summary in various formats.
type Writer interface {
	// Write outputs the summary to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(summary *model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// failureKinds lists the non-alive kinds in report order.
func failureKinds() []model.ErrorKind {
	kinds := make([]model.ErrorKind, 0, len(model.Kinds)-1)
	for _, k := range model.Kinds {
		if k != model.KindNone {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// statusText describes whether the run covered every endpoint.
func statusText(summary *model.Summary) string {
	if summary.Interrupted {
		return "Interrupted (partial results)"
	}
	return "Complete"
}
