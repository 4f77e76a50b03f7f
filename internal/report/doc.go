// Package report consumes probe outcomes and renders run summaries.
//
// The Reporter is the single consumer of the scheduler's outcome channel.
// It prints alive endpoints to stdout the moment they arrive and advances a
// progress display it owns exclusively. No other goroutine draws to the
// terminal while a scan runs, so progress rendering and discovery lines
// never interleave mid-line.
//
// Summary writers render the end-of-run model.Summary:
//   - SimpleWriter: human-readable text, optionally colored
//   - JSONWriter: structured JSON output for tool integration
//   - MarkdownWriter: Markdown with a mermaid pie chart of outcomes
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
