package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/rdpscan/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcomes(md, summary)
	w.writeAlive(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary) {
	md.H1("rdpscan Report")
	md.PlainText("")

	input := summary.Input
	if input == "" {
		input = "-"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Targets", "`" + input + "`"},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", summary.Elapsed.Round(time.Millisecond).String()},
			{"Probed", strconv.Itoa(summary.Completed) + " / " + strconv.Itoa(summary.Total)},
			{"Status", statusText(summary)},
		},
	})
	md.PlainText("")

	if summary.Interrupted {
		md.Warningf("Scan was interrupted after %d of %d probes.", summary.Completed, summary.Total)
		md.PlainText("")
	}
}

// writeOutcomes writes the per-kind table and distribution chart.
func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Outcomes")
	md.PlainText("")

	rows := [][]string{
		{"alive", strconv.Itoa(summary.AliveCount())},
	}
	for _, kind := range failureKinds() {
		rows = append(rows, []string{kind.String(), strconv.Itoa(summary.Count(kind))})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(summary.Completed) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.Completed > 0 {
		w.writePieChart(md, summary)
	}
}

// writePieChart writes a mermaid pie chart of outcome kinds.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Probe Outcomes"),
		piechart.WithShowData(true),
	)

	for _, kind := range model.Kinds {
		if n := summary.Count(kind); n > 0 {
			chart.LabelAndIntValue(kind.String(), uint64(n)) //nolint:gosec // counts are non-negative
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlive writes the alive endpoint list.
func (w *MarkdownWriter) writeAlive(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Alive Endpoints")
	md.PlainText("")

	if len(summary.Alive) == 0 {
		md.Note("No RDP endpoints were found.")
		md.PlainText("")
		return
	}

	items := make([]string, len(summary.Alive))
	for i, ep := range summary.Alive {
		items[i] = "`" + ep.String() + "`"
	}
	md.Tip(fmt.Sprintf("%d endpoint(s) answered the RDP negotiation.", len(items)))
	md.PlainText("")
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [rdpscan](https://github.com/nao1215/rdpscan)*")
}
