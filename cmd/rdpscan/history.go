package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/rdpscan/internal/config"
	"github.com/nao1215/rdpscan/internal/database"
	"github.com/nao1215/rdpscan/internal/model"
	"github.com/spf13/cobra"
)

const (
	// defaultHistoryLimit is the number of runs listed without --limit.
	defaultHistoryLimit = 20

	historyTimeFormat = "2006-01-02 15:04:05"
)

// errInvalidDiff is returned when --diff is not two run IDs.
var errInvalidDiff = errors.New("--diff expects two run IDs separated by a comma (e.g. 3,5)")

// outputFormat selects how history results are rendered.
type outputFormat int

const (
	formatText outputFormat = iota
	formatJSON
	formatMarkdown
)

// NewHistoryCmd creates the history command.
// This command shows scan runs recorded in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded scan runs",
		Long: `History displays the scan runs stored in the database.

Without flags the most recent runs are listed with their counters. A single
run can be inspected to get the endpoints that were alive, and two runs can
be compared to see which endpoints appeared or disappeared.

Examples:
  # List recent runs
  rdpscan history

  # Alive endpoints of run 7
  rdpscan history --run 7

  # What changed between run 3 and run 7
  rdpscan history --diff 3,7

  # Output the comparison in Markdown format
  rdpscan history --diff 3,7 --markdown`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64("run", 0,
		"Show the alive endpoints of the run with this ID")
	cmd.Flags().String("diff", "",
		"Compare two runs by ID (e.g., 3,7)")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 for all)")
	cmd.Flags().String("db-dir", "",
		"Directory of the scan history database (default: XDG data dir)")

	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	// Validate every flag before opening the database.
	runID, err := flags.GetInt64("run")
	if err != nil {
		return err
	}
	diffArg, err := flags.GetString("diff")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	format, err := historyFormat(cmd)
	if err != nil {
		return err
	}

	if runID != 0 && diffArg != "" {
		return errors.New("--run and --diff cannot be used together")
	}

	var from, to int64
	if diffArg != "" {
		if from, to, err = parseDiffArg(diffArg); err != nil {
			return err
		}
	}

	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case diffArg != "":
		return showDiff(ctx, out, db, from, to, format)
	case runID != 0:
		return showRun(ctx, out, db, runID, format)
	default:
		return listRuns(ctx, out, db, limit, format)
	}
}

// historyFormat reads the mutually exclusive output format flags.
func historyFormat(cmd *cobra.Command) (outputFormat, error) {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return formatText, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return formatText, err
	}

	switch {
	case jsonOutput && markdownOutput:
		return formatText, config.ErrConflictingReportFormats
	case jsonOutput:
		return formatJSON, nil
	case markdownOutput:
		return formatMarkdown, nil
	default:
		return formatText, nil
	}
}

// parseDiffArg parses "A,B" into two positive run IDs.
func parseDiffArg(s string) (int64, int64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, errInvalidDiff
	}

	ids := make([]int64, 2)
	for i, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return 0, 0, fmt.Errorf("%w: %q", errInvalidDiff, s)
		}
		ids[i] = id
	}
	return ids[0], ids[1], nil
}

// listRuns prints the most recent runs.
func listRuns(ctx context.Context, w io.Writer, db *database.ScanDB, limit int, format outputFormat) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []database.Run{}
	}

	switch format {
	case formatJSON:
		return writeJSON(w, runs)
	case formatMarkdown:
		return writeRunsMarkdown(w, runs)
	default:
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No scan runs recorded.")
		fmt.Fprintln(w, "\nUse 'rdpscan scan -i <file>' to run a scan.")
		return nil
	}

	fmt.Fprintf(w, "Scan runs (%d):\n\n", len(runs))
	fmt.Fprintf(w, "  %-6s  %-19s  %-10s  %-8s  %-8s  %s\n", "ID", "Date", "Elapsed", "Probed", "Alive", "Failures")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 78))
	for _, run := range runs {
		probed := strconv.Itoa(run.Completed)
		if run.Interrupted {
			probed += "*"
		}
		fmt.Fprintf(w, "  %-6d  %-19s  %-10s  %-8s  %-8d  %s\n",
			run.ID,
			run.StartedAt.Local().Format(historyTimeFormat),
			run.Elapsed.Round(time.Second).String(),
			probed,
			run.Alive,
			formatKinds(run.Kinds),
		)
	}

	fmt.Fprintln(w, "\n* interrupted run")
	fmt.Fprintln(w, "Use 'rdpscan history --run <id>' to list the alive endpoints of a run.")
	fmt.Fprintln(w, "Use 'rdpscan history --diff <id>,<id>' to compare two runs.")

	return nil
}

// formatKinds formats the failure counts of a run, skipping empty kinds.
func formatKinds(kinds map[model.ErrorKind]int) string {
	var parts []string
	for _, kind := range model.Kinds {
		if kind == model.KindNone {
			continue
		}
		if n := kinds[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", kind, n))
		}
	}

	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

// runDetail is the JSON shape of a single run.
type runDetail struct {
	database.Run
	Endpoints []model.Endpoint `json:"endpoints"`
}

// showRun prints one run and its alive endpoints.
func showRun(ctx context.Context, w io.Writer, db *database.ScanDB, id int64, format outputFormat) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	endpoints, err := db.GetRunEndpoints(ctx, id)
	if err != nil {
		return err
	}

	switch format {
	case formatJSON:
		return writeJSON(w, runDetail{Run: *run, Endpoints: endpoints})
	case formatMarkdown:
		return writeRunMarkdown(w, run, endpoints)
	default:
	}

	fmt.Fprintf(w, "Run %d (%s)\n", run.ID, run.StartedAt.Local().Format(historyTimeFormat))
	fmt.Fprintln(w, strings.Repeat("=", 60))
	if run.Input != "" {
		fmt.Fprintf(w, "Targets:  %s\n", run.Input)
	}
	fmt.Fprintf(w, "Probed:   %d / %d\n", run.Completed, run.Total)
	fmt.Fprintf(w, "Elapsed:  %s\n", run.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Failures: %s\n", formatKinds(run.Kinds))
	if run.Interrupted {
		fmt.Fprintln(w, "Status:   interrupted (partial results)")
	}

	fmt.Fprintf(w, "\nAlive endpoints (%d):\n", len(endpoints))
	for _, ep := range endpoints {
		fmt.Fprintf(w, "  %s\n", ep)
	}

	return nil
}

// showDiff prints the endpoints that changed between two runs.
func showDiff(ctx context.Context, w io.Writer, db *database.ScanDB, from, to int64, format outputFormat) error {
	diff, err := db.Diff(ctx, from, to)
	if err != nil {
		return err
	}

	switch format {
	case formatJSON:
		return writeJSON(w, diff)
	case formatMarkdown:
		return writeDiffMarkdown(w, diff)
	default:
	}

	fmt.Fprintf(w, "Run comparison: %d -> %d\n", diff.From, diff.To)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	if !diff.HasChanges() {
		fmt.Fprintf(w, "\nNo changes (%d endpoints alive in both runs)\n", diff.Unchanged)
		return nil
	}

	if len(diff.Appeared) > 0 {
		fmt.Fprintf(w, "\nAppeared (%d):\n", len(diff.Appeared))
		for _, ep := range sortedEndpoints(diff.Appeared) {
			fmt.Fprintf(w, "  [+] %s\n", ep)
		}
	}
	if len(diff.Disappeared) > 0 {
		fmt.Fprintf(w, "\nDisappeared (%d):\n", len(diff.Disappeared))
		for _, ep := range sortedEndpoints(diff.Disappeared) {
			fmt.Fprintf(w, "  [-] %s\n", ep)
		}
	}
	fmt.Fprintf(w, "\nUnchanged: %d endpoints\n", diff.Unchanged)

	return nil
}

// sortedEndpoints returns a copy of eps ordered by address and port.
func sortedEndpoints(eps []model.Endpoint) []model.Endpoint {
	out := append([]model.Endpoint(nil), eps...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].AddrPort().Compare(out[j].AddrPort()) < 0
	})
	return out
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeRunsMarkdown(w io.Writer, runs []database.Run) error {
	md := markdown.NewMarkdown(w)
	md.H1("Scan History")
	md.PlainText("")

	if len(runs) == 0 {
		md.Note("No scan runs recorded.")
		return md.Build()
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		status := "complete"
		if run.Interrupted {
			status = "interrupted"
		}
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.StartedAt.Local().Format(historyTimeFormat),
			strconv.Itoa(run.Completed) + " / " + strconv.Itoa(run.Total),
			strconv.Itoa(run.Alive),
			status,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Date", "Probed", "Alive", "Status"},
		Rows:   rows,
	})

	return md.Build()
}

func writeRunMarkdown(w io.Writer, run *database.Run, endpoints []model.Endpoint) error {
	md := markdown.NewMarkdown(w)
	md.H1(fmt.Sprintf("Scan Run %d", run.ID))
	md.PlainText("")

	rows := [][]string{
		{"Date", run.StartedAt.Local().Format(historyTimeFormat)},
		{"Probed", strconv.Itoa(run.Completed) + " / " + strconv.Itoa(run.Total)},
		{"Elapsed", run.Elapsed.Round(time.Millisecond).String()},
		{"Alive", strconv.Itoa(run.Alive)},
		{"Failures", formatKinds(run.Kinds)},
	}
	if run.Input != "" {
		rows = append([][]string{{"Targets", "`" + run.Input + "`"}}, rows...)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if run.Interrupted {
		md.Warningf("Run was interrupted after %d of %d probes.", run.Completed, run.Total)
		md.PlainText("")
	}

	md.H2("Alive Endpoints")
	md.PlainText("")
	if len(endpoints) == 0 {
		md.Note("No RDP endpoints were found.")
		return md.Build()
	}
	md.BulletList(codeItems(endpoints)...)

	return md.Build()
}

func writeDiffMarkdown(w io.Writer, diff *database.RunDiff) error {
	md := markdown.NewMarkdown(w)
	md.H1(fmt.Sprintf("Run Comparison: %d → %d", diff.From, diff.To))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Change", "Endpoints"},
		Rows: [][]string{
			{"Appeared", strconv.Itoa(len(diff.Appeared))},
			{"Disappeared", strconv.Itoa(len(diff.Disappeared))},
			{"Unchanged", strconv.Itoa(diff.Unchanged)},
		},
	})
	md.PlainText("")

	if !diff.HasChanges() {
		md.Note("The alive endpoints are identical in both runs.")
		return md.Build()
	}

	if len(diff.Appeared) > 0 {
		md.H2(fmt.Sprintf("Appeared (%d)", len(diff.Appeared)))
		md.PlainText("")
		md.BulletList(codeItems(sortedEndpoints(diff.Appeared))...)
		md.PlainText("")
	}
	if len(diff.Disappeared) > 0 {
		md.H2(fmt.Sprintf("Disappeared (%d)", len(diff.Disappeared)))
		md.PlainText("")
		md.BulletList(codeItems(sortedEndpoints(diff.Disappeared))...)
	}

	return md.Build()
}

// codeItems formats endpoints as inline code list items.
func codeItems(eps []model.Endpoint) []string {
	items := make([]string, len(eps))
	for i, ep := range eps {
		items[i] = "`" + ep.String() + "`"
	}
	return items
}
