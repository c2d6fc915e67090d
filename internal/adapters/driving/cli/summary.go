package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/custodia-labs/chromasync/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// isTerminal reports whether w is an interactive terminal.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func stylesFor(w io.Writer) *styles.Styles {
	if isTerminal(w) {
		return styles.DefaultStyles()
	}
	return styles.Plain()
}

// printReport writes the outcome of a run. Every id that failed to sync is
// listed so the operator can see exactly what is missing remotely.
func printReport(w io.Writer, report *domain.RunReport, showIDs bool) {
	if report == nil {
		return
	}
	st := stylesFor(w)
	row := func(label, format string, args ...any) {
		fmt.Fprintln(w, st.Label.Render(label)+st.Normal.Render(fmt.Sprintf(format, args...)))
	}

	fmt.Fprintln(w, st.Title.Render("Collection "+report.Collection))
	if report.Archive != "" {
		row("Archive", "%s", report.Archive)
	}
	if report.RunID != "" {
		row("Run", "%s", report.RunID)
	}
	if report.Model != "" {
		row("Model", "%s (%d dims)", report.Model, report.Dimensions)
	}
	row("Documents", "%d (%d empty, %d skipped)", report.Documents, report.EmptyDocuments, report.Skipped)
	row("Chunks", "%d (%d embedded, %d reused, %d pruned)",
		report.Chunks, report.Embedded, report.Reused, report.Pruned)
	if report.LocalPath != "" {
		row("Local", "%s", report.LocalPath)
	}
	if report.LocalReset {
		fmt.Fprintln(w, st.Warning.Render("Local collection rebuilt: model or dimensionality changed"))
	}
	if report.Duration > 0 {
		row("Duration", "%s", report.Duration.Round(time.Millisecond))
	}

	if report.Sync == nil {
		row("Remote", "not synced")
		return
	}
	printSync(w, st, report.Sync, showIDs)
}

func printSync(w io.Writer, st *styles.Styles, sum *domain.SyncSummary, showIDs bool) {
	row := func(label, format string, args ...any) {
		fmt.Fprintln(w, st.Label.Render(label)+st.Normal.Render(fmt.Sprintf(format, args...)))
	}

	for _, name := range sum.DeletedCollections {
		fmt.Fprintln(w, st.Warning.Render("Deleted remote collection "+name))
	}
	if sum.ResetTarget {
		fmt.Fprintln(w, st.Warning.Render("Remote collection "+sum.Collection+" was reset"))
	}

	plan := sum.Plan
	row("Plan", "+%d ~%d -%d", len(plan.ToAdd), len(plan.ToUpdate), len(plan.ToDelete))
	if showIDs {
		printIDs(w, st, "add", plan.ToAdd)
		printIDs(w, st, "update", plan.ToUpdate)
		printIDs(w, st, "delete", plan.ToDelete)
	}

	state := string(sum.State)
	switch {
	case sum.OK():
		state = st.Success.Render(state)
	case sum.State == domain.SyncAborted || len(sum.FailedBatches) > 0:
		state = st.Error.Render(state)
	default:
		state = st.Normal.Render(state)
	}
	fmt.Fprintln(w, st.Label.Render("Remote")+state+
		st.Normal.Render(fmt.Sprintf(" (added %d, updated %d, deleted %d)", sum.Added, sum.Updated, sum.Deleted)))

	if sum.Err != nil {
		fmt.Fprintln(w, st.Error.Render("Aborted: "+sum.Err.Error()))
	}
	if len(sum.FailedBatches) == 0 {
		return
	}

	fmt.Fprintln(w, st.Error.Render(fmt.Sprintf("Unsynced ids (%d):", len(sum.FailedIDs()))))
	for _, f := range sum.FailedBatches {
		reason := "not attempted"
		if f.Attempted && f.Err != nil {
			reason = f.Err.Error()
		}
		for _, id := range f.IDs {
			fmt.Fprintf(w, "  %s %s %s\n", st.Op(f.Op).Render(f.Op), id, st.Muted.Render(reason))
		}
	}
}

func printIDs(w io.Writer, st *styles.Styles, op string, ids []string) {
	for _, id := range ids {
		fmt.Fprintf(w, "  %s %s\n", st.Op(op).Render(op), id)
	}
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
