package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/btraven00/linkscan/internal/verifier"
)

// WriteResult prints one result as a single line.
func WriteResult(w io.Writer, r verifier.Result) {
	code := "---"
	if r.StatusCode > 0 {
		code = strconv.Itoa(r.StatusCode)
	}

	fmt.Fprintf(w, "%s [%s] %-18s %7.3fs  %s", r.Category.Emoji(), code, r.Category.Label(), r.Seconds(), r.Normalized)

	if r.ErrorMessage != "" {
		fmt.Fprintf(w, "  (%s)", r.ErrorMessage)
	}

	fmt.Fprintln(w)
}

// WriteSummary prints the run report: totals followed by the status
// distribution table.
func WriteSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "\n📊 Link check report (%s)\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "📄 Files processed: %d\n", s.FilesProcessed)
	fmt.Fprintf(w, "🔗 URLs found: %d\n", s.URLsFound)
	fmt.Fprintf(w, "🔍 URLs verified: %d\n", s.URLsVerified)
	fmt.Fprintf(w, "✅ Reachable: %d (success rate: %.1f%%)\n", s.SuccessCount, s.SuccessRate)
	fmt.Fprintf(w, "⏱️  Elapsed: %s\n", formatElapsed(s.Elapsed))

	if len(s.Distribution) == 0 {
		return
	}

	fmt.Fprintln(w, "\nStatus distribution:")

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"", "Status", "Count"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, c := range s.Distribution {
		table.Append([]string{c.Category.Emoji(), c.Label, strconv.Itoa(c.Count)})
	}

	table.Render()
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)

	return fmt.Sprintf("%dm%02ds", minutes, seconds)
}
