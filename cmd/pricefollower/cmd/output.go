package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	domain "github.com/donaldgifford/pchome-price-follower/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printRunSummary(s *domain.RunSummary) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("Tracked:\t%d\n", s.Tracked)
	tw.writef("Added:\t%d\n", s.Added)
	tw.writef("Removed:\t%d\n", s.Removed)
	tw.writef("Unpriced:\t%d\n", s.Unpriced)
	tw.writef("New lows:\t%d\n", s.NewLows)
	tw.writef("Alerts sent:\t%d\n", s.AlertsSent)
	return tw.finish()
}

func printProductTable(views []productView) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tNAME\tLATEST\tLOW\tUPDATED\n")
	for i := range views {
		tw.writef("%s\t%s\t%s\t%s\t%s\n",
			views[i].ID,
			truncate(views[i].Name, 40),
			formatOptionalPrice(views[i].LatestPrice),
			formatOptionalPrice(views[i].HistoricalLow),
			views[i].UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return tw.finish()
}

func printHistoryTable(records []domain.PriceRecord) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("RECORDED\tPRICE\n")
	for i := range records {
		tw.writef("%s\t%s\n",
			records[i].RecordedAt.Format("2006-01-02 15:04:05"),
			formatPrice(records[i].Price),
		)
	}
	return tw.finish()
}

func printRunsTable(runs []domain.RunRecord) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("STARTED\tSTATUS\tTRACKED\tADDED\tREMOVED\tNEW LOWS\tALERTS\tERROR\n")
	for i := range runs {
		r := &runs[i]
		tw.writef("%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Status,
			r.Tracked,
			r.Added,
			r.Removed,
			r.NewLows,
			r.AlertsSent,
			truncate(r.Error, 40),
		)
	}
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatPrice(p int64) string {
	return "NT$" + humanize.Comma(p)
}

func formatOptionalPrice(p *int64) string {
	if p == nil {
		return "-"
	}
	return formatPrice(*p)
}

// truncate shortens s to maxLen runes. Product names are mostly CJK, so
// slicing bytes would split characters.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
