package ui

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

// PrintSummary writes one row per type with its create, update and delete
// counts, followed by a totals line.
func PrintSummary(w io.Writer, title string, summary model.OperationSummary, st Styler) error {
	fmt.Fprintln(w, title)
	types := summary.SortedTypes()
	if len(types) == 0 {
		fmt.Fprintln(w, st.Muted("  no changes"))
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, typ := range types {
			c := summary.Types[typ]
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", typ,
				st.Created(fmt.Sprintf("+%d", c.Created)),
				st.Updated(fmt.Sprintf("~%d", c.Updated)),
				st.Deleted(fmt.Sprintf("-%d", c.Deleted)),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, st.Muted(fmt.Sprintf("  %d applied, %d unchanged", summary.Total(), summary.Unchanged)))
	return err
}
