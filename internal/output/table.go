package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/burrowvm/burrow/internal/vm"
)

// TableFormatter formats instances as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatInstances formats a list of instances as a table.
func (f *TableFormatter) FormatInstances(instances []vm.Instance) (string, error) {
	if len(instances) == 0 {
		return "No instances found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "LABEL\tNAME\tSTATUS\tDISPLAY\tDISK")
	}

	for _, inst := range instances {
		label := inst.Label
		if label == "" {
			label = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			label, inst.Name, inst.Status, mark(inst.DisplayEnabled), mark(inst.HasSharedDisk))
	}

	_ = w.Flush()
	return buf.String(), nil
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
