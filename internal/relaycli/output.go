package relaycli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func flushTable(tw *tabwriter.Writer) {
	_ = tw.Flush()
}

func wantJSON() bool {
	return strings.EqualFold(outputFormat, "json")
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t).Round(time.Second)
	if diff < 0 {
		return fmt.Sprintf("%s from now", -diff)
	}
	return fmt.Sprintf("%s ago", diff)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
