package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/backlogsync/backlogsync/internal/backlog"
)

type quotaRow struct {
	name  string
	quota backlog.RateLimitQuota
}

func quotaRows(rl backlog.RateLimit) []quotaRow {
	return []quotaRow{
		{"read", rl.Read},
		{"update", rl.Update},
		{"search", rl.Search},
		{"icon", rl.Icon},
	}
}

// RateLimitBox renders the remote quota summary inside an ASCII box.
func RateLimitBox(rl backlog.RateLimit, now time.Time) string {
	lines := []string{"Backlog Rate Limits", ""}
	for _, row := range quotaRows(rl) {
		lines = append(lines, fmt.Sprintf("%-6s %d/%d remaining, resets %s",
			row.name, row.quota.Remaining, row.quota.Limit, resetIn(row.quota.Reset, now)))
	}
	return ascii.DrawBox(strings.Join(lines, "\n"), 0)
}

// RateLimitTable renders one row per quota category.
func RateLimitTable(rl backlog.RateLimit, now time.Time) TableFunc {
	return func() table.Writer {
		t := NewTable("Category", "Limit", "Remaining", "Reset")
		for _, row := range quotaRows(rl) {
			t.AppendRow(table.Row{row.name, row.quota.Limit, row.quota.Remaining, resetIn(row.quota.Reset, now)})
		}
		return t
	}
}

func resetIn(reset int64, now time.Time) string {
	if reset <= 0 {
		return "-"
	}
	at := time.Unix(reset, 0).UTC()
	wait := at.Sub(now).Round(time.Second)
	if wait <= 0 {
		return at.Format(time.RFC3339) + " (now)"
	}
	return fmt.Sprintf("%s (in %s)", at.Format(time.RFC3339), wait)
}
