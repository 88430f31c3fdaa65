package commands

import (
	"fmt"
	"log/slog"
	"os"

	"coursetrack/lib/serviceutil"
	"coursetrack/services/tracker"
	"coursetrack/services/tracker/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(normalizeCmd)
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Rewrites recorded durations to integer minutes and prints totals.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		st, err := store.OpenCSV(cfg.Output)
		if err != nil {
			serviceutil.Fatal("failed to open course details table", err)
		}
		report, err := tracker.Normalize(st)
		if err != nil {
			serviceutil.Fatal("failed to normalize durations", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Course", "Minutes"})
		for _, r := range report.Rows {
			t.AppendRow(table.Row{r.Title, r.Time})
		}
		t.AppendFooter(table.Row{"TOTAL", report.TotalMinutes})
		t.AppendFooter(table.Row{"AVERAGE", fmt.Sprintf("%.1f", report.AverageMinutes)})
		t.Render()

		slog.Info(
			"normalized durations",
			"courses", report.Courses,
			"excluded", report.Excluded,
			"total_minutes", report.TotalMinutes,
		)
	},
}
