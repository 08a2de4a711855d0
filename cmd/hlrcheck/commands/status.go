package commands

import (
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hlrcheck/hlr-batch/internal/app"
	"github.com/hlrcheck/hlr-batch/internal/jobs"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of every input file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, closeStore, err := app.OpenStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = closeStore()
		}()

		sel := &jobs.Selector{InputDir: cfg.Jobs.InputDir, OutputDir: cfg.Jobs.OutputDir, Store: store}
		discovered, err := sel.Discover(ctx)
		if err != nil {
			return err
		}
		records := make([]jobs.Record, 0, len(discovered))
		for _, job := range discovered {
			rec, err := store.Status(ctx, job)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"File", "Status", "Records", "Updated", "Error"})
		counts := map[jobs.Status]int{}
		for _, rec := range records {
			counts[rec.Status]++
			t.AppendRow(table.Row{rec.Name, rec.Status, rec.Records, formatTime(rec.UpdatedAt), rec.Error})
		}
		t.AppendFooter(table.Row{
			len(records),
			"",
			"",
			"",
			formatCounts(counts),
		})
		t.Render()
		return nil
	},
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(time.DateTime)
}

func formatCounts(counts map[jobs.Status]int) string {
	var parts []string
	for _, st := range []jobs.Status{jobs.StatusDone, jobs.StatusClaimed, jobs.StatusFailed, jobs.StatusPending} {
		if counts[st] > 0 {
			parts = append(parts, string(st)+"="+strconv.Itoa(counts[st]))
		}
	}
	return strings.Join(parts, " ")
}
