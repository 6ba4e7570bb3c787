package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"worklenz/finance/internal/finance"
	"worklenz/finance/internal/storage/sqlite"
)

var (
	reportGroupBy  string
	reportBillable string
	reportParent   string
)

var reportCmd = &cobra.Command{
	Use:   "report <project-id>",
	Short: "Print the finance report of a project as JSON",
	Long: `Print the grouped finance report of a project as JSON.

Examples:
  finance report 3f2c...
  finance report 3f2c... --group-by priority --billable all
  finance report 3f2c... --parent 9a1b...`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportGroupBy, "group-by", "status", "status, priority or phases")
	reportCmd.Flags().StringVar(&reportBillable, "billable", "billable", "billable, non-billable or all")
	reportCmd.Flags().StringVar(&reportParent, "parent", "", "report the subtasks of this task")
}

func runReport(cmd *cobra.Command, args []string) error {
	by, err := finance.ParseGroupBy(reportGroupBy)
	if err != nil {
		return err
	}
	filter, err := finance.ParseBillableFilter(reportBillable)
	if err != nil {
		return err
	}

	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := sqlite.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	q := finance.Query{ParentTaskID: reportParent, Billable: filter}
	return writeReport(cmd.Context(), cmd.OutOrStdout(), store, logger, args[0], q, by)
}

// writeReport aggregates one project and encodes the report to w.
func writeReport(ctx context.Context, w io.Writer, store *sqlite.Store, logger *slog.Logger, projectID string, q finance.Query, by finance.GroupBy) error {
	snap, err := store.Snapshot(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", projectID, err)
	}
	report, err := finance.NewEngine(logger).Report(ctx, snap, q, by)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
