package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nao1215/creatorcrawl/internal/database"
	"github.com/nao1215/creatorcrawl/internal/model"
	"github.com/nao1215/creatorcrawl/internal/report"
	"github.com/spf13/cobra"
)

// errNotEnoughRuns is returned when a comparison needs two stored runs.
var errNotEnoughRuns = errors.New("at least two stored runs are needed for a comparison")

// NewHistoryCmd creates the history subcommand.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs and compare catalogs between them",
		Long: `Inspect the snapshot database written by crawl and serve.

By default the two most recent runs are compared: new creators, creators
that disappeared and creators whose monthly revenue moved.`,
		Example: `  # Compare the last two runs
  creatorcrawl history

  # List stored runs
  creatorcrawl history --list

  # Compare two specific runs as Markdown
  creatorcrawl history --older 5be0c2a9d1f3e847 --newer 9f41d7e2a0b61c3d -m`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("db-dir", "", "Snapshot database directory (default: XDG data directory)")
	cmd.Flags().BoolP("list", "l", false, "List stored runs")
	cmd.Flags().Int("limit", 20, "Maximum number of runs listed (0 lists all)")
	cmd.Flags().String("older", "", "ID of the older run to compare")
	cmd.Flags().String("newer", "", "ID of the newer run to compare")
	cmd.Flags().Bool("urls", false, "Only print the URLs of creators whose data changed")
	cmd.Flags().String("delete", "", "Delete the run with this ID")
	addReportFlags(cmd)

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, os.Getenv)
	if err != nil {
		return err
	}
	newLogger(cmd, cfg)

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	flags := cmd.Flags()

	if id, _ := flags.GetString("delete"); id != "" {
		if err := db.DeleteRun(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", id)
		return nil
	}

	if list, _ := flags.GetBool("list"); list {
		limit, _ := flags.GetInt("limit")
		runs, err := db.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		renderRuns(cmd.OutOrStdout(), runs)
		return nil
	}

	olderID, _ := flags.GetString("older")
	newerID, _ := flags.GetString("newer")
	older, newer, err := resolvePair(ctx, db, olderID, newerID)
	if err != nil {
		return err
	}

	out, closeOut, err := openReportOutput(cfg.ReportFile, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // Best effort on the read-only path

	if urlsOnly, _ := flags.GetBool("urls"); urlsOnly {
		urls, err := db.ChangedURLs(ctx, older.ID, newer.ID)
		if err != nil {
			return err
		}
		for _, u := range urls {
			fmt.Fprintln(out, u)
		}
		return nil
	}

	comparison, err := compareRuns(ctx, db, older, newer)
	if err != nil {
		return err
	}
	_, err = report.NewWriter(out, cfg.JSONReport, cfg.MarkdownReport).WriteComparison(comparison)
	return err
}

// resolvePair returns the runs to compare. An empty newerID means the
// latest run and an empty olderID means the run stored just before newer.
func resolvePair(ctx context.Context, db *database.SnapshotDB, olderID, newerID string) (older, newer database.RunMetadata, err error) {
	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		return older, newer, err
	}

	if newerID == "" {
		if len(runs) == 0 {
			return older, newer, errNotEnoughRuns
		}
		newerID = runs[0].ID
	}
	if newer, err = db.GetRun(ctx, newerID); err != nil {
		return older, newer, err
	}

	if olderID == "" {
		if olderID = previousRunID(runs, newerID); olderID == "" {
			return older, newer, errNotEnoughRuns
		}
	}
	if older, err = db.GetRun(ctx, olderID); err != nil {
		return older, newer, err
	}
	return older, newer, nil
}

// previousRunID returns the run stored just before id in a newest-first
// list, or "" when there is none.
func previousRunID(runs []database.RunMetadata, id string) string {
	for i, r := range runs {
		if r.ID == id && i+1 < len(runs) {
			return runs[i+1].ID
		}
	}
	return ""
}

func compareRuns(ctx context.Context, db *database.SnapshotDB, older, newer database.RunMetadata) (*report.Comparison, error) {
	olderCatalog, err := db.LoadCatalog(ctx, older.ID)
	if err != nil {
		return nil, err
	}
	newerCatalog, err := db.LoadCatalog(ctx, newer.ID)
	if err != nil {
		return nil, err
	}
	return &report.Comparison{
		OlderID: older.ID,
		OlderAt: older.StartedAt,
		NewerID: newer.ID,
		NewerAt: newer.StartedAt,
		Diff:    model.DiffCatalogs(olderCatalog, newerCatalog),
	}, nil
}

func renderRuns(w io.Writer, runs []database.RunMetadata) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No stored runs")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", "Started", "Duration", "Categories", "Extracted", "Creators"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			len(r.Categories),
			r.Extracted,
			r.Unique,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
