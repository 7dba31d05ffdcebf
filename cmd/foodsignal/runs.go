package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cognicore/foodsignal/pkg/foodsignal/export"
	"github.com/cognicore/foodsignal/pkg/foodsignal/store"
	"github.com/cognicore/foodsignal/pkg/foodsignal/store/sqlite"
)

func newRunsCmd(a *app) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs persisted in the SQLite database",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database (default: output.sqlite from config)")

	open := func(cmd *cobra.Command) (store.Store, error) {
		path := dbPath
		if path == "" {
			cfg, err := a.load()
			if err != nil {
				return nil, err
			}
			path = cfg.Output.SQLite
		}
		if path == "" {
			return nil, errors.New("no database: set --db or output.sqlite")
		}
		return sqlite.OpenSQLite(cmd.Context(), path)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List persisted runs in creation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			runs, err := st.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			renderRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	var outDir, xlsxPath string
	exportCmd := &cobra.Command{
		Use:   "export RUN_ID",
		Short: "Re-export a persisted run as TSV tables and optionally XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			runID := args[0]
			var run store.Run
			if run.Manifest, err = st.GetManifest(ctx, runID); err != nil {
				return err
			}
			if run.Mentions, err = st.Mentions(ctx, runID); err != nil {
				return err
			}
			if run.Risks, err = st.RiskMentions(ctx, runID); err != nil {
				return err
			}
			if run.Scores, err = st.Scores(ctx, runID); err != nil {
				return err
			}
			if run.Associations, err = st.Associations(ctx, runID); err != nil {
				return err
			}

			if err := export.WriteDir(outDir, run); err != nil {
				return err
			}
			if xlsxPath != "" {
				if err := export.WriteXLSX(xlsxPath, run); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s written to %s\n", runID, outDir)
			return nil
		},
	}
	exportCmd.Flags().StringVar(&outDir, "dir", "export", "output directory")
	exportCmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write an XLSX workbook")

	cmd.AddCommand(list, exportCmd)
	return cmd
}

func renderRuns(w io.Writer, runs []store.Manifest) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Created", "Policy", "Window", "Normalization", "Topic", "Articles"})
	for _, m := range runs {
		t.AppendRow(table.Row{
			m.RunID,
			m.CreatedAt.Format(time.RFC3339),
			m.Policy,
			m.Window,
			m.Normalization,
			m.TopicApplied,
			formatCounts(m.Articles),
		})
	}
	t.Render()
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
