package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/cognicore/foodsignal/internal/logger"
	"github.com/cognicore/foodsignal/pkg/foodsignal"
	"github.com/cognicore/foodsignal/pkg/foodsignal/export"
	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/riskfactor"
	"github.com/cognicore/foodsignal/pkg/foodsignal/score"
	"github.com/cognicore/foodsignal/pkg/foodsignal/store"
	"github.com/cognicore/foodsignal/pkg/foodsignal/store/sqlite"
)

func newRunCmd(a *app) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline and write the output tables",
		Long: `Load the location tables, risk factors and corpora named in the config,
count mentions, score every region, and write the TSV tables plus a
manifest to the output directory. A SQLite database and an XLSX workbook
are written as well when configured.

Exit status is 2 when the run completed but some language or cohort failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.load()
			if err != nil {
				return err
			}
			log, err := a.logger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			tax, err := buildTaxonomy(cfg, log)
			if err != nil {
				return err
			}
			factors, err := riskfactor.LoadFromYAML(cfg.Risk.Factors)
			if err != nil {
				return err
			}
			articles, err := loadCorpus(cfg, log)
			if err != nil {
				return err
			}
			topics, err := loadTopics(cfg, log)
			if err != nil {
				return err
			}
			scoring, err := cfg.ScoreOptions()
			if err != nil {
				return err
			}

			var st store.Store
			if cfg.Output.SQLite != "" {
				st, err = sqlite.OpenSQLite(ctx, cfg.Output.SQLite)
				if err != nil {
					return err
				}
			}

			engine, err := foodsignal.New(foodsignal.Options{
				Taxonomy:  tax,
				Factors:   factors,
				Scoring:   scoring,
				Workers:   cfg.Pipeline.Workers,
				ShardSize: cfg.Pipeline.ShardSize,
				Store:     st,
				Logger:    log,
			})
			if err != nil {
				if st != nil {
					_ = st.Close()
				}
				return err
			}
			defer func() { _ = engine.Close() }()

			res, runErr := engine.Run(ctx, articles, topics)
			if res == nil {
				return runErr
			}

			if err := export.WriteDir(cfg.Output.Dir, res.Run); err != nil {
				return err
			}
			log.Info("tables written",
				logger.String("dir", cfg.Output.Dir),
				logger.String("run_id", res.Run.Manifest.RunID))
			if cfg.Output.XLSX != "" {
				if err := export.WriteXLSX(cfg.Output.XLSX, res.Run); err != nil {
					return err
				}
				log.Info("workbook written", logger.String("path", cfg.Output.XLSX))
			}

			out := cmd.OutOrStdout()
			renderLanguages(out, res)
			renderTopScores(out, res.Report, top)

			if runErr != nil {
				return &partialError{err: runErr}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "regions shown per window and scope in the summary")
	return cmd
}

func renderLanguages(w io.Writer, res *foodsignal.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run " + res.Run.Manifest.RunID)
	t.AppendHeader(table.Row{"Language", "Articles", "Place hits", "Skipped hits", "Risk mentions", "Clusters"})

	langs := make([]ingest.Language, 0, len(res.Mentions))
	for lang := range res.Mentions {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })

	for _, lang := range langs {
		m := res.Mentions[lang]
		var risks int
		var clusters []string
		for _, g := range res.Risks[lang].ByCluster() {
			risks += g.Total
			clusters = append(clusters, g.Cluster)
		}
		t.AppendRow(table.Row{lang, m.ArticleCount(), m.Hits, m.Skipped, risks, len(clusters)})
	}
	t.Render()
}

func renderTopScores(w io.Writer, report *score.Report, top int) {
	if top <= 0 || len(report.Scores) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Top regions (%s, %s)", report.Granularity, report.Normalization))
	t.AppendHeader(table.Row{"Window", "Scope", "Region", "Level", "Articles", "Composite", "Geo", "Risk", "Breadth", "Admin"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Composite", Align: text.AlignRight},
	})

	groups := make(map[string][]score.RegionScore)
	var keys []string
	for _, s := range report.Scores {
		key := s.Window + "\x00" + s.Scope
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], s)
	}

	for _, key := range keys {
		rows := groups[key]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Composite > rows[j].Composite })
		if len(rows) > top {
			rows = rows[:top]
		}
		for _, s := range rows {
			t.AppendRow(table.Row{
				s.Window, s.Scope, s.RegionID, levelLabel(s), s.Articles,
				fmt.Sprintf("%.4f", s.Composite),
				fmt.Sprintf("%.3f", s.Normalized.GeoDensity),
				fmt.Sprintf("%.3f", s.Normalized.RiskFreq),
				fmt.Sprintf("%.3f", s.Normalized.LangBreadth),
				fmt.Sprintf("%.3f", s.Normalized.AdminDiversity),
			})
		}
		t.AppendSeparator()
	}
	t.Render()
}

func levelLabel(s score.RegionScore) string {
	if s.Aggregate {
		return "aggregate"
	}
	return s.Level.String()
}
