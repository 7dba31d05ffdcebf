package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/riskfactor"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

func newTaxonomyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect the administrative taxonomy",
	}

	var showForms bool
	check := &cobra.Command{
		Use:   "check",
		Short: "Build the taxonomy and report skipped rows, ambiguity and nesting",
		Long: `Build the taxonomy exactly as a run would and print, per language, the
number of regions and surface forms, every skipped row, and every surface
form that occurs inside a longer one. Risk phrases nested inside longer
phrases of the same factor are listed when a factor file is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			out := cmd.OutOrStdout()
			renderTaxonomy(out, tax)
			renderWarnings(out, tax.Warnings())
			renderNested(out, tax)
			if showForms {
				renderAmbiguous(out, tax)
			}

			if cfg.Risk.Factors == "" {
				return nil
			}
			factors, err := riskfactor.LoadFromYAML(cfg.Risk.Factors)
			if err != nil {
				return err
			}
			return renderFactors(out, tax.Languages(), factors)
		},
	}
	check.Flags().BoolVar(&showForms, "ambiguous", false, "list every ambiguous surface form")
	cmd.AddCommand(check)
	return cmd
}

func renderTaxonomy(w io.Writer, tax *taxonomy.Taxonomy) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Taxonomy (policy %s, aggregate %q)", tax.Policy(), tax.AggregateCode()))
	t.AppendHeader(table.Row{"Language", "Regions", "Forms", "Ambiguous", "Nested"})

	for _, lang := range tax.Languages() {
		li, err := tax.Language(lang)
		if err != nil {
			continue
		}
		named := 0
		for _, id := range tax.Regions() {
			if r, ok := tax.Region(id); ok && r.Name(lang) != "" {
				named++
			}
		}
		ambiguous := 0
		for _, e := range li.Entries() {
			if e.Ambiguous {
				ambiguous++
			}
		}
		t.AppendRow(table.Row{lang, named, len(li.Entries()), ambiguous, len(tax.Nested(lang))})
	}
	t.AppendFooter(table.Row{"total", len(tax.Regions())})
	t.Render()
}

func renderWarnings(w io.Writer, warnings []taxonomy.Warning) {
	if len(warnings) == 0 {
		fmt.Fprintln(w, "No rows skipped.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Skipped rows")
	t.AppendHeader(table.Row{"Language", "Source", "Line", "Code", "Reason"})
	for _, wn := range warnings {
		t.AppendRow(table.Row{wn.Language, wn.Source, wn.Line, wn.Code, wn.Message})
	}
	t.Render()
}

func renderNested(w io.Writer, tax *taxonomy.Taxonomy) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Nested surface forms")
	t.AppendHeader(table.Row{"Language", "Inner", "Outer"})
	rows := 0
	for _, lang := range tax.Languages() {
		for _, n := range tax.Nested(lang) {
			t.AppendRow(table.Row{lang, n.Inner, n.Outer})
			rows++
		}
	}
	if rows > 0 {
		t.Render()
	}
}

func renderAmbiguous(w io.Writer, tax *taxonomy.Taxonomy) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Ambiguous surface forms")
	t.AppendHeader(table.Row{"Language", "Form", "Candidates", "Attributed to"})
	for _, lang := range tax.Languages() {
		li, err := tax.Language(lang)
		if err != nil {
			continue
		}
		for _, e := range li.Entries() {
			if !e.Ambiguous {
				continue
			}
			candidates := make([]string, len(e.Candidates))
			for i, c := range e.Candidates {
				candidates[i] = fmt.Sprintf("%s (%s)", c.Region, c.Level)
			}
			targets := make([]string, len(e.Targets))
			for i, id := range e.Targets {
				targets[i] = string(id)
			}
			t.AppendRow(table.Row{lang, e.Form, strings.Join(candidates, ", "), strings.Join(targets, ", ")})
		}
	}
	t.Render()
}

func renderFactors(w io.Writer, langs []ingest.Language, factors []riskfactor.Factor) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Risk factors")
	t.AppendHeader(table.Row{"Language", "Factors", "Clusters", "Phrases", "Rejected", "Nested"})

	var nested []riskfactor.Nesting
	var nestedLang []ingest.Language
	for _, lang := range langs {
		m, err := riskfactor.Compile(lang, factors)
		if err != nil {
			return err
		}
		rejected := ""
		if err := m.Rejected(); err != nil {
			rejected = err.Error()
		}
		clusters := strings.Join(riskfactor.Clusters(m.Factors()), ", ")
		t.AppendRow(table.Row{lang, len(m.Factors()), clusters, m.Phrases(), rejected, len(m.Nested())})
		for _, n := range m.Nested() {
			nested = append(nested, n)
			nestedLang = append(nestedLang, lang)
		}
	}
	t.Render()

	if len(nested) == 0 {
		return nil
	}
	nt := table.NewWriter()
	nt.SetOutputMirror(w)
	nt.SetStyle(table.StyleLight)
	nt.SetTitle("Nested risk phrases (counted once per span)")
	nt.AppendHeader(table.Row{"Language", "Factor", "Inner", "Outer"})
	for i, n := range nested {
		nt.AppendRow(table.Row{nestedLang[i], n.FactorID, n.Inner, n.Outer})
	}
	nt.Render()
	return nil
}
