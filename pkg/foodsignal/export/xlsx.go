package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/cognicore/foodsignal/pkg/foodsignal/store"
)

// WriteXLSX writes every table of run, plus a manifest sheet, to one workbook.
func WriteXLSX(path string, run store.Run) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables(run) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(t.name); err != nil {
			return err
		}
		if err := writeSheet(f, t); err != nil {
			return err
		}
	}

	m := run.Manifest
	manifest := table{name: "Manifest", header: []string{"key", "value"}, rows: [][]string{
		{"run_id", m.RunID},
		{"policy", m.Policy},
		{"aggregate_code", m.AggregateCode},
		{"normalization", m.Normalization},
		{"window", m.Window},
		{"weight.geo_density", formatFloat(m.Weights.GeoDensity)},
		{"weight.risk_freq", formatFloat(m.Weights.RiskFreq)},
		{"weight.lang_breadth", formatFloat(m.Weights.LangBreadth)},
		{"weight.admin_diversity", formatFloat(m.Weights.AdminDiversity)},
		{"weight.topic", formatFloat(m.Weights.Topic)},
		{"topic_applied", strconv.FormatBool(m.TopicApplied)},
	}}
	for _, lang := range m.Languages {
		manifest.rows = append(manifest.rows,
			[]string{"articles." + lang, strconv.Itoa(m.Articles[lang])},
			[]string{"skipped_hits." + lang, strconv.Itoa(m.SkippedHits[lang])},
		)
	}
	if _, err := f.NewSheet(manifest.name); err != nil {
		return err
	}
	if err := writeSheet(f, manifest); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, t table) error {
	for col, h := range t.header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(t.name, cell, h); err != nil {
			return fmt.Errorf("sheet %s: %w", t.name, err)
		}
	}
	for r, row := range t.rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(t.name, cell, v); err != nil {
				return fmt.Errorf("sheet %s: %w", t.name, err)
			}
		}
	}
	return nil
}
