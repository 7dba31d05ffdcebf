package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

// Location table columns. Header names are matched case-insensitively;
// the first listed spelling is canonical.
var locationColumns = map[string][]string{
	"code":    {"code", "region_code", "pcode", "id"},
	"name":    {"name", "region_name", "label"},
	"level":   {"level", "admin_level", "type"},
	"parent":  {"parent_code", "parent", "parent_id"},
	"aliases": {"aliases", "alias", "alternate_names"},
}

// aliasSeparators split the aliases cell.
const aliasSeparators = "|;"

// LoadLocations reads a CSV or XLSX location table, chosen by extension.
// sheet applies to XLSX only; the first sheet is used when it is empty.
func LoadLocations(path, sheet string, lang ingest.Language) (taxonomy.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadLocationsXLSX(path, sheet, lang)
	default:
		return LoadLocationsCSV(path, lang)
	}
}

// LoadLocationsCSV reads a comma-separated location table with a header row.
func LoadLocationsCSV(path string, lang ingest.Language) (taxonomy.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return taxonomy.Table{}, fmt.Errorf("open locations %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return taxonomy.Table{}, fmt.Errorf("read locations %s: %w", path, err)
		}
		line, _ := r.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return buildTable(path, lang, records, lines)
}

// LoadLocationsXLSX reads a location table from one worksheet.
func LoadLocationsXLSX(path, sheet string, lang ingest.Language) (taxonomy.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return taxonomy.Table{}, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return taxonomy.Table{}, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return taxonomy.Table{}, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	return buildTable(path+"#"+sheet, lang, rows, nil)
}

// buildTable maps records onto rows by header. Short records yield empty
// fields that the taxonomy build reports as malformed rows. lines holds the
// source line of each record; nil means record i sits on line i+1.
func buildTable(source string, lang ingest.Language, records [][]string, lines []int) (taxonomy.Table, error) {
	table := taxonomy.Table{Language: lang, Source: source}
	if len(records) == 0 {
		return table, fmt.Errorf("%s: empty location table", source)
	}

	cols, err := headerIndex(records[0])
	if err != nil {
		return table, fmt.Errorf("%s: %w", source, err)
	}
	cell := func(rec []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	for n := 1; n < len(records); n++ {
		rec := records[n]
		if blank(rec) {
			continue
		}
		line := n + 1
		if lines != nil {
			line = lines[n]
		}
		row := taxonomy.Row{
			Line:       line,
			Code:       cell(rec, "code"),
			Name:       cell(rec, "name"),
			Level:      cell(rec, "level"),
			ParentCode: cell(rec, "parent"),
		}
		if aliases := cell(rec, "aliases"); aliases != "" {
			row.Aliases = strings.FieldsFunc(aliases, func(r rune) bool {
				return strings.ContainsRune(aliasSeparators, r)
			})
			for i := range row.Aliases {
				row.Aliases[i] = strings.TrimSpace(row.Aliases[i])
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for key, names := range locationColumns {
			if _, done := cols[key]; done {
				continue
			}
			for _, name := range names {
				if h == name {
					cols[key] = i
				}
			}
		}
	}
	for _, required := range []string{"code", "name", "level"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column in header %v", required, header)
		}
	}
	return cols, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
