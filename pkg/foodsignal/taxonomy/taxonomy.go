package taxonomy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
	"github.com/cognicore/foodsignal/pkg/foodsignal/lexicon"
)

// DefaultAggregateCode is the province code reserved for "unspecified or
// other within this country".
const DefaultAggregateCode = "00"

// Options configures a taxonomy build.
type Options struct {
	Policy        Policy
	AggregateCode string
	Aliases       *lexicon.Lexicon // optional
}

// Entry is one surface form of a language and the regions it may name.
type Entry struct {
	Form       string      // normalized phrase key
	Candidates []Candidate // sorted by region id
	Rank       Rank
	Ambiguous  bool
	Targets    []RegionID // candidates selected by the build policy
}

// LanguageIndex is the read-only matcher of one language.
type LanguageIndex struct {
	lang    ingest.Language
	index   *ingest.PhraseIndex
	entries []Entry
}

// Language returns the index language.
func (li *LanguageIndex) Language() ingest.Language { return li.lang }

// Phrases returns the combined phrase matcher; payloads index Entries.
func (li *LanguageIndex) Phrases() *ingest.PhraseIndex { return li.index }

// Entry returns the entry stored under payload i.
func (li *LanguageIndex) Entry(i int) Entry { return li.entries[i] }

// Entries returns all surface-form entries sorted by form.
func (li *LanguageIndex) Entries() []Entry { return li.entries }

// Lookup resolves a raw surface form.
func (li *LanguageIndex) Lookup(form string) (Entry, bool) {
	payloads := li.index.Lookup(form)
	if len(payloads) == 0 {
		return Entry{}, false
	}
	return li.entries[payloads[0]], true
}

// Taxonomy is the canonical, immutable administrative hierarchy of a run.
// Rebuilding is the only way to change it.
type Taxonomy struct {
	policy      Policy
	aggregate   string
	regions     map[RegionID]*Region
	order       []RegionID
	ancestors   map[RegionID][]RegionID // parent first, country last
	descendants map[RegionID][]RegionID
	langs       map[ingest.Language]*LanguageIndex
	nested      map[ingest.Language][]ingest.Nesting
	warnings    []Warning
}

// Policy returns the ambiguity policy the taxonomy was built with.
func (t *Taxonomy) Policy() Policy { return t.policy }

// AggregateCode returns the province code treated as a country aggregate.
func (t *Taxonomy) AggregateCode() string { return t.aggregate }

// Warnings returns rows skipped or flagged during the build.
func (t *Taxonomy) Warnings() []Warning { return t.warnings }

// Region returns a region by id.
func (t *Taxonomy) Region(id RegionID) (*Region, bool) {
	r, ok := t.regions[id]
	return r, ok
}

// Regions returns every region id in sorted order.
func (t *Taxonomy) Regions() []RegionID { return t.order }

// Ancestors returns the ancestor path of id, nearest first. The returned
// slice is shared and must not be modified.
func (t *Taxonomy) Ancestors(id RegionID) []RegionID { return t.ancestors[id] }

// Descendants returns every region below id, sorted.
func (t *Taxonomy) Descendants(id RegionID) []RegionID { return t.descendants[id] }

// Languages returns the languages that have a location table, sorted.
func (t *Taxonomy) Languages() []ingest.Language {
	out := make([]ingest.Language, 0, len(t.langs))
	for l := range t.langs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Language returns the matcher for lang.
func (t *Taxonomy) Language(lang ingest.Language) (*LanguageIndex, error) {
	li, ok := t.langs[lang]
	if !ok {
		return nil, &internalerr.UnresolvedLanguageError{Language: string(lang)}
	}
	return li, nil
}

// Nested returns surface forms of lang that occur inside longer forms.
func (t *Taxonomy) Nested(lang ingest.Language) []ingest.Nesting { return t.nested[lang] }

type parsedRow struct {
	row    Row
	code   RegionID
	parent RegionID
	level  Level
}

// Build validates the per-language location tables and produces the taxonomy.
// Malformed rows are skipped with a warning; structural problems return a
// *internalerr.TaxonomyIntegrityError.
func Build(tables []Table, opts Options) (*Taxonomy, error) {
	if opts.Policy == "" {
		opts.Policy = PolicyAllCandidates
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	opts.Policy = policy
	if opts.AggregateCode == "" {
		opts.AggregateCode = DefaultAggregateCode
	}

	t := &Taxonomy{
		policy:      opts.Policy,
		aggregate:   opts.AggregateCode,
		regions:     make(map[RegionID]*Region),
		ancestors:   make(map[RegionID][]RegionID),
		descendants: make(map[RegionID][]RegionID),
		langs:       make(map[ingest.Language]*LanguageIndex),
		nested:      make(map[ingest.Language][]ingest.Nesting),
	}

	parsed := make(map[ingest.Language][]parsedRow, len(tables))
	var langOrder []ingest.Language
	for _, table := range tables {
		if _, dup := parsed[table.Language]; dup {
			return nil, &internalerr.TaxonomyIntegrityError{
				Language: string(table.Language),
				Reason:   "more than one location table for language",
			}
		}
		rows, err := t.parseTable(table)
		if err != nil {
			return nil, err
		}
		parsed[table.Language] = rows
		langOrder = append(langOrder, table.Language)
	}
	sort.Slice(langOrder, func(i, j int) bool { return langOrder[i] < langOrder[j] })

	for _, lang := range langOrder {
		if err := t.mergeRows(lang, parsed[lang]); err != nil {
			return nil, err
		}
	}
	if err := t.link(opts.AggregateCode); err != nil {
		return nil, err
	}
	t.addLexicon(opts.Aliases)

	for _, lang := range langOrder {
		t.indexLanguage(lang)
	}
	return t, nil
}

func (t *Taxonomy) warn(lang ingest.Language, source string, line int, code, format string, args ...any) {
	t.warnings = append(t.warnings, Warning{
		Language: lang,
		Source:   source,
		Line:     line,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (t *Taxonomy) parseTable(table Table) ([]parsedRow, error) {
	seen := make(map[RegionID]bool, len(table.Rows))
	rows := make([]parsedRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		row.Code = strings.TrimSpace(row.Code)
		row.Name = strings.TrimSpace(row.Name)
		row.ParentCode = strings.TrimSpace(row.ParentCode)

		if row.Code == "" {
			t.warn(table.Language, table.Source, row.Line, "", "skipped row: empty region code")
			continue
		}
		if row.Name == "" {
			t.warn(table.Language, table.Source, row.Line, row.Code, "skipped row: empty name")
			continue
		}
		level, err := ParseLevel(row.Level)
		if err != nil {
			t.warn(table.Language, table.Source, row.Line, row.Code, "skipped row: %v", err)
			continue
		}
		if level != LevelCountry && row.ParentCode == "" {
			t.warn(table.Language, table.Source, row.Line, row.Code, "skipped row: %s without parent code", level)
			continue
		}

		code := RegionID(row.Code)
		if seen[code] {
			return nil, &internalerr.TaxonomyIntegrityError{
				Language: string(table.Language),
				RegionID: row.Code,
				Reason:   "duplicate region id",
			}
		}
		seen[code] = true

		parent := RegionID(row.ParentCode)
		if level == LevelCountry {
			parent = ""
		}
		rows = append(rows, parsedRow{row: row, code: code, parent: parent, level: level})
	}
	return rows, nil
}

// mergeRows folds one language's rows into the shared region set. Languages
// must agree on level and parent of every region they both list.
func (t *Taxonomy) mergeRows(lang ingest.Language, rows []parsedRow) error {
	for _, pr := range rows {
		r, ok := t.regions[pr.code]
		if !ok {
			r = &Region{
				ID:      pr.code,
				Level:   pr.level,
				Parent:  pr.parent,
				Names:   make(map[ingest.Language]string),
				Aliases: make(map[ingest.Language][]string),
			}
			t.regions[pr.code] = r
		} else if r.Level != pr.level || r.Parent != pr.parent {
			return &internalerr.TaxonomyIntegrityError{
				Language: string(lang),
				RegionID: string(pr.code),
				Reason: fmt.Sprintf("conflicts with another language: %s under %q vs %s under %q",
					pr.level, pr.parent, r.Level, r.Parent),
			}
		}
		r.Names[lang] = pr.row.Name
		for _, a := range pr.row.Aliases {
			if a = strings.TrimSpace(a); a != "" {
				r.Aliases[lang] = append(r.Aliases[lang], a)
			}
		}
	}
	return nil
}

// link checks parent references, flags aggregate provinces and precomputes
// the ancestor and descendant indexes.
func (t *Taxonomy) link(aggregateCode string) error {
	t.order = make([]RegionID, 0, len(t.regions))
	for id := range t.regions {
		t.order = append(t.order, id)
	}
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })

	for _, id := range t.order {
		r := t.regions[id]
		if r.Level == LevelCountry {
			r.Country = r.ID
			continue
		}
		parent, ok := t.regions[r.Parent]
		if !ok {
			return &internalerr.TaxonomyIntegrityError{
				RegionID: string(id),
				Reason:   fmt.Sprintf("%s references nonexistent parent %q", r.Level, r.Parent),
			}
		}
		if parent.Level != r.Level-1 {
			return &internalerr.TaxonomyIntegrityError{
				RegionID: string(id),
				Reason:   fmt.Sprintf("%s parent %q is a %s", r.Level, r.Parent, parent.Level),
			}
		}
		if r.Level == LevelProvince && localCode(r.ID, r.Parent) == aggregateCode {
			r.Aggregate = true
		}
	}

	for _, id := range t.order {
		r := t.regions[id]
		var path []RegionID
		for p := r.Parent; p != ""; p = t.regions[p].Parent {
			path = append(path, p)
		}
		t.ancestors[id] = path
		if len(path) > 0 {
			r.Country = path[len(path)-1]
		}
		// t.order is sorted, so descendant lists come out sorted too.
		for _, a := range path {
			t.descendants[a] = append(t.descendants[a], id)
		}
	}
	return nil
}

// localCode strips the parent's code prefix and separators: "PS-00" under "PS" → "00".
func localCode(id, parent RegionID) string {
	local := strings.TrimPrefix(string(id), string(parent))
	return strings.TrimLeft(local, "-_./ ")
}

func (t *Taxonomy) addLexicon(lex *lexicon.Lexicon) {
	if lex == nil {
		return
	}
	for _, id := range lex.Regions() {
		r, ok := t.regions[RegionID(id)]
		if !ok {
			t.warn("", "aliases", 0, id, "aliases for unknown region ignored")
			continue
		}
		for _, lang := range lex.Languages(id) {
			r.Aliases[lang] = append(r.Aliases[lang], lex.Aliases(id, lang)...)
		}
	}
}

// indexLanguage collects every surface form of lang, ranks the candidates,
// applies the policy, and compiles the combined phrase matcher.
func (t *Taxonomy) indexLanguage(lang ingest.Language) {
	tokenizer := ingest.NewTokenizer(lang)
	byForm := make(map[string]map[RegionID]bool) // form → region → canonical

	add := func(r *Region, form string, canonical bool) {
		key := tokenizer.Key(form)
		if key == "" {
			t.warn(lang, "", 0, string(r.ID), "surface form %q normalizes to nothing", form)
			return
		}
		cands := byForm[key]
		if cands == nil {
			cands = make(map[RegionID]bool)
			byForm[key] = cands
		}
		cands[r.ID] = cands[r.ID] || canonical
	}

	for _, id := range t.order {
		r := t.regions[id]
		if r.Aggregate {
			continue
		}
		if name := r.Names[lang]; name != "" {
			add(r, name, true)
		}
		for _, a := range r.Aliases[lang] {
			add(r, a, false)
		}
	}

	forms := make([]string, 0, len(byForm))
	for f := range byForm {
		forms = append(forms, f)
	}
	sort.Strings(forms)

	entries := make([]Entry, len(forms))
	phrases := make([]ingest.Phrase, len(forms))
	for i, form := range forms {
		cands := make([]Candidate, 0, len(byForm[form]))
		for id, canonical := range byForm[form] {
			cands = append(cands, Candidate{Region: id, Level: t.regions[id].Level, Canonical: canonical})
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].Region < cands[b].Region })

		e := Entry{Form: form, Candidates: cands}
		switch {
		case len(cands) > 1:
			e.Rank = RankAmbiguous
			e.Ambiguous = true
		case cands[0].Canonical:
			e.Rank = RankExact
		default:
			e.Rank = RankUnique
		}
		e.Targets = t.policy.Select(cands)
		entries[i] = e
		phrases[i] = ingest.Phrase{Text: form, Payload: i}
	}

	t.langs[lang] = &LanguageIndex{
		lang:    lang,
		index:   ingest.NewPhraseIndex(tokenizer, phrases),
		entries: entries,
	}
	if nested := ingest.NestedKeys(forms); len(nested) > 0 {
		t.nested[lang] = nested
	}
}
