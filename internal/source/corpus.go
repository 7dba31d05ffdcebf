// Package source loads pipeline inputs from disk: article corpora, location
// tables and topic tables. Malformed records are skipped with a Warning.
package source

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
)

// Warning describes one skipped or repaired input record.
type Warning struct {
	Source  string
	Line    int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s:%d: %s", w.Source, w.Line, w.Message)
}

// item is one JSONL corpus line.
type item struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Language    string    `json:"language"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	PublishedAt timestamp `json:"published_at"`
}

// timestamp accepts RFC 3339, date-time and date-only values; empty is zero.
type timestamp struct{ time.Time }

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}

// CorpusOptions controls how a corpus file is read.
type CorpusOptions struct {
	Language  ingest.Language // overrides the per-line language when set
	StripHTML bool
}

const maxLineBytes = 16 << 20

// LoadCorpus reads a JSONL article file. Lines that fail to decode or lack
// an id or language are skipped with a warning; the title, when present,
// is prepended to the text.
func LoadCorpus(path string, opts CorpusOptions) ([]ingest.Article, []Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()

	var (
		articles []ingest.Article
		warnings []Warning
	)
	warn := func(line int, format string, args ...any) {
		warnings = append(warnings, Warning{Source: path, Line: line, Message: fmt.Sprintf(format, args...)})
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}

		var it item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			warn(line, "skipping malformed JSON: %v", err)
			continue
		}
		if it.ID == "" {
			it.ID = it.URL
		}

		lang := opts.Language
		if lang == "" {
			lang, err = ingest.ParseLanguage(it.Language)
			if err != nil {
				warn(line, "skipping article %q: %v", it.ID, err)
				continue
			}
		}

		text := it.Text
		if it.Title != "" {
			text = it.Title + "\n" + text
		}
		if opts.StripHTML {
			text = StripHTML(text)
		}

		a := ingest.Article{ID: it.ID, Language: lang, Text: text, PublishedAt: it.PublishedAt.Time}
		if err := a.Validate(); err != nil {
			warn(line, "skipping article: %v", err)
			continue
		}
		articles = append(articles, a)
	}
	if err := sc.Err(); err != nil {
		return nil, warnings, fmt.Errorf("read corpus %s: %w", path, err)
	}
	if len(articles) == 0 && len(warnings) > 0 {
		return nil, warnings, errors.New("no valid articles in " + path)
	}
	return articles, warnings, nil
}

// StripHTML returns the text content of an HTML fragment. Script and style
// bodies are dropped and block elements become line breaks.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "p", "br", "div", "li", "h1", "h2", "h3", "h4", "tr":
				buf.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}
