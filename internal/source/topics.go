package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/score"
)

// LoadTopics reads an article topic-probability table: a CSV with columns
// article_id and probability and an optional language column. Rows without
// a language apply to the id in every language. Rows with a missing id, an
// unknown language or a probability outside [0,1] are skipped with a
// warning; a repeated (language, id) keeps the last value.
func LoadTopics(path string) (score.Topics, []Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open topics %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read topics header %s: %w", path, err)
	}
	idCol, probCol, langCol := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "article_id", "id":
			idCol = i
		case "probability", "topic_probability", "prob":
			probCol = i
		case "language", "lang":
			langCol = i
		}
	}
	if idCol < 0 || probCol < 0 {
		return nil, nil, fmt.Errorf("%s: header needs article_id and probability columns", path)
	}

	topics := make(score.Topics)
	var warnings []Warning
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, warnings, fmt.Errorf("read topics %s: %w", path, err)
		}
		line, _ := r.FieldPos(0)
		if idCol >= len(rec) || probCol >= len(rec) || strings.TrimSpace(rec[idCol]) == "" {
			warnings = append(warnings, Warning{Source: path, Line: line, Message: "missing article id or probability"})
			continue
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(rec[probCol]), 64)
		if err != nil || p < 0 || p > 1 {
			warnings = append(warnings, Warning{Source: path, Line: line, Message: fmt.Sprintf("probability %q not in [0,1]", rec[probCol])})
			continue
		}
		key := score.TopicKey{ArticleID: strings.TrimSpace(rec[idCol])}
		if langCol >= 0 && langCol < len(rec) && strings.TrimSpace(rec[langCol]) != "" {
			lang, err := ingest.ParseLanguage(rec[langCol])
			if err != nil {
				warnings = append(warnings, Warning{Source: path, Line: line, Message: err.Error()})
				continue
			}
			key.Language = lang
		}
		topics[key] = p
	}
	return topics, warnings, nil
}
