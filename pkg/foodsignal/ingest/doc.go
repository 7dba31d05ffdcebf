package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Language is a BCP 47 base language code such as "en" or "ar".
type Language string

// Languages monitored by the reference deployment.
const (
	English Language = "en"
	Arabic  Language = "ar"
)

// ParseLanguage validates code as a base language and returns its canonical form.
func ParseLanguage(code string) (Language, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.New("language code is empty")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("parse language %q: %w", code, err)
	}
	base, _ := tag.Base()
	return Language(base.String()), nil
}

// Tag returns the language tag used for case mapping.
func (l Language) Tag() language.Tag {
	tag, err := language.Parse(string(l))
	if err != nil {
		return language.Und
	}
	return tag
}

// Article is one news item in a language corpus. Articles are immutable once loaded.
type Article struct {
	ID          string
	Language    Language
	Text        string
	PublishedAt time.Time // zero when the source has no timestamp
}

// Validate checks if the article has the fields required for scanning.
// Empty text is allowed: it produces no mentions.
func (a *Article) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("article id is required")
	}
	if a.Language == "" {
		return errors.New("article language is required")
	}
	return nil
}

// Dated reports whether the article carries a publication time.
func (a *Article) Dated() bool {
	return !a.PublishedAt.IsZero()
}
