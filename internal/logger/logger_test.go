package logger

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l, err := New(Config{Level: "debug", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.With(String("language", "en")).Info("scan complete", Int("articles", 3), Error(errors.New("x")))
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestValidLevel(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", "warn", "error"} {
		if !ValidLevel(lvl) {
			t.Errorf("ValidLevel(%q) = false, want true", lvl)
		}
	}
	if ValidLevel("verbose") {
		t.Error("ValidLevel(verbose) = true, want false")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.With(String("k", "v")).Warn("ignored")
	if err := l.Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
}
