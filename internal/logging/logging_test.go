package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestZeroLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Format: "json", Level: "debug", Service: "curetrack"})
	log.Warn("reminder cancel failed", "handle", "h-1", "err", errors.New("boom"), "count", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" || entry["message"] != "reminder cancel failed" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["handle"] != "h-1" || entry["err"] != "boom" || entry["service"] != "curetrack" {
		t.Fatalf("missing fields in %v", entry)
	}
}

func TestZeroLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Format: "json", Level: "warn"})
	log.Info("hidden")
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info/debug to be filtered, got %q", buf.String())
	}
	log.Error("shown", "dangling")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected error line, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("") != zerolog.InfoLevel || ParseLevel("bogus") != zerolog.InfoLevel {
		t.Fatalf("expected info fallback")
	}
	if ParseLevel("DEBUG") != zerolog.DebugLevel {
		t.Fatalf("expected case-insensitive parse")
	}
}

func TestNoop(t *testing.T) {
	l := OrNoop(nil)
	l.Debug("noop")
	l.Info("noop")
	l.Warn("noop")
	l.Error("noop")
	if _, ok := l.(noopLogger); !ok {
		t.Fatalf("expected noop logger")
	}
}
