package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(Background(), "1:2:3"), 11, 22, 33)
	ctx = WithSession(WithRunID(ctx, "run-1"), "42:7")
	ctx = WithHandler(ctx, "lend")

	if got := RIDFrom(ctx); got != "1:2:3" {
		t.Fatalf("rid = %q", got)
	}
	if UpdateIDFrom(ctx) != 11 || UserIDFrom(ctx) != 22 || ChatIDFrom(ctx) != 33 {
		t.Fatalf("update meta = %d/%d/%d", UpdateIDFrom(ctx), UserIDFrom(ctx), ChatIDFrom(ctx))
	}
	if SessionFrom(ctx) != "42:7" || RunIDFrom(ctx) != "run-1" {
		t.Fatalf("session/run = %q/%q", SessionFrom(ctx), RunIDFrom(ctx))
	}
	if got := HandlerFrom(WithHandler(ctx, "")); got != "lend" {
		t.Fatalf("empty handler replaced %q", got)
	}
	if FromContext(context.Background()) != L {
		t.Fatal("expected global logger without override")
	}
	if SessionFrom(Background()) != "" {
		t.Fatal("unexpected session")
	}
}

func TestCompactRID(t *testing.T) {
	cases := map[string]string{
		"100:-36:35": "2s.-10.z",
		" 1:2:3 ":    "1.2.3",
		"abc":        "abc",
		"1:x:3":      "1:x:3",
		"":           "",
	}
	for in, want := range cases {
		if got := CompactRID(in); got != want {
			t.Errorf("CompactRID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("Bohr\x00maschine\u200b\n", 100); got != "Bohrmaschine\n" {
		t.Fatalf("sanitize = %q", got)
	}
	if got := SanitizeLimit("Säge", 2); got != "Sä" {
		t.Fatalf("limit = %q", got)
	}
	if got := SanitizeLimit("x", 0); got != "" {
		t.Fatalf("zero limit = %q", got)
	}
}

func TestConversationFieldsFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: aw, format: formatKV})

	ctx := WithRunID(WithSession(Background(), "42"), "run-9")
	log := slog.New(handler).With("component", "conversation")
	LogEvent(ctx, log, slog.LevelInfo, "run.finished", slog.String("outcome", "superseded"))
	LogEvent(ctx, log, slog.LevelInfo, "run.finished", slog.String("outcome", "bogus"))
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d (%q)", len(lines), buf.String())
	}
	for _, want := range []string{"session=42", "run_id=run-9", "outcome=superseded"} {
		if !strings.Contains(lines[0], want) {
			t.Fatalf("missing %s in %q", want, lines[0])
		}
	}
	if strings.Contains(lines[1], "outcome=") {
		t.Fatalf("unknown outcome kept: %q", lines[1])
	}
}
