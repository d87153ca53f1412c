package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// render logs one event through a fresh handler and returns the written line.
func render(t *testing.T, format logFormat, ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: aw, format: format})
	LogEvent(ctx, slog.New(handler).With("component", component), level, event, attrs...)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	return line
}

// inOrder fails unless every fragment occurs in line after the previous one.
func inOrder(t *testing.T, line string, fragments ...string) {
	t.Helper()
	pos := -1
	for _, f := range fragments {
		idx := strings.Index(line, f)
		if idx < 0 || idx < pos {
			t.Fatalf("%s not found in order within %s", f, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(Background(), "rid-123"), 42, 7, 9)
	ctx = WithRunID(WithSession(ctx, "9:3"), "run-1")
	line := render(t, formatKV, ctx, "conversation", slog.LevelInfo, "step.executed",
		slog.String("cause", "unit"),
		slog.String("status", "ok"),
		slog.String("step", "borrower"),
	)
	if !strings.HasPrefix(line, "ts=") {
		t.Fatalf("line should start with ts: %s", line)
	}
	inOrder(t, line, "level=INFO", "component=conversation", "event=step.executed", "status=ok",
		"rid=rid-123", "session=9:3", "run_id=run-1", "step=borrower", "update_id=42", "user_id=7", "chat_id=9", "cause=unit")
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(Background(), "rid-json"), 11, 22, 33)
	line := render(t, formatJSON, ctx, "service.loans", slog.LevelError, "loan.insert",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.String("err_code", "PERSISTENCE"),
	)
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		t.Fatalf("expected JSON object, got %s", line)
	}
	inOrder(t, line, `{"ts":`, `"level":"ERROR"`, `"component":"service.loans"`, `"event":"loan.insert"`,
		`"status":"fail"`, `"rid":"rid-json"`, `"err":"boom"`, `"err_code":"PERSISTENCE"`)
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	rawRID := "123:456:789"
	line := render(t, formatKV, WithRID(Background(), rawRID), "app", slog.LevelInfo, "rid.test")
	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}

	rawRID = "12:34:56"
	line = render(t, formatJSON, WithRID(Background(), rawRID), "app", slog.LevelInfo, "rid.test")
	for _, want := range []string{`"rid":"` + CompactRID(rawRID) + `"`, `"rid_full":"` + rawRID + `"`, `"ts_unix_nano"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in JSON output, got %s", want, line)
		}
	}
}

func TestStructuredHandlerDurations(t *testing.T) {
	line := render(t, formatKV, Background(), "tg.sender", slog.LevelDebug, "send.ok",
		slog.Duration("duration", 1499*time.Microsecond),
		slog.Duration("backoff", 2*time.Second),
	)
	inOrder(t, line, "duration_ms=1", "backoff_ms=2000")
}

func TestStructuredHandlerErrorSink(t *testing.T) {
	main := &bytes.Buffer{}
	errs := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{main}, 1024)
	ew := newAsyncWriter([]io.Writer{errs}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:     slog.LevelInfo,
		writer:    aw,
		errWriter: ew,
		format:    formatKV,
	})
	log := slog.New(handler).With("component", "conversation")
	LogEvent(Background(), log, slog.LevelInfo, "run.finished")
	LogEvent(Background(), log, slog.LevelError, "run.halted", slog.String("err", "boom"))
	for _, w := range []*asyncWriter{aw, ew} {
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	if got := strings.Count(main.String(), "\n"); got != 2 {
		t.Fatalf("main sink lines = %d, want 2 (%q)", got, main.String())
	}
	if strings.Contains(errs.String(), "run.finished") {
		t.Fatalf("info record reached error sink: %q", errs.String())
	}
	if !strings.Contains(errs.String(), "event=run.halted") {
		t.Fatalf("error record missing from error sink: %q", errs.String())
	}
}

func TestDurationKey(t *testing.T) {
	cases := map[string]string{
		"duration":      "duration_ms",
		"step_duration": "step_duration_ms",
		"wait":          "wait_ms",
		"backoff_ms":    "backoff_ms",
	}
	for in, want := range cases {
		if got := durationKey(in); got != want {
			t.Errorf("durationKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStructuredHandlerGroupsAndEmpties(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{level: slog.LevelInfo, writer: aw, format: formatKV})

	log := slog.New(handler).With("component", "service.loans").WithGroup("loan")
	log.Info("loan.stored",
		slog.Group("draft", slog.String("item", "Drill Set"), slog.String("notes", "")),
		slog.String("outcome", "bogus"),
	)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, `loan.draft.item="Drill Set"`) {
		t.Fatalf("expected flattened group key, got %s", line)
	}
	if strings.Contains(line, "notes") {
		t.Fatalf("empty field should be pruned, got %s", line)
	}
	if strings.Contains(line, "outcome") {
		t.Fatalf("unknown outcome should be dropped, got %s", line)
	}
	if !strings.Contains(line, "event=loan.stored") {
		t.Fatalf("message should become the event, got %s", line)
	}
}

func TestSortedKeys(t *testing.T) {
	f := record{"zeta": 1, "level": "INFO", "alpha": 2, "ts": "now"}
	got := strings.Join(sortedKeys(f, []string{"ts", "level", "missing"}), ",")
	if got != "ts,level,alpha,zeta" {
		t.Fatalf("sortedKeys = %s", got)
	}
}
