package logger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

type codeErr string

func (e codeErr) Error() string { return string(e) }
func (e codeErr) Code() string  { return string(e) }

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{context.Canceled, "cancelled"},
		{fmt.Errorf("wrap: %w", codeErr("cancelled")), "cancelled"},
		{codeErr("persistence"), "fail"},
		{errors.New("boom"), "fail"},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Errorf("Status(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	files := []string{"a", "b", "c", "d"}
	if got := Summarize(files, 2); got != "a, b (+2 more)" {
		t.Fatalf("got %q", got)
	}
	if got := Summarize(files, 4); got != "a, b, c, d" {
		t.Fatalf("got %q", got)
	}
	if got := Summarize(files, 0); got != "(4 items)" {
		t.Fatalf("got %q", got)
	}
	if got := Summarize(nil, 3); got != "" {
		t.Fatalf("got %q", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterFanOut(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{a, nil, b}, 16)
	for i := range 100 {
		if err := w.Write([]byte(fmt.Sprintf("line %d\n", i))); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := strings.Count(a.String(), "\n"); got != 100 {
		t.Fatalf("sink a lines = %d", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if a.String() != b.String() {
		t.Fatal("sinks differ")
	}
	if err := w.Write([]byte("late\n")); !errors.Is(err, errWriterClosed) {
		t.Fatalf("write after close = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush after close = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close = %v", err)
	}
}

func TestAsyncWriterReportsSinkError(t *testing.T) {
	w := newAsyncWriter([]io.Writer{failingWriter{}}, 1)
	_ = w.Write([]byte("x\n"))
	if err := w.Close(); err == nil {
		t.Fatal("expected sink error")
	}
}

func TestOutcomeOf(t *testing.T) {
	cases := map[string]string{
		"INVALID_STATE":       "invalid_state",
		"MALFORMED_REFERENCE": "malformed_reference",
		"cancelled":           "cancelled",
		"ERRORSTRING":         "fail",
		"":                    "fail",
	}
	for code, want := range cases {
		if got := OutcomeOf(code); got != want {
			t.Errorf("OutcomeOf(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestNormalizeLevelAndStatus(t *testing.T) {
	levels := map[string]string{
		"warning": "WARN",
		"Debug":   "DEBUG",
		"INFO+2":  "INFO+2",
		"":        "INFO",
	}
	for in, want := range levels {
		if got := normalizeLevel(in); got != want {
			t.Errorf("normalizeLevel(%q) = %q, want %q", in, got, want)
		}
	}
	if got, ok := normalizeStatus(" OK "); got != "ok" || !ok {
		t.Fatalf("normalizeStatus(OK) = %q, %v", got, ok)
	}
	if got, ok := normalizeStatus("Pending"); got != "pending" || ok {
		t.Fatalf("normalizeStatus(Pending) = %q, %v", got, ok)
	}
}
