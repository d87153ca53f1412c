package logger

import "strings"

// vocabulary maps accepted spellings of an enum field onto the canonical word.
type vocabulary map[string]string

func words(canonical ...string) vocabulary {
	v := make(vocabulary, len(canonical))
	for _, w := range canonical {
		v[w] = w
	}
	return v
}

func (v vocabulary) alias(from, to string) vocabulary {
	v[from] = to
	return v
}

func (v vocabulary) lookup(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	w, ok := v[s]
	return w, ok
}

var (
	levels = words("DEBUG", "INFO", "WARN", "ERROR", "FATAL").
		alias("debug", "DEBUG").
		alias("info", "INFO").
		alias("warn", "WARN").
		alias("warning", "WARN").
		alias("error", "ERROR").
		alias("fatal", "FATAL")

	statuses = words("ok", "fail", "skip", "retry", "rate_limited", "cancelled")

	// outcomes include every way a conversation run can end.
	outcomes = words(
		"ok", "fail", "rate_limited",
		"cancelled", "expired", "superseded", "unknown_input",
		"malformed_reference", "invalid_state", "persistence",
	)
)

// normalizeLevel keeps slog offsets such as "INFO+2" readable.
func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if w, ok := levels.lookup(level); ok {
		return w
	}
	return strings.ToUpper(level)
}

// normalizeStatus lowercases unknown statuses instead of dropping them.
func normalizeStatus(status string) (string, bool) {
	if w, ok := statuses.lookup(status); ok {
		return w, true
	}
	return strings.ToLower(strings.TrimSpace(status)), false
}

func normalizeOutcome(outcome string) (string, bool) {
	return outcomes.lookup(outcome)
}

// OutcomeOf maps an error code such as "INVALID_STATE" onto its outcome,
// or "fail" when the code names none.
func OutcomeOf(code string) string {
	if o, ok := normalizeOutcome(code); ok {
		return o
	}
	return "fail"
}

// defaultKeyOrder puts correlation fields first and error details last.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "session", "run_id", "chain", "step",
	"ts_unix_nano", "update_id", "user_id", "chat_id", "chat_type", "handler",
	"outcome", "duration_ms", "messages", "kb", "count", "payload",
	"lang", "username", "mode", "listen", "public_url",
	"db", "host", "port", "loan_id", "filter",
	"err", "err_code", "cause", "attempts", "backoff_ms", "rate_limited",
	"pending_count",
}
