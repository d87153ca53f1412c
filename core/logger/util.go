package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status maps err onto the status enum of log lines. Context cancellation
// and errors whose Code() is "cancelled" count as cancelled, not failed.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) && coded.Code() == "cancelled" {
		return "cancelled"
	}
	return "fail"
}

// Took returns rounded duration since start for compact logging.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds duration to the nearest millisecond for consistent logging.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// Summarize joins up to limit values, noting how many were left out,
// e.g. "a, b (+3 more)".
func Summarize(values []string, limit int) string {
	if len(values) == 0 {
		return ""
	}
	if limit <= 0 {
		return fmt.Sprintf("(%d items)", len(values))
	}
	if len(values) <= limit {
		return strings.Join(values, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(values[:limit], ", "), len(values)-limit)
}
