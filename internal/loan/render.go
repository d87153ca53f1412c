package loan

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/leihbot/core/telegram/format"
)

// Render formats a loan as Telegram Markdown (v1).
func Render(l Loan, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	status := "Not returned yet."
	if l.EndedAt != nil {
		status = fmt.Sprintf("Returned %s to *%s*.", stamp(*l.EndedAt, loc), md(l.Acceptor))
	}
	note := "no note"
	if l.Notes != "" {
		note = md(l.Notes)
	}
	return strings.Join([]string{
		fmt.Sprintf("> *%s* (#%d)", md(l.Item), l.ID),
		fmt.Sprintf("Lent %s to *%s*.", stamp(l.StartedAt, loc), md(l.Borrower)),
		fmt.Sprintf("Issued by *%s*.", md(l.Lender)),
		status,
		"_" + note + "_",
	}, "\n")
}

// RenderList formats a listing headed by the filter's title.
func RenderList(f Filter, loans []Loan, loc *time.Location) string {
	count := "none"
	if len(loans) > 0 {
		count = fmt.Sprint(len(loans))
	}
	parts := make([]string, 0, len(loans))
	for _, l := range loans {
		parts = append(parts, Render(l, loc))
	}
	head := fmt.Sprintf("%s: %s", title(f), count)
	if len(parts) == 0 {
		return head
	}
	return head + "\n" + strings.Join(parts, "\n\n")
}

func title(f Filter) string {
	switch f {
	case FilterOpen:
		return "Lent items"
	case FilterClosed:
		return "Returned items"
	}
	return "Lent and returned items"
}

func stamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return fmt.Sprintf("at *%s* on *%s*", t.Format("15:04"), t.Format("02.01.2006"))
}

func md(s string) string {
	escaped, err := format.EscapeMarkdown(s, format.MarkdownV1)
	if err != nil {
		return s
	}
	return escaped
}
