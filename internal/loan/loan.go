// Package loan models one lend/return cycle and its persistence.
package loan

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no loan matches the session and id.
	ErrNotFound = errors.New("loan: not found")
	// ErrAlreadyClosed is returned when closing a loan that was already returned.
	ErrAlreadyClosed = errors.New("loan: already closed")
	// ErrMalformedLabel is returned when a label carries no loan id.
	ErrMalformedLabel = errors.New("loan: malformed label")
	// ErrIncomplete is returned when persisting a loan with missing fields.
	ErrIncomplete = errors.New("loan: incomplete")
)

// Loan records one item handed from a lender to a borrower.
type Loan struct {
	ID         int64
	SessionKey string
	Item       string
	Lender     string
	Borrower   string
	StartedAt  time.Time
	EndedAt    *time.Time
	Acceptor   string
	Notes      string
}

// New starts a draft loan issued by lender at the given time.
func New(sessionKey, lender string, at time.Time) *Loan {
	return &Loan{SessionKey: sessionKey, Lender: lender, StartedAt: at}
}

// Open reports whether the item has not been returned yet.
func (l *Loan) Open() bool { return l.EndedAt == nil }

// Persisted reports whether the loan has been assigned an id.
func (l *Loan) Persisted() bool { return l.ID != 0 }

// SetItem names the lent item.
func (l *Loan) SetItem(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty item name", ErrIncomplete)
	}
	l.Item = name
	return nil
}

// SetBorrower names who receives the item.
func (l *Loan) SetBorrower(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty borrower", ErrIncomplete)
	}
	l.Borrower = name
	return nil
}

// SetNotes replaces the free-form note.
func (l *Loan) SetNotes(notes string) {
	l.Notes = strings.TrimSpace(notes)
}

// Close marks the item as returned to acceptor.
func (l *Loan) Close(at time.Time, acceptor string) error {
	if !l.Open() {
		return ErrAlreadyClosed
	}
	at = at.UTC()
	l.EndedAt = &at
	l.Acceptor = acceptor
	return nil
}

// Validate checks that a draft is complete enough to be inserted.
func (l *Loan) Validate() error {
	switch {
	case l.Persisted():
		return fmt.Errorf("%w: already has id %d", ErrIncomplete, l.ID)
	case l.SessionKey == "":
		return fmt.Errorf("%w: missing session", ErrIncomplete)
	case l.Item == "":
		return fmt.Errorf("%w: missing item", ErrIncomplete)
	case l.Lender == "":
		return fmt.Errorf("%w: missing lender", ErrIncomplete)
	case l.Borrower == "":
		return fmt.Errorf("%w: missing borrower", ErrIncomplete)
	case l.StartedAt.IsZero():
		return fmt.Errorf("%w: missing start time", ErrIncomplete)
	}
	return nil
}

// Label renders the selection label offered to users, e.g. "Drill (#7)".
func (l *Loan) Label() string {
	return fmt.Sprintf("%s (#%d)", l.Item, l.ID)
}

var labelRe = regexp.MustCompile(`\(#(\d+)\)\s*$`)

// ParseLabel extracts the loan id from a label produced by Label.
func ParseLabel(label string) (int64, error) {
	m := labelRe.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedLabel, label)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedLabel, label)
	}
	return id, nil
}

// Filter selects loans by state.
type Filter int

const (
	FilterOpen Filter = iota
	FilterClosed
	FilterAll
)

// FilterFor maps pending/completed flags onto a Filter.
func FilterFor(pending, completed bool) (Filter, error) {
	switch {
	case pending && completed:
		return FilterAll, nil
	case pending:
		return FilterOpen, nil
	case completed:
		return FilterClosed, nil
	}
	return 0, errors.New("loan: filter needs pending or completed")
}

func (f Filter) String() string {
	switch f {
	case FilterOpen:
		return "open"
	case FilterClosed:
		return "closed"
	case FilterAll:
		return "all"
	}
	return "unknown"
}

// Match reports whether l belongs to the projection.
func (f Filter) Match(l Loan) bool {
	switch f {
	case FilterOpen:
		return l.Open()
	case FilterClosed:
		return !l.Open()
	}
	return true
}
