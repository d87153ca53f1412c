package loan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/leihbot/core/logger"
)

const storeComponent = "service.loans"

// Store persists loans. All lookups are scoped to a session.
type Store interface {
	// Insert stores a complete draft and assigns its id.
	Insert(ctx context.Context, l *Loan) (int64, error)
	Get(ctx context.Context, sessionKey string, id int64) (*Loan, error)
	// Close sets end time and acceptor of an open loan.
	Close(ctx context.Context, sessionKey string, id int64, at time.Time, acceptor string) (*Loan, error)
	SetNotes(ctx context.Context, sessionKey string, id int64, notes string) (*Loan, error)
	Select(ctx context.Context, sessionKey string, f Filter) ([]Loan, error)
}

// SQLStore implements Store on top of sqlx for postgres and sqlite.
type SQLStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type loanRow struct {
	ID         int64          `db:"loan_id"`
	SessionKey string         `db:"session_id"`
	Item       string         `db:"loan_name"`
	Lender     string         `db:"lender"`
	Borrower   string         `db:"borrower"`
	StartedAt  time.Time      `db:"start_date"`
	EndedAt    sql.NullTime   `db:"end_date"`
	Acceptor   sql.NullString `db:"acceptor"`
	Notes      sql.NullString `db:"notes"`
}

func (r loanRow) toLoan() Loan {
	l := Loan{
		ID:         r.ID,
		SessionKey: r.SessionKey,
		Item:       r.Item,
		Lender:     r.Lender,
		Borrower:   r.Borrower,
		StartedAt:  r.StartedAt.UTC(),
		Acceptor:   r.Acceptor.String,
		Notes:      r.Notes.String,
	}
	if r.EndedAt.Valid {
		t := r.EndedAt.Time.UTC()
		l.EndedAt = &t
	}
	return l
}

const loanColumns = `loan_id, session_id, loan_name, lender, borrower, start_date, end_date, acceptor, notes`

// Insert stores l and sets l.ID.
func (s *SQLStore) Insert(ctx context.Context, l *Loan) (int64, error) {
	if l == nil {
		return 0, fmt.Errorf("%w: nil loan", ErrIncomplete)
	}
	if err := l.Validate(); err != nil {
		return 0, err
	}
	start := time.Now()
	q := s.db.Rebind(`INSERT INTO loans (session_id, loan_name, lender, borrower, start_date, notes)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING loan_id`)
	var id int64
	err := s.db.QueryRowxContext(ctx, q,
		l.SessionKey, l.Item, l.Lender, l.Borrower, l.StartedAt.UTC(), nullString(l.Notes),
	).Scan(&id)
	s.logOp(ctx, "loan.insert", start, err, slog.Int64("loan_id", id))
	if err != nil {
		return 0, fmt.Errorf("insert loan: %w", err)
	}
	l.ID = id
	return id, nil
}

// Get loads one loan of the session.
func (s *SQLStore) Get(ctx context.Context, sessionKey string, id int64) (*Loan, error) {
	return s.get(ctx, s.db, sessionKey, id)
}

func (s *SQLStore) get(ctx context.Context, q sqlx.QueryerContext, sessionKey string, id int64) (*Loan, error) {
	var row loanRow
	query := s.db.Rebind(`SELECT ` + loanColumns + ` FROM loans WHERE loan_id = ? AND session_id = ?`)
	if err := sqlx.GetContext(ctx, q, &row, query, id, sessionKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: #%d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get loan #%d: %w", id, err)
	}
	l := row.toLoan()
	return &l, nil
}

// Close returns an open loan. Closed loans are never updated again.
func (s *SQLStore) Close(ctx context.Context, sessionKey string, id int64, at time.Time, acceptor string) (*Loan, error) {
	start := time.Now()
	l, err := s.inTx(ctx, func(tx *sqlx.Tx) (*Loan, error) {
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE loans SET end_date = ?, acceptor = ? WHERE loan_id = ? AND session_id = ? AND end_date IS NULL`),
			at.UTC(), acceptor, id, sessionKey,
		)
		if err != nil {
			return nil, fmt.Errorf("close loan #%d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("close loan #%d: %w", id, err)
		}
		current, err := s.get(ctx, tx, sessionKey, id)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: #%d", ErrAlreadyClosed, id)
		}
		return current, nil
	})
	s.logOp(ctx, "loan.close", start, err, slog.Int64("loan_id", id))
	return l, err
}

// SetNotes replaces the note of a loan.
func (s *SQLStore) SetNotes(ctx context.Context, sessionKey string, id int64, notes string) (*Loan, error) {
	start := time.Now()
	l, err := s.inTx(ctx, func(tx *sqlx.Tx) (*Loan, error) {
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE loans SET notes = ? WHERE loan_id = ? AND session_id = ?`),
			nullString(notes), id, sessionKey,
		)
		if err != nil {
			return nil, fmt.Errorf("update notes #%d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, fmt.Errorf("%w: #%d", ErrNotFound, id)
		}
		return s.get(ctx, tx, sessionKey, id)
	})
	s.logOp(ctx, "loan.notes", start, err, slog.Int64("loan_id", id))
	return l, err
}

// Select lists loans of the session ordered by start time.
func (s *SQLStore) Select(ctx context.Context, sessionKey string, f Filter) ([]Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE session_id = ?`
	switch f {
	case FilterOpen:
		query += ` AND end_date IS NULL`
	case FilterClosed:
		query += ` AND end_date IS NOT NULL`
	}
	query += ` ORDER BY start_date, loan_id`

	start := time.Now()
	var rows []loanRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), sessionKey)
	s.logOp(ctx, "loan.select", start, err,
		slog.String("filter", f.String()),
		slog.Int("count", len(rows)),
	)
	if err != nil {
		return nil, fmt.Errorf("select loans: %w", err)
	}
	out := make([]Loan, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toLoan())
	}
	return out, nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) (*Loan, error)) (*Loan, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	l, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return l, nil
}

func (s *SQLStore) logOp(ctx context.Context, event string, start time.Time, err error, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}, extra...)
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Warn(ctx, storeComponent, event, attrs...)
		return
	}
	logger.Debug(ctx, storeComponent, event, attrs...)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
