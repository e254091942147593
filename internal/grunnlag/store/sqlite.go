package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
	txcontext "grunnlag/pkg/platform/tx"
)

// SQLiteLedger is the embedded single-node ledger. SQLite runs one writer at a
// time, so the single INSERT ... SELECT MAX + 1 statement is already atomic.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger creates a ledger over db.
func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

const sqliteAppendSQL = `
	INSERT INTO fact_event (
		fact_id, case_id, person_id, fact_type, periodized,
		fact_payload, source_payload, sequence_number, created_at
	)
	SELECT ?, ?, ?, ?, ?, ?, ?, COALESCE(MAX(sequence_number), 0) + 1, ?
	FROM fact_event
	WHERE case_id = ?
	RETURNING sequence_number
`

// Append writes fact as the next event of caseID and returns its sequence number.
func (l *SQLiteLedger) Append(ctx context.Context, caseID domain.CaseID, fact models.Fact) (int64, error) {
	enc, err := encodeFact(fact)
	if err != nil {
		return 0, err
	}

	var seq int64
	err = txcontext.Executor(ctx, l.db).QueryRowContext(ctx, sqliteAppendSQL,
		fact.ID.String(),
		int64(caseID),
		enc.person,
		string(fact.Type),
		enc.periodized,
		string(enc.fact),
		string(enc.source),
		time.Now().UTC().UnixMilli(),
		int64(caseID),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("append fact %s to case %s: %w", fact.ID, caseID, classifySQLite(err))
	}
	return seq, nil
}

const sqliteCurrentSQL = `
	SELECT e.sequence_number, e.fact_payload, e.source_payload
	FROM fact_event e
	WHERE e.case_id = ?
	  AND (e.periodized = 1 OR NOT EXISTS (
		SELECT 1 FROM fact_event newer
		WHERE newer.case_id = e.case_id
		  AND newer.fact_type = e.fact_type
		  AND newer.person_id IS e.person_id
		  AND newer.periodized = 0
		  AND newer.sequence_number > e.sequence_number
	  ))
	ORDER BY e.sequence_number
`

// CurrentEventsFor returns the rows of caseID that make up its current view.
func (l *SQLiteLedger) CurrentEventsFor(ctx context.Context, caseID domain.CaseID) ([]models.FactEvent, error) {
	rows, err := txcontext.Executor(ctx, l.db).QueryContext(ctx, sqliteCurrentSQL, int64(caseID))
	if err != nil {
		return nil, fmt.Errorf("query current events for case %s: %w", caseID, classifySQLite(err))
	}
	return scanEvents(rows, caseID)
}

// EventsFor returns the full history of caseID, optionally restricted to types.
func (l *SQLiteLedger) EventsFor(ctx context.Context, caseID domain.CaseID, types ...models.FactType) ([]models.FactEvent, error) {
	query := `SELECT sequence_number, fact_payload, source_payload FROM fact_event WHERE case_id = ?`
	args := []any{int64(caseID)}
	if len(types) > 0 {
		query += ` AND fact_type IN (?` + strings.Repeat(`, ?`, len(types)-1) + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	query += ` ORDER BY sequence_number`

	rows, err := txcontext.Executor(ctx, l.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events for case %s: %w", caseID, classifySQLite(err))
	}
	return scanEvents(rows, caseID)
}

// LatestSequence returns the highest sequence number of caseID, or 0.
func (l *SQLiteLedger) LatestSequence(ctx context.Context, caseID domain.CaseID) (int64, error) {
	var seq int64
	err := txcontext.Executor(ctx, l.db).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM fact_event WHERE case_id = ?`,
		int64(caseID),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query latest sequence for case %s: %w", caseID, classifySQLite(err))
	}
	return seq, nil
}

func classifySQLite(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}
