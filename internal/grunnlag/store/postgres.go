package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
	txcontext "grunnlag/pkg/platform/tx"
)

// PostgresLedger is the production ledger. Appends to one case serialize on a
// transaction-scoped advisory lock keyed by the case id; different cases never
// contend.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a ledger over db.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const pgAppendSQL = `
	INSERT INTO fact_event (
		fact_id, case_id, person_id, fact_type, periodized,
		fact_payload, source_payload, sequence_number, created_at
	)
	SELECT $2::uuid, $1::bigint, $3::text, $4::text, $5::boolean, $6::jsonb, $7::jsonb,
	       COALESCE(MAX(sequence_number), 0) + 1, $8::timestamptz
	FROM fact_event
	WHERE case_id = $1::bigint
	RETURNING sequence_number
`

// Append writes fact as the next event of caseID and returns its sequence number.
func (l *PostgresLedger) Append(ctx context.Context, caseID domain.CaseID, fact models.Fact) (int64, error) {
	enc, err := encodeFact(fact)
	if err != nil {
		return 0, err
	}

	var seq int64
	err = inTx(ctx, l.db, func(q txcontext.DBTX) error {
		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1::bigint)`, int64(caseID)); err != nil {
			return fmt.Errorf("lock case: %w", err)
		}
		return q.QueryRowContext(ctx, pgAppendSQL,
			int64(caseID),
			fact.ID.String(),
			enc.person,
			string(fact.Type),
			enc.periodized,
			enc.fact,
			enc.source,
			time.Now().UTC(),
		).Scan(&seq)
	})
	if err != nil {
		return 0, fmt.Errorf("append fact %s to case %s: %w", fact.ID, caseID, classifyPostgres(err))
	}
	return seq, nil
}

const pgCurrentSQL = `
	SELECT e.sequence_number, e.fact_payload, e.source_payload
	FROM fact_event e
	WHERE e.case_id = $1
	  AND (e.periodized OR NOT EXISTS (
		SELECT 1 FROM fact_event newer
		WHERE newer.case_id = e.case_id
		  AND newer.fact_type = e.fact_type
		  AND newer.person_id IS NOT DISTINCT FROM e.person_id
		  AND NOT newer.periodized
		  AND newer.sequence_number > e.sequence_number
	  ))
	ORDER BY e.sequence_number
`

// CurrentEventsFor returns the rows of caseID that make up its current view.
func (l *PostgresLedger) CurrentEventsFor(ctx context.Context, caseID domain.CaseID) ([]models.FactEvent, error) {
	rows, err := txcontext.Executor(ctx, l.db).QueryContext(ctx, pgCurrentSQL, int64(caseID))
	if err != nil {
		return nil, fmt.Errorf("query current events for case %s: %w", caseID, classifyPostgres(err))
	}
	return scanEvents(rows, caseID)
}

// EventsFor returns the full history of caseID, optionally restricted to types.
func (l *PostgresLedger) EventsFor(ctx context.Context, caseID domain.CaseID, types ...models.FactType) ([]models.FactEvent, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(types) == 0 {
		rows, err = txcontext.Executor(ctx, l.db).QueryContext(ctx, `
			SELECT sequence_number, fact_payload, source_payload
			FROM fact_event
			WHERE case_id = $1
			ORDER BY sequence_number`, int64(caseID))
	} else {
		rows, err = txcontext.Executor(ctx, l.db).QueryContext(ctx, `
			SELECT sequence_number, fact_payload, source_payload
			FROM fact_event
			WHERE case_id = $1 AND fact_type = ANY($2)
			ORDER BY sequence_number`, int64(caseID), pq.Array(typeStrings(types)))
	}
	if err != nil {
		return nil, fmt.Errorf("query events for case %s: %w", caseID, classifyPostgres(err))
	}
	return scanEvents(rows, caseID)
}

// LatestSequence returns the highest sequence number of caseID, or 0.
func (l *PostgresLedger) LatestSequence(ctx context.Context, caseID domain.CaseID) (int64, error) {
	var seq int64
	err := txcontext.Executor(ctx, l.db).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM fact_event WHERE case_id = $1`,
		int64(caseID),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query latest sequence for case %s: %w", caseID, classifyPostgres(err))
	}
	return seq, nil
}

// classifyPostgres tags driver errors with the sentinel callers branch on.
func classifyPostgres(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			pgErr.Code == "53300", // too many connections
			pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
		}
		return err
	}

	var (
		connErr *pgconn.ConnectError
		netErr  net.Error
	)
	if errors.As(err, &connErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}
