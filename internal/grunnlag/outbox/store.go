// Package outbox makes publication durable. The aggregate writes one outbox
// row per change inside the append transaction; the Relay claims due rows and
// republishes the case's current projection, retrying with backoff.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/platform/sentinel"
	txcontext "grunnlag/pkg/platform/tx"
)

const aggregateType = "sak"

// claimLease hides a claimed row from other relays while it is in flight.
const claimLease = 2 * time.Minute

// Entry is a claimed outbox row.
type Entry struct {
	ID           uuid.UUID
	Notification models.Notification
	Attempts     int
	CreatedAt    time.Time
}

// Summary reports outbox depth.
type Summary struct {
	Pending         int
	Failed          int
	Dead            int
	Processed       int
	OldestPendingAt *time.Time
}

// PostgresStore persists outbox rows.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Enqueue writes n to the outbox. Inside a transaction in ctx the row commits
// or rolls back with the facts it announces.
func (s *PostgresStore) Enqueue(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	createdAt := n.EnqueuedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err = txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.New(),
		aggregateType,
		n.CaseID.String(),
		string(n.Kind),
		payload,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// Claim leases up to limit due rows, oldest first. Rows locked by a
// concurrent relay are skipped.
func (s *PostgresStore) Claim(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `
		UPDATE outbox
		SET next_attempt_at = $2
		WHERE id IN (
			SELECT id FROM outbox
			WHERE processed_at IS NULL
			  AND dead_at IS NULL
			  AND next_attempt_at <= $1
			ORDER BY created_at, id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, payload, attempts, created_at
	`
	rows, err := s.db.QueryContext(ctx, query, now, now.Add(claimLease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	defer rows.Close()

	var (
		entries []Entry
		corrupt []Entry
		causes  []error
	)
	for rows.Next() {
		var (
			e       Entry
			payload []byte
		)
		if err := rows.Scan(&e.ID, &payload, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Notification); err != nil {
			corrupt = append(corrupt, e)
			causes = append(causes, err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	rows.Close()

	// An undecodable payload can never succeed.
	for i, e := range corrupt {
		cause := fmt.Sprintf("decode payload: %v", causes[i])
		if err := s.MarkFailed(ctx, e.ID, e.Attempts+1, time.Time{}, now, cause); err != nil {
			return nil, errors.Join(fmt.Errorf("dead-letter outbox entry %s: %w", e.ID, err), causes[i])
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return entries, nil
}

// MarkProcessed records a successful publication.
func (s *PostgresStore) MarkProcessed(ctx context.Context, id uuid.UUID, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL`,
		id, now)
	if err != nil {
		return fmt.Errorf("mark outbox entry %s processed: %w", id, err)
	}
	return ensureOneRow(res, id)
}

// MarkFailed records a failed attempt. A zero retryAt dead-letters the row.
func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, retryAt time.Time, now time.Time, cause string) error {
	var (
		res sql.Result
		err error
	)
	if retryAt.IsZero() {
		res, err = s.db.ExecContext(ctx,
			`UPDATE outbox SET attempts = $2, last_error = $3, dead_at = $4
			 WHERE id = $1 AND processed_at IS NULL`,
			id, attempts, cause, now)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE outbox SET attempts = $2, last_error = $3, next_attempt_at = $4
			 WHERE id = $1 AND processed_at IS NULL`,
			id, attempts, cause, retryAt)
	}
	if err != nil {
		return fmt.Errorf("mark outbox entry %s failed: %w", id, err)
	}
	return ensureOneRow(res, id)
}

// Requeue revives dead rows so the relay tries them again.
func (s *PostgresStore) Requeue(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET dead_at = NULL, attempts = 0, next_attempt_at = $1
		 WHERE dead_at IS NOT NULL AND processed_at IS NULL`,
		now)
	if err != nil {
		return 0, fmt.Errorf("requeue dead outbox entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue dead outbox entries: %w", err)
	}
	return n, nil
}

// Summary counts rows per state.
func (s *PostgresStore) Summary(ctx context.Context) (Summary, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE processed_at IS NULL AND dead_at IS NULL AND attempts = 0),
			COUNT(*) FILTER (WHERE processed_at IS NULL AND dead_at IS NULL AND attempts > 0),
			COUNT(*) FILTER (WHERE dead_at IS NOT NULL),
			COUNT(*) FILTER (WHERE processed_at IS NOT NULL),
			MIN(created_at) FILTER (WHERE processed_at IS NULL AND dead_at IS NULL)
		FROM outbox
	`
	var (
		sum    Summary
		oldest sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&sum.Pending, &sum.Failed, &sum.Dead, &sum.Processed, &oldest)
	if err != nil {
		return Summary{}, fmt.Errorf("query outbox summary: %w", err)
	}
	if oldest.Valid {
		t := oldest.Time.UTC()
		sum.OldestPendingAt = &t
	}
	return sum, nil
}

func ensureOneRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("outbox entry %s rows affected: %w", id, err)
	}
	if n != 1 {
		return fmt.Errorf("outbox entry %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
