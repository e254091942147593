// Package store provides the Fact Ledger: durable, append-only storage of fact
// events keyed by case with a gap-free per-case sequence number.
//
// Three implementations share one contract. Append assigns
// COALESCE(MAX(sequence_number), 0) + 1 in the same statement as the insert.
// CurrentEventsFor hides constant rows superseded by a later constant row for
// the same person and fact type; periodized rows always surface so that every
// interval reaches the projection. Rows are never updated or deleted.
//
// The SQL ledgers join a transaction found in the context (see pkg/platform/tx)
// so a batch of appends and its outbox row commit together.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	txcontext "grunnlag/pkg/platform/tx"
)

// inTx runs fn in the context's transaction, or in a new one committed on success.
func inTx(ctx context.Context, db *sql.DB, fn func(q txcontext.DBTX) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(tx)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows, caseID domain.CaseID) ([]models.FactEvent, error) {
	defer rows.Close()

	var out []models.FactEvent
	for rows.Next() {
		var (
			seq         int64
			factBytes   []byte
			sourceBytes []byte
		)
		if err := rows.Scan(&seq, &factBytes, &sourceBytes); err != nil {
			return nil, fmt.Errorf("scan fact event: %w", err)
		}
		ev, err := decodeEvent(caseID, seq, factBytes, sourceBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fact events: %w", err)
	}
	return out, nil
}
