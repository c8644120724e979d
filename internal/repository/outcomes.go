package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmoiron/sqlx"
)

// OutcomesRepository is the audit trail of dispatched recipients.
type OutcomesRepository interface {
	InsertBatch(ctx context.Context, res model.BatchResult) error
	List(ctx context.Context, status model.OutcomeStatus, limit, offset int) ([]model.OutcomeRow, error)
}

// OutcomesRepositoryImpl works on both MySQL and ClickHouse; the SQL below sticks to
// the subset both dialects accept.
type OutcomesRepositoryImpl struct {
	db *sqlx.DB
}

func NewOutcomesRepository(db *sqlx.DB) *OutcomesRepositoryImpl {
	return &OutcomesRepositoryImpl{db: db}
}

func (r *OutcomesRepositoryImpl) Name() string { return "sql:" + r.db.DriverName() }

// Record satisfies report.Sink.
func (r *OutcomesRepositoryImpl) Record(ctx context.Context, res model.BatchResult) error {
	return r.InsertBatch(ctx, res)
}

// InsertBatch writes every outcome of res in one transaction through a prepared statement.
func (r *OutcomesRepositoryImpl) InsertBatch(ctx context.Context, res model.BatchResult) error {
	if len(res.Outcomes) == 0 {
		return nil
	}
	const q = `
		INSERT INTO dispatch_outcomes
		    (batch_id, seq, recipient, address, status, failure_reason, created_at)
		VALUES
		    (?,        ?,   ?,         ?,       ?,      ?,              ?)
	`
	at := res.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range res.Outcomes {
		if _, err := stmt.ExecContext(ctx,
			res.ID, i, o.Recipient, o.Address, o.Status.String(), o.FailureReason, at.UTC(),
		); err != nil {
			return fmt.Errorf("insert outcome %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// List returns the most recent outcomes, newest batch first.
func (r *OutcomesRepositoryImpl) List(ctx context.Context, status model.OutcomeStatus, limit, offset int) ([]model.OutcomeRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT batch_id, seq, recipient, address, status, failure_reason, created_at
		FROM dispatch_outcomes
	`
	args := []any{}

	if status != "" {
		q += " WHERE status = ?"
		args = append(args, status.String())
	}

	q += " ORDER BY created_at DESC, batch_id DESC, seq ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.OutcomeRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
