package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ResetStuckProcessing rolls items left in processing states back to the
// start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseClauses, inClause, args := rollbackClauses()
	args = append([]any{}, args...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, processingArgs()...)

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_items
         SET status = CASE status `+caseClauses+` ELSE status END,
             progress_stage = 'Reset from stuck processing',
             progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+inClause+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing rolls items whose heartbeats expired back to the
// start of their current stage.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	caseClauses, inClause, args := rollbackClauses()
	args = append([]any{}, args...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, processingArgs()...)
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_items
         SET status = CASE status `+caseClauses+` ELSE status END,
             progress_stage = 'Reclaimed from stale processing',
             progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+inClause+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed or review items back to pending for reprocessing.
// With no ids every failed item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE queue_items
            SET status = ?, progress_stage = 'Retry requested',
                progress_message = NULL, error_message = NULL,
                needs_review = 0, review_reason = NULL, updated_at = ?
            WHERE status IN (?, ?)`,
			StatusPending,
			now,
			StatusFailed,
			StatusReview,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+4)
	args = append(args, StatusPending, now, StatusFailed, StatusReview)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE queue_items
        SET status = ?, progress_stage = 'Retry requested',
            progress_message = NULL, error_message = NULL,
            needs_review = 0, review_reason = NULL, updated_at = ?
        WHERE status IN (?, ?) AND id IN (` + placeholders + `)`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}

// rollbackClauses builds the CASE/IN fragments covering every processing
// status from stageRollbackTransitions.
func rollbackClauses() (string, string, []any) {
	var caseParts []string
	args := make([]any, 0, len(stageRollbackTransitions)*2)
	for _, tr := range stageRollbackTransitions {
		caseParts = append(caseParts, "WHEN ? THEN ?")
		args = append(args, tr.from, tr.to)
	}
	return strings.Join(caseParts, " "), makePlaceholders(len(stageRollbackTransitions)), args
}

func processingArgs() []any {
	args := make([]any, 0, len(stageRollbackTransitions))
	for _, tr := range stageRollbackTransitions {
		args = append(args, tr.from)
	}
	return args
}
