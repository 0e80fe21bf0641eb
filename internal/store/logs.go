package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"printshop-workflow/internal/models"
)

// AppendOpenLog opens a stage entry (time_out null). The partial unique index
// on (job_id, stage, worker_id) WHERE time_out IS NULL keeps at most one open
// entry per triple.
func (s *Store) AppendOpenLog(ctx context.Context, jobID int64, stage, workerID, workerName string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_workflow_logs (job_id, stage, worker_id, worker_name, time_in)
		VALUES ($1, $2, $3, $4, $5)
	`, jobID, stage, workerID, workerName, at)
	if err != nil {
		return fmt.Errorf("append open log: %w", err)
	}
	return nil
}

// AppendClosedLog records a point-in-time event (approvals, rework requests,
// pickup confirmations) with time_in = time_out.
func (s *Store) AppendClosedLog(ctx context.Context, jobID int64, stage, workerID, workerName, notes string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_workflow_logs (job_id, stage, worker_id, worker_name, notes, time_in, time_out)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, jobID, stage, workerID, workerName, notes, at)
	if err != nil {
		return fmt.Errorf("append closed log: %w", err)
	}
	return nil
}

// CloseOpenLog stamps time_out on the open entry for (job, stage). An empty
// workerID closes whoever's entry is open for the stage.
func (s *Store) CloseOpenLog(ctx context.Context, jobID int64, stage, workerID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE job_workflow_logs SET time_out = $4
		WHERE job_id = $1 AND stage = $2 AND ($3 = '' OR worker_id = $3) AND time_out IS NULL
	`, jobID, stage, workerID, at)
	if err != nil {
		return false, fmt.Errorf("close open log: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LastWorkerForStage returns the most recent worker who logged the stage.
// Used by rework to route a job back to its original designer.
func (s *Store) LastWorkerForStage(ctx context.Context, jobID int64, stage string) (workerID, workerName string, ok bool, err error) {
	var id, name pgtype.Text
	err = s.pool.QueryRow(ctx, `
		SELECT worker_id, worker_name FROM job_workflow_logs
		WHERE job_id = $1 AND stage = $2
		ORDER BY time_in DESC LIMIT 1
	`, jobID, stage).Scan(&id, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("last worker for stage: %w", err)
	}
	return id.String, name.String, true, nil
}

// ListLogs returns the full workflow history of a job, oldest first.
func (s *Store) ListLogs(ctx context.Context, jobID int64) ([]models.WorkflowLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, stage, worker_id, worker_name, notes, time_in, time_out
		FROM job_workflow_logs WHERE job_id = $1 ORDER BY time_in, id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var entries []models.WorkflowLogEntry
	for rows.Next() {
		var e models.WorkflowLogEntry
		var out pgtype.Timestamptz
		if err := rows.Scan(&e.ID, &e.JobID, &e.Stage, &e.WorkerID, &e.WorkerName, &e.Notes, &e.TimeIn, &out); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if out.Valid {
			t := out.Time
			e.TimeOut = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
