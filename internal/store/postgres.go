package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"printshop-workflow/internal/models"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// Store wraps pgxpool for Postgres persistence. Every mutation of workflow
// fields is a single conditional UPDATE; callers inspect the affected flag
// instead of re-checking state in application code.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const jobColumns = `job_id, job_card_no, customer_name, phone, area, urgent,
	cost, advance, mode_of_payment, status, delivery_mode, needs_fixing,
	assigned_to, assigned_role, design_url, print_file_url,
	otp_code, otp_verified, otp_generated_at, otp_attempts,
	created_at, updated_at`

// CreateJobParams collects intake inputs.
type CreateJobParams struct {
	JobCardNo    string
	CustomerName string
	Phone        string
	Area         string
	Urgent       bool
	Cost         float64
	Advance      float64
	DeliveryMode string
	NeedsFixing  bool
	Items        []models.JobItem
}

// CreateJob inserts a job row plus its line items. New jobs start in DESIGN
// with assigned_role attendant until a designer claims them.
func (s *Store) CreateJob(ctx context.Context, p CreateJobParams) (models.Job, error) {
	if p.DeliveryMode == "" {
		p.DeliveryMode = models.DeliveryOffice
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Job{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	var id int64
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO jobs (job_card_no, customer_name, phone, area, urgent,
			cost, advance, status, delivery_mode, needs_fixing, assigned_role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING job_id, created_at
	`, p.JobCardNo, p.CustomerName, p.Phone, p.Area, p.Urgent,
		p.Cost, p.Advance, models.StatusDesign, p.DeliveryMode, p.NeedsFixing,
		models.RoleAttendant).Scan(&id, &createdAt)
	if err != nil {
		return models.Job{}, fmt.Errorf("insert job: %w", err)
	}

	for i, item := range p.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO job_items (job_id, position, job_type, description, size, quantity, material, cost)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, id, i, item.JobType, item.Description, item.Size, item.Quantity, item.Material, item.Cost)
		if err != nil {
			return models.Job{}, fmt.Errorf("insert job item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Job{}, fmt.Errorf("commit: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by id, without line items.
func (s *Store) GetJob(ctx context.Context, id int64) (models.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, ErrJobNotFound
	}
	return job, err
}

// GetJobWithItems fetches a job and its line items.
func (s *Store) GetJobWithItems(ctx context.Context, id int64) (models.Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return models.Job{}, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, position, job_type, description, size, quantity, material, cost
		FROM job_items WHERE job_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return models.Job{}, fmt.Errorf("query job items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it models.JobItem
		if err := rows.Scan(&it.ID, &it.JobID, &it.Position, &it.JobType, &it.Description, &it.Size, &it.Quantity, &it.Material, &it.Cost); err != nil {
			return models.Job{}, fmt.Errorf("scan job item: %w", err)
		}
		job.Items = append(job.Items, it)
	}
	return job, rows.Err()
}

// PoolJobs returns unassigned jobs in the given statuses, urgent first.
func (s *Store) PoolJobs(ctx context.Context, statuses []models.Status) ([]models.Job, error) {
	vals := make([]string, 0, len(statuses))
	for _, st := range statuses {
		vals = append(vals, string(st))
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = ANY($1) AND assigned_to IS NULL
		ORDER BY urgent DESC, created_at ASC
	`, vals)
	if err != nil {
		return nil, fmt.Errorf("query pool: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ActiveJob returns the worker's current non-completed job for a role, if any.
func (s *Store) ActiveJob(ctx context.Context, workerID string, role models.Role) (models.Job, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE assigned_to = $1 AND assigned_role = $2 AND status != $3
		LIMIT 1
	`, workerID, string(role), models.StatusCompleted)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, err
	}
	return job, true, nil
}

// ClaimJob assigns a pooled job to a worker. The WHERE clause is the whole
// concurrency story: two racing claims resolve to exactly one affected row.
func (s *Store) ClaimJob(ctx context.Context, id int64, expected, claimTo models.Status, workerID string, role models.Role) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $4, assigned_to = $2, assigned_role = $3, updated_at = NOW()
		WHERE job_id = $1 AND status = $5 AND assigned_to IS NULL
	`, id, workerID, string(role), string(claimTo), string(expected))
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AdvancePatch describes the effects of a stage handoff applied in one
// conditional write.
type AdvancePatch struct {
	NextStatus        models.Status
	NextRole          *models.Role // nil for the terminal state
	WorkerID          string       // when set, the job must still be held by this worker
	CopyDesignToPrint bool
	SettleAdvance     bool
	ClearOTP          bool
}

// AdvanceJob moves a job out of fromStatus. Zero rows affected means another
// process already moved it; the caller must re-fetch and re-decide.
func (s *Store) AdvanceJob(ctx context.Context, id int64, from models.Status, patch AdvancePatch) (bool, error) {
	var nextRole *string
	if patch.NextRole != nil {
		r := string(*patch.NextRole)
		nextRole = &r
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status = $2,
			assigned_to = NULL,
			assigned_role = $3,
			print_file_url = CASE WHEN $4 THEN design_url ELSE print_file_url END,
			advance = CASE WHEN $5 THEN cost ELSE advance END,
			otp_code = CASE WHEN $6 THEN NULL ELSE otp_code END,
			otp_verified = CASE WHEN $6 THEN FALSE ELSE otp_verified END,
			otp_generated_at = CASE WHEN $6 THEN NULL ELSE otp_generated_at END,
			otp_attempts = CASE WHEN $6 THEN 0 ELSE otp_attempts END,
			updated_at = NOW()
		WHERE job_id = $1 AND status = $7 AND ($8 = '' OR assigned_to = $8)
	`, id, string(patch.NextStatus), nextRole,
		patch.CopyDesignToPrint, patch.SettleAdvance, patch.ClearOTP,
		string(from), patch.WorkerID)
	if err != nil {
		return false, fmt.Errorf("advance job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReassignJob sends a job back to a specific worker (rework path).
func (s *Store) ReassignJob(ctx context.Context, id int64, from, to models.Status, workerID *string, role models.Role) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, assigned_to = $3, assigned_role = $4, updated_at = NOW()
		WHERE job_id = $1 AND status = $5
	`, id, string(to), workerID, string(role), string(from))
	if err != nil {
		return false, fmt.Errorf("reassign job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetPaymentMode records the payment mode while the job is held in BILLING.
func (s *Store) SetPaymentMode(ctx context.Context, id int64, mode, workerID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET mode_of_payment = $2, updated_at = NOW()
		WHERE job_id = $1 AND status = $3 AND assigned_to = $4
	`, id, mode, models.StatusBilling, workerID)
	if err != nil {
		return false, fmt.Errorf("set payment mode: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AppendDesignURLs joins uploaded artifact URLs onto design_url while the
// designer still holds the job.
func (s *Store) AppendDesignURLs(ctx context.Context, id int64, urls string, workerID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			design_url = CASE
				WHEN design_url IS NULL OR design_url = '' THEN $2
				ELSE design_url || ',' || $2
			END,
			updated_at = NOW()
		WHERE job_id = $1 AND status = $3 AND assigned_to = $4
	`, id, urls, models.StatusDesign, workerID)
	if err != nil {
		return false, fmt.Errorf("append design urls: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetOTPChallenge stores a fresh challenge unless one was generated after
// notBefore (the cooldown window). Timestamps come from the service clock so
// fakes and Postgres agree on who is authoritative.
func (s *Store) SetOTPChallenge(ctx context.Context, id int64, code string, generatedAt, notBefore time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			otp_code = $2, otp_verified = FALSE, otp_generated_at = $3,
			otp_attempts = 0, updated_at = NOW()
		WHERE job_id = $1 AND (otp_generated_at IS NULL OR otp_generated_at <= $4)
	`, id, code, generatedAt, notBefore)
	if err != nil {
		return false, fmt.Errorf("set otp challenge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementOTPAttempts bumps the failed-attempt counter.
func (s *Store) IncrementOTPAttempts(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET otp_attempts = otp_attempts + 1, updated_at = NOW()
		WHERE job_id = $1
	`, id)
	return err
}

// ConsumeOTP marks a challenge verified and clears the secret, conditional on
// the stored code still matching.
func (s *Store) ConsumeOTP(ctx context.Context, id int64, code string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET otp_verified = TRUE, otp_code = NULL, updated_at = NOW()
		WHERE job_id = $1 AND otp_code = $2 AND NOT otp_verified
	`, id, code)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func collectJobs(rows pgx.Rows) ([]models.Job, error) {
	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (models.Job, error) {
	var job models.Job
	var payMode, assignedTo, assignedRole, designURL, printURL, otpCode pgtype.Text
	var otpAt pgtype.Timestamptz

	err := row.Scan(&job.ID, &job.JobCardNo, &job.CustomerName, &job.Phone, &job.Area, &job.Urgent,
		&job.Cost, &job.Advance, &payMode, &job.Status, &job.DeliveryMode, &job.NeedsFixing,
		&assignedTo, &assignedRole, &designURL, &printURL,
		&otpCode, &job.OTPVerified, &otpAt, &job.OTPAttempts,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return models.Job{}, err
	}

	job.ModeOfPayment = textPtr(payMode)
	job.AssignedTo = textPtr(assignedTo)
	if assignedRole.Valid {
		r := models.Role(assignedRole.String)
		job.AssignedRole = &r
	}
	job.DesignURL = textPtr(designURL)
	job.PrintFileURL = textPtr(printURL)
	job.OTPCode = textPtr(otpCode)
	if otpAt.Valid {
		t := otpAt.Time
		job.OTPGeneratedAt = &t
	}
	return job, nil
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}
