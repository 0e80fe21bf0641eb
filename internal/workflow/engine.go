package workflow

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"printshop-workflow/internal/auth"
	"printshop-workflow/internal/models"
	"printshop-workflow/internal/store"
	"printshop-workflow/internal/telemetry"
)

// JobStore is the durable record of jobs. Mutations are conditional writes:
// false means the precondition no longer held, not a transport failure.
type JobStore interface {
	GetJob(ctx context.Context, id int64) (models.Job, error)
	PoolJobs(ctx context.Context, statuses []models.Status) ([]models.Job, error)
	ActiveJob(ctx context.Context, workerID string, role models.Role) (models.Job, bool, error)
	ClaimJob(ctx context.Context, id int64, expected, claimTo models.Status, workerID string, role models.Role) (bool, error)
	AdvanceJob(ctx context.Context, id int64, from models.Status, patch store.AdvancePatch) (bool, error)
	ReassignJob(ctx context.Context, id int64, from, to models.Status, workerID *string, role models.Role) (bool, error)
}

// LogStore records per-stage time-in/time-out audit entries.
type LogStore interface {
	AppendOpenLog(ctx context.Context, jobID int64, stage, workerID, workerName string, at time.Time) error
	AppendClosedLog(ctx context.Context, jobID int64, stage, workerID, workerName, notes string, at time.Time) error
	CloseOpenLog(ctx context.Context, jobID int64, stage, workerID string, at time.Time) (bool, error)
	LastWorkerForStage(ctx context.Context, jobID int64, stage string) (workerID, workerName string, ok bool, err error)
}

// Notifier queues outbound customer messages. Fire-and-forget: failures are
// logged, never allowed to roll back a state transition.
type Notifier interface {
	EnqueueThankYou(ctx context.Context, job models.Job) error
}

// Feed publishes "job changed" refresh hints for dashboards.
type Feed interface {
	Publish(ctx context.Context, jobID int64) error
}

// Engine is the workflow state machine. It is the sole writer of status,
// assignment, and OTP fields.
type Engine struct {
	jobs     JobStore
	logs     LogStore
	notifier Notifier
	feed     Feed
	log      zerolog.Logger
	now      func() time.Time
}

func NewEngine(jobs JobStore, logs LogStore, notifier Notifier, feed Feed, log zerolog.Logger) *Engine {
	return &Engine{
		jobs:     jobs,
		logs:     logs,
		notifier: notifier,
		feed:     feed,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the engine clock. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Pool lists the claimable/actionable jobs for the caller's role, urgent
// first.
func (e *Engine) Pool(ctx context.Context, id auth.Identity) ([]models.Job, error) {
	statuses, ok := poolStatuses[id.Role]
	if !ok {
		return nil, ErrWrongRole
	}
	return e.jobs.PoolJobs(ctx, statuses)
}

// Active returns the caller's current held job, if any.
func (e *Engine) Active(ctx context.Context, id auth.Identity) (models.Job, bool, error) {
	return e.jobs.ActiveJob(ctx, id.ID, id.Role)
}

// Claim atomically takes ownership of a pooled job for the caller. Exactly
// one of two concurrent claims succeeds; the loser gets ErrAlreadyTaken and
// must re-fetch the pool.
func (e *Engine) Claim(ctx context.Context, id auth.Identity, jobID int64) (models.Job, error) {
	expected, ok := claimableStatus[id.Role]
	if !ok {
		return models.Job{}, ErrWrongRole
	}
	rule := stageRules[expected]

	// At most one active job per worker per role. Rejected, not queued.
	if _, busy, err := e.jobs.ActiveJob(ctx, id.ID, id.Role); err != nil {
		return models.Job{}, err
	} else if busy {
		return models.Job{}, ErrGuardViolation
	}

	affected, err := e.jobs.ClaimJob(ctx, jobID, expected, rule.ClaimTo, id.ID, id.Role)
	if err != nil {
		return models.Job{}, err
	}
	if !affected {
		telemetry.ClaimConflicts.Inc()
		return models.Job{}, ErrAlreadyTaken
	}

	if err := e.logs.AppendOpenLog(ctx, jobID, rule.LogStage, id.ID, id.Name, e.now()); err != nil {
		e.log.Error().Err(err).Int64("job_id", jobID).Msg("open workflow log")
	}
	telemetry.ClaimsTotal.Inc()
	e.publish(ctx, jobID)
	e.log.Info().Int64("job_id", jobID).Str("worker", id.ID).Str("role", string(id.Role)).Msg("job claimed")

	return e.jobs.GetJob(ctx, jobID)
}

// Advance moves a held job to its next stage: validates preconditions,
// writes the transition conditionally, releases the lock, and closes the
// stage log entry. OTP-gated stages require a verified challenge first.
func (e *Engine) Advance(ctx context.Context, id auth.Identity, jobID int64) (models.Job, error) {
	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return models.Job{}, err
	}

	rule, ok := stageRules[job.Status]
	if !ok || rule.Next == nil {
		return models.Job{}, ErrInvalidStage
	}
	if rule.Owner != id.Role {
		return models.Job{}, ErrWrongRole
	}
	if job.AssignedTo != nil {
		if *job.AssignedTo != id.ID {
			return models.Job{}, ErrNotOwner
		}
	} else if rule.Claimable {
		// A pooled claimable job has no holder to release.
		return models.Job{}, ErrNotOwner
	}
	if rule.Precondition != nil {
		if err := rule.Precondition(job); err != nil {
			return models.Job{}, err
		}
	}
	if rule.NeedsOTP != nil && rule.NeedsOTP(job) && !job.OTPVerified {
		return models.Job{}, ErrOTPRequired
	}

	nextStatus, nextRole := rule.Next(job)
	patch := store.AdvancePatch{
		NextStatus:        nextStatus,
		CopyDesignToPrint: job.Status == models.StatusBilling,
		SettleAdvance:     nextStatus == models.StatusCompleted && job.Status == models.StatusDelivery,
		ClearOTP:          job.OTPVerified,
	}
	if nextRole != "" {
		patch.NextRole = &nextRole
	}
	if job.AssignedTo != nil {
		patch.WorkerID = id.ID
	}

	affected, err := e.jobs.AdvanceJob(ctx, jobID, job.Status, patch)
	if err != nil {
		return models.Job{}, err
	}
	if !affected {
		telemetry.StaleAdvances.Inc()
		return models.Job{}, ErrStaleState
	}

	now := e.now()
	if job.AssignedTo != nil {
		if _, err := e.logs.CloseOpenLog(ctx, jobID, rule.LogStage, id.ID, now); err != nil {
			e.log.Error().Err(err).Int64("job_id", jobID).Msg("close workflow log")
		}
	} else {
		notes := ""
		if job.Status == models.StatusWaitAttendant {
			notes = "Item picked up from office"
		}
		if err := e.logs.AppendClosedLog(ctx, jobID, rule.LogStage, id.ID, id.Name, notes, now); err != nil {
			e.log.Error().Err(err).Int64("job_id", jobID).Msg("append workflow log")
		}
	}

	telemetry.AdvancesTotal.Inc()
	if nextStatus == models.StatusCompleted {
		telemetry.CompletionsTotal.Inc()
		if err := e.notifier.EnqueueThankYou(ctx, job); err != nil {
			e.log.Warn().Err(err).Int64("job_id", jobID).Msg("queue thank-you message")
		}
	}
	e.publish(ctx, jobID)
	e.log.Info().
		Int64("job_id", jobID).
		Str("from", string(job.Status)).
		Str("to", string(nextStatus)).
		Str("worker", id.ID).
		Msg("job advanced")

	return e.jobs.GetJob(ctx, jobID)
}

// Rework sends a DESIGN_REVIEW job back to the designer who last worked it,
// recording the reason.
func (e *Engine) Rework(ctx context.Context, id auth.Identity, jobID int64, reason string) (models.Job, error) {
	if id.Role != models.RoleAttendant {
		return models.Job{}, ErrWrongRole
	}

	var designer *string
	workerID, _, found, err := e.logs.LastWorkerForStage(ctx, jobID, string(models.StatusDesign))
	if err != nil {
		return models.Job{}, err
	}
	if found && workerID != "" {
		designer = &workerID
	}

	affected, err := e.jobs.ReassignJob(ctx, jobID, models.StatusDesignReview, models.StatusDesign, designer, models.RoleDesigner)
	if err != nil {
		return models.Job{}, err
	}
	if !affected {
		return models.Job{}, ErrStaleState
	}

	if reason == "" {
		reason = "No reason provided"
	}
	if err := e.logs.AppendClosedLog(ctx, jobID, models.StageReworkRequested, id.ID, id.Name, reason, e.now()); err != nil {
		e.log.Error().Err(err).Int64("job_id", jobID).Msg("append rework log")
	}
	telemetry.ReworksTotal.Inc()
	e.publish(ctx, jobID)
	e.log.Info().Int64("job_id", jobID).Str("by", id.ID).Msg("rework requested")

	return e.jobs.GetJob(ctx, jobID)
}

func (e *Engine) publish(ctx context.Context, jobID int64) {
	if e.feed == nil {
		return
	}
	if err := e.feed.Publish(ctx, jobID); err != nil {
		e.log.Debug().Err(err).Int64("job_id", jobID).Msg("publish change hint")
	}
}
