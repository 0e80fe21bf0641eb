package workflow

import "errors"

// Precondition violations. None of these are retryable without a refresh;
// the caller re-fetches state and re-decides.
var (
	// ErrAlreadyTaken: the conditional claim write affected zero rows —
	// another worker won the race or the job left the pool.
	ErrAlreadyTaken = errors.New("job already taken")

	// ErrGuardViolation: the worker already holds an active job for this
	// role and must finish it before claiming another.
	ErrGuardViolation = errors.New("finish your current job first")

	// ErrStaleState: the job moved on since the caller last read it.
	ErrStaleState = errors.New("job state is stale")

	// ErrNotOwner: the caller does not hold the job it tried to advance.
	ErrNotOwner = errors.New("job is held by another worker")

	// ErrWrongRole: the caller's role does not own the job's current stage.
	ErrWrongRole = errors.New("stage belongs to a different role")

	// ErrInvalidStage: no transition is defined out of the current status.
	ErrInvalidStage = errors.New("no transition from this stage")

	// ErrMissingArtifact: a required upstream artifact (design files) is
	// absent.
	ErrMissingArtifact = errors.New("design files are missing")

	// ErrPaymentModeRequired: billing cannot hand off before recording how
	// the customer pays.
	ErrPaymentModeRequired = errors.New("payment mode is not set")

	// ErrOTPRequired: the handoff is OTP-gated and the customer has not
	// been verified.
	ErrOTPRequired = errors.New("customer otp not verified")
)
