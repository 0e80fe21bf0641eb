package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"printshop-workflow/internal/models"
	"printshop-workflow/internal/telemetry"
)

// Policy constants. Enforced server-side against the service clock; these
// are not negotiable per call.
const (
	CodeLength  = 6
	Cooldown    = 2 * time.Minute
	Expiry      = 10 * time.Minute
	MaxAttempts = 3
)

var (
	// ErrCooldownActive: a code was generated too recently to resend.
	ErrCooldownActive = errors.New("otp cooldown active")

	// ErrNotFound: no challenge exists for the job.
	ErrNotFound = errors.New("no otp challenge for job")

	// ErrExpired: the challenge aged out; a resend is required.
	ErrExpired = errors.New("otp expired")

	// ErrTooManyAttempts: verification is locked until a new code is
	// generated.
	ErrTooManyAttempts = errors.New("too many otp attempts")

	// ErrInvalidCode: the entered code did not match.
	ErrInvalidCode = errors.New("invalid otp code")

	// ErrDispatchFailed: the code is stored and valid but the message could
	// not be queued; the caller should retry the send without regenerating.
	ErrDispatchFailed = errors.New("otp stored but dispatch failed")

	// ErrRateLimited: too many sends for this phone number.
	ErrRateLimited = errors.New("otp send rate limited")
)

// Store is the slice of the job store the OTP service needs.
type Store interface {
	GetJob(ctx context.Context, id int64) (models.Job, error)
	SetOTPChallenge(ctx context.Context, id int64, code string, generatedAt, notBefore time.Time) (bool, error)
	IncrementOTPAttempts(ctx context.Context, id int64) error
	ConsumeOTP(ctx context.Context, id int64, code string) (bool, error)
}

// Sender queues the code for delivery over the messaging channel.
type Sender interface {
	EnqueueOTP(ctx context.Context, job models.Job, code string) error
}

// Limiter throttles sends per phone number.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, float64, error)
}

// Service owns challenge generation, expiry, and attempt limiting — the
// security gate on OTP-gated handoffs.
type Service struct {
	store   Store
	sender  Sender
	limiter Limiter
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(store Store, sender Sender, limiter Limiter, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		sender:  sender,
		limiter: limiter,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GenerateAndSend creates a fresh challenge for the job and queues it for
// dispatch. The store write and the dispatch are deliberately not atomic: a
// stored code with a failed dispatch stays valid, and the caller is told to
// retry the send rather than regenerate.
func (s *Service) GenerateAndSend(ctx context.Context, jobID int64) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(ctx, "otp:rl:"+job.Phone)
		if err != nil {
			s.log.Warn().Err(err).Msg("otp rate limiter unavailable")
		} else if !allowed {
			telemetry.RateLimitRejects.Inc()
			return ErrRateLimited
		}
	}

	code, err := generateCode(CodeLength)
	if err != nil {
		return fmt.Errorf("generate otp code: %w", err)
	}

	now := s.now()
	stored, err := s.store.SetOTPChallenge(ctx, jobID, code, now, now.Add(-Cooldown))
	if err != nil {
		return err
	}
	if !stored {
		return ErrCooldownActive
	}
	telemetry.OTPSent.Inc()

	if err := s.sender.EnqueueOTP(ctx, job, code); err != nil {
		s.log.Error().Err(err).Int64("job_id", jobID).Msg("queue otp message")
		return ErrDispatchFailed
	}
	s.log.Info().Int64("job_id", jobID).Msg("otp challenge sent")
	return nil
}

// Resend re-queues the currently stored code without resetting the
// challenge. Used when dispatch failed after a successful store write.
func (s *Service) Resend(ctx context.Context, jobID int64) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.OTPCode == nil || job.OTPGeneratedAt == nil {
		return ErrNotFound
	}
	if s.now().Sub(*job.OTPGeneratedAt) > Expiry {
		return ErrExpired
	}
	if err := s.sender.EnqueueOTP(ctx, job, *job.OTPCode); err != nil {
		return ErrDispatchFailed
	}
	return nil
}

// Verify checks the entered code against the stored challenge. On success the
// secret is consumed and the caller proceeds with the gated workflow advance.
func (s *Service) Verify(ctx context.Context, jobID int64, entered string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.OTPCode == nil || job.OTPGeneratedAt == nil {
		return ErrNotFound
	}
	if job.OTPAttempts >= MaxAttempts {
		telemetry.OTPRejected.Inc()
		return ErrTooManyAttempts
	}
	if s.now().Sub(*job.OTPGeneratedAt) > Expiry {
		telemetry.OTPRejected.Inc()
		return ErrExpired
	}

	entered = strings.Join(strings.Fields(entered), "")
	if entered != *job.OTPCode {
		if err := s.store.IncrementOTPAttempts(ctx, jobID); err != nil {
			s.log.Error().Err(err).Int64("job_id", jobID).Msg("increment otp attempts")
		}
		telemetry.OTPRejected.Inc()
		return ErrInvalidCode
	}

	consumed, err := s.store.ConsumeOTP(ctx, jobID, entered)
	if err != nil {
		return err
	}
	if !consumed {
		// Another verification consumed the code first.
		return ErrNotFound
	}
	telemetry.OTPVerified.Inc()
	s.log.Info().Int64("job_id", jobID).Msg("otp verified")
	return nil
}

// generateCode returns a uniformly random fixed-length numeric string.
func generateCode(length int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
