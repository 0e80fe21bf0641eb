package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ClaimsTotal       = prometheus.NewCounter(prometheus.CounterOpts{Name: "workflow_claims_total", Help: "Jobs claimed by workers"})
	ClaimConflicts    = prometheus.NewCounter(prometheus.CounterOpts{Name: "workflow_claim_conflicts_total", Help: "Claims lost to a concurrent worker"})
	AdvancesTotal     = prometheus.NewCounter(prometheus.CounterOpts{Name: "workflow_advances_total", Help: "Jobs advanced to the next stage"})
	StaleAdvances     = prometheus.NewCounter(prometheus.CounterOpts{Name: "workflow_stale_advances_total", Help: "Advances rejected by the optimistic guard"})
	ReworksTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "workflow_reworks_total", Help: "Jobs sent back to design"})
	CompletionsTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "workflow_completions_total", Help: "Jobs reaching COMPLETED"})
	OTPSent           = prometheus.NewCounter(prometheus.CounterOpts{Name: "otp_sent_total", Help: "OTP challenges generated and queued for dispatch"})
	OTPVerified       = prometheus.NewCounter(prometheus.CounterOpts{Name: "otp_verified_total", Help: "OTP challenges verified"})
	OTPRejected       = prometheus.NewCounter(prometheus.CounterOpts{Name: "otp_rejected_total", Help: "OTP verifications rejected"})
	RateLimitRejects  = prometheus.NewCounter(prometheus.CounterOpts{Name: "otp_rate_limit_rejects_total", Help: "OTP sends rejected by the per-phone limiter"})
	NotifySent        = prometheus.NewCounter(prometheus.CounterOpts{Name: "notify_sent_total", Help: "Notifications dispatched successfully"})
	NotifyFailures    = prometheus.NewCounter(prometheus.CounterOpts{Name: "notify_failures_total", Help: "Notification dispatch failures that will retry"})
	NotifyDeadLetter  = prometheus.NewCounter(prometheus.CounterOpts{Name: "notify_dead_letter_total", Help: "Notifications moved to the DLQ"})
	NotifyQueueDepth  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "notify_queue_depth", Help: "Pending outbound notifications"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			ClaimsTotal,
			ClaimConflicts,
			AdvancesTotal,
			StaleAdvances,
			ReworksTotal,
			CompletionsTotal,
			OTPSent,
			OTPVerified,
			OTPRejected,
			RateLimitRejects,
			NotifySent,
			NotifyFailures,
			NotifyDeadLetter,
			NotifyQueueDepth,
		)
	})
	return promhttp.Handler()
}
