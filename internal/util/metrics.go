package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QRGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qr_generated_total",
		Help: "Total number of QR codes generated",
	}, []string{"module"})

	QRScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qr_scanned_total",
		Help: "Total number of QR scans recorded",
	})

	QRHistorySeededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qr_history_seeded_total",
		Help: "Number of times an empty QR history was seeded with dummy entries",
	})

	QRRenderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qr_render_latency_seconds",
		Help:    "Latency of QR image rendering",
		Buckets: prometheus.DefBuckets,
	}, []string{"renderer"})

	QRRenderFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qr_render_failed_total",
		Help: "Total number of failed calls to the external QR render endpoint",
	})

	StorageConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_conflicts_total",
		Help: "Compare-and-swap conflicts observed by the kv layer",
	}, []string{"key"})

	StorageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_errors_total",
		Help: "Storage operations that failed",
	}, []string{"op"})

	AuthAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Authentication operations by source and outcome",
	}, []string{"op", "source", "outcome"})

	AuthFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_fallback_total",
		Help: "Operations served by the local fallback after a remote error",
	}, []string{"op", "reason"})

	AuthDemoOTPBypassTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_demo_otp_bypass_total",
		Help: "OTP verifications accepted through the universal demo code",
	})

	OTPSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otp_sent_total",
		Help: "Total number of OTPs issued",
	})

	FarmerLoginStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farmer_login_steps_total",
		Help: "Farmer login wizard step submissions",
	}, []string{"step", "outcome"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Domain events published",
	}, []string{"type"})

	EventsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_processed_total",
		Help: "Domain events processed by the worker",
	}, []string{"type"})

	HousekeepingPurgedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housekeeping_purged_total",
		Help: "Expired records removed by the housekeeping job",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
