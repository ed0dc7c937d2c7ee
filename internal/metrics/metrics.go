package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_triggered_total",
			Help: "Total email events scheduled by trigger type",
		},
		[]string{"trigger_type"},
	)

	EmailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
		[]string{"trigger_type"},
	)

	EmailFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total failed emails",
		},
		[]string{"trigger_type", "reason"},
	)

	EmailsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_cancelled_total",
			Help: "Total pending emails cancelled",
		},
	)

	DispatchCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_cycle_duration_seconds",
			Help:    "Duration of one dispatch cycle",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Failure reasons.
const (
	ReasonTemplateMissing = "template_missing"
	ReasonRender          = "render"
	ReasonTransport       = "transport"
)

func Init() {
	prometheus.MustRegister(EmailsTriggered)
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(EmailsCancelled)
	prometheus.MustRegister(DispatchCycleDuration)
}
