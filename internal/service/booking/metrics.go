package booking

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/Alijeyrad/wellness_intake/pkg/observability"
)

type metrics struct {
	submissions metric.Int64Counter
	duration    metric.Float64Histogram
	transitions metric.Int64Counter
	logins      metric.Int64Counter
}

func newMetrics() *metrics {
	meter := observability.Meter()

	submissions, _ := meter.Int64Counter(
		"intake_submissions_total",
		metric.WithDescription("Booking submissions by outcome"),
		metric.WithUnit("{submission}"),
	)
	duration, _ := meter.Float64Histogram(
		"intake_submission_duration_ms",
		metric.WithDescription("Time spent waiting on the booking service"),
		metric.WithUnit("ms"),
	)
	transitions, _ := meter.Int64Counter(
		"intake_step_transitions_total",
		metric.WithDescription("Workflow step changes by target step"),
	)
	logins, _ := meter.Int64Counter(
		"intake_logins_total",
		metric.WithDescription("Login attempts by result"),
	)

	return &metrics{
		submissions: submissions,
		duration:    duration,
		transitions: transitions,
		logins:      logins,
	}
}
