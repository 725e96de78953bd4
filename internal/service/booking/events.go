package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alijeyrad/wellness_intake/internal/intake"
)

// DefaultSubjectPrefix roots every subject the intake flow publishes on.
const DefaultSubjectPrefix = "wellness"

// Subject returns the NATS subject for an event:
//
//	<prefix>.intake.step.<session>
//	<prefix>.intake.outcome.success.<session>
//	<prefix>.intake.outcome.failure.<session>
func Subject(prefix string, e intake.Event) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	switch e.Type {
	case intake.EventNavigatedToSuccess:
		return prefix + ".intake.outcome.success." + e.SessionID
	case intake.EventNavigatedToFailure:
		return prefix + ".intake.outcome.failure." + e.SessionID
	default:
		return prefix + ".intake.step." + e.SessionID
	}
}

// OutcomeSubjects matches every outcome event.
func OutcomeSubjects(prefix string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + ".intake.outcome.>"
}

// NatsEvents publishes intake events as JSON on NATS.
type NatsEvents struct {
	nc     *nats.Conn
	prefix string
}

func NewNatsEvents(nc *nats.Conn, prefix string) *NatsEvents {
	return &NatsEvents{nc: nc, prefix: strings.TrimSuffix(prefix, ".")}
}

func (n *NatsEvents) Publish(_ context.Context, e intake.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.nc.Publish(Subject(n.prefix, e), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// LogEvents only logs. Used when no broker is configured.
type LogEvents struct {
	logger *slog.Logger
}

func NewLogEvents(logger *slog.Logger) *LogEvents {
	return &LogEvents{logger: logger}
}

func (l *LogEvents) Publish(ctx context.Context, e intake.Event) error {
	attrs := []any{"type", e.Type, "session_id", e.SessionID}
	if e.To != nil {
		attrs = append(attrs, "to", e.To.String())
	}
	if e.BookingRef != "" {
		attrs = append(attrs, "booking_ref", e.BookingRef)
	}
	if e.FailureKind != "" {
		attrs = append(attrs, "failure_kind", e.FailureKind)
	}
	l.logger.InfoContext(ctx, "intake event", attrs...)
	return nil
}

// countingEvents records step transitions before handing events on.
type countingEvents struct {
	next        intake.EventSink
	transitions metric.Int64Counter
}

func (c *countingEvents) Publish(ctx context.Context, e intake.Event) error {
	if e.Type == intake.EventStepChanged && e.To != nil && c.transitions != nil {
		c.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", e.To.String())))
	}
	return c.next.Publish(ctx, e)
}
