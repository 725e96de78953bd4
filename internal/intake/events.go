package intake

import (
	"context"
	"time"
)

type EventType string

const (
	EventStepChanged        EventType = "step-changed"
	EventNavigatedToSuccess EventType = "navigated-to-success"
	EventNavigatedToFailure EventType = "navigated-to-failure"
)

// Recipient is who outcome notifications go to.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Event struct {
	Type              EventType   `json:"type"`
	SessionID         string      `json:"session_id"`
	From              *Step       `json:"from,omitempty"`
	To                *Step       `json:"to,omitempty"`
	BookingRef        string      `json:"booking_ref,omitempty"`
	FailureKind       FailureKind `json:"failure_kind,omitempty"`
	RedirectURL       string      `json:"redirect_url,omitempty"`
	ExportArtifactURL string      `json:"export_artifact_url,omitempty"`
	CompanyName       string      `json:"company_name,omitempty"`
	OfficeName        string      `json:"office_name,omitempty"`
	AppointmentDate   string      `json:"appointment_date,omitempty"`
	Recipient         *Recipient  `json:"recipient,omitempty"`
	OccurredAt        time.Time   `json:"occurred_at"`
}

// EventSink receives step and outcome events.
type EventSink interface {
	Publish(ctx context.Context, e Event) error
}

type NopEvents struct{}

func (NopEvents) Publish(context.Context, Event) error { return nil }
