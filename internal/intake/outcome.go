package intake

import (
	"context"
	"fmt"
	"time"
)

// SubmissionSummary is what the thank-you page renders after a success.
type SubmissionSummary struct {
	BookingRef        string          `json:"booking_ref"`
	Status            string          `json:"status"`
	Applicants        ApplicantCounts `json:"applicants"`
	SubmittedAt       time.Time       `json:"submitted_at"`
	RequestDate       string          `json:"request_date,omitempty"`
	ExportArtifactURL string          `json:"export_artifact_url,omitempty"`
	CompanyName       string          `json:"company_name,omitempty"`
	OfficeName        string          `json:"office_name,omitempty"`
	AppointmentDate   string          `json:"appointment_date,omitempty"`
	CollectionMode    CollectionMode  `json:"collection_mode,omitempty"`
}

// FailureSnapshot holds exactly what was attempted so the failure page can
// re-render it and the user can retry with the same idempotency token.
type FailureSnapshot struct {
	ClientSessionID   string         `json:"client_session_id"`
	Draft             BookingDraft   `json:"draft"`
	Company           CompanyContext `json:"company"`
	Status            FailureKind    `json:"status"`
	ExportArtifactURL string         `json:"export_artifact_url,omitempty"`
	AttemptedAt       time.Time      `json:"attempted_at"`
}

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is returned to the caller once a submission has settled.
type Outcome struct {
	Status            OutcomeStatus `json:"status"`
	Step              Step          `json:"step"`
	Message           string        `json:"message"`
	BookingRef        string        `json:"booking_ref,omitempty"`
	FailureKind       FailureKind   `json:"failure_kind,omitempty"`
	ExportArtifactURL string        `json:"export_artifact_url,omitempty"`
	RedirectURL       string        `json:"redirect_url"`
	RedirectAfter     time.Duration `json:"-"`
}

const successMessage = "Your booking has been submitted."

// failureMessage never exposes the underlying error text.
func failureMessage(kind FailureKind) string {
	switch kind {
	case FailureRejected:
		return "The booking could not be accepted. Please review the details and try again."
	case FailureServer:
		return "The booking service is unavailable right now. Please try again later."
	default:
		return "We could not reach the booking service. Please check your connection and try again."
	}
}

// recordSuccess captures the summary before the draft is destroyed.
func (w *Workflow) recordSuccess(ctx context.Context, s SubmissionSummary) error {
	if err := setJSON(ctx, w.store, KeySubmissionSummary, s); err != nil {
		return err
	}
	if err := w.store.Remove(ctx, KeyFailureSnapshot); err != nil {
		return fmt.Errorf("remove failure snapshot: %w", err)
	}
	if err := removeAll(ctx, w.store, draftKeys...); err != nil {
		return err
	}
	w.draft = nil
	w.roster = nil
	return w.setStep(ctx, StepSuccess)
}

// recordFailure keeps the draft and token in place for a manual retry.
func (w *Workflow) recordFailure(ctx context.Context, f FailureSnapshot) error {
	if err := setJSON(ctx, w.store, KeyFailureSnapshot, f); err != nil {
		return err
	}
	if err := w.store.Remove(ctx, KeySubmissionSummary); err != nil {
		return fmt.Errorf("remove submission summary: %w", err)
	}
	if err := w.store.Set(ctx, KeyClientSessionID, []byte(w.sessionID)); err != nil {
		return fmt.Errorf("store client session id: %w", err)
	}
	return w.setStep(ctx, StepFailure)
}

// RetryFromFailure restores the attempted draft and returns to the review
// step with a fresh captcha. The idempotency token is kept.
func (w *Workflow) RetryFromFailure(ctx context.Context) error {
	if w.actor == nil {
		return ErrNotAuthenticated
	}
	if w.step != StepFailure {
		return ErrWrongStep
	}

	snap, err := ReadFailureSnapshot(ctx, w.store)
	if err != nil {
		return err
	}
	if snap == nil {
		return ErrNoDraft
	}

	draft := snap.Draft.Clone()
	w.draft = &draft
	if err := w.store.Remove(ctx, KeyFailureSnapshot); err != nil {
		return fmt.Errorf("remove failure snapshot: %w", err)
	}
	if err := w.revalidateOffice(ctx); err != nil {
		return err
	}
	if w.officeReselect {
		if err := w.save(ctx); err != nil {
			return err
		}
		return w.setStep(ctx, StepAppointmentDetails)
	}
	return w.enterReview(ctx)
}

func ReadSubmissionSummary(ctx context.Context, s SessionStore) (*SubmissionSummary, error) {
	var sum SubmissionSummary
	ok, err := getJSON(ctx, s, KeySubmissionSummary, &sum)
	if err != nil || !ok {
		return nil, err
	}
	return &sum, nil
}

func ReadFailureSnapshot(ctx context.Context, s SessionStore) (*FailureSnapshot, error) {
	var snap FailureSnapshot
	ok, err := getJSON(ctx, s, KeyFailureSnapshot, &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}
