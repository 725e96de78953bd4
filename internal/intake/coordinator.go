package intake

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// BookingService is the external booking submission endpoint.
type BookingService interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
}

type SubmitRequest struct {
	IdempotencyKey string
	Payload        BookingPayload
	// Roster is sent as the multipart file part for CSV upload bookings.
	Roster *RosterFile
}

type SubmitResult struct {
	BookingRef        string
	BookingStatus     string
	RequestDate       string
	Applicants        *ApplicantCounts
	ExportArtifactURL string
}

type CoordinatorConfig struct {
	RedirectDelay time.Duration
	SuccessPath   string
	FailurePath   string
}

// Coordinator runs the one-shot submission protocol. It owns the per-session
// in-flight flag that blocks a second submit while one is outstanding.
type Coordinator struct {
	booking   BookingService
	events    EventSink
	scheduler *Scheduler
	logger    *slog.Logger
	cfg       CoordinatorConfig
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewCoordinator(booking BookingService, events EventSink, scheduler *Scheduler, logger *slog.Logger, cfg CoordinatorConfig) *Coordinator {
	if events == nil {
		events = NopEvents{}
	}
	return &Coordinator{
		booking:   booking,
		events:    events,
		scheduler: scheduler,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		inFlight:  make(map[string]struct{}),
	}
}

// Attempt is a prepared submission that holds the session's in-flight flag
// until Finish.
type Attempt struct {
	SessionID string
	Request   SubmitRequest
	Company   CompanyContext
	Draft     BookingDraft
	StartedAt time.Time
}

func (c *Coordinator) InFlight(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[sessionID]
	return ok
}

func (c *Coordinator) acquire(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inFlight[sessionID]; ok {
		return false
	}
	c.inFlight[sessionID] = struct{}{}
	return true
}

func (c *Coordinator) release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, sessionID)
}

// Submit runs Begin, Send and Finish for a single caller.
func (c *Coordinator) Submit(ctx context.Context, w *Workflow, captchaInput string) (*Outcome, error) {
	a, err := c.Begin(ctx, w, captchaInput)
	if err != nil {
		return nil, err
	}
	res, sendErr := c.Send(ctx, a)
	return c.Finish(ctx, w, a, res, sendErr), nil
}

// Begin checks the preconditions and builds the payload. Errors returned here
// leave the workflow where it was and make no network call.
func (c *Coordinator) Begin(ctx context.Context, w *Workflow, captchaInput string) (*Attempt, error) {
	if err := w.requireStep(StepReviewConfirm); err != nil {
		return nil, err
	}
	if !c.acquire(w.sessionID) {
		return nil, ErrSubmissionInFlight
	}

	a, err := c.prepare(ctx, w, captchaInput)
	if err != nil {
		c.release(w.sessionID)
		return nil, err
	}
	return a, nil
}

func (c *Coordinator) prepare(ctx context.Context, w *Workflow, captchaInput string) (*Attempt, error) {
	if !w.captcha.Verify(w.draft.CaptchaChallenge, captchaInput) {
		return nil, ErrCaptchaMismatch
	}
	if err := ValidateAppointmentDetails(*w.draft, w.actor, w.settings, w.now()); err != nil {
		return nil, err
	}
	if err := ValidateEmployeeInfo(*w.draft, w.roster != nil); err != nil {
		return nil, err
	}

	company, ok := w.actor.ResolveOffice(w.draft.OfficeSelection)
	if !ok {
		return nil, fieldError(StepAppointmentDetails, "officeSelection", ErrOfficeNotPermitted)
	}

	w.draft.CaptchaInput = captchaInput
	if err := w.save(ctx); err != nil {
		return nil, err
	}
	token, err := w.IdempotencyToken(ctx)
	if err != nil {
		return nil, err
	}

	draft := w.draft.Clone()
	req := SubmitRequest{
		IdempotencyKey: token,
		Payload:        BuildPayload(draft, company, token),
	}
	if draft.BookingMode == BookingCSVUpload {
		req.Roster = w.roster
	}

	return &Attempt{
		SessionID: w.sessionID,
		Request:   req,
		Company:   company,
		Draft:     draft,
		StartedAt: c.now(),
	}, nil
}

// Send performs the network call. Once sent, a submission is not cancelled
// by the caller going away; it waits for a definitive answer.
func (c *Coordinator) Send(ctx context.Context, a *Attempt) (*SubmitResult, error) {
	res, err := c.booking.Submit(context.WithoutCancel(ctx), a.Request)
	if err == nil && res == nil {
		err = &SubmitError{Kind: FailureServer, Message: "empty response from booking service"}
	}
	return res, err
}

// Finish turns the response into exactly one terminal outcome, writes the
// matching snapshot and schedules the outcome event. It always releases the
// in-flight flag.
func (c *Coordinator) Finish(ctx context.Context, w *Workflow, a *Attempt, res *SubmitResult, sendErr error) *Outcome {
	defer c.release(a.SessionID)

	if sendErr != nil {
		return c.fail(ctx, w, a, sendErr)
	}
	return c.succeed(ctx, w, a, res)
}

func (c *Coordinator) succeed(ctx context.Context, w *Workflow, a *Attempt, res *SubmitResult) *Outcome {
	summary := SubmissionSummary{
		BookingRef:        res.BookingRef,
		Status:            res.BookingStatus,
		SubmittedAt:       c.now(),
		RequestDate:       res.RequestDate,
		ExportArtifactURL: res.ExportArtifactURL,
		CompanyName:       a.Company.CompanyName,
		OfficeName:        a.Company.OfficeName,
		AppointmentDate:   a.Draft.AppointmentDate,
		CollectionMode:    a.Request.Payload.CollectionMode,
	}
	if summary.Status == "" {
		summary.Status = "submitted"
	}
	if res.Applicants != nil {
		summary.Applicants = *res.Applicants
	} else {
		summary.Applicants = CountApplicants(a.Request.Payload)
	}

	if err := w.recordSuccess(ctx, summary); err != nil {
		c.logger.Error("failed to record submission summary", "session_id", a.SessionID, "booking_ref", res.BookingRef, "error", err)
		w.forceStep(ctx, StepSuccess)
	}

	redirect := c.cfg.SuccessPath + "?" + url.Values{"brn": {res.BookingRef}}.Encode()
	c.logger.Info("booking submitted", "session_id", a.SessionID, "booking_ref", res.BookingRef, "company_id", a.Company.CompanyID, "office_id", a.Company.OfficeID)

	c.schedule(a.SessionID, Event{
		Type:              EventNavigatedToSuccess,
		SessionID:         a.SessionID,
		BookingRef:        res.BookingRef,
		RedirectURL:       redirect,
		ExportArtifactURL: res.ExportArtifactURL,
		CompanyName:       a.Company.CompanyName,
		OfficeName:        a.Company.OfficeName,
		AppointmentDate:   a.Draft.AppointmentDate,
		Recipient:         recipientOf(w.actor),
	})

	return &Outcome{
		Status:            OutcomeSuccess,
		Step:              StepSuccess,
		Message:           successMessage,
		BookingRef:        res.BookingRef,
		ExportArtifactURL: res.ExportArtifactURL,
		RedirectURL:       redirect,
		RedirectAfter:     c.cfg.RedirectDelay,
	}
}

func (c *Coordinator) fail(ctx context.Context, w *Workflow, a *Attempt, sendErr error) *Outcome {
	kind := FailureNetwork
	var exportURL string
	var se *SubmitError
	if errors.As(sendErr, &se) {
		kind = se.Kind
		exportURL = se.ExportArtifactURL
		if kind == "" {
			kind = FailureServer
		}
	}

	snap := FailureSnapshot{
		ClientSessionID:   a.SessionID,
		Draft:             a.Draft,
		Company:           a.Company,
		Status:            kind,
		ExportArtifactURL: exportURL,
		AttemptedAt:       c.now(),
	}
	if err := w.recordFailure(ctx, snap); err != nil {
		c.logger.Error("failed to record failure snapshot", "session_id", a.SessionID, "error", err)
		w.forceStep(ctx, StepFailure)
	}

	redirect := c.cfg.FailurePath + "?" + url.Values{
		"session": {a.SessionID},
		"status":  {string(kind)},
	}.Encode()
	c.logger.Warn("booking submission failed", "session_id", a.SessionID, "kind", kind, "error", sendErr)

	c.schedule(a.SessionID, Event{
		Type:              EventNavigatedToFailure,
		SessionID:         a.SessionID,
		FailureKind:       kind,
		RedirectURL:       redirect,
		ExportArtifactURL: exportURL,
		CompanyName:       a.Company.CompanyName,
		OfficeName:        a.Company.OfficeName,
		AppointmentDate:   a.Draft.AppointmentDate,
		Recipient:         recipientOf(w.actor),
	})

	return &Outcome{
		Status:            OutcomeFailure,
		Step:              StepFailure,
		Message:           failureMessage(kind),
		FailureKind:       kind,
		ExportArtifactURL: exportURL,
		RedirectURL:       redirect,
		RedirectAfter:     c.cfg.RedirectDelay,
	}
}

// schedule publishes the outcome event after the redirect delay.
func (c *Coordinator) schedule(sessionID string, e Event) {
	c.scheduler.After(sessionID, c.cfg.RedirectDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		e.OccurredAt = c.now()
		if err := c.events.Publish(ctx, e); err != nil {
			c.logger.Error("failed to publish outcome event", "session_id", sessionID, "type", e.Type, "error", err)
		}
	})
}

func recipientOf(a *Actor) *Recipient {
	if a == nil || a.User.Email == "" {
		return nil
	}
	return &Recipient{Name: a.User.Name, Email: a.User.Email, Phone: a.User.Phone}
}
