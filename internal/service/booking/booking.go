// Package booking runs intake workflows on behalf of HTTP clients. Each
// request loads the session's workflow from the session store, applies one
// operation under a per-session lock and returns the resulting state.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alijeyrad/wellness_intake/internal/intake"
	"github.com/Alijeyrad/wellness_intake/internal/portal"
	"github.com/Alijeyrad/wellness_intake/pkg/observability"
	"github.com/Alijeyrad/wellness_intake/pkg/roster"
	"github.com/Alijeyrad/wellness_intake/pkg/sessionstore"
)

// Session store namespaces. Auth survives a confirmed back navigation,
// which only clears the intake namespace.
const (
	NamespaceIntake = "intake"
	NamespaceAuth   = "auth"

	keyActor    = "actor"
	keySettings = "settings"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

type Authenticator interface {
	Login(ctx context.Context, creds intake.Credentials) (*intake.Actor, error)
}

type SettingsSource interface {
	Get(ctx context.Context, companyID string) (intake.Settings, error)
}

type SummaryLookup interface {
	LookupSummary(ctx context.Context, brn string) (*portal.Summary, error)
}

// RosterArchive keeps a copy of roster files that were booked successfully.
type RosterArchive interface {
	ArchiveRoster(ctx context.Context, companyID, bookingRef, filename, contentType string, data []byte) (string, error)
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Login(ctx context.Context, sessionID string, creds intake.Credentials) (*State, error)
	State(ctx context.Context, sessionID string) (*State, error)

	SetBookingMode(ctx context.Context, sessionID string, mode intake.BookingMode) (*State, error)
	UpdateDetails(ctx context.Context, sessionID string, u intake.DetailsUpdate) (*State, error)

	AddEmployee(ctx context.Context, sessionID string, e intake.Employee) (*State, error)
	UpdateEmployee(ctx context.Context, sessionID string, i int, e intake.Employee) (*State, error)
	RemoveEmployee(ctx context.Context, sessionID string, i int) (*State, error)
	SetHasDependents(ctx context.Context, sessionID string, i int, on bool) (*State, error)
	AddDependent(ctx context.Context, sessionID string, i int, d intake.Dependent) (*State, error)
	UpdateDependent(ctx context.Context, sessionID string, i, j int, d intake.Dependent) (*State, error)
	RemoveDependent(ctx context.Context, sessionID string, i, j int) (*State, error)
	UploadRoster(ctx context.Context, sessionID, filename string, data []byte) (*State, error)

	Advance(ctx context.Context, sessionID string) (*State, error)
	Retreat(ctx context.Context, sessionID string) (*State, error)
	JumpTo(ctx context.Context, sessionID string, target intake.Step) (*State, error)
	RefreshCaptcha(ctx context.Context, sessionID string) (*State, error)

	Submit(ctx context.Context, sessionID, captchaInput string) (*intake.Outcome, error)
	StartNew(ctx context.Context, sessionID string) (*State, error)
	Retry(ctx context.Context, sessionID string) (*State, error)

	NavigateBack(ctx context.Context, sessionID string, confirm bool) (*BackResult, error)
	Unload(ctx context.Context, sessionID string) (bool, error)

	Summary(ctx context.Context, sessionID, brn string) (*intake.SubmissionSummary, error)
	Failure(ctx context.Context, sessionID string) (*intake.FailureSnapshot, error)
}

type Config struct {
	// MaxRosterBytes of zero disables the upload size check.
	MaxRosterBytes int
}

type Deps struct {
	Sessions    *sessionstore.Provider
	Auth        Authenticator
	Settings    SettingsSource
	Summaries   SummaryLookup
	Archive     RosterArchive
	Coordinator *intake.Coordinator
	Captcha     *intake.CaptchaGate
	Events      intake.EventSink
	Logger      *slog.Logger
	Config      Config
	Now         func() time.Time
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type bookingService struct {
	sessions  *sessionstore.Provider
	auth      Authenticator
	settings  SettingsSource
	summaries SummaryLookup
	archive   RosterArchive
	coord     *intake.Coordinator
	captcha   *intake.CaptchaGate
	events    intake.EventSink
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time

	locks   *sessionLocks
	tracer  trace.Tracer
	metrics *metrics
}

func New(d Deps) Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Events == nil {
		d.Events = intake.NopEvents{}
	}
	m := newMetrics()
	return &bookingService{
		sessions:  d.Sessions,
		auth:      d.Auth,
		settings:  d.Settings,
		summaries: d.Summaries,
		archive:   d.Archive,
		coord:     d.Coordinator,
		captcha:   d.Captcha,
		events:    &countingEvents{next: d.Events, transitions: m.transitions},
		logger:    d.Logger,
		cfg:       d.Config,
		now:       d.Now,
		locks:     newSessionLocks(),
		tracer:    observability.Tracer(),
		metrics:   m,
	}
}

// ---------------------------------------------------------------------------
// Session plumbing
// ---------------------------------------------------------------------------

func (s *bookingService) load(ctx context.Context, sessionID string) (*intake.Workflow, error) {
	actor, settings, err := s.readAuth(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return intake.Load(ctx, intake.Deps{
		Store:     s.sessions.Open(NamespaceIntake, sessionID),
		Captcha:   s.captcha,
		Events:    s.events,
		Logger:    s.logger,
		Now:       s.now,
		SessionID: sessionID,
	}, actor, settings)
}

func (s *bookingService) readAuth(ctx context.Context, sessionID string) (*intake.Actor, intake.Settings, error) {
	store := s.sessions.Open(NamespaceAuth, sessionID)

	raw, ok, err := store.Get(ctx, keyActor)
	if err != nil {
		return nil, intake.Settings{}, fmt.Errorf("read actor: %w", err)
	}
	if !ok {
		return nil, intake.Settings{}, nil
	}
	var actor intake.Actor
	if err := json.Unmarshal(raw, &actor); err != nil {
		return nil, intake.Settings{}, fmt.Errorf("decode actor: %w", err)
	}

	var settings intake.Settings
	raw, ok, err = store.Get(ctx, keySettings)
	if err != nil {
		return nil, intake.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if ok {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return nil, intake.Settings{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	return &actor, settings, nil
}

func (s *bookingService) writeAuth(ctx context.Context, sessionID string, actor *intake.Actor, settings intake.Settings) error {
	store := s.sessions.Open(NamespaceAuth, sessionID)
	a, err := json.Marshal(actor)
	if err != nil {
		return fmt.Errorf("encode actor: %w", err)
	}
	st, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := store.Set(ctx, keyActor, a); err != nil {
		return fmt.Errorf("store actor: %w", err)
	}
	if err := store.Set(ctx, keySettings, st); err != nil {
		return fmt.Errorf("store settings: %w", err)
	}
	return nil
}

// view loads the workflow under the session lock without changing it.
func (s *bookingService) view(ctx context.Context, sessionID string, fn func(w *intake.Workflow) error) (*intake.Workflow, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	w, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		if err := fn(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// mutate applies fn to the session's workflow. Nothing may change while a
// submission is outstanding.
func (s *bookingService) mutate(ctx context.Context, sessionID string, fn func(w *intake.Workflow) error) (*State, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if s.coord.InFlight(sessionID) {
		return nil, intake.ErrSubmissionInFlight
	}
	w, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return nil, err
	}
	return stateOf(w, false), nil
}

// ---------------------------------------------------------------------------
// Authentication and reads
// ---------------------------------------------------------------------------

func (s *bookingService) Login(ctx context.Context, sessionID string, creds intake.Credentials) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		if w.Actor() != nil {
			return intake.ErrAlreadyAuthenticated
		}

		actor, err := s.auth.Login(ctx, creds)
		if err != nil {
			s.metrics.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "rejected")))
			return err
		}
		if len(actor.Companies) == 0 {
			return ErrNoCompany
		}
		settings, err := s.settingsFor(ctx, actor)
		if err != nil {
			return err
		}
		if err := s.writeAuth(ctx, sessionID, actor, settings); err != nil {
			return err
		}

		s.metrics.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
		s.logger.Info("intake login", "session_id", sessionID, "user_id", actor.User.ID, "role", actor.User.Role)
		return w.Authenticate(ctx, actor, settings)
	})
}

// settingsFor merges the settings of every company the actor belongs to.
// The latest opening offset wins so no company's rule is undercut.
func (s *bookingService) settingsFor(ctx context.Context, actor *intake.Actor) (intake.Settings, error) {
	merged := intake.Settings{}
	for i, c := range actor.Companies {
		st, err := s.settings.Get(ctx, c.ID)
		if err != nil {
			return intake.Settings{}, fmt.Errorf("settings for company %s: %w", c.ID, err)
		}
		if i == 0 || st.BookingOpenOffsetDays > merged.BookingOpenOffsetDays {
			merged.BookingOpenOffsetDays = st.BookingOpenOffsetDays
		}
		for office, modes := range st.OfficeModes {
			if merged.OfficeModes == nil {
				merged.OfficeModes = make(map[string][]intake.CollectionMode)
			}
			merged.OfficeModes[office] = modes
		}
	}
	return merged, nil
}

func (s *bookingService) State(ctx context.Context, sessionID string) (*State, error) {
	w, err := s.view(ctx, sessionID, nil)
	if err != nil {
		return nil, err
	}
	return stateOf(w, s.coord.InFlight(sessionID)), nil
}

// ---------------------------------------------------------------------------
// Draft editing
// ---------------------------------------------------------------------------

func (s *bookingService) SetBookingMode(ctx context.Context, sessionID string, mode intake.BookingMode) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.SetBookingMode(ctx, mode)
	})
}

func (s *bookingService) UpdateDetails(ctx context.Context, sessionID string, u intake.DetailsUpdate) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.UpdateDetails(ctx, u)
	})
}

func (s *bookingService) AddEmployee(ctx context.Context, sessionID string, e intake.Employee) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		_, err := w.AddEmployee(ctx, e)
		return err
	})
}

func (s *bookingService) UpdateEmployee(ctx context.Context, sessionID string, i int, e intake.Employee) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.UpdateEmployee(ctx, i, e)
	})
}

func (s *bookingService) RemoveEmployee(ctx context.Context, sessionID string, i int) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.RemoveEmployee(ctx, i)
	})
}

func (s *bookingService) SetHasDependents(ctx context.Context, sessionID string, i int, on bool) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.SetHasDependents(ctx, i, on)
	})
}

func (s *bookingService) AddDependent(ctx context.Context, sessionID string, i int, d intake.Dependent) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		_, err := w.AddDependent(ctx, i, d)
		return err
	})
}

func (s *bookingService) UpdateDependent(ctx context.Context, sessionID string, i, j int, d intake.Dependent) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.UpdateDependent(ctx, i, j, d)
	})
}

func (s *bookingService) RemoveDependent(ctx context.Context, sessionID string, i, j int) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.RemoveDependent(ctx, i, j)
	})
}

func (s *bookingService) UploadRoster(ctx context.Context, sessionID, filename string, data []byte) (*State, error) {
	sum, err := roster.Parse(filename, data, s.cfg.MaxRosterBytes)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.AttachRoster(ctx, intake.RosterFile{
			Name:        filename,
			ContentType: sum.ContentType,
			Data:        data,
			Rows:        sum.Rows,
		})
	})
}

// ---------------------------------------------------------------------------
// Navigation
// ---------------------------------------------------------------------------

func (s *bookingService) Advance(ctx context.Context, sessionID string) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		_, err := w.Advance(ctx)
		return err
	})
}

func (s *bookingService) Retreat(ctx context.Context, sessionID string) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		_, err := w.Retreat(ctx)
		return err
	})
}

func (s *bookingService) JumpTo(ctx context.Context, sessionID string, target intake.Step) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		_, err := w.JumpTo(ctx, target)
		return err
	})
}

func (s *bookingService) RefreshCaptcha(ctx context.Context, sessionID string) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.RefreshCaptcha(ctx)
	})
}

func (s *bookingService) StartNew(ctx context.Context, sessionID string) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.StartNew(ctx)
	})
}

func (s *bookingService) Retry(ctx context.Context, sessionID string) (*State, error) {
	return s.mutate(ctx, sessionID, func(w *intake.Workflow) error {
		return w.RetryFromFailure(ctx)
	})
}

// NavigateBack does not wait on an outstanding submission. The guard is off
// while one is in flight, so back is simply allowed.
func (s *bookingService) NavigateBack(ctx context.Context, sessionID string, confirm bool) (*BackResult, error) {
	var decision intake.BackDecision
	submitting := s.coord.InFlight(sessionID)
	w, err := s.view(ctx, sessionID, func(w *intake.Workflow) error {
		var err error
		decision, err = w.NavigateBack(ctx, submitting, confirm)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &BackResult{Decision: decision, State: stateOf(w, submitting)}, nil
}

// Unload reports whether leaving the page should prompt the user.
func (s *bookingService) Unload(ctx context.Context, sessionID string) (bool, error) {
	w, err := s.view(ctx, sessionID, nil)
	if err != nil {
		return false, err
	}
	return w.Guard(s.coord.InFlight(sessionID)).Unload(), nil
}

// ---------------------------------------------------------------------------
// Submission
// ---------------------------------------------------------------------------

// Submit holds the session lock while preparing and while recording the
// outcome, but not during the network call, so state reads and back
// navigation still answer while the booking service is working.
func (s *bookingService) Submit(ctx context.Context, sessionID, captchaInput string) (*intake.Outcome, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	ctx, span := s.tracer.Start(ctx, "intake.Submit", trace.WithAttributes(
		attribute.String("intake.session_id", sessionID),
	))
	defer span.End()

	unlock := s.locks.lock(sessionID)
	w, err := s.load(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	attempt, err := s.coord.Begin(ctx, w, captchaInput)
	unlock()
	if err != nil {
		span.SetAttributes(attribute.String("intake.rejected", err.Error()))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("intake.company_id", attempt.Company.CompanyID),
		attribute.String("intake.office_id", attempt.Company.OfficeID),
		attribute.String("intake.booking_mode", string(attempt.Draft.BookingMode)),
	)

	started := s.now()
	res, sendErr := s.coord.Send(ctx, attempt)
	elapsed := float64(s.now().Sub(started).Microseconds()) / 1000

	unlock = s.locks.lock(sessionID)
	out := s.coord.Finish(context.WithoutCancel(ctx), w, attempt, res, sendErr)
	unlock()

	attrs := []attribute.KeyValue{attribute.String("status", string(out.Status))}
	if out.FailureKind != "" {
		attrs = append(attrs, attribute.String("kind", string(out.FailureKind)))
		span.SetStatus(codes.Error, string(out.FailureKind))
		if sendErr != nil {
			span.RecordError(sendErr)
		}
	} else {
		span.SetAttributes(attribute.String("intake.booking_ref", out.BookingRef))
		span.SetStatus(codes.Ok, "")
	}
	s.metrics.submissions.Add(ctx, 1, metric.WithAttributes(attrs...))
	s.metrics.duration.Record(ctx, elapsed, metric.WithAttributes(attrs...))

	if out.Status == intake.OutcomeSuccess {
		s.archiveRoster(context.WithoutCancel(ctx), attempt, out.BookingRef)
	}
	return out, nil
}

// archiveRoster failures are logged only; the booking itself has succeeded.
func (s *bookingService) archiveRoster(ctx context.Context, a *intake.Attempt, bookingRef string) {
	r := a.Request.Roster
	if s.archive == nil || r == nil {
		return
	}
	key, err := s.archive.ArchiveRoster(ctx, a.Company.CompanyID, bookingRef, r.Name, r.ContentType, r.Data)
	if err != nil {
		s.logger.Error("failed to archive roster", "session_id", a.SessionID, "booking_ref", bookingRef, "error", err)
		return
	}
	s.logger.Info("roster archived", "session_id", a.SessionID, "booking_ref", bookingRef, "key", key)
}

// ---------------------------------------------------------------------------
// Outcome lookup
// ---------------------------------------------------------------------------

// Summary prefers the session's own record and falls back to the booking
// service for references submitted elsewhere.
func (s *bookingService) Summary(ctx context.Context, sessionID, brn string) (*intake.SubmissionSummary, error) {
	if sessionID != "" {
		sum, err := intake.ReadSubmissionSummary(ctx, s.sessions.Open(NamespaceIntake, sessionID))
		if err != nil {
			return nil, err
		}
		if sum != nil && (brn == "" || sum.BookingRef == brn) {
			return sum, nil
		}
	}
	if brn == "" || s.summaries == nil {
		return nil, ErrSummaryNotFound
	}

	remote, err := s.summaries.LookupSummary(ctx, brn)
	if errors.Is(err, portal.ErrSummaryNotFound) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intake.SubmissionSummary{
		BookingRef:        remote.BookingRef,
		Status:            remote.BookingStatus,
		Applicants:        remote.Applicants,
		RequestDate:       remote.RequestDate,
		ExportArtifactURL: remote.ExportArtifactURL,
		CompanyName:       remote.CompanyName,
		OfficeName:        remote.OfficeName,
		AppointmentDate:   remote.AppointmentDate,
		CollectionMode:    intake.CollectionMode(remote.CollectionMode),
	}, nil
}

func (s *bookingService) Failure(ctx context.Context, sessionID string) (*intake.FailureSnapshot, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	snap, err := intake.ReadFailureSnapshot(ctx, s.sessions.Open(NamespaceIntake, sessionID))
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrNoFailure
	}
	snap.Draft.CaptchaInput = ""
	snap.Draft.CaptchaChallenge = ""
	return snap, nil
}
