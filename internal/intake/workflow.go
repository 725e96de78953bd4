package intake

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Deps struct {
	Store     SessionStore
	Captcha   *CaptchaGate
	Events    EventSink
	Logger    *slog.Logger
	Now       func() time.Time
	SessionID string
}

// Workflow is one client session's intake state machine. It is not safe for
// concurrent use; callers serialize access per session.
type Workflow struct {
	sessionID string
	store     SessionStore
	captcha   *CaptchaGate
	events    EventSink
	logger    *slog.Logger
	now       func() time.Time

	actor          *Actor
	settings       Settings
	step           Step
	draft          *BookingDraft
	roster         *RosterFile
	officeReselect bool
}

// Load rebuilds the workflow for a session from its store. A nil actor means
// the session has not signed in yet.
func Load(ctx context.Context, deps Deps, actor *Actor, settings Settings) (*Workflow, error) {
	w := &Workflow{
		sessionID: deps.SessionID,
		store:     deps.Store,
		captcha:   deps.Captcha,
		events:    deps.Events,
		logger:    deps.Logger,
		now:       deps.Now,
		step:      StepLogin,
	}
	if w.events == nil {
		w.events = NopEvents{}
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	if w.now == nil {
		w.now = time.Now
	}
	if actor == nil {
		return w, nil
	}

	w.actor = actor
	w.settings = settings
	if err := w.restore(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workflow) SessionID() string            { return w.sessionID }
func (w *Workflow) Step() Step                   { return w.step }
func (w *Workflow) Actor() *Actor                { return w.actor }
func (w *Workflow) Settings() Settings           { return w.settings }
func (w *Workflow) Roster() *RosterFile          { return w.roster }
func (w *Workflow) OfficeReselectRequired() bool { return w.officeReselect }

// Draft returns a copy of the current draft, or nil when none exists.
func (w *Workflow) Draft() *BookingDraft {
	if w.draft == nil {
		return nil
	}
	d := w.draft.Clone()
	return &d
}

func (w *Workflow) Guard(submitting bool) NavigationGuard {
	return GuardFor(w.step, submitting)
}

func (w *Workflow) MinAppointmentDate() time.Time {
	return MinAppointmentDate(w.settings, w.now())
}

// IdempotencyToken returns the draft's token, creating it if it was lost.
func (w *Workflow) IdempotencyToken(ctx context.Context) (string, error) {
	token, err := getString(ctx, w.store, KeyIdempotencyToken)
	if err != nil {
		return "", fmt.Errorf("read idempotency token: %w", err)
	}
	if token != "" {
		return token, nil
	}
	token = uuid.NewString()
	if err := w.store.Set(ctx, KeyIdempotencyToken, []byte(token)); err != nil {
		return "", fmt.Errorf("store idempotency token: %w", err)
	}
	return token, nil
}

// ---------------------------------------------------------------------------
// Authentication and lifecycle
// ---------------------------------------------------------------------------

// Authenticate moves a signed-out session straight to ChooseMode, restoring
// any draft left in the store.
func (w *Workflow) Authenticate(ctx context.Context, actor *Actor, settings Settings) error {
	if w.actor != nil {
		return ErrAlreadyAuthenticated
	}
	w.actor = actor
	w.settings = settings
	if err := w.restore(ctx); err != nil {
		return err
	}
	if w.draft == nil {
		if err := w.newDraft(ctx); err != nil {
			return err
		}
	}
	w.step = StepLogin
	return w.setStep(ctx, StepChooseMode)
}

// StartNew discards everything in the intake store and begins a fresh draft
// with a new idempotency token.
func (w *Workflow) StartNew(ctx context.Context) error {
	if w.actor == nil {
		return ErrNotAuthenticated
	}
	if err := w.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	w.roster = nil
	w.officeReselect = false
	if err := w.newDraft(ctx); err != nil {
		return err
	}
	return w.setStep(ctx, StepChooseMode)
}

// NavigateBack applies the navigation guard to a browser back action.
func (w *Workflow) NavigateBack(ctx context.Context, submitting, confirm bool) (BackDecision, error) {
	decision := w.Guard(submitting).Back(confirm)
	if decision != BackCleared {
		return decision, nil
	}
	if err := w.store.Clear(ctx); err != nil {
		return "", fmt.Errorf("clear session: %w", err)
	}
	w.draft = nil
	w.roster = nil
	w.officeReselect = false
	w.step = StepChooseMode
	return decision, nil
}

// ---------------------------------------------------------------------------
// Step transitions
// ---------------------------------------------------------------------------

// Advance moves forward one step when the current step validates. A failed
// validation leaves the step unchanged.
func (w *Workflow) Advance(ctx context.Context) (Step, error) {
	if err := w.requireActive(); err != nil {
		return w.step, err
	}

	switch w.step {
	case StepChooseMode:
		if err := ValidateChooseMode(*w.draft); err != nil {
			return w.step, err
		}
		return w.moveTo(ctx, StepAppointmentDetails)
	case StepAppointmentDetails:
		if err := ValidateAppointmentDetails(*w.draft, w.actor, w.settings, w.now()); err != nil {
			return w.step, err
		}
		return w.moveTo(ctx, StepEmployeeInfo)
	case StepEmployeeInfo:
		if err := ValidateEmployeeInfo(*w.draft, w.roster != nil); err != nil {
			return w.step, err
		}
		if err := w.enterReview(ctx); err != nil {
			return w.step, err
		}
		return w.step, nil
	case StepReviewConfirm:
		return w.step, ErrSubmitRequired
	}
	return w.step, ErrWrongStep
}

// Retreat moves back one step without validating. It is a no-op on ChooseMode.
func (w *Workflow) Retreat(ctx context.Context) (Step, error) {
	if err := w.requireActive(); err != nil {
		return w.step, err
	}
	if w.step == StepChooseMode {
		return w.step, nil
	}
	return w.moveTo(ctx, w.step-1)
}

// JumpTo is the review page's edit affordance: back to any form step.
func (w *Workflow) JumpTo(ctx context.Context, target Step) (Step, error) {
	if err := w.requireActive(); err != nil {
		return w.step, err
	}
	if w.step != StepReviewConfirm || !target.Editable() {
		return w.step, ErrJumpNotAllowed
	}
	return w.moveTo(ctx, target)
}

// RefreshCaptcha issues a new challenge on the review step.
func (w *Workflow) RefreshCaptcha(ctx context.Context) error {
	if err := w.requireStep(StepReviewConfirm); err != nil {
		return err
	}
	return w.issueCaptcha(ctx)
}

func (w *Workflow) moveTo(ctx context.Context, to Step) (Step, error) {
	if err := w.setStep(ctx, to); err != nil {
		return w.step, err
	}
	return w.step, nil
}

func (w *Workflow) enterReview(ctx context.Context) error {
	if err := w.issueCaptcha(ctx); err != nil {
		return err
	}
	return w.setStep(ctx, StepReviewConfirm)
}

func (w *Workflow) issueCaptcha(ctx context.Context) error {
	challenge, err := w.captcha.Generate()
	if err != nil {
		return fmt.Errorf("generate captcha: %w", err)
	}
	w.draft.CaptchaChallenge = challenge
	w.draft.CaptchaInput = ""
	return w.save(ctx)
}

// ---------------------------------------------------------------------------
// ChooseMode and AppointmentDetails mutations
// ---------------------------------------------------------------------------

func (w *Workflow) SetBookingMode(ctx context.Context, mode BookingMode) error {
	if err := w.requireStep(StepChooseMode); err != nil {
		return err
	}
	if !mode.Valid() {
		return fieldError(StepChooseMode, "bookingMode", ErrUnknownBookingMode)
	}
	if mode == BookingOnlineForm && w.roster != nil {
		if err := w.store.Remove(ctx, KeyRosterFile); err != nil {
			return fmt.Errorf("remove roster: %w", err)
		}
		w.roster = nil
	}
	w.draft.BookingMode = mode
	return w.save(ctx)
}

// DetailsUpdate carries the AppointmentDetails fields to change. Nil fields
// are left alone; an empty string clears the field.
type DetailsUpdate struct {
	OfficeSelection *string
	CollectionMode  *string
	AppointmentDate *string
	Notes           *string
}

// UpdateDetails applies all fields or none.
func (w *Workflow) UpdateDetails(ctx context.Context, u DetailsUpdate) error {
	if err := w.requireStep(StepAppointmentDetails); err != nil {
		return err
	}

	next := w.draft.Clone()
	reselect := w.officeReselect

	if u.OfficeSelection != nil {
		if err := w.selectOffice(&next, *u.OfficeSelection); err != nil {
			return fieldError(StepAppointmentDetails, "officeSelection", err)
		}
		reselect = reselect && next.OfficeSelection == ""
	}
	if u.CollectionMode != nil {
		if err := w.setCollectionMode(&next, *u.CollectionMode); err != nil {
			return fieldError(StepAppointmentDetails, "collectionMode", err)
		}
	}
	if u.AppointmentDate != nil {
		date := strings.TrimSpace(*u.AppointmentDate)
		if date != "" {
			if err := checkAppointmentDate(date, w.settings, w.now()); err != nil {
				return fieldError(StepAppointmentDetails, "appointmentDate", err)
			}
		}
		next.AppointmentDate = date
	}
	if u.Notes != nil {
		next.Notes = *u.Notes
	}

	w.draft = &next
	if w.officeReselect && !reselect {
		if err := w.store.Remove(ctx, KeyOfficeReselect); err != nil {
			return fmt.Errorf("remove office reselect: %w", err)
		}
	}
	w.officeReselect = reselect
	return w.save(ctx)
}

// selectOffice sets the office and reconciles the collection mode: a
// single-mode office forces its mode, otherwise an unsupported mode is cleared.
func (w *Workflow) selectOffice(d *BookingDraft, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		d.OfficeSelection = ""
		d.CollectionMode = ""
		return nil
	}
	ref, ok := w.actor.PermittedOffice(name)
	if !ok {
		return ErrOfficeNotPermitted
	}
	d.OfficeSelection = ref.Office.Name

	modes := w.settings.SupportedModes(ref.Office)
	switch {
	case len(modes) == 1:
		d.CollectionMode = modes[0]
	case d.CollectionMode != "" && !slices.Contains(modes, d.CollectionMode):
		d.CollectionMode = ""
	}
	return nil
}

func (w *Workflow) setCollectionMode(d *BookingDraft, raw string) error {
	ref, ok := w.actor.PermittedOffice(d.OfficeSelection)
	if !ok {
		return ErrOfficeRequired
	}
	modes := w.settings.SupportedModes(ref.Office)

	var mode CollectionMode
	if strings.TrimSpace(raw) != "" {
		parsed, ok := ParseCollectionMode(raw)
		if !ok {
			return ErrModeNotSupported
		}
		mode = parsed
	}

	if len(modes) == 1 {
		if mode != modes[0] {
			return ErrModeLocked
		}
		return nil
	}
	if mode != "" && !slices.Contains(modes, mode) {
		return ErrModeNotSupported
	}
	d.CollectionMode = mode
	return nil
}

// ---------------------------------------------------------------------------
// EmployeeInfo mutations
// ---------------------------------------------------------------------------

// AddEmployee appends an employee once the current last one is fully complete.
func (w *Workflow) AddEmployee(ctx context.Context, e Employee) (int, error) {
	if err := w.requireStep(StepEmployeeInfo); err != nil {
		return -1, err
	}
	n := len(w.draft.Employees)
	if n > 0 && !IsEmployeeFullyComplete(w.draft.Employees[n-1], w.draft.CollectionMode, n-1) {
		return -1, employeeError(n-1, -1, "employees", ErrTailIncomplete)
	}
	if err := checkNewEmployee(e, n); err != nil {
		return -1, err
	}

	w.draft.Employees = append(w.draft.Employees, e.clone())
	return n, w.save(ctx)
}

// UpdateEmployee replaces an employee's own fields. Dependents and the
// dependents flag have their own operations and are kept as they are.
func (w *Workflow) UpdateEmployee(ctx context.Context, i int, e Employee) error {
	if err := w.requireEmployee(i); err != nil {
		return err
	}
	if is := checkEmployeeFields(e); is != nil {
		return employeeError(i, -1, is.field, is.err)
	}

	current := w.draft.Employees[i]
	e = e.clone()
	e.HasDependents = current.HasDependents
	e.Dependents = current.Dependents
	w.draft.Employees[i] = e
	return w.save(ctx)
}

func (w *Workflow) RemoveEmployee(ctx context.Context, i int) error {
	if err := w.requireEmployee(i); err != nil {
		return err
	}
	w.draft.Employees = slices.Delete(w.draft.Employees, i, i+1)
	return w.save(ctx)
}

// SetHasDependents rejects turning dependents off while any remain.
func (w *Workflow) SetHasDependents(ctx context.Context, i int, on bool) error {
	if err := w.requireEmployee(i); err != nil {
		return err
	}
	e := &w.draft.Employees[i]
	if !on && len(e.Dependents) > 0 {
		return employeeError(i, -1, "hasDependents", ErrDependentsPresent)
	}
	e.HasDependents = on
	return w.save(ctx)
}

func (w *Workflow) AddDependent(ctx context.Context, i int, d Dependent) (int, error) {
	if err := w.requireEmployee(i); err != nil {
		return -1, err
	}
	e := &w.draft.Employees[i]
	if !e.HasDependents {
		return -1, employeeError(i, -1, "hasDependents", ErrDependentsDisabled)
	}
	n := len(e.Dependents)
	if n > 0 && !IsDependentComplete(e.Dependents[n-1]) {
		return -1, employeeError(i, n-1, "dependents", ErrTailIncomplete)
	}
	if is := checkDependentFields(d); is != nil {
		return -1, employeeError(i, n, is.field, is.err)
	}

	d.Conditions = slices.Clone(d.Conditions)
	e.Dependents = append(e.Dependents, d)
	return n, w.save(ctx)
}

func (w *Workflow) UpdateDependent(ctx context.Context, i, j int, d Dependent) error {
	if err := w.requireDependent(i, j); err != nil {
		return err
	}
	if is := checkDependentFields(d); is != nil {
		return employeeError(i, j, is.field, is.err)
	}
	d.Conditions = slices.Clone(d.Conditions)
	w.draft.Employees[i].Dependents[j] = d
	return w.save(ctx)
}

func (w *Workflow) RemoveDependent(ctx context.Context, i, j int) error {
	if err := w.requireDependent(i, j); err != nil {
		return err
	}
	e := &w.draft.Employees[i]
	e.Dependents = slices.Delete(e.Dependents, j, j+1)
	return w.save(ctx)
}

// AttachRoster keeps an uploaded roster file until submission.
func (w *Workflow) AttachRoster(ctx context.Context, f RosterFile) error {
	if err := w.requireStep(StepEmployeeInfo); err != nil {
		return err
	}
	if w.draft.BookingMode != BookingCSVUpload {
		return ErrRosterNotExpected
	}
	if err := setJSON(ctx, w.store, KeyRosterFile, f); err != nil {
		return err
	}
	w.roster = &f
	return nil
}

func checkNewEmployee(e Employee, index int) error {
	if is := checkEmployeeFields(e); is != nil {
		return employeeError(index, -1, is.field, is.err)
	}
	if !e.HasDependents && len(e.Dependents) > 0 {
		return employeeError(index, -1, "hasDependents", ErrDependentsPresent)
	}
	for j, d := range e.Dependents {
		if is := checkDependentFields(d); is != nil {
			return employeeError(index, j, is.field, is.err)
		}
	}
	return nil
}

func employeeError(index, dependent int, field string, err error) *ValidationError {
	return &ValidationError{
		Step:           StepEmployeeInfo,
		Field:          field,
		Index:          index,
		DependentIndex: dependent,
		Message:        err.Error(),
		Err:            err,
	}
}

// ---------------------------------------------------------------------------
// Guards and persistence
// ---------------------------------------------------------------------------

func (w *Workflow) requireActive() error {
	switch {
	case w.actor == nil:
		return ErrNotAuthenticated
	case w.step.Terminal():
		return ErrTerminal
	case w.draft == nil:
		return ErrNoDraft
	}
	return nil
}

func (w *Workflow) requireStep(step Step) error {
	if err := w.requireActive(); err != nil {
		return err
	}
	if w.step != step {
		return ErrWrongStep
	}
	return nil
}

func (w *Workflow) requireEmployee(i int) error {
	if err := w.requireStep(StepEmployeeInfo); err != nil {
		return err
	}
	if i < 0 || i >= len(w.draft.Employees) {
		return ErrIndexOutOfRange
	}
	return nil
}

func (w *Workflow) requireDependent(i, j int) error {
	if err := w.requireEmployee(i); err != nil {
		return err
	}
	if j < 0 || j >= len(w.draft.Employees[i].Dependents) {
		return ErrIndexOutOfRange
	}
	return nil
}

func (w *Workflow) newDraft(ctx context.Context) error {
	w.draft = &BookingDraft{BookingMode: BookingOnlineForm, Employees: []Employee{}}
	w.roster = nil
	if err := w.store.Set(ctx, KeyIdempotencyToken, []byte(uuid.NewString())); err != nil {
		return fmt.Errorf("store idempotency token: %w", err)
	}
	if err := w.store.Set(ctx, KeyClientSessionID, []byte(w.sessionID)); err != nil {
		return fmt.Errorf("store client session id: %w", err)
	}
	if err := w.store.Remove(ctx, KeyRosterFile); err != nil {
		return fmt.Errorf("remove roster: %w", err)
	}
	return w.save(ctx)
}

// save mirrors the draft and its display fields into the store.
func (w *Workflow) save(ctx context.Context) error {
	if err := setJSON(ctx, w.store, KeyDraft, w.draft); err != nil {
		return err
	}
	if err := setOrRemove(ctx, w.store, KeySelectedOfficeName, w.draft.OfficeSelection); err != nil {
		return fmt.Errorf("store office name: %w", err)
	}
	if err := setOrRemove(ctx, w.store, KeyAppointmentDate, w.draft.AppointmentDate); err != nil {
		return fmt.Errorf("store appointment date: %w", err)
	}
	return nil
}

// setStep persists the step and emits a step-changed event. Event delivery
// is best effort and never fails the transition.
func (w *Workflow) setStep(ctx context.Context, to Step) error {
	from := w.step
	w.step = to
	if err := w.store.Set(ctx, KeyStep, []byte(to.String())); err != nil {
		return fmt.Errorf("store step: %w", err)
	}
	if from != to {
		err := w.events.Publish(ctx, Event{
			Type:       EventStepChanged,
			SessionID:  w.sessionID,
			From:       &from,
			To:         &to,
			OccurredAt: w.now(),
		})
		if err != nil {
			w.logger.Warn("failed to publish step event", "session_id", w.sessionID, "from", from, "to", to, "error", err)
		}
	}
	return nil
}

// forceStep moves to a terminal step after its record could not be written
// in full. The step key is written on a best-effort basis so a reload does not
// resurrect the pre-submit step.
func (w *Workflow) forceStep(ctx context.Context, to Step) {
	w.step = to
	if err := w.store.Set(ctx, KeyStep, []byte(to.String())); err != nil {
		w.logger.Error("failed to store step", "session_id", w.sessionID, "step", to, "error", err)
	}
}
