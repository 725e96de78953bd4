package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/wellness_intake/internal/intake"
	"github.com/Alijeyrad/wellness_intake/internal/portal"
	"github.com/Alijeyrad/wellness_intake/pkg/logs"
	"github.com/Alijeyrad/wellness_intake/pkg/sessionstore"
	"github.com/Alijeyrad/wellness_intake/pkg/util/codes"
)

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

type fakeAuth struct {
	actor *intake.Actor
}

func (f *fakeAuth) Login(_ context.Context, creds intake.Credentials) (*intake.Actor, error) {
	if creds.Password != "secret" {
		return nil, &portal.AuthError{StatusCode: 401, Message: "Invalid email or password"}
	}
	return f.actor, nil
}

type fakeSettings struct{}

func (fakeSettings) Get(context.Context, string) (intake.Settings, error) {
	return intake.Settings{BookingOpenOffsetDays: 2}, nil
}

type fakeLookup struct{}

func (fakeLookup) LookupSummary(_ context.Context, brn string) (*portal.Summary, error) {
	if brn != "BRN-REMOTE" {
		return nil, portal.ErrSummaryNotFound
	}
	return &portal.Summary{BookingRef: brn, BookingStatus: "confirmed", CompanyName: "Acme"}, nil
}

// fakeBooking answers with err when set, otherwise with BRN-1. A non-nil
// gate blocks the call until closed.
type fakeBooking struct {
	mu    sync.Mutex
	gate  chan struct{}
	err   error
	calls []intake.SubmitRequest
}

func (f *fakeBooking) Submit(_ context.Context, req intake.SubmitRequest) (*intake.SubmitResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	gate, err := f.gate, f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &intake.SubmitResult{BookingRef: "BRN-1", BookingStatus: "pending"}, nil
}

type fakeArchive struct {
	keys []string
}

func (f *fakeArchive) ArchiveRoster(_ context.Context, companyID, bookingRef, filename, _ string, data []byte) (string, error) {
	key := companyID + "/" + bookingRef + "/" + filename
	f.keys = append(f.keys, key)
	return key, nil
}

type fixture struct {
	svc     Service
	booking *fakeBooking
	archive *fakeArchive
	locks   *sessionLocks
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sessions, err := sessionstore.New(sessionstore.Config{Driver: sessionstore.DriverMemory, KeyPrefix: "test"}, nil)
	require.NoError(t, err)

	scheduler := intake.NewScheduler()
	t.Cleanup(scheduler.Close)

	booking := &fakeBooking{}
	archive := &fakeArchive{}
	logger := logs.Discard()
	coord := intake.NewCoordinator(booking, nil, scheduler, logger, intake.CoordinatorConfig{
		RedirectDelay: time.Millisecond,
		SuccessPath:   "/booking/success",
		FailurePath:   "/booking/failure",
	})

	actor := &intake.Actor{
		User: intake.User{ID: "u1", Name: "Priya", Email: "priya@acme.test", Role: intake.RoleCompanyAdmin},
		Companies: []intake.Company{{
			ID:   "c1",
			Name: "Acme",
			Offices: []intake.Office{
				{ID: "o1", Name: "Pune HQ", CollectionModes: []intake.CollectionMode{intake.CollectionAtClinic}},
			},
		}},
	}

	svc := New(Deps{
		Sessions:    sessions,
		Auth:        &fakeAuth{actor: actor},
		Settings:    fakeSettings{},
		Summaries:   fakeLookup{},
		Archive:     archive,
		Coordinator: coord,
		Captcha:     intake.NewCaptchaGate(codes.New(codes.DefaultConfig())),
		Logger:      logger,
		Now:         func() time.Time { return testNow },
	})

	return &fixture{
		svc:     svc,
		booking: booking,
		archive: archive,
		locks:   svc.(*bookingService).locks,
		ctx:     context.Background(),
	}
}

func (f *fixture) login(t *testing.T, sid string) *State {
	t.Helper()
	st, err := f.svc.Login(f.ctx, sid, intake.Credentials{Email: "priya@acme.test", Password: "secret"})
	require.NoError(t, err)
	return st
}

func strPtr(s string) *string { return &s }

// toReview logs in and fills one valid employee.
func (f *fixture) toReview(t *testing.T, sid string) *State {
	t.Helper()
	f.login(t, sid)

	_, err := f.svc.Advance(f.ctx, sid)
	require.NoError(t, err)
	_, err = f.svc.UpdateDetails(f.ctx, sid, intake.DetailsUpdate{
		OfficeSelection: strPtr("Pune HQ"),
		AppointmentDate: strPtr("2026-10-20"),
	})
	require.NoError(t, err)
	_, err = f.svc.Advance(f.ctx, sid)
	require.NoError(t, err)
	_, err = f.svc.AddEmployee(f.ctx, sid, intake.Employee{
		ID: "E1", Name: "A", Age: "30", Gender: intake.GenderMale, Email: "a@x.com", Phone: "9876543210",
	})
	require.NoError(t, err)
	st, err := f.svc.Advance(f.ctx, sid)
	require.NoError(t, err)
	require.Equal(t, intake.StepReviewConfirm, st.Step)
	return st
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	st, err := f.svc.State(f.ctx, "s1")
	require.NoError(t, err)
	assert.False(t, st.Authenticated)
	assert.Equal(t, intake.StepLogin, st.Step)

	_, err = f.svc.Login(f.ctx, "s1", intake.Credentials{Email: "priya@acme.test", Password: "wrong"})
	var ae *portal.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Invalid email or password", ae.Message)

	st = f.login(t, "s1")
	assert.True(t, st.Authenticated)
	assert.Equal(t, intake.StepChooseMode, st.Step)
	require.Len(t, st.Offices, 1)
	assert.Equal(t, []intake.CollectionMode{intake.CollectionAtClinic}, st.Offices[0].Modes)
	assert.Equal(t, "2026-10-18", st.MinAppointmentDate)
	require.NotNil(t, st.Draft)
	assert.Equal(t, intake.BookingOnlineForm, st.Draft.BookingMode)

	_, err = f.svc.Login(f.ctx, "s1", intake.Credentials{Email: "priya@acme.test", Password: "secret"})
	require.ErrorIs(t, err, intake.ErrAlreadyAuthenticated)

	_, err = f.svc.State(f.ctx, "")
	require.ErrorIs(t, err, ErrMissingSession)
	assert.Zero(t, f.locks.size())
}

func TestSubmitSuccess(t *testing.T) {
	f := newFixture(t)
	st := f.toReview(t, "s1")

	require.NotNil(t, st.Applicants)
	assert.Equal(t, 1, st.Applicants.Total)
	challenge := st.Draft.CaptchaChallenge
	require.NotEmpty(t, challenge)

	_, err := f.svc.Submit(f.ctx, "s1", "nope")
	require.ErrorIs(t, err, intake.ErrCaptchaMismatch)
	assert.Empty(t, f.booking.calls)

	out, err := f.svc.Submit(f.ctx, "s1", challenge)
	require.NoError(t, err)
	assert.Equal(t, intake.OutcomeSuccess, out.Status)
	assert.Equal(t, "BRN-1", out.BookingRef)
	assert.Equal(t, "/booking/success?brn=BRN-1", out.RedirectURL)

	st, err = f.svc.State(f.ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, intake.StepSuccess, st.Step)
	assert.False(t, st.GuardEnabled)

	sum, err := f.svc.Summary(f.ctx, "s1", "BRN-1")
	require.NoError(t, err)
	assert.Equal(t, "pending", sum.Status)
	assert.Equal(t, 1, sum.Applicants.Employees)

	remote, err := f.svc.Summary(f.ctx, "s1", "BRN-REMOTE")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", remote.Status)

	_, err = f.svc.Summary(f.ctx, "s1", "BRN-404")
	require.ErrorIs(t, err, ErrSummaryNotFound)
}

func TestSubmitInFlightBlocksMutations(t *testing.T) {
	f := newFixture(t)
	st := f.toReview(t, "s1")

	gate := make(chan struct{})
	f.booking.gate = gate

	done := make(chan *intake.Outcome, 1)
	go func() {
		out, err := f.svc.Submit(f.ctx, "s1", st.Draft.CaptchaChallenge)
		assert.NoError(t, err)
		done <- out
	}()

	require.Eventually(t, func() bool {
		st, err := f.svc.State(f.ctx, "s1")
		return err == nil && st.Submitting
	}, time.Second, 5*time.Millisecond)

	_, err := f.svc.Submit(f.ctx, "s1", st.Draft.CaptchaChallenge)
	require.ErrorIs(t, err, intake.ErrSubmissionInFlight)

	_, err = f.svc.JumpTo(f.ctx, "s1", intake.StepEmployeeInfo)
	require.ErrorIs(t, err, intake.ErrSubmissionInFlight)

	warn, err := f.svc.Unload(f.ctx, "s1")
	require.NoError(t, err)
	assert.False(t, warn)

	back, err := f.svc.NavigateBack(f.ctx, "s1", false)
	require.NoError(t, err)
	assert.Equal(t, intake.BackAllowed, back.Decision)

	close(gate)
	out := <-done
	assert.Equal(t, intake.OutcomeSuccess, out.Status)
	assert.Len(t, f.booking.calls, 1)
}

func TestSubmitFailureAndRetry(t *testing.T) {
	f := newFixture(t)
	st := f.toReview(t, "s1")

	f.booking.err = &intake.SubmitError{Kind: intake.FailureRejected, Message: "duplicate"}
	out, err := f.svc.Submit(f.ctx, "s1", st.Draft.CaptchaChallenge)
	require.NoError(t, err)
	assert.Equal(t, intake.OutcomeFailure, out.Status)
	assert.Equal(t, intake.FailureRejected, out.FailureKind)
	assert.NotContains(t, out.Message, "duplicate")

	snap, err := f.svc.Failure(f.ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, intake.FailureRejected, snap.Status)
	assert.Empty(t, snap.Draft.CaptchaChallenge)
	require.Len(t, snap.Draft.Employees, 1)

	st, err = f.svc.Retry(f.ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, intake.StepReviewConfirm, st.Step)

	_, err = f.svc.Failure(f.ctx, "s1")
	require.ErrorIs(t, err, ErrNoFailure)

	f.booking.err = nil
	out, err = f.svc.Submit(f.ctx, "s1", st.Draft.CaptchaChallenge)
	require.NoError(t, err)
	assert.Equal(t, intake.OutcomeSuccess, out.Status)

	require.Len(t, f.booking.calls, 2)
	assert.Equal(t, f.booking.calls[0].IdempotencyKey, f.booking.calls[1].IdempotencyKey)
}

func TestNavigateBackKeepsLogin(t *testing.T) {
	f := newFixture(t)
	f.login(t, "s1")
	_, err := f.svc.Advance(f.ctx, "s1")
	require.NoError(t, err)

	warn, err := f.svc.Unload(f.ctx, "s1")
	require.NoError(t, err)
	assert.True(t, warn)

	back, err := f.svc.NavigateBack(f.ctx, "s1", false)
	require.NoError(t, err)
	assert.Equal(t, intake.BackCancelled, back.Decision)
	assert.Equal(t, intake.StepAppointmentDetails, back.State.Step)

	back, err = f.svc.NavigateBack(f.ctx, "s1", true)
	require.NoError(t, err)
	assert.Equal(t, intake.BackCleared, back.Decision)

	st, err := f.svc.State(f.ctx, "s1")
	require.NoError(t, err)
	assert.True(t, st.Authenticated)
	assert.Equal(t, intake.StepChooseMode, st.Step)
	require.NotNil(t, st.Draft)
}

func TestUploadRoster(t *testing.T) {
	f := newFixture(t)
	f.login(t, "s1")

	_, err := f.svc.SetBookingMode(f.ctx, "s1", intake.BookingCSVUpload)
	require.NoError(t, err)
	_, err = f.svc.Advance(f.ctx, "s1")
	require.NoError(t, err)
	_, err = f.svc.UpdateDetails(f.ctx, "s1", intake.DetailsUpdate{OfficeSelection: strPtr("Pune HQ")})
	require.NoError(t, err)
	_, err = f.svc.Advance(f.ctx, "s1")
	require.NoError(t, err)

	_, err = f.svc.UploadRoster(f.ctx, "s1", "roster.txt", []byte("name,email\n"))
	require.Error(t, err)

	st, err := f.svc.UploadRoster(f.ctx, "s1", "roster.csv", []byte("name,email\nA,a@x.com\nB,b@x.com\n"))
	require.NoError(t, err)
	require.NotNil(t, st.Roster)
	assert.Equal(t, 2, st.Roster.Rows)

	st, err = f.svc.Advance(f.ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, intake.StepReviewConfirm, st.Step)
	require.NotNil(t, st.Applicants)
	assert.Equal(t, 2, st.Applicants.Employees)

	out, err := f.svc.Submit(f.ctx, "s1", st.Draft.CaptchaChallenge)
	require.NoError(t, err)
	assert.Equal(t, intake.OutcomeSuccess, out.Status)
	require.Len(t, f.booking.calls, 1)
	require.NotNil(t, f.booking.calls[0].Roster)
	assert.Equal(t, []string{"c1/BRN-1/roster.csv"}, f.archive.keys)
}

func TestSubject(t *testing.T) {
	step := intake.StepEmployeeInfo
	tests := []struct {
		event intake.Event
		want  string
	}{
		{intake.Event{Type: intake.EventStepChanged, SessionID: "s1", To: &step}, "wellness.intake.step.s1"},
		{intake.Event{Type: intake.EventNavigatedToSuccess, SessionID: "s1"}, "wellness.intake.outcome.success.s1"},
		{intake.Event{Type: intake.EventNavigatedToFailure, SessionID: "s1"}, "wellness.intake.outcome.failure.s1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Subject("", tt.event))
	}
	assert.Equal(t, "acme.intake.outcome.>", OutcomeSubjects("acme"))
}

func TestSessionLocksReleaseOnce(t *testing.T) {
	l := newSessionLocks()
	unlock := l.lock("s1")
	assert.Equal(t, 1, l.size())
	unlock()
	unlock()
	assert.Zero(t, l.size())
}
