package intake

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutActorStaysOnLogin(t *testing.T) {
	h := newHarness(t)

	w, err := Load(h.ctx, h.deps, nil, Settings{})
	require.NoError(t, err)
	assert.Equal(t, StepLogin, w.Step())

	_, err = w.Advance(h.ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, StepChooseMode, h.w.Step())
	require.NotNil(t, h.w.Draft())
	assert.Equal(t, BookingOnlineForm, h.w.Draft().BookingMode)

	token, err := h.w.IdempotencyToken(h.ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	err = h.w.Authenticate(h.ctx, h.actor, testSettings())
	assert.ErrorIs(t, err, ErrAlreadyAuthenticated)
	assert.Equal(t, StepChooseMode, h.w.Step())

	changes := h.sink.ofType(EventStepChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, StepLogin, *changes[0].From)
	assert.Equal(t, StepChooseMode, *changes[0].To)
}

func TestAdvanceFromEmployeeInfo(t *testing.T) {
	tests := []struct {
		name      string
		mode      CollectionMode
		employees []Employee
		wantStep  Step
		wantField string
	}{
		{
			name:      "at clinic complete employee advances",
			mode:      CollectionAtClinic,
			employees: []Employee{validEmployee("E1")},
			wantStep:  StepReviewConfirm,
		},
		{
			name:      "at home without first address blocks",
			mode:      CollectionAtHome,
			employees: []Employee{validEmployee("E1")},
			wantStep:  StepEmployeeInfo,
			wantField: "homeAddress",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.toEmployeeInfo(t, tt.mode)
			for _, e := range tt.employees {
				_, err := h.w.AddEmployee(h.ctx, e)
				require.NoError(t, err)
			}
			before := h.w.Draft()

			step, err := h.w.Advance(h.ctx)
			assert.Equal(t, tt.wantStep, step)
			assert.Equal(t, tt.wantStep, h.w.Step())
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.NotEmpty(t, h.w.Draft().CaptchaChallenge)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Equal(t, before, h.w.Draft(), "failed advance must not mutate the draft")
		})
	}
}

func TestAdvanceFromReviewRequiresSubmit(t *testing.T) {
	h := newHarness(t)
	h.toReview(t)

	_, err := h.w.Advance(h.ctx)
	assert.ErrorIs(t, err, ErrSubmitRequired)
	assert.Equal(t, StepReviewConfirm, h.w.Step())
}

func TestRetreat(t *testing.T) {
	h := newHarness(t)

	step, err := h.w.Retreat(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, StepChooseMode, step, "retreat from the first form step is a no-op")

	h.toEmployeeInfo(t, CollectionAtClinic)
	_, err = h.w.AddEmployee(h.ctx, Employee{ID: "E1", Name: "half done"})
	require.NoError(t, err)

	step, err = h.w.Retreat(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, StepAppointmentDetails, step)
	assert.Len(t, h.w.Draft().Employees, 1, "retreat keeps entered data")
}

func TestJumpTo(t *testing.T) {
	h := newHarness(t)

	_, err := h.w.JumpTo(h.ctx, StepChooseMode)
	assert.ErrorIs(t, err, ErrJumpNotAllowed)

	h.toReview(t)
	first := h.w.Draft().CaptchaChallenge

	_, err = h.w.JumpTo(h.ctx, StepLogin)
	assert.ErrorIs(t, err, ErrJumpNotAllowed)

	step, err := h.w.JumpTo(h.ctx, StepAppointmentDetails)
	require.NoError(t, err)
	assert.Equal(t, StepAppointmentDetails, step)
	assert.Equal(t, "Pune HQ", h.w.Draft().OfficeSelection)

	_, err = h.w.Advance(h.ctx)
	require.NoError(t, err)
	_, err = h.w.Advance(h.ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, h.w.Draft().CaptchaChallenge, "re-entering review issues a new challenge")
}

func TestDependentToggle(t *testing.T) {
	h := newHarness(t)
	h.toEmployeeInfo(t, CollectionAtClinic)

	idx, err := h.w.AddEmployee(h.ctx, validEmployee("E1"))
	require.NoError(t, err)

	_, err = h.w.AddDependent(h.ctx, idx, validDependent())
	assert.ErrorIs(t, err, ErrDependentsDisabled)

	require.NoError(t, h.w.SetHasDependents(h.ctx, idx, true))
	_, err = h.w.AddDependent(h.ctx, idx, validDependent())
	require.NoError(t, err)

	err = h.w.SetHasDependents(h.ctx, idx, false)
	assert.ErrorIs(t, err, ErrDependentsPresent)
	e := h.w.Draft().Employees[idx]
	assert.True(t, e.HasDependents)
	assert.Len(t, e.Dependents, 1)

	require.NoError(t, h.w.RemoveDependent(h.ctx, idx, 0))
	require.NoError(t, h.w.SetHasDependents(h.ctx, idx, false))
}

func TestAppendGating(t *testing.T) {
	h := newHarness(t)
	h.toEmployeeInfo(t, CollectionAtClinic)

	_, err := h.w.AddEmployee(h.ctx, Employee{ID: "E1", Name: "in progress"})
	require.NoError(t, err)

	_, err = h.w.AddEmployee(h.ctx, validEmployee("E2"))
	assert.ErrorIs(t, err, ErrTailIncomplete)
	assert.Len(t, h.w.Draft().Employees, 1)

	require.NoError(t, h.w.UpdateEmployee(h.ctx, 0, validEmployee("E1")))
	require.NoError(t, h.w.SetHasDependents(h.ctx, 0, true))

	_, err = h.w.AddEmployee(h.ctx, validEmployee("E2"))
	assert.ErrorIs(t, err, ErrTailIncomplete, "an employee with dependents on but none added is not fully complete")

	_, err = h.w.AddDependent(h.ctx, 0, Dependent{Name: "kid"})
	require.NoError(t, err)
	_, err = h.w.AddDependent(h.ctx, 0, validDependent())
	assert.ErrorIs(t, err, ErrTailIncomplete)

	require.NoError(t, h.w.UpdateDependent(h.ctx, 0, 0, validDependent()))
	_, err = h.w.AddDependent(h.ctx, 0, validDependent())
	require.NoError(t, err)

	idx, err := h.w.AddEmployee(h.ctx, validEmployee("E2"))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestMutationFieldRules(t *testing.T) {
	h := newHarness(t)
	h.toEmployeeInfo(t, CollectionAtClinic)

	bad := validEmployee("E1")
	bad.Phone = "12345"
	_, err := h.w.AddEmployee(h.ctx, bad)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "phone", ve.Field)
	assert.ErrorIs(t, err, ErrInvalidPhone)
	assert.Empty(t, h.w.Draft().Employees)

	err = h.w.UpdateEmployee(h.ctx, 3, validEmployee("E1"))
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestMutationsAreStepScoped(t *testing.T) {
	h := newHarness(t)

	_, err := h.w.AddEmployee(h.ctx, validEmployee("E1"))
	assert.ErrorIs(t, err, ErrWrongStep)

	err = h.w.UpdateDetails(h.ctx, DetailsUpdate{Notes: strPtr("x")})
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestSingleModeOfficeLocksMode(t *testing.T) {
	h := newHarness(t)
	_, err := h.w.Advance(h.ctx)
	require.NoError(t, err)

	require.NoError(t, h.w.UpdateDetails(h.ctx, DetailsUpdate{
		OfficeSelection: strPtr("Pune HQ"),
		CollectionMode:  strPtr("at_home"),
	}))
	assert.Equal(t, CollectionAtHome, h.w.Draft().CollectionMode)

	require.NoError(t, h.w.UpdateDetails(h.ctx, DetailsUpdate{OfficeSelection: strPtr("Mumbai")}))
	assert.Equal(t, CollectionAtClinic, h.w.Draft().CollectionMode, "single mode office forces its mode")

	err = h.w.UpdateDetails(h.ctx, DetailsUpdate{CollectionMode: strPtr("at_home")})
	assert.ErrorIs(t, err, ErrModeLocked)
	assert.Equal(t, CollectionAtClinic, h.w.Draft().CollectionMode)
}

func TestSettingsOverrideModes(t *testing.T) {
	h := newHarness(t)
	settings := Settings{
		BookingOpenOffsetDays: 2,
		OfficeModes:           map[string][]CollectionMode{"o1": {CollectionAtHome}},
	}
	w, err := Load(h.ctx, h.deps, h.actor, settings)
	require.NoError(t, err)
	_, err = w.Advance(h.ctx)
	require.NoError(t, err)

	require.NoError(t, w.UpdateDetails(h.ctx, DetailsUpdate{OfficeSelection: strPtr("Pune HQ")}))
	assert.Equal(t, CollectionAtHome, w.Draft().CollectionMode)
}

func TestUpdateDetailsIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	_, err := h.w.Advance(h.ctx)
	require.NoError(t, err)

	err = h.w.UpdateDetails(h.ctx, DetailsUpdate{
		OfficeSelection: strPtr("Pune HQ"),
		AppointmentDate: strPtr("2026-10-16"),
	})
	assert.ErrorIs(t, err, ErrDateTooEarly)
	assert.Empty(t, h.w.Draft().OfficeSelection)

	err = h.w.UpdateDetails(h.ctx, DetailsUpdate{OfficeSelection: strPtr("Chennai")})
	assert.ErrorIs(t, err, ErrOfficeNotPermitted)
}

func TestResumeRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.toEmployeeInfo(t, CollectionAtHome)

	e := validEmployee("E1")
	e.HomeAddress = "12 MG Road"
	e.Conditions = []string{"Allergy", "Other"}
	e.OtherCondition = "Pollen"
	_, err := h.w.AddEmployee(h.ctx, e)
	require.NoError(t, err)
	require.NoError(t, h.w.SetHasDependents(h.ctx, 0, true))
	_, err = h.w.AddDependent(h.ctx, 0, validDependent())
	require.NoError(t, err)

	persisted := h.w.Draft()

	restored := h.reload(t, h.actor)
	assert.Equal(t, StepEmployeeInfo, restored.Step())
	assert.Equal(t, persisted, restored.Draft())
	assert.False(t, restored.OfficeReselectRequired())

	name, ok, err := h.store.Get(h.ctx, KeySelectedOfficeName)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Pune HQ", string(name))

	date, ok, err := h.store.Get(h.ctx, KeyAppointmentDate)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-10-20", string(date))
}

func TestResumeDropsOfficeNoLongerPermitted(t *testing.T) {
	h := newHarness(t)
	h.toEmployeeInfo(t, CollectionAtClinic)
	_, err := h.w.AddEmployee(h.ctx, validEmployee("E1"))
	require.NoError(t, err)
	persisted := h.w.Draft()

	restricted := testActor()
	restricted.User.Role = RoleOfficeAdmin
	restricted.User.AllowedOfficeIDs = []string{"o2"}

	restored := h.reload(t, restricted)
	assert.True(t, restored.OfficeReselectRequired())
	assert.Equal(t, StepAppointmentDetails, restored.Step())

	want := *persisted
	want.OfficeSelection = ""
	assert.Equal(t, &want, restored.Draft())

	_, ok, err := h.store.Get(h.ctx, KeySelectedOfficeName)
	require.NoError(t, err)
	assert.False(t, ok)

	again := h.reload(t, restricted)
	assert.True(t, again.OfficeReselectRequired(), "reselect survives a second reload")
	assert.Equal(t, StepAppointmentDetails, again.Step())
	assert.Equal(t, &want, again.Draft())

	step, err := again.Advance(h.ctx)
	require.Error(t, err, "advance needs an office again")
	assert.Equal(t, StepAppointmentDetails, step)

	require.NoError(t, again.UpdateDetails(h.ctx, DetailsUpdate{OfficeSelection: strPtr("Mumbai")}))
	assert.False(t, again.OfficeReselectRequired())
	_, ok, err = h.store.Get(h.ctx, KeyOfficeReselect)
	require.NoError(t, err)
	assert.False(t, ok)

	settled := h.reload(t, restricted)
	assert.False(t, settled.OfficeReselectRequired())
	assert.Equal(t, StepAppointmentDetails, settled.Step())
	step, err = settled.Advance(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, StepEmployeeInfo, step)
}

func TestStepEventFailureIsLogged(t *testing.T) {
	h := newHarness(t)

	var buf bytes.Buffer
	deps := h.deps
	deps.Events = failingSink{}
	deps.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	w, err := Load(h.ctx, deps, nil, Settings{})
	require.NoError(t, err)
	require.NoError(t, w.Authenticate(h.ctx, h.actor, testSettings()))

	assert.Equal(t, StepChooseMode, w.Step())
	assert.Contains(t, buf.String(), "failed to publish step event")
	assert.Contains(t, buf.String(), "to=choose_mode")
}

func TestNavigateBack(t *testing.T) {
	h := newHarness(t)
	_, err := h.w.Advance(h.ctx)
	require.NoError(t, err)

	decision, err := h.w.NavigateBack(h.ctx, false, false)
	require.NoError(t, err)
	assert.Equal(t, BackCancelled, decision)
	assert.NotNil(t, h.w.Draft())

	decision, err = h.w.NavigateBack(h.ctx, true, false)
	require.NoError(t, err)
	assert.Equal(t, BackAllowed, decision, "guard is off while submitting")

	decision, err = h.w.NavigateBack(h.ctx, false, true)
	require.NoError(t, err)
	assert.Equal(t, BackCleared, decision)
	assert.Empty(t, h.store.Keys())
}

func TestStartNewIssuesNewToken(t *testing.T) {
	h := newHarness(t)
	before, err := h.w.IdempotencyToken(h.ctx)
	require.NoError(t, err)

	h.toEmployeeInfo(t, CollectionAtClinic)
	require.NoError(t, h.w.StartNew(h.ctx))

	after, err := h.w.IdempotencyToken(h.ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.Equal(t, StepChooseMode, h.w.Step())
	assert.Empty(t, h.w.Draft().OfficeSelection)
}

func TestIdempotencyTokenSurvivesEdits(t *testing.T) {
	h := newHarness(t)
	before, err := h.w.IdempotencyToken(h.ctx)
	require.NoError(t, err)

	h.toReview(t)
	_, err = h.w.JumpTo(h.ctx, StepEmployeeInfo)
	require.NoError(t, err)
	require.NoError(t, h.w.UpdateEmployee(h.ctx, 0, validEmployee("E1-renamed")))

	after, err := h.reload(t, h.actor).IdempotencyToken(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRosterOnlyForCSV(t *testing.T) {
	h := newHarness(t)
	h.toEmployeeInfo(t, CollectionAtClinic)

	err := h.w.AttachRoster(h.ctx, RosterFile{Name: "staff.csv", Rows: 2})
	assert.ErrorIs(t, err, ErrRosterNotExpected)

	require.NoError(t, h.w.StartNew(h.ctx))
	require.NoError(t, h.w.SetBookingMode(h.ctx, BookingCSVUpload))
	h.toEmployeeInfo(t, CollectionAtClinic)

	_, err = h.w.Advance(h.ctx)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "roster", ve.Field)

	require.NoError(t, h.w.AttachRoster(h.ctx, RosterFile{Name: "staff.csv", Data: []byte("name,email\n"), Rows: 2}))
	step, err := h.w.Advance(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, StepReviewConfirm, step)

	restored := h.reload(t, h.actor)
	require.NotNil(t, restored.Roster())
	assert.Equal(t, "staff.csv", restored.Roster().Name)
}
