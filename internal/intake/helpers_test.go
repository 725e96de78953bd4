package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/wellness_intake/pkg/sessionstore"
)

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

// seqCodes hands out predictable captcha challenges.
type seqCodes struct {
	mu sync.Mutex
	n  int
}

func (s *seqCodes) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("Cap%03d", s.n), nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type failingSink struct{}

func (failingSink) Publish(context.Context, Event) error {
	return errors.New("nats: connection closed")
}

// brokenStore fails Remove for a single key and passes everything else through.
type brokenStore struct {
	SessionStore
	key string
}

func (b brokenStore) Remove(ctx context.Context, key string) error {
	if key == b.key {
		return errors.New("redis: connection reset")
	}
	return b.SessionStore.Remove(ctx, key)
}

func testActor() *Actor {
	return &Actor{
		User: User{ID: "u1", Name: "Priya", Email: "priya@acme.test", Phone: "9876543210", Role: RoleCompanyAdmin},
		Companies: []Company{{
			ID:   "c1",
			Name: "Acme",
			Offices: []Office{
				{ID: "o1", Name: "Pune HQ", CollectionModes: []CollectionMode{CollectionAtHome, CollectionAtClinic}},
				{ID: "o2", Name: "Mumbai", CollectionModes: []CollectionMode{"At Clinic"}},
				{ID: "o3", Name: "Delhi"},
			},
		}},
	}
}

func testSettings() Settings {
	return Settings{BookingOpenOffsetDays: 2}
}

func validEmployee(id string) Employee {
	return Employee{
		ID:     id,
		Name:   "A",
		Age:    "30",
		Gender: GenderMale,
		Email:  "a@x.com",
		Phone:  "9876543210",
	}
}

func validDependent() Dependent {
	return Dependent{Name: "B", Age: "8", Gender: GenderFemale, Phone: "9876500000", Email: "b@x.com"}
}

type harness struct {
	store  *sessionstore.Memory
	sink   *recordingSink
	codes  *seqCodes
	actor  *Actor
	deps   Deps
	w      *Workflow
	ctx    context.Context
	sessID string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  sessionstore.NewMemory(),
		sink:   &recordingSink{},
		codes:  &seqCodes{},
		actor:  testActor(),
		ctx:    context.Background(),
		sessID: "sess-1",
	}
	h.deps = Deps{
		Store:     h.store,
		Captcha:   NewCaptchaGate(h.codes),
		Events:    h.sink,
		Now:       func() time.Time { return testNow },
		SessionID: h.sessID,
	}

	w, err := Load(h.ctx, h.deps, nil, Settings{})
	require.NoError(t, err)
	require.NoError(t, w.Authenticate(h.ctx, h.actor, testSettings()))
	h.w = w
	return h
}

// reload simulates a page reload against the same store.
func (h *harness) reload(t *testing.T, actor *Actor) *Workflow {
	t.Helper()
	w, err := Load(h.ctx, h.deps, actor, testSettings())
	require.NoError(t, err)
	return w
}

func strPtr(s string) *string { return &s }

// toEmployeeInfo drives a fresh workflow to the EmployeeInfo step.
func (h *harness) toEmployeeInfo(t *testing.T, mode CollectionMode) {
	t.Helper()
	_, err := h.w.Advance(h.ctx)
	require.NoError(t, err)
	require.NoError(t, h.w.UpdateDetails(h.ctx, DetailsUpdate{
		OfficeSelection: strPtr("Pune HQ"),
		CollectionMode:  strPtr(string(mode)),
		AppointmentDate: strPtr("2026-10-20"),
	}))
	step, err := h.w.Advance(h.ctx)
	require.NoError(t, err)
	require.Equal(t, StepEmployeeInfo, step)
}

// toReview drives a fresh workflow to ReviewConfirm with one valid employee.
func (h *harness) toReview(t *testing.T) {
	t.Helper()
	h.toEmployeeInfo(t, CollectionAtClinic)
	_, err := h.w.AddEmployee(h.ctx, validEmployee("E1"))
	require.NoError(t, err)
	step, err := h.w.Advance(h.ctx)
	require.NoError(t, err)
	require.Equal(t, StepReviewConfirm, step)
}
