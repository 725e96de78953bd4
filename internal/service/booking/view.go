package booking

import (
	"github.com/Alijeyrad/wellness_intake/internal/intake"
)

// State is the client-facing snapshot of one intake session.
type State struct {
	SessionID     string       `json:"session_id"`
	Step          intake.Step  `json:"step"`
	Authenticated bool         `json:"authenticated"`
	User          *intake.User `json:"user,omitempty"`

	Offices                []OfficeOption       `json:"offices,omitempty"`
	Draft                  *intake.BookingDraft `json:"draft,omitempty"`
	Roster                 *RosterView          `json:"roster,omitempty"`
	MinAppointmentDate     string               `json:"min_appointment_date,omitempty"`
	OfficeReselectRequired bool                 `json:"office_reselect_required"`

	// Applicants is only filled on the review step.
	Applicants *intake.ApplicantCounts `json:"applicants,omitempty"`

	Submitting   bool `json:"submitting"`
	GuardEnabled bool `json:"guard_enabled"`
}

// OfficeOption is one office the actor may book for, with the collection
// modes it supports under the current settings.
type OfficeOption struct {
	CompanyID   string                  `json:"company_id"`
	CompanyName string                  `json:"company_name"`
	OfficeID    string                  `json:"office_id"`
	OfficeName  string                  `json:"office_name"`
	Modes       []intake.CollectionMode `json:"collection_modes"`
}

type RosterView struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// BackResult answers a browser back action.
type BackResult struct {
	Decision intake.BackDecision `json:"decision"`
	State    *State              `json:"state"`
}

func stateOf(w *intake.Workflow, submitting bool) *State {
	st := &State{
		SessionID:    w.SessionID(),
		Step:         w.Step(),
		Submitting:   submitting,
		GuardEnabled: w.Guard(submitting).Enabled(),
	}

	actor := w.Actor()
	if actor == nil {
		return st
	}
	st.Authenticated = true
	user := actor.User
	st.User = &user

	settings := w.Settings()
	for _, ref := range actor.PermittedOffices() {
		st.Offices = append(st.Offices, OfficeOption{
			CompanyID:   ref.CompanyID,
			CompanyName: ref.CompanyName,
			OfficeID:    ref.Office.ID,
			OfficeName:  ref.Office.Name,
			Modes:       settings.SupportedModes(ref.Office),
		})
	}

	st.MinAppointmentDate = w.MinAppointmentDate().Format(intake.DateLayout)
	st.OfficeReselectRequired = w.OfficeReselectRequired()

	if d := w.Draft(); d != nil {
		d.CaptchaInput = ""
		st.Draft = d
		if w.Step() == intake.StepReviewConfirm {
			counts := intake.CountApplicants(intake.BuildPayload(*d, intake.CompanyContext{}, ""))
			if r := w.Roster(); r != nil && d.BookingMode == intake.BookingCSVUpload {
				counts.Employees += r.Rows
				counts.Total += r.Rows
			}
			st.Applicants = &counts
		}
	}
	if r := w.Roster(); r != nil {
		st.Roster = &RosterView{Name: r.Name, Rows: r.Rows}
	}
	return st
}
