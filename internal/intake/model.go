package intake

import (
	"slices"
	"strings"
)

type CollectionMode string

const (
	CollectionAtHome   CollectionMode = "at_home"
	CollectionAtClinic CollectionMode = "at_clinic"
)

var allCollectionModes = []CollectionMode{CollectionAtHome, CollectionAtClinic}

// ParseCollectionMode accepts the spellings offices are configured with
// ("At Home", "at-home", "AT_CLINIC") and returns the canonical token.
func ParseCollectionMode(s string) (CollectionMode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch CollectionMode(s) {
	case CollectionAtHome, "athome", "home":
		return CollectionAtHome, true
	case CollectionAtClinic, "atclinic", "clinic":
		return CollectionAtClinic, true
	}
	return "", false
}

type BookingMode string

const (
	BookingOnlineForm BookingMode = "online_form"
	BookingCSVUpload  BookingMode = "csv_upload"
)

func (m BookingMode) Valid() bool {
	return m == BookingOnlineForm || m == BookingCSVUpload
}

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// ConditionOther requires the free-text OtherCondition to be filled in.
const ConditionOther = "Other"

// KnownConditions is the tag set offered for employees and dependents.
var KnownConditions = []string{
	"Diabetes",
	"Hypertension",
	"Thyroid",
	"Asthma",
	"Heart Disease",
	"Allergy",
	"Cholesterol",
	ConditionOther,
}

// Credentials are only ever passed through to the auth service.
type Credentials struct {
	Email    string
	Password string
}

// BookingDraft is the in-progress booking for one client session.
type BookingDraft struct {
	OfficeSelection  string         `json:"office_selection,omitempty"`
	CollectionMode   CollectionMode `json:"collection_mode,omitempty"`
	AppointmentDate  string         `json:"appointment_date,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	BookingMode      BookingMode    `json:"booking_mode"`
	Employees        []Employee     `json:"employees"`
	CaptchaInput     string         `json:"captcha_input,omitempty"`
	CaptchaChallenge string         `json:"captcha_challenge,omitempty"`
}

type Employee struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Age            string      `json:"age"`
	Gender         Gender      `json:"gender"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone"`
	Designation    string      `json:"designation,omitempty"`
	HomeAddress    string      `json:"home_address,omitempty"`
	Conditions     []string    `json:"conditions,omitempty"`
	OtherCondition string      `json:"other_condition,omitempty"`
	HasDependents  bool        `json:"has_dependents"`
	Dependents     []Dependent `json:"dependents,omitempty"`
	Remarks        string      `json:"remarks,omitempty"`
}

type Dependent struct {
	Name           string   `json:"name"`
	Age            string   `json:"age"`
	Gender         Gender   `json:"gender"`
	Phone          string   `json:"phone"`
	Email          string   `json:"email"`
	Conditions     []string `json:"conditions,omitempty"`
	OtherCondition string   `json:"other_condition,omitempty"`
}

// Clone returns a deep copy so snapshots never alias live state.
func (d BookingDraft) Clone() BookingDraft {
	out := d
	out.Employees = make([]Employee, len(d.Employees))
	for i, e := range d.Employees {
		out.Employees[i] = e.clone()
	}
	return out
}

func (e Employee) clone() Employee {
	out := e
	out.Conditions = slices.Clone(e.Conditions)
	out.Dependents = make([]Dependent, len(e.Dependents))
	for i, d := range e.Dependents {
		d.Conditions = slices.Clone(d.Conditions)
		out.Dependents[i] = d
	}
	if e.Dependents == nil {
		out.Dependents = nil
	}
	return out
}

// isBlank reports a wholly-empty row: nothing identifying was entered.
func (e Employee) isBlank() bool {
	return strings.TrimSpace(e.Name) == "" &&
		strings.TrimSpace(e.Email) == "" &&
		strings.TrimSpace(e.Phone) == ""
}

// RosterFile is an uploaded employee list kept until submission.
type RosterFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
	Rows        int    `json:"rows"`
}

// ---------------------------------------------------------------------------
// Actor: the authenticated company user and its company/office graph
// ---------------------------------------------------------------------------

const (
	RoleCompanyAdmin = "company_admin"
	// RoleOfficeAdmin only sees the offices listed in AllowedOfficeIDs.
	RoleOfficeAdmin = "office_admin"
)

type User struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone,omitempty"`
	Role             string   `json:"role"`
	AllowedOfficeIDs []string `json:"allowed_office_ids,omitempty"`
}

func (u User) Restricted() bool {
	return u.Role == RoleOfficeAdmin
}

type Office struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	CollectionModes []CollectionMode `json:"collection_modes,omitempty"`
}

type Company struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Offices []Office `json:"offices"`
}

type Actor struct {
	User      User      `json:"user"`
	Companies []Company `json:"companies"`
}

// OfficeRef is an office together with the company it belongs to.
type OfficeRef struct {
	CompanyID   string
	CompanyName string
	Office      Office
}

// PermittedOffices is the role-filtered office list the actor may book for.
// Its order does not match any company's full office list.
func (a *Actor) PermittedOffices() []OfficeRef {
	if a == nil {
		return nil
	}
	var out []OfficeRef
	for _, c := range a.Companies {
		for _, o := range c.Offices {
			if a.User.Restricted() && !slices.Contains(a.User.AllowedOfficeIDs, o.ID) {
				continue
			}
			out = append(out, OfficeRef{CompanyID: c.ID, CompanyName: c.Name, Office: o})
		}
	}
	return out
}

// PermittedOffice looks an office up by display name within the permitted set.
func (a *Actor) PermittedOffice(name string) (OfficeRef, bool) {
	name = strings.TrimSpace(name)
	for _, ref := range a.PermittedOffices() {
		if ref.Office.Name == name {
			return ref, true
		}
	}
	return OfficeRef{}, false
}

// CompanyContext is the company/office pair a submission is filed under.
type CompanyContext struct {
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	OfficeID    string `json:"office_id"`
	OfficeName  string `json:"office_name"`
}

// ResolveOffice maps the office display name to ids by searching each
// company's full office graph. Office names are unique within a company.
func (a *Actor) ResolveOffice(name string) (CompanyContext, bool) {
	if a == nil {
		return CompanyContext{}, false
	}
	name = strings.TrimSpace(name)
	for _, c := range a.Companies {
		for _, o := range c.Offices {
			if o.Name == name {
				return CompanyContext{
					CompanyID:   c.ID,
					CompanyName: c.Name,
					OfficeID:    o.ID,
					OfficeName:  o.Name,
				}, true
			}
		}
	}
	return CompanyContext{}, false
}

// Settings are the booking rules supplied by the settings service.
type Settings struct {
	BookingOpenOffsetDays int                         `json:"booking_open_offset_days"`
	OfficeModes           map[string][]CollectionMode `json:"office_modes,omitempty"`
}

// SupportedModes returns the canonical collection modes an office offers. A
// settings override wins over the office's own list; no configuration means
// both.
func (s Settings) SupportedModes(o Office) []CollectionMode {
	if modes := canonicalModes(s.OfficeModes[o.ID]); len(modes) > 0 {
		return modes
	}
	if modes := canonicalModes(o.CollectionModes); len(modes) > 0 {
		return modes
	}
	return allCollectionModes
}

func canonicalModes(in []CollectionMode) []CollectionMode {
	var out []CollectionMode
	for _, m := range in {
		if c, ok := ParseCollectionMode(string(m)); ok && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
