package intake

import (
	"slices"
	"strconv"
	"strings"
)

// BookingPayload is the wire body sent to the booking service.
type BookingPayload struct {
	CompanyID        string            `json:"company_id"`
	OfficeID         string            `json:"office_id"`
	OfficeName       string            `json:"office_name"`
	CollectionMode   CollectionMode    `json:"collection_mode"`
	AppointmentDate  *string           `json:"appointment_date"`
	Notes            string            `json:"notes,omitempty"`
	BookingMode      BookingMode       `json:"booking_mode"`
	IdempotencyToken string            `json:"idempotency_token"`
	Employees        []EmployeePayload `json:"employees"`
}

type EmployeePayload struct {
	EmployeeID        string             `json:"employee_id"`
	Name              string             `json:"name"`
	Age               int                `json:"age"`
	Gender            Gender             `json:"gender"`
	Email             string             `json:"email"`
	Phone             string             `json:"phone"`
	Designation       string             `json:"designation,omitempty"`
	HomeAddress       *string            `json:"home_address"`
	MedicalConditions []string           `json:"medical_conditions"`
	Remarks           string             `json:"remarks,omitempty"`
	Dependents        []DependentPayload `json:"dependents"`
}

type DependentPayload struct {
	Name              string   `json:"name"`
	Age               int      `json:"age"`
	Gender            Gender   `json:"gender"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	MedicalConditions []string `json:"medical_conditions"`
}

// BuildPayload normalizes a validated draft for submission. Wholly blank
// employee rows are dropped, the free-text "Other" condition is folded into
// the condition list, and home addresses are only sent for at-home collection.
func BuildPayload(d BookingDraft, company CompanyContext, token string) BookingPayload {
	mode := normalizeMode(d.CollectionMode)

	p := BookingPayload{
		CompanyID:        company.CompanyID,
		OfficeID:         company.OfficeID,
		OfficeName:       company.OfficeName,
		CollectionMode:   mode,
		Notes:            strings.TrimSpace(d.Notes),
		BookingMode:      d.BookingMode,
		IdempotencyToken: token,
		Employees:        []EmployeePayload{},
	}
	if d.AppointmentDate != "" {
		date := d.AppointmentDate
		p.AppointmentDate = &date
	}

	var sharedAddress string
	for _, e := range d.Employees {
		if e.isBlank() {
			continue
		}

		ep := EmployeePayload{
			EmployeeID:        strings.TrimSpace(e.ID),
			Name:              strings.TrimSpace(e.Name),
			Age:               toAge(e.Age),
			Gender:            e.Gender,
			Email:             strings.TrimSpace(e.Email),
			Phone:             strings.TrimSpace(e.Phone),
			Designation:       strings.TrimSpace(e.Designation),
			MedicalConditions: NormalizeConditions(e.Conditions, e.OtherCondition),
			Remarks:           strings.TrimSpace(e.Remarks),
			Dependents:        []DependentPayload{},
		}

		if mode == CollectionAtHome {
			addr := strings.TrimSpace(e.HomeAddress)
			if len(p.Employees) == 0 {
				sharedAddress = addr
			}
			if addr == "" {
				addr = sharedAddress
			}
			ep.HomeAddress = &addr
		}

		if e.HasDependents {
			for _, dep := range e.Dependents {
				ep.Dependents = append(ep.Dependents, DependentPayload{
					Name:              strings.TrimSpace(dep.Name),
					Age:               toAge(dep.Age),
					Gender:            dep.Gender,
					Email:             strings.TrimSpace(dep.Email),
					Phone:             strings.TrimSpace(dep.Phone),
					MedicalConditions: NormalizeConditions(dep.Conditions, dep.OtherCondition),
				})
			}
		}

		p.Employees = append(p.Employees, ep)
	}

	return p
}

// NormalizeConditions replaces the "Other" tag with its free-text value,
// appended at the end.
func NormalizeConditions(conditions []string, other string) []string {
	out := make([]string, 0, len(conditions))
	hasOther := false
	for _, c := range conditions {
		if c == ConditionOther {
			hasOther = true
			continue
		}
		out = append(out, c)
	}
	if other = strings.TrimSpace(other); hasOther && other != "" && !slices.Contains(out, other) {
		out = append(out, other)
	}
	return out
}

func normalizeMode(m CollectionMode) CollectionMode {
	if canonical, ok := ParseCollectionMode(string(m)); ok {
		return canonical
	}
	return CollectionMode(strings.ToLower(strings.TrimSpace(string(m))))
}

func toAge(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ApplicantCounts are the number of people covered by a booking.
type ApplicantCounts struct {
	Employees  int `json:"employees"`
	Dependents int `json:"dependents"`
	Total      int `json:"total"`
}

// CountApplicants derives counts from a payload when the booking service
// does not return them.
func CountApplicants(p BookingPayload) ApplicantCounts {
	var c ApplicantCounts
	for _, e := range p.Employees {
		c.Employees++
		c.Dependents += len(e.Dependents)
	}
	c.Total = c.Employees + c.Dependents
	return c
}
