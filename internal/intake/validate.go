package intake

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of appointment dates.
const DateLayout = "2006-01-02"

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// ValidateChooseMode gates leaving ChooseMode.
func ValidateChooseMode(d BookingDraft) error {
	if !d.BookingMode.Valid() {
		return fieldError(StepChooseMode, "bookingMode", ErrUnknownBookingMode)
	}
	return nil
}

// ValidateAppointmentDetails gates leaving AppointmentDetails. The office must
// be one the actor may book for, and a collection mode must be chosen when the
// office offers more than one.
func ValidateAppointmentDetails(d BookingDraft, actor *Actor, settings Settings, today time.Time) error {
	if blank(d.OfficeSelection) {
		return fieldError(StepAppointmentDetails, "officeSelection", errRequired)
	}
	ref, ok := actor.PermittedOffice(d.OfficeSelection)
	if !ok {
		return fieldError(StepAppointmentDetails, "officeSelection", ErrOfficeNotPermitted)
	}

	modes := settings.SupportedModes(ref.Office)
	if d.CollectionMode == "" {
		if len(modes) > 1 {
			return fieldError(StepAppointmentDetails, "collectionMode", errModeRequired)
		}
	} else if !slices.Contains(modes, d.CollectionMode) {
		return fieldError(StepAppointmentDetails, "collectionMode", ErrModeNotSupported)
	}

	if d.AppointmentDate != "" {
		if err := checkAppointmentDate(d.AppointmentDate, settings, today); err != nil {
			return fieldError(StepAppointmentDetails, "appointmentDate", err)
		}
	}
	return nil
}

// ValidateEmployeeInfo gates leaving EmployeeInfo. Wholly blank rows are
// ignored for CSV uploads, where the roster file carries the employees.
func ValidateEmployeeInfo(d BookingDraft, hasRoster bool) error {
	csv := d.BookingMode == BookingCSVUpload
	if csv && !hasRoster {
		return fieldError(StepEmployeeInfo, "roster", errRosterRequired)
	}

	position := 0
	for i, e := range d.Employees {
		if csv && e.isBlank() {
			continue
		}
		if is := fullEmployeeIssue(e, d.CollectionMode, position); is.field != "" {
			return &ValidationError{
				Step:           StepEmployeeInfo,
				Field:          is.field,
				Index:          i,
				DependentIndex: is.dependent,
				Message:        is.err.Error(),
				Err:            is.err,
			}
		}
		position++
	}

	if !csv && position == 0 {
		return fieldError(StepEmployeeInfo, "employees", errEmployeesMissing)
	}
	return nil
}

// MinAppointmentDate is the earliest bookable date for the given day.
func MinAppointmentDate(settings Settings, today time.Time) time.Time {
	y, m, d := today.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, settings.BookingOpenOffsetDays)
}

func checkAppointmentDate(value string, settings Settings, today time.Time) error {
	date, err := time.Parse(DateLayout, value)
	if err != nil {
		return ErrInvalidDate
	}
	if date.Before(MinAppointmentDate(settings, today)) {
		return ErrDateTooEarly
	}
	return nil
}

// checkEmployeeFields applies the per-field input rules enforced on every
// mutation. Empty values pass; completeness is a separate question.
func checkEmployeeFields(e Employee) *issue {
	return checkPersonFields(e.Age, e.Gender, e.Phone, e.Conditions)
}

func checkDependentFields(d Dependent) *issue {
	return checkPersonFields(d.Age, d.Gender, d.Phone, d.Conditions)
}

func checkPersonFields(age string, gender Gender, phone string, conditions []string) *issue {
	if age = strings.TrimSpace(age); age != "" && !validAge(age) {
		return &issue{"age", ErrInvalidAge}
	}
	if gender != "" && gender != GenderMale && gender != GenderFemale {
		return &issue{"gender", ErrInvalidGender}
	}
	if phone = strings.TrimSpace(phone); phone != "" && !phonePattern.MatchString(phone) {
		return &issue{"phone", ErrInvalidPhone}
	}
	for _, c := range conditions {
		if !slices.Contains(KnownConditions, c) {
			return &issue{"conditions", ErrUnknownCondition}
		}
	}
	return nil
}
