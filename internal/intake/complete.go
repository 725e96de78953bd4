package intake

import (
	"errors"
	"net/mail"
	"slices"
	"strconv"
	"strings"
)

// issue is the first offending field of an entity, empty when it is complete.
type issue struct {
	field string
	err   error
}

var (
	errRequired         = errors.New("is required")
	errInvalidEmail     = errors.New("must be a valid email address")
	errOtherCondition   = errors.New("describe the other condition")
	errNoDependents     = errors.New("add at least one dependent or turn dependents off")
	errAddressRequired  = errors.New("home address is required for at-home collection")
	errEmployeesMissing = errors.New("add at least one employee")
	errModeRequired     = errors.New("choose a collection mode")
	errRosterRequired   = errors.New("upload the employee roster file")
)

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Address == strings.TrimSpace(s)
}

func validAge(s string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil && n >= 0
}

func otherMissing(conditions []string, other string) bool {
	return slices.Contains(conditions, ConditionOther) && blank(other)
}

// employeeIssue checks identity completeness. The home address only gates the
// first employee; later employees inherit it.
func employeeIssue(e Employee, mode CollectionMode, index int) issue {
	switch {
	case blank(e.ID):
		return issue{"id", errRequired}
	case blank(e.Name):
		return issue{"name", errRequired}
	case blank(e.Age):
		return issue{"age", errRequired}
	case !validAge(e.Age):
		return issue{"age", ErrInvalidAge}
	case blank(string(e.Gender)):
		return issue{"gender", errRequired}
	case blank(e.Email):
		return issue{"email", errRequired}
	case !validEmail(e.Email):
		return issue{"email", errInvalidEmail}
	case blank(e.Phone):
		return issue{"phone", errRequired}
	case mode == CollectionAtHome && index == 0 && blank(e.HomeAddress):
		return issue{"homeAddress", errAddressRequired}
	case otherMissing(e.Conditions, e.OtherCondition):
		return issue{"otherCondition", errOtherCondition}
	}
	return issue{}
}

func dependentIssue(d Dependent) issue {
	switch {
	case blank(d.Name):
		return issue{"name", errRequired}
	case blank(d.Age):
		return issue{"age", errRequired}
	case blank(d.Phone):
		return issue{"phone", errRequired}
	case blank(d.Email):
		return issue{"email", errRequired}
	case blank(string(d.Gender)):
		return issue{"gender", errRequired}
	case otherMissing(d.Conditions, d.OtherCondition):
		return issue{"otherCondition", errOtherCondition}
	}
	return issue{}
}

// IsEmployeeComplete reports whether the employee's own fields are complete
// at the given position in the list.
func IsEmployeeComplete(e Employee, mode CollectionMode, index int) bool {
	return employeeIssue(e, mode, index).field == ""
}

func IsDependentComplete(d Dependent) bool {
	return dependentIssue(d).field == ""
}

// IsEmployeeFullyComplete additionally requires at least one complete
// dependent when HasDependents is set.
func IsEmployeeFullyComplete(e Employee, mode CollectionMode, index int) bool {
	return fullEmployeeIssue(e, mode, index).issue.field == ""
}

type locatedIssue struct {
	issue
	dependent int
}

func fullEmployeeIssue(e Employee, mode CollectionMode, index int) locatedIssue {
	if is := employeeIssue(e, mode, index); is.field != "" {
		return locatedIssue{is, -1}
	}
	if !e.HasDependents {
		return locatedIssue{dependent: -1}
	}
	if len(e.Dependents) == 0 {
		return locatedIssue{issue{"dependents", errNoDependents}, -1}
	}
	for j, d := range e.Dependents {
		if is := dependentIssue(d); is.field != "" {
			return locatedIssue{is, j}
		}
	}
	return locatedIssue{dependent: -1}
}
