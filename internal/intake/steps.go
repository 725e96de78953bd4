package intake

import "fmt"

// Step is a position in the intake workflow. The numbered steps are ordered;
// Success and Failure are terminal.
type Step int

const (
	StepLogin Step = iota
	StepChooseMode
	StepAppointmentDetails
	StepEmployeeInfo
	StepReviewConfirm
	StepSuccess
	StepFailure
)

var stepNames = map[Step]string{
	StepLogin:              "login",
	StepChooseMode:         "choose_mode",
	StepAppointmentDetails: "appointment_details",
	StepEmployeeInfo:       "employee_info",
	StepReviewConfirm:      "review_confirm",
	StepSuccess:            "success",
	StepFailure:            "failure",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func ParseStep(name string) (Step, bool) {
	for s, n := range stepNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

func (s Step) Terminal() bool {
	return s == StepSuccess || s == StepFailure
}

// Editable reports whether the step is one of the form steps a user can
// move between freely.
func (s Step) Editable() bool {
	return s >= StepChooseMode && s <= StepEmployeeInfo
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	step, ok := ParseStep(string(b))
	if !ok {
		return fmt.Errorf("unknown step %q", string(b))
	}
	*s = step
	return nil
}
