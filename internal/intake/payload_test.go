package intake

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCompany = CompanyContext{CompanyID: "c1", CompanyName: "Acme", OfficeID: "o1", OfficeName: "Pune HQ"}

func TestNormalizeConditions(t *testing.T) {
	tests := []struct {
		name       string
		conditions []string
		other      string
		want       []string
	}{
		{name: "other folded in", conditions: []string{"Allergy", "Other"}, other: "Pollen", want: []string{"Allergy", "Pollen"}},
		{name: "other first still appended last", conditions: []string{"Other", "Asthma"}, other: " Dust ", want: []string{"Asthma", "Dust"}},
		{name: "stale text without other tag", conditions: []string{"Thyroid"}, other: "Pollen", want: []string{"Thyroid"}},
		{name: "nothing selected", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeConditions(tt.conditions, tt.other))
		})
	}
}

func TestBuildPayload(t *testing.T) {
	e1 := validEmployee("E1")
	e1.HomeAddress = "stale address"
	e1.Conditions = []string{"Allergy", "Other"}
	e1.OtherCondition = "Pollen"
	e1.HasDependents = true
	e1.Dependents = []Dependent{{Name: "B", Age: "8", Gender: GenderFemale, Phone: "9876500000", Email: "b@x.com", Conditions: []string{"Other"}, OtherCondition: "Peanuts"}}

	d := BookingDraft{
		OfficeSelection: "Pune HQ",
		CollectionMode:  "At_Clinic",
		AppointmentDate: "2026-10-20",
		BookingMode:     BookingOnlineForm,
		Employees:       []Employee{e1, {ID: "blank-row"}},
	}

	p := BuildPayload(d, testCompany, "tok-1")

	assert.Equal(t, CollectionAtClinic, p.CollectionMode)
	assert.Equal(t, "tok-1", p.IdempotencyToken)
	assert.Equal(t, "o1", p.OfficeID)
	require.Len(t, p.Employees, 1, "wholly blank rows are dropped")

	ep := p.Employees[0]
	assert.Nil(t, ep.HomeAddress, "at clinic never sends an address")
	assert.Equal(t, []string{"Allergy", "Pollen"}, ep.MedicalConditions)
	assert.Equal(t, 30, ep.Age)
	require.Len(t, ep.Dependents, 1)
	assert.Equal(t, []string{"Peanuts"}, ep.Dependents[0].MedicalConditions)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	emp := wire["employees"].([]any)[0].(map[string]any)
	assert.Contains(t, emp, "home_address")
	assert.Nil(t, emp["home_address"])
	assert.Equal(t, "online_form", wire["booking_mode"])
}

func TestBuildPayloadAtHomeSharesFirstAddress(t *testing.T) {
	e1 := validEmployee("E1")
	e1.HomeAddress = "12 MG Road"
	e2 := validEmployee("E2")
	e3 := validEmployee("E3")
	e3.HomeAddress = "7 Park Street"

	p := BuildPayload(BookingDraft{
		CollectionMode: CollectionAtHome,
		BookingMode:    BookingOnlineForm,
		Employees:      []Employee{e1, e2, e3},
	}, testCompany, "tok")

	require.Len(t, p.Employees, 3)
	assert.Equal(t, "12 MG Road", *p.Employees[0].HomeAddress)
	assert.Equal(t, "12 MG Road", *p.Employees[1].HomeAddress)
	assert.Equal(t, "7 Park Street", *p.Employees[2].HomeAddress)
}

func TestBuildPayloadDropsDependentsWhenFlagOff(t *testing.T) {
	e := validEmployee("E1")
	e.Dependents = []Dependent{validDependent()}

	p := BuildPayload(BookingDraft{CollectionMode: CollectionAtClinic, Employees: []Employee{e}}, testCompany, "tok")
	assert.Empty(t, p.Employees[0].Dependents)
	assert.Nil(t, p.AppointmentDate)
}

func TestCountApplicants(t *testing.T) {
	p := BookingPayload{Employees: []EmployeePayload{
		{Dependents: []DependentPayload{{}, {}}},
		{},
	}}
	assert.Equal(t, ApplicantCounts{Employees: 2, Dependents: 2, Total: 4}, CountApplicants(p))
}
