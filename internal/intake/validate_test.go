package intake

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmployeeInfo(t *testing.T) {
	withAddress := validEmployee("E1")
	withAddress.HomeAddress = "12 MG Road"

	tests := []struct {
		name      string
		draft     BookingDraft
		hasRoster bool
		field     string
		index     int
	}{
		{
			name:  "at clinic single complete employee",
			draft: BookingDraft{BookingMode: BookingOnlineForm, CollectionMode: CollectionAtClinic, Employees: []Employee{validEmployee("E1")}},
		},
		{
			name:  "at home first address missing",
			draft: BookingDraft{BookingMode: BookingOnlineForm, CollectionMode: CollectionAtHome, Employees: []Employee{validEmployee("E1")}},
			field: "homeAddress",
		},
		{
			name:  "at home only first address gates",
			draft: BookingDraft{BookingMode: BookingOnlineForm, CollectionMode: CollectionAtHome, Employees: []Employee{withAddress, validEmployee("E2")}},
		},
		{
			name:  "online form needs an employee",
			draft: BookingDraft{BookingMode: BookingOnlineForm, CollectionMode: CollectionAtClinic},
			field: "employees",
		},
		{
			name: "second employee incomplete",
			draft: BookingDraft{BookingMode: BookingOnlineForm, CollectionMode: CollectionAtClinic, Employees: []Employee{
				validEmployee("E1"), {ID: "E2", Name: "X"},
			}},
			field: "age",
			index: 1,
		},
		{
			name:  "csv without roster",
			draft: BookingDraft{BookingMode: BookingCSVUpload, CollectionMode: CollectionAtClinic},
			field: "roster",
		},
		{
			name:      "csv with roster ignores blank rows",
			draft:     BookingDraft{BookingMode: BookingCSVUpload, CollectionMode: CollectionAtHome, Employees: []Employee{{ID: "E9"}}},
			hasRoster: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmployeeInfo(tt.draft, tt.hasRoster)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "want *ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, StepEmployeeInfo, ve.Step)
			if tt.index > 0 {
				assert.Equal(t, tt.index, ve.Index)
			}
		})
	}
}

func TestValidateAppointmentDetails(t *testing.T) {
	actor := testActor()
	settings := testSettings()

	tests := []struct {
		name  string
		draft BookingDraft
		field string
	}{
		{name: "office required", draft: BookingDraft{}, field: "officeSelection"},
		{name: "unknown office", draft: BookingDraft{OfficeSelection: "Chennai"}, field: "officeSelection"},
		{name: "multi mode office needs mode", draft: BookingDraft{OfficeSelection: "Pune HQ"}, field: "collectionMode"},
		{name: "multi mode office with mode", draft: BookingDraft{OfficeSelection: "Pune HQ", CollectionMode: CollectionAtHome}},
		{name: "single mode office without mode", draft: BookingDraft{OfficeSelection: "Mumbai"}},
		{name: "unsupported mode", draft: BookingDraft{OfficeSelection: "Mumbai", CollectionMode: CollectionAtHome}, field: "collectionMode"},
		{name: "date too early", draft: BookingDraft{OfficeSelection: "Mumbai", AppointmentDate: "2026-10-17"}, field: "appointmentDate"},
		{name: "date on offset boundary", draft: BookingDraft{OfficeSelection: "Mumbai", AppointmentDate: "2026-10-18"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAppointmentDetails(tt.draft, actor, settings, testNow)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidateChooseMode(t *testing.T) {
	assert.NoError(t, ValidateChooseMode(BookingDraft{BookingMode: BookingCSVUpload}))
	assert.ErrorIs(t, ValidateChooseMode(BookingDraft{BookingMode: "fax"}), ErrUnknownBookingMode)
}

func TestCheckPersonFields(t *testing.T) {
	tests := []struct {
		name    string
		e       Employee
		wantErr error
	}{
		{name: "empty values pass", e: Employee{}},
		{name: "nine digit phone", e: Employee{Phone: "987654321"}, wantErr: ErrInvalidPhone},
		{name: "phone with prefix", e: Employee{Phone: "+919876543210"}, wantErr: ErrInvalidPhone},
		{name: "age text", e: Employee{Age: "thirty"}, wantErr: ErrInvalidAge},
		{name: "gender lower case", e: Employee{Gender: "male"}, wantErr: ErrInvalidGender},
		{name: "unknown condition", e: Employee{Conditions: []string{"Flu"}}, wantErr: ErrUnknownCondition},
		{name: "valid", e: validEmployee("E1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := checkEmployeeFields(tt.e)
			if tt.wantErr == nil {
				assert.Nil(t, is)
				return
			}
			require.NotNil(t, is)
			assert.ErrorIs(t, is.err, tt.wantErr)
		})
	}
}
