package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/wellness_intake/pkg/util/codes"
)

func TestCaptchaGate(t *testing.T) {
	g := NewCaptchaGate(codes.New(codes.Config{Length: 6}))

	challenge, err := g.Generate()
	require.NoError(t, err)
	require.Len(t, challenge, 6)

	assert.True(t, g.Verify(challenge, challenge))
	assert.False(t, g.Verify(challenge, " "+challenge), "no trimming")
	assert.False(t, g.Verify("aBc234", "ABC234"), "case sensitive")
	assert.False(t, g.Verify("", ""), "an empty challenge never verifies")
}

func TestNavigationGuard(t *testing.T) {
	tests := []struct {
		step       Step
		submitting bool
		enabled    bool
	}{
		{step: StepLogin},
		{step: StepChooseMode, enabled: true},
		{step: StepAppointmentDetails, enabled: true},
		{step: StepEmployeeInfo, enabled: true},
		{step: StepEmployeeInfo, submitting: true},
		{step: StepReviewConfirm},
		{step: StepSuccess},
		{step: StepFailure},
	}

	for _, tt := range tests {
		t.Run(tt.step.String(), func(t *testing.T) {
			g := GuardFor(tt.step, tt.submitting)
			assert.Equal(t, tt.enabled, g.Enabled())
			assert.Equal(t, tt.enabled, g.Unload())
			if tt.enabled {
				assert.Equal(t, BackCancelled, g.Back(false))
				assert.Equal(t, BackCleared, g.Back(true))
			} else {
				assert.Equal(t, BackAllowed, g.Back(true))
			}
		})
	}
}

func TestStepText(t *testing.T) {
	for s := StepLogin; s <= StepFailure; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back Step
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	var s Step
	assert.Error(t, s.UnmarshalText([]byte("checkout")))
}
