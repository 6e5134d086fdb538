package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepGuard_IsLastStep(t *testing.T) {
	guard := StepGuard{MaxSteps: 3}

	assert.False(t, guard.IsLastStep(1))
	assert.False(t, guard.IsLastStep(2))
	assert.True(t, guard.IsLastStep(3))
	assert.True(t, guard.IsLastStep(4))
}

func TestStepGuard_DefaultsWhenUnset(t *testing.T) {
	var guard StepGuard

	assert.False(t, guard.IsLastStep(DefaultMaxSteps-1))
	assert.True(t, guard.IsLastStep(DefaultMaxSteps))
}

func TestStepGuard_SingleStep(t *testing.T) {
	assert.True(t, StepGuard{MaxSteps: 1}.IsLastStep(1))
}
