package method

import (
	"testing"

	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
)

func assessment(api, automation entity.MethodCapability, opts ...func(*entity.CapabilityAssessment)) *entity.CapabilityAssessment {
	a := &entity.CapabilityAssessment{
		NormalizedProvider: "netflix",
		Methods: map[entity.CancellationMethod]entity.MethodCapability{
			entity.MethodApi:        api,
			entity.MethodAutomation: automation,
			entity.MethodManual:     {Available: true, SuccessRate: 1, AvgDurationSeconds: 900},
		},
		Difficulty: entity.DifficultyMedium,
		Source:     entity.CapabilitySourceAssessed,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func TestSelectAutoPrefersBestAutomatedMethod(t *testing.T) {
	selector := NewSelector()

	sel, err := selector.Select(assessment(
		entity.MethodCapability{Available: true, SuccessRate: 0.95, AvgDurationSeconds: 10},
		entity.MethodCapability{Available: true, SuccessRate: 0.80, AvgDurationSeconds: 240},
	), entity.PreferenceAuto)

	assert.NoError(t, err)
	assert.Equal(t, entity.MethodApi, sel.Method)
	assert.Equal(t, []entity.CancellationMethod{entity.MethodAutomation, entity.MethodManual}, sel.FallbackChain)
}

func TestSelectAutoAutomationWinsOnSuccessRate(t *testing.T) {
	selector := NewSelector()

	sel, err := selector.Select(assessment(
		entity.MethodCapability{Available: true, SuccessRate: 0.60, AvgDurationSeconds: 10},
		entity.MethodCapability{Available: true, SuccessRate: 0.90, AvgDurationSeconds: 240},
	), entity.PreferenceAuto)

	assert.NoError(t, err)
	assert.Equal(t, entity.MethodAutomation, sel.Method)
}

func TestSelectAutoTwoFactorPushesApiBelowManual(t *testing.T) {
	selector := NewSelector()

	sel, err := selector.Select(assessment(
		entity.MethodCapability{Available: true, SuccessRate: 0.95},
		entity.MethodCapability{Available: true, SuccessRate: 0.80},
		func(a *entity.CapabilityAssessment) { a.RequiresTwoFactor = true },
	), entity.PreferenceAuto)

	assert.NoError(t, err)
	assert.Equal(t, entity.MethodAutomation, sel.Method)
	assert.Equal(t, []entity.CancellationMethod{entity.MethodManual, entity.MethodApi}, sel.FallbackChain)
}

func TestSelectAutoTwoFactorNeverStartsWithApi(t *testing.T) {
	selector := NewSelector()

	sel, err := selector.Select(assessment(
		entity.MethodCapability{Available: true, SuccessRate: 0.60},
		entity.MethodCapability{Available: true, SuccessRate: 0.90},
		func(a *entity.CapabilityAssessment) { a.RequiresTwoFactor = true },
	), entity.PreferenceAuto)

	assert.NoError(t, err)
	assert.Equal(t, entity.MethodAutomation, sel.Method)
	assert.Equal(t, []entity.CancellationMethod{entity.MethodManual, entity.MethodApi}, sel.FallbackChain)
}

func TestSelectAutoHardProviderPushesApiBelowManual(t *testing.T) {
	selector := NewSelector()

	sel, err := selector.Select(assessment(
		entity.MethodCapability{Available: true, SuccessRate: 0.95},
		entity.MethodCapability{},
		func(a *entity.CapabilityAssessment) { a.Difficulty = entity.DifficultyHard },
	), entity.PreferenceAuto)

	assert.NoError(t, err)
	assert.Equal(t, entity.MethodManual, sel.Method)
	assert.Equal(t, []entity.CancellationMethod{entity.MethodApi}, sel.FallbackChain)
}

func TestSelectAutoManualOnlyProvider(t *testing.T) {
	selector := NewSelector()

	sel, err := selector.Select(assessment(
		entity.MethodCapability{},
		entity.MethodCapability{},
	), entity.PreferenceAuto)

	assert.NoError(t, err)
	assert.Equal(t, entity.MethodManual, sel.Method)
	assert.Empty(t, sel.FallbackChain)
}

func TestSelectForcedMethodHonored(t *testing.T) {
	selector := NewSelector()

	sel, err := selector.Select(assessment(
		entity.MethodCapability{Available: true, SuccessRate: 0.95},
		entity.MethodCapability{Available: true, SuccessRate: 0.80},
	), entity.PreferenceAutomation)

	assert.NoError(t, err)
	assert.Equal(t, entity.MethodAutomation, sel.Method)
	// forced choice still gets a fallback chain without itself
	assert.Equal(t, []entity.CancellationMethod{entity.MethodApi, entity.MethodManual}, sel.FallbackChain)
}

func TestSelectForcedUnavailableMethodRejected(t *testing.T) {
	selector := NewSelector()

	_, err := selector.Select(assessment(
		entity.MethodCapability{},
		entity.MethodCapability{},
	), entity.PreferenceApi)

	assert.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSelectForcedManualHasNoFallback(t *testing.T) {
	selector := NewSelector()

	sel, err := selector.Select(assessment(
		entity.MethodCapability{Available: true, SuccessRate: 0.95},
		entity.MethodCapability{},
	), entity.PreferenceManual)

	assert.NoError(t, err)
	assert.Equal(t, entity.MethodManual, sel.Method)
	assert.Empty(t, sel.FallbackChain)
}
