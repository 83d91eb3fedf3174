package entity

import (
	"time"

	"github.com/google/uuid"
)

type ProviderDifficulty string

const (
	DifficultyEasy   ProviderDifficulty = "easy"
	DifficultyMedium ProviderDifficulty = "medium"
	DifficultyHard   ProviderDifficulty = "hard"
)

// CapabilitySource distinguishes assessed records from the conservative
// default returned when no record exists for a provider.
type CapabilitySource string

const (
	CapabilitySourceAssessed CapabilitySource = "assessed"
	CapabilitySourceDefault  CapabilitySource = "default"
)

// MethodCapability is the per-method slice of a provider assessment.
type MethodCapability struct {
	Available          bool
	SuccessRate        float64
	AvgDurationSeconds int
}

// ProviderCapability records which cancellation methods a provider supports
// and how they have performed historically.
type ProviderCapability struct {
	Id                 uuid.UUID
	NormalizedProvider string
	DisplayName        string

	ApiEndpoint       string // empty = no API cancellation available
	ApiSuccessRate    float64
	ApiAvgSeconds     int
	AutomationProfile string // empty = no web-automation flow available
	AutomationSuccessRate float64
	AutomationAvgSeconds  int
	ManualAvgSeconds      int

	Difficulty         ProviderDifficulty
	RequiresTwoFactor  bool
	HasRetentionOffers bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CapabilityAssessment is the assessor's answer for one provider.
type CapabilityAssessment struct {
	NormalizedProvider string
	Methods            map[CancellationMethod]MethodCapability

	// Execution handles for the automated methods, empty when unavailable.
	ApiEndpoint       string
	AutomationProfile string

	Difficulty         ProviderDifficulty
	RequiresTwoFactor  bool
	HasRetentionOffers bool
	Source             CapabilitySource
}

// Method returns the capability slice for a method, zero-valued when absent.
func (a *CapabilityAssessment) Method(m CancellationMethod) MethodCapability {
	return a.Methods[m]
}

// Available reports whether the method can be dispatched for this provider.
func (a *CapabilityAssessment) Available(m CancellationMethod) bool {
	return a.Methods[m].Available
}
