package capability

import (
	"context"
	"time"

	"subguard-be/internal/entity"
	"subguard-be/internal/repository/contract"
	"subguard-be/pkg/detection"

	gocache "github.com/patrickmn/go-cache"
)

const (
	cacheTTL      = 15 * time.Minute
	cacheSweep    = 30 * time.Minute
	defaultManual = 1800 // seconds, conservative estimate for an unknown provider
)

// Assessor answers "which cancellation methods work for this provider".
// Assessments are read-heavy and change rarely, so resolved records are
// cached in process for a short TTL.
type Assessor struct {
	repo  contract.CapabilityRepository
	cache *gocache.Cache
}

func NewAssessor(repo contract.CapabilityRepository) *Assessor {
	return &Assessor{
		repo:  repo,
		cache: gocache.New(cacheTTL, cacheSweep),
	}
}

// Assess resolves the capability record for a provider name (raw or already
// normalized). Unknown providers get the conservative default: manual only,
// hard difficulty. Manual is always available regardless of the record.
func (a *Assessor) Assess(ctx context.Context, providerName string) (*entity.CapabilityAssessment, error) {
	normalized := detection.NormalizeMerchant(providerName)
	if normalized == "" {
		return defaultAssessment(normalized), nil
	}

	if cached, ok := a.cache.Get(normalized); ok {
		return cached.(*entity.CapabilityAssessment), nil
	}

	record, err := a.repo.FindByProvider(ctx, normalized)
	if err != nil {
		return nil, err
	}

	var assessment *entity.CapabilityAssessment
	if record == nil {
		assessment = defaultAssessment(normalized)
	} else {
		assessment = fromRecord(record)
	}

	a.cache.Set(normalized, assessment, gocache.DefaultExpiration)
	return assessment, nil
}

// Invalidate drops a cached assessment, used after a capability upsert.
func (a *Assessor) Invalidate(providerName string) {
	a.cache.Delete(detection.NormalizeMerchant(providerName))
}

func fromRecord(record *entity.ProviderCapability) *entity.CapabilityAssessment {
	methods := map[entity.CancellationMethod]entity.MethodCapability{
		entity.MethodApi: {
			Available:          record.ApiEndpoint != "",
			SuccessRate:        record.ApiSuccessRate,
			AvgDurationSeconds: record.ApiAvgSeconds,
		},
		entity.MethodAutomation: {
			Available:          record.AutomationProfile != "",
			SuccessRate:        record.AutomationSuccessRate,
			AvgDurationSeconds: record.AutomationAvgSeconds,
		},
		entity.MethodManual: {
			Available:          true,
			SuccessRate:        1,
			AvgDurationSeconds: manualSeconds(record.ManualAvgSeconds),
		},
	}
	return &entity.CapabilityAssessment{
		NormalizedProvider: record.NormalizedProvider,
		Methods:            methods,
		ApiEndpoint:        record.ApiEndpoint,
		AutomationProfile:  record.AutomationProfile,
		Difficulty:         record.Difficulty,
		RequiresTwoFactor:  record.RequiresTwoFactor,
		HasRetentionOffers: record.HasRetentionOffers,
		Source:             entity.CapabilitySourceAssessed,
	}
}

func defaultAssessment(normalized string) *entity.CapabilityAssessment {
	return &entity.CapabilityAssessment{
		NormalizedProvider: normalized,
		Methods: map[entity.CancellationMethod]entity.MethodCapability{
			entity.MethodApi:        {Available: false},
			entity.MethodAutomation: {Available: false},
			entity.MethodManual: {
				Available:          true,
				SuccessRate:        1,
				AvgDurationSeconds: defaultManual,
			},
		},
		Difficulty: entity.DifficultyMedium,
		Source:     entity.CapabilitySourceDefault,
	}
}

func manualSeconds(recorded int) int {
	if recorded > 0 {
		return recorded
	}
	return defaultManual
}
