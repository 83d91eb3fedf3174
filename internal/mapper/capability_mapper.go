package mapper

import (
	"subguard-be/internal/entity"
	"subguard-be/internal/model"
)

type CapabilityMapper struct{}

func NewCapabilityMapper() *CapabilityMapper {
	return &CapabilityMapper{}
}

func (m *CapabilityMapper) ToEntity(c *model.ProviderCapability) *entity.ProviderCapability {
	if c == nil {
		return nil
	}
	return &entity.ProviderCapability{
		Id:                    c.Id,
		NormalizedProvider:    c.NormalizedProvider,
		DisplayName:           c.DisplayName,
		ApiEndpoint:           c.ApiEndpoint,
		ApiSuccessRate:        c.ApiSuccessRate,
		ApiAvgSeconds:         c.ApiAvgSeconds,
		AutomationProfile:     c.AutomationProfile,
		AutomationSuccessRate: c.AutomationSuccessRate,
		AutomationAvgSeconds:  c.AutomationAvgSeconds,
		ManualAvgSeconds:      c.ManualAvgSeconds,
		Difficulty:            entity.ProviderDifficulty(c.Difficulty),
		RequiresTwoFactor:     c.RequiresTwoFactor,
		HasRetentionOffers:    c.HasRetentionOffers,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

func (m *CapabilityMapper) ToModel(c *entity.ProviderCapability) *model.ProviderCapability {
	if c == nil {
		return nil
	}
	return &model.ProviderCapability{
		Id:                    c.Id,
		NormalizedProvider:    c.NormalizedProvider,
		DisplayName:           c.DisplayName,
		ApiEndpoint:           c.ApiEndpoint,
		ApiSuccessRate:        c.ApiSuccessRate,
		ApiAvgSeconds:         c.ApiAvgSeconds,
		AutomationProfile:     c.AutomationProfile,
		AutomationSuccessRate: c.AutomationSuccessRate,
		AutomationAvgSeconds:  c.AutomationAvgSeconds,
		ManualAvgSeconds:      c.ManualAvgSeconds,
		Difficulty:            string(c.Difficulty),
		RequiresTwoFactor:     c.RequiresTwoFactor,
		HasRetentionOffers:    c.HasRetentionOffers,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}
