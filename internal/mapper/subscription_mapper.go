package mapper

import (
	"subguard-be/internal/entity"
	"subguard-be/internal/model"
)

type SubscriptionMapper struct{}

func NewSubscriptionMapper() *SubscriptionMapper {
	return &SubscriptionMapper{}
}

func (m *SubscriptionMapper) ToEntity(s *model.Subscription) *entity.Subscription {
	if s == nil {
		return nil
	}
	return &entity.Subscription{
		Id:             s.Id,
		UserId:         s.UserId,
		ProviderName:   s.ProviderName,
		NormalizedName: s.NormalizedName,
		Amount:         s.Amount,
		AmountBucket:   s.AmountBucket,
		Currency:       s.Currency,
		Frequency:      entity.BillingFrequency(s.Frequency),
		Status:         entity.SubscriptionStatus(s.Status),
		LastBillingAt:  s.LastBillingAt,
		NextBillingAt:  s.NextBillingAt,
		Confidence:     s.Confidence,
		IsManual:       s.IsManual,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (m *SubscriptionMapper) ToModel(s *entity.Subscription) *model.Subscription {
	if s == nil {
		return nil
	}
	return &model.Subscription{
		Id:             s.Id,
		UserId:         s.UserId,
		ProviderName:   s.ProviderName,
		NormalizedName: s.NormalizedName,
		Amount:         s.Amount,
		AmountBucket:   s.AmountBucket,
		Currency:       s.Currency,
		Frequency:      string(s.Frequency),
		Status:         string(s.Status),
		LastBillingAt:  s.LastBillingAt,
		NextBillingAt:  s.NextBillingAt,
		Confidence:     s.Confidence,
		IsManual:       s.IsManual,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
