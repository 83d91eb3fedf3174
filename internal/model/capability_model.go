package model

import (
	"time"

	"github.com/google/uuid"
)

type ProviderCapability struct {
	Id                 uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NormalizedProvider string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	DisplayName        string    `gorm:"type:varchar(255);not null"`

	ApiEndpoint           string  `gorm:"type:text"`
	ApiSuccessRate        float64 `gorm:"type:decimal(4,3);default:0"`
	ApiAvgSeconds         int     `gorm:"default:0"`
	AutomationProfile     string  `gorm:"type:varchar(255)"`
	AutomationSuccessRate float64 `gorm:"type:decimal(4,3);default:0"`
	AutomationAvgSeconds  int     `gorm:"default:0"`
	ManualAvgSeconds      int     `gorm:"default:0"`

	Difficulty         string `gorm:"type:varchar(20);not null;default:'medium'"`
	RequiresTwoFactor  bool   `gorm:"default:false"`
	HasRetentionOffers bool   `gorm:"default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ProviderCapability) TableName() string {
	return "provider_capabilities"
}
