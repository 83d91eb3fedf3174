package model

import (
	"time"

	"github.com/google/uuid"
)

type Subscription struct {
	Id             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId         uuid.UUID  `gorm:"type:uuid;not null;index:idx_subscriptions_fingerprint,priority:1"`
	ProviderName   string     `gorm:"type:varchar(255);not null"`
	NormalizedName string     `gorm:"type:varchar(255);not null;index:idx_subscriptions_fingerprint,priority:2"`
	Amount         float64    `gorm:"type:decimal(12,2);not null"`
	AmountBucket   int        `gorm:"not null;index:idx_subscriptions_fingerprint,priority:3"`
	Currency       string     `gorm:"type:varchar(3);not null;default:'USD'"`
	Frequency      string     `gorm:"type:billing_frequency;not null"`
	Status         string     `gorm:"type:varchar(50);not null;default:'active'"`
	LastBillingAt  *time.Time
	NextBillingAt  *time.Time
	Confidence     float64   `gorm:"type:decimal(4,3);not null;default:0"`
	IsManual       bool      `gorm:"default:false"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
