package model

import (
	"time"

	"github.com/google/uuid"
)

// Transaction rows are written by the external bank-sync pipeline. This
// service only reads them.
type Transaction struct {
	Id           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId       uuid.UUID  `gorm:"type:uuid;not null;index:idx_transactions_user_date,priority:1"`
	AccountId    *uuid.UUID `gorm:"type:uuid;index"`
	MerchantName string     `gorm:"type:varchar(255);not null"`
	Amount       float64    `gorm:"type:decimal(12,2);not null"`
	Currency     string     `gorm:"type:varchar(3);not null;default:'USD'"`
	Date         time.Time  `gorm:"not null;index:idx_transactions_user_date,priority:2"`
	Pending      bool       `gorm:"default:false"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
}

func (Transaction) TableName() string {
	return "transactions"
}
