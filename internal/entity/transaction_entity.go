package entity

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is a bank transaction row sourced from the external ingestion
// pipeline. This service treats it as read-only input for detection.
type Transaction struct {
	Id           uuid.UUID
	UserId       uuid.UUID
	AccountId    *uuid.UUID
	MerchantName string
	Amount       float64 // signed, negative = outflow
	Currency     string
	Date         time.Time
	Pending      bool
}
