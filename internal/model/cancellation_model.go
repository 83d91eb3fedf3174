package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CancellationRequest struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrchestrationId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	SubscriptionId  uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId          uuid.UUID `gorm:"type:uuid;not null;index"`
	Method          string    `gorm:"type:cancellation_method;not null"`
	// Ranked alternates stored as a JSON array of method strings.
	FallbackChain datatypes.JSON `gorm:"type:jsonb"`
	Priority      string         `gorm:"type:varchar(20);not null;default:'normal'"`
	Attempts      int            `gorm:"not null;default:0"`
	MaxAttempts   int            `gorm:"not null;default:3"`
	Status        string         `gorm:"type:cancellation_status;not null;default:'pending';index"`
	Notes         string         `gorm:"type:text"`

	ErrorCode     string     `gorm:"type:varchar(50)"`
	ErrorMessage  string     `gorm:"type:text"`
	RetriedFromId *uuid.UUID `gorm:"type:uuid"`

	ConfirmationCode string `gorm:"type:varchar(255)"`
	EffectiveDate    *time.Time
	RefundAmount     *float64 `gorm:"type:decimal(12,2)"`

	CreatedAt     time.Time `gorm:"autoCreateTime"`
	LastAttemptAt *time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (CancellationRequest) TableName() string {
	return "cancellation_requests"
}

// CancellationLog rows are append-only. No update or delete path exists.
type CancellationLog struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RequestId     uuid.UUID      `gorm:"type:uuid;not null;index:idx_cancellation_logs_request_created,priority:1"`
	Action        string         `gorm:"type:varchar(100);not null"`
	Status        string         `gorm:"type:cancellation_status;not null"`
	Message       string         `gorm:"type:text"`
	Metadata      datatypes.JSON `gorm:"type:jsonb"`
	SincePrevious int64          `gorm:"not null;default:0"` // nanoseconds
	CreatedAt     time.Time      `gorm:"autoCreateTime;index:idx_cancellation_logs_request_created,priority:2"`
}

func (CancellationLog) TableName() string {
	return "cancellation_logs"
}
