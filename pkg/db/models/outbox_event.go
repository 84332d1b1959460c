package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// OutboxEvent is a queued side effect written in the same transaction as
// the change that caused it. Rows are never deleted; delivery stamps
// PublishedAt and failures bump AttemptCount and push NextAttemptAt out.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:varchar(64);not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:varchar(32);not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       datatypes.JSON            `gorm:"column:payload;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	NextAttemptAt *time.Time                `gorm:"column:next_attempt_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at;index"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// NextAttemptExhausts reports whether one more failure reaches limit.
func (e OutboxEvent) NextAttemptExhausts(limit int) bool {
	return e.AttemptCount+1 >= limit
}

func (e OutboxEvent) LastErrorText() string {
	if e.LastError == nil {
		return ""
	}
	return *e.LastError
}
