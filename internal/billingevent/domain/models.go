package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event types consumed by notification / receipt-rendering collaborators.
const (
	EventBillIssued       = "bill.issued"
	EventBillVoided       = "bill.voided"
	EventBillRecalculated = "bill.recalculated"
	EventPaymentApplied   = "payment.applied"
)

// BillingEvent captures outbox events for billing workflows. Rows are
// written in the same transaction as the state change they describe and
// published asynchronously by a relay outside this core.
type BillingEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	EventType   string            `gorm:"type:text;not null;index"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null"`
	DedupeKey   *string           `gorm:"type:text;uniqueIndex:ux_billing_event_dedupe"`
	Published   bool              `gorm:"not null;default:false"`
	PublishedAt *time.Time        `gorm:""`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingEvent) TableName() string { return "billing_events" }

type Service interface {
	// Emit appends an outbox row inside the caller's transaction. A repeat
	// dedupe key is silently dropped.
	Emit(ctx context.Context, tx *gorm.DB, eventType string, dedupeKey string, payload map[string]any) error

	// PublishPending relays up to limit unpublished events in creation
	// order and marks them published. Returns how many were relayed.
	PublishPending(ctx context.Context, limit int) (int, error)
}
