// Package domain contains cashier-recorded payments against bills.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Method is how the customer paid. Only CASH payments participate in the
// cashier day reconciliation.
type Method string

const (
	MethodCash     Method = "CASH"
	MethodCard     Method = "CARD"
	MethodTransfer Method = "TRANSFER"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer:
		return true
	}
	return false
}

// Payment is one cashier-recorded credit against a bill. BusinessDate is the
// cashier day the payment is booked to, which can differ from ReceivedAt when
// the received day was already closed and policy shifts the booking forward.
type Payment struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	BillID       snowflake.ID    `gorm:"not null;index"`
	CashierID    snowflake.ID    `gorm:"not null;index:ix_payment_cashier_date,priority:1"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Method       Method          `gorm:"type:text;not null"`
	Reference    *string         `gorm:"type:text;uniqueIndex"`
	BusinessDate time.Time       `gorm:"not null;index:ix_payment_cashier_date,priority:2"`
	ReceivedAt   time.Time       `gorm:"not null"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// RecordRequest books a payment against a bill.
type RecordRequest struct {
	BillID    snowflake.ID
	CashierID snowflake.ID
	Amount    decimal.Decimal
	Method    Method
	Reference string
}

type Service interface {
	// Record books the payment and applies it to the bill atomically. A
	// non-empty Reference makes the call idempotent: a retry with the same
	// reference fails with ErrDuplicateReference instead of double
	// crediting the bill.
	Record(ctx context.Context, req RecordRequest) (*Payment, error)

	ListByCashierDay(ctx context.Context, cashierID snowflake.ID, businessDate time.Time) ([]Payment, error)
}

var (
	ErrInvalidMethod      = errors.New("invalid_payment_method")
	ErrDuplicateReference = errors.New("duplicate_payment_reference")
	ErrCashierDayClosed   = errors.New("cashier_day_closed")
)
