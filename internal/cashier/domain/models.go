// Package domain contains the cashier day close aggregate. A close freezes a
// cashier's cash position for one business date; at most one close can exist
// per cashier per date.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CashierDayClose is the reconciliation record for one cashier and business
// date. ExpectedTotal is the drawer's expected closing position, the opening
// balance plus the day's recorded cash payments; CountedTotal is what the
// cashier declares. NonCashTotal is reported alongside but settles outside
// the drawer.
type CashierDayClose struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	CashierID      snowflake.ID    `gorm:"not null;uniqueIndex:ux_cashier_business_date,priority:1"`
	BusinessDate   time.Time       `gorm:"not null;uniqueIndex:ux_cashier_business_date,priority:2"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	CashTotal      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	NonCashTotal   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	ExpectedTotal  decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	CountedTotal   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Variance       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	VarianceReason *string         `gorm:"type:text"`
	ClosedAt       time.Time       `gorm:"not null"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CashierDayClose) TableName() string { return "cashier_day_closes" }

// CloseDayRequest declares the counted cash for one cashier's business date.
// A nil OpeningBalance carries the prior close's counted total forward as the
// drawer float (zero for a cashier's first close).
type CloseDayRequest struct {
	CashierID      snowflake.ID
	BusinessDate   time.Time
	OpeningBalance *decimal.Decimal
	CountedTotal   decimal.Decimal
	VarianceReason string
}

type Service interface {
	// CloseDay reconciles and freezes the cashier's business date. Exactly
	// one close can succeed per cashier and date; concurrent attempts lose
	// with ErrDayAlreadyClosed.
	CloseDay(ctx context.Context, req CloseDayRequest) (*CashierDayClose, error)

	GetClose(ctx context.Context, cashierID snowflake.ID, businessDate time.Time) (*CashierDayClose, error)
}

type Repository interface {
	IsClosed(ctx context.Context, db *gorm.DB, cashierID snowflake.ID, businessDate time.Time) (bool, error)
	FindClose(ctx context.Context, db *gorm.DB, cashierID snowflake.ID, businessDate time.Time) (*CashierDayClose, error)
	// FindLatestCloseBefore returns the cashier's most recent close strictly
	// before businessDate, or nil if none exists.
	FindLatestCloseBefore(ctx context.Context, db *gorm.DB, cashierID snowflake.ID, businessDate time.Time) (*CashierDayClose, error)
}

var (
	ErrDayAlreadyClosed       = errors.New("cashier_day_already_closed")
	ErrVarianceReasonRequired = errors.New("variance_reason_required")
	ErrCloseNotFound          = errors.New("cashier_day_close_not_found")
	ErrInvalidBusinessDate    = errors.New("invalid_business_date")
)

// BusinessDate truncates t to its UTC calendar date.
func BusinessDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
