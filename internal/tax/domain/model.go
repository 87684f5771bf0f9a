package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/smallbiznis/voltway/pkg/money"
)

// TaxDefinition is a percentage tax applied to every bill's taxable base.
// Taxes are parallel: each line is computed against the same base, never
// against another tax line (no compounding).
// Code is a stable, engine-facing identifier (immutable once created);
// Name is UI-facing and editable.
type TaxDefinition struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	Code        string          `gorm:"type:text;not null;uniqueIndex"`
	Name        string          `gorm:"type:text;not null"`
	RatePercent decimal.Decimal `gorm:"type:decimal(6,3);not null"`
	Position    int             `gorm:"not null;default:0"`
	Enabled     bool            `gorm:"not null;default:true"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TaxDefinition) TableName() string { return "tax_definitions" }

func (t *TaxDefinition) Validate() error {
	if t.Code == "" {
		return ErrInvalidTaxCode
	}
	if t.RatePercent.IsNegative() {
		return ErrInvalidTaxRate
	}
	return nil
}

// Line is one computed tax line on a bill.
type Line struct {
	Code          string
	Name          string
	RatePercent   money.Percent
	TaxableAmount money.Money
	TaxAmount     money.Money
}

var (
	ErrInvalidTaxCode = errors.New("invalid_tax_code")
	ErrInvalidTaxRate = errors.New("invalid_tax_rate")
)
