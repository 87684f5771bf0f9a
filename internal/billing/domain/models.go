// Package domain contains the bill aggregate and its persistence models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
)

// Bill is the aggregate root. Created by the assembler, mutated only by the
// lifecycle operations, never deleted: voided bills keep their line items
// for audit with TotalAmount superseded to zero.
type Bill struct {
	ID               snowflake.ID              `gorm:"primaryKey"`
	MeterID          snowflake.ID              `gorm:"not null;index:ix_bill_meter_period,priority:1"`
	TariffCategoryID snowflake.ID              `gorm:"not null;index"`
	PeriodStart      time.Time                 `gorm:"not null;index:ix_bill_meter_period,priority:2"`
	PeriodEnd        time.Time                 `gorm:"not null;index:ix_bill_meter_period,priority:3"`
	DueDate          time.Time                 `gorm:"not null;index"`
	Status           BillStatus                `gorm:"type:text;not null;default:'ISSUED';index"`
	ReadingSource    meterdomain.ReadingSource `gorm:"type:text;not null;default:'NORMAL'"`
	ApplySubsidy     bool                      `gorm:"not null;default:false"`
	ApplySolarCredit bool                      `gorm:"not null;default:false"`

	ConsumedUnits  decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	ExportUnits    decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	EnergySubtotal decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	FixedCharge    decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Subsidy        decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	SolarCredit    decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	TaxTotal       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null"`

	VoidReason     *string    `gorm:"type:text"`
	VoidedAt       *time.Time `gorm:""`
	IssuedAt       time.Time  `gorm:"not null"`
	RecalculatedAt *time.Time `gorm:""`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`

	LineItems []BillLineItem `gorm:"-"`
	TaxLines  []BillTaxLine  `gorm:"-"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// Outstanding is what remains payable. Voided bills owe nothing.
func (b Bill) Outstanding() decimal.Decimal {
	if b.Status == StatusVoided {
		return decimal.Zero
	}
	return b.TotalAmount.Sub(b.PaidAmount)
}

// BillLineItem is the consumption billed inside one tariff slab. The sum of
// Units across a bill's line items equals the bill's consumed units exactly.
type BillLineItem struct {
	ID          snowflake.ID     `gorm:"primaryKey"`
	BillID      snowflake.ID     `gorm:"not null;index"`
	Position    int              `gorm:"not null"`
	FromUnit    decimal.Decimal  `gorm:"type:decimal(20,3);not null"`
	ToUnit      *decimal.Decimal `gorm:"type:decimal(20,3)"`
	Units       decimal.Decimal  `gorm:"type:decimal(20,3);not null"`
	RatePerUnit decimal.Decimal  `gorm:"type:decimal(20,4);not null"`
	Amount      decimal.Decimal  `gorm:"type:decimal(20,2);not null"`
	CreatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillLineItem) TableName() string { return "bill_line_items" }

// BillTaxLine is one computed tax on a bill; every line references the same
// taxable base.
type BillTaxLine struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	BillID        snowflake.ID    `gorm:"not null;index"`
	Position      int             `gorm:"not null"`
	Code          string          `gorm:"type:text;not null"`
	Name          string          `gorm:"type:text;not null"`
	RatePercent   decimal.Decimal `gorm:"type:decimal(6,3);not null"`
	TaxableAmount decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillTaxLine) TableName() string { return "bill_tax_lines" }
