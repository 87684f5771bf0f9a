// Package domain contains tariff configuration models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// UtilityType identifies which utility a tariff category prices.
type UtilityType string

const (
	UtilityElectricity UtilityType = "electricity"
	UtilityWater       UtilityType = "water"
	UtilityGas         UtilityType = "gas"
)

// TariffCategory groups the progressive slabs and the fixed charge applied
// to every bill under the category. Slabs referenced by an issued bill are
// immutable; rate changes are new rows effective for future bills only.
type TariffCategory struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	Code        string          `gorm:"type:text;not null;uniqueIndex"`
	Name        string          `gorm:"type:text;not null"`
	UtilityType UtilityType     `gorm:"type:text;not null;index"`
	FixedCharge decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Active      bool            `gorm:"not null;default:true"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TariffCategory) TableName() string { return "tariff_categories" }

// TariffSlab is one progressive billing tier: [FromUnit, ToUnit) priced at
// RatePerUnit. A nil ToUnit marks the single unbounded last slab.
type TariffSlab struct {
	ID          snowflake.ID     `gorm:"primaryKey"`
	CategoryID  snowflake.ID     `gorm:"not null;index"`
	Position    int              `gorm:"not null"`
	FromUnit    decimal.Decimal  `gorm:"type:decimal(20,3);not null"`
	ToUnit      *decimal.Decimal `gorm:"type:decimal(20,3)"`
	RatePerUnit decimal.Decimal  `gorm:"type:decimal(20,4);not null"`
	CreatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TariffSlab) TableName() string { return "tariff_slabs" }
