// Package domain contains meter and reading models.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
)

// CustomerType segments meters for tariff assignment and bulk filters.
type CustomerType string

const (
	CustomerResidential CustomerType = "residential"
	CustomerCommercial  CustomerType = "commercial"
	CustomerIndustrial  CustomerType = "industrial"
	CustomerGovernment  CustomerType = "government"
)

// ReadingSource marks how a reading entered the system. CORRECTED readings
// are the only ones allowed to carry a negative consumption delta.
type ReadingSource string

const (
	ReadingSourceNormal    ReadingSource = "NORMAL"
	ReadingSourceCorrected ReadingSource = "CORRECTED"
)

// Meter is a customer connection point. TariffCategoryID may be unset for
// newly installed meters; billing rejects those with a category error.
type Meter struct {
	ID               snowflake.ID             `gorm:"primaryKey"`
	SerialNumber     string                   `gorm:"type:text;not null;uniqueIndex"`
	CustomerID       snowflake.ID             `gorm:"not null;index"`
	UtilityType      tariffdomain.UtilityType `gorm:"type:text;not null;index"`
	CustomerType     CustomerType             `gorm:"type:text;not null;index"`
	AreaCode         string                   `gorm:"type:text;not null;index"`
	TariffCategoryID *snowflake.ID            `gorm:"index"`
	SubsidyEligible  bool                     `gorm:"not null;default:false"`
	SolarEnabled     bool                     `gorm:"not null;default:false"`
	Active           bool                     `gorm:"not null;default:true"`
	CreatedAt        time.Time                `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time                `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Meter) TableName() string { return "meters" }

// MeterReading is one billing-period reading pair for a meter. ExportUnits
// is non-zero only for bidirectional (solar) meters.
type MeterReading struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	MeterID         snowflake.ID    `gorm:"not null;index"`
	PeriodStart     time.Time       `gorm:"not null;index"`
	PeriodEnd       time.Time       `gorm:"not null"`
	PreviousReading decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	CurrentReading  decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	ExportUnits     decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	Source          ReadingSource   `gorm:"type:text;not null;default:'NORMAL'"`
	RecordedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MeterReading) TableName() string { return "meter_readings" }

// ConsumedUnits is the reading delta. Negative deltas are legitimate only
// for CORRECTED readings; callers decide whether to reject them.
func (r MeterReading) ConsumedUnits() decimal.Decimal {
	return r.CurrentReading.Sub(r.PreviousReading)
}

// CandidateFilter selects meters for bulk generation. Zero-valued fields
// match everything; MeterIDs, when set, overrides the other criteria.
type CandidateFilter struct {
	UtilityType  tariffdomain.UtilityType
	CustomerType CustomerType
	AreaCode     string
	MeterIDs     []snowflake.ID
}

var (
	ErrMeterNotFound      = errors.New("meter_not_found")
	ErrNoReadingForPeriod = errors.New("no_reading_for_period")
)
