package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
	taxdomain "github.com/smallbiznis/voltway/internal/tax/domain"
	"github.com/smallbiznis/voltway/pkg/money"
)

// PreviewRequest asks for a priced bill without persisting anything.
type PreviewRequest struct {
	MeterID          snowflake.ID
	PeriodStart      time.Time
	PeriodEnd        time.Time
	ApplySubsidy     bool
	ApplySolarCredit bool
}

// GenerateRequest issues a persisted bill.
type GenerateRequest struct {
	PreviewRequest
	DueDate time.Time
}

// Computation is a fully priced bill before (or without) persistence. The
// preview and committed paths share it so a dry run shows exactly what a
// committed run would charge.
type Computation struct {
	MeterID          snowflake.ID
	TariffCategoryID snowflake.ID
	PeriodStart      time.Time
	PeriodEnd        time.Time
	ReadingSource    meterdomain.ReadingSource
	ApplySubsidy     bool
	ApplySolarCredit bool

	ConsumedUnits  money.Units
	ExportUnits    money.Units
	LineItems      []tariffdomain.Allocation
	EnergySubtotal money.Money
	FixedCharge    money.Money
	Subsidy        money.Money
	SolarCredit    money.Money
	TaxLines       []taxdomain.Line
	TaxTotal       money.Money
	TotalAmount    money.Money
}

type Service interface {
	Preview(ctx context.Context, req PreviewRequest) (*Computation, error)
	Generate(ctx context.Context, req GenerateRequest) (*Bill, error)

	// Recalculate re-runs the full assembly against the current tariff/tax
	// configuration but the original consumption, preserving identity and
	// payment history.
	Recalculate(ctx context.Context, billID snowflake.ID) (*Bill, error)

	GetByID(ctx context.Context, billID snowflake.ID) (*Bill, error)

	// HasBillForPeriod reports whether a non-voided bill overlaps the
	// period for the meter. Bulk generation uses it for skip-existing.
	HasBillForPeriod(ctx context.Context, meterID snowflake.ID, periodStart, periodEnd time.Time) (bool, error)

	// ApplyPayment credits amount against the bill. reference, when
	// non-empty, deduplicates the emitted event for retried payments.
	ApplyPayment(ctx context.Context, billID snowflake.ID, amount money.Money, reference string) (*Bill, error)

	// ApplyPaymentTx is ApplyPayment inside the caller's transaction, for
	// collaborators that must record their own rows atomically with the
	// bill mutation.
	ApplyPaymentTx(ctx context.Context, tx *gorm.DB, billID snowflake.ID, amount money.Money, reference string) (*Bill, error)

	Void(ctx context.Context, billID snowflake.ID, reason string) (*Bill, error)

	// MarkOverdue transitions every ISSUED/PARTIAL bill whose due date has
	// passed with an outstanding balance. Returns the number transitioned.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

var (
	ErrBillNotFound            = errors.New("bill_not_found")
	ErrInvalidPeriod           = errors.New("invalid_billing_period")
	ErrDuplicateBillingPeriod  = errors.New("duplicate_billing_period")
	ErrNegativeConsumption     = errors.New("negative_consumption")
	ErrInvalidPaymentAmount    = errors.New("invalid_payment_amount")
	ErrOverpaymentRejected     = errors.New("overpayment_rejected")
	ErrPaymentConflict         = errors.New("payment_conflict")
	ErrVoidReasonRequired      = errors.New("void_reason_required")
	ErrAlreadyVoided           = errors.New("already_voided")
	ErrCannotVoidPaid          = errors.New("cannot_void_paid")
	ErrCannotRecalculateVoided = errors.New("cannot_recalculate_voided")
	ErrCannotRecalculatePaid   = errors.New("cannot_recalculate_paid")
	ErrRecalculateBelowPaid    = errors.New("recalculation_below_paid_amount")
)
