package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	billingeventdomain "github.com/smallbiznis/voltway/internal/billingevent/domain"
	"github.com/smallbiznis/voltway/internal/clock"
	"github.com/smallbiznis/voltway/internal/config"
	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
	obsmetrics "github.com/smallbiznis/voltway/internal/observability/metrics"
	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
	taxdomain "github.com/smallbiznis/voltway/internal/tax/domain"
	"github.com/smallbiznis/voltway/pkg/money"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	MeterRepo meterdomain.Repository
	TariffSvc tariffdomain.Service
	TaxRepo   taxdomain.Repository
	CfgHolder *config.BillingConfigHolder
	EventSvc  billingeventdomain.Service
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	meterRepo meterdomain.Repository
	tariffSvc tariffdomain.Service
	taxRepo   taxdomain.Repository
	cfgHolder *config.BillingConfigHolder
	eventSvc  billingeventdomain.Service
	metrics   *obsmetrics.Metrics
}

func New(p Params) billingdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("billing.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		meterRepo: p.MeterRepo,
		tariffSvc: p.TariffSvc,
		taxRepo:   p.TaxRepo,
		cfgHolder: p.CfgHolder,
		eventSvc:  p.EventSvc,
		metrics:   p.Metrics,
	}
}

func (s *Service) Preview(ctx context.Context, req billingdomain.PreviewRequest) (*billingdomain.Computation, error) {
	if err := validatePeriod(req.PeriodStart, req.PeriodEnd); err != nil {
		return nil, err
	}

	meter, reading, category, slabs, taxes, err := s.loadAssemblyInputs(ctx, req.MeterID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}

	return assemble(req, meter, reading, category, slabs, taxes, s.cfgHolder.Get())
}

func (s *Service) Generate(ctx context.Context, req billingdomain.GenerateRequest) (*billingdomain.Bill, error) {
	if err := validatePeriod(req.PeriodStart, req.PeriodEnd); err != nil {
		return nil, err
	}
	if req.DueDate.Before(req.PeriodEnd) {
		return nil, billingdomain.ErrInvalidPeriod
	}

	meter, reading, category, slabs, taxes, err := s.loadAssemblyInputs(ctx, req.MeterID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}

	computation, err := assemble(req.PreviewRequest, meter, reading, category, slabs, taxes, s.cfgHolder.Get())
	if err != nil {
		return nil, err
	}

	var bill *billingdomain.Bill
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		overlapping, err := s.overlapExists(ctx, tx, req.MeterID, req.PeriodStart, req.PeriodEnd, 0)
		if err != nil {
			return err
		}
		if overlapping {
			return billingdomain.ErrDuplicateBillingPeriod
		}

		now := s.clock.Now()
		bill = s.billFromComputation(computation, req.DueDate, now)
		if err := s.insertBill(ctx, tx, bill); err != nil {
			return err
		}
		if err := s.insertLines(ctx, tx, bill); err != nil {
			return err
		}

		dedupe := fmt.Sprintf("%s:%s", billingeventdomain.EventBillIssued, bill.ID.String())
		return s.eventSvc.Emit(ctx, tx, billingeventdomain.EventBillIssued, dedupe, billEventPayload(bill))
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncBillIssued()
	}
	s.log.Info("bill issued",
		zap.String("bill_id", bill.ID.String()),
		zap.String("meter_id", bill.MeterID.String()),
		zap.String("total", bill.TotalAmount.StringFixed(2)),
	)
	return bill, nil
}

func (s *Service) Recalculate(ctx context.Context, billID snowflake.ID) (*billingdomain.Bill, error) {
	var updated *billingdomain.Bill
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err := s.loadBill(ctx, tx, billID)
		if err != nil {
			return err
		}
		if bill == nil {
			return billingdomain.ErrBillNotFound
		}
		switch bill.Status {
		case billingdomain.StatusVoided:
			return billingdomain.ErrCannotRecalculateVoided
		case billingdomain.StatusPaid:
			return billingdomain.ErrCannotRecalculatePaid
		}

		meter, err := s.meterRepo.FindByID(ctx, tx, bill.MeterID)
		if err != nil {
			return err
		}
		if meter == nil {
			return meterdomain.ErrMeterNotFound
		}
		if meter.TariffCategoryID == nil {
			return tariffdomain.ErrNoTariffCategory
		}
		category, slabs, err := s.tariffSvc.CategoryWithSlabs(ctx, *meter.TariffCategoryID)
		if err != nil {
			return err
		}
		taxes, err := s.taxRepo.ListEnabled(ctx, tx)
		if err != nil {
			return err
		}

		// Original consumption, current configuration.
		original := &meterdomain.MeterReading{
			MeterID:        bill.MeterID,
			PeriodStart:    bill.PeriodStart,
			PeriodEnd:      bill.PeriodEnd,
			CurrentReading: bill.ConsumedUnits,
			ExportUnits:    bill.ExportUnits,
			Source:         bill.ReadingSource,
		}
		req := billingdomain.PreviewRequest{
			MeterID:          bill.MeterID,
			PeriodStart:      bill.PeriodStart,
			PeriodEnd:        bill.PeriodEnd,
			ApplySubsidy:     bill.ApplySubsidy,
			ApplySolarCredit: bill.ApplySolarCredit,
		}
		computation, err := assemble(req, meter, original, category, slabs, taxes, s.cfgHolder.Get())
		if err != nil {
			return err
		}

		paid := money.FromDecimal(bill.PaidAmount)
		if !paid.IsZero() && computation.TotalAmount.LessThan(paid) {
			return billingdomain.ErrRecalculateBelowPaid
		}

		now := s.clock.Now()
		status := bill.Status
		if !paid.IsZero() && computation.TotalAmount.Equal(paid) {
			status = billingdomain.StatusPaid
		}

		if err := tx.WithContext(ctx).Exec(
			`DELETE FROM bill_line_items WHERE bill_id = ?`, bill.ID,
		).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Exec(
			`DELETE FROM bill_tax_lines WHERE bill_id = ?`, bill.ID,
		).Error; err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Exec(
			`UPDATE bills
			 SET tariff_category_id = ?, energy_subtotal = ?, fixed_charge = ?, subsidy = ?,
			     solar_credit = ?, tax_total = ?, total_amount = ?, status = ?,
			     recalculated_at = ?, updated_at = ?
			 WHERE id = ?`,
			computation.TariffCategoryID,
			computation.EnergySubtotal.Decimal(),
			computation.FixedCharge.Decimal(),
			computation.Subsidy.Decimal(),
			computation.SolarCredit.Decimal(),
			computation.TaxTotal.Decimal(),
			computation.TotalAmount.Decimal(),
			status,
			now,
			now,
			bill.ID,
		).Error; err != nil {
			return err
		}

		refreshed := *bill
		refreshed.TariffCategoryID = computation.TariffCategoryID
		refreshed.EnergySubtotal = computation.EnergySubtotal.Decimal()
		refreshed.FixedCharge = computation.FixedCharge.Decimal()
		refreshed.Subsidy = computation.Subsidy.Decimal()
		refreshed.SolarCredit = computation.SolarCredit.Decimal()
		refreshed.TaxTotal = computation.TaxTotal.Decimal()
		refreshed.TotalAmount = computation.TotalAmount.Decimal()
		refreshed.Status = status
		refreshed.RecalculatedAt = &now
		refreshed.UpdatedAt = now
		refreshed.LineItems = lineItemsFromAllocations(s.genID, bill.ID, computation.LineItems, now)
		refreshed.TaxLines = taxLinesFromComputation(s.genID, bill.ID, computation.TaxLines, now)
		if err := s.insertLines(ctx, tx, &refreshed); err != nil {
			return err
		}

		updated = &refreshed
		return s.eventSvc.Emit(ctx, tx, billingeventdomain.EventBillRecalculated, "", billEventPayload(&refreshed))
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncBillRecalculated()
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, billID snowflake.ID) (*billingdomain.Bill, error) {
	bill, err := s.loadBill(ctx, s.db, billID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billingdomain.ErrBillNotFound
	}
	if err := s.loadLines(ctx, s.db, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *Service) HasBillForPeriod(ctx context.Context, meterID snowflake.ID, periodStart, periodEnd time.Time) (bool, error) {
	return s.overlapExists(ctx, s.db, meterID, periodStart, periodEnd, 0)
}

func (s *Service) loadAssemblyInputs(
	ctx context.Context,
	meterID snowflake.ID,
	periodStart, periodEnd time.Time,
) (*meterdomain.Meter, *meterdomain.MeterReading, *tariffdomain.TariffCategory, []tariffdomain.TariffSlab, []taxdomain.TaxDefinition, error) {
	meter, err := s.meterRepo.FindByID(ctx, s.db, meterID)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	if meter == nil {
		return nil, nil, nil, nil, nil, meterdomain.ErrMeterNotFound
	}
	if meter.TariffCategoryID == nil {
		return nil, nil, nil, nil, nil, tariffdomain.ErrNoTariffCategory
	}

	category, slabs, err := s.tariffSvc.CategoryWithSlabs(ctx, *meter.TariffCategoryID)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	reading, err := s.meterRepo.FindReadingForPeriod(ctx, s.db, meterID, periodStart, periodEnd)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	if reading == nil {
		return nil, nil, nil, nil, nil, meterdomain.ErrNoReadingForPeriod
	}

	taxes, err := s.taxRepo.ListEnabled(ctx, s.db)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	return meter, reading, category, slabs, taxes, nil
}

func (s *Service) overlapExists(ctx context.Context, db *gorm.DB, meterID snowflake.ID, periodStart, periodEnd time.Time, exclude snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM bills
		 WHERE meter_id = ? AND status != ? AND id != ?
		 AND period_start < ? AND period_end > ?`,
		meterID,
		billingdomain.StatusVoided,
		exclude,
		periodEnd,
		periodStart,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) billFromComputation(c *billingdomain.Computation, dueDate time.Time, now time.Time) *billingdomain.Bill {
	billID := s.genID.Generate()
	return &billingdomain.Bill{
		ID:               billID,
		MeterID:          c.MeterID,
		TariffCategoryID: c.TariffCategoryID,
		PeriodStart:      c.PeriodStart,
		PeriodEnd:        c.PeriodEnd,
		DueDate:          dueDate,
		Status:           billingdomain.StatusIssued,
		ReadingSource:    c.ReadingSource,
		ApplySubsidy:     c.ApplySubsidy,
		ApplySolarCredit: c.ApplySolarCredit,
		ConsumedUnits:    c.ConsumedUnits.Decimal(),
		ExportUnits:      c.ExportUnits.Decimal(),
		EnergySubtotal:   c.EnergySubtotal.Decimal(),
		FixedCharge:      c.FixedCharge.Decimal(),
		Subsidy:          c.Subsidy.Decimal(),
		SolarCredit:      c.SolarCredit.Decimal(),
		TaxTotal:         c.TaxTotal.Decimal(),
		TotalAmount:      c.TotalAmount.Decimal(),
		IssuedAt:         now,
		CreatedAt:        now,
		UpdatedAt:        now,
		LineItems:        lineItemsFromAllocations(s.genID, billID, c.LineItems, now),
		TaxLines:         taxLinesFromComputation(s.genID, billID, c.TaxLines, now),
	}
}

func lineItemsFromAllocations(genID *snowflake.Node, billID snowflake.ID, allocations []tariffdomain.Allocation, now time.Time) []billingdomain.BillLineItem {
	items := make([]billingdomain.BillLineItem, 0, len(allocations))
	for i, allocation := range allocations {
		items = append(items, billingdomain.BillLineItem{
			ID:          genID.Generate(),
			BillID:      billID,
			Position:    i,
			FromUnit:    allocation.FromUnit,
			ToUnit:      allocation.ToUnit,
			Units:       allocation.Units.Decimal(),
			RatePerUnit: allocation.RatePerUnit.Decimal(),
			Amount:      allocation.Amount.Decimal(),
			CreatedAt:   now,
		})
	}
	return items
}

func taxLinesFromComputation(genID *snowflake.Node, billID snowflake.ID, lines []taxdomain.Line, now time.Time) []billingdomain.BillTaxLine {
	out := make([]billingdomain.BillTaxLine, 0, len(lines))
	for i, line := range lines {
		out = append(out, billingdomain.BillTaxLine{
			ID:            genID.Generate(),
			BillID:        billID,
			Position:      i,
			Code:          line.Code,
			Name:          line.Name,
			RatePercent:   line.RatePercent.Decimal(),
			TaxableAmount: line.TaxableAmount.Decimal(),
			TaxAmount:     line.TaxAmount.Decimal(),
			CreatedAt:     now,
		})
	}
	return out
}

func (s *Service) insertBill(ctx context.Context, tx *gorm.DB, bill *billingdomain.Bill) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO bills (
			id, meter_id, tariff_category_id, period_start, period_end, due_date, status,
			reading_source, apply_subsidy, apply_solar_credit, consumed_units, export_units,
			energy_subtotal, fixed_charge, subsidy, solar_credit, tax_total, total_amount,
			paid_amount, issued_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID,
		bill.MeterID,
		bill.TariffCategoryID,
		bill.PeriodStart,
		bill.PeriodEnd,
		bill.DueDate,
		bill.Status,
		bill.ReadingSource,
		bill.ApplySubsidy,
		bill.ApplySolarCredit,
		bill.ConsumedUnits,
		bill.ExportUnits,
		bill.EnergySubtotal,
		bill.FixedCharge,
		bill.Subsidy,
		bill.SolarCredit,
		bill.TaxTotal,
		bill.TotalAmount,
		bill.PaidAmount,
		bill.IssuedAt,
		bill.CreatedAt,
		bill.UpdatedAt,
	).Error
}

func (s *Service) insertLines(ctx context.Context, tx *gorm.DB, bill *billingdomain.Bill) error {
	for _, item := range bill.LineItems {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO bill_line_items (id, bill_id, position, from_unit, to_unit, units, rate_per_unit, amount, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.BillID, item.Position, item.FromUnit, item.ToUnit,
			item.Units, item.RatePerUnit, item.Amount, item.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	for _, line := range bill.TaxLines {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO bill_tax_lines (id, bill_id, position, code, name, rate_percent, taxable_amount, tax_amount, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.ID, line.BillID, line.Position, line.Code, line.Name,
			line.RatePercent, line.TaxableAmount, line.TaxAmount, line.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) loadBill(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.Bill, error) {
	var bill billingdomain.Bill
	err := db.WithContext(ctx).Raw(
		`SELECT id, meter_id, tariff_category_id, period_start, period_end, due_date, status,
		        reading_source, apply_subsidy, apply_solar_credit, consumed_units, export_units,
		        energy_subtotal, fixed_charge, subsidy, solar_credit, tax_total, total_amount,
		        paid_amount, void_reason, voided_at, issued_at, recalculated_at, created_at, updated_at
		 FROM bills WHERE id = ?`,
		id,
	).Scan(&bill).Error
	if err != nil {
		return nil, err
	}
	if bill.ID == 0 {
		return nil, nil
	}
	return &bill, nil
}

func (s *Service) loadLines(ctx context.Context, db *gorm.DB, bill *billingdomain.Bill) error {
	if err := db.WithContext(ctx).Raw(
		`SELECT id, bill_id, position, from_unit, to_unit, units, rate_per_unit, amount, created_at
		 FROM bill_line_items WHERE bill_id = ? ORDER BY position ASC`,
		bill.ID,
	).Scan(&bill.LineItems).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Raw(
		`SELECT id, bill_id, position, code, name, rate_percent, taxable_amount, tax_amount, created_at
		 FROM bill_tax_lines WHERE bill_id = ? ORDER BY position ASC`,
		bill.ID,
	).Scan(&bill.TaxLines).Error
}

func billEventPayload(bill *billingdomain.Bill) map[string]any {
	payload := map[string]any{
		"bill_id":      bill.ID.String(),
		"meter_id":     bill.MeterID.String(),
		"period_start": bill.PeriodStart.Format(time.RFC3339),
		"period_end":   bill.PeriodEnd.Format(time.RFC3339),
		"status":       string(bill.Status),
		"total_amount": bill.TotalAmount.StringFixed(2),
		"paid_amount":  bill.PaidAmount.StringFixed(2),
	}
	if bill.VoidReason != nil {
		payload["void_reason"] = *bill.VoidReason
	}
	return payload
}

func validatePeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return billingdomain.ErrInvalidPeriod
	}
	return nil
}
