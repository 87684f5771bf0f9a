package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	billingeventdomain "github.com/smallbiznis/voltway/internal/billingevent/domain"
	billingeventservice "github.com/smallbiznis/voltway/internal/billingevent/service"
	"github.com/smallbiznis/voltway/internal/clock"
	"github.com/smallbiznis/voltway/internal/config"
	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
	meterrepository "github.com/smallbiznis/voltway/internal/meter/repository"
	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
	tariffrepository "github.com/smallbiznis/voltway/internal/tariff/repository"
	tariffservice "github.com/smallbiznis/voltway/internal/tariff/service"
	taxdomain "github.com/smallbiznis/voltway/internal/tax/domain"
	taxrepository "github.com/smallbiznis/voltway/internal/tax/repository"
	"github.com/smallbiznis/voltway/pkg/money"
)

type fixture struct {
	t     *testing.T
	db    *gorm.DB
	clk   *clock.FakeClock
	genID *snowflake.Node
	svc   billingdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&tariffdomain.TariffCategory{},
		&tariffdomain.TariffSlab{},
		&meterdomain.Meter{},
		&meterdomain.MeterReading{},
		&taxdomain.TaxDefinition{},
		&billingdomain.Bill{},
		&billingdomain.BillLineItem{},
		&billingdomain.BillTaxLine{},
		&billingeventdomain.BillingEvent{},
	))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:        db,
		Log:       log,
		GenID:     genID,
		Clock:     clk,
		MeterRepo: meterrepository.Provide(),
		TariffSvc: tariffservice.New(tariffservice.Params{DB: db, Log: log, Repo: tariffrepository.Provide()}),
		TaxRepo:   taxrepository.Provide(),
		CfgHolder: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		EventSvc:  billingeventservice.New(billingeventservice.Params{DB: db, Log: log, GenID: genID}),
	})

	return &fixture{t: t, db: db, clk: clk, genID: genID, svc: svc}
}

func (f *fixture) seedTariff(fixedCharge string) snowflake.ID {
	f.t.Helper()
	categoryID := f.genID.Generate()
	require.NoError(f.t, f.db.Create(&tariffdomain.TariffCategory{
		ID:          categoryID,
		Code:        fmt.Sprintf("RES-%s", categoryID),
		Name:        "Residential",
		UtilityType: tariffdomain.UtilityElectricity,
		FixedCharge: decimal.RequireFromString(fixedCharge),
		Active:      true,
	}).Error)

	fifty := decimal.NewFromInt(50)
	twoHundred := decimal.NewFromInt(200)
	slabs := []tariffdomain.TariffSlab{
		{ID: f.genID.Generate(), CategoryID: categoryID, Position: 0, FromUnit: decimal.Zero, ToUnit: &fifty, RatePerUnit: decimal.NewFromInt(10)},
		{ID: f.genID.Generate(), CategoryID: categoryID, Position: 1, FromUnit: fifty, ToUnit: &twoHundred, RatePerUnit: decimal.NewFromInt(15)},
		{ID: f.genID.Generate(), CategoryID: categoryID, Position: 2, FromUnit: twoHundred, RatePerUnit: decimal.NewFromInt(20)},
	}
	for _, slab := range slabs {
		require.NoError(f.t, f.db.Create(&slab).Error)
	}
	return categoryID
}

func (f *fixture) seedTax(code, rate string, position int) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&taxdomain.TaxDefinition{
		ID:          f.genID.Generate(),
		Code:        code,
		Name:        code,
		RatePercent: decimal.RequireFromString(rate),
		Position:    position,
		Enabled:     true,
	}).Error)
}

func (f *fixture) seedMeter(categoryID snowflake.ID, mutate ...func(*meterdomain.Meter)) snowflake.ID {
	f.t.Helper()
	meter := &meterdomain.Meter{
		ID:               f.genID.Generate(),
		SerialNumber:     fmt.Sprintf("MTR-%d", f.genID.Generate()),
		CustomerID:       f.genID.Generate(),
		UtilityType:      tariffdomain.UtilityElectricity,
		CustomerType:     meterdomain.CustomerResidential,
		AreaCode:         "A1",
		TariffCategoryID: &categoryID,
		Active:           true,
	}
	for _, fn := range mutate {
		fn(meter)
	}
	require.NoError(f.t, f.db.Create(meter).Error)
	return meter.ID
}

func (f *fixture) seedReading(meterID snowflake.ID, start, end time.Time, previous, current string, mutate ...func(*meterdomain.MeterReading)) {
	f.t.Helper()
	reading := &meterdomain.MeterReading{
		ID:              f.genID.Generate(),
		MeterID:         meterID,
		PeriodStart:     start,
		PeriodEnd:       end,
		PreviousReading: decimal.RequireFromString(previous),
		CurrentReading:  decimal.RequireFromString(current),
		Source:          meterdomain.ReadingSourceNormal,
		RecordedAt:      f.clk.Now(),
	}
	for _, fn := range mutate {
		fn(reading)
	}
	require.NoError(f.t, f.db.Create(reading).Error)
}

func (f *fixture) eventCount(eventType string) int64 {
	f.t.Helper()
	var count int64
	require.NoError(f.t, f.db.Raw(
		`SELECT COUNT(*) FROM billing_events WHERE event_type = ?`, eventType,
	).Scan(&count).Error)
	return count
}

var (
	periodStart = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	dueDate     = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
)

func TestGenerateProgressiveBill(t *testing.T) {
	f := newFixture(t)
	categoryID := f.seedTariff("200")
	f.seedTax("VAT", "15", 0)
	meterID := f.seedMeter(categoryID)
	f.seedReading(meterID, periodStart, periodEnd, "1000", "1220")

	bill, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
		PreviewRequest: billingdomain.PreviewRequest{
			MeterID:     meterID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		},
		DueDate: dueDate,
	})
	require.NoError(t, err)

	assert.Equal(t, billingdomain.StatusIssued, bill.Status)
	assert.Equal(t, "3150.00", bill.EnergySubtotal.StringFixed(2))
	assert.Equal(t, "200.00", bill.FixedCharge.StringFixed(2))
	assert.Equal(t, "502.50", bill.TaxTotal.StringFixed(2))
	assert.Equal(t, "3852.50", bill.TotalAmount.StringFixed(2))

	require.Len(t, bill.LineItems, 3)
	assert.Equal(t, "500.00", bill.LineItems[0].Amount.StringFixed(2))
	assert.Equal(t, "2250.00", bill.LineItems[1].Amount.StringFixed(2))
	assert.Equal(t, "400.00", bill.LineItems[2].Amount.StringFixed(2))

	// Line item units reconcile to the consumption billed.
	sum := decimal.Zero
	for _, item := range bill.LineItems {
		sum = sum.Add(item.Units)
	}
	assert.True(t, sum.Equal(bill.ConsumedUnits), "line units %s != consumed %s", sum, bill.ConsumedUnits)

	require.Len(t, bill.TaxLines, 1)
	assert.Equal(t, "3350.00", bill.TaxLines[0].TaxableAmount.StringFixed(2))

	assert.EqualValues(t, 1, f.eventCount(billingeventdomain.EventBillIssued))

	loaded, err := f.svc.GetByID(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, bill.TotalAmount.StringFixed(2), loaded.TotalAmount.StringFixed(2))
	require.Len(t, loaded.LineItems, 3)
}

func TestPreviewMatchesGenerate(t *testing.T) {
	f := newFixture(t)
	categoryID := f.seedTariff("200")
	f.seedTax("VAT", "15", 0)
	meterID := f.seedMeter(categoryID)
	f.seedReading(meterID, periodStart, periodEnd, "0", "220")

	req := billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: periodStart, PeriodEnd: periodEnd}

	preview, err := f.svc.Preview(context.Background(), req)
	require.NoError(t, err)

	bill, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{PreviewRequest: req, DueDate: dueDate})
	require.NoError(t, err)

	assert.Equal(t, preview.TotalAmount.String(), money.FromDecimal(bill.TotalAmount).String())
	assert.Equal(t, preview.TaxTotal.String(), money.FromDecimal(bill.TaxTotal).String())
	assert.Len(t, bill.LineItems, len(preview.LineItems))

	// Preview itself persists nothing.
	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM bills`).Scan(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGenerateRejectsOverlappingPeriod(t *testing.T) {
	f := newFixture(t)
	categoryID := f.seedTariff("200")
	f.seedTax("VAT", "15", 0)
	meterID := f.seedMeter(categoryID)
	f.seedReading(meterID, periodStart, periodEnd, "0", "100")

	req := billingdomain.GenerateRequest{
		PreviewRequest: billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: periodStart, PeriodEnd: periodEnd},
		DueDate:        dueDate,
	}
	_, err := f.svc.Generate(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.Generate(context.Background(), req)
	assert.ErrorIs(t, err, billingdomain.ErrDuplicateBillingPeriod)

	// Partial overlap is rejected too.
	overlapStart := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	overlapEnd := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	f.seedReading(meterID, overlapStart, overlapEnd, "100", "150")
	_, err = f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
		PreviewRequest: billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: overlapStart, PeriodEnd: overlapEnd},
		DueDate:        overlapEnd.AddDate(0, 0, 14),
	})
	assert.ErrorIs(t, err, billingdomain.ErrDuplicateBillingPeriod)
}

func TestGenerateAfterVoidSamePeriod(t *testing.T) {
	f := newFixture(t)
	categoryID := f.seedTariff("200")
	f.seedTax("VAT", "15", 0)
	meterID := f.seedMeter(categoryID)
	f.seedReading(meterID, periodStart, periodEnd, "0", "100")

	req := billingdomain.GenerateRequest{
		PreviewRequest: billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: periodStart, PeriodEnd: periodEnd},
		DueDate:        dueDate,
	}
	first, err := f.svc.Generate(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.Void(context.Background(), first.ID, "misread meter")
	require.NoError(t, err)

	second, err := f.svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestGenerateMissingInputs(t *testing.T) {
	f := newFixture(t)
	categoryID := f.seedTariff("200")
	f.seedTax("VAT", "15", 0)

	t.Run("unknown meter", func(t *testing.T) {
		_, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
			PreviewRequest: billingdomain.PreviewRequest{MeterID: f.genID.Generate(), PeriodStart: periodStart, PeriodEnd: periodEnd},
			DueDate:        dueDate,
		})
		assert.ErrorIs(t, err, meterdomain.ErrMeterNotFound)
	})

	t.Run("no tariff category", func(t *testing.T) {
		meterID := f.seedMeter(categoryID, func(m *meterdomain.Meter) { m.TariffCategoryID = nil })
		_, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
			PreviewRequest: billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: periodStart, PeriodEnd: periodEnd},
			DueDate:        dueDate,
		})
		assert.ErrorIs(t, err, tariffdomain.ErrNoTariffCategory)
	})

	t.Run("no reading", func(t *testing.T) {
		meterID := f.seedMeter(categoryID)
		_, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
			PreviewRequest: billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: periodStart, PeriodEnd: periodEnd},
			DueDate:        dueDate,
		})
		assert.ErrorIs(t, err, meterdomain.ErrNoReadingForPeriod)
	})

	t.Run("inverted period", func(t *testing.T) {
		meterID := f.seedMeter(categoryID)
		_, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
			PreviewRequest: billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: periodEnd, PeriodEnd: periodStart},
			DueDate:        dueDate,
		})
		assert.ErrorIs(t, err, billingdomain.ErrInvalidPeriod)
	})
}

func TestGenerateNegativeConsumption(t *testing.T) {
	f := newFixture(t)
	categoryID := f.seedTariff("200")
	f.seedTax("VAT", "15", 0)

	t.Run("normal reading rejected", func(t *testing.T) {
		meterID := f.seedMeter(categoryID)
		f.seedReading(meterID, periodStart, periodEnd, "500", "480")
		_, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
			PreviewRequest: billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: periodStart, PeriodEnd: periodEnd},
			DueDate:        dueDate,
		})
		assert.ErrorIs(t, err, billingdomain.ErrNegativeConsumption)
	})

	t.Run("corrected reading bills zero units", func(t *testing.T) {
		meterID := f.seedMeter(categoryID)
		f.seedReading(meterID, periodStart, periodEnd, "500", "480", func(r *meterdomain.MeterReading) {
			r.Source = meterdomain.ReadingSourceCorrected
		})
		bill, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
			PreviewRequest: billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: periodStart, PeriodEnd: periodEnd},
			DueDate:        dueDate,
		})
		require.NoError(t, err)
		assert.Equal(t, meterdomain.ReadingSourceCorrected, bill.ReadingSource)
		assert.Equal(t, "0.00", bill.EnergySubtotal.StringFixed(2))
		// Fixed charge and its tax still apply.
		assert.Equal(t, "230.00", bill.TotalAmount.StringFixed(2))
	})
}

func TestGenerateWithSubsidyAndSolar(t *testing.T) {
	f := newFixture(t)
	categoryID := f.seedTariff("200")
	f.seedTax("VAT", "15", 0)
	meterID := f.seedMeter(categoryID, func(m *meterdomain.Meter) {
		m.SubsidyEligible = true
		m.SolarEnabled = true
	})
	f.seedReading(meterID, periodStart, periodEnd, "0", "220", func(r *meterdomain.MeterReading) {
		r.ExportUnits = decimal.NewFromInt(30)
	})

	bill, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
		PreviewRequest: billingdomain.PreviewRequest{
			MeterID:          meterID,
			PeriodStart:      periodStart,
			PeriodEnd:        periodEnd,
			ApplySubsidy:     true,
			ApplySolarCredit: true,
		},
		DueDate: dueDate,
	})
	require.NoError(t, err)

	// 10% of 3150 energy = 315; 30 exported units at 8.0 = 240.
	assert.Equal(t, "315.00", bill.Subsidy.StringFixed(2))
	assert.Equal(t, "240.00", bill.SolarCredit.StringFixed(2))
	// Base 3150 + 200 - 315 - 240 = 2795; 15% tax = 419.25.
	assert.Equal(t, "419.25", bill.TaxTotal.StringFixed(2))
	assert.Equal(t, "3214.25", bill.TotalAmount.StringFixed(2))
}

func TestGenerateFlagsIgnoredForIneligibleMeter(t *testing.T) {
	f := newFixture(t)
	categoryID := f.seedTariff("200")
	f.seedTax("VAT", "15", 0)
	meterID := f.seedMeter(categoryID)
	f.seedReading(meterID, periodStart, periodEnd, "0", "220")

	bill, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
		PreviewRequest: billingdomain.PreviewRequest{
			MeterID:          meterID,
			PeriodStart:      periodStart,
			PeriodEnd:        periodEnd,
			ApplySubsidy:     true,
			ApplySolarCredit: true,
		},
		DueDate: dueDate,
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", bill.Subsidy.StringFixed(2))
	assert.Equal(t, "0.00", bill.SolarCredit.StringFixed(2))
	assert.Equal(t, "3852.50", bill.TotalAmount.StringFixed(2))
}
