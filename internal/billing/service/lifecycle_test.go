package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	billingeventdomain "github.com/smallbiznis/voltway/internal/billingevent/domain"
	"github.com/smallbiznis/voltway/pkg/money"
)

func (f *fixture) issueBill(units string) *billingdomain.Bill {
	f.t.Helper()
	categoryID := f.seedTariff("200")
	f.seedTax("VAT", "15", 0)
	meterID := f.seedMeter(categoryID)
	f.seedReading(meterID, periodStart, periodEnd, "0", units)

	bill, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
		PreviewRequest: billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: periodStart, PeriodEnd: periodEnd},
		DueDate:        dueDate,
	})
	require.NoError(f.t, err)
	return bill
}

func TestApplyPaymentLifecycle(t *testing.T) {
	f := newFixture(t)
	bill := f.issueBill("220") // total 3852.50

	partial, err := f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("1000"), "rcpt-1")
	require.NoError(t, err)
	assert.Equal(t, billingdomain.StatusPartial, partial.Status)
	assert.Equal(t, "1000.00", partial.PaidAmount.StringFixed(2))
	assert.Equal(t, "2852.50", partial.Outstanding().StringFixed(2))

	paid, err := f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("2852.50"), "rcpt-2")
	require.NoError(t, err)
	assert.Equal(t, billingdomain.StatusPaid, paid.Status)
	assert.Equal(t, "0.00", paid.Outstanding().StringFixed(2))

	assert.EqualValues(t, 2, f.eventCount(billingeventdomain.EventPaymentApplied))

	// Settled bills accept nothing further.
	_, err = f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("0.01"), "rcpt-3")
	assert.ErrorIs(t, err, billingdomain.ErrOverpaymentRejected)
}

func TestApplyPaymentValidation(t *testing.T) {
	f := newFixture(t)
	bill := f.issueBill("220")

	_, err := f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("0"), "")
	assert.ErrorIs(t, err, billingdomain.ErrInvalidPaymentAmount)

	_, err = f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("-5"), "")
	assert.ErrorIs(t, err, billingdomain.ErrInvalidPaymentAmount)

	_, err = f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("9999.99"), "")
	assert.ErrorIs(t, err, billingdomain.ErrOverpaymentRejected)

	_, err = f.svc.ApplyPayment(context.Background(), f.genID.Generate(), money.MustParse("10"), "")
	assert.ErrorIs(t, err, billingdomain.ErrBillNotFound)
}

func TestVoidBill(t *testing.T) {
	f := newFixture(t)
	bill := f.issueBill("220")

	_, err := f.svc.Void(context.Background(), bill.ID, "   ")
	assert.ErrorIs(t, err, billingdomain.ErrVoidReasonRequired)

	voided, err := f.svc.Void(context.Background(), bill.ID, "duplicate entry")
	require.NoError(t, err)
	assert.Equal(t, billingdomain.StatusVoided, voided.Status)
	require.NotNil(t, voided.VoidReason)
	assert.Equal(t, "duplicate entry", *voided.VoidReason)
	assert.Equal(t, "0.00", voided.Outstanding().StringFixed(2))

	_, err = f.svc.Void(context.Background(), bill.ID, "again")
	assert.ErrorIs(t, err, billingdomain.ErrAlreadyVoided)

	// Voided bills accept no payments.
	_, err = f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("10"), "")
	assert.ErrorIs(t, err, billingdomain.ErrOverpaymentRejected)

	// The stored amount owed is superseded to zero, but the line items
	// survive for audit.
	loaded, err := f.svc.GetByID(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", loaded.TotalAmount.StringFixed(2))
	assert.Equal(t, "0.00", loaded.TaxTotal.StringFixed(2))
	assert.Len(t, loaded.LineItems, 3)
	assert.Len(t, loaded.TaxLines, 1)
}

func TestVoidPaidBillRejected(t *testing.T) {
	f := newFixture(t)
	bill := f.issueBill("220")

	_, err := f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("3852.50"), "rcpt-1")
	require.NoError(t, err)

	_, err = f.svc.Void(context.Background(), bill.ID, "too late")
	assert.ErrorIs(t, err, billingdomain.ErrCannotVoidPaid)
}

func TestMarkOverdue(t *testing.T) {
	f := newFixture(t)
	bill := f.issueBill("220")

	// Not due yet.
	n, err := f.svc.MarkOverdue(context.Background(), dueDate)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = f.svc.MarkOverdue(context.Background(), dueDate.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	loaded, err := f.svc.GetByID(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, billingdomain.StatusOverdue, loaded.Status)

	// Sweep is idempotent.
	n, err = f.svc.MarkOverdue(context.Background(), dueDate.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	// Overdue bills still settle.
	paid, err := f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("3852.50"), "late-1")
	require.NoError(t, err)
	assert.Equal(t, billingdomain.StatusPaid, paid.Status)
}

func TestRecalculateAfterTariffChange(t *testing.T) {
	f := newFixture(t)
	bill := f.issueBill("220") // total 3852.50

	// Double every slab rate.
	require.NoError(t, f.db.Exec(
		`UPDATE tariff_slabs SET rate_per_unit = rate_per_unit * 2 WHERE category_id = ?`,
		bill.TariffCategoryID,
	).Error)

	recalced, err := f.svc.Recalculate(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, bill.ID, recalced.ID)
	// Energy 6300 + fixed 200 = 6500; 15% tax = 975.
	assert.Equal(t, "7475.00", recalced.TotalAmount.StringFixed(2))
	assert.NotNil(t, recalced.RecalculatedAt)
	assert.True(t, recalced.ConsumedUnits.Equal(bill.ConsumedUnits), "consumption is preserved")

	loaded, err := f.svc.GetByID(context.Background(), bill.ID)
	require.NoError(t, err)
	require.Len(t, loaded.LineItems, 3)
	assert.Equal(t, "1000.00", loaded.LineItems[0].Amount.StringFixed(2))

	assert.EqualValues(t, 1, f.eventCount(billingeventdomain.EventBillRecalculated))

	// Unchanged configuration reproduces the same totals.
	again, err := f.svc.Recalculate(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, recalced.TotalAmount.StringFixed(2), again.TotalAmount.StringFixed(2))
}

func TestRecalculateGuards(t *testing.T) {
	f := newFixture(t)

	t.Run("voided", func(t *testing.T) {
		bill := f.issueBill("220")
		_, err := f.svc.Void(context.Background(), bill.ID, "bad data")
		require.NoError(t, err)
		_, err = f.svc.Recalculate(context.Background(), bill.ID)
		assert.ErrorIs(t, err, billingdomain.ErrCannotRecalculateVoided)
	})

	t.Run("unknown bill", func(t *testing.T) {
		_, err := f.svc.Recalculate(context.Background(), f.genID.Generate())
		assert.ErrorIs(t, err, billingdomain.ErrBillNotFound)
	})
}

func TestRecalculatePaidAndBelowPaid(t *testing.T) {
	f := newFixture(t)
	categoryID := f.seedTariff("200")
	f.seedTax("VAT", "15", 0)
	meterID := f.seedMeter(categoryID)
	f.seedReading(meterID, periodStart, periodEnd, "0", "220")

	bill, err := f.svc.Generate(context.Background(), billingdomain.GenerateRequest{
		PreviewRequest: billingdomain.PreviewRequest{MeterID: meterID, PeriodStart: periodStart, PeriodEnd: periodEnd},
		DueDate:        dueDate,
	})
	require.NoError(t, err)

	_, err = f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("3000"), "rcpt-1")
	require.NoError(t, err)

	// Dropping the rates would take the new total below what was already
	// collected.
	require.NoError(t, f.db.Exec(
		`UPDATE tariff_slabs SET rate_per_unit = 1 WHERE category_id = ?`, categoryID,
	).Error)
	_, err = f.svc.Recalculate(context.Background(), bill.ID)
	assert.ErrorIs(t, err, billingdomain.ErrRecalculateBelowPaid)

	// Fully paid bills are immutable.
	_, err = f.svc.ApplyPayment(context.Background(), bill.ID, money.MustParse("852.50"), "rcpt-2")
	require.NoError(t, err)
	_, err = f.svc.Recalculate(context.Background(), bill.ID)
	assert.ErrorIs(t, err, billingdomain.ErrCannotRecalculatePaid)
}

func TestHasBillForPeriod(t *testing.T) {
	f := newFixture(t)
	bill := f.issueBill("100")

	ok, err := f.svc.HasBillForPeriod(context.Background(), bill.MeterID, periodStart, periodEnd)
	require.NoError(t, err)
	assert.True(t, ok)

	nextStart := periodEnd
	nextEnd := periodEnd.AddDate(0, 1, 0)
	ok, err = f.svc.HasBillForPeriod(context.Background(), bill.MeterID, nextStart, nextEnd)
	require.NoError(t, err)
	assert.False(t, ok, "adjacent period does not overlap")

	_, err = f.svc.Void(context.Background(), bill.ID, "rebill")
	require.NoError(t, err)
	ok, err = f.svc.HasBillForPeriod(context.Background(), bill.MeterID, periodStart, periodEnd)
	require.NoError(t, err)
	assert.False(t, ok, "voided bills do not block the period")
}
