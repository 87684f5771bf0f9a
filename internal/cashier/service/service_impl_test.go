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

	cashierdomain "github.com/smallbiznis/voltway/internal/cashier/domain"
	cashierrepository "github.com/smallbiznis/voltway/internal/cashier/repository"
	"github.com/smallbiznis/voltway/internal/clock"
	"github.com/smallbiznis/voltway/internal/config"
	paymentdomain "github.com/smallbiznis/voltway/internal/payment/domain"
)

type fixture struct {
	t     *testing.T
	db    *gorm.DB
	clk   *clock.FakeClock
	genID *snowflake.Node
	svc   cashierdomain.Service
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
		&paymentdomain.Payment{},
		&cashierdomain.CashierDayClose{},
	))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     genID,
		Clock:     clk,
		Repo:      cashierrepository.Provide(),
		CfgHolder: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})
	return &fixture{t: t, db: db, clk: clk, genID: genID, svc: svc}
}

func (f *fixture) seedPayment(cashierID snowflake.ID, businessDate time.Time, amount string, method paymentdomain.Method) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&paymentdomain.Payment{
		ID:           f.genID.Generate(),
		BillID:       f.genID.Generate(),
		CashierID:    cashierID,
		Amount:       decimal.RequireFromString(amount),
		Method:       method,
		BusinessDate: cashierdomain.BusinessDate(businessDate),
		ReceivedAt:   f.clk.Now(),
	}).Error)
}

func TestCloseDayBalanced(t *testing.T) {
	f := newFixture(t)
	cashierID := f.genID.Generate()
	day := f.clk.Now()
	f.seedPayment(cashierID, day, "1000.00", paymentdomain.MethodCash)
	f.seedPayment(cashierID, day, "500.00", paymentdomain.MethodCash)
	// Non-cash settles outside the drawer.
	f.seedPayment(cashierID, day, "300.00", paymentdomain.MethodCard)
	// Another cashier's drawer does not leak in.
	f.seedPayment(f.genID.Generate(), day, "50.00", paymentdomain.MethodCash)

	close, err := f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:    cashierID,
		BusinessDate: day,
		CountedTotal: decimal.RequireFromString("1500.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", close.OpeningBalance.StringFixed(2))
	assert.Equal(t, "1500.00", close.CashTotal.StringFixed(2))
	assert.Equal(t, "300.00", close.NonCashTotal.StringFixed(2))
	assert.Equal(t, "1500.00", close.ExpectedTotal.StringFixed(2))
	assert.Equal(t, "0.00", close.Variance.StringFixed(2))
	assert.Nil(t, close.VarianceReason)

	got, err := f.svc.GetClose(context.Background(), cashierID, day)
	require.NoError(t, err)
	assert.Equal(t, close.ID, got.ID)
}

func TestCloseDayOpeningBalance(t *testing.T) {
	f := newFixture(t)
	cashierID := f.genID.Generate()
	day := f.clk.Now()
	f.seedPayment(cashierID, day, "1000.00", paymentdomain.MethodCash)

	// A drawer float declared at close shifts the expected position, so a
	// count of just the day's takings is a shortfall.
	opening := decimal.RequireFromString("200.00")
	_, err := f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:      cashierID,
		BusinessDate:   day,
		OpeningBalance: &opening,
		CountedTotal:   decimal.RequireFromString("1000.00"),
	})
	assert.ErrorIs(t, err, cashierdomain.ErrVarianceReasonRequired)

	close, err := f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:      cashierID,
		BusinessDate:   day,
		OpeningBalance: &opening,
		CountedTotal:   decimal.RequireFromString("1200.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "200.00", close.OpeningBalance.StringFixed(2))
	assert.Equal(t, "1200.00", close.ExpectedTotal.StringFixed(2))
	assert.Equal(t, "0.00", close.Variance.StringFixed(2))
}

func TestCloseDayCarriesOpeningForward(t *testing.T) {
	f := newFixture(t)
	cashierID := f.genID.Generate()
	day1 := f.clk.Now()
	day2 := day1.AddDate(0, 0, 1)
	f.seedPayment(cashierID, day1, "100.00", paymentdomain.MethodCash)
	f.seedPayment(cashierID, day2, "50.00", paymentdomain.MethodCash)

	opening := decimal.RequireFromString("200.00")
	first, err := f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:      cashierID,
		BusinessDate:   day1,
		OpeningBalance: &opening,
		CountedTotal:   decimal.RequireFromString("300.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", first.Variance.StringFixed(2))

	// No declared opening: yesterday's counted drawer is the float.
	second, err := f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:    cashierID,
		BusinessDate: day2,
		CountedTotal: decimal.RequireFromString("350.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "300.00", second.OpeningBalance.StringFixed(2))
	assert.Equal(t, "350.00", second.ExpectedTotal.StringFixed(2))
	assert.Equal(t, "0.00", second.Variance.StringFixed(2))
}

func TestCloseDayVarianceNeedsReason(t *testing.T) {
	f := newFixture(t)
	cashierID := f.genID.Generate()
	day := f.clk.Now()
	f.seedPayment(cashierID, day, "1000.00", paymentdomain.MethodCash)

	_, err := f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:    cashierID,
		BusinessDate: day,
		CountedTotal: decimal.RequireFromString("980.00"),
	})
	assert.ErrorIs(t, err, cashierdomain.ErrVarianceReasonRequired)

	close, err := f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:      cashierID,
		BusinessDate:   day,
		CountedTotal:   decimal.RequireFromString("980.00"),
		VarianceReason: "till shortfall, incident 4411",
	})
	require.NoError(t, err)
	assert.Equal(t, "-20.00", close.Variance.StringFixed(2))
	require.NotNil(t, close.VarianceReason)
}

func TestCloseDayWithinTolerance(t *testing.T) {
	f := newFixture(t)
	cashierID := f.genID.Generate()
	day := f.clk.Now()
	f.seedPayment(cashierID, day, "1000.00", paymentdomain.MethodCash)

	// Default tolerance is 0.01.
	close, err := f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:    cashierID,
		BusinessDate: day,
		CountedTotal: decimal.RequireFromString("1000.01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.01", close.Variance.StringFixed(2))
}

func TestCloseDayExactlyOnce(t *testing.T) {
	f := newFixture(t)
	cashierID := f.genID.Generate()
	day := f.clk.Now()

	_, err := f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:    cashierID,
		BusinessDate: day,
		CountedTotal: decimal.Zero,
	})
	require.NoError(t, err)

	_, err = f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:    cashierID,
		BusinessDate: day,
		CountedTotal: decimal.Zero,
	})
	assert.ErrorIs(t, err, cashierdomain.ErrDayAlreadyClosed)

	// A different date for the same cashier still closes.
	_, err = f.svc.CloseDay(context.Background(), cashierdomain.CloseDayRequest{
		CashierID:    cashierID,
		BusinessDate: day.AddDate(0, 0, 1),
		CountedTotal: decimal.Zero,
	})
	require.NoError(t, err)
}

func TestGetCloseNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetClose(context.Background(), f.genID.Generate(), f.clk.Now())
	assert.ErrorIs(t, err, cashierdomain.ErrCloseNotFound)
}
