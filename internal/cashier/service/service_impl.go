package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	cashierdomain "github.com/smallbiznis/voltway/internal/cashier/domain"
	"github.com/smallbiznis/voltway/internal/clock"
	"github.com/smallbiznis/voltway/internal/config"
	obsmetrics "github.com/smallbiznis/voltway/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/voltway/internal/payment/domain"
	"github.com/smallbiznis/voltway/pkg/money"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      cashierdomain.Repository
	CfgHolder *config.BillingConfigHolder
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      cashierdomain.Repository
	cfgHolder *config.BillingConfigHolder
	metrics   *obsmetrics.Metrics
}

func New(p Params) cashierdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("cashier.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		cfgHolder: p.CfgHolder,
		metrics:   p.Metrics,
	}
}

func (s *Service) CloseDay(ctx context.Context, req cashierdomain.CloseDayRequest) (*cashierdomain.CashierDayClose, error) {
	if req.BusinessDate.IsZero() {
		return nil, cashierdomain.ErrInvalidBusinessDate
	}
	businessDate := cashierdomain.BusinessDate(req.BusinessDate)

	var close *cashierdomain.CashierDayClose
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opening, err := s.openingBalance(ctx, tx, req, businessDate)
		if err != nil {
			return err
		}
		cash, err := s.collectedByMethod(ctx, tx, req.CashierID, businessDate, paymentdomain.MethodCash)
		if err != nil {
			return err
		}
		nonCash, err := s.collectedNonCash(ctx, tx, req.CashierID, businessDate)
		if err != nil {
			return err
		}

		expected := opening.Add(cash)
		counted := money.FromDecimal(req.CountedTotal).Round2()
		variance := counted.Sub(expected)
		tolerance := money.FromFloat(s.cfgHolder.Get().CashVarianceTolerance)
		reason := strings.TrimSpace(req.VarianceReason)
		if variance.Abs().GreaterThan(tolerance) && reason == "" {
			return cashierdomain.ErrVarianceReasonRequired
		}

		now := s.clock.Now()
		close = &cashierdomain.CashierDayClose{
			ID:             s.genID.Generate(),
			CashierID:      req.CashierID,
			BusinessDate:   businessDate,
			OpeningBalance: opening.Decimal(),
			CashTotal:      cash.Decimal(),
			NonCashTotal:   nonCash.Decimal(),
			ExpectedTotal:  expected.Decimal(),
			CountedTotal:   counted.Decimal(),
			Variance:       variance.Decimal(),
			ClosedAt:       now,
			CreatedAt:      now,
		}
		if reason != "" {
			close.VarianceReason = &reason
		}

		// The unique index on (cashier_id, business_date) makes the
		// insert the close's linearization point: exactly one attempt
		// wins, every other racer sees zero rows affected.
		res := tx.WithContext(ctx).Exec(
			`INSERT INTO cashier_day_closes (id, cashier_id, business_date, opening_balance, cash_total, non_cash_total, expected_total, counted_total, variance, variance_reason, closed_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (cashier_id, business_date) DO NOTHING`,
			close.ID, close.CashierID, close.BusinessDate, close.OpeningBalance,
			close.CashTotal, close.NonCashTotal, close.ExpectedTotal,
			close.CountedTotal, close.Variance, close.VarianceReason, close.ClosedAt, close.CreatedAt,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return cashierdomain.ErrDayAlreadyClosed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncCashierDayClosed()
	}
	s.log.Info("cashier day closed",
		zap.String("cashier_id", close.CashierID.String()),
		zap.Time("business_date", close.BusinessDate),
		zap.String("expected", close.ExpectedTotal.StringFixed(2)),
		zap.String("counted", close.CountedTotal.StringFixed(2)),
		zap.String("variance", close.Variance.StringFixed(2)),
	)
	return close, nil
}

func (s *Service) GetClose(ctx context.Context, cashierID snowflake.ID, businessDate time.Time) (*cashierdomain.CashierDayClose, error) {
	close, err := s.repo.FindClose(ctx, s.db, cashierID, businessDate)
	if err != nil {
		return nil, err
	}
	if close == nil {
		return nil, cashierdomain.ErrCloseNotFound
	}
	return close, nil
}

// openingBalance resolves the drawer float for the date: the declared value
// when the request carries one, otherwise the counted total of the cashier's
// most recent prior close.
func (s *Service) openingBalance(ctx context.Context, tx *gorm.DB, req cashierdomain.CloseDayRequest, businessDate time.Time) (money.Money, error) {
	if req.OpeningBalance != nil {
		return money.FromDecimal(*req.OpeningBalance).Round2(), nil
	}
	prior, err := s.repo.FindLatestCloseBefore(ctx, tx, req.CashierID, businessDate)
	if err != nil {
		return money.ZeroMoney(), err
	}
	if prior == nil {
		return money.ZeroMoney(), nil
	}
	return money.FromDecimal(prior.CountedTotal).Round2(), nil
}

func (s *Service) collectedByMethod(ctx context.Context, tx *gorm.DB, cashierID snowflake.ID, businessDate time.Time, method paymentdomain.Method) (money.Money, error) {
	var total decimal.NullDecimal
	err := tx.WithContext(ctx).Raw(
		`SELECT SUM(amount) FROM payments
		 WHERE cashier_id = ? AND business_date = ? AND method = ?`,
		cashierID, businessDate, method,
	).Scan(&total).Error
	if err != nil {
		return money.ZeroMoney(), err
	}
	if !total.Valid {
		return money.ZeroMoney(), nil
	}
	return money.FromDecimal(total.Decimal).Round2(), nil
}

// collectedNonCash sums the day's card and transfer payments. They settle
// outside the drawer, so they inform the report without moving the variance.
func (s *Service) collectedNonCash(ctx context.Context, tx *gorm.DB, cashierID snowflake.ID, businessDate time.Time) (money.Money, error) {
	var total decimal.NullDecimal
	err := tx.WithContext(ctx).Raw(
		`SELECT SUM(amount) FROM payments
		 WHERE cashier_id = ? AND business_date = ? AND method != ?`,
		cashierID, businessDate, paymentdomain.MethodCash,
	).Scan(&total).Error
	if err != nil {
		return money.ZeroMoney(), err
	}
	if !total.Valid {
		return money.ZeroMoney(), nil
	}
	return money.FromDecimal(total.Decimal).Round2(), nil
}
