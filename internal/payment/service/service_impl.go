package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	cashierdomain "github.com/smallbiznis/voltway/internal/cashier/domain"
	"github.com/smallbiznis/voltway/internal/clock"
	"github.com/smallbiznis/voltway/internal/config"
	paymentdomain "github.com/smallbiznis/voltway/internal/payment/domain"
	"github.com/smallbiznis/voltway/pkg/db"
	"github.com/smallbiznis/voltway/pkg/money"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	BillingSvc  billingdomain.Service
	CashierRepo cashierdomain.Repository
	CfgHolder   *config.BillingConfigHolder
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	billingSvc  billingdomain.Service
	cashierRepo cashierdomain.Repository
	cfgHolder   *config.BillingConfigHolder
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		billingSvc:  p.BillingSvc,
		cashierRepo: p.CashierRepo,
		cfgHolder:   p.CfgHolder,
	}
}

func (s *Service) Record(ctx context.Context, req paymentdomain.RecordRequest) (*paymentdomain.Payment, error) {
	if !req.Method.Valid() {
		return nil, paymentdomain.ErrInvalidMethod
	}
	amount := money.FromDecimal(req.Amount)
	if amount.IsZero() || amount.IsNegative() {
		return nil, billingdomain.ErrInvalidPaymentAmount
	}

	var payment *paymentdomain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		businessDate, err := s.resolveBusinessDate(ctx, tx, req.CashierID, now)
		if err != nil {
			return err
		}

		payment = &paymentdomain.Payment{
			ID:           s.genID.Generate(),
			BillID:       req.BillID,
			CashierID:    req.CashierID,
			Amount:       amount.Round2().Decimal(),
			Method:       req.Method,
			BusinessDate: businessDate,
			ReceivedAt:   now,
			CreatedAt:    now,
		}
		if req.Reference != "" {
			ref := req.Reference
			payment.Reference = &ref
		}

		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO payments (id, bill_id, cashier_id, amount, method, reference, business_date, received_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			payment.ID, payment.BillID, payment.CashierID, payment.Amount, payment.Method,
			payment.Reference, payment.BusinessDate, payment.ReceivedAt, payment.CreatedAt,
		).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return paymentdomain.ErrDuplicateReference
			}
			return err
		}

		if _, err = s.billingSvc.ApplyPaymentTx(ctx, tx, req.BillID, amount, req.Reference); err != nil {
			return err
		}

		// A close can land between resolveBusinessDate and the insert. The
		// re-check keeps a closed day's totals frozen: this attempt rolls
		// back and a retry books against the new close state.
		closed, err := s.cashierRepo.IsClosed(ctx, tx, req.CashierID, businessDate)
		if err != nil {
			return err
		}
		if closed {
			return paymentdomain.ErrCashierDayClosed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("bill_id", payment.BillID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("method", string(payment.Method)),
	)
	return payment, nil
}

// resolveBusinessDate books the payment to the first open cashier day at or
// after the received date, per the configured after-close policy.
func (s *Service) resolveBusinessDate(ctx context.Context, tx *gorm.DB, cashierID snowflake.ID, receivedAt time.Time) (time.Time, error) {
	businessDate := cashierdomain.BusinessDate(receivedAt)
	closed, err := s.cashierRepo.IsClosed(ctx, tx, cashierID, businessDate)
	if err != nil {
		return time.Time{}, err
	}
	if !closed {
		return businessDate, nil
	}

	if s.cfgHolder.Get().AfterClosePolicy == config.AfterCloseReject {
		return time.Time{}, paymentdomain.ErrCashierDayClosed
	}

	for {
		businessDate = businessDate.AddDate(0, 0, 1)
		closed, err := s.cashierRepo.IsClosed(ctx, tx, cashierID, businessDate)
		if err != nil {
			return time.Time{}, err
		}
		if !closed {
			return businessDate, nil
		}
	}
}

func (s *Service) ListByCashierDay(ctx context.Context, cashierID snowflake.ID, businessDate time.Time) ([]paymentdomain.Payment, error) {
	var payments []paymentdomain.Payment
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, bill_id, cashier_id, amount, method, reference, business_date, received_at, created_at
		 FROM payments WHERE cashier_id = ? AND business_date = ?
		 ORDER BY received_at ASC, id ASC`,
		cashierID, cashierdomain.BusinessDate(businessDate),
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
