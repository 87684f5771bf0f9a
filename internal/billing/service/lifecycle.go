package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	billingeventdomain "github.com/smallbiznis/voltway/internal/billingevent/domain"
	"github.com/smallbiznis/voltway/pkg/money"
)

func (s *Service) ApplyPayment(ctx context.Context, billID snowflake.ID, amount money.Money, reference string) (*billingdomain.Bill, error) {
	var bill *billingdomain.Bill
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		bill, err = s.ApplyPaymentTx(ctx, tx, billID, amount, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// ApplyPaymentTx applies a payment inside the caller's transaction. The paid
// amount update is conditional on the previously observed value, so two
// concurrent payments against the same bill cannot both settle.
func (s *Service) ApplyPaymentTx(ctx context.Context, tx *gorm.DB, billID snowflake.ID, amount money.Money, reference string) (*billingdomain.Bill, error) {
	if amount.IsZero() || amount.IsNegative() {
		return nil, billingdomain.ErrInvalidPaymentAmount
	}

	bill, err := s.loadBill(ctx, tx, billID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billingdomain.ErrBillNotFound
	}

	outstanding := money.FromDecimal(bill.Outstanding())
	if amount.GreaterThan(outstanding) {
		return nil, billingdomain.ErrOverpaymentRejected
	}

	paidBefore := money.FromDecimal(bill.PaidAmount)
	paidAfter := paidBefore.Add(amount)

	nextStatus := bill.Status
	if paidAfter.Equal(money.FromDecimal(bill.TotalAmount)) {
		nextStatus = billingdomain.StatusPaid
	} else if bill.Status == billingdomain.StatusIssued {
		nextStatus = billingdomain.StatusPartial
	}
	if nextStatus != bill.Status && !billingdomain.CanTransition(bill.Status, nextStatus) {
		return nil, billingdomain.ErrOverpaymentRejected
	}

	now := s.clock.Now()
	res := tx.WithContext(ctx).Exec(
		`UPDATE bills SET paid_amount = ?, status = ?, updated_at = ?
		 WHERE id = ? AND paid_amount = ? AND status = ?`,
		paidAfter.Decimal(), nextStatus, now,
		bill.ID, bill.PaidAmount, bill.Status,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, billingdomain.ErrPaymentConflict
	}

	bill.PaidAmount = paidAfter.Decimal()
	bill.Status = nextStatus
	bill.UpdatedAt = now

	dedupe := ""
	if reference != "" {
		dedupe = fmt.Sprintf("%s:%s:%s", billingeventdomain.EventPaymentApplied, bill.ID.String(), reference)
	}
	payload := billEventPayload(bill)
	payload["amount"] = amount.String()
	if reference != "" {
		payload["reference"] = reference
	}
	if err := s.eventSvc.Emit(ctx, tx, billingeventdomain.EventPaymentApplied, dedupe, payload); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncPaymentApplied()
	}
	return bill, nil
}

func (s *Service) Void(ctx context.Context, billID snowflake.ID, reason string) (*billingdomain.Bill, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, billingdomain.ErrVoidReasonRequired
	}

	var bill *billingdomain.Bill
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadBill(ctx, tx, billID)
		if err != nil {
			return err
		}
		if loaded == nil {
			return billingdomain.ErrBillNotFound
		}
		switch loaded.Status {
		case billingdomain.StatusVoided:
			return billingdomain.ErrAlreadyVoided
		case billingdomain.StatusPaid:
			return billingdomain.ErrCannotVoidPaid
		}

		// The voided bill reports a zero amount owed; line items and tax
		// lines stay behind as the record of what was billed.
		now := s.clock.Now()
		res := tx.WithContext(ctx).Exec(
			`UPDATE bills SET status = ?, total_amount = 0, tax_total = 0,
			 void_reason = ?, voided_at = ?, updated_at = ?
			 WHERE id = ? AND status NOT IN (?, ?)`,
			billingdomain.StatusVoided, reason, now, now,
			billID, billingdomain.StatusPaid, billingdomain.StatusVoided,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent payment or void.
			current, err := s.loadBill(ctx, tx, billID)
			if err != nil {
				return err
			}
			if current != nil && current.Status == billingdomain.StatusVoided {
				return billingdomain.ErrAlreadyVoided
			}
			return billingdomain.ErrCannotVoidPaid
		}

		loaded.Status = billingdomain.StatusVoided
		loaded.TotalAmount = decimal.Zero
		loaded.TaxTotal = decimal.Zero
		loaded.VoidReason = &reason
		loaded.VoidedAt = &now
		loaded.UpdatedAt = now
		bill = loaded

		dedupe := fmt.Sprintf("%s:%s", billingeventdomain.EventBillVoided, billID.String())
		return s.eventSvc.Emit(ctx, tx, billingeventdomain.EventBillVoided, dedupe, billEventPayload(loaded))
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncBillVoided()
	}
	s.log.Info("bill voided",
		zap.String("bill_id", bill.ID.String()),
		zap.String("reason", reason),
	)
	return bill, nil
}

// MarkOverdue flips unpaid bills past their due date to OVERDUE and returns
// how many were flipped. Safe to run repeatedly.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE bills SET status = ?, updated_at = ?
		 WHERE status IN (?, ?) AND due_date < ? AND paid_amount < total_amount`,
		billingdomain.StatusOverdue, s.clock.Now(),
		billingdomain.StatusIssued, billingdomain.StatusPartial,
		asOf,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("bills marked overdue", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
