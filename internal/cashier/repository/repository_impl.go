package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	cashierdomain "github.com/smallbiznis/voltway/internal/cashier/domain"
)

type repo struct{}

func Provide() cashierdomain.Repository {
	return &repo{}
}

func (r *repo) IsClosed(ctx context.Context, db *gorm.DB, cashierID snowflake.ID, businessDate time.Time) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM cashier_day_closes WHERE cashier_id = ? AND business_date = ?`,
		cashierID, cashierdomain.BusinessDate(businessDate),
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindClose(ctx context.Context, db *gorm.DB, cashierID snowflake.ID, businessDate time.Time) (*cashierdomain.CashierDayClose, error) {
	var close cashierdomain.CashierDayClose
	err := db.WithContext(ctx).Raw(
		`SELECT id, cashier_id, business_date, opening_balance, cash_total, non_cash_total,
		        expected_total, counted_total, variance, variance_reason, closed_at, created_at
		 FROM cashier_day_closes WHERE cashier_id = ? AND business_date = ?`,
		cashierID, cashierdomain.BusinessDate(businessDate),
	).Scan(&close).Error
	if err != nil {
		return nil, err
	}
	if close.ID == 0 {
		return nil, nil
	}
	return &close, nil
}

func (r *repo) FindLatestCloseBefore(ctx context.Context, db *gorm.DB, cashierID snowflake.ID, businessDate time.Time) (*cashierdomain.CashierDayClose, error) {
	var close cashierdomain.CashierDayClose
	err := db.WithContext(ctx).Raw(
		`SELECT id, cashier_id, business_date, opening_balance, cash_total, non_cash_total,
		        expected_total, counted_total, variance, variance_reason, closed_at, created_at
		 FROM cashier_day_closes WHERE cashier_id = ? AND business_date < ?
		 ORDER BY business_date DESC LIMIT 1`,
		cashierID, cashierdomain.BusinessDate(businessDate),
	).Scan(&close).Error
	if err != nil {
		return nil, err
	}
	if close.ID == 0 {
		return nil, nil
	}
	return &close, nil
}
