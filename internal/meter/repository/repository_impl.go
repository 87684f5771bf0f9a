package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
)

type repo struct{}

func Provide() meterdomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*meterdomain.Meter, error) {
	var meter meterdomain.Meter
	err := db.WithContext(ctx).Raw(
		`SELECT id, serial_number, customer_id, utility_type, customer_type, area_code,
		        tariff_category_id, subsidy_eligible, solar_enabled, active, created_at, updated_at
		 FROM meters WHERE id = ?`,
		id,
	).Scan(&meter).Error
	if err != nil {
		return nil, err
	}
	if meter.ID == 0 {
		return nil, nil
	}
	return &meter, nil
}

func (r *repo) ListCandidateIDs(ctx context.Context, db *gorm.DB, filter meterdomain.CandidateFilter, offset, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	stmt := candidateQuery(db.WithContext(ctx), filter).
		Order("id ASC").
		Offset(offset)
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) CountCandidates(ctx context.Context, db *gorm.DB, filter meterdomain.CandidateFilter) (int64, error) {
	var count int64
	err := candidateQuery(db.WithContext(ctx), filter).Count(&count).Error
	return count, err
}

func candidateQuery(db *gorm.DB, filter meterdomain.CandidateFilter) *gorm.DB {
	stmt := db.Model(&meterdomain.Meter{}).Where("active = ?", true)
	if len(filter.MeterIDs) > 0 {
		return stmt.Where("id IN ?", filter.MeterIDs)
	}
	if filter.UtilityType != "" {
		stmt = stmt.Where("utility_type = ?", filter.UtilityType)
	}
	if filter.CustomerType != "" {
		stmt = stmt.Where("customer_type = ?", filter.CustomerType)
	}
	if filter.AreaCode != "" {
		stmt = stmt.Where("area_code = ?", filter.AreaCode)
	}
	return stmt
}

func (r *repo) FindReadingForPeriod(ctx context.Context, db *gorm.DB, meterID snowflake.ID, periodStart, periodEnd time.Time) (*meterdomain.MeterReading, error) {
	var reading meterdomain.MeterReading
	err := db.WithContext(ctx).Raw(
		`SELECT id, meter_id, period_start, period_end, previous_reading, current_reading,
		        export_units, source, recorded_at
		 FROM meter_readings
		 WHERE meter_id = ? AND period_start = ? AND period_end = ?
		 ORDER BY recorded_at DESC
		 LIMIT 1`,
		meterID,
		periodStart,
		periodEnd,
	).Scan(&reading).Error
	if err != nil {
		return nil, err
	}
	if reading.ID == 0 {
		return nil, nil
	}
	return &reading, nil
}
