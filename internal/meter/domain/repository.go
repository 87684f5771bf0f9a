package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Meter, error)

	// ListCandidateIDs returns the ids matching the filter in stable id
	// order, paged by offset/limit. Bulk generation resolves its snapshot
	// through this once per run.
	ListCandidateIDs(ctx context.Context, db *gorm.DB, filter CandidateFilter, offset, limit int) ([]snowflake.ID, error)

	CountCandidates(ctx context.Context, db *gorm.DB, filter CandidateFilter) (int64, error)

	// FindReadingForPeriod returns the reading pair covering exactly the
	// given billing period, or nil when the meter has not been read yet.
	FindReadingForPeriod(ctx context.Context, db *gorm.DB, meterID snowflake.ID, periodStart, periodEnd time.Time) (*MeterReading, error)
}
