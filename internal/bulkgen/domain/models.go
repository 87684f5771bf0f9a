// Package domain describes a bulk billing run over a snapshot of candidate
// meters.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
)

type ItemOutcome string

const (
	OutcomeGenerated ItemOutcome = "generated"
	OutcomeSkipped   ItemOutcome = "skipped"
	OutcomeFailed    ItemOutcome = "failed"
)

// RunRequest selects the meters and period for one bulk run. DryRun prices
// every candidate without persisting anything; SkipExisting quietly passes
// over meters that already have a bill overlapping the period. Offset and
// Limit window the ordered candidate set so a run can be resumed in bounded
// batches; Limit <= 0 means the rest of the set.
type RunRequest struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	DueDate     time.Time

	Filter meterdomain.CandidateFilter
	Offset int
	Limit  int

	DryRun           bool
	SkipExisting     bool
	ApplySubsidy     bool
	ApplySolarCredit bool
}

// ItemResult is the outcome for a single meter. BillID is set only for
// committed generations; TotalAmount is set for both committed and dry runs.
type ItemResult struct {
	MeterID     snowflake.ID
	Outcome     ItemOutcome
	BillID      *snowflake.ID
	TotalAmount decimal.Decimal
	Reason      string
}

// RunSummary aggregates one run. Items are ordered by meter ID; two runs over
// the same snapshot report in the same order.
type RunSummary struct {
	RunID       string
	DryRun      bool
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       int
	Generated   int
	Skipped     int
	Failed      int
	Items       []ItemResult
	Interrupted bool
}

type Service interface {
	// Run processes the candidate snapshot and returns per-meter results.
	// A failing meter never aborts the run; cancelling ctx stops scheduling
	// new meters and the summary reports what completed.
	Run(ctx context.Context, req RunRequest) (*RunSummary, error)
}
