package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	bulkgendomain "github.com/smallbiznis/voltway/internal/bulkgen/domain"
	"github.com/smallbiznis/voltway/internal/clock"
	"github.com/smallbiznis/voltway/internal/config"
	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
	obsmetrics "github.com/smallbiznis/voltway/internal/observability/metrics"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	MeterRepo  meterdomain.Repository
	BillingSvc billingdomain.Service
	CfgHolder  *config.BillingConfigHolder
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	meterRepo  meterdomain.Repository
	billingSvc billingdomain.Service
	cfgHolder  *config.BillingConfigHolder
	metrics    *obsmetrics.Metrics
}

func New(p Params) bulkgendomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("bulkgen.service"),
		clock:      p.Clock,
		meterRepo:  p.MeterRepo,
		billingSvc: p.BillingSvc,
		cfgHolder:  p.CfgHolder,
		metrics:    p.Metrics,
	}
}

func (s *Service) Run(ctx context.Context, req bulkgendomain.RunRequest) (*bulkgendomain.RunSummary, error) {
	if req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() || !req.PeriodEnd.After(req.PeriodStart) {
		return nil, billingdomain.ErrInvalidPeriod
	}

	cfg := s.cfgHolder.Get()
	runID := uuid.NewString()
	startedAt := s.clock.Now()

	meterIDs, err := s.snapshotCandidates(ctx, req.Filter, req.Offset, req.Limit, cfg.BulkBatchSize)
	if err != nil {
		return nil, err
	}

	s.log.Info("bulk run starting",
		zap.String("run_id", runID),
		zap.Int("candidates", len(meterIDs)),
		zap.Bool("dry_run", req.DryRun),
	)

	workers := cfg.BulkWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(meterIDs) && len(meterIDs) > 0 {
		workers = len(meterIDs)
	}

	jobs := make(chan snowflake.ID)
	results := make([]bulkgendomain.ItemResult, 0, len(meterIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Cancellation stops dispatch only; the meter already in a worker's
	// hands runs to completion under a detached context so it is never
	// misreported as a failure.
	itemCtx := context.WithoutCancel(ctx)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for meterID := range jobs {
				result := s.processMeter(itemCtx, req, meterID)
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}()
	}

	interrupted := false
dispatch:
	for _, meterID := range meterIDs {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		select {
		case <-ctx.Done():
			interrupted = true
			break dispatch
		case jobs <- meterID:
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].MeterID < results[j].MeterID })

	summary := &bulkgendomain.RunSummary{
		RunID:       runID,
		DryRun:      req.DryRun,
		StartedAt:   startedAt,
		FinishedAt:  s.clock.Now(),
		Total:       len(results),
		Items:       results,
		Interrupted: interrupted,
	}
	for _, result := range results {
		switch result.Outcome {
		case bulkgendomain.OutcomeGenerated:
			summary.Generated++
		case bulkgendomain.OutcomeSkipped:
			summary.Skipped++
		case bulkgendomain.OutcomeFailed:
			summary.Failed++
		}
		if s.metrics != nil {
			s.metrics.IncBulkItem(string(result.Outcome))
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveBulkRun(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}

	s.log.Info("bulk run finished",
		zap.String("run_id", runID),
		zap.Int("generated", summary.Generated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Bool("interrupted", interrupted),
	)
	return summary, nil
}

// snapshotCandidates pages through the caller's window of the ordered
// candidate set once, up front. Meters registered after the snapshot do not
// join a running bulk run.
func (s *Service) snapshotCandidates(ctx context.Context, filter meterdomain.CandidateFilter, offset, limit, batchSize int) ([]snowflake.ID, error) {
	if batchSize < 1 {
		batchSize = 500
	}
	if offset < 0 {
		offset = 0
	}
	var all []snowflake.ID
	for {
		page := batchSize
		if limit > 0 && limit-len(all) < page {
			page = limit - len(all)
		}
		if page < 1 {
			return all, nil
		}
		ids, err := s.meterRepo.ListCandidateIDs(ctx, s.db, filter, offset+len(all), page)
		if err != nil {
			return nil, err
		}
		all = append(all, ids...)
		if len(ids) < page {
			return all, nil
		}
	}
}

func (s *Service) processMeter(ctx context.Context, req bulkgendomain.RunRequest, meterID snowflake.ID) bulkgendomain.ItemResult {
	if req.SkipExisting {
		exists, err := s.billingSvc.HasBillForPeriod(ctx, meterID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return failedResult(meterID, err)
		}
		if exists {
			return bulkgendomain.ItemResult{MeterID: meterID, Outcome: bulkgendomain.OutcomeSkipped, Reason: "bill_exists"}
		}
	}

	preview := billingdomain.PreviewRequest{
		MeterID:          meterID,
		PeriodStart:      req.PeriodStart,
		PeriodEnd:        req.PeriodEnd,
		ApplySubsidy:     req.ApplySubsidy,
		ApplySolarCredit: req.ApplySolarCredit,
	}

	if req.DryRun {
		computation, err := s.billingSvc.Preview(ctx, preview)
		if err != nil {
			return failedResult(meterID, err)
		}
		return bulkgendomain.ItemResult{
			MeterID:     meterID,
			Outcome:     bulkgendomain.OutcomeGenerated,
			TotalAmount: computation.TotalAmount.Decimal(),
		}
	}

	bill, err := s.billingSvc.Generate(ctx, billingdomain.GenerateRequest{PreviewRequest: preview, DueDate: req.DueDate})
	if err != nil {
		if errors.Is(err, billingdomain.ErrDuplicateBillingPeriod) {
			return bulkgendomain.ItemResult{MeterID: meterID, Outcome: bulkgendomain.OutcomeSkipped, Reason: "bill_exists"}
		}
		return failedResult(meterID, err)
	}
	billID := bill.ID
	return bulkgendomain.ItemResult{
		MeterID:     meterID,
		Outcome:     bulkgendomain.OutcomeGenerated,
		BillID:      &billID,
		TotalAmount: bill.TotalAmount,
	}
}

func failedResult(meterID snowflake.ID, err error) bulkgendomain.ItemResult {
	return bulkgendomain.ItemResult{MeterID: meterID, Outcome: bulkgendomain.OutcomeFailed, Reason: err.Error()}
}
