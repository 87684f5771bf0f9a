package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	billingeventdomain "github.com/smallbiznis/voltway/internal/billingevent/domain"
	"github.com/smallbiznis/voltway/internal/clock"
	obsmetrics "github.com/smallbiznis/voltway/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	BillingSvc billingdomain.Service
	EventSvc   billingeventdomain.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
	Config     Config              `optional:"true"`
}

// Scheduler drives the background jobs that keep bill state current:
// the overdue sweep and the billing event relay.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	billingSvc billingdomain.Service
	eventSvc   billingeventdomain.Service
	metrics    *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.BillingSvc == nil || p.EventSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		billingSvc: p.BillingSvc,
		eventSvc:   p.EventSvc,
		metrics:    p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	s.metrics.IncSchedulerRun(name)
	err := fn(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	s.metrics.IncSchedulerError(name)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every job a single time. Errors are joined so one
// failing job does not starve the others.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	err = errors.Join(err, s.runJob(parent, "overdue_sweep", s.OverdueSweepJob))
	err = errors.Join(err, s.runJob(parent, "publish_events", s.PublishEventsJob))
	return err
}

// OverdueSweepJob moves issued and partially paid bills past their due
// date into OVERDUE.
func (s *Scheduler) OverdueSweepJob(ctx context.Context) error {
	moved, err := s.billingSvc.MarkOverdue(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	if moved > 0 {
		s.log.Info("bills marked overdue", zap.Int64("count", moved))
	}
	return nil
}

// PublishEventsJob relays unpublished billing events from the outbox.
func (s *Scheduler) PublishEventsJob(ctx context.Context) error {
	published, err := s.eventSvc.PublishPending(ctx, s.cfg.PublishBatch)
	if err != nil {
		return err
	}
	if published > 0 {
		s.log.Info("billing events published", zap.Int("count", published))
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
