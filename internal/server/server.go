// Package server exposes the billing operations over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/voltway/internal/billing"
	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	"github.com/smallbiznis/voltway/internal/billingevent"
	"github.com/smallbiznis/voltway/internal/bulkgen"
	bulkgendomain "github.com/smallbiznis/voltway/internal/bulkgen/domain"
	"github.com/smallbiznis/voltway/internal/cashier"
	cashierdomain "github.com/smallbiznis/voltway/internal/cashier/domain"
	"github.com/smallbiznis/voltway/internal/config"
	"github.com/smallbiznis/voltway/internal/meter"
	obsmetrics "github.com/smallbiznis/voltway/internal/observability/metrics"
	"github.com/smallbiznis/voltway/internal/payment"
	paymentdomain "github.com/smallbiznis/voltway/internal/payment/domain"
	"github.com/smallbiznis/voltway/internal/tariff"
	"github.com/smallbiznis/voltway/internal/tax"
)

var Module = fx.Module("http.server",
	obsmetrics.Module,
	tariff.Module,
	meter.Module,
	tax.Module,
	billingevent.Module,
	billing.Module,
	payment.Module,
	cashier.Module,
	bulkgen.Module,
	fx.Provide(newEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func newEngine(gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	genID      *snowflake.Node
	billingSvc billingdomain.Service
	paymentSvc paymentdomain.Service
	cashierSvc cashierdomain.Service
	bulkSvc    bulkgendomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	GenID      *snowflake.Node
	BillingSvc billingdomain.Service
	PaymentSvc paymentdomain.Service
	CashierSvc cashierdomain.Service
	BulkSvc    bulkgendomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		genID:      p.GenID,
		billingSvc: p.BillingSvc,
		paymentSvc: p.PaymentSvc,
		cashierSvc: p.CashierSvc,
		bulkSvc:    p.BulkSvc,
	}
	svc.registerRoutes()
	return svc
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/bills/preview", s.PreviewBill)
	api.POST("/bills", s.GenerateBill)
	api.GET("/bills/:id", s.GetBill)
	api.POST("/bills/:id/recalculate", s.RecalculateBill)
	api.POST("/bills/:id/void", s.VoidBill)
	api.POST("/bills/mark-overdue", s.MarkOverdue)

	api.POST("/payments", s.RecordPayment)

	api.POST("/cashiers/:id/close", s.CloseCashierDay)
	api.GET("/cashiers/:id/closes/:date", s.GetCashierDayClose)

	api.POST("/bulk-runs", s.RunBulkGeneration)
}
