package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/dealbill/internal/access"
	"github.com/smallbiznis/dealbill/internal/billingstats"
	billingstatsdomain "github.com/smallbiznis/dealbill/internal/billingstats/domain"
	"github.com/smallbiznis/dealbill/internal/clock"
	"github.com/smallbiznis/dealbill/internal/config"
	"github.com/smallbiznis/dealbill/internal/dedupe"
	"github.com/smallbiznis/dealbill/internal/observability"
	obsmiddleware "github.com/smallbiznis/dealbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dealbill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/dealbill/internal/observability/tracing"
	"github.com/smallbiznis/dealbill/internal/opportunity"
	"github.com/smallbiznis/dealbill/internal/organization"
	"github.com/smallbiznis/dealbill/internal/outcomeevent"
	eventdomain "github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	"github.com/smallbiznis/dealbill/internal/pricingplan"
	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	"github.com/smallbiznis/dealbill/internal/processor"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	dedupe.Module,
	organization.Module,
	opportunity.Module,
	pricingplan.Module,
	outcomeevent.Module,
	billingstats.Module,
	access.Module,
	processor.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
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
	engine    *gin.Engine
	cfg       config.Config
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	planSvc   plandomain.Service
	eventSvc  eventdomain.Service
	statsSvc  billingstatsdomain.Service
	accessSvc access.Service
	processor *processor.Processor
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	PlanSvc   plandomain.Service
	EventSvc  eventdomain.Service
	StatsSvc  billingstatsdomain.Service
	AccessSvc access.Service
	Processor *processor.Processor
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		db:        p.DB,
		log:       p.Log.Named("server"),
		genID:     p.GenID,
		clock:     p.Clock,
		planSvc:   p.PlanSvc,
		eventSvc:  p.EventSvc,
		statsSvc:  p.StatsSvc,
		accessSvc: p.AccessSvc,
		processor: p.Processor,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", OrgContextMiddleware())

	api.GET("/pricing-plan", s.GetPricingPlan)
	api.POST("/pricing-plan", s.CreatePricingPlan)
	api.PATCH("/pricing-plan", s.UpdatePricingPlan)
	api.DELETE("/pricing-plan", s.DeletePricingPlan)

	api.POST("/outcome-events/record", s.RecordOutcomeEvent)
	api.POST("/outcome-events/flag", s.FlagOutcomeEvent)
	api.GET("/outcome-events", s.ListOutcomeEvents)
	api.GET("/outcome-events/:id", s.GetOutcomeEvent)
	api.POST("/outcome-events/:id/waive", s.WaiveOutcomeEvent)
	api.POST("/outcome-events/:id/void", s.VoidOutcomeEvent)
	api.POST("/outcome-events/:id/resolve", s.ResolveOutcomeEvent)
	api.POST("/outcome-events/:id/invoice", s.InvoiceOutcomeEvent)
	api.POST("/outcome-events/:id/paid", s.PayOutcomeEvent)

	api.GET("/billing/stats", s.GetBillingStats)
	api.GET("/access", s.GetOrgAccess)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/pricing-plans", s.ListPricingPlans)
	admin.GET("/outcome-billing/stats", s.GetAdminDashboard)
	admin.POST("/outcome-billing/process", s.RunOutcomeProcessing)
	admin.GET("/access/users/:user_id", s.GetUserAccess)
}
