package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/internal/clock"
	"github.com/smallbiznis/dealbill/internal/dedupe"
	"github.com/smallbiznis/dealbill/internal/observability/metrics"
	oppdomain "github.com/smallbiznis/dealbill/internal/opportunity/domain"
	"github.com/smallbiznis/dealbill/internal/orgcontext"
	"github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	PlanRepo plandomain.Repository
	OppRepo  oppdomain.Repository
	Dedupe   dedupe.Store
	Metrics  *metrics.Metrics
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	planRepo plandomain.Repository
	oppRepo  oppdomain.Repository
	dedupe   dedupe.Store
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("outcomeevent.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		planRepo: p.PlanRepo,
		oppRepo:  p.OppRepo,
		dedupe:   p.Dedupe,
		metrics:  p.Metrics,
	}
}

func (s *Service) GetByID(ctx context.Context, eventID snowflake.ID) (*domain.OutcomeEvent, error) {
	orgID, _ := orgcontext.OrgIDFromContext(ctx)
	event, err := s.repo.FindByID(ctx, s.db, orgID, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}
	return event, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter, limit, offset int) ([]domain.OutcomeEvent, int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, 0, domain.ErrInvalidOrganization
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, s.db, orgID, filter, limit, offset)
}

// billingPeriod returns the calendar-month window containing t, in
// UTC. End is exclusive.
func billingPeriod(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
