package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/internal/billingstats/domain"
	"github.com/smallbiznis/dealbill/internal/clock"
	"github.com/smallbiznis/dealbill/internal/orgcontext"
	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	PlanRepo plandomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	planRepo plandomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("billingstats.service"),
		clock:    p.Clock,
		planRepo: p.PlanRepo,
	}
}

type periodRow struct {
	FeeTotal  int64
	DealCount int64
	DealValue int64
}

func (s *Service) CurrentMonthBilledAmount(ctx context.Context, orgID snowflake.ID) (int64, error) {
	start, end := monthRange(s.clock.Now())
	row, err := s.periodTotals(ctx, orgID, start, end)
	if err != nil {
		return 0, err
	}
	return row.FeeTotal, nil
}

func (s *Service) GetOutcomeBillingStats(ctx context.Context) (*domain.OutcomeBillingStats, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	plan, err := s.planRepo.FindByOrg(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, nil
	}

	now := s.clock.Now()
	curStart, curEnd := monthRange(now)
	priorStart, priorEnd := monthRange(curStart.AddDate(0, 0, -1))

	current, err := s.periodTotals(ctx, orgID, curStart, curEnd)
	if err != nil {
		return nil, err
	}
	prior, err := s.periodTotals(ctx, orgID, priorStart, priorEnd)
	if err != nil {
		return nil, err
	}

	var lifetime periodRow
	err = s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(fee_amount), 0) AS fee_total,
		        COUNT(1) AS deal_count,
		        COALESCE(SUM(deal_amount), 0) AS deal_value
		 FROM outcome_events
		 WHERE org_id = ?`,
		orgID,
	).Scan(&lifetime).Error
	if err != nil {
		return nil, err
	}

	stats := &domain.OutcomeBillingStats{
		OrgID:        orgID,
		Currency:     plan.Currency,
		PricingModel: string(plan.PricingModel),
		CurrentPeriod: domain.PeriodTotals{
			PeriodStart: curStart,
			PeriodEnd:   curEnd,
			FeeTotal:    current.FeeTotal,
			DealCount:   current.DealCount,
			DealValue:   current.DealValue,
		},
		PriorPeriod: domain.PeriodTotals{
			PeriodStart: priorStart,
			PeriodEnd:   priorEnd,
			FeeTotal:    prior.FeeTotal,
			DealCount:   prior.DealCount,
			DealValue:   prior.DealValue,
		},
		LifetimeFees:      lifetime.FeeTotal,
		LifetimeDealCount: lifetime.DealCount,
		LifetimeDealValue: lifetime.DealValue,
	}

	if plan.MonthlyCap != nil {
		cap := *plan.MonthlyCap
		remaining := cap - current.FeeTotal
		if remaining < 0 {
			remaining = 0
		}
		var utilization int64
		if cap > 0 {
			// Integer floor percentage, e.g. 62500/200000 -> 31.
			utilization = current.FeeTotal * 100 / cap
		}
		stats.MonthlyCap = &cap
		stats.CapRemaining = &remaining
		stats.CapUtilizationPercent = &utilization
	}

	return stats, nil
}

func (s *Service) GetAdminDashboardStats(ctx context.Context) (*domain.AdminDashboardStats, error) {
	stats := &domain.AdminDashboardStats{}

	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM pricing_plans WHERE is_active`,
	).Scan(&stats.ActivePlanCount).Error
	if err != nil {
		return nil, err
	}

	type statusRow struct {
		Status string
		Count  int64
	}
	var rows []statusRow
	err = s.db.WithContext(ctx).Raw(
		`SELECT status, COUNT(1) AS count
		 FROM outcome_events
		 WHERE status IN ('PENDING', 'FLAGGED_FOR_REVIEW')
		 GROUP BY status`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		switch row.Status {
		case "PENDING":
			stats.PendingEventCount = row.Count
		case "FLAGGED_FOR_REVIEW":
			stats.FlaggedEventCount = row.Count
		}
	}

	start, end := monthRange(s.clock.Now())
	var month periodRow
	err = s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(fee_amount), 0) AS fee_total,
		        COUNT(1) AS deal_count,
		        COALESCE(SUM(deal_amount), 0) AS deal_value
		 FROM outcome_events
		 WHERE closed_date >= ? AND closed_date < ?`,
		start, end,
	).Scan(&month).Error
	if err != nil {
		return nil, err
	}
	stats.CurrentMonthFees = month.FeeTotal
	stats.CurrentMonthDeals = month.DealCount
	stats.CurrentMonthValue = month.DealValue

	err = s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(fee_amount), 0) FROM outcome_events`,
	).Scan(&stats.LifetimeRevenue).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *Service) periodTotals(ctx context.Context, orgID snowflake.ID, start, end time.Time) (periodRow, error) {
	var row periodRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(fee_amount), 0) AS fee_total,
		        COUNT(1) AS deal_count,
		        COALESCE(SUM(deal_amount), 0) AS deal_value
		 FROM outcome_events
		 WHERE org_id = ?
		   AND closed_date >= ?
		   AND closed_date < ?`,
		orgID, start, end,
	).Scan(&row).Error
	return row, err
}

func monthRange(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
