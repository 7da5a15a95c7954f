package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/dealbill/internal/billingstats/domain"
	"github.com/smallbiznis/dealbill/internal/clock"
	"github.com/smallbiznis/dealbill/internal/orgcontext"
	eventdomain "github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	planrepo "github.com/smallbiznis/dealbill/internal/pricingplan/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupStatsTest(t *testing.T) (*gorm.DB, *Service, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&plandomain.PricingPlan{}, &eventdomain.OutcomeEvent{})
	require.NoError(t, err)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    fake,
		PlanRepo: planrepo.NewRepository(),
	}).(*Service)

	return db, svc, node, fake
}

func seedEvent(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, fee, dealAmount int64, closed time.Time, status eventdomain.EventStatus) {
	t.Helper()

	start, end := monthRange(closed)
	event := eventdomain.OutcomeEvent{
		ID:                 node.Generate(),
		OrgID:              orgID,
		PricingPlanID:      node.Generate(),
		OpportunityID:      node.Generate(),
		DealAmount:         dealAmount,
		FeeAmount:          fee,
		FeeCalculation:     []byte(`{}`),
		Status:             status,
		BillingPeriodStart: start,
		BillingPeriodEnd:   end,
		ClosedDate:         closed,
	}
	require.NoError(t, db.Create(&event).Error)
}

func TestCurrentMonthBilledAmount(t *testing.T) {
	db, svc, node, _ := setupStatsTest(t)
	ctx := context.Background()

	orgID := node.Generate()

	// No events yields zero, not an error.
	billed, err := svc.CurrentMonthBilledAmount(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), billed)

	seedEvent(t, db, node, orgID, 62_500, 2_500_000, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), eventdomain.StatusPending)
	seedEvent(t, db, node, orgID, 10_000, 600_000, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), eventdomain.StatusInvoiced)
	// Prior month does not count.
	seedEvent(t, db, node, orgID, 30_000, 1_000_000, time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), eventdomain.StatusPaid)

	billed, err = svc.CurrentMonthBilledAmount(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(72_500), billed)
}

func TestGetOutcomeBillingStats(t *testing.T) {
	db, svc, node, _ := setupStatsTest(t)

	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), orgID.Int64())

	// No plan: nil stats, nil error.
	stats, err := svc.GetOutcomeBillingStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, stats)

	percent := 2.5
	cap := int64(200_000)
	plan := plandomain.PricingPlan{
		ID:                  node.Generate(),
		OrgID:               orgID,
		PricingModel:        plandomain.ModelRevenueShare,
		RevenueSharePercent: &percent,
		MonthlyCap:          &cap,
		Currency:            "USD",
		BillingDay:          1,
		IsActive:            true,
	}
	require.NoError(t, db.Create(&plan).Error)

	seedEvent(t, db, node, orgID, 62_500, 2_500_000, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), eventdomain.StatusPending)
	seedEvent(t, db, node, orgID, 30_000, 1_200_000, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), eventdomain.StatusPaid)
	seedEvent(t, db, node, orgID, 15_000, 700_000, time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC), eventdomain.StatusPaid)

	stats, err = svc.GetOutcomeBillingStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.Equal(t, "USD", stats.Currency)
	assert.Equal(t, int64(62_500), stats.CurrentPeriod.FeeTotal)
	assert.Equal(t, int64(1), stats.CurrentPeriod.DealCount)
	assert.Equal(t, int64(2_500_000), stats.CurrentPeriod.DealValue)

	assert.Equal(t, int64(30_000), stats.PriorPeriod.FeeTotal)
	assert.Equal(t, int64(1), stats.PriorPeriod.DealCount)

	assert.Equal(t, int64(107_500), stats.LifetimeFees)
	assert.Equal(t, int64(3), stats.LifetimeDealCount)
	assert.Equal(t, int64(4_400_000), stats.LifetimeDealValue)

	require.NotNil(t, stats.CapRemaining)
	assert.Equal(t, int64(137_500), *stats.CapRemaining)
	require.NotNil(t, stats.CapUtilizationPercent)
	// 62500/200000 floors to 31.
	assert.Equal(t, int64(31), *stats.CapUtilizationPercent)
}

func TestGetOutcomeBillingStats_NoCap(t *testing.T) {
	db, svc, node, _ := setupStatsTest(t)

	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), orgID.Int64())

	flat := int64(15_000)
	plan := plandomain.PricingPlan{
		ID:             node.Generate(),
		OrgID:          orgID,
		PricingModel:   plandomain.ModelFlatPerDeal,
		FlatFeePerDeal: &flat,
		Currency:       "USD",
		BillingDay:     1,
		IsActive:       true,
	}
	require.NoError(t, db.Create(&plan).Error)

	stats, err := svc.GetOutcomeBillingStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Nil(t, stats.MonthlyCap)
	assert.Nil(t, stats.CapRemaining)
	assert.Nil(t, stats.CapUtilizationPercent)
}

func TestGetOutcomeBillingStats_RequiresOrg(t *testing.T) {
	_, svc, _, _ := setupStatsTest(t)

	_, err := svc.GetOutcomeBillingStats(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestGetAdminDashboardStats(t *testing.T) {
	db, svc, node, _ := setupStatsTest(t)
	ctx := context.Background()

	before, err := svc.GetAdminDashboardStats(ctx)
	require.NoError(t, err)

	orgA := node.Generate()
	orgB := node.Generate()

	percent := 1.0
	for _, org := range []snowflake.ID{orgA, orgB} {
		plan := plandomain.PricingPlan{
			ID:                  node.Generate(),
			OrgID:               org,
			PricingModel:        plandomain.ModelRevenueShare,
			RevenueSharePercent: &percent,
			Currency:            "USD",
			BillingDay:          1,
			IsActive:            true,
		}
		require.NoError(t, db.Create(&plan).Error)
	}

	seedEvent(t, db, node, orgA, 10_000, 1_000_000, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), eventdomain.StatusPending)
	seedEvent(t, db, node, orgB, 20_000, 2_000_000, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), eventdomain.StatusFlaggedForReview)

	after, err := svc.GetAdminDashboardStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, before.ActivePlanCount+2, after.ActivePlanCount)
	assert.Equal(t, before.PendingEventCount+1, after.PendingEventCount)
	assert.Equal(t, before.FlaggedEventCount+1, after.FlaggedEventCount)
	assert.Equal(t, before.CurrentMonthFees+30_000, after.CurrentMonthFees)
	assert.Equal(t, before.CurrentMonthDeals+2, after.CurrentMonthDeals)
	assert.Equal(t, before.LifetimeRevenue+30_000, after.LifetimeRevenue)
}
