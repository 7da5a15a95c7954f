package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/dealbill/internal/clock"
	"github.com/smallbiznis/dealbill/internal/dedupe"
	oppdomain "github.com/smallbiznis/dealbill/internal/opportunity/domain"
	opprepo "github.com/smallbiznis/dealbill/internal/opportunity/repository"
	orgdomain "github.com/smallbiznis/dealbill/internal/organization/domain"
	"github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	"github.com/smallbiznis/dealbill/internal/outcomeevent/repository"
	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	planrepo "github.com/smallbiznis/dealbill/internal/pricingplan/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupEventTest(t *testing.T) (*gorm.DB, *Service, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&oppdomain.Opportunity{},
		&plandomain.PricingPlan{},
		&domain.OutcomeEvent{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Repo:     repository.NewRepository(),
		PlanRepo: planrepo.NewRepository(),
		OppRepo:  opprepo.NewRepository(db),
		Dedupe:   dedupe.NewMemoryStore(64),
	}).(*Service)

	return db, svc, node, fake
}

func seedPlan(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, mutate func(*plandomain.PricingPlan)) plandomain.PricingPlan {
	t.Helper()

	percent := 2.5
	plan := plandomain.PricingPlan{
		ID:                  node.Generate(),
		OrgID:               orgID,
		PricingModel:        plandomain.ModelRevenueShare,
		RevenueSharePercent: &percent,
		Currency:            "USD",
		BillingDay:          1,
		IsActive:            true,
		GrantsFullAccess:    true,
	}
	if mutate != nil {
		mutate(&plan)
	}
	require.NoError(t, db.Create(&plan).Error)
	return plan
}

func seedOpportunity(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, amountCents int64, closeDate time.Time) oppdomain.Opportunity {
	t.Helper()

	opp := oppdomain.Opportunity{
		ID:          node.Generate(),
		OrgID:       orgID,
		Name:        "Acme renewal",
		AccountName: "Acme Corp",
		OwnerName:   "Dana",
		AmountCents: amountCents,
		Stage:       oppdomain.StageClosedWon,
		CloseDate:   &closeDate,
	}
	require.NoError(t, db.Create(&opp).Error)
	return opp
}

func TestRecordDealOutcome_CreatesPendingEvent(t *testing.T) {
	db, svc, node, fake := setupEventTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	seedPlan(t, db, node, orgID, nil)
	closeDate := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	opp := seedOpportunity(t, db, node, orgID, 2_500_000, closeDate)

	event, err := svc.RecordDealOutcome(ctx, orgID, opp.ID)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, domain.StatusPending, event.Status)
	assert.Equal(t, int64(62_500), event.FeeAmount)
	assert.Equal(t, int64(2_500_000), event.DealAmount)
	assert.Equal(t, "Acme renewal", event.OpportunityName)
	assert.Equal(t, "Acme Corp", event.AccountName)
	assert.Equal(t, "Dana", event.OwnerName)

	// Billing period is the calendar month of the close date.
	assert.True(t, event.BillingPeriodStart.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, event.BillingPeriodEnd.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, event.ClosedDate.Equal(closeDate))
	assert.True(t, event.CreatedAt.Equal(fake.Now()))

	var trace map[string]any
	require.NoError(t, json.Unmarshal(event.FeeCalculation, &trace))
	assert.Equal(t, "REVENUE_SHARE", trace["model"])
}

func TestRecordDealOutcome_Idempotent(t *testing.T) {
	db, svc, node, _ := setupEventTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	seedPlan(t, db, node, orgID, nil)
	opp := seedOpportunity(t, db, node, orgID, 2_500_000, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))

	first, err := svc.RecordDealOutcome(ctx, orgID, opp.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.RecordDealOutcome(ctx, orgID, opp.ID)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&domain.OutcomeEvent{}).Where("opportunity_id = ?", opp.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRecordDealOutcome_NoActivePlan(t *testing.T) {
	db, svc, node, _ := setupEventTest(t)
	ctx := context.Background()

	// No plan at all.
	orgID := node.Generate()
	opp := seedOpportunity(t, db, node, orgID, 2_500_000, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))

	event, err := svc.RecordDealOutcome(ctx, orgID, opp.ID)
	require.NoError(t, err)
	assert.Nil(t, event)

	// Plan exists but is inactive.
	orgID2 := node.Generate()
	seedPlan(t, db, node, orgID2, func(p *plandomain.PricingPlan) { p.IsActive = false })
	opp2 := seedOpportunity(t, db, node, orgID2, 2_500_000, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))

	event, err = svc.RecordDealOutcome(ctx, orgID2, opp2.ID)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestRecordDealOutcome_UnknownOpportunity(t *testing.T) {
	db, svc, node, _ := setupEventTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	seedPlan(t, db, node, orgID, nil)

	event, err := svc.RecordDealOutcome(ctx, orgID, node.Generate())
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestRecordDealOutcome_OtherOrgsOpportunity(t *testing.T) {
	db, svc, node, _ := setupEventTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	otherOrg := node.Generate()
	seedPlan(t, db, node, orgID, nil)
	opp := seedOpportunity(t, db, node, otherOrg, 2_500_000, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))

	event, err := svc.RecordDealOutcome(ctx, orgID, opp.ID)
	require.NoError(t, err)
	assert.Nil(t, event)
}

// TestRecordDealOutcome_BelowMinimum: deals under the plan minimum
// leave no billing trace at all.
func TestRecordDealOutcome_BelowMinimum(t *testing.T) {
	db, svc, node, _ := setupEventTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	seedPlan(t, db, node, orgID, func(p *plandomain.PricingPlan) { p.MinDealValue = 500_000 })
	opp := seedOpportunity(t, db, node, orgID, 499_999, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))

	event, err := svc.RecordDealOutcome(ctx, orgID, opp.ID)
	require.NoError(t, err)
	assert.Nil(t, event)

	var count int64
	db.Model(&domain.OutcomeEvent{}).Where("opportunity_id = ?", opp.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

// TestRecordDealOutcome_MonthlyCapAcrossDeals: the second deal in a
// period is capped against what the first already billed.
func TestRecordDealOutcome_MonthlyCapAcrossDeals(t *testing.T) {
	db, svc, node, _ := setupEventTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	cap := int64(100_000)
	seedPlan(t, db, node, orgID, func(p *plandomain.PricingPlan) { p.MonthlyCap = &cap })

	closeDate := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	opp1 := seedOpportunity(t, db, node, orgID, 2_500_000, closeDate)
	opp2 := seedOpportunity(t, db, node, orgID, 2_500_000, closeDate.AddDate(0, 0, 3))

	first, err := svc.RecordDealOutcome(ctx, orgID, opp1.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(62_500), first.FeeAmount)

	second, err := svc.RecordDealOutcome(ctx, orgID, opp2.ID)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, int64(37_500), second.FeeAmount)
	assert.Equal(t, cap, first.FeeAmount+second.FeeAmount)

	// A deal closing in the next month starts a fresh period.
	opp3 := seedOpportunity(t, db, node, orgID, 2_500_000, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC))
	third, err := svc.RecordDealOutcome(ctx, orgID, opp3.ID)
	require.NoError(t, err)
	require.NotNil(t, third)
	assert.Equal(t, int64(62_500), third.FeeAmount)
}

// TestRecordDealOutcome_VoidReleasesCap: a voided event's fee stops
// counting against the period's cap, so later deals in the same
// period are not squeezed by money that was never billed.
func TestRecordDealOutcome_VoidReleasesCap(t *testing.T) {
	db, svc, node, _ := setupEventTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	cap := int64(100_000)
	seedPlan(t, db, node, orgID, func(p *plandomain.PricingPlan) { p.MonthlyCap = &cap })

	closeDate := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	opp1 := seedOpportunity(t, db, node, orgID, 2_500_000, closeDate)
	opp2 := seedOpportunity(t, db, node, orgID, 2_500_000, closeDate.AddDate(0, 0, 3))

	first, err := svc.RecordDealOutcome(ctx, orgID, opp1.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(62_500), first.FeeAmount)

	_, err = svc.VoidEvent(ctx, first.ID, "deal fell through", node.Generate())
	require.NoError(t, err)

	second, err := svc.RecordDealOutcome(ctx, orgID, opp2.ID)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, int64(62_500), second.FeeAmount)
}

// TestRecordDealOutcome_CapExhaustedStillRecords: once the cap is
// spent the event is still created, with a zero fee. Only the
// below-minimum gate suppresses the event entirely.
func TestRecordDealOutcome_CapExhaustedStillRecords(t *testing.T) {
	db, svc, node, _ := setupEventTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	cap := int64(62_500)
	seedPlan(t, db, node, orgID, func(p *plandomain.PricingPlan) { p.MonthlyCap = &cap })

	closeDate := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	opp1 := seedOpportunity(t, db, node, orgID, 2_500_000, closeDate)
	opp2 := seedOpportunity(t, db, node, orgID, 2_500_000, closeDate)

	first, err := svc.RecordDealOutcome(ctx, orgID, opp1.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, cap, first.FeeAmount)

	second, err := svc.RecordDealOutcome(ctx, orgID, opp2.ID)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, int64(0), second.FeeAmount)

	var trace map[string]any
	require.NoError(t, json.Unmarshal(second.FeeCalculation, &trace))
	assert.Equal(t, true, trace["capped_to_zero"])
}

// TestRecordDealOutcome_NoCloseDateUsesClock: deals missing a close
// date are bucketed into the current period.
func TestRecordDealOutcome_NoCloseDateUsesClock(t *testing.T) {
	db, svc, node, fake := setupEventTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	seedPlan(t, db, node, orgID, nil)

	opp := oppdomain.Opportunity{
		ID:          node.Generate(),
		OrgID:       orgID,
		Name:        "No close date",
		AmountCents: 1_000_000,
		Stage:       oppdomain.StageClosedWon,
	}
	require.NoError(t, db.Create(&opp).Error)

	event, err := svc.RecordDealOutcome(ctx, orgID, opp.ID)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.True(t, event.ClosedDate.Equal(fake.Now()))
}
