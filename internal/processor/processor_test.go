package processor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/dealbill/internal/clock"
	"github.com/smallbiznis/dealbill/internal/config"
	"github.com/smallbiznis/dealbill/internal/dedupe"
	oppdomain "github.com/smallbiznis/dealbill/internal/opportunity/domain"
	opprepo "github.com/smallbiznis/dealbill/internal/opportunity/repository"
	orgdomain "github.com/smallbiznis/dealbill/internal/organization/domain"
	eventdomain "github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	eventrepo "github.com/smallbiznis/dealbill/internal/outcomeevent/repository"
	eventservice "github.com/smallbiznis/dealbill/internal/outcomeevent/service"
	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	planrepo "github.com/smallbiznis/dealbill/internal/pricingplan/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupProcessorTest(t *testing.T) (*gorm.DB, *Processor, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	// The sweep scans across organizations, so each test gets its own
	// database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&orgdomain.Organization{},
		&oppdomain.Opportunity{},
		&plandomain.PricingPlan{},
		&eventdomain.OutcomeEvent{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))

	recorder := eventservice.New(eventservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Repo:     eventrepo.NewRepository(),
		PlanRepo: planrepo.NewRepository(),
		OppRepo:  opprepo.NewRepository(db),
		Dedupe:   dedupe.NewMemoryStore(64),
	})

	proc := New(Params{
		Log:      zap.NewNop(),
		Clock:    fake,
		Config:   config.Config{ProcessorBatchSize: 50},
		OppRepo:  opprepo.NewRepository(db),
		Recorder: recorder,
	})

	return db, proc, node, fake
}

func TestRunOnce_RecordsUnprocessedDeals(t *testing.T) {
	db, proc, node, fake := setupProcessorTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	percent := 2.5
	plan := plandomain.PricingPlan{
		ID:                  node.Generate(),
		OrgID:               orgID,
		PricingModel:        plandomain.ModelRevenueShare,
		RevenueSharePercent: &percent,
		MinDealValue:        500_000,
		Currency:            "USD",
		BillingDay:          1,
		IsActive:            true,
	}
	require.NoError(t, db.Create(&plan).Error)

	closeDate := fake.Now().AddDate(0, 0, -2)
	billable := oppdomain.Opportunity{
		ID: node.Generate(), OrgID: orgID, Name: "Billable",
		AmountCents: 2_500_000, Stage: oppdomain.StageClosedWon, CloseDate: &closeDate,
	}
	tooSmall := oppdomain.Opportunity{
		ID: node.Generate(), OrgID: orgID, Name: "Too small",
		AmountCents: 100_000, Stage: oppdomain.StageClosedWon, CloseDate: &closeDate,
	}
	stillOpen := oppdomain.Opportunity{
		ID: node.Generate(), OrgID: orgID, Name: "Still open",
		AmountCents: 9_000_000, Stage: oppdomain.StageOpen,
	}
	for _, opp := range []oppdomain.Opportunity{billable, tooSmall, stillOpen} {
		require.NoError(t, db.Create(&opp).Error)
	}

	result, err := proc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Recorded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, int64(62_500), result.Fees)

	var count int64
	db.Model(&eventdomain.OutcomeEvent{}).Where("org_id = ?", orgID).Count(&count)
	assert.Equal(t, int64(1), count)

	// A second sweep finds nothing billable left. The below-minimum
	// deal is re-scanned (it has no event) but skipped again.
	result, err = proc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Recorded)

	db.Model(&eventdomain.OutcomeEvent{}).Where("org_id = ?", orgID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRunOnce_IgnoresStaleDeals(t *testing.T) {
	db, proc, node, fake := setupProcessorTest(t)
	ctx := context.Background()

	orgID := node.Generate()
	percent := 2.5
	plan := plandomain.PricingPlan{
		ID:                  node.Generate(),
		OrgID:               orgID,
		PricingModel:        plandomain.ModelRevenueShare,
		RevenueSharePercent: &percent,
		Currency:            "USD",
		BillingDay:          1,
		IsActive:            true,
	}
	require.NoError(t, db.Create(&plan).Error)

	staleClose := fake.Now().AddDate(0, -6, 0)
	stale := oppdomain.Opportunity{
		ID: node.Generate(), OrgID: orgID, Name: "Ancient history",
		AmountCents: 2_500_000, Stage: oppdomain.StageClosedWon, CloseDate: &staleClose,
	}
	require.NoError(t, db.Create(&stale).Error)

	result, err := proc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
}
