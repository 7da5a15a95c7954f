package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dealbill/internal/access"
	statsservice "github.com/smallbiznis/dealbill/internal/billingstats/service"
	"github.com/smallbiznis/dealbill/internal/clock"
	"github.com/smallbiznis/dealbill/internal/config"
	"github.com/smallbiznis/dealbill/internal/dedupe"
	oppdomain "github.com/smallbiznis/dealbill/internal/opportunity/domain"
	opprepo "github.com/smallbiznis/dealbill/internal/opportunity/repository"
	orgdomain "github.com/smallbiznis/dealbill/internal/organization/domain"
	orgrepo "github.com/smallbiznis/dealbill/internal/organization/repository"
	eventdomain "github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	eventrepo "github.com/smallbiznis/dealbill/internal/outcomeevent/repository"
	eventservice "github.com/smallbiznis/dealbill/internal/outcomeevent/service"
	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	planrepo "github.com/smallbiznis/dealbill/internal/pricingplan/repository"
	planservice "github.com/smallbiznis/dealbill/internal/pricingplan/service"
	"github.com/smallbiznis/dealbill/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupServerTest(t *testing.T) (*Server, *gorm.DB, *snowflake.Node) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&oppdomain.Opportunity{},
		&plandomain.PricingPlan{},
		&eventdomain.OutcomeEvent{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	defaults := config.NewStaticBillingDefaultsHolder(config.DefaultBillingDefaults())

	planSvc := planservice.New(planservice.Params{
		DB: db, Log: log, GenID: node,
		Repo:    planrepo.NewRepository(),
		OrgRepo: orgrepo.NewRepository(db), Defaults: defaults,
	})
	eventSvc := eventservice.New(eventservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo:     eventrepo.NewRepository(),
		PlanRepo: planrepo.NewRepository(),
		OppRepo:  opprepo.NewRepository(db),
		Dedupe:   dedupe.NewMemoryStore(64),
	})
	statsSvc := statsservice.New(statsservice.Params{
		DB: db, Log: log, Clock: fake, PlanRepo: planrepo.NewRepository(),
	})
	accessSvc := access.New(access.Params{
		DB: db, Log: log,
		PlanRepo: planrepo.NewRepository(), OrgRepo: orgrepo.NewRepository(db),
	})
	proc := processor.New(processor.Params{
		Log: log, Clock: fake, Config: config.Config{ProcessorBatchSize: 50},
		OppRepo: opprepo.NewRepository(db), Recorder: eventSvc,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin: engine, Cfg: config.Config{}, DB: db, Log: log,
		GenID: node, Clock: fake,
		PlanSvc: planSvc, EventSvc: eventSvc, StatsSvc: statsSvc,
		AccessSvc: accessSvc, Processor: proc,
	})

	return srv, db, node
}

func createOrg(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()

	id := node.Generate()
	org := orgdomain.Organization{
		ID:       id,
		Name:     "Org " + id.String(),
		Slug:     "org-" + id.String(),
		Metadata: datatypes.JSONMap{},
	}
	require.NoError(t, db.Create(&org).Error)
	return id
}

func doRequest(t *testing.T, srv *Server, method, path string, orgID snowflake.ID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if orgID != 0 {
		req.Header.Set("X-Org-Id", orgID.String())
	}

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestPricingPlanEndpoints(t *testing.T) {
	srv, db, node := setupServerTest(t)
	orgID := createOrg(t, db, node)

	// Nothing there yet.
	w := doRequest(t, srv, http.MethodGet, "/api/pricing-plan", orgID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := map[string]any{
		"pricing_model":         "REVENUE_SHARE",
		"revenue_share_percent": 2.5,
	}
	w = doRequest(t, srv, http.MethodPost, "/api/pricing-plan", orgID, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// One plan per organization.
	w = doRequest(t, srv, http.MethodPost, "/api/pricing-plan", orgID, body)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Model-required field enforced.
	w = doRequest(t, srv, http.MethodPost, "/api/pricing-plan", node.Generate(), map[string]any{
		"pricing_model": "FLAT_PER_DEAL",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Partial update.
	w = doRequest(t, srv, http.MethodPatch, "/api/pricing-plan", orgID, map[string]any{
		"monthly_cap": 200_000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/api/pricing-plan", orgID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Data plandomain.PricingPlan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.Data.MonthlyCap)
	assert.Equal(t, int64(200_000), *got.Data.MonthlyCap)

	// Admin listing is cursor paginated across tenants.
	w = doRequest(t, srv, http.MethodGet, "/admin/pricing-plans?page_size=10", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var adminList struct {
		Data     []plandomain.PricingPlan `json:"data"`
		PageInfo struct {
			HasMore bool `json:"has_more"`
		} `json:"page_info"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &adminList))
	assert.Len(t, adminList.Data, 1)
	assert.False(t, adminList.PageInfo.HasMore)

	// Tenant scoped routes refuse requests without an organization.
	w = doRequest(t, srv, http.MethodGet, "/api/pricing-plan", 0, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutcomeEventEndpoints(t *testing.T) {
	srv, db, node := setupServerTest(t)
	orgID := createOrg(t, db, node)

	w := doRequest(t, srv, http.MethodPost, "/api/pricing-plan", orgID, map[string]any{
		"pricing_model":         "REVENUE_SHARE",
		"revenue_share_percent": 2.5,
		"min_deal_value":        0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	closeDate := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	opp := oppdomain.Opportunity{
		ID: node.Generate(), OrgID: orgID, Name: "Acme",
		AmountCents: 2_500_000, Stage: oppdomain.StageClosedWon, CloseDate: &closeDate,
	}
	require.NoError(t, db.Create(&opp).Error)

	record := map[string]any{"opportunity_id": opp.ID.String()}
	w = doRequest(t, srv, http.MethodPost, "/api/outcome-events/record", orgID, record)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var recorded struct {
		Data     *eventdomain.OutcomeEvent `json:"data"`
		Recorded bool                      `json:"recorded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recorded))
	require.True(t, recorded.Recorded)
	assert.Equal(t, int64(62_500), recorded.Data.FeeAmount)

	// Webhook retries hit the same event.
	w = doRequest(t, srv, http.MethodPost, "/api/outcome-events/record", orgID, record)
	require.Equal(t, http.StatusOK, w.Code)
	var again struct {
		Data *eventdomain.OutcomeEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, recorded.Data.ID, again.Data.ID)

	eventPath := fmt.Sprintf("/api/outcome-events/%s", recorded.Data.ID)

	// Waive, then verify terminal state is enforced over HTTP.
	w = doRequest(t, srv, http.MethodPost, eventPath+"/waive", orgID, map[string]any{
		"reason": "goodwill", "reviewer_id": node.Generate().String(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(t, srv, http.MethodPost, eventPath+"/void", orgID, map[string]any{
		"reason": "too late",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/api/outcome-events?status=WAIVED", orgID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Data  []eventdomain.OutcomeEvent `json:"data"`
		Total int64                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, int64(1), listed.Total)

	// Unknown event id.
	w = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/outcome-events/%s", node.Generate()), orgID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBillingStatsAndAccessEndpoints(t *testing.T) {
	srv, db, node := setupServerTest(t)
	orgID := createOrg(t, db, node)

	// No plan: stats are null, access denied.
	w := doRequest(t, srv, http.MethodGet, "/api/billing/stats", orgID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":null}`, w.Body.String())

	w = doRequest(t, srv, http.MethodGet, "/api/access", orgID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"has_access":false}`, w.Body.String())

	w = doRequest(t, srv, http.MethodPost, "/api/pricing-plan", orgID, map[string]any{
		"pricing_model":     "FLAT_PER_DEAL",
		"flat_fee_per_deal": 15_000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doRequest(t, srv, http.MethodGet, "/api/access", orgID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"has_access":true}`, w.Body.String())

	// User access resolves through memberships.
	userID := node.Generate()
	require.NoError(t, db.Create(&orgdomain.OrganizationMember{
		ID: node.Generate(), OrgID: orgID, UserID: userID, Role: "admin",
	}).Error)

	w = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/admin/access/users/%s", userID), 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"has_access":true}`, w.Body.String())

	// Admin dashboard and manual processing need no org header.
	w = doRequest(t, srv, http.MethodGet, "/admin/outcome-billing/stats", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/admin/outcome-billing/process", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
