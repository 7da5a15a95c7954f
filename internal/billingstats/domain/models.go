// Package domain contains read models for outcome billing reporting.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidOrganization = errors.New("invalid_organization")

// PeriodTotals aggregates events whose closed date falls in one
// billing period.
type PeriodTotals struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	FeeTotal    int64     `json:"fee_total"`
	DealCount   int64     `json:"deal_count"`
	DealValue   int64     `json:"deal_value"`
}

// OutcomeBillingStats is the per-organization billing dashboard.
type OutcomeBillingStats struct {
	OrgID         snowflake.ID `json:"org_id"`
	Currency      string       `json:"currency"`
	PricingModel  string       `json:"pricing_model"`
	CurrentPeriod PeriodTotals `json:"current_period"`
	PriorPeriod   PeriodTotals `json:"prior_period"`

	LifetimeFees      int64 `json:"lifetime_fees"`
	LifetimeDealCount int64 `json:"lifetime_deal_count"`
	LifetimeDealValue int64 `json:"lifetime_deal_value"`

	// Cap fields are present only when the plan has a monthly cap.
	MonthlyCap            *int64 `json:"monthly_cap,omitempty"`
	CapRemaining          *int64 `json:"cap_remaining,omitempty"`
	CapUtilizationPercent *int64 `json:"cap_utilization_percent,omitempty"`
}

// AdminDashboardStats is the cross-tenant rollup.
type AdminDashboardStats struct {
	ActivePlanCount   int64 `json:"active_plan_count"`
	PendingEventCount int64 `json:"pending_event_count"`
	FlaggedEventCount int64 `json:"flagged_event_count"`
	CurrentMonthFees  int64 `json:"current_month_fees"`
	CurrentMonthDeals int64 `json:"current_month_deals"`
	CurrentMonthValue int64 `json:"current_month_value"`
	LifetimeRevenue   int64 `json:"lifetime_revenue"`
}

type Service interface {
	// CurrentMonthBilledAmount feeds the fee calculator's cap check.
	// No events yields 0.
	CurrentMonthBilledAmount(ctx context.Context, orgID snowflake.ID) (int64, error)
	// GetOutcomeBillingStats returns nil when the organization has no
	// pricing plan.
	GetOutcomeBillingStats(ctx context.Context) (*OutcomeBillingStats, error)
	GetAdminDashboardStats(ctx context.Context) (*AdminDashboardStats, error)
}
