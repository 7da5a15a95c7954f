package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/dealbill/pkg/db/pagination"
)

var (
	ErrInvalidOrganization   = errors.New("invalid_organization")
	ErrOrganizationNotFound  = errors.New("organization_not_found")
	ErrPlanNotFound          = errors.New("pricing_plan_not_found")
	ErrPlanAlreadyExists     = errors.New("pricing_plan_already_exists")
	ErrInvalidPricingModel   = errors.New("invalid_pricing_model")
	ErrMissingRevenueShare   = errors.New("missing_revenue_share_percent")
	ErrMissingTierConfig     = errors.New("missing_tier_configuration")
	ErrInvalidTierConfig     = errors.New("invalid_tier_configuration")
	ErrMissingFlatFee        = errors.New("missing_flat_fee_per_deal")
	ErrMissingOutcomePercent = errors.New("missing_outcome_percent")
	ErrNegativeAmount        = errors.New("negative_amount")
	ErrInvalidBillingDay     = errors.New("invalid_billing_day")
	ErrPlanHasBilledEvents   = errors.New("pricing_plan_has_billed_events")
)

// CreateRequest carries the fields accepted when creating or replacing
// an organization's plan. Safeguard fields left nil fall back to the
// platform defaults.
type CreateRequest struct {
	PricingModel        PricingModel `json:"pricing_model"`
	RevenueSharePercent *float64     `json:"revenue_share_percent,omitempty"`
	TierConfiguration   []Tier       `json:"tier_configuration,omitempty"`
	FlatFeePerDeal      *int64       `json:"flat_fee_per_deal,omitempty"`
	OutcomePercent      *float64     `json:"outcome_percent,omitempty"`
	MinDealValue        *int64       `json:"min_deal_value,omitempty"`
	MinFeePerDeal       *int64       `json:"min_fee_per_deal,omitempty"`
	MonthlyCap          *int64       `json:"monthly_cap,omitempty"`
	BillingDay          *int         `json:"billing_day,omitempty"`
	Currency            string       `json:"currency,omitempty"`
	IsActive            *bool        `json:"is_active,omitempty"`
	GrantsFullAccess    *bool        `json:"grants_full_access,omitempty"`
	PlatformAccessFee   *int64       `json:"platform_access_fee,omitempty"`
}

// UpdateRequest mirrors CreateRequest; unset fields keep their current
// value.
type UpdateRequest = CreateRequest

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*PricingPlan, error)
	Update(ctx context.Context, req UpdateRequest) (*PricingPlan, error)
	Delete(ctx context.Context) error
	GetByOrganization(ctx context.Context) (*PricingPlan, error)
	List(ctx context.Context, isActive *bool, p pagination.Pagination) ([]PricingPlan, *pagination.PageInfo, error)
}
