// Package domain contains the pricing plan model and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PricingModel identifies how a fee is derived from a won deal.
type PricingModel string

const (
	ModelRevenueShare  PricingModel = "REVENUE_SHARE"
	ModelTieredFlatFee PricingModel = "TIERED_FLAT_FEE"
	ModelFlatPerDeal   PricingModel = "FLAT_PER_DEAL"
	ModelHybrid        PricingModel = "HYBRID"
)

// Valid reports whether m is one of the supported pricing models.
func (m PricingModel) Valid() bool {
	switch m {
	case ModelRevenueShare, ModelTieredFlatFee, ModelFlatPerDeal, ModelHybrid:
		return true
	}
	return false
}

// Tier is one bracket of a tiered-flat-fee configuration. MaxAmount is
// nil for the open-ended top bracket. Bounds are inclusive, in minor
// currency units.
type Tier struct {
	MinAmount int64  `json:"min_amount"`
	MaxAmount *int64 `json:"max_amount,omitempty"`
	Fee       int64  `json:"fee"`
}

// Contains reports whether the deal amount falls inside this bracket.
func (t Tier) Contains(amountCents int64) bool {
	if amountCents < t.MinAmount {
		return false
	}
	return t.MaxAmount == nil || amountCents <= *t.MaxAmount
}

// PricingPlan is an organization's outcome-based billing contract. At
// most one plan exists per organization.
type PricingPlan struct {
	ID                  snowflake.ID               `gorm:"primaryKey" json:"id"`
	OrgID               snowflake.ID               `gorm:"not null;uniqueIndex:ux_pricing_plans_org" json:"org_id"`
	PricingModel        PricingModel               `gorm:"type:text;not null;column:pricing_model" json:"pricing_model"`
	RevenueSharePercent *float64                   `gorm:"type:numeric;column:revenue_share_percent" json:"revenue_share_percent,omitempty"`
	TierConfiguration   datatypes.JSONSlice[Tier]  `gorm:"type:jsonb;column:tier_configuration" json:"tier_configuration,omitempty"`
	FlatFeePerDeal      *int64                     `gorm:"column:flat_fee_per_deal" json:"flat_fee_per_deal,omitempty"`
	OutcomePercent      *float64                   `gorm:"type:numeric;column:outcome_percent" json:"outcome_percent,omitempty"`
	MinDealValue        int64                      `gorm:"column:min_deal_value;not null" json:"min_deal_value"`
	MinFeePerDeal       int64                      `gorm:"column:min_fee_per_deal;not null" json:"min_fee_per_deal"`
	MonthlyCap          *int64                     `gorm:"column:monthly_cap" json:"monthly_cap,omitempty"`
	BillingDay          int                        `gorm:"column:billing_day;not null;default:1" json:"billing_day"`
	Currency            string                     `gorm:"type:text;not null" json:"currency"`
	IsActive            bool                       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	GrantsFullAccess    bool                       `gorm:"column:grants_full_access;not null;default:true" json:"grants_full_access"`
	PlatformAccessFee   int64                      `gorm:"column:platform_access_fee;not null;default:0" json:"platform_access_fee"`
	CreatedAt           time.Time                  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time                  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PricingPlan) TableName() string { return "pricing_plans" }
