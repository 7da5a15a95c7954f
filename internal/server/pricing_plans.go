package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	"github.com/smallbiznis/dealbill/pkg/db/pagination"
)

type pricingPlanRequest struct {
	PricingModel        plandomain.PricingModel `json:"pricing_model"`
	RevenueSharePercent *float64                `json:"revenue_share_percent"`
	TierConfiguration   []plandomain.Tier       `json:"tier_configuration"`
	FlatFeePerDeal      *int64                  `json:"flat_fee_per_deal"`
	OutcomePercent      *float64                `json:"outcome_percent"`
	MinDealValue        *int64                  `json:"min_deal_value"`
	MinFeePerDeal       *int64                  `json:"min_fee_per_deal"`
	MonthlyCap          *int64                  `json:"monthly_cap"`
	BillingDay          *int                    `json:"billing_day"`
	Currency            string                  `json:"currency"`
	IsActive            *bool                   `json:"is_active"`
	GrantsFullAccess    *bool                   `json:"grants_full_access"`
	PlatformAccessFee   *int64                  `json:"platform_access_fee"`
}

func (r pricingPlanRequest) toDomain() plandomain.CreateRequest {
	return plandomain.CreateRequest{
		PricingModel:        r.PricingModel,
		RevenueSharePercent: r.RevenueSharePercent,
		TierConfiguration:   r.TierConfiguration,
		FlatFeePerDeal:      r.FlatFeePerDeal,
		OutcomePercent:      r.OutcomePercent,
		MinDealValue:        r.MinDealValue,
		MinFeePerDeal:       r.MinFeePerDeal,
		MonthlyCap:          r.MonthlyCap,
		BillingDay:          r.BillingDay,
		Currency:            r.Currency,
		IsActive:            r.IsActive,
		GrantsFullAccess:    r.GrantsFullAccess,
		PlatformAccessFee:   r.PlatformAccessFee,
	}
}

func (s *Server) CreatePricingPlan(c *gin.Context) {
	var req pricingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.planSvc.Create(c.Request.Context(), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": plan})
}

func (s *Server) UpdatePricingPlan(c *gin.Context) {
	var req pricingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.planSvc.Update(c.Request.Context(), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) DeletePricingPlan(c *gin.Context) {
	if err := s.planSvc.Delete(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) GetPricingPlan(c *gin.Context) {
	plan, err := s.planSvc.GetByOrganization(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) ListPricingPlans(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var isActive *bool
	if raw := c.Query("is_active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			AbortWithError(c, newValidationError("is_active", "invalid_is_active", "invalid is_active filter"))
			return
		}
		isActive = &v
	}

	plans, info, err := s.planSvc.List(c.Request.Context(), isActive, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans, "page_info": info})
}
