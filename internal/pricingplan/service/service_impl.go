package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/internal/config"
	orgdomain "github.com/smallbiznis/dealbill/internal/organization/domain"
	"github.com/smallbiznis/dealbill/internal/orgcontext"
	"github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	"github.com/smallbiznis/dealbill/pkg/db"
	"github.com/smallbiznis/dealbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	OrgRepo  orgdomain.Repository
	Defaults *config.BillingDefaultsHolder
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	orgRepo  orgdomain.Repository
	defaults *config.BillingDefaultsHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("pricingplan.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		orgRepo:  p.OrgRepo,
		defaults: p.Defaults,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.PricingPlan, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	org, err := s.orgRepo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrganizationNotFound
	}

	defaults := s.defaults.Get()
	now := time.Now().UTC()
	plan := &domain.PricingPlan{
		ID:                  s.genID.Generate(),
		OrgID:               orgID,
		PricingModel:        req.PricingModel,
		RevenueSharePercent: req.RevenueSharePercent,
		TierConfiguration:   datatypes.NewJSONSlice(req.TierConfiguration),
		FlatFeePerDeal:      req.FlatFeePerDeal,
		OutcomePercent:      req.OutcomePercent,
		MinDealValue:        int64OrDefault(req.MinDealValue, defaults.MinDealValue),
		MinFeePerDeal:       int64OrDefault(req.MinFeePerDeal, defaults.MinFeePerDeal),
		MonthlyCap:          req.MonthlyCap,
		BillingDay:          intOrDefault(req.BillingDay, int(defaults.BillingDay)),
		Currency:            currencyOrDefault(req.Currency, defaults.Currency),
		IsActive:            boolOrDefault(req.IsActive, true),
		GrantsFullAccess:    boolOrDefault(req.GrantsFullAccess, true),
		PlatformAccessFee:   int64OrDefault(req.PlatformAccessFee, defaults.PlatformAccessFee),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if plan.BillingDay < 1 || plan.BillingDay > 28 {
		return nil, domain.ErrInvalidBillingDay
	}

	if err := s.repo.Insert(ctx, s.db, plan); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrPlanAlreadyExists
		}
		return nil, err
	}

	s.log.Info("pricing plan created",
		zap.Int64("org_id", orgID.Int64()),
		zap.String("pricing_model", string(plan.PricingModel)),
	)

	return plan, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.PricingPlan, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	plan, err := s.repo.FindByOrg(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}

	if req.PricingModel != "" {
		plan.PricingModel = req.PricingModel
	}
	if req.RevenueSharePercent != nil {
		plan.RevenueSharePercent = req.RevenueSharePercent
	}
	if req.TierConfiguration != nil {
		plan.TierConfiguration = datatypes.NewJSONSlice(req.TierConfiguration)
	}
	if req.FlatFeePerDeal != nil {
		plan.FlatFeePerDeal = req.FlatFeePerDeal
	}
	if req.OutcomePercent != nil {
		plan.OutcomePercent = req.OutcomePercent
	}
	if req.MinDealValue != nil {
		plan.MinDealValue = *req.MinDealValue
	}
	if req.MinFeePerDeal != nil {
		plan.MinFeePerDeal = *req.MinFeePerDeal
	}
	if req.MonthlyCap != nil {
		plan.MonthlyCap = req.MonthlyCap
	}
	if req.BillingDay != nil {
		plan.BillingDay = *req.BillingDay
	}
	if req.Currency != "" {
		plan.Currency = strings.ToUpper(req.Currency)
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}
	if req.GrantsFullAccess != nil {
		plan.GrantsFullAccess = *req.GrantsFullAccess
	}
	if req.PlatformAccessFee != nil {
		plan.PlatformAccessFee = *req.PlatformAccessFee
	}

	// Partial updates only re-check value ranges; a model switch that
	// leaves its required field unset is the caller's responsibility.
	if err := validateRanges(plan); err != nil {
		return nil, err
	}

	plan.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, plan); err != nil {
		return nil, err
	}

	return plan, nil
}

func (s *Service) Delete(ctx context.Context) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	plan, err := s.repo.FindByOrg(ctx, s.db, orgID)
	if err != nil {
		return err
	}
	if plan == nil {
		return domain.ErrPlanNotFound
	}

	hasEvents, err := s.repo.HasEvents(ctx, s.db, orgID)
	if err != nil {
		return err
	}
	if hasEvents {
		return domain.ErrPlanHasBilledEvents
	}

	return s.repo.Delete(ctx, s.db, orgID)
}

func (s *Service) GetByOrganization(ctx context.Context) (*domain.PricingPlan, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	plan, err := s.repo.FindByOrg(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context, isActive *bool, p pagination.Pagination) ([]domain.PricingPlan, *pagination.PageInfo, error) {
	return s.repo.List(ctx, s.db, isActive, p)
}

func validateRequest(req domain.CreateRequest) error {
	if !req.PricingModel.Valid() {
		return domain.ErrInvalidPricingModel
	}

	switch req.PricingModel {
	case domain.ModelRevenueShare:
		if req.RevenueSharePercent == nil {
			return domain.ErrMissingRevenueShare
		}
	case domain.ModelTieredFlatFee:
		if len(req.TierConfiguration) == 0 {
			return domain.ErrMissingTierConfig
		}
		if err := validateTiers(req.TierConfiguration); err != nil {
			return err
		}
	case domain.ModelFlatPerDeal:
		if req.FlatFeePerDeal == nil {
			return domain.ErrMissingFlatFee
		}
	case domain.ModelHybrid:
		if req.OutcomePercent == nil {
			return domain.ErrMissingOutcomePercent
		}
	}

	for _, v := range []*int64{req.FlatFeePerDeal, req.MinDealValue, req.MinFeePerDeal, req.MonthlyCap, req.PlatformAccessFee} {
		if v != nil && *v < 0 {
			return domain.ErrNegativeAmount
		}
	}
	for _, v := range []*float64{req.RevenueSharePercent, req.OutcomePercent} {
		if v != nil && *v < 0 {
			return domain.ErrNegativeAmount
		}
	}
	if req.BillingDay != nil && (*req.BillingDay < 1 || *req.BillingDay > 28) {
		return domain.ErrInvalidBillingDay
	}
	return nil
}

func validateRanges(plan *domain.PricingPlan) error {
	if !plan.PricingModel.Valid() {
		return domain.ErrInvalidPricingModel
	}
	if err := validateTiers([]domain.Tier(plan.TierConfiguration)); err != nil {
		return err
	}
	for _, v := range []*int64{plan.FlatFeePerDeal, plan.MonthlyCap} {
		if v != nil && *v < 0 {
			return domain.ErrNegativeAmount
		}
	}
	if plan.MinDealValue < 0 || plan.MinFeePerDeal < 0 || plan.PlatformAccessFee < 0 {
		return domain.ErrNegativeAmount
	}
	for _, v := range []*float64{plan.RevenueSharePercent, plan.OutcomePercent} {
		if v != nil && *v < 0 {
			return domain.ErrNegativeAmount
		}
	}
	if plan.BillingDay < 1 || plan.BillingDay > 28 {
		return domain.ErrInvalidBillingDay
	}
	return nil
}

func validateTiers(tiers []domain.Tier) error {
	for _, t := range tiers {
		if t.MinAmount < 0 || t.Fee < 0 {
			return domain.ErrInvalidTierConfig
		}
		if t.MaxAmount != nil && *t.MaxAmount < t.MinAmount {
			return domain.ErrInvalidTierConfig
		}
	}
	return nil
}

func int64OrDefault(v *int64, def int64) int64 {
	if v != nil {
		return *v
	}
	return def
}

func intOrDefault(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func boolOrDefault(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func currencyOrDefault(v, def string) string {
	if v != "" {
		return strings.ToUpper(v)
	}
	return def
}
