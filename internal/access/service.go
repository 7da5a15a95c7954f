// Package access gates feature availability on outcome-based billing
// enrollment. The checks fail closed: any missing condition denies.
package access

import (
	"context"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/smallbiznis/dealbill/internal/organization/domain"
	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service interface {
	// HasOutcomeBasedAccess is true only when the organization has a
	// plan that is active and grants full access.
	HasOutcomeBasedAccess(ctx context.Context, orgID snowflake.ID) (bool, error)
	// UserHasOutcomeBasedAccess is true when any of the user's
	// organizations passes HasOutcomeBasedAccess.
	UserHasOutcomeBasedAccess(ctx context.Context, userID snowflake.ID) (bool, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	PlanRepo plandomain.Repository
	OrgRepo  orgdomain.Repository
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	planRepo plandomain.Repository
	orgRepo  orgdomain.Repository
}

func New(p Params) Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("access.service"),
		planRepo: p.PlanRepo,
		orgRepo:  p.OrgRepo,
	}
}

func (s *service) HasOutcomeBasedAccess(ctx context.Context, orgID snowflake.ID) (bool, error) {
	if orgID == 0 {
		return false, nil
	}

	plan, err := s.planRepo.FindByOrg(ctx, s.db, orgID)
	if err != nil {
		return false, err
	}
	if plan == nil {
		return false, nil
	}
	return plan.IsActive && plan.GrantsFullAccess, nil
}

func (s *service) UserHasOutcomeBasedAccess(ctx context.Context, userID snowflake.ID) (bool, error) {
	if userID == 0 {
		return false, nil
	}

	orgIDs, err := s.orgRepo.ListMemberOrgIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, orgID := range orgIDs {
		ok, err := s.HasOutcomeBasedAccess(ctx, orgID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
