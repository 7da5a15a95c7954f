package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *PricingPlan) error
	Update(ctx context.Context, db *gorm.DB, plan *PricingPlan) error
	Delete(ctx context.Context, db *gorm.DB, orgID snowflake.ID) error
	FindByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*PricingPlan, error)
	// FindByOrgForUpdate takes a row lock on the organization's plan.
	// Callers must hold an open transaction.
	FindByOrgForUpdate(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*PricingPlan, error)
	List(ctx context.Context, db *gorm.DB, isActive *bool, p pagination.Pagination) ([]PricingPlan, *pagination.PageInfo, error)
	// HasEvents reports whether any outcome event references the
	// organization's plan. Event history pins the plan: plans with
	// events, voided included, cannot be deleted.
	HasEvents(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (bool, error)
}
