package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	"github.com/smallbiznis/dealbill/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, plan *domain.PricingPlan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, plan *domain.PricingPlan) error {
	return db.WithContext(ctx).Save(plan).Error
}

func (r *repository) Delete(ctx context.Context, db *gorm.DB, orgID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM pricing_plans WHERE org_id = ?`, orgID,
	).Error
}

func (r *repository) FindByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.PricingPlan, error) {
	var plans []domain.PricingPlan
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Limit(1).
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, nil
	}
	return &plans[0], nil
}

func (r *repository) FindByOrgForUpdate(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.PricingPlan, error) {
	q := db.WithContext(ctx)
	// SQLite serializes writers itself and rejects FOR UPDATE.
	if !strings.EqualFold(db.Dialector.Name(), "sqlite") {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var plans []domain.PricingPlan
	err := q.
		Where("org_id = ?", orgID).
		Limit(1).
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, nil
	}
	return &plans[0], nil
}

func (r *repository) HasEvents(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM outcome_events WHERE org_id = ?`,
		orgID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, isActive *bool, p pagination.Pagination) ([]domain.PricingPlan, *pagination.PageInfo, error) {
	size := p.PageSize
	if size <= 0 {
		size = 10
	}

	// Fetch one extra row to detect whether another page exists.
	q := db.WithContext(ctx).Order("id ASC").Limit(size + 1)
	if isActive != nil {
		q = q.Where("is_active = ?", *isActive)
	}
	if p.PageToken != "" {
		cursor, err := pagination.DecodeCursor(p.PageToken)
		if err != nil {
			return nil, nil, err
		}
		q = q.Where("id > ?", cursor.ID)
	}

	var rows []*domain.PricingPlan
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	info := pagination.BuildCursorPageInfo(rows, int32(size), func(plan *domain.PricingPlan) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: plan.ID.String()})
		return token
	})

	if len(rows) > size {
		rows = rows[:size]
	}
	plans := make([]domain.PricingPlan, 0, len(rows))
	for _, row := range rows {
		plans = append(plans, *row)
	}
	return plans, info, nil
}
