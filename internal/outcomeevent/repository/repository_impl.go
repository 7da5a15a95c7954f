package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	"github.com/smallbiznis/dealbill/pkg/db/option"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, event *domain.OutcomeEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, event *domain.OutcomeEvent) error {
	return db.WithContext(ctx).Save(event).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.OutcomeEvent, error) {
	var events []domain.OutcomeEvent
	q := db.WithContext(ctx).Where("id = ?", id)
	if orgID != 0 {
		q = q.Where("org_id = ?", orgID)
	}
	if err := q.Limit(1).Find(&events).Error; err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (r *repository) FindActiveByOpportunity(ctx context.Context, db *gorm.DB, opportunityID snowflake.ID) (*domain.OutcomeEvent, error) {
	var events []domain.OutcomeEvent
	err := db.WithContext(ctx).
		Where("opportunity_id = ? AND status <> ?", opportunityID, domain.StatusVoided).
		Limit(1).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, limit, offset int) ([]domain.OutcomeEvent, int64, error) {
	q := db.WithContext(ctx).Model(&domain.OutcomeEvent{}).Where("org_id = ?", orgID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.OpportunityID != 0 {
		q = q.Where("opportunity_id = ?", filter.OpportunityID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	for _, opt := range []option.QueryOption{
		option.WithOrder("closed_date DESC"),
		option.WithLimit(limit),
		option.WithOffset(offset),
	} {
		q = opt.Apply(q)
	}

	var events []domain.OutcomeEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *repository) SumFeesInPeriod(ctx context.Context, db *gorm.DB, orgID snowflake.ID, start, end time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(fee_amount), 0)
		 FROM outcome_events
		 WHERE org_id = ?
		   AND status <> ?
		   AND closed_date >= ?
		   AND closed_date < ?`,
		orgID, domain.StatusVoided, start, end,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
