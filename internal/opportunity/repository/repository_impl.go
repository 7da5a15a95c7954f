package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/internal/opportunity/domain"
	"github.com/smallbiznis/dealbill/pkg/db/option"
	pkgrepo "github.com/smallbiznis/dealbill/pkg/repository"
	"gorm.io/gorm"
)

type repository struct {
	db    *gorm.DB
	store pkgrepo.Repository[domain.Opportunity]
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db, store: pkgrepo.ProvideStore[domain.Opportunity](db)}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx, store: r.store.WithTrx(tx)}
}

func (r *repository) Create(ctx context.Context, opp domain.Opportunity) error {
	return r.store.Create(ctx, &opp)
}

func (r *repository) Update(ctx context.Context, opp domain.Opportunity) error {
	return r.db.WithContext(ctx).Save(&opp).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Opportunity, error) {
	return r.store.FindOne(ctx, &domain.Opportunity{ID: id})
}

func (r *repository) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]domain.Opportunity, error) {
	rows, err := r.store.Find(ctx, &domain.Opportunity{OrgID: orgID}, option.WithOrder("created_at DESC"))
	if err != nil {
		return nil, err
	}

	opps := make([]domain.Opportunity, 0, len(rows))
	for _, row := range rows {
		opps = append(opps, *row)
	}
	return opps, nil
}

func (r *repository) ListClosedWonWithoutEvent(ctx context.Context, closedSince time.Time, limit int) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.*
		 FROM opportunities o
		 LEFT JOIN outcome_events e
		   ON e.opportunity_id = o.id AND e.status <> 'VOIDED'
		 WHERE o.stage = ?
		   AND o.close_date >= ?
		   AND e.id IS NULL
		 ORDER BY o.close_date ASC
		 LIMIT ?`,
		domain.StageClosedWon, closedSince, limit,
	).Scan(&opps).Error
	if err != nil {
		return nil, err
	}
	return opps, nil
}
