package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/internal/organization/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Create(&org).Error
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *repository) GetOrganization(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM organizations WHERE id = ? LIMIT 1`, orgID,
	).Scan(&orgs).Error
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, nil
	}
	return &orgs[0], nil
}

func (r *repository) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM organizations ORDER BY created_at ASC`,
	).Scan(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *repository) ListMemberOrgIDs(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT org_id FROM organization_members WHERE user_id = ? ORDER BY org_id ASC`,
		userID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM organization_members WHERE org_id = ? AND user_id = ?`,
		orgID, userID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
