package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository provides access to organizations and their memberships.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org Organization) error
	AddMember(ctx context.Context, member OrganizationMember) error
	GetOrganization(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
	ListMemberOrgIDs(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error)
	IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error)
}
