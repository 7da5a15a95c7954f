package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository provides access to opportunities.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, opp Opportunity) error
	Update(ctx context.Context, opp Opportunity) error
	GetByID(ctx context.Context, id snowflake.ID) (*Opportunity, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]Opportunity, error)
	// ListClosedWonWithoutEvent returns closed-won deals that have no
	// non-voided outcome event yet, bounded by limit. Used by the sweep.
	ListClosedWonWithoutEvent(ctx context.Context, closedSince time.Time, limit int) ([]Opportunity, error)
}
