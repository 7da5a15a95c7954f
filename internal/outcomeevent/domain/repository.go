package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows an event listing.
type ListFilter struct {
	Status        EventStatus
	OpportunityID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *OutcomeEvent) error
	Update(ctx context.Context, db *gorm.DB, event *OutcomeEvent) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*OutcomeEvent, error)
	// FindActiveByOpportunity returns the non-voided event for the
	// opportunity, or nil.
	FindActiveByOpportunity(ctx context.Context, db *gorm.DB, opportunityID snowflake.ID) (*OutcomeEvent, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, limit, offset int) ([]OutcomeEvent, int64, error)
	// SumFeesInPeriod totals fee_amount for the organization's
	// non-voided events whose closed_date falls in [start, end).
	// Voided events release their share of the monthly cap.
	SumFeesInPeriod(ctx context.Context, db *gorm.DB, orgID snowflake.ID, start, end time.Time) (int64, error)
}
