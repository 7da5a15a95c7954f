package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrEventNotFound       = errors.New("outcome_event_not_found")
	ErrInvalidState        = errors.New("invalid_event_state")
	ErrInvalidAction       = errors.New("invalid_review_action")
)

// ReviewAction resolves a flagged event.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionWaive   ReviewAction = "waive"
	ActionVoid    ReviewAction = "void"
)

// Recorder turns a closed-won deal into a billing event. A nil event
// with a nil error means the deal produced no billing trace: no
// active plan, unknown deal, or deal below the plan minimum.
type Recorder interface {
	RecordDealOutcome(ctx context.Context, orgID, opportunityID snowflake.ID) (*OutcomeEvent, error)
}

// Lifecycle applies guarded status transitions. Transitions that fail
// their guard return ErrInvalidState, never silently pass.
type Lifecycle interface {
	FlagEventForReview(ctx context.Context, opportunityID snowflake.ID, notes string) (*OutcomeEvent, error)
	WaiveEvent(ctx context.Context, eventID snowflake.ID, reason string, reviewerID snowflake.ID) (*OutcomeEvent, error)
	VoidEvent(ctx context.Context, eventID snowflake.ID, reason string, reviewerID snowflake.ID) (*OutcomeEvent, error)
	ResolveReview(ctx context.Context, eventID snowflake.ID, action ReviewAction, reason string, reviewerID snowflake.ID) (*OutcomeEvent, error)
	MarkInvoiced(ctx context.Context, eventID snowflake.ID, invoiceID, lineItemID string) (*OutcomeEvent, error)
	MarkPaid(ctx context.Context, eventID snowflake.ID) (*OutcomeEvent, error)
}

// Service is the full outcome event surface.
type Service interface {
	Recorder
	Lifecycle
	GetByID(ctx context.Context, eventID snowflake.ID) (*OutcomeEvent, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]OutcomeEvent, int64, error)
}
