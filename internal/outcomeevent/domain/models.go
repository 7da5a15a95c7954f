// Package domain contains the outcome event model and contracts. An
// outcome event is the billable record created when a deal closes
// under an outcome-based pricing plan.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventStatus is the lifecycle state of an outcome event.
type EventStatus string

const (
	StatusPending          EventStatus = "PENDING"
	StatusInvoiced         EventStatus = "INVOICED"
	StatusPaid             EventStatus = "PAID"
	StatusWaived           EventStatus = "WAIVED"
	StatusVoided           EventStatus = "VOIDED"
	StatusFlaggedForReview EventStatus = "FLAGGED_FOR_REVIEW"
)

// Terminal reports whether no further transitions are allowed.
func (s EventStatus) Terminal() bool {
	return s == StatusPaid || s == StatusWaived || s == StatusVoided
}

// OutcomeEvent is immutable billing evidence for one closed-won deal.
// The fee is never recomputed once persisted; corrections go through
// waive or void. Deal fields are snapshots taken at close time, since
// the opportunity may change or disappear afterwards.
type OutcomeEvent struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID `gorm:"not null;index" json:"org_id"`
	PricingPlanID snowflake.ID `gorm:"not null;column:pricing_plan_id" json:"pricing_plan_id"`
	OpportunityID snowflake.ID `gorm:"not null;column:opportunity_id" json:"opportunity_id"`

	OpportunityName string `gorm:"type:text;column:opportunity_name" json:"opportunity_name"`
	AccountName     string `gorm:"type:text;column:account_name" json:"account_name"`
	OwnerName       string `gorm:"type:text;column:owner_name" json:"owner_name"`

	DealAmount     int64          `gorm:"column:deal_amount;not null" json:"deal_amount"`
	FeeAmount      int64          `gorm:"column:fee_amount;not null" json:"fee_amount"`
	FeeCalculation datatypes.JSON `gorm:"type:jsonb;column:fee_calculation" json:"fee_calculation"`

	Status EventStatus `gorm:"type:text;not null" json:"status"`

	BillingPeriodStart time.Time `gorm:"column:billing_period_start;not null" json:"billing_period_start"`
	BillingPeriodEnd   time.Time `gorm:"column:billing_period_end;not null" json:"billing_period_end"`
	ClosedDate         time.Time `gorm:"column:closed_date;not null" json:"closed_date"`

	AdminNotes *string       `gorm:"type:text;column:admin_notes" json:"admin_notes,omitempty"`
	ReviewedBy *snowflake.ID `gorm:"column:reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time    `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`

	InvoiceID         *string    `gorm:"type:text;column:invoice_id" json:"invoice_id,omitempty"`
	InvoiceLineItemID *string    `gorm:"type:text;column:invoice_line_item_id" json:"invoice_line_item_id,omitempty"`
	InvoicedAt        *time.Time `gorm:"column:invoiced_at" json:"invoiced_at,omitempty"`
	PaidAt            *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OutcomeEvent) TableName() string { return "outcome_events" }
