// Package domain contains persistence models for CRM opportunities.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Opportunity stages. Only closed-won deals ever generate fees.
const (
	StageOpen       = "OPEN"
	StageClosedWon  = "CLOSED_WON"
	StageClosedLost = "CLOSED_LOST"
)

// Opportunity is a sales deal tracked per organization.
type Opportunity struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"org_id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	AccountName string       `gorm:"type:text;column:account_name" json:"account_name"`
	OwnerName   string       `gorm:"type:text;column:owner_name" json:"owner_name"`
	AmountCents int64        `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Stage       string       `gorm:"type:text;not null;index" json:"stage"`
	CloseDate   *time.Time   `gorm:"column:close_date" json:"close_date,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Opportunity) TableName() string { return "opportunities" }

// IsClosedWon reports whether the deal has been won.
func (o Opportunity) IsClosedWon() bool { return o.Stage == StageClosedWon }
