package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Daily closing statuses. At most one non-cancelled closing may exist per
// (branch, calendar date).
const (
	ClosingStatusDraft     = "draft"
	ClosingStatusCompleted = "completed"
	ClosingStatusCancelled = "cancelled"
)

// DailyClosing is the jurisdiction-mandated end-of-day fiscal summary.
// Aggregates are computed at query time while the closing is a draft and
// frozen onto the row when it completes.
type DailyClosing struct {
	ID              int64            `json:"id"`
	BranchID        int64            `json:"branch_id" db:"branch_id"`
	ClosingDate     string           `json:"closing_date" db:"closing_date"` // YYYY-MM-DD
	Status          string           `json:"status" db:"status"`
	GrossSales      decimal.Decimal  `json:"gross_sales" db:"gross_sales"`
	TotalRefunds    decimal.Decimal  `json:"total_refunds" db:"total_refunds"`
	TaxGST          decimal.Decimal  `json:"tax_gst" db:"tax_gst"`
	TaxQST          decimal.Decimal  `json:"tax_qst" db:"tax_qst"`
	NetSales        decimal.Decimal  `json:"net_sales" db:"net_sales"`
	OrderCount      int              `json:"order_count" db:"order_count"`
	FiscalTxID      *string          `json:"fiscal_tx_id,omitempty" db:"fiscal_tx_id"`
	CancelReason    *string          `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedBy       int64            `json:"created_by" db:"created_by"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt     *time.Time       `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
	PaymentChannels []ChannelTotal   `json:"payment_channels,omitempty"`
}

// ChannelTotal is one line of the per-payment-method breakdown.
type ChannelTotal struct {
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	OrderCount    int             `json:"order_count" db:"order_count"`
	Total         decimal.Decimal `json:"total" db:"total"`
}

// ClosingSummary holds the query-time aggregates of one branch-day. Computed
// fresh on every read of a draft so late order edits stay visible until the
// closing completes.
type ClosingSummary struct {
	BranchID        int64           `json:"branch_id"`
	Date            string          `json:"date"`
	GrossSales      decimal.Decimal `json:"gross_sales"`
	TotalRefunds    decimal.Decimal `json:"total_refunds"`
	TaxGST          decimal.Decimal `json:"tax_gst"`
	TaxQST          decimal.Decimal `json:"tax_qst"`
	NetSales        decimal.Decimal `json:"net_sales"`
	OrderCount      int             `json:"order_count"`
	PaymentChannels []ChannelTotal  `json:"payment_channels"`
}

// AuditLogEntry is an immutable compliance record. Cancelling a fiscal
// closing without one is an audit failure, not just a bug.
type AuditLogEntry struct {
	ID         string    `json:"id"` // uuid
	BranchID   int64     `json:"branch_id" db:"branch_id"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   int64     `json:"entity_id" db:"entity_id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Reason     *string   `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
