package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Order sources (channels). Marketplace orders are fulfilled by the
// marketplace and are excluded from server-side auto-completion.
const (
	SourcePOS         = "pos"
	SourceWeb         = "web"
	SourceMobile      = "mobile"
	SourceMarketplace = "marketplace"
)

// Order types.
const (
	OrderTypeDineIn   = "dine_in"
	OrderTypeTakeout  = "takeout"
	OrderTypeDelivery = "delivery"
)

// Payment methods and statuses.
const (
	PaymentMethodOnline  = "online"
	PaymentMethodCounter = "counter"

	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// Order is never hard-deleted; it is retained for fiscal audit.
type Order struct {
	ID                  int64           `json:"id"`
	OrderNumber         string          `json:"order_number" db:"order_number"`
	BranchID            int64           `json:"branch_id" db:"branch_id"`
	Status              string          `json:"status" db:"status"`
	Source              string          `json:"source" db:"source"`
	OrderType           string          `json:"order_type" db:"order_type"`
	Subtotal            decimal.Decimal `json:"subtotal" db:"subtotal"`
	TaxGST              decimal.Decimal `json:"tax_gst" db:"tax_gst"`
	TaxQST              decimal.Decimal `json:"tax_qst" db:"tax_qst"`
	TotalAmount         decimal.Decimal `json:"total_amount" db:"total_amount"`
	TotalRefunded       decimal.Decimal `json:"total_refunded" db:"total_refunded"`
	PaymentMethod       string          `json:"payment_method" db:"payment_method"`
	PaymentStatus       string          `json:"payment_status" db:"payment_status"`
	TimingAdjustmentMin int             `json:"individual_timing_adjustment" db:"timing_adjustment_min"`
	ScheduledDate       *string         `json:"scheduled_date,omitempty" db:"scheduled_date"` // YYYY-MM-DD, pre-orders only
	ScheduledTime       *string         `json:"scheduled_time,omitempty" db:"scheduled_time"` // HH:MM, pre-orders only
	CustomerName        *string         `json:"customer_name,omitempty" db:"customer_name"`
	CustomerPhone       *string         `json:"customer_phone,omitempty" db:"customer_phone"`
	Notes               *string         `json:"notes,omitempty" db:"notes"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
	Items               []OrderItem     `json:"items,omitempty"`
}

// OrderItem carries a denormalized snapshot of the menu item at order time.
// RefundedQuantity only ever increases and never exceeds Quantity.
type OrderItem struct {
	ID               int64           `json:"id"`
	OrderID          int64           `json:"order_id" db:"order_id"`
	MenuItemID       int64           `json:"menu_item_id" db:"menu_item_id"`
	Name             string          `json:"name" db:"name"`
	UnitPrice        decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity         int             `json:"quantity" db:"quantity"`
	RefundedQuantity int             `json:"refunded_quantity" db:"refunded_quantity"`
	TotalPrice       decimal.Decimal `json:"total_price" db:"total_price"`
	Variants         json.RawMessage `json:"variants,omitempty" db:"variants"`
	Modifiers        json.RawMessage `json:"modifiers,omitempty" db:"modifiers"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Pre-payment edit change types for RemovedItem records.
const (
	ChangeRemoved           = "removed"
	ChangeQuantityIncreased = "quantity_increased"
	ChangeQuantityDecreased = "quantity_decreased"
)

// RemovedItem is an append-only log entry for pre-payment order edits.
// Rows are never mutated after creation; fiscal traceability depends on it.
type RemovedItem struct {
	ID             int64     `json:"id"`
	OrderID        int64     `json:"order_id" db:"order_id"`
	OrderItemID    int64     `json:"order_item_id" db:"order_item_id"`
	ChangeType     string    `json:"change_type" db:"change_type"`
	QuantityBefore int       `json:"quantity_before" db:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after" db:"quantity_after"`
	Reason         *string   `json:"reason,omitempty" db:"reason"`
	StaffUserID    *int64    `json:"staff_user_id,omitempty" db:"staff_user_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// RefundItem is one (order item, quantity) pair inside an item-based refund.
type RefundItem struct {
	OrderItemID int64 `json:"order_item_id"`
	Quantity    int   `json:"quantity"`
}

// Refund statuses. Pending rows are booked against the order (counted in
// total_refunded) but not yet accepted by the processor; rejection
// compensations start pending and flip to succeeded once submitted.
const (
	RefundStatusPending   = "pending"
	RefundStatusSucceeded = "succeeded"
)

// Refund increases Order.TotalRefunded; the invariant
// total_refunded <= total_amount holds after every refund.
type Refund struct {
	ID                int64           `json:"id"`
	OrderID           int64           `json:"order_id" db:"order_id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Reason            string          `json:"reason" db:"reason"`
	IdempotencyKey    string          `json:"idempotency_key" db:"idempotency_key"`
	Status            string          `json:"status" db:"status"`
	ProcessorRefundID *string         `json:"processor_refund_id,omitempty" db:"processor_refund_id"`
	Items             []RefundItem    `json:"items,omitempty"`
	CreatedBy         *int64          `json:"created_by,omitempty" db:"created_by"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// OrderFilters defines the available filters for querying orders.
// This struct is used by both the service and repository layers.
type OrderFilters struct {
	BranchID *int64  `form:"branch_id"`
	Status   *string `form:"status"`
	Source   *string `form:"source"`
	Date     *string `form:"date"` // Expected format YYYY-MM-DD
	Page     int     `form:"page"`
	PageSize int     `form:"page_size"`
}
