package jobs

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange is the topic exchange all job messages go through.
const Exchange = "resto.jobs"

// Job type names. Each maps to a routing key whose first segment selects the
// queue (email, webhook, sync, notification).
const (
	TypeOrderConfirmation  = "send-order-confirmation"
	TypeClosingReceipt     = "send-closing-receipt"
	TypeRefundNotification = "send-refund-notification"
	TypePaymentWebhook     = "process-payment-webhook"
	TypeMarketplaceSync    = "sync-marketplace-orders"
)

// RoutingKeys maps job types onto their exchange routing keys.
var RoutingKeys = map[string]string{
	TypeOrderConfirmation:  "email.order-confirmation",
	TypeClosingReceipt:     "email.closing-receipt",
	TypeRefundNotification: "notification.refund",
	TypePaymentWebhook:     "webhook.payment",
	TypeMarketplaceSync:    "sync.marketplace-orders",
}

// Queue names and their binding patterns.
var QueueBindings = map[string]string{
	"resto.jobs.email":        "email.#",
	"resto.jobs.webhook":      "webhook.#",
	"resto.jobs.sync":         "sync.#",
	"resto.jobs.notification": "notification.#",
}

// Envelope wraps every published job so consumers can dispatch on type
// without guessing at the payload shape.
type Envelope struct {
	Type       string          `json:"type"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderConfirmationPayload notifies the customer their order was received.
type OrderConfirmationPayload struct {
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	BranchID      int64           `json:"branch_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// RefundNotificationPayload notifies staff/customer of a processed refund.
type RefundNotificationPayload struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	RefundID    int64           `json:"refund_id"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	// Set when a compensating refund could not be submitted; the rejection
	// itself stands and the failure is handled out of band.
	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PaymentWebhookPayload carries a raw payment-processor webhook event for
// asynchronous processing.
type PaymentWebhookPayload struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Raw       json.RawMessage `json:"raw"`
}

// MarketplaceSyncPayload asks the sync worker to pull new marketplace orders
// for one branch.
type MarketplaceSyncPayload struct {
	BranchID int64  `json:"branch_id"`
	StoreID  string `json:"store_id"`
}

// ClosingReceiptPayload emails the completed fiscal closing to the branch.
type ClosingReceiptPayload struct {
	ClosingID   int64  `json:"closing_id"`
	BranchID    int64  `json:"branch_id"`
	ClosingDate string `json:"closing_date"`
	FiscalTxID  string `json:"fiscal_tx_id"`
}
