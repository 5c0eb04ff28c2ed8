package services

import (
	"context"
	"errors"
	"fmt"

	"resto_platform_backend/internal/jobs"
	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/payments"
	"resto_platform_backend/internal/repositories"
	"resto_platform_backend/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Custom Errors
var (
	ErrRefundExceedsTotal   = errors.New("refund amount exceeds the refundable balance")
	ErrRefundQuantity       = errors.New("refund quantity exceeds the remaining quantity for an item")
	ErrRefundEmpty          = errors.New("refund must select items or specify an amount, not both or neither")
	ErrRefundInvalidReason  = errors.New("refund reason is not accepted by the payment processor")
	ErrRefundAlreadyApplied = errors.New("a refund with this idempotency key was already applied")
)

// --- Data Transfer Objects (DTOs) ---

// RefundItemRequest selects a quantity of one order item to refund.
type RefundItemRequest struct {
	OrderItemID int64 `json:"order_item_id" binding:"required"`
	Quantity    int   `json:"quantity" binding:"required,gt=0"`
}

// RefundRequest issues a refund against an order. Exactly one of Items or
// Amount must be set: item-based refunds derive the amount from the selected
// lines plus their prorated tax share; amount refunds are free-form up to the
// remaining refundable balance.
type RefundRequest struct {
	Items          []RefundItemRequest `json:"items,omitempty"`
	Amount         *decimal.Decimal    `json:"amount,omitempty"`
	Reason         string              `json:"reason" binding:"required"`
	IdempotencyKey string              `json:"idempotency_key"`
}

// --- RefundService Interface ---
type RefundService interface {
	Refund(p models.Principal, branchID, orderID int64, req RefundRequest) (*models.Refund, error)
	ListRefunds(p models.Principal, branchID, orderID int64) ([]models.Refund, error)
}

// ComputeItemRefund derives the refund amount for a set of selected order
// item quantities. The selection's share of each tax line is prorated by the
// ratio of the selected subtotal to the order's items subtotal, and each tax
// component is rounded to currency precision independently before summing.
func ComputeItemRefund(order *models.Order, selected map[int64]int) (decimal.Decimal, error) {
	byID := make(map[int64]*models.OrderItem, len(order.Items))
	for i := range order.Items {
		byID[order.Items[i].ID] = &order.Items[i]
	}

	selectedSubtotal := decimal.Zero
	for itemID, qty := range selected {
		item, ok := byID[itemID]
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: order item %d", ErrOrderNotFound, itemID)
		}
		if qty <= 0 || qty > item.Quantity-item.RefundedQuantity {
			return decimal.Zero, fmt.Errorf("%w: item %d has %d refundable", ErrRefundQuantity, itemID, item.Quantity-item.RefundedQuantity)
		}
		selectedSubtotal = selectedSubtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
	}

	if order.Subtotal.IsZero() {
		return selectedSubtotal, nil
	}

	ratio := selectedSubtotal.Div(order.Subtotal)
	gstShare := order.TaxGST.Mul(ratio).Round(2)
	qstShare := order.TaxQST.Mul(ratio).Round(2)
	return selectedSubtotal.Add(gstShare).Add(qstShare), nil
}

// --- refundService Implementation ---
type refundService struct {
	orderRepo  repositories.OrderRepository
	tenantRepo repositories.TenantRepository
	processor  payments.RefundClient
	enqueuer   jobs.Enqueuer
}

// NewRefundService creates a new instance of RefundService.
func NewRefundService(
	or repositories.OrderRepository,
	tr repositories.TenantRepository,
	rc payments.RefundClient,
	eq jobs.Enqueuer,
) RefundService {
	return &refundService{orderRepo: or, tenantRepo: tr, processor: rc, enqueuer: eq}
}

// Refund validates the request, submits it to the payment processor, then
// records it. The processor goes first: if it declines or is unreachable
// nothing is persisted and the caller may retry with the same idempotency
// key. A crash between submission and persistence is reconciled by that same
// key on retry.
func (s *refundService) Refund(p models.Principal, branchID, orderID int64, req RefundRequest) (*models.Refund, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, wrapAccessErr(err)
	}
	if !payments.IsValidReason(req.Reason) {
		return nil, fmt.Errorf("%w: %q", ErrRefundInvalidReason, req.Reason)
	}
	hasItems := len(req.Items) > 0
	hasAmount := req.Amount != nil
	if hasItems == hasAmount {
		return nil, ErrRefundEmpty
	}

	order, err := s.orderRepo.GetOrder(orderID, branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order for refund: %w", err)
	}

	var (
		amount         decimal.Decimal
		itemQuantities map[int64]int
		processorItems []payments.RefundItem
	)
	if hasItems {
		itemQuantities = make(map[int64]int, len(req.Items))
		for _, ir := range req.Items {
			itemQuantities[ir.OrderItemID] += ir.Quantity
		}
		amount, err = ComputeItemRefund(order, itemQuantities)
		if err != nil {
			return nil, err
		}
		for i := range order.Items {
			if qty, ok := itemQuantities[order.Items[i].ID]; ok {
				processorItems = append(processorItems, payments.RefundItem{
					Description: order.Items[i].Name,
					Quantity:    qty,
				})
			}
		}
	} else {
		amount = req.Amount.Round(2)
		if !amount.IsPositive() {
			return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
		}
	}

	remaining := order.TotalAmount.Sub(order.TotalRefunded)
	if amount.GreaterThan(remaining) {
		return nil, fmt.Errorf("%w: %s requested, %s refundable", ErrRefundExceedsTotal, amount, remaining)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	} else if existing, err := s.orderRepo.GetRefundByIdempotencyKey(key); err == nil {
		return existing, nil
	}

	res, err := s.processor.Refund(context.Background(), payments.RefundRequest{
		OrderNumber:    order.OrderNumber,
		Amount:         amount,
		Reason:         req.Reason,
		IdempotencyKey: key,
		Items:          processorItems,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	// The processor already accepted this refund, so it is booked succeeded.
	refund := &models.Refund{
		OrderID:           order.ID,
		Amount:            amount,
		Reason:            req.Reason,
		IdempotencyKey:    key,
		Status:            models.RefundStatusSucceeded,
		ProcessorRefundID: &res.RefundID,
		CreatedBy:         &p.UserID,
	}
	for itemID, qty := range itemQuantities {
		refund.Items = append(refund.Items, models.RefundItem{OrderItemID: itemID, Quantity: qty})
	}

	if _, err := s.orderRepo.ApplyRefund(refund, itemQuantities); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			if existing, getErr := s.orderRepo.GetRefundByIdempotencyKey(key); getErr == nil {
				return existing, nil
			}
			return nil, ErrRefundAlreadyApplied
		}
		// The processor already accepted the refund; this must not be lost.
		utils.LogError(err, "Refund accepted by processor but not persisted; reconcile via idempotency key "+key)
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}

	s.enqueueNotification(order, refund)
	return refund, nil
}

func (s *refundService) enqueueNotification(order *models.Order, refund *models.Refund) {
	if s.enqueuer == nil {
		return
	}
	err := s.enqueuer.Enqueue(context.Background(), jobs.TypeRefundNotification, jobs.RefundNotificationPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		RefundID:    refund.ID,
		Amount:      refund.Amount,
		Reason:      refund.Reason,
	})
	if err != nil {
		utils.LogError(err, "Failed to enqueue refund notification")
	}
}

func (s *refundService) ListRefunds(p models.Principal, branchID, orderID int64) ([]models.Refund, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, wrapAccessErr(err)
	}
	if _, err := s.orderRepo.GetOrder(orderID, branchID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	refunds, err := s.orderRepo.ListRefunds(orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}
