package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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
	ErrOrderNotFound     = errors.New("order not found")
	ErrMenuItemNotFound  = errors.New("menu item not found or not available")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrOrderPaid         = errors.New("order payment already captured; items can no longer be edited")
	ErrBranchNotFound    = errors.New("branch not found")
)

// Order status constants.
const (
	StatusScheduled = "scheduled"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// transitionSources maps a target status onto the statuses it may be reached
// from. Completed is reachable straight from preparing for orders without a
// ready stage. Completed, rejected and cancelled are terminal.
var transitionSources = map[string][]string{
	StatusPreparing: {StatusScheduled},
	StatusReady:     {StatusPreparing},
	StatusCompleted: {StatusPreparing, StatusReady},
	StatusRejected:  {StatusScheduled, StatusPreparing},
	StatusCancelled: {StatusReady},
}

// AutoCompleteGrace is the fixed delay after an order's computed target
// completion time before the sweeper fires the automatic transition.
const AutoCompleteGrace = 10 * time.Minute

// Quebec sales tax rates applied to every order.
var (
	gstRate = decimal.NewFromFloat(0.05)
	qstRate = decimal.NewFromFloat(0.09975)
)

// --- Data Transfer Objects (DTOs) ---

// CreateOrderItemRequest is used for creating individual order items.
type CreateOrderItemRequest struct {
	MenuItemID int64 `json:"menu_item_id" binding:"required"`
	Quantity   int   `json:"quantity" binding:"required,gt=0"`
}

// CreateOrderRequest is used for creating a new order. Public channels (web,
// mobile) submit it unauthenticated; staff submit it with a token.
type CreateOrderRequest struct {
	Source        string                   `json:"source" binding:"required"`
	OrderType     string                   `json:"order_type" binding:"required"`
	PaymentMethod string                   `json:"payment_method" binding:"required"`
	PaymentStatus string                   `json:"payment_status"`
	CustomerName  *string                  `json:"customer_name"`
	CustomerPhone *string                  `json:"customer_phone"`
	ScheduledDate *string                  `json:"scheduled_date"` // YYYY-MM-DD, pre-orders
	ScheduledTime *string                  `json:"scheduled_time"` // HH:MM, pre-orders
	Notes         *string                  `json:"notes"`
	Items         []CreateOrderItemRequest `json:"items" binding:"required,dive"`
}

// EditOrderItemRequest changes one item's quantity before payment capture.
// Quantity 0 removes the item. Every edit lands in the append-only
// removed-items log.
type EditOrderItemRequest struct {
	OrderItemID int64   `json:"order_item_id" binding:"required"`
	Quantity    int     `json:"quantity"`
	Reason      *string `json:"reason"`
}

// AdjustTimingRequest changes the per-order preparation adjustment.
type AdjustTimingRequest struct {
	Minutes int `json:"minutes"`
}

// RejectResult reports a rejection together with the outcome of the
// compensating refund. A failed refund does not undo the rejection.
type RejectResult struct {
	Order        *models.Order `json:"order"`
	RefundIssued bool          `json:"refund_issued"`
	RefundError  string        `json:"refund_error,omitempty"`
}

// --- OrderService Interface ---
type OrderService interface {
	CreateOrder(branchID int64, req CreateOrderRequest) (*models.Order, error)
	GetOrder(p models.Principal, branchID, orderID int64) (*models.Order, error)
	GetOrders(p models.Principal, filters models.OrderFilters) ([]models.Order, int, error)
	ListItemChanges(p models.Principal, branchID, orderID int64) ([]models.RemovedItem, error)

	StartPreparing(p models.Principal, branchID, orderID int64) (*models.Order, error)
	MarkReady(p models.Principal, branchID, orderID int64) (*models.Order, error)
	CompleteOrder(p models.Principal, branchID, orderID int64) (*models.Order, error)
	RejectOrder(p models.Principal, branchID, orderID int64) (*RejectResult, error)
	CancelOrder(p models.Principal, branchID, orderID int64) (*models.Order, error)

	AdjustTiming(p models.Principal, branchID, orderID int64, req AdjustTimingRequest) (*models.Order, error)
	EditOrderItem(p models.Principal, branchID, orderID int64, req EditOrderItemRequest) (*models.Order, error)

	// SweepAutoComplete completes every order whose target completion time
	// plus the grace delay has elapsed, re-validating state server-side.
	SweepAutoComplete(now time.Time) (int, error)
}

// --- orderService Implementation ---
type orderService struct {
	orderRepo  repositories.OrderRepository
	menuRepo   repositories.MenuRepository
	tenantRepo repositories.TenantRepository
	refunds    payments.RefundClient
	enqueuer   jobs.Enqueuer
}

// NewOrderService creates a new instance of OrderService.
func NewOrderService(
	or repositories.OrderRepository,
	mr repositories.MenuRepository,
	tr repositories.TenantRepository,
	rc payments.RefundClient,
	eq jobs.Enqueuer,
) OrderService {
	return &orderService{
		orderRepo:  or,
		menuRepo:   mr,
		tenantRepo: tr,
		refunds:    rc,
		enqueuer:   eq,
	}
}

func isValidSource(source string) bool {
	switch source {
	case models.SourcePOS, models.SourceWeb, models.SourceMobile, models.SourceMarketplace:
		return true
	default:
		return false
	}
}

func isValidOrderType(orderType string) bool {
	switch orderType {
	case models.OrderTypeDineIn, models.OrderTypeTakeout, models.OrderTypeDelivery:
		return true
	default:
		return false
	}
}

// newOrderNumber produces a short human-quotable order reference.
func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

// computeTaxes derives the two jurisdictional tax lines from a subtotal,
// each rounded to currency precision independently.
func computeTaxes(subtotal decimal.Decimal) (gst, qst decimal.Decimal) {
	return subtotal.Mul(gstRate).Round(2), subtotal.Mul(qstRate).Round(2)
}

func (s *orderService) CreateOrder(branchID int64, req CreateOrderRequest) (*models.Order, error) {
	if !isValidSource(req.Source) {
		return nil, fmt.Errorf("%w: unknown source %q", ErrValidation, req.Source)
	}
	if !isValidOrderType(req.OrderType) {
		return nil, fmt.Errorf("%w: unknown order type %q", ErrValidation, req.OrderType)
	}
	if req.PaymentMethod != models.PaymentMethodOnline && req.PaymentMethod != models.PaymentMethodCounter {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	if (req.ScheduledDate == nil) != (req.ScheduledTime == nil) {
		return nil, fmt.Errorf("%w: scheduled_date and scheduled_time must be provided together", ErrValidation)
	}

	branch, err := s.tenantRepo.GetBranchByID(branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrBranchNotFound
		}
		return nil, fmt.Errorf("failed to load branch %d: %w", branchID, err)
	}
	if !branch.IsActive {
		return nil, ErrBranchNotFound
	}

	ids := make([]int64, 0, len(req.Items))
	for _, ir := range req.Items {
		if ir.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for item %d must be positive", ErrValidation, ir.MenuItemID)
		}
		ids = append(ids, ir.MenuItemID)
	}

	menuItems, err := s.menuRepo.GetItems(branchID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch menu items: %w", err)
	}
	byID := make(map[int64]models.MenuItem, len(menuItems))
	for _, mi := range menuItems {
		byID[mi.ID] = mi
	}

	subtotal := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(req.Items))
	for _, ir := range req.Items {
		mi, ok := byID[ir.MenuItemID]
		if !ok || !mi.IsActive {
			return nil, fmt.Errorf("%w: item %d", ErrMenuItemNotFound, ir.MenuItemID)
		}
		lineTotal := mi.Price.Mul(decimal.NewFromInt(int64(ir.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		// Snapshot the catalog entry onto the order line; later menu edits
		// must not rewrite historical orders.
		orderItems = append(orderItems, models.OrderItem{
			MenuItemID: mi.ID,
			Name:       mi.Name,
			UnitPrice:  mi.Price,
			Quantity:   ir.Quantity,
			TotalPrice: lineTotal,
			Variants:   mi.Variants,
			Modifiers:  mi.Modifiers,
		})
	}

	gst, qst := computeTaxes(subtotal)

	paymentStatus := req.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = models.PaymentStatusPending
	}

	order := &models.Order{
		OrderNumber:   newOrderNumber(),
		BranchID:      branchID,
		Status:        StatusScheduled,
		Source:        req.Source,
		OrderType:     req.OrderType,
		Subtotal:      subtotal,
		TaxGST:        gst,
		TaxQST:        qst,
		TotalAmount:   subtotal.Add(gst).Add(qst),
		TotalRefunded: decimal.Zero,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: paymentStatus,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
	}

	if _, err := s.orderRepo.CreateOrderWithItems(order, orderItems); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.enqueueConfirmation(order)
	return order, nil
}

// enqueueConfirmation is fire-and-forget; a broker outage must not block
// order taking.
func (s *orderService) enqueueConfirmation(order *models.Order) {
	if s.enqueuer == nil {
		return
	}
	payload := jobs.OrderConfirmationPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BranchID:    order.BranchID,
		TotalAmount: order.TotalAmount,
	}
	if order.CustomerName != nil {
		payload.CustomerName = *order.CustomerName
	}
	if order.CustomerPhone != nil {
		payload.CustomerPhone = *order.CustomerPhone
	}
	if err := s.enqueuer.Enqueue(context.Background(), jobs.TypeOrderConfirmation, payload); err != nil {
		utils.LogError(err, "Failed to enqueue order confirmation")
	}
}

func (s *orderService) GetOrder(p models.Principal, branchID, orderID int64) (*models.Order, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, wrapAccessErr(err)
	}
	order, err := s.orderRepo.GetOrder(orderID, branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (s *orderService) GetOrders(p models.Principal, filters models.OrderFilters) ([]models.Order, int, error) {
	branchID := p.BranchID
	if filters.BranchID != nil {
		branchID = *filters.BranchID
	}
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, 0, wrapAccessErr(err)
	}
	filters.BranchID = &branchID

	orders, totalCount, err := s.orderRepo.GetOrders(filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get orders: %w", err)
	}
	return orders, totalCount, nil
}

func (s *orderService) ListItemChanges(p models.Principal, branchID, orderID int64) ([]models.RemovedItem, error) {
	if _, err := s.GetOrder(p, branchID, orderID); err != nil {
		return nil, err
	}
	changes, err := s.orderRepo.ListItemChanges(orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list item changes: %w", err)
	}
	return changes, nil
}

// applyTransition runs one guarded state-machine step. The repository update
// only matches rows still in an allowed source status, so a concurrent
// transition loses cleanly and surfaces as ErrInvalidTransition.
func (s *orderService) applyTransition(p models.Principal, branchID, orderID int64, to string) (*models.Order, error) {
	allowedFrom, ok := transitionSources[to]
	if !ok {
		return nil, fmt.Errorf("%w: unknown target status %q", ErrInvalidTransition, to)
	}

	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, wrapAccessErr(err)
	}

	err := s.orderRepo.TransitionStatus(orderID, branchID, allowedFrom, to)
	if err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			order, getErr := s.orderRepo.GetOrder(orderID, branchID)
			if getErr != nil {
				return nil, ErrOrderNotFound
			}
			return nil, fmt.Errorf("%w: cannot move order from %q to %q", ErrInvalidTransition, order.Status, to)
		}
		return nil, fmt.Errorf("failed to transition order %d: %w", orderID, err)
	}

	return s.orderRepo.GetOrder(orderID, branchID)
}

func (s *orderService) StartPreparing(p models.Principal, branchID, orderID int64) (*models.Order, error) {
	return s.applyTransition(p, branchID, orderID, StatusPreparing)
}

func (s *orderService) MarkReady(p models.Principal, branchID, orderID int64) (*models.Order, error) {
	return s.applyTransition(p, branchID, orderID, StatusReady)
}

func (s *orderService) CompleteOrder(p models.Principal, branchID, orderID int64) (*models.Order, error) {
	return s.applyTransition(p, branchID, orderID, StatusCompleted)
}

func (s *orderService) CancelOrder(p models.Principal, branchID, orderID int64) (*models.Order, error) {
	// No automatic refund on cancellation; staff issue one manually.
	return s.applyTransition(p, branchID, orderID, StatusCancelled)
}

// RejectOrder transitions the order to rejected and, when an online payment
// was already captured, issues a full compensating refund. The refund is
// best-effort and at-most-once: its failure leaves the order rejected, and
// the per-order idempotency key stops a concurrent double-rejection from
// refunding twice.
func (s *orderService) RejectOrder(p models.Principal, branchID, orderID int64) (*RejectResult, error) {
	order, err := s.applyTransition(p, branchID, orderID, StatusRejected)
	if err != nil {
		return nil, err
	}

	result := &RejectResult{Order: order}
	if order.PaymentMethod != models.PaymentMethodOnline || order.PaymentStatus != models.PaymentStatusSucceeded {
		return result, nil
	}

	// Booked as pending first so a processor failure leaves a row the
	// closing aggregates can tell apart from a submitted refund.
	refund := &models.Refund{
		OrderID:        order.ID,
		Amount:         order.TotalAmount.Round(2),
		Reason:         payments.ReasonOrderChange,
		IdempotencyKey: "reject-" + order.OrderNumber,
		Status:         models.RefundStatusPending,
		CreatedBy:      &p.UserID,
	}

	if _, err := s.orderRepo.ApplyRefund(refund, nil); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			// A concurrent rejection already claimed the compensating refund.
			result.RefundIssued = true
			return result, nil
		}
		result.RefundError = err.Error()
		utils.LogError(err, "Compensating refund could not be recorded after rejection")
		s.enqueueRefundNotification(order, refund, err)
		return result, nil
	}

	res, err := s.refunds.Refund(context.Background(), payments.RefundRequest{
		OrderNumber:    order.OrderNumber,
		Amount:         refund.Amount,
		Reason:         refund.Reason,
		IdempotencyKey: refund.IdempotencyKey,
	})
	if err != nil {
		// The rejection stands; the failed submission is surfaced separately.
		result.RefundError = err.Error()
		utils.LogError(err, "Compensating refund submission failed after rejection")
		s.enqueueRefundNotification(order, refund, err)
		return result, nil
	}

	if err := s.orderRepo.SetRefundProcessorID(refund.ID, res.RefundID); err != nil {
		utils.LogError(err, "Failed to store processor refund id")
	}
	result.RefundIssued = true
	s.enqueueRefundNotification(order, refund, nil)
	return result, nil
}

func (s *orderService) enqueueRefundNotification(order *models.Order, refund *models.Refund, failure error) {
	if s.enqueuer == nil {
		return
	}
	payload := jobs.RefundNotificationPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		RefundID:    refund.ID,
		Amount:      refund.Amount,
		Reason:      refund.Reason,
	}
	if failure != nil {
		payload.Failed = true
		payload.Error = failure.Error()
	}
	if err := s.enqueuer.Enqueue(context.Background(), jobs.TypeRefundNotification, payload); err != nil {
		utils.LogError(err, "Failed to enqueue refund notification")
	}
}

func (s *orderService) AdjustTiming(p models.Principal, branchID, orderID int64, req AdjustTimingRequest) (*models.Order, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, wrapAccessErr(err)
	}
	if err := s.orderRepo.UpdateTimingAdjustment(orderID, branchID, req.Minutes); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to adjust order timing: %w", err)
	}
	return s.orderRepo.GetOrder(orderID, branchID)
}

// EditOrderItem applies a pre-payment quantity change (0 removes the item),
// logs it in the append-only removed-items table, and recomputes the order
// totals from the surviving lines.
func (s *orderService) EditOrderItem(p models.Principal, branchID, orderID int64, req EditOrderItemRequest) (*models.Order, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, wrapAccessErr(err)
	}
	if req.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}

	order, err := s.orderRepo.GetOrder(orderID, branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order for edit: %w", err)
	}
	if order.PaymentStatus == models.PaymentStatusSucceeded {
		return nil, ErrOrderPaid
	}
	if order.Status == StatusCompleted || order.Status == StatusRejected || order.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: order %q is terminal", ErrInvalidTransition, order.Status)
	}

	var target *models.OrderItem
	for i := range order.Items {
		if order.Items[i].ID == req.OrderItemID {
			target = &order.Items[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: order item %d", ErrOrderNotFound, req.OrderItemID)
	}
	if req.Quantity == target.Quantity {
		return nil, fmt.Errorf("%w: quantity unchanged", ErrValidation)
	}

	changeType := models.ChangeQuantityIncreased
	if req.Quantity == 0 {
		changeType = models.ChangeRemoved
	} else if req.Quantity < target.Quantity {
		changeType = models.ChangeQuantityDecreased
	}

	change := &models.RemovedItem{
		OrderID:        order.ID,
		OrderItemID:    target.ID,
		ChangeType:     changeType,
		QuantityBefore: target.Quantity,
		QuantityAfter:  req.Quantity,
		Reason:         req.Reason,
		StaffUserID:    &p.UserID,
	}

	target.Quantity = req.Quantity
	target.TotalPrice = target.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))

	subtotal := decimal.Zero
	for _, item := range order.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	gst, qst := computeTaxes(subtotal)
	totals := repositories.OrderTotals{
		Subtotal:    subtotal,
		TaxGST:      gst,
		TaxQST:      qst,
		TotalAmount: subtotal.Add(gst).Add(qst),
	}

	if err := s.orderRepo.ApplyItemEdit(order, target, change, totals); err != nil {
		return nil, fmt.Errorf("failed to apply item edit: %w", err)
	}
	return s.orderRepo.GetOrder(orderID, branchID)
}

func (s *orderService) SweepAutoComplete(now time.Time) (int, error) {
	due, err := s.orderRepo.ListDueAutoComplete(now, AutoCompleteGrace)
	if err != nil {
		return 0, fmt.Errorf("failed to list auto-complete candidates: %w", err)
	}

	completed := 0
	for _, order := range due {
		// Guarded update re-validates status; a staff transition racing the
		// sweeper simply wins.
		err := s.orderRepo.TransitionStatus(order.ID, order.BranchID, transitionSources[StatusCompleted], StatusCompleted)
		if err != nil {
			if errors.Is(err, repositories.ErrStaleState) {
				continue
			}
			return completed, fmt.Errorf("failed to auto-complete order %d: %w", order.ID, err)
		}
		completed++
	}
	return completed, nil
}

// wrapAccessErr maps repository access failures onto service sentinels.
func wrapAccessErr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrOrderNotFound
	}
	return err
}
