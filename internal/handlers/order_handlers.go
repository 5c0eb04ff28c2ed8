package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/services"
	"resto_platform_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// OrderHandler holds the order and refund services.
type OrderHandler struct {
	orderService  services.OrderService
	refundService services.RefundService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(os services.OrderService, rs services.RefundService) *OrderHandler {
	return &OrderHandler{orderService: os, refundService: rs}
}

func respondOrderError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, services.ErrBranchNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Order not found.", err.Error()))
	case errors.Is(err, services.ErrMenuItemNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "One or more menu items not found or unavailable.", err.Error()))
	case errors.Is(err, services.ErrInvalidTransition):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Order is not in a state that allows this operation.", err.Error()))
	case errors.Is(err, services.ErrOrderPaid):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Order payment already captured; items can no longer be edited.", ""))
	case errors.Is(err, services.ErrRefundExceedsTotal), errors.Is(err, services.ErrRefundQuantity):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, err.Error(), ""))
	case errors.Is(err, services.ErrRefundEmpty), errors.Is(err, services.ErrRefundInvalidReason), errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
	case errors.Is(err, services.ErrUpstreamFailure):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadGateway, utils.ErrCodeUpstreamFailure, "Payment processor request failed; nothing was recorded.", err.Error()))
	default:
		utils.LogError(err, action)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Internal server error.", "Internal error"))
	}
}

// CreatePublicOrder handles unauthenticated order creation from the web and
// mobile ordering surfaces.
func (h *OrderHandler) CreatePublicOrder(c *gin.Context) {
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	if req.Source == models.SourcePOS || req.Source == models.SourceMarketplace {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "This channel only accepts web and mobile orders.", req.Source))
		return
	}

	order, err := h.orderService.CreateOrder(branchID, req)
	if err != nil {
		respondOrderError(c, err, "CreatePublicOrder: Error from orderService.CreateOrder")
		return
	}
	c.JSON(http.StatusCreated, order)
}

// CreateOrder handles staff order creation from the POS.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	if _, ok := principal(c); !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(branchID, req)
	if err != nil {
		respondOrderError(c, err, "CreateOrder: Error from orderService.CreateOrder")
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrder returns one order with its items.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(p, branchID, orderID)
	if err != nil {
		respondOrderError(c, err, "GetOrder: Error from orderService.GetOrder")
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrders handles fetching orders with filters and pagination.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}

	var filters models.OrderFilters
	filters.BranchID = &branchID
	if status := c.Query("status"); status != "" {
		filters.Status = &status
	}
	if source := c.Query("source"); source != "" {
		filters.Source = &source
	}
	if date := c.Query("date"); date != "" {
		filters.Date = &date
	}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	orders, totalCount, err := h.orderService.GetOrders(p, filters)
	if err != nil {
		respondOrderError(c, err, "GetOrders: Error from orderService.GetOrders")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":      orders,
		"total_count": totalCount,
		"page":        filters.Page,
		"page_size":   filters.PageSize,
	})
}

// transition runs one state-machine step shared by the status endpoints.
func (h *OrderHandler) transition(c *gin.Context, apply func(p models.Principal, branchID, orderID int64) (*models.Order, error), action string) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}

	order, err := apply(p, branchID, orderID)
	if err != nil {
		respondOrderError(c, err, action)
		return
	}
	c.JSON(http.StatusOK, order)
}

// StartPreparing moves a scheduled order into preparation.
func (h *OrderHandler) StartPreparing(c *gin.Context) {
	h.transition(c, h.orderService.StartPreparing, "StartPreparing: Error from orderService.StartPreparing")
}

// MarkReady marks a preparing order ready for pickup or delivery.
func (h *OrderHandler) MarkReady(c *gin.Context) {
	h.transition(c, h.orderService.MarkReady, "MarkReady: Error from orderService.MarkReady")
}

// CompleteOrder closes the order.
func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	h.transition(c, h.orderService.CompleteOrder, "CompleteOrder: Error from orderService.CompleteOrder")
}

// CancelOrder cancels a ready order without an automatic refund.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	h.transition(c, h.orderService.CancelOrder, "CancelOrder: Error from orderService.CancelOrder")
}

// RejectOrder rejects the order and, for captured online payments, issues a
// full compensating refund. The refund outcome is reported alongside the
// rejected order.
func (h *OrderHandler) RejectOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}

	result, err := h.orderService.RejectOrder(p, branchID, orderID)
	if err != nil {
		respondOrderError(c, err, "RejectOrder: Error from orderService.RejectOrder")
		return
	}
	c.JSON(http.StatusOK, result)
}

// AdjustTiming changes the per-order preparation adjustment.
func (h *OrderHandler) AdjustTiming(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}
	var req services.AdjustTimingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	order, err := h.orderService.AdjustTiming(p, branchID, orderID, req)
	if err != nil {
		respondOrderError(c, err, "AdjustTiming: Error from orderService.AdjustTiming")
		return
	}
	c.JSON(http.StatusOK, order)
}

// EditOrderItem changes an item quantity before payment capture.
func (h *OrderHandler) EditOrderItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}
	var req services.EditOrderItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	order, err := h.orderService.EditOrderItem(p, branchID, orderID, req)
	if err != nil {
		respondOrderError(c, err, "EditOrderItem: Error from orderService.EditOrderItem")
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListItemChanges returns the append-only edit log of one order.
func (h *OrderHandler) ListItemChanges(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}

	changes, err := h.orderService.ListItemChanges(p, branchID, orderID)
	if err != nil {
		respondOrderError(c, err, "ListItemChanges: Error from orderService.ListItemChanges")
		return
	}
	c.JSON(http.StatusOK, changes)
}

// CreateRefund issues a manual refund against the order.
func (h *OrderHandler) CreateRefund(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}
	var req services.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	refund, err := h.refundService.Refund(p, branchID, orderID, req)
	if err != nil {
		respondOrderError(c, err, "CreateRefund: Error from refundService.Refund")
		return
	}
	c.JSON(http.StatusCreated, refund)
}

// ListRefunds returns every refund recorded against the order.
func (h *OrderHandler) ListRefunds(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}

	refunds, err := h.refundService.ListRefunds(p, branchID, orderID)
	if err != nil {
		respondOrderError(c, err, "ListRefunds: Error from refundService.ListRefunds")
		return
	}
	c.JSON(http.StatusOK, refunds)
}
