package handlers

import (
	"errors"
	"net/http"

	"resto_platform_backend/internal/services"
	"resto_platform_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ClosingHandler holds the closing service.
type ClosingHandler struct {
	closingService services.ClosingService
}

// NewClosingHandler creates a new ClosingHandler.
func NewClosingHandler(cs services.ClosingService) *ClosingHandler {
	return &ClosingHandler{closingService: cs}
}

func respondClosingError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, services.ErrClosingNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Daily closing not found.", ""))
	case errors.Is(err, services.ErrClosingExists):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "A closing already exists for this date.", ""))
	case errors.Is(err, services.ErrClosingNotDraft):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Closing is no longer a draft.", err.Error()))
	case errors.Is(err, services.ErrClosingSubmitted):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadGateway, utils.ErrCodeUpstreamFailure, "Fiscal submission failed; the closing remains a draft.", err.Error()))
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
	default:
		utils.LogError(err, action)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Internal server error.", "Internal error"))
	}
}

// StartClosing opens a draft closing for one branch-day.
func (h *ClosingHandler) StartClosing(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	var req services.StartClosingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	closing, err := h.closingService.StartClosing(p, branchID, req)
	if err != nil {
		respondClosingError(c, err, "StartClosing: Error from closingService.StartClosing")
		return
	}
	c.JSON(http.StatusCreated, closing)
}

// GetClosing returns one closing. Drafts carry live aggregates.
func (h *ClosingHandler) GetClosing(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	closingID, ok := pathID(c, "closingID")
	if !ok {
		return
	}

	closing, err := h.closingService.GetClosing(p, branchID, closingID)
	if err != nil {
		respondClosingError(c, err, "GetClosing: Error from closingService.GetClosing")
		return
	}
	c.JSON(http.StatusOK, closing)
}

// ListClosings lists closings in a date range.
func (h *ClosingHandler) ListClosings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	from := c.DefaultQuery("from", "1970-01-01")
	to := c.DefaultQuery("to", "9999-12-31")

	closings, err := h.closingService.ListClosings(p, branchID, from, to)
	if err != nil {
		respondClosingError(c, err, "ListClosings: Error from closingService.ListClosings")
		return
	}
	c.JSON(http.StatusOK, closings)
}

// CompleteClosing submits the closing to the fiscal service and freezes it.
func (h *ClosingHandler) CompleteClosing(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	closingID, ok := pathID(c, "closingID")
	if !ok {
		return
	}

	closing, err := h.closingService.CompleteClosing(p, branchID, closingID)
	if err != nil {
		respondClosingError(c, err, "CompleteClosing: Error from closingService.CompleteClosing")
		return
	}
	c.JSON(http.StatusOK, closing)
}

// CancelClosing voids a draft closing with an audit-logged reason.
func (h *ClosingHandler) CancelClosing(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	closingID, ok := pathID(c, "closingID")
	if !ok {
		return
	}
	var req services.CancelClosingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	closing, err := h.closingService.CancelClosing(p, branchID, closingID, req)
	if err != nil {
		respondClosingError(c, err, "CancelClosing: Error from closingService.CancelClosing")
		return
	}
	c.JSON(http.StatusOK, closing)
}

// ListAuditEntries returns the audit trail of one closing.
func (h *ClosingHandler) ListAuditEntries(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	closingID, ok := pathID(c, "closingID")
	if !ok {
		return
	}

	entries, err := h.closingService.ListAuditEntries(p, branchID, closingID)
	if err != nil {
		respondClosingError(c, err, "ListAuditEntries: Error from closingService.ListAuditEntries")
		return
	}
	c.JSON(http.StatusOK, entries)
}
