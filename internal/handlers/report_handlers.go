package handlers

import (
	"errors"
	"net/http"
	"time"

	"resto_platform_backend/internal/services"
	"resto_platform_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ReportHandler holds the report service.
type ReportHandler struct {
	reportService services.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(rs services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: rs}
}

func respondReportError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, services.ErrReportRange):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
	case errors.Is(err, services.ErrBranchNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Branch not found.", ""))
	default:
		utils.LogError(err, action)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Internal server error.", "Internal error"))
	}
}

// SalesSummary aggregates sales, refunds and taxes over a date range.
func (h *ReportHandler) SalesSummary(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	today := time.Now().Format("2006-01-02")
	from := c.DefaultQuery("from", today)
	to := c.DefaultQuery("to", today)

	summary, err := h.reportService.SalesSummary(p, branchID, from, to)
	if err != nil {
		respondReportError(c, err, "SalesSummary: Error from reportService.SalesSummary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DailySummary aggregates one branch-day.
func (h *ReportHandler) DailySummary(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	date := c.DefaultQuery("date", time.Now().Format("2006-01-02"))

	summary, err := h.reportService.DailySummary(p, branchID, date)
	if err != nil {
		respondReportError(c, err, "DailySummary: Error from reportService.DailySummary")
		return
	}
	c.JSON(http.StatusOK, summary)
}
