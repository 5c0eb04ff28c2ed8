package services

import (
	"errors"
	"fmt"
	"time"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/repositories"
	"resto_platform_backend/pkg/utils"
)

// ErrReportRange marks an invalid or oversized report period.
var ErrReportRange = errors.New("invalid report date range")

// MaxReportDays caps the report period; longer ranges belong in offline
// exports, not an API call.
const MaxReportDays = 366

// --- ReportService Interface ---
type ReportService interface {
	// SalesSummary aggregates one branch over [from, to], both YYYY-MM-DD
	// inclusive. Rejected orders are excluded from sales; refunds are
	// reported separately and already netted out of net sales.
	SalesSummary(p models.Principal, branchID int64, from, to string) (*models.ClosingSummary, error)
	DailySummary(p models.Principal, branchID int64, date string) (*models.ClosingSummary, error)
}

type reportService struct {
	closingRepo repositories.ClosingRepository
	tenantRepo  repositories.TenantRepository
}

// NewReportService creates a new instance of ReportService.
func NewReportService(cr repositories.ClosingRepository, tr repositories.TenantRepository) ReportService {
	return &reportService{closingRepo: cr, tenantRepo: tr}
}

func parseReportDate(v string) (time.Time, error) {
	d, err := utils.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrReportRange, v)
	}
	return d, nil
}

func (s *reportService) SalesSummary(p models.Principal, branchID int64, from, to string) (*models.ClosingSummary, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapMenuAccessErr(err)
	}

	start, err := parseReportDate(from)
	if err != nil {
		return nil, err
	}
	end, err := parseReportDate(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: to precedes from", ErrReportRange)
	}
	if end.Sub(start) > MaxReportDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range exceeds %d days", ErrReportRange, MaxReportDays)
	}

	summary, err := s.closingRepo.AggregateRange(branchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales summary: %w", err)
	}
	return summary, nil
}

func (s *reportService) DailySummary(p models.Principal, branchID int64, date string) (*models.ClosingSummary, error) {
	return s.SalesSummary(p, branchID, date, date)
}
