package services

import (
	"context"
	"errors"
	"fmt"

	"resto_platform_backend/internal/jobs"
	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/repositories"
	"resto_platform_backend/internal/websrm"
	"resto_platform_backend/pkg/utils"

	"github.com/google/uuid"
)

// Custom Errors
var (
	ErrClosingNotFound  = errors.New("daily closing not found")
	ErrClosingExists    = errors.New("an open or completed closing already exists for this date")
	ErrClosingNotDraft  = errors.New("closing is no longer a draft")
	ErrClosingSubmitted = errors.New("fiscal submission failed; closing remains a draft")
)

// --- Data Transfer Objects (DTOs) ---

// StartClosingRequest opens a draft closing for one branch-day.
type StartClosingRequest struct {
	ClosingDate string `json:"closing_date" binding:"required"` // YYYY-MM-DD
}

// CancelClosingRequest voids a draft closing. The reason lands in the
// compliance audit log.
type CancelClosingRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// --- ClosingService Interface ---
type ClosingService interface {
	StartClosing(p models.Principal, branchID int64, req StartClosingRequest) (*models.DailyClosing, error)
	GetClosing(p models.Principal, branchID, closingID int64) (*models.DailyClosing, error)
	ListClosings(p models.Principal, branchID int64, from, to string) ([]models.DailyClosing, error)
	CompleteClosing(p models.Principal, branchID, closingID int64) (*models.DailyClosing, error)
	CancelClosing(p models.Principal, branchID, closingID int64, req CancelClosingRequest) (*models.DailyClosing, error)
	ListAuditEntries(p models.Principal, branchID, closingID int64) ([]models.AuditLogEntry, error)
}

// --- closingService Implementation ---
type closingService struct {
	closingRepo repositories.ClosingRepository
	tenantRepo  repositories.TenantRepository
	fiscal      websrm.Client
	enqueuer    jobs.Enqueuer
}

// NewClosingService creates a new instance of ClosingService.
func NewClosingService(
	cr repositories.ClosingRepository,
	tr repositories.TenantRepository,
	fc websrm.Client,
	eq jobs.Enqueuer,
) ClosingService {
	return &closingService{closingRepo: cr, tenantRepo: tr, fiscal: fc, enqueuer: eq}
}

func (s *closingService) StartClosing(p models.Principal, branchID int64, req StartClosingRequest) (*models.DailyClosing, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapClosingAccessErr(err)
	}
	if _, err := utils.ParseDate(req.ClosingDate); err != nil {
		return nil, fmt.Errorf("%w: closing_date must be YYYY-MM-DD", ErrValidation)
	}

	closing := &models.DailyClosing{
		BranchID:    branchID,
		ClosingDate: req.ClosingDate,
		Status:      models.ClosingStatusDraft,
		CreatedBy:   p.UserID,
	}
	id, err := s.closingRepo.CreateDraft(closing)
	if err != nil {
		// The partial unique index is the arbiter under concurrent starts.
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrClosingExists
		}
		return nil, fmt.Errorf("failed to create closing draft: %w", err)
	}
	closing.ID = id
	return s.withSummary(closing)
}

// withSummary attaches the live branch-day aggregates to a draft closing.
// Completed closings carry their frozen aggregates and are returned as-is.
func (s *closingService) withSummary(closing *models.DailyClosing) (*models.DailyClosing, error) {
	if closing.Status != models.ClosingStatusDraft {
		return closing, nil
	}
	summary, err := s.closingRepo.Aggregate(closing.BranchID, closing.ClosingDate)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate closing %d: %w", closing.ID, err)
	}
	closing.GrossSales = summary.GrossSales
	closing.TotalRefunds = summary.TotalRefunds
	closing.TaxGST = summary.TaxGST
	closing.TaxQST = summary.TaxQST
	closing.NetSales = summary.NetSales
	closing.OrderCount = summary.OrderCount
	closing.PaymentChannels = summary.PaymentChannels
	return closing, nil
}

func (s *closingService) GetClosing(p models.Principal, branchID, closingID int64) (*models.DailyClosing, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapClosingAccessErr(err)
	}
	closing, err := s.closingRepo.GetClosing(closingID, branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrClosingNotFound
		}
		return nil, fmt.Errorf("failed to get closing: %w", err)
	}
	return s.withSummary(closing)
}

func (s *closingService) ListClosings(p models.Principal, branchID int64, from, to string) ([]models.DailyClosing, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapClosingAccessErr(err)
	}
	closings, err := s.closingRepo.ListClosings(branchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list closings: %w", err)
	}
	return closings, nil
}

// CompleteClosing submits the branch-day summary to the fiscal service and
// only then freezes the closing. The ordering guarantees a completed closing
// always has a fiscal transaction id; a submission failure leaves the draft
// untouched for the operator to retry.
func (s *closingService) CompleteClosing(p models.Principal, branchID, closingID int64) (*models.DailyClosing, error) {
	branch, err := requireBranchAccess(s.tenantRepo, p, branchID)
	if err != nil {
		return nil, mapClosingAccessErr(err)
	}

	closing, err := s.closingRepo.GetClosing(closingID, branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrClosingNotFound
		}
		return nil, fmt.Errorf("failed to get closing: %w", err)
	}
	if closing.Status != models.ClosingStatusDraft {
		return nil, fmt.Errorf("%w: status is %q", ErrClosingNotDraft, closing.Status)
	}

	if branch.GSTNumber == nil || branch.QSTNumber == nil {
		return nil, fmt.Errorf("%w: branch is missing its GST/QST registration numbers", ErrValidation)
	}

	summary, err := s.closingRepo.Aggregate(branchID, closing.ClosingDate)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate closing %d: %w", closingID, err)
	}

	tx := websrm.ClosingTransaction{
		BranchID:     branchID,
		GSTNumber:    *branch.GSTNumber,
		QSTNumber:    *branch.QSTNumber,
		ClosingDate:  closing.ClosingDate,
		GrossSales:   summary.GrossSales,
		TotalRefunds: summary.TotalRefunds,
		TaxGST:       summary.TaxGST,
		TaxQST:       summary.TaxQST,
		NetSales:     summary.NetSales,
		OrderCount:   summary.OrderCount,
	}
	fiscalTxID, err := s.fiscal.SubmitClosing(context.Background(), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClosingSubmitted, err)
	}

	if err := s.closingRepo.MarkCompleted(closingID, branchID, summary, fiscalTxID); err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, fmt.Errorf("%w: closing changed while submitting", ErrClosingNotDraft)
		}
		// The fiscal side holds a transaction this row does not reference.
		utils.LogError(err, fmt.Sprintf("Closing %d submitted as fiscal tx %s but not marked completed", closingID, fiscalTxID))
		return nil, fmt.Errorf("failed to mark closing completed: %w", err)
	}

	completed, err := s.closingRepo.GetClosing(closingID, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload closing: %w", err)
	}
	s.enqueueReceipt(completed, fiscalTxID)
	return completed, nil
}

func (s *closingService) enqueueReceipt(closing *models.DailyClosing, fiscalTxID string) {
	if s.enqueuer == nil {
		return
	}
	err := s.enqueuer.Enqueue(context.Background(), jobs.TypeClosingReceipt, jobs.ClosingReceiptPayload{
		ClosingID:   closing.ID,
		BranchID:    closing.BranchID,
		ClosingDate: closing.ClosingDate,
		FiscalTxID:  fiscalTxID,
	})
	if err != nil {
		utils.LogError(err, "Failed to enqueue closing receipt")
	}
}

// CancelClosing voids a draft. Completed closings are immutable; correcting
// one means filing an amended fiscal transaction, which is out of band.
func (s *closingService) CancelClosing(p models.Principal, branchID, closingID int64, req CancelClosingRequest) (*models.DailyClosing, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapClosingAccessErr(err)
	}
	if utils.IsEmpty(req.Reason) {
		return nil, fmt.Errorf("%w: a cancellation reason is required", ErrValidation)
	}

	reason := req.Reason
	entry := &models.AuditLogEntry{
		ID:         uuid.NewString(),
		BranchID:   branchID,
		Action:     "closing_cancelled",
		EntityType: "daily_closing",
		EntityID:   closingID,
		UserID:     p.UserID,
		Reason:     &reason,
	}

	if err := s.closingRepo.MarkCancelled(closingID, branchID, &reason, entry); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, ErrClosingNotFound
		case errors.Is(err, repositories.ErrStaleState):
			return nil, fmt.Errorf("%w: only drafts can be cancelled", ErrClosingNotDraft)
		}
		return nil, fmt.Errorf("failed to cancel closing: %w", err)
	}
	return s.closingRepo.GetClosing(closingID, branchID)
}

func (s *closingService) ListAuditEntries(p models.Principal, branchID, closingID int64) ([]models.AuditLogEntry, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapClosingAccessErr(err)
	}
	entries, err := s.closingRepo.ListAuditEntries(branchID, "daily_closing", closingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

func mapClosingAccessErr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrClosingNotFound
	}
	return err
}
