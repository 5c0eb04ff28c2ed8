package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resto_platform_backend/internal/marketplace"
	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/repositories"
	"resto_platform_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// SyncWindow bounds how far back a marketplace pull reaches. Orders older
// than this were either synced already or are not worth importing.
const SyncWindow = 24 * time.Hour

// SyncService imports orders placed on third-party delivery marketplaces.
// Imported orders carry source=marketplace and are excluded from the
// auto-completion sweep; the marketplace owns their fulfillment.
type SyncService interface {
	SyncBranch(ctx context.Context, branchID int64, storeID string) (int, error)
}

type syncService struct {
	orderRepo   repositories.OrderRepository
	tenantRepo  repositories.TenantRepository
	marketplace marketplace.Client
}

// NewSyncService creates a new instance of SyncService.
func NewSyncService(or repositories.OrderRepository, tr repositories.TenantRepository, mc marketplace.Client) SyncService {
	return &syncService{orderRepo: or, tenantRepo: tr, marketplace: mc}
}

// SyncBranch pulls recent marketplace orders for one branch and inserts the
// ones not seen before. Deduplication rides on the unique order number
// derived from the marketplace's own id, so re-running a sync is harmless.
func (s *syncService) SyncBranch(ctx context.Context, branchID int64, storeID string) (int, error) {
	branch, err := s.tenantRepo.GetBranchByID(branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, ErrBranchNotFound
		}
		return 0, fmt.Errorf("failed to load branch %d: %w", branchID, err)
	}
	if !branch.IsActive {
		return 0, ErrBranchNotFound
	}

	since := time.Now().Add(-SyncWindow)
	external, err := s.marketplace.FetchOrders(ctx, storeID, since)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	imported := 0
	for _, ext := range external {
		order, items := convertExternalOrder(branchID, ext)
		if _, err := s.orderRepo.CreateOrderWithItems(order, items); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				continue
			}
			utils.LogError(err, fmt.Sprintf("Failed to import marketplace order %s", ext.ExternalID))
			continue
		}
		imported++
	}
	return imported, nil
}

// convertExternalOrder maps a marketplace order onto the internal shape. The
// marketplace's totals are taken as-is; its tax treatment is authoritative
// for orders it processed.
func convertExternalOrder(branchID int64, ext marketplace.ExternalOrder) (*models.Order, []models.OrderItem) {
	name := ext.CustomerName
	order := &models.Order{
		OrderNumber:   "MKT-" + ext.ExternalID,
		BranchID:      branchID,
		Status:        StatusPreparing,
		Source:        models.SourceMarketplace,
		OrderType:     models.OrderTypeDelivery,
		Subtotal:      ext.Subtotal,
		TaxGST:        ext.TaxGST,
		TaxQST:        ext.TaxQST,
		TotalAmount:   ext.Total,
		TotalRefunded: decimal.Zero,
		PaymentMethod: models.PaymentMethodOnline,
		PaymentStatus: models.PaymentStatusSucceeded,
		CreatedAt:     ext.PlacedAt,
	}
	if name != "" {
		order.CustomerName = &name
	}

	items := make([]models.OrderItem, 0, len(ext.Items))
	for _, ei := range ext.Items {
		items = append(items, models.OrderItem{
			Name:       ei.Name,
			UnitPrice:  ei.UnitPrice,
			Quantity:   ei.Quantity,
			TotalPrice: ei.UnitPrice.Mul(decimal.NewFromInt(int64(ei.Quantity))),
		})
	}
	return order, items
}
