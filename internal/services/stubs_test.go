package services

import (
	"context"
	"fmt"
	"time"

	"resto_platform_backend/internal/marketplace"
	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/payments"
	"resto_platform_backend/internal/repositories"
	"resto_platform_backend/internal/websrm"

	"github.com/shopspring/decimal"
)

// In-memory repository fakes. They reproduce the repositories' guarded-update
// semantics closely enough that the services' concurrency handling is
// observable from tests.

type stubTenantRepo struct {
	chains   map[int64]*models.Chain
	branches map[int64]*models.Branch
	users    map[int64][]models.BranchUser
}

func newStubTenantRepo() *stubTenantRepo {
	return &stubTenantRepo{
		chains:   map[int64]*models.Chain{},
		branches: map[int64]*models.Branch{},
		users:    map[int64][]models.BranchUser{},
	}
}

func (r *stubTenantRepo) addBranch(b models.Branch) {
	r.branches[b.ID] = &b
}

func (r *stubTenantRepo) CreateChain(_ repositories.SQLExecutor, chain *models.Chain) (int64, error) {
	chain.ID = int64(len(r.chains) + 1)
	r.chains[chain.ID] = chain
	return chain.ID, nil
}

func (r *stubTenantRepo) GetChainByID(chainID int64) (*models.Chain, error) {
	c, ok := r.chains[chainID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return c, nil
}

func (r *stubTenantRepo) GetChainByOwner(userID int64) (*models.Chain, error) {
	for _, c := range r.chains {
		if c.OwnerUserID == userID {
			return c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *stubTenantRepo) CreateBranch(_ repositories.SQLExecutor, branch *models.Branch) (int64, error) {
	branch.ID = int64(len(r.branches) + 1)
	r.branches[branch.ID] = branch
	return branch.ID, nil
}

func (r *stubTenantRepo) GetBranch(branchID, chainID int64) (*models.Branch, error) {
	b, ok := r.branches[branchID]
	if !ok || b.ChainID != chainID {
		return nil, repositories.ErrNotFound
	}
	return b, nil
}

func (r *stubTenantRepo) GetBranchByID(branchID int64) (*models.Branch, error) {
	b, ok := r.branches[branchID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return b, nil
}

func (r *stubTenantRepo) ListBranches(chainID int64) ([]models.Branch, error) {
	var out []models.Branch
	for _, b := range r.branches {
		if b.ChainID == chainID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *stubTenantRepo) UpdateBranch(_ repositories.SQLExecutor, branch *models.Branch) error {
	if _, ok := r.branches[branch.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.branches[branch.ID] = branch
	return nil
}

func (r *stubTenantRepo) UpdateBranchTiming(branchID, chainID int64, base, temp int, auto bool) error {
	b, ok := r.branches[branchID]
	if !ok || b.ChainID != chainID {
		return repositories.ErrNotFound
	}
	b.BasePrepMinutes = base
	b.TempPrepAdjustment = temp
	b.AutoCompleteEnabled = auto
	return nil
}

func (r *stubTenantRepo) AssignBranchUser(_ repositories.SQLExecutor, bu *models.BranchUser) (int64, error) {
	bu.ID = int64(len(r.users[bu.BranchID]) + 1)
	r.users[bu.BranchID] = append(r.users[bu.BranchID], *bu)
	return bu.ID, nil
}

func (r *stubTenantRepo) ListBranchUsers(branchID int64) ([]models.BranchUser, error) {
	return r.users[branchID], nil
}

func (r *stubTenantRepo) RemoveBranchUser(branchID, userID int64) error {
	list := r.users[branchID]
	for i, bu := range list {
		if bu.UserID == userID {
			r.users[branchID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

type stubOrderRepo struct {
	orders     map[int64]*models.Order
	refunds    []*models.Refund
	changes    []models.RemovedItem
	nextID     int64
	due        []models.Order
	refundByID map[string]*models.Refund
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		orders:     map[int64]*models.Order{},
		refundByID: map[string]*models.Refund{},
		nextID:     1,
	}
}

func (r *stubOrderRepo) addOrder(o models.Order) *models.Order {
	if o.ID == 0 {
		o.ID = r.nextID
	}
	r.nextID = o.ID + 1
	r.orders[o.ID] = &o
	return &o
}

func (r *stubOrderRepo) CreateOrderWithItems(order *models.Order, items []models.OrderItem) (int64, error) {
	for _, existing := range r.orders {
		if existing.OrderNumber == order.OrderNumber {
			return 0, repositories.ErrDuplicateKey
		}
	}
	order.ID = r.nextID
	r.nextID++
	for i := range items {
		items[i].ID = r.nextID
		r.nextID++
		items[i].OrderID = order.ID
	}
	order.Items = items
	r.orders[order.ID] = order
	return order.ID, nil
}

func (r *stubOrderRepo) GetOrder(orderID, branchID int64) (*models.Order, error) {
	o, ok := r.orders[orderID]
	if !ok || o.BranchID != branchID {
		return nil, repositories.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (r *stubOrderRepo) GetOrders(filters models.OrderFilters) ([]models.Order, int, error) {
	var out []models.Order
	for _, o := range r.orders {
		if filters.BranchID != nil && o.BranchID != *filters.BranchID {
			continue
		}
		if filters.Status != nil && o.Status != *filters.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (r *stubOrderRepo) GetOrderItems(orderID int64) ([]models.OrderItem, error) {
	o, ok := r.orders[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return o.Items, nil
}

func (r *stubOrderRepo) TransitionStatus(orderID, branchID int64, allowedFrom []string, to string) error {
	o, ok := r.orders[orderID]
	if !ok || o.BranchID != branchID {
		return repositories.ErrStaleState
	}
	for _, from := range allowedFrom {
		if o.Status == from {
			o.Status = to
			return nil
		}
	}
	return repositories.ErrStaleState
}

func (r *stubOrderRepo) UpdateTimingAdjustment(orderID, branchID int64, minutes int) error {
	o, ok := r.orders[orderID]
	if !ok || o.BranchID != branchID {
		return repositories.ErrNotFound
	}
	o.TimingAdjustmentMin = minutes
	return nil
}

func (r *stubOrderRepo) UpdatePaymentStatus(orderNumber, status string) error {
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			o.PaymentStatus = status
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (r *stubOrderRepo) ApplyItemEdit(order *models.Order, item *models.OrderItem, change *models.RemovedItem, totals repositories.OrderTotals) error {
	o, ok := r.orders[order.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == item.ID {
			o.Items[i].Quantity = item.Quantity
			o.Items[i].TotalPrice = item.TotalPrice
		}
	}
	o.Subtotal = totals.Subtotal
	o.TaxGST = totals.TaxGST
	o.TaxQST = totals.TaxQST
	o.TotalAmount = totals.TotalAmount
	change.ID = r.nextID
	r.nextID++
	r.changes = append(r.changes, *change)
	return nil
}

func (r *stubOrderRepo) ListItemChanges(orderID int64) ([]models.RemovedItem, error) {
	var out []models.RemovedItem
	for _, c := range r.changes {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubOrderRepo) ApplyRefund(refund *models.Refund, itemQuantities map[int64]int) (int64, error) {
	if _, exists := r.refundByID[refund.IdempotencyKey]; exists {
		return 0, repositories.ErrDuplicateKey
	}
	o, ok := r.orders[refund.OrderID]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	if o.TotalRefunded.Add(refund.Amount).GreaterThan(o.TotalAmount) {
		return 0, fmt.Errorf("%w: refund exceeds total", repositories.ErrDatabaseError)
	}
	for itemID, qty := range itemQuantities {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				if o.Items[i].RefundedQuantity+qty > o.Items[i].Quantity {
					return 0, fmt.Errorf("%w: refunded quantity exceeds quantity", repositories.ErrDatabaseError)
				}
				o.Items[i].RefundedQuantity += qty
			}
		}
	}
	o.TotalRefunded = o.TotalRefunded.Add(refund.Amount)
	if refund.Status == "" {
		refund.Status = models.RefundStatusSucceeded
	}
	refund.ID = r.nextID
	r.nextID++
	r.refunds = append(r.refunds, refund)
	r.refundByID[refund.IdempotencyKey] = refund
	return refund.ID, nil
}

func (r *stubOrderRepo) SetRefundProcessorID(refundID int64, processorRefundID string) error {
	for _, ref := range r.refunds {
		if ref.ID == refundID {
			ref.ProcessorRefundID = &processorRefundID
			ref.Status = models.RefundStatusSucceeded
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (r *stubOrderRepo) GetRefundByIdempotencyKey(key string) (*models.Refund, error) {
	ref, ok := r.refundByID[key]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return ref, nil
}

func (r *stubOrderRepo) ListRefunds(orderID int64) ([]models.Refund, error) {
	var out []models.Refund
	for _, ref := range r.refunds {
		if ref.OrderID == orderID {
			out = append(out, *ref)
		}
	}
	return out, nil
}

func (r *stubOrderRepo) ListDueAutoComplete(now time.Time, grace time.Duration) ([]models.Order, error) {
	return r.due, nil
}

type stubMenuRepo struct {
	categories map[int64]*models.MenuCategory
	items      map[int64]*models.MenuItem
	nextID     int64
}

func newStubMenuRepo() *stubMenuRepo {
	return &stubMenuRepo{
		categories: map[int64]*models.MenuCategory{},
		items:      map[int64]*models.MenuItem{},
		nextID:     1,
	}
}

func (r *stubMenuRepo) addItem(item models.MenuItem) {
	r.items[item.ID] = &item
}

func (r *stubMenuRepo) CreateCategory(_ repositories.SQLExecutor, c *models.MenuCategory) (int64, error) {
	c.ID = r.nextID
	r.nextID++
	r.categories[c.ID] = c
	return c.ID, nil
}

func (r *stubMenuRepo) GetCategory(categoryID, branchID int64) (*models.MenuCategory, error) {
	c, ok := r.categories[categoryID]
	if !ok || c.BranchID != branchID {
		return nil, repositories.ErrNotFound
	}
	return c, nil
}

func (r *stubMenuRepo) ListCategories(branchID int64, activeOnly bool) ([]models.MenuCategory, error) {
	var out []models.MenuCategory
	for _, c := range r.categories {
		if c.BranchID != branchID || (activeOnly && !c.IsActive) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *stubMenuRepo) UpdateCategory(_ repositories.SQLExecutor, c *models.MenuCategory) error {
	if _, ok := r.categories[c.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.categories[c.ID] = c
	return nil
}

func (r *stubMenuRepo) SetCategoriesActive(_ repositories.SQLExecutor, branchID int64, ids []int64, active bool) error {
	for _, id := range ids {
		if c, ok := r.categories[id]; ok && c.BranchID == branchID {
			c.IsActive = active
		}
	}
	return nil
}

func (r *stubMenuRepo) CreateItem(_ repositories.SQLExecutor, item *models.MenuItem) (int64, error) {
	item.ID = r.nextID
	r.nextID++
	r.items[item.ID] = item
	return item.ID, nil
}

func (r *stubMenuRepo) GetItem(itemID, branchID int64) (*models.MenuItem, error) {
	item, ok := r.items[itemID]
	if !ok || item.BranchID != branchID {
		return nil, repositories.ErrNotFound
	}
	return item, nil
}

func (r *stubMenuRepo) GetItems(branchID int64, itemIDs []int64) ([]models.MenuItem, error) {
	var out []models.MenuItem
	for _, id := range itemIDs {
		if item, ok := r.items[id]; ok && item.BranchID == branchID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (r *stubMenuRepo) ListItems(branchID int64, filters models.MenuFilters) ([]models.MenuItem, error) {
	var out []models.MenuItem
	for _, item := range r.items {
		if item.BranchID != branchID {
			continue
		}
		if filters.ActiveOnly && !item.IsActive {
			continue
		}
		if filters.CategoryID != nil && item.CategoryID != *filters.CategoryID {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (r *stubMenuRepo) UpdateItem(_ repositories.SQLExecutor, item *models.MenuItem) error {
	if _, ok := r.items[item.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.items[item.ID] = item
	return nil
}

func (r *stubMenuRepo) SetItemsActive(_ repositories.SQLExecutor, branchID int64, ids []int64, active bool) error {
	for _, id := range ids {
		if item, ok := r.items[id]; ok && item.BranchID == branchID {
			item.IsActive = active
		}
	}
	return nil
}

func (r *stubMenuRepo) DeactivateCatalog(_ repositories.SQLExecutor, branchID int64) error {
	for _, c := range r.categories {
		if c.BranchID == branchID {
			c.IsActive = false
		}
	}
	for _, item := range r.items {
		if item.BranchID == branchID {
			item.IsActive = false
		}
	}
	return nil
}

func (r *stubMenuRepo) ActivateCatalog(_ repositories.SQLExecutor, branchID int64) error {
	for _, c := range r.categories {
		if c.BranchID == branchID {
			c.IsActive = true
		}
	}
	for _, item := range r.items {
		if item.BranchID == branchID {
			item.IsActive = true
		}
	}
	return nil
}

func (r *stubMenuRepo) ActiveCatalogIDs(branchID int64) ([]int64, []int64, error) {
	var categoryIDs, itemIDs []int64
	for _, c := range r.categories {
		if c.BranchID == branchID && c.IsActive {
			categoryIDs = append(categoryIDs, c.ID)
		}
	}
	for _, item := range r.items {
		if item.BranchID == branchID && item.IsActive {
			itemIDs = append(itemIDs, item.ID)
		}
	}
	return categoryIDs, itemIDs, nil
}

type stubClosingRepo struct {
	closings map[int64]*models.DailyClosing
	audit    []models.AuditLogEntry
	summary  *models.ClosingSummary
	nextID   int64
}

func newStubClosingRepo() *stubClosingRepo {
	return &stubClosingRepo{
		closings: map[int64]*models.DailyClosing{},
		summary:  &models.ClosingSummary{},
		nextID:   1,
	}
}

func (r *stubClosingRepo) CreateDraft(c *models.DailyClosing) (int64, error) {
	for _, existing := range r.closings {
		if existing.BranchID == c.BranchID && existing.ClosingDate == c.ClosingDate && existing.Status != models.ClosingStatusCancelled {
			return 0, repositories.ErrDuplicateKey
		}
	}
	c.ID = r.nextID
	r.nextID++
	r.closings[c.ID] = c
	return c.ID, nil
}

func (r *stubClosingRepo) GetClosing(closingID, branchID int64) (*models.DailyClosing, error) {
	c, ok := r.closings[closingID]
	if !ok || c.BranchID != branchID {
		return nil, repositories.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *stubClosingRepo) GetActiveForDate(branchID int64, date string) (*models.DailyClosing, error) {
	for _, c := range r.closings {
		if c.BranchID == branchID && c.ClosingDate == date && c.Status != models.ClosingStatusCancelled {
			return c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *stubClosingRepo) ListClosings(branchID int64, from, to string) ([]models.DailyClosing, error) {
	var out []models.DailyClosing
	for _, c := range r.closings {
		if c.BranchID == branchID && c.ClosingDate >= from && c.ClosingDate <= to {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *stubClosingRepo) Aggregate(branchID int64, date string) (*models.ClosingSummary, error) {
	s := *r.summary
	s.BranchID = branchID
	s.Date = date
	return &s, nil
}

func (r *stubClosingRepo) AggregateRange(branchID int64, from, to string) (*models.ClosingSummary, error) {
	return r.Aggregate(branchID, from)
}

func (r *stubClosingRepo) MarkCompleted(closingID, branchID int64, summary *models.ClosingSummary, fiscalTxID string) error {
	c, ok := r.closings[closingID]
	if !ok || c.BranchID != branchID {
		return repositories.ErrNotFound
	}
	if c.Status != models.ClosingStatusDraft {
		return repositories.ErrStaleState
	}
	now := time.Now()
	c.Status = models.ClosingStatusCompleted
	c.GrossSales = summary.GrossSales
	c.TotalRefunds = summary.TotalRefunds
	c.TaxGST = summary.TaxGST
	c.TaxQST = summary.TaxQST
	c.NetSales = summary.NetSales
	c.OrderCount = summary.OrderCount
	c.FiscalTxID = &fiscalTxID
	c.CompletedAt = &now
	return nil
}

func (r *stubClosingRepo) MarkCancelled(closingID, branchID int64, reason *string, entry *models.AuditLogEntry) error {
	c, ok := r.closings[closingID]
	if !ok || c.BranchID != branchID {
		return repositories.ErrNotFound
	}
	if c.Status != models.ClosingStatusDraft {
		return repositories.ErrStaleState
	}
	now := time.Now()
	c.Status = models.ClosingStatusCancelled
	c.CancelReason = reason
	c.CancelledAt = &now
	r.audit = append(r.audit, *entry)
	return nil
}

func (r *stubClosingRepo) ListAuditEntries(branchID int64, entityType string, entityID int64) ([]models.AuditLogEntry, error) {
	var out []models.AuditLogEntry
	for _, e := range r.audit {
		if e.BranchID == branchID && e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubPresetRepo struct {
	presets map[int64]*models.Preset
	nextID  int64
}

func newStubPresetRepo() *stubPresetRepo {
	return &stubPresetRepo{presets: map[int64]*models.Preset{}, nextID: 1}
}

func (r *stubPresetRepo) CreatePreset(p *models.Preset) (int64, error) {
	p.ID = r.nextID
	r.nextID++
	r.presets[p.ID] = p
	return p.ID, nil
}

func (r *stubPresetRepo) GetPreset(presetID, branchID int64) (*models.Preset, error) {
	p, ok := r.presets[presetID]
	if !ok || p.BranchID != branchID {
		return nil, repositories.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *stubPresetRepo) ListPresets(branchID int64) ([]models.Preset, error) {
	var out []models.Preset
	for _, p := range r.presets {
		if p.BranchID == branchID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubPresetRepo) UpdatePreset(p *models.Preset) error {
	if _, ok := r.presets[p.ID]; !ok {
		return repositories.ErrNotFound
	}
	clone := *p
	r.presets[p.ID] = &clone
	return nil
}

func (r *stubPresetRepo) DeletePreset(presetID, branchID int64) error {
	p, ok := r.presets[presetID]
	if !ok || p.BranchID != branchID {
		return repositories.ErrNotFound
	}
	delete(r.presets, presetID)
	return nil
}

func (r *stubPresetRepo) GetActivePreset(branchID int64) (*models.Preset, error) {
	for _, p := range r.presets {
		if p.BranchID == branchID && p.IsActive {
			return p, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *stubPresetRepo) SetActive(branchID int64, presetID int64, apply func(repositories.SQLExecutor) error) error {
	for _, p := range r.presets {
		if p.BranchID == branchID {
			p.IsActive = false
		}
	}
	if presetID != 0 {
		p, ok := r.presets[presetID]
		if !ok || p.BranchID != branchID {
			return repositories.ErrNotFound
		}
		p.IsActive = true
	}
	if apply != nil {
		return apply(nil)
	}
	return nil
}

func (r *stubPresetRepo) ListScheduled() ([]models.Preset, error) {
	var out []models.Preset
	for _, p := range r.presets {
		if p.ScheduleType != models.ScheduleNone {
			out = append(out, *p)
		}
	}
	return out, nil
}

// External client fakes.

type stubRefundClient struct {
	calls []payments.RefundRequest
	err   error
}

func (c *stubRefundClient) Refund(_ context.Context, req payments.RefundRequest) (*payments.RefundResult, error) {
	c.calls = append(c.calls, req)
	if c.err != nil {
		return nil, c.err
	}
	return &payments.RefundResult{RefundID: fmt.Sprintf("re_%d", len(c.calls))}, nil
}

type stubFiscalClient struct {
	calls []websrm.ClosingTransaction
	err   error
}

func (c *stubFiscalClient) SubmitClosing(_ context.Context, tx websrm.ClosingTransaction) (string, error) {
	c.calls = append(c.calls, tx)
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("srm_%d", len(c.calls)), nil
}

type stubEnqueuer struct {
	jobs []string
}

func (e *stubEnqueuer) Enqueue(_ context.Context, jobType string, _ interface{}) error {
	e.jobs = append(e.jobs, jobType)
	return nil
}

type stubMarketplaceClient struct {
	orders []marketplace.ExternalOrder
	err    error
}

func (c *stubMarketplaceClient) FetchOrders(_ context.Context, storeID string, since time.Time) ([]marketplace.ExternalOrder, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.orders, nil
}

// Shared fixtures.

func ownerPrincipal(chainID int64) models.Principal {
	return models.Principal{
		UserID:      1,
		Email:       "owner@example.com",
		ChainID:     chainID,
		Role:        models.RoleChainOwner,
		Permissions: models.RolePermissions[models.RoleChainOwner],
	}
}

func managerPrincipal(branchID int64) models.Principal {
	return models.Principal{
		UserID:      2,
		Email:       "manager@example.com",
		ChainID:     1,
		BranchID:    branchID,
		Role:        models.RoleBranchManager,
		Permissions: models.RolePermissions[models.RoleBranchManager],
	}
}

func testBranch(id int64) models.Branch {
	gst := "123456789RT0001"
	qst := "1234567890TQ0001"
	return models.Branch{
		ID:                  id,
		ChainID:             1,
		Name:                "Downtown",
		Timezone:            "America/Montreal",
		BasePrepMinutes:     20,
		AutoCompleteEnabled: true,
		GSTNumber:           &gst,
		QSTNumber:           &qst,
		IsActive:            true,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
