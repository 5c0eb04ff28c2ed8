package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/repositories"

	"github.com/shopspring/decimal"
)

// Custom Errors
var (
	ErrCategoryNotFound = errors.New("menu category not found")
	ErrItemNotFound     = errors.New("menu item not found")
)

// --- Data Transfer Objects (DTOs) ---

// CreateCategoryRequest creates a menu category.
type CreateCategoryRequest struct {
	Name      string `json:"name" binding:"required"`
	SortOrder int    `json:"sort_order"`
}

// UpdateCategoryRequest edits a category; nil fields are left untouched.
type UpdateCategoryRequest struct {
	Name      *string `json:"name"`
	SortOrder *int    `json:"sort_order"`
	IsActive  *bool   `json:"is_active"`
}

// CreateItemRequest creates a menu item.
type CreateItemRequest struct {
	CategoryID  int64           `json:"category_id" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	Description *string         `json:"description"`
	SKU         *string         `json:"sku"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	Variants    json.RawMessage `json:"variants"`
	Modifiers   json.RawMessage `json:"modifiers"`
}

// UpdateItemRequest edits an item; nil fields are left untouched.
type UpdateItemRequest struct {
	CategoryID  *int64           `json:"category_id"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	SKU         *string          `json:"sku"`
	Price       *decimal.Decimal `json:"price"`
	Variants    json.RawMessage  `json:"variants"`
	Modifiers   json.RawMessage  `json:"modifiers"`
	IsActive    *bool            `json:"is_active"`
}

// PublicMenu is the customer-facing catalog view: active categories with
// their active items, ordered for display.
type PublicMenu struct {
	BranchID   int64             `json:"branch_id"`
	Categories []PublicMenuGroup `json:"categories"`
}

// PublicMenuGroup is one category with its items.
type PublicMenuGroup struct {
	Category models.MenuCategory `json:"category"`
	Items    []models.MenuItem   `json:"items"`
}

// --- MenuService Interface ---
type MenuService interface {
	CreateCategory(p models.Principal, branchID int64, req CreateCategoryRequest) (*models.MenuCategory, error)
	ListCategories(p models.Principal, branchID int64) ([]models.MenuCategory, error)
	UpdateCategory(p models.Principal, branchID, categoryID int64, req UpdateCategoryRequest) (*models.MenuCategory, error)

	CreateItem(p models.Principal, branchID int64, req CreateItemRequest) (*models.MenuItem, error)
	GetItem(p models.Principal, branchID, itemID int64) (*models.MenuItem, error)
	ListItems(p models.Principal, branchID int64, filters models.MenuFilters) ([]models.MenuItem, error)
	UpdateItem(p models.Principal, branchID, itemID int64, req UpdateItemRequest) (*models.MenuItem, error)

	// GetPublicMenu serves the unauthenticated ordering surface: no
	// principal, active entries only.
	GetPublicMenu(branchID int64) (*PublicMenu, error)
}

// --- menuService Implementation ---
type menuService struct {
	menuRepo   repositories.MenuRepository
	tenantRepo repositories.TenantRepository
	db         repositories.SQLExecutor
}

// NewMenuService creates a new instance of MenuService. The executor is the
// shared database handle used for single-statement writes.
func NewMenuService(mr repositories.MenuRepository, tr repositories.TenantRepository, db repositories.SQLExecutor) MenuService {
	return &menuService{menuRepo: mr, tenantRepo: tr, db: db}
}

func (s *menuService) CreateCategory(p models.Principal, branchID int64, req CreateCategoryRequest) (*models.MenuCategory, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapMenuAccessErr(err)
	}
	category := &models.MenuCategory{
		BranchID:  branchID,
		Name:      req.Name,
		SortOrder: req.SortOrder,
		IsActive:  true,
	}
	if _, err := s.menuRepo.CreateCategory(s.db, category); err != nil {
		return nil, fmt.Errorf("failed to create menu category: %w", err)
	}
	return category, nil
}

func (s *menuService) ListCategories(p models.Principal, branchID int64) ([]models.MenuCategory, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapMenuAccessErr(err)
	}
	categories, err := s.menuRepo.ListCategories(branchID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu categories: %w", err)
	}
	return categories, nil
}

func (s *menuService) UpdateCategory(p models.Principal, branchID, categoryID int64, req UpdateCategoryRequest) (*models.MenuCategory, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapMenuAccessErr(err)
	}
	category, err := s.menuRepo.GetCategory(categoryID, branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get menu category: %w", err)
	}

	if req.Name != nil {
		category.Name = *req.Name
	}
	if req.SortOrder != nil {
		category.SortOrder = *req.SortOrder
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := s.menuRepo.UpdateCategory(s.db, category); err != nil {
		return nil, fmt.Errorf("failed to update menu category: %w", err)
	}
	return category, nil
}

func (s *menuService) CreateItem(p models.Principal, branchID int64, req CreateItemRequest) (*models.MenuItem, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapMenuAccessErr(err)
	}
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if _, err := s.menuRepo.GetCategory(req.CategoryID, branchID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get menu category: %w", err)
	}

	item := &models.MenuItem{
		BranchID:    branchID,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		SKU:         req.SKU,
		Price:       req.Price,
		Variants:    req.Variants,
		Modifiers:   req.Modifiers,
		IsActive:    true,
	}
	if _, err := s.menuRepo.CreateItem(s.db, item); err != nil {
		return nil, fmt.Errorf("failed to create menu item: %w", err)
	}
	return item, nil
}

func (s *menuService) GetItem(p models.Principal, branchID, itemID int64) (*models.MenuItem, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapMenuAccessErr(err)
	}
	item, err := s.menuRepo.GetItem(itemID, branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get menu item: %w", err)
	}
	return item, nil
}

func (s *menuService) ListItems(p models.Principal, branchID int64, filters models.MenuFilters) ([]models.MenuItem, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapMenuAccessErr(err)
	}
	items, err := s.menuRepo.ListItems(branchID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	return items, nil
}

func (s *menuService) UpdateItem(p models.Principal, branchID, itemID int64, req UpdateItemRequest) (*models.MenuItem, error) {
	item, err := s.GetItem(p, branchID, itemID)
	if err != nil {
		return nil, err
	}

	if req.CategoryID != nil {
		if _, err := s.menuRepo.GetCategory(*req.CategoryID, branchID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrCategoryNotFound
			}
			return nil, fmt.Errorf("failed to get menu category: %w", err)
		}
		item.CategoryID = *req.CategoryID
	}
	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Description != nil {
		item.Description = req.Description
	}
	if req.SKU != nil {
		item.SKU = req.SKU
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, fmt.Errorf("%w: price must be positive", ErrValidation)
		}
		item.Price = *req.Price
	}
	if req.Variants != nil {
		item.Variants = req.Variants
	}
	if req.Modifiers != nil {
		item.Modifiers = req.Modifiers
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	if err := s.menuRepo.UpdateItem(s.db, item); err != nil {
		return nil, fmt.Errorf("failed to update menu item: %w", err)
	}
	return item, nil
}

func (s *menuService) GetPublicMenu(branchID int64) (*PublicMenu, error) {
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

	categories, err := s.menuRepo.ListCategories(branchID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list public categories: %w", err)
	}
	items, err := s.menuRepo.ListItems(branchID, models.MenuFilters{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list public items: %w", err)
	}

	byCategory := make(map[int64][]models.MenuItem, len(categories))
	for _, item := range items {
		byCategory[item.CategoryID] = append(byCategory[item.CategoryID], item)
	}

	menu := &PublicMenu{BranchID: branchID}
	for _, category := range categories {
		group := PublicMenuGroup{Category: category, Items: byCategory[category.ID]}
		if len(group.Items) == 0 {
			continue
		}
		menu.Categories = append(menu.Categories, group)
	}
	return menu, nil
}

func mapMenuAccessErr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrBranchNotFound
	}
	return err
}
