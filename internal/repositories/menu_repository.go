package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resto_platform_backend/internal/models"

	"github.com/lib/pq"
)

// MenuRepository defines the interface for catalog persistence. All reads and
// writes are branch-scoped.
type MenuRepository interface {
	CreateCategory(executor SQLExecutor, category *models.MenuCategory) (int64, error)
	GetCategory(categoryID, branchID int64) (*models.MenuCategory, error)
	ListCategories(branchID int64, activeOnly bool) ([]models.MenuCategory, error)
	UpdateCategory(executor SQLExecutor, category *models.MenuCategory) error
	SetCategoriesActive(executor SQLExecutor, branchID int64, categoryIDs []int64, active bool) error

	CreateItem(executor SQLExecutor, item *models.MenuItem) (int64, error)
	GetItem(itemID, branchID int64) (*models.MenuItem, error)
	GetItems(branchID int64, itemIDs []int64) ([]models.MenuItem, error)
	ListItems(branchID int64, filters models.MenuFilters) ([]models.MenuItem, error)
	UpdateItem(executor SQLExecutor, item *models.MenuItem) error
	SetItemsActive(executor SQLExecutor, branchID int64, itemIDs []int64, active bool) error
	DeactivateCatalog(executor SQLExecutor, branchID int64) error
	ActivateCatalog(executor SQLExecutor, branchID int64) error
	ActiveCatalogIDs(branchID int64) (categoryIDs []int64, itemIDs []int64, err error)
}

type menuRepository struct {
	db *sql.DB
}

// NewMenuRepository creates a new instance of MenuRepository.
func NewMenuRepository(db *sql.DB) MenuRepository {
	return &menuRepository{db: db}
}

// --- Category methods ---

func (r *menuRepository) CreateCategory(executor SQLExecutor, category *models.MenuCategory) (int64, error) {
	query := `INSERT INTO menu_categories (branch_id, name, sort_order, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`
	now := time.Now()
	err := executor.QueryRow(query,
		category.BranchID, category.Name, category.SortOrder, category.IsActive, now, now,
	).Scan(&category.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: creating menu category: %v", ErrDatabaseError, err)
	}
	return category.ID, nil
}

func (r *menuRepository) GetCategory(categoryID, branchID int64) (*models.MenuCategory, error) {
	category := &models.MenuCategory{}
	query := `SELECT id, branch_id, name, sort_order, is_active, created_at, updated_at
	          FROM menu_categories
	          WHERE id = $1 AND branch_id = $2`
	err := r.db.QueryRow(query, categoryID, branchID).Scan(
		&category.ID, &category.BranchID, &category.Name, &category.SortOrder,
		&category.IsActive, &category.CreatedAt, &category.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting menu category %d: %v", ErrDatabaseError, categoryID, err)
	}
	return category, nil
}

func (r *menuRepository) ListCategories(branchID int64, activeOnly bool) ([]models.MenuCategory, error) {
	categories := []models.MenuCategory{}
	query := `SELECT id, branch_id, name, sort_order, is_active, created_at, updated_at
	          FROM menu_categories
	          WHERE branch_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY sort_order, id`

	rows, err := r.db.Query(query, branchID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying menu categories for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.MenuCategory
		err := rows.Scan(&c.ID, &c.BranchID, &c.Name, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning menu category: %v", ErrDatabaseError, err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating menu category rows: %v", ErrDatabaseError, err)
	}
	return categories, nil
}

func (r *menuRepository) UpdateCategory(executor SQLExecutor, category *models.MenuCategory) error {
	query := `UPDATE menu_categories
	          SET name = $1, sort_order = $2, is_active = $3, updated_at = $4
	          WHERE id = $5 AND branch_id = $6`
	result, err := executor.Exec(query,
		category.Name, category.SortOrder, category.IsActive, time.Now(),
		category.ID, category.BranchID,
	)
	if err != nil {
		return fmt.Errorf("%w: updating menu category %d: %v", ErrDatabaseError, category.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for menu category update %d: %v", ErrDatabaseError, category.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *menuRepository) SetCategoriesActive(executor SQLExecutor, branchID int64, categoryIDs []int64, active bool) error {
	query := `UPDATE menu_categories SET is_active = $1, updated_at = $2
	          WHERE branch_id = $3 AND id = ANY($4)`
	_, err := executor.Exec(query, active, time.Now(), branchID, pq.Array(categoryIDs))
	if err != nil {
		return fmt.Errorf("%w: toggling menu categories for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	return nil
}

// --- Item methods ---

const menuItemColumns = `id, branch_id, category_id, name, description, sku, price,
	variants, modifiers, is_active, created_at, updated_at`

func (r *menuRepository) CreateItem(executor SQLExecutor, item *models.MenuItem) (int64, error) {
	query := `INSERT INTO menu_items
	            (branch_id, category_id, name, description, sku, price, variants, modifiers,
	             is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id`
	now := time.Now()
	err := executor.QueryRow(query,
		item.BranchID, item.CategoryID, item.Name, item.Description, item.SKU, item.Price,
		nullableJSON(item.Variants), nullableJSON(item.Modifiers), item.IsActive, now, now,
	).Scan(&item.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return 0, fmt.Errorf("%w: creating menu item (constraint: %s)", ErrNotFound, pqErr.Constraint)
		}
		return 0, fmt.Errorf("%w: creating menu item: %v", ErrDatabaseError, err)
	}
	return item.ID, nil
}

func (r *menuRepository) GetItem(itemID, branchID int64) (*models.MenuItem, error) {
	item := &models.MenuItem{}
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1 AND branch_id = $2`
	err := r.db.QueryRow(query, itemID, branchID).Scan(
		&item.ID, &item.BranchID, &item.CategoryID, &item.Name, &item.Description, &item.SKU,
		&item.Price, &item.Variants, &item.Modifiers, &item.IsActive, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting menu item %d: %v", ErrDatabaseError, itemID, err)
	}
	return item, nil
}

func (r *menuRepository) GetItems(branchID int64, itemIDs []int64) ([]models.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE branch_id = $1 AND id = ANY($2)`
	rows, err := r.db.Query(query, branchID, pq.Array(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: querying menu items by ids for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	defer rows.Close()
	return scanMenuItems(rows)
}

func (r *menuRepository) ListItems(branchID int64, filters models.MenuFilters) ([]models.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE branch_id = $1`
	args := []interface{}{branchID}
	if filters.CategoryID != nil {
		query += ` AND category_id = $2`
		args = append(args, *filters.CategoryID)
	}
	if filters.ActiveOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY category_id, id`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying menu items for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	defer rows.Close()
	return scanMenuItems(rows)
}

func scanMenuItems(rows *sql.Rows) ([]models.MenuItem, error) {
	items := []models.MenuItem{}
	for rows.Next() {
		var item models.MenuItem
		err := rows.Scan(
			&item.ID, &item.BranchID, &item.CategoryID, &item.Name, &item.Description, &item.SKU,
			&item.Price, &item.Variants, &item.Modifiers, &item.IsActive, &item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning menu item: %v", ErrDatabaseError, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating menu item rows: %v", ErrDatabaseError, err)
	}
	return items, nil
}

func (r *menuRepository) UpdateItem(executor SQLExecutor, item *models.MenuItem) error {
	query := `UPDATE menu_items
	          SET category_id = $1, name = $2, description = $3, sku = $4, price = $5,
	              variants = $6, modifiers = $7, is_active = $8, updated_at = $9
	          WHERE id = $10 AND branch_id = $11`
	result, err := executor.Exec(query,
		item.CategoryID, item.Name, item.Description, item.SKU, item.Price,
		nullableJSON(item.Variants), nullableJSON(item.Modifiers), item.IsActive, time.Now(),
		item.ID, item.BranchID,
	)
	if err != nil {
		return fmt.Errorf("%w: updating menu item %d: %v", ErrDatabaseError, item.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for menu item update %d: %v", ErrDatabaseError, item.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *menuRepository) SetItemsActive(executor SQLExecutor, branchID int64, itemIDs []int64, active bool) error {
	query := `UPDATE menu_items SET is_active = $1, updated_at = $2
	          WHERE branch_id = $3 AND id = ANY($4)`
	_, err := executor.Exec(query, active, time.Now(), branchID, pq.Array(itemIDs))
	if err != nil {
		return fmt.Errorf("%w: toggling menu items for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	return nil
}

// DeactivateCatalog marks every category and item of the branch inactive.
// Used by preset application before re-activating the preset's selection.
func (r *menuRepository) DeactivateCatalog(executor SQLExecutor, branchID int64) error {
	now := time.Now()
	if _, err := executor.Exec(`UPDATE menu_categories SET is_active = FALSE, updated_at = $1 WHERE branch_id = $2`, now, branchID); err != nil {
		return fmt.Errorf("%w: deactivating categories for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	if _, err := executor.Exec(`UPDATE menu_items SET is_active = FALSE, updated_at = $1 WHERE branch_id = $2`, now, branchID); err != nil {
		return fmt.Errorf("%w: deactivating items for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	return nil
}

// ActivateCatalog restores every category and item of the branch to active.
// Used when a preset is deactivated without a replacement.
func (r *menuRepository) ActivateCatalog(executor SQLExecutor, branchID int64) error {
	now := time.Now()
	if _, err := executor.Exec(`UPDATE menu_categories SET is_active = TRUE, updated_at = $1 WHERE branch_id = $2`, now, branchID); err != nil {
		return fmt.Errorf("%w: reactivating categories for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	if _, err := executor.Exec(`UPDATE menu_items SET is_active = TRUE, updated_at = $1 WHERE branch_id = $2`, now, branchID); err != nil {
		return fmt.Errorf("%w: reactivating items for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	return nil
}

// ActiveCatalogIDs returns the ids of currently active categories and items,
// used when capturing a preset from the live catalog.
func (r *menuRepository) ActiveCatalogIDs(branchID int64) ([]int64, []int64, error) {
	categoryIDs := []int64{}
	rows, err := r.db.Query(`SELECT id FROM menu_categories WHERE branch_id = $1 AND is_active = TRUE ORDER BY id`, branchID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: querying active categories for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, nil, fmt.Errorf("%w: scanning active category id: %v", ErrDatabaseError, err)
		}
		categoryIDs = append(categoryIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: iterating active category ids: %v", ErrDatabaseError, err)
	}

	itemIDs := []int64{}
	itemRows, err := r.db.Query(`SELECT id FROM menu_items WHERE branch_id = $1 AND is_active = TRUE ORDER BY id`, branchID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: querying active items for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var id int64
		if err := itemRows.Scan(&id); err != nil {
			return nil, nil, fmt.Errorf("%w: scanning active item id: %v", ErrDatabaseError, err)
		}
		itemIDs = append(itemIDs, id)
	}
	if err := itemRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: iterating active item ids: %v", ErrDatabaseError, err)
	}
	return categoryIDs, itemIDs, nil
}

// nullableJSON maps an empty raw message to NULL so jsonb columns don't
// reject empty strings.
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
