package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// MenuCategory groups menu items within a branch.
type MenuCategory struct {
	ID        int64     `json:"id"`
	BranchID  int64     `json:"branch_id" db:"branch_id"`
	Name      string    `json:"name" db:"name"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MenuItem is a sellable catalog entry. Variants and modifiers are stored as
// raw JSON documents; orders copy them verbatim at creation time so catalog
// edits never rewrite history.
type MenuItem struct {
	ID          int64           `json:"id"`
	BranchID    int64           `json:"branch_id" db:"branch_id"`
	CategoryID  int64           `json:"category_id" db:"category_id"`
	Name        string          `json:"name" db:"name"`
	Description *string         `json:"description,omitempty" db:"description"`
	SKU         *string         `json:"sku,omitempty" db:"sku"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Variants    json.RawMessage `json:"variants,omitempty" db:"variants"`
	Modifiers   json.RawMessage `json:"modifiers,omitempty" db:"modifiers"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// MenuFilters defines the available filters for querying the catalog.
type MenuFilters struct {
	CategoryID *int64 `form:"category_id"`
	ActiveOnly bool   `form:"active_only"`
}
