package models

import "time"

// Role names. A role is always scoped to a branch through BranchUser, except
// for chain owners whose scope is implicitly every branch of their chain.
const (
	RoleChainOwner    = "chain_owner"
	RoleBranchManager = "branch_manager"
	RoleBranchStaff   = "branch_staff"
	RoleBranchCashier = "branch_cashier"
)

// RolePermissions maps each role to its fixed permission set.
var RolePermissions = map[string][]string{
	RoleChainOwner:    {"orders:write", "orders:refund", "menu:write", "presets:write", "closings:write", "users:write", "reports:read"},
	RoleBranchManager: {"orders:write", "orders:refund", "menu:write", "presets:write", "closings:write", "users:write", "reports:read"},
	RoleBranchStaff:   {"orders:write", "menu:read", "reports:read"},
	RoleBranchCashier: {"orders:write", "orders:refund", "closings:write", "reports:read"},
}

// IsValidRole reports whether name is one of the defined roles.
func IsValidRole(name string) bool {
	_, ok := RolePermissions[name]
	return ok
}

// Chain represents a restaurant brand owning one or more branches.
type Chain struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name" db:"name"`
	OwnerUserID int64     `json:"owner_user_id" db:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Branch is a single physical restaurant location and the primary
// tenant-isolation boundary. Preparation timing settings used by the order
// auto-completion sweeper live here.
type Branch struct {
	ID                  int64     `json:"id"`
	ChainID             int64     `json:"chain_id" db:"chain_id"`
	Name                string    `json:"name" db:"name"`
	Address             *string   `json:"address,omitempty" db:"address"`
	Timezone            string    `json:"timezone" db:"timezone"`
	BasePrepMinutes     int       `json:"base_prep_minutes" db:"base_prep_minutes"`
	TempPrepAdjustment  int       `json:"temp_prep_adjustment" db:"temp_prep_adjustment"`
	AutoCompleteEnabled bool      `json:"auto_complete_enabled" db:"auto_complete_enabled"`
	GSTNumber           *string   `json:"gst_number,omitempty" db:"gst_number"`
	QSTNumber           *string   `json:"qst_number,omitempty" db:"qst_number"`
	IsActive            bool      `json:"is_active" db:"is_active"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// User represents a staff user in the system.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // '-' means don't send in JSON response
	FullName     *string   `json:"full_name,omitempty" db:"full_name"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// BranchUser grants a user a role at one branch.
type BranchUser struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	BranchID  int64     `json:"branch_id" db:"branch_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	User      *User     `json:"user,omitempty"` // For joining with User
}

// Principal is the authenticated caller, extracted from JWT claims by the
// auth middleware and passed explicitly into every service operation.
type Principal struct {
	UserID      int64    `json:"user_id"`
	Email       string   `json:"email"`
	ChainID     int64    `json:"chain_id"`
	BranchID    int64    `json:"branch_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// IsChainOwner reports whether the principal owns the chain and therefore
// bypasses per-branch role checks.
func (p Principal) IsChainOwner() bool {
	return p.Role == RoleChainOwner
}

// HasPermission checks membership in the principal's permission set.
func (p Principal) HasPermission(perm string) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// NewNullString is a helper for string pointers, returning nil if string is empty.
func NewNullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
