package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resto_platform_backend/internal/models"

	"github.com/lib/pq"
)

// TenantRepository defines the interface for chain, branch, and membership
// management. Branch reads are chain-scoped: the chain filter is the explicit
// tenant-isolation boundary applied at the repository layer.
type TenantRepository interface {
	CreateChain(executor SQLExecutor, chain *models.Chain) (int64, error)
	GetChainByID(chainID int64) (*models.Chain, error)
	GetChainByOwner(userID int64) (*models.Chain, error)

	CreateBranch(executor SQLExecutor, branch *models.Branch) (int64, error)
	GetBranch(branchID, chainID int64) (*models.Branch, error)
	GetBranchByID(branchID int64) (*models.Branch, error) // internal use (sweeper, public ordering)
	ListBranches(chainID int64) ([]models.Branch, error)
	UpdateBranch(executor SQLExecutor, branch *models.Branch) error
	UpdateBranchTiming(branchID, chainID int64, basePrepMinutes, tempAdjustment int, autoComplete bool) error

	AssignBranchUser(executor SQLExecutor, bu *models.BranchUser) (int64, error)
	ListBranchUsers(branchID int64) ([]models.BranchUser, error)
	RemoveBranchUser(branchID, userID int64) error
}

type tenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a new instance of TenantRepository.
func NewTenantRepository(db *sql.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) CreateChain(executor SQLExecutor, chain *models.Chain) (int64, error) {
	query := `INSERT INTO chains (name, owner_user_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id`
	now := time.Now()
	err := executor.QueryRow(query, chain.Name, chain.OwnerUserID, now, now).Scan(&chain.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: creating chain: %v", ErrDatabaseError, err)
	}
	chain.CreatedAt = now
	chain.UpdatedAt = now
	return chain.ID, nil
}

func (r *tenantRepository) GetChainByID(chainID int64) (*models.Chain, error) {
	chain := &models.Chain{}
	query := `SELECT id, name, owner_user_id, created_at, updated_at FROM chains WHERE id = $1`
	err := r.db.QueryRow(query, chainID).Scan(
		&chain.ID, &chain.Name, &chain.OwnerUserID, &chain.CreatedAt, &chain.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting chain %d: %v", ErrDatabaseError, chainID, err)
	}
	return chain, nil
}

func (r *tenantRepository) GetChainByOwner(userID int64) (*models.Chain, error) {
	chain := &models.Chain{}
	query := `SELECT id, name, owner_user_id, created_at, updated_at FROM chains WHERE owner_user_id = $1`
	err := r.db.QueryRow(query, userID).Scan(
		&chain.ID, &chain.Name, &chain.OwnerUserID, &chain.CreatedAt, &chain.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting chain by owner %d: %v", ErrDatabaseError, userID, err)
	}
	return chain, nil
}

const branchColumns = `id, chain_id, name, address, timezone, base_prep_minutes,
	temp_prep_adjustment, auto_complete_enabled, gst_number, qst_number,
	is_active, created_at, updated_at`

func scanBranch(row *sql.Row) (*models.Branch, error) {
	b := &models.Branch{}
	err := row.Scan(
		&b.ID, &b.ChainID, &b.Name, &b.Address, &b.Timezone, &b.BasePrepMinutes,
		&b.TempPrepAdjustment, &b.AutoCompleteEnabled, &b.GSTNumber, &b.QSTNumber,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning branch: %v", ErrDatabaseError, err)
	}
	return b, nil
}

func (r *tenantRepository) CreateBranch(executor SQLExecutor, branch *models.Branch) (int64, error) {
	query := `INSERT INTO branches
	            (chain_id, name, address, timezone, base_prep_minutes, temp_prep_adjustment,
	             auto_complete_enabled, gst_number, qst_number, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING id`
	now := time.Now()
	err := executor.QueryRow(query,
		branch.ChainID, branch.Name, branch.Address, branch.Timezone,
		branch.BasePrepMinutes, branch.TempPrepAdjustment, branch.AutoCompleteEnabled,
		branch.GSTNumber, branch.QSTNumber, branch.IsActive, now, now,
	).Scan(&branch.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return 0, fmt.Errorf("%w: creating branch (constraint: %s)", ErrNotFound, pqErr.Constraint)
		}
		return 0, fmt.Errorf("%w: creating branch: %v", ErrDatabaseError, err)
	}
	branch.CreatedAt = now
	branch.UpdatedAt = now
	return branch.ID, nil
}

func (r *tenantRepository) GetBranch(branchID, chainID int64) (*models.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM branches WHERE id = $1 AND chain_id = $2`
	return scanBranch(r.db.QueryRow(query, branchID, chainID))
}

func (r *tenantRepository) GetBranchByID(branchID int64) (*models.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM branches WHERE id = $1`
	return scanBranch(r.db.QueryRow(query, branchID))
}

func (r *tenantRepository) ListBranches(chainID int64) ([]models.Branch, error) {
	branches := []models.Branch{}
	query := `SELECT ` + branchColumns + ` FROM branches WHERE chain_id = $1 ORDER BY id`
	rows, err := r.db.Query(query, chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying branches for chain %d: %v", ErrDatabaseError, chainID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.Branch
		err := rows.Scan(
			&b.ID, &b.ChainID, &b.Name, &b.Address, &b.Timezone, &b.BasePrepMinutes,
			&b.TempPrepAdjustment, &b.AutoCompleteEnabled, &b.GSTNumber, &b.QSTNumber,
			&b.IsActive, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning branch: %v", ErrDatabaseError, err)
		}
		branches = append(branches, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating branch rows: %v", ErrDatabaseError, err)
	}
	return branches, nil
}

func (r *tenantRepository) UpdateBranch(executor SQLExecutor, branch *models.Branch) error {
	query := `UPDATE branches
	          SET name = $1, address = $2, timezone = $3, gst_number = $4, qst_number = $5,
	              is_active = $6, updated_at = $7
	          WHERE id = $8 AND chain_id = $9`
	result, err := executor.Exec(query,
		branch.Name, branch.Address, branch.Timezone, branch.GSTNumber, branch.QSTNumber,
		branch.IsActive, time.Now(), branch.ID, branch.ChainID,
	)
	if err != nil {
		return fmt.Errorf("%w: updating branch %d: %v", ErrDatabaseError, branch.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for branch update %d: %v", ErrDatabaseError, branch.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tenantRepository) UpdateBranchTiming(branchID, chainID int64, basePrepMinutes, tempAdjustment int, autoComplete bool) error {
	query := `UPDATE branches
	          SET base_prep_minutes = $1, temp_prep_adjustment = $2, auto_complete_enabled = $3, updated_at = $4
	          WHERE id = $5 AND chain_id = $6`
	result, err := r.db.Exec(query, basePrepMinutes, tempAdjustment, autoComplete, time.Now(), branchID, chainID)
	if err != nil {
		return fmt.Errorf("%w: updating branch timing %d: %v", ErrDatabaseError, branchID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for branch timing update %d: %v", ErrDatabaseError, branchID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tenantRepository) AssignBranchUser(executor SQLExecutor, bu *models.BranchUser) (int64, error) {
	query := `INSERT INTO branch_users (user_id, branch_id, role, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (user_id, branch_id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at
	          RETURNING id`
	now := time.Now()
	err := executor.QueryRow(query, bu.UserID, bu.BranchID, bu.Role, now, now).Scan(&bu.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return 0, fmt.Errorf("%w: assigning branch user (constraint: %s)", ErrNotFound, pqErr.Constraint)
		}
		return 0, fmt.Errorf("%w: assigning branch user: %v", ErrDatabaseError, err)
	}
	return bu.ID, nil
}

func (r *tenantRepository) ListBranchUsers(branchID int64) ([]models.BranchUser, error) {
	users := []models.BranchUser{}
	query := `SELECT bu.id, bu.user_id, bu.branch_id, bu.role, bu.created_at, bu.updated_at,
	                 u.email, u.full_name, u.is_active
	          FROM branch_users bu
	          JOIN users u ON bu.user_id = u.id
	          WHERE bu.branch_id = $1
	          ORDER BY bu.id`
	rows, err := r.db.Query(query, branchID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying branch users for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var bu models.BranchUser
		var u models.User
		err := rows.Scan(
			&bu.ID, &bu.UserID, &bu.BranchID, &bu.Role, &bu.CreatedAt, &bu.UpdatedAt,
			&u.Email, &u.FullName, &u.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning branch user: %v", ErrDatabaseError, err)
		}
		u.ID = bu.UserID
		bu.User = &u
		users = append(users, bu)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating branch user rows: %v", ErrDatabaseError, err)
	}
	return users, nil
}

func (r *tenantRepository) RemoveBranchUser(branchID, userID int64) error {
	query := `DELETE FROM branch_users WHERE branch_id = $1 AND user_id = $2`
	result, err := r.db.Exec(query, branchID, userID)
	if err != nil {
		return fmt.Errorf("%w: removing branch user (branch %d, user %d): %v", ErrDatabaseError, branchID, userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for branch user removal: %v", ErrDatabaseError, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
