package services

import (
	"errors"
	"fmt"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/repositories"
)

// Custom Errors
var (
	ErrChainNotFound  = errors.New("chain not found")
	ErrChainExists    = errors.New("user already owns a chain")
	ErrInvalidRole    = errors.New("unknown role")
	ErrRoleEscalation = errors.New("chain_owner is not assignable; ownership follows the chain record")
)

// --- Data Transfer Objects (DTOs) ---

// CreateChainRequest registers a new restaurant chain owned by the caller.
type CreateChainRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateBranchRequest opens a new branch under the caller's chain.
type CreateBranchRequest struct {
	Name      string  `json:"name" binding:"required"`
	Address   *string `json:"address"`
	Timezone  string  `json:"timezone"`
	GSTNumber *string `json:"gst_number"`
	QSTNumber *string `json:"qst_number"`
}

// UpdateBranchRequest edits branch settings; nil fields are left untouched.
type UpdateBranchRequest struct {
	Name      *string `json:"name"`
	Address   *string `json:"address"`
	Timezone  *string `json:"timezone"`
	GSTNumber *string `json:"gst_number"`
	QSTNumber *string `json:"qst_number"`
	IsActive  *bool   `json:"is_active"`
}

// UpdateTimingRequest tunes the preparation-time inputs the auto-completion
// sweeper works from.
type UpdateTimingRequest struct {
	BasePrepMinutes     int  `json:"base_prep_minutes" binding:"gte=0"`
	TempPrepAdjustment  int  `json:"temp_prep_adjustment"`
	AutoCompleteEnabled bool `json:"auto_complete_enabled"`
}

// AssignUserRequest grants an existing user a role at a branch. Assigning a
// user who already holds a role there replaces the role.
type AssignUserRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// --- TenantService Interface ---
type TenantService interface {
	CreateChain(p models.Principal, req CreateChainRequest) (*models.Chain, error)
	GetChain(p models.Principal) (*models.Chain, error)

	CreateBranch(p models.Principal, req CreateBranchRequest) (*models.Branch, error)
	GetBranch(p models.Principal, branchID int64) (*models.Branch, error)
	ListBranches(p models.Principal) ([]models.Branch, error)
	UpdateBranch(p models.Principal, branchID int64, req UpdateBranchRequest) (*models.Branch, error)
	UpdateTiming(p models.Principal, branchID int64, req UpdateTimingRequest) (*models.Branch, error)

	AssignUser(p models.Principal, branchID int64, req AssignUserRequest) (*models.BranchUser, error)
	ListBranchUsers(p models.Principal, branchID int64) ([]models.BranchUser, error)
	RemoveUser(p models.Principal, branchID, userID int64) error
}

// --- tenantService Implementation ---
type tenantService struct {
	tenantRepo repositories.TenantRepository
	authRepo   repositories.AuthRepository
	db         repositories.SQLExecutor
}

// NewTenantService creates a new instance of TenantService.
func NewTenantService(tr repositories.TenantRepository, ar repositories.AuthRepository, db repositories.SQLExecutor) TenantService {
	return &tenantService{tenantRepo: tr, authRepo: ar, db: db}
}

func (s *tenantService) CreateChain(p models.Principal, req CreateChainRequest) (*models.Chain, error) {
	if _, err := s.tenantRepo.GetChainByOwner(p.UserID); err == nil {
		return nil, ErrChainExists
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check chain ownership: %w", err)
	}

	chain := &models.Chain{
		Name:        req.Name,
		OwnerUserID: p.UserID,
	}
	if _, err := s.tenantRepo.CreateChain(s.db, chain); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrChainExists
		}
		return nil, fmt.Errorf("failed to create chain: %w", err)
	}
	return chain, nil
}

func (s *tenantService) GetChain(p models.Principal) (*models.Chain, error) {
	chain, err := s.tenantRepo.GetChainByID(p.ChainID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrChainNotFound
		}
		return nil, fmt.Errorf("failed to get chain: %w", err)
	}
	return chain, nil
}

func (s *tenantService) CreateBranch(p models.Principal, req CreateBranchRequest) (*models.Branch, error) {
	if !p.IsChainOwner() {
		return nil, ErrForbidden
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "America/Montreal"
	}

	branch := &models.Branch{
		ChainID:             p.ChainID,
		Name:                req.Name,
		Address:             req.Address,
		Timezone:            timezone,
		BasePrepMinutes:     20,
		AutoCompleteEnabled: true,
		GSTNumber:           req.GSTNumber,
		QSTNumber:           req.QSTNumber,
		IsActive:            true,
	}
	if _, err := s.tenantRepo.CreateBranch(s.db, branch); err != nil {
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}
	return branch, nil
}

func (s *tenantService) GetBranch(p models.Principal, branchID int64) (*models.Branch, error) {
	branch, err := requireBranchAccess(s.tenantRepo, p, branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrBranchNotFound
		}
		return nil, err
	}
	return branch, nil
}

func (s *tenantService) ListBranches(p models.Principal) ([]models.Branch, error) {
	if !p.IsChainOwner() {
		// Non-owners see only their own branch.
		branch, err := s.GetBranch(p, p.BranchID)
		if err != nil {
			return nil, err
		}
		return []models.Branch{*branch}, nil
	}
	branches, err := s.tenantRepo.ListBranches(p.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	return branches, nil
}

func (s *tenantService) UpdateBranch(p models.Principal, branchID int64, req UpdateBranchRequest) (*models.Branch, error) {
	if !p.IsChainOwner() {
		return nil, ErrForbidden
	}
	branch, err := s.GetBranch(p, branchID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		branch.Name = *req.Name
	}
	if req.Address != nil {
		branch.Address = req.Address
	}
	if req.Timezone != nil {
		branch.Timezone = *req.Timezone
	}
	if req.GSTNumber != nil {
		branch.GSTNumber = req.GSTNumber
	}
	if req.QSTNumber != nil {
		branch.QSTNumber = req.QSTNumber
	}
	if req.IsActive != nil {
		branch.IsActive = *req.IsActive
	}

	if err := s.tenantRepo.UpdateBranch(s.db, branch); err != nil {
		return nil, fmt.Errorf("failed to update branch: %w", err)
	}
	return branch, nil
}

func (s *tenantService) UpdateTiming(p models.Principal, branchID int64, req UpdateTimingRequest) (*models.Branch, error) {
	branch, err := s.GetBranch(p, branchID)
	if err != nil {
		return nil, err
	}
	if req.BasePrepMinutes < 0 {
		return nil, fmt.Errorf("%w: base_prep_minutes cannot be negative", ErrValidation)
	}

	err = s.tenantRepo.UpdateBranchTiming(branchID, branch.ChainID, req.BasePrepMinutes, req.TempPrepAdjustment, req.AutoCompleteEnabled)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrBranchNotFound
		}
		return nil, fmt.Errorf("failed to update branch timing: %w", err)
	}
	return s.tenantRepo.GetBranchByID(branchID)
}

func (s *tenantService) AssignUser(p models.Principal, branchID int64, req AssignUserRequest) (*models.BranchUser, error) {
	if _, err := s.GetBranch(p, branchID); err != nil {
		return nil, err
	}
	if !models.IsValidRole(req.Role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}
	if req.Role == models.RoleChainOwner {
		return nil, ErrRoleEscalation
	}

	user, err := s.authRepo.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	bu := &models.BranchUser{
		UserID:   user.ID,
		BranchID: branchID,
		Role:     req.Role,
	}
	if _, err := s.tenantRepo.AssignBranchUser(s.db, bu); err != nil {
		return nil, fmt.Errorf("failed to assign branch user: %w", err)
	}
	bu.User = user
	return bu, nil
}

func (s *tenantService) ListBranchUsers(p models.Principal, branchID int64) ([]models.BranchUser, error) {
	if _, err := s.GetBranch(p, branchID); err != nil {
		return nil, err
	}
	users, err := s.tenantRepo.ListBranchUsers(branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list branch users: %w", err)
	}
	return users, nil
}

func (s *tenantService) RemoveUser(p models.Principal, branchID, userID int64) error {
	if _, err := s.GetBranch(p, branchID); err != nil {
		return err
	}
	if err := s.tenantRepo.RemoveBranchUser(branchID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to remove branch user: %w", err)
	}
	return nil
}
