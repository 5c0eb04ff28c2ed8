package services

import (
	"errors"
	"fmt"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/repositories"
)

// requireBranchAccess checks that the principal may operate on the branch and
// returns it. Chain owners reach every branch of their chain; everyone else
// is pinned to the branch their token was issued for. A branch outside the
// caller's tenant scope reads as not-found, never as forbidden, so tenants
// cannot probe each other's ids.
func requireBranchAccess(tenantRepo repositories.TenantRepository, p models.Principal, branchID int64) (*models.Branch, error) {
	branch, err := tenantRepo.GetBranchByID(branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load branch %d: %w", branchID, err)
	}

	if p.IsChainOwner() {
		if branch.ChainID != p.ChainID {
			return nil, repositories.ErrNotFound
		}
		return branch, nil
	}

	if p.BranchID != branchID {
		return nil, repositories.ErrNotFound
	}
	return branch, nil
}
