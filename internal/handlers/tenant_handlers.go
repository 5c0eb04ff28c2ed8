package handlers

import (
	"errors"
	"net/http"

	"resto_platform_backend/internal/services"
	"resto_platform_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// TenantHandler holds the tenant service.
type TenantHandler struct {
	tenantService services.TenantService
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(ts services.TenantService) *TenantHandler {
	return &TenantHandler{tenantService: ts}
}

func respondTenantError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, services.ErrChainNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Chain not found.", ""))
	case errors.Is(err, services.ErrBranchNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Branch not found.", ""))
	case errors.Is(err, services.ErrUserNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "User not found.", ""))
	case errors.Is(err, services.ErrChainExists):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "User already owns a chain.", ""))
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrRoleEscalation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, err.Error(), ""))
	case errors.Is(err, services.ErrInvalidRole), errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
	default:
		utils.LogError(err, action)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Internal server error.", "Internal error"))
	}
}

// CreateChain registers a new chain owned by the caller.
func (h *TenantHandler) CreateChain(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req services.CreateChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	chain, err := h.tenantService.CreateChain(p, req)
	if err != nil {
		respondTenantError(c, err, "CreateChain: Error from tenantService.CreateChain")
		return
	}
	c.JSON(http.StatusCreated, chain)
}

// GetChain returns the caller's chain.
func (h *TenantHandler) GetChain(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	chain, err := h.tenantService.GetChain(p)
	if err != nil {
		respondTenantError(c, err, "GetChain: Error from tenantService.GetChain")
		return
	}
	c.JSON(http.StatusOK, chain)
}

// CreateBranch opens a new branch under the caller's chain.
func (h *TenantHandler) CreateBranch(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req services.CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	branch, err := h.tenantService.CreateBranch(p, req)
	if err != nil {
		respondTenantError(c, err, "CreateBranch: Error from tenantService.CreateBranch")
		return
	}
	c.JSON(http.StatusCreated, branch)
}

// GetBranch returns one branch.
func (h *TenantHandler) GetBranch(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}

	branch, err := h.tenantService.GetBranch(p, branchID)
	if err != nil {
		respondTenantError(c, err, "GetBranch: Error from tenantService.GetBranch")
		return
	}
	c.JSON(http.StatusOK, branch)
}

// ListBranches lists the branches visible to the caller.
func (h *TenantHandler) ListBranches(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branches, err := h.tenantService.ListBranches(p)
	if err != nil {
		respondTenantError(c, err, "ListBranches: Error from tenantService.ListBranches")
		return
	}
	c.JSON(http.StatusOK, branches)
}

// UpdateBranch edits branch settings.
func (h *TenantHandler) UpdateBranch(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	var req services.UpdateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	branch, err := h.tenantService.UpdateBranch(p, branchID, req)
	if err != nil {
		respondTenantError(c, err, "UpdateBranch: Error from tenantService.UpdateBranch")
		return
	}
	c.JSON(http.StatusOK, branch)
}

// UpdateTiming tunes the branch's preparation-time settings.
func (h *TenantHandler) UpdateTiming(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	var req services.UpdateTimingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	branch, err := h.tenantService.UpdateTiming(p, branchID, req)
	if err != nil {
		respondTenantError(c, err, "UpdateTiming: Error from tenantService.UpdateTiming")
		return
	}
	c.JSON(http.StatusOK, branch)
}

// AssignUser grants a user a role at the branch.
func (h *TenantHandler) AssignUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	var req services.AssignUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	bu, err := h.tenantService.AssignUser(p, branchID, req)
	if err != nil {
		respondTenantError(c, err, "AssignUser: Error from tenantService.AssignUser")
		return
	}
	c.JSON(http.StatusCreated, bu)
}

// ListBranchUsers lists the branch's staff with their roles.
func (h *TenantHandler) ListBranchUsers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}

	users, err := h.tenantService.ListBranchUsers(p, branchID)
	if err != nil {
		respondTenantError(c, err, "ListBranchUsers: Error from tenantService.ListBranchUsers")
		return
	}
	c.JSON(http.StatusOK, users)
}

// RemoveUser revokes a user's role at the branch.
func (h *TenantHandler) RemoveUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	if err := h.tenantService.RemoveUser(p, branchID, userID); err != nil {
		respondTenantError(c, err, "RemoveUser: Error from tenantService.RemoveUser")
		return
	}
	c.Status(http.StatusNoContent)
}
