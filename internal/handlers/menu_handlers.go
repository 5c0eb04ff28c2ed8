package handlers

import (
	"errors"
	"net/http"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/services"
	"resto_platform_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// MenuHandler holds the menu service.
type MenuHandler struct {
	menuService services.MenuService
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(ms services.MenuService) *MenuHandler {
	return &MenuHandler{menuService: ms}
}

func respondMenuError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, services.ErrBranchNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Branch not found.", ""))
	case errors.Is(err, services.ErrCategoryNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Menu category not found.", ""))
	case errors.Is(err, services.ErrItemNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Menu item not found.", ""))
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
	default:
		utils.LogError(err, action)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Internal server error.", "Internal error"))
	}
}

// CreateCategory creates a menu category.
func (h *MenuHandler) CreateCategory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	var req services.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	category, err := h.menuService.CreateCategory(p, branchID, req)
	if err != nil {
		respondMenuError(c, err, "CreateCategory: Error from menuService.CreateCategory")
		return
	}
	c.JSON(http.StatusCreated, category)
}

// ListCategories lists every category of the branch, active or not.
func (h *MenuHandler) ListCategories(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}

	categories, err := h.menuService.ListCategories(p, branchID)
	if err != nil {
		respondMenuError(c, err, "ListCategories: Error from menuService.ListCategories")
		return
	}
	c.JSON(http.StatusOK, categories)
}

// UpdateCategory edits a category.
func (h *MenuHandler) UpdateCategory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	categoryID, ok := pathID(c, "categoryID")
	if !ok {
		return
	}
	var req services.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	category, err := h.menuService.UpdateCategory(p, branchID, categoryID, req)
	if err != nil {
		respondMenuError(c, err, "UpdateCategory: Error from menuService.UpdateCategory")
		return
	}
	c.JSON(http.StatusOK, category)
}

// CreateItem creates a menu item.
func (h *MenuHandler) CreateItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	var req services.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	item, err := h.menuService.CreateItem(p, branchID, req)
	if err != nil {
		respondMenuError(c, err, "CreateItem: Error from menuService.CreateItem")
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetItem returns one menu item.
func (h *MenuHandler) GetItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}

	item, err := h.menuService.GetItem(p, branchID, itemID)
	if err != nil {
		respondMenuError(c, err, "GetItem: Error from menuService.GetItem")
		return
	}
	c.JSON(http.StatusOK, item)
}

// ListItems lists catalog items with optional filters.
func (h *MenuHandler) ListItems(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}

	var filters models.MenuFilters
	if categoryIDStr := c.Query("category_id"); categoryIDStr != "" {
		categoryID, err := utils.StrToInt64(categoryIDStr)
		if err == nil {
			filters.CategoryID = &categoryID
		}
	}
	filters.ActiveOnly = c.Query("active_only") == "true"

	items, err := h.menuService.ListItems(p, branchID, filters)
	if err != nil {
		respondMenuError(c, err, "ListItems: Error from menuService.ListItems")
		return
	}
	c.JSON(http.StatusOK, items)
}

// UpdateItem edits a menu item.
func (h *MenuHandler) UpdateItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}
	var req services.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	item, err := h.menuService.UpdateItem(p, branchID, itemID, req)
	if err != nil {
		respondMenuError(c, err, "UpdateItem: Error from menuService.UpdateItem")
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetPublicMenu serves the unauthenticated customer-facing catalog.
func (h *MenuHandler) GetPublicMenu(c *gin.Context) {
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}

	menu, err := h.menuService.GetPublicMenu(branchID)
	if err != nil {
		respondMenuError(c, err, "GetPublicMenu: Error from menuService.GetPublicMenu")
		return
	}
	c.JSON(http.StatusOK, menu)
}
