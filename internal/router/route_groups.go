package router

import (
	"resto_platform_backend/internal/handlers"
	"resto_platform_backend/internal/middleware"
	"resto_platform_backend/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes sets up the authentication routes.
func SetupAuthRoutes(apiGroup *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	authRoutes := apiGroup.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh-token", authHandler.Refresh)

		authRequiredRoutes := authRoutes.Group("")
		authRequiredRoutes.Use(middleware.AuthMiddleware())
		{
			authRequiredRoutes.GET("/me", authHandler.Profile)
		}
	}
}

// SetupPublicRoutes sets up the unauthenticated customer ordering surface:
// the live menu and order placement for web and mobile channels.
func SetupPublicRoutes(apiGroup *gin.RouterGroup, menuHandler *handlers.MenuHandler, orderHandler *handlers.OrderHandler) {
	publicRoutes := apiGroup.Group("/public/branches/:branchID")
	{
		publicRoutes.GET("/menu", menuHandler.GetPublicMenu)
		publicRoutes.POST("/orders", orderHandler.CreatePublicOrder)
	}
}

// SetupTenantRoutes sets up chain and branch management routes.
func SetupTenantRoutes(authenticatedGroup *gin.RouterGroup, tenantHandler *handlers.TenantHandler) {
	chainRoutes := authenticatedGroup.Group("/chains")
	{
		chainRoutes.POST("", tenantHandler.CreateChain)
		chainRoutes.GET("/mine", tenantHandler.GetChain)
	}

	branchRoutes := authenticatedGroup.Group("/branches")
	{
		branchRoutes.GET("", tenantHandler.ListBranches)
		branchRoutes.POST("", tenantHandler.CreateBranch)
		branchRoutes.GET("/:branchID", tenantHandler.GetBranch)
		branchRoutes.PUT("/:branchID", tenantHandler.UpdateBranch)

		managerRoutes := branchRoutes.Group("")
		managerRoutes.Use(middleware.RoleAuthMiddleware(models.RoleBranchManager))
		{
			managerRoutes.PUT("/:branchID/timing", tenantHandler.UpdateTiming)
			managerRoutes.POST("/:branchID/users", tenantHandler.AssignUser)
			managerRoutes.GET("/:branchID/users", tenantHandler.ListBranchUsers)
			managerRoutes.DELETE("/:branchID/users/:userID", tenantHandler.RemoveUser)
		}
	}
}

// SetupMenuRoutes sets up the catalog management routes.
func SetupMenuRoutes(authenticatedGroup *gin.RouterGroup, menuHandler *handlers.MenuHandler) {
	menuRoutes := authenticatedGroup.Group("/branches/:branchID/menu")
	{
		readRoutes := menuRoutes.Group("")
		{
			readRoutes.GET("/categories", menuHandler.ListCategories)
			readRoutes.GET("/items", menuHandler.ListItems)
			readRoutes.GET("/items/:itemID", menuHandler.GetItem)
		}

		writeRoutes := menuRoutes.Group("")
		writeRoutes.Use(middleware.RoleAuthMiddleware(models.RoleBranchManager))
		{
			writeRoutes.POST("/categories", menuHandler.CreateCategory)
			writeRoutes.PUT("/categories/:categoryID", menuHandler.UpdateCategory)
			writeRoutes.POST("/items", menuHandler.CreateItem)
			writeRoutes.PUT("/items/:itemID", menuHandler.UpdateItem)
		}
	}
}

// SetupOrderRoutes sets up the order lifecycle and refund routes.
func SetupOrderRoutes(authenticatedGroup *gin.RouterGroup, orderHandler *handlers.OrderHandler) {
	orderRoutes := authenticatedGroup.Group("/branches/:branchID/orders")
	orderRoutes.Use(middleware.RoleAuthMiddleware(models.RoleBranchManager, models.RoleBranchStaff, models.RoleBranchCashier))
	{
		orderRoutes.POST("", orderHandler.CreateOrder)
		orderRoutes.GET("", orderHandler.GetOrders)
		orderRoutes.GET("/:orderID", orderHandler.GetOrder)

		orderRoutes.POST("/:orderID/start-preparing", orderHandler.StartPreparing)
		orderRoutes.POST("/:orderID/ready", orderHandler.MarkReady)
		orderRoutes.POST("/:orderID/complete", orderHandler.CompleteOrder)
		orderRoutes.POST("/:orderID/reject", orderHandler.RejectOrder)
		orderRoutes.POST("/:orderID/cancel", orderHandler.CancelOrder)

		orderRoutes.PATCH("/:orderID/timing", orderHandler.AdjustTiming)
		orderRoutes.PATCH("/:orderID/items", orderHandler.EditOrderItem)
		orderRoutes.GET("/:orderID/item-changes", orderHandler.ListItemChanges)

		refundRoutes := orderRoutes.Group("")
		refundRoutes.Use(middleware.RoleAuthMiddleware(models.RoleBranchManager, models.RoleBranchCashier))
		{
			refundRoutes.POST("/:orderID/refunds", orderHandler.CreateRefund)
			refundRoutes.GET("/:orderID/refunds", orderHandler.ListRefunds)
		}
	}
}

// SetupClosingRoutes sets up the daily closing routes.
func SetupClosingRoutes(authenticatedGroup *gin.RouterGroup, closingHandler *handlers.ClosingHandler) {
	closingRoutes := authenticatedGroup.Group("/branches/:branchID/closings")
	closingRoutes.Use(middleware.RoleAuthMiddleware(models.RoleBranchManager, models.RoleBranchCashier))
	{
		closingRoutes.POST("", closingHandler.StartClosing)
		closingRoutes.GET("", closingHandler.ListClosings)
		closingRoutes.GET("/:closingID", closingHandler.GetClosing)
		closingRoutes.POST("/:closingID/complete", closingHandler.CompleteClosing)
		closingRoutes.POST("/:closingID/cancel", closingHandler.CancelClosing)
		closingRoutes.GET("/:closingID/audit", closingHandler.ListAuditEntries)
	}
}

// SetupPresetRoutes sets up the catalog preset routes.
func SetupPresetRoutes(authenticatedGroup *gin.RouterGroup, presetHandler *handlers.PresetHandler) {
	presetRoutes := authenticatedGroup.Group("/branches/:branchID/presets")
	presetRoutes.Use(middleware.RoleAuthMiddleware(models.RoleBranchManager))
	{
		presetRoutes.POST("", presetHandler.CreatePreset)
		presetRoutes.GET("", presetHandler.ListPresets)
		presetRoutes.GET("/:presetID", presetHandler.GetPreset)
		presetRoutes.PUT("/:presetID", presetHandler.UpdatePreset)
		presetRoutes.DELETE("/:presetID", presetHandler.DeletePreset)
		presetRoutes.POST("/:presetID/apply", presetHandler.ApplyPreset)
		presetRoutes.POST("/deactivate", presetHandler.DeactivatePreset)
	}
}

// SetupReportRoutes sets up the sales reporting routes.
func SetupReportRoutes(authenticatedGroup *gin.RouterGroup, reportHandler *handlers.ReportHandler) {
	reportRoutes := authenticatedGroup.Group("/branches/:branchID/reports")
	reportRoutes.Use(middleware.RoleAuthMiddleware(models.RoleBranchManager, models.RoleBranchStaff, models.RoleBranchCashier))
	{
		reportRoutes.GET("/sales", reportHandler.SalesSummary)
		reportRoutes.GET("/daily", reportHandler.DailySummary)
	}
}
