package router

import (
	"database/sql"

	"resto_platform_backend/internal/handlers"
	"resto_platform_backend/internal/jobs"
	"resto_platform_backend/internal/marketplace"
	"resto_platform_backend/internal/middleware"
	"resto_platform_backend/internal/payments"
	"resto_platform_backend/internal/repositories"
	"resto_platform_backend/internal/services"
	"resto_platform_backend/internal/websrm"

	"github.com/gin-gonic/gin"
)

// Dependencies carries the externally constructed clients the router wires
// into services. All of them are interfaces so tests can substitute stubs.
type Dependencies struct {
	Refunds     payments.RefundClient
	Fiscal      websrm.Client
	Marketplace marketplace.Client
	Enqueuer    jobs.Enqueuer
}

// Services bundles the constructed service layer so cmd/server can reuse the
// same instances for its background loops.
type Services struct {
	Auth    services.AuthService
	Tenant  services.TenantService
	Menu    services.MenuService
	Order   services.OrderService
	Refund  services.RefundService
	Closing services.ClosingService
	Preset  services.PresetService
	Report  services.ReportService
	Sync    services.SyncService

	TenantRepo repositories.TenantRepository
}

// Setup initializes the routing for the application and returns the service
// layer for background use.
func Setup(engine *gin.Engine, db *sql.DB, deps Dependencies) *Services {
	// Initialize Repositories
	authRepo := repositories.NewAuthRepository(db)
	tenantRepo := repositories.NewTenantRepository(db)
	menuRepo := repositories.NewMenuRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	closingRepo := repositories.NewClosingRepository(db)
	presetRepo := repositories.NewPresetRepository(db)

	// Initialize Services
	authService := services.NewAuthService(authRepo, tenantRepo)
	tenantService := services.NewTenantService(tenantRepo, authRepo, db)
	menuService := services.NewMenuService(menuRepo, tenantRepo, db)
	orderService := services.NewOrderService(orderRepo, menuRepo, tenantRepo, deps.Refunds, deps.Enqueuer)
	refundService := services.NewRefundService(orderRepo, tenantRepo, deps.Refunds, deps.Enqueuer)
	closingService := services.NewClosingService(closingRepo, tenantRepo, deps.Fiscal, deps.Enqueuer)
	presetService := services.NewPresetService(presetRepo, menuRepo, tenantRepo)
	reportService := services.NewReportService(closingRepo, tenantRepo)
	syncService := services.NewSyncService(orderRepo, tenantRepo, deps.Marketplace)

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	tenantHandler := handlers.NewTenantHandler(tenantService)
	menuHandler := handlers.NewMenuHandler(menuService)
	orderHandler := handlers.NewOrderHandler(orderService, refundService)
	closingHandler := handlers.NewClosingHandler(closingService)
	presetHandler := handlers.NewPresetHandler(presetService)
	reportHandler := handlers.NewReportHandler(reportService)
	webhookHandler := handlers.NewWebhookHandler(deps.Enqueuer)

	apiV1 := engine.Group("/api/v1")

	// Public routes: authentication plus the customer ordering surface.
	SetupAuthRoutes(apiV1, authHandler)
	SetupPublicRoutes(apiV1, menuHandler, orderHandler)
	apiV1.POST("/webhooks/payments", webhookHandler.PaymentWebhook)

	// Authenticated routes, role-gated per group.
	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware())
	{
		SetupTenantRoutes(authenticated, tenantHandler)
		SetupMenuRoutes(authenticated, menuHandler)
		SetupOrderRoutes(authenticated, orderHandler)
		SetupClosingRoutes(authenticated, closingHandler)
		SetupPresetRoutes(authenticated, presetHandler)
		SetupReportRoutes(authenticated, reportHandler)
	}

	return &Services{
		Auth:       authService,
		Tenant:     tenantService,
		Menu:       menuService,
		Order:      orderService,
		Refund:     refundService,
		Closing:    closingService,
		Preset:     presetService,
		Report:     reportService,
		Sync:       syncService,
		TenantRepo: tenantRepo,
	}
}
