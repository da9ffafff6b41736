package main

import (
	"strings"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/assembly"
	"fulfillment-backend/internal/audit"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/batch"
	"fulfillment-backend/internal/catalog"
	"fulfillment-backend/internal/config"
	"fulfillment-backend/internal/database"
	"fulfillment-backend/internal/ledger"
	"fulfillment-backend/internal/lineitem"
	"fulfillment-backend/internal/logger"
	"fulfillment-backend/internal/metrics"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/printbridge"
	"fulfillment-backend/internal/settlement"
	"fulfillment-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.AppEnv)
	defer func() { _ = log.Sync() }()

	database.Init(cfg, log)
	db := database.DB

	l := ledger.New(db, log)
	lineItems := lineitem.NewService(db, l, log)
	stockSvc := stock.NewService(db, log)
	assemblySvc := assembly.NewService(db)
	settlementSvc := settlement.NewService(db, l, lineItems, log)
	batches := batch.NewManager(db, log)
	bridge := printbridge.New(cfg.PrintBridgeURL, cfg.PrintBridgeTimeout, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: apperror.Handler(log),
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.Middleware(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	if cfg.MetricsEnabled {
		app.Use(metrics.Middleware())
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	}
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(cfg, db))

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	write := auth.RequireRole(models.WriteRoles...)
	admin := auth.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)

	protected.Get("/auth/me", auth.MeHandler(db))
	protected.Post("/admin/users", admin, auth.CreateUserHandler(db))

	// Catalog
	protected.Get("/blanks", catalog.ListBlanksHandler(db))
	protected.Post("/blanks", admin, catalog.CreateBlankHandler(db))
	protected.Post("/blanks/:id/variants", admin, catalog.CreateBlankVariantHandler(db))
	protected.Put("/blank-variants/:id", admin, catalog.UpdateBlankVariantHandler(db))
	protected.Get("/products", catalog.ListProductsHandler(db))
	protected.Post("/products", admin, catalog.CreateProductHandler(db))
	protected.Put("/products/:id", admin, catalog.UpdateProductHandler(db))
	protected.Post("/products/:id/variants", admin, catalog.CreateProductVariantHandler(db))
	protected.Put("/product-variants/:id", admin, catalog.UpdateProductVariantHandler(db))
	protected.Post("/products/:id/prints", admin, catalog.CreatePrintHandler(db))
	protected.Delete("/prints/:id", admin, catalog.DeletePrintHandler(db))

	// Orders
	protected.Get("/orders", catalog.ListOrdersHandler(db))
	protected.Get("/orders/:id", catalog.GetOrderHandler(db))
	protected.Post("/orders", write, catalog.CreateOrderHandler(db))
	protected.Post("/orders/import", write, catalog.ImportOrdersHandler(db))
	protected.Post("/orders/:id/line-items", write, catalog.AddLineItemHandler(db))
	protected.Post("/orders/:id/holds", write, catalog.PlaceHoldHandler(db))
	protected.Post("/holds/:id/resolve", write, catalog.ResolveHoldHandler(db))

	// Line items
	protected.Put("/line-items/:id", write, catalog.UpdateLineItemHandler(db))
	protected.Post("/line-items/:id/status", write, lineitem.TransitionHandler(lineItems))
	protected.Post("/line-items/:id/prints/:printId", write, lineitem.PrintToggleHandler(lineItems))
	protected.Post("/line-items/:id/reset", write, lineitem.ResetHandler(lineItems))
	protected.Post("/line-items/:id/reverse-inventory", write, lineitem.ReverseInventoryHandler(lineItems))

	// Inventory ledger
	protected.Get("/inventory/transactions", ledger.ListHandler(l))
	protected.Post("/inventory/transactions", write, ledger.RecordHandler(l))

	// Batches
	protected.Get("/batches", batch.ListHandler(batches))
	protected.Get("/batches/:id", batch.GetHandler(batches))
	protected.Post("/batches", write, batch.CreateHandler(batches))
	protected.Post("/batches/:id/activate", write, batch.ActivateHandler(batches))
	protected.Post("/batches/:id/deactivate", write, batch.DeactivateHandler(batches))
	protected.Post("/batches/:id/orders", write, batch.AttachOrdersHandler(batches))
	protected.Delete("/batches/:id/orders/:orderId", write, batch.DetachOrderHandler(batches))
	protected.Post("/batches/:id/verify/:kind", write, batch.MarkVerifiedHandler(batches))
	protected.Delete("/batches/:id/verify/:kind", write, batch.ResetVerificationHandler(batches))
	protected.Post("/batches/:id/settle", write, batch.SettleHandler(batches))

	// Stock gate
	protected.Get("/batches/:id/stock-requirements", stock.RequirementsHandler(stockSvc))
	protected.Get("/batches/:id/blank-stock", stock.BlankStockHandler(stockSvc))
	protected.Get("/batches/:id/premade-stock", stock.PremadeStockHandler(stockSvc))
	protected.Get("/batches/:id/picking-list.xlsx", stock.PickingListHandler(stockSvc))
	protected.Post("/batches/:id/blank-stock/verify", write, stock.VerifyBlankHandler(stockSvc))
	protected.Post("/batches/:id/premade-stock/verify", write, stock.VerifyPremadeHandler(stockSvc))

	// Assembly line
	protected.Get("/batches/:id/assembly-line", assembly.LineHandler(assemblySvc))
	protected.Get("/batches/:id/assembly-line/:lineItemId/position", assembly.PositionHandler(assemblySvc))

	// Settlement
	protected.Get("/batches/:id/settlement", settlement.DataHandler(settlementSvc))
	protected.Post("/batches/:id/settlement/status", write, settlement.UpdateStatusHandler(settlementSvc))
	protected.Post("/batches/:id/settlement/adjust-inventory", write, settlement.AdjustInventoryHandler(settlementSvc))
	protected.Post("/batches/:id/settlement/reverse", write, settlement.ReverseHandler(settlementSvc))

	// Print bridge
	protected.Get("/print-bridge/status", printbridge.StatusHandler(bridge))
	protected.Post("/print-bridge/exists", printbridge.ExistsHandler(bridge, db))
	protected.Post("/print-bridge/open", write, printbridge.OpenHandler(bridge, db))

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler(db))

	log.Info("server listening", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
