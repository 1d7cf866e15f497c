package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Facturacion-ecf/internal/application/auth"
	"github.com/jhoicas/Facturacion-ecf/internal/application/billing"
	"github.com/jhoicas/Facturacion-ecf/internal/application/usecase"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CompanyUC     *usecase.CompanyUseCase
	PadronUC      *usecase.PadronUseCase
	CreateInvoice *billing.CreateInvoiceUseCase
	VoidInvoice   *billing.VoidInvoiceUseCase
	SequenceUC    *billing.SequenceUseCase
	Orchestrator  *billing.ECFOrchestrator
	AuthUC        *auth.AuthUseCase
	Health        *HealthHandler
	JWTSecret     string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	// Sonda de disponibilidad (público, sin /api)
	app.Get("/health/ready", deps.Health.Ready)

	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	soloAdmin := RequireRole(entity.RoleAdmin)
	emiteAnula := RequireRole(entity.RoleAdmin, entity.RoleEmisor)

	// Companies (protegido; alta y edición solo admin)
	companies := protected.Group("/companies")
	companyHandler := NewCompanyHandler(deps.CompanyUC)
	companies.Get("/", companyHandler.List)
	companies.Post("/", soloAdmin, companyHandler.Create)
	companies.Get("/:id", companyHandler.GetByID)
	companies.Put("/:id", soloAdmin, companyHandler.Update)

	// Sequences (protegido; registro y baja solo admin)
	sequences := protected.Group("/sequences")
	sequenceHandler := NewSequenceHandler(deps.SequenceUC)
	sequences.Post("/", soloAdmin, sequenceHandler.Register)
	sequences.Get("/", sequenceHandler.List)
	sequences.Post("/:id/deactivate", soloAdmin, sequenceHandler.Deactivate)

	// Padrón DGII (protegido; consulta para cualquier rol)
	padron := protected.Group("/padron")
	padronHandler := NewPadronHandler(deps.PadronUC)
	padron.Get("/", padronHandler.Search)
	padron.Get("/:rnc", padronHandler.Lookup)

	// Invoices (protegido; emisión y anulación requieren rol emisor)
	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.CreateInvoice, deps.VoidInvoice, deps.Orchestrator)
	invoices.Post("/", emiteAnula, invoiceHandler.Create)
	invoices.Get("/", invoiceHandler.List)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Get("/:id/status", invoiceHandler.Status)
	invoices.Post("/:id/refresh-status", emiteAnula, invoiceHandler.RefreshStatus)
	invoices.Post("/:id/void", emiteAnula, invoiceHandler.Void)
}
