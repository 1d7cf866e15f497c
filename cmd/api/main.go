package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/jhoicas/Facturacion-ecf/internal/application/auth"
	"github.com/jhoicas/Facturacion-ecf/internal/application/billing"
	"github.com/jhoicas/Facturacion-ecf/internal/application/usecase"
	infradgii "github.com/jhoicas/Facturacion-ecf/internal/infrastructure/dgii"
	"github.com/jhoicas/Facturacion-ecf/internal/infrastructure/dgii/signer"
	"github.com/jhoicas/Facturacion-ecf/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/Facturacion-ecf/internal/interfaces/http"
	"github.com/jhoicas/Facturacion-ecf/internal/jobs"
	"github.com/jhoicas/Facturacion-ecf/pkg/config"
	"github.com/jhoicas/Facturacion-ecf/pkg/logger"
	"github.com/redis/go-redis/v9"

	_ "github.com/jhoicas/Facturacion-ecf/docs" // registro del spec swagger
)

// @title        Facturación e-CF API
// @version      1.0
// @description  Emisión de comprobantes fiscales electrónicos (e-CF) ante la DGII: rangos de secuencia, validación, firma y seguimiento de estado.
// @BasePath     /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("dgii_env", cfg.DGII.Environment).
		Msg("iniciando API")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	rangeRepo := postgres.NewSequenceRangeRepository(pool)
	contingencyRepo := postgres.NewContingencyRepository(pool)
	padronRepo := postgres.NewPadronRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Redis: caché de tokens DGII + cola asynq
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	tokenCache := infradgii.NewRedisTokenCache(rdb)

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	enqueuer := jobs.NewClient(redisOpts)
	defer enqueuer.Close()
	inspector := asynq.NewInspector(redisOpts)

	// Certificado de firma e-CF. Sin certificado el API sigue operando
	// (emite y consulta); el envío lo hará el worker cuando el certificado
	// esté montado.
	cert := loadCert(cfg.DGII, log)

	firmador := signer.NewFirmaService()
	xmlBuilder := infradgii.NewXMLBuilderService()
	apiClient := infradgii.NewAPIClient(cfg.DGII, cert, firmador, tokenCache, log)

	orchestrator := billing.NewECFOrchestrator(
		txRunner, invoiceRepo, companyRepo, rangeRepo,
		xmlBuilder, firmador, apiClient, cert,
		cfg.DGII.Environment, log,
	)

	createInvoiceUC := billing.NewCreateInvoiceUseCase(txRunner, companyRepo, invoiceRepo, enqueuer, log)
	voidInvoiceUC := billing.NewVoidInvoiceUseCase(txRunner, invoiceRepo, log)
	sequenceUC := billing.NewSequenceUseCase(txRunner, rangeRepo, log)
	companyUC := usecase.NewCompanyUseCase(companyRepo)
	padronUC := usecase.NewPadronUseCase(padronRepo)
	authUC := auth.NewAuthUseCase(userRepo, companyRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	healthHandler := httpRouter.NewHealthHandler(pool, rdb, inspector, invoiceRepo, contingencyRepo)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturación e-CF API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		CompanyUC:     companyUC,
		PadronUC:      padronUC,
		CreateInvoice: createInvoiceUC,
		VoidInvoice:   voidInvoiceUC,
		SequenceUC:    sequenceUC,
		Orchestrator:  orchestrator,
		AuthUC:        authUC,
		Health:        healthHandler,
		JWTSecret:     cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("API detenida")
}

// loadCert carga el certificado de firma según la configuración: PEM separado
// si hay key path, .p12 en caso contrario. Devuelve un certificado vacío si no
// hay ruta configurada o la carga falla.
func loadCert(cfg config.DGIIConfig, log *logger.Logger) tls.Certificate {
	if cfg.CertPath == "" {
		log.Warn().Msg("DGII_CERT_PATH no configurado: firma y envío deshabilitados")
		return tls.Certificate{}
	}
	var (
		cert tls.Certificate
		err  error
	)
	if cfg.CertKeyPath != "" {
		cert, err = signer.LoadFromPEM(cfg.CertPath, cfg.CertKeyPath)
	} else {
		cert, err = signer.LoadFromP12(cfg.CertPath, cfg.CertPassword)
	}
	if err != nil {
		log.Error().Err(err).Str("path", cfg.CertPath).Msg("carga del certificado de firma")
		return tls.Certificate{}
	}
	log.Info().Str("path", cfg.CertPath).Msg("certificado de firma cargado")
	return cert
}
