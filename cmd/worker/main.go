package main

import (
	"context"
	"crypto/tls"
	"errors"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jhoicas/Facturacion-ecf/internal/application/billing"
	infradgii "github.com/jhoicas/Facturacion-ecf/internal/infrastructure/dgii"
	"github.com/jhoicas/Facturacion-ecf/internal/infrastructure/dgii/signer"
	"github.com/jhoicas/Facturacion-ecf/internal/infrastructure/postgres"
	"github.com/jhoicas/Facturacion-ecf/internal/jobs"
	"github.com/jhoicas/Facturacion-ecf/pkg/config"
	"github.com/jhoicas/Facturacion-ecf/pkg/logger"
	"github.com/redis/go-redis/v9"
)

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
		Str("dgii_env", cfg.DGII.Environment).
		Int("concurrency", cfg.Worker.Concurrency).
		Msg("iniciando worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	rangeRepo := postgres.NewSequenceRangeRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

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

	// El worker firma y envía: sin certificado no puede operar.
	if cfg.DGII.CertPath == "" {
		log.Fatal().Msg("DGII_CERT_PATH es obligatorio para el worker")
	}
	var cert tls.Certificate
	if cfg.DGII.CertKeyPath != "" {
		cert, err = signer.LoadFromPEM(cfg.DGII.CertPath, cfg.DGII.CertKeyPath)
	} else {
		cert, err = signer.LoadFromP12(cfg.DGII.CertPath, cfg.DGII.CertPassword)
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DGII.CertPath).Msg("carga del certificado de firma")
	}

	firmador := signer.NewFirmaService()
	xmlBuilder := infradgii.NewXMLBuilderService()
	apiClient := infradgii.NewAPIClient(cfg.DGII, cert, firmador, tokenCache, log)

	orchestrator := billing.NewECFOrchestrator(
		txRunner, invoiceRepo, companyRepo, rangeRepo,
		xmlBuilder, firmador, apiClient, cert,
		cfg.DGII.Environment, log,
	)
	monitor := billing.NewContingencyMonitor(txRunner, invoiceRepo, enqueuer, cfg.DGII.ContingencyHours, log)

	worker, err := jobs.NewWorker(redisOpts, cfg.Worker, orchestrator, monitor, log)
	if err != nil {
		log.Fatal().Err(err).Msg("construcción del worker")
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("worker finalizado con error")
	}
	log.Info().Msg("worker detenido")
}
