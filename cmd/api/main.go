package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/lot-ledger/internal/application/audit"
	"github.com/jhoicas/lot-ledger/internal/application/core"
	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/application/lock"
	"github.com/jhoicas/lot-ledger/internal/application/usecase"
	"github.com/jhoicas/lot-ledger/internal/domain/repository"
	"github.com/jhoicas/lot-ledger/internal/infrastructure/kafka"
	"github.com/jhoicas/lot-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/lot-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/lot-ledger/internal/infrastructure/redislock"
	httpRouter "github.com/jhoicas/lot-ledger/internal/interfaces/http"
	"github.com/jhoicas/lot-ledger/pkg/config"
	"github.com/jhoicas/lot-ledger/pkg/logger"
	"github.com/jhoicas/lot-ledger/pkg/metrics"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.Storage).
		Msg("iniciando aplicación")

	m := metrics.New(metrics.Config{Namespace: "lot_ledger", Service: cfg.App.Name})
	ctx := context.Background()

	// Almacenamiento: PostgreSQL en producción, memoria para desarrollo y pruebas.
	var (
		txRunner   inventory.TxRunner
		stores     inventory.Stores
		warehouses repository.WarehouseRepository
	)
	switch cfg.App.Storage {
	case "memory":
		store := memory.NewStore(cfg.Ledger.TxTimeout, log)
		txRunner = memory.NewTxRunner(store)
		stores = store.Stores()
		warehouses = store.Warehouses()
		log.Warn().Msg("almacenamiento en memoria: los datos no sobreviven al reinicio")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB, log)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if cfg.DB.MigrateOnStart {
			if err := postgres.Migrate(ctx, pool); err != nil {
				log.Fatal().Err(err).Msg("migración del esquema")
			}
			log.Info().Msg("esquema migrado")
		}
		txRunner = postgres.NewTxRunner(pool, cfg.Ledger.TxTimeout, cfg.Ledger.LockTimeout, log, m)
		stores = postgres.NewStores(pool)
		warehouses = stores.Warehouses
	}

	// Bloqueos por código; con Redis se suma un lease entre instancias.
	lockOpts := []lock.Option{lock.WithMetrics(m), lock.WithLogger(log.Component("lock"))}
	if cfg.Redis.Enabled() {
		client, err := redislock.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis no disponible; solo bloqueos en proceso")
		} else {
			defer client.Close()
			lease := redislock.New(client, redislock.DefaultConfig(cfg.Redis.LockTTL), log, m)
			lockOpts = append(lockOpts, lock.WithDistributed(lease))
		}
	}
	locks := lock.New(lock.Config{Timeout: cfg.Ledger.LockTimeout, Shards: cfg.Ledger.LockShards}, lockOpts...)

	prefixes := inventory.NewPrefixTable(cfg.Warehouses)
	warehouseUC := usecase.NewWarehouseUseCase(warehouses, prefixes, log)
	if err := warehouseUC.Sync(ctx); err != nil {
		log.Fatal().Err(err).Msg("sincronizar bodegas")
	}

	codes := inventory.NewCodeGenerator(stores.Codes, prefixes, locks, inventory.CodeGeneratorConfig{
		MaxAttempts: cfg.Ledger.CodegenMaxAttempts,
		Backoff:     cfg.Ledger.CodegenBackoff,
	}, log, m)
	ledger := inventory.NewLedger(txRunner, locks, stores, codes,
		inventory.WithLogger(log),
		inventory.WithMetrics(m),
		inventory.WithRetryPolicy(inventory.RetryPolicy{
			MaxAttempts:     cfg.Ledger.RetryMaxAttempts,
			InitialInterval: cfg.Ledger.RetryInitialInterval,
			MaxInterval:     cfg.Ledger.RetryMaxInterval,
		}),
	)

	auditOpts := []audit.Option{audit.WithLogger(log), audit.WithMetrics(m)}
	if cfg.Kafka.Enabled() {
		publisher := kafka.NewCorrectionPublisher(cfg.Kafka, cfg.App.Name)
		defer publisher.Close()
		auditOpts = append(auditOpts, audit.WithSink(publisher))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.AuditTopic).Msg("publicación de correcciones habilitada")
	}
	auditor := audit.NewAuditor(stores, ledger, auditOpts...)
	scheduler := audit.NewScheduler(auditor, cfg.Audit.Interval, audit.Options{AutoRepair: cfg.Audit.AutoRepair}, log)
	scheduler.Start(ctx)

	svc := core.NewService(codes, ledger, auditor, cfg.Audit.AutoRepair)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.Ledger.LockTimeout + cfg.Ledger.TxTimeout,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Lot Ledger API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "storage": cfg.App.Storage})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Service:         svc,
		WarehouseUC:     warehouseUC,
		Scheduler:       scheduler,
		Metrics:         m,
		AuditAutoRepair: cfg.Audit.AutoRepair,
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
	scheduler.Stop()

	log.Info().Msg("aplicación detenida")
}
