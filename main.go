package main

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"remediation-service/internal/config"
	"remediation-service/internal/domain"
	"remediation-service/internal/executor"
	"remediation-service/internal/metrics"
	"remediation-service/internal/policy"
	"remediation-service/internal/publisher"
	"remediation-service/internal/repository"
	"remediation-service/internal/server"
	"remediation-service/internal/service"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn("Could not load .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err).Fatal("Could not load configuration")
	}

	log.Info("Starting database migration...")
	m, err := migrate.New("file://db/migrations", cfg.DB.URL)
	if err != nil {
		log.WithField("error", err).Fatal("Could not create migrate instance")
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.WithField("error", err).Fatal("Could not apply migration")
	}
	log.Info("Database migration finished successfully.")

	db, err := sql.Open("postgres", cfg.DB.URL)
	if err != nil {
		log.WithField("error", err).Fatal("Could not connect to the database")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DB.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		log.WithField("error", err).Fatal("Could not ping the database")
	}
	log.Info("Successfully connected to the PostgreSQL database.")

	// Policy configuration. A missing file means allow-all proposals and,
	// because execution grants are secure by default, deny-all execution.
	policyFile := &policy.File{}
	if loaded, err := policy.LoadFile(cfg.Policy.File); err != nil {
		log.WithError(err).WithField("file", cfg.Policy.File).Warn("Could not load policy file, starting with empty policy")
	} else {
		policyFile = loaded
	}

	catalog := domain.NewActionTypeCatalog(policyFile.CatalogDefinitions())
	proposalGate := policy.NewDenyListProposalGate(policyFile.DeniedProposals)
	executionGate := policy.NewTenantGrantGate(policyFile.ExecutionGrants)
	throttle := policy.NewExecutionThrottle(
		cfg.Throttle.Enabled,
		time.Duration(cfg.Throttle.WindowSeconds)*time.Second,
		cfg.Throttle.MaxAttempts,
	)

	var exec executor.Executor
	switch cfg.Executor.Mode {
	case "webhook":
		exec = executor.NewWebhookExecutor(nil, executor.NewTargetURLValidator())
		log.Info("Using webhook executor")
	default:
		exec = executor.NewDryRunExecutor()
		log.Info("Using dry-run executor")
	}

	var auditService *service.AuditService
	if cfg.Kafka.BootstrapServers != "" {
		auditPublisher, err := publisher.NewAuditPublisher(cfg.Kafka.BootstrapServers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.WithField("error", err).Fatal("Could not create audit publisher")
		}
		defer auditPublisher.Close()
		auditService = service.NewAuditService(auditPublisher)
	}

	recorder := metrics.NewRecorder()

	// Create repository
	actionRepository := repository.NewPostgresActionRepository(db)

	// Create service
	lifecycleService := service.NewLifecycleService(
		actionRepository,
		catalog,
		proposalGate,
		executionGate,
		throttle,
		exec,
		auditService,
		recorder,
	)

	// Create server
	identityResolver := server.NewIdentityResolver(cfg.Identity.AllowAnonymous)
	srv := server.NewServer(lifecycleService, identityResolver, db)

	// Setup Echo
	e := echo.New()

	// Health check and metrics
	e.GET("/health", srv.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Lifecycle endpoints
	api := e.Group("/api")
	actions := api.Group("/actions")
	actions.POST("", srv.ProposeAction)
	actions.GET("", srv.ListActions)
	actions.GET("/:id", srv.GetAction)
	actions.POST("/:id/approve", srv.ApproveAction)
	actions.POST("/:id/reject", srv.RejectAction)
	actions.POST("/:id/execute", srv.ExecuteAction)
	actions.POST("/:id/rollback", srv.RequestRollback)
	actions.POST("/:id/rollback/approve", srv.ApproveRollback)
	actions.POST("/:id/rollback/reject", srv.RejectRollback)
	actions.POST("/:id/rollback/execute", srv.ExecuteRollback)

	log.WithField("port", cfg.Server.Port).Info("Remediation service is starting with Echo")

	if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
		log.WithField("error", err).Fatal("Echo server failed to start")
	}
}
