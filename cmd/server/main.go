package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	grpcapi "bookshare-backend/internal/api/grpc"
	httpapi "bookshare-backend/internal/api/http"
	"bookshare-backend/internal/config"
	"bookshare-backend/internal/events"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
	"bookshare-backend/internal/repository/memory"
	"bookshare-backend/internal/repository/postgres"
	"bookshare-backend/internal/security"
	"bookshare-backend/internal/service"
)

// backend is the selected persistence layer, split into the roles the
// services depend on.
type backend struct {
	tx       repository.Transactor
	ledgers  repository.LedgerRepository
	loans    repository.LoanRepository
	accounts repository.AccountRepository
	keys     repository.IdempotencyRepository
	audit    repository.AuditRepository
	pinger   interface{ Ping(ctx context.Context) error }
	close    func() error
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Bookshare Lending Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "grpc_address", cfg.GetGRPCAddress())

	// Initialize persistence
	store, err := openBackend(cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err)
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.close()

	// Initialize event publisher
	publisher, err := openPublisher(cfg)
	if err != nil {
		logger.Error("Failed to initialize event publisher", "error", err)
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}
	defer publisher.Close()

	// Initialize Services
	defaultTTL, overrides := cfg.IdempotencyTTLs()
	guard := service.NewIdempotencyGuard(store.keys, store.audit, defaultTTL, overrides, cfg.Idempotency.CacheSize)
	balanceSvc := service.NewBalanceService(store.tx, store.accounts, guard)
	inventorySvc := service.NewInventoryService(store.tx, store.ledgers, guard, publisher)
	lendingSvc := service.NewLendingService(
		store.tx,
		store.ledgers,
		store.loans,
		service.NewDepositLedger(balanceSvc),
		guard,
		publisher,
		service.LendingPolicy{
			DefaultLoanDays: cfg.Lending.DefaultLoanDays,
			MaxLoanDays:     cfg.Lending.MaxLoanDays,
			MaxExtendDays:   cfg.Lending.MaxExtendDays,
		},
	)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret)

	// Set up HTTP server
	router := httpapi.NewRouter(httpapi.Services{
		Inventory: inventorySvc,
		Lending:   lendingSvc,
		Balances:  balanceSvc,
		Store:     store.pinger,
	}, tokenManager)
	httpServer := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up gRPC health server
	var healthServer *grpcapi.HealthServer
	if addr := cfg.GetGRPCAddress(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("Failed to listen", "error", err, "address", addr)
			log.Fatalf("Failed to listen: %v", err)
		}
		healthServer = grpcapi.NewHealthServer(store.pinger, time.Duration(cfg.GRPC.HealthCheckIntervalSeconds)*time.Second)
		go healthServer.Watch(ctx)
		go func() {
			logger.Info("gRPC health server listening", "address", addr)
			if err := healthServer.Server().Serve(lis); err != nil {
				logger.Error("Failed to serve gRPC", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	if healthServer != nil {
		healthServer.Shutdown()
	}
	logger.Info("Server stopped. Goodbye!")
}

func openBackend(cfg *config.Config) (*backend, error) {
	if cfg.Store.Type == "memory" {
		logger.Warn("Using in-memory store; state is lost on restart")
		s := memory.NewStore()
		return &backend{
			tx:       s,
			ledgers:  s.LedgerRepository,
			loans:    s.LoanRepository,
			accounts: s.AccountRepository,
			keys:     s.IdempotencyRepository,
			audit:    s.AuditRepository,
			pinger:   s,
			close:    func() error { return nil },
		}, nil
	}

	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	s := postgres.NewStore(db)
	if cfg.Database.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Database schema applied")
	}
	return &backend{
		tx:       s,
		ledgers:  s.LedgerRepository,
		loans:    s.LoanRepository,
		accounts: s.AccountRepository,
		keys:     s.IdempotencyRepository,
		audit:    s.AuditRepository,
		pinger:   s,
		close:    db.Close,
	}, nil
}

func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.Events.Type != "amqp" {
		return events.NoopPublisher{}, nil
	}
	logger.Info("Publishing events to AMQP", "exchange", cfg.Events.Exchange)
	return events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
}
