package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"hoa-ledger/config"
	"hoa-ledger/internal/commands"
	"hoa-ledger/internal/handler"
	"hoa-ledger/internal/locker"
	"hoa-ledger/internal/metrics"
	"hoa-ledger/internal/outbox"
	ledgerredis "hoa-ledger/internal/redis"
	"hoa-ledger/internal/repository"
	"hoa-ledger/internal/server"
	"hoa-ledger/internal/services"
	"hoa-ledger/internal/storage"
	"hoa-ledger/internal/websocket"
	"hoa-ledger/pkg/database"
	"hoa-ledger/pkg/logger"
	"hoa-ledger/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.App.Mode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		l.Logger.Fatal("Failed to set up tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		l.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		l.Logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	ledgerredis.Initialize(cfg.Redis)
	rdb := ledgerredis.GetClient()
	defer rdb.Close()
	if err := ledgerredis.Ping(ctx, rdb); err != nil {
		l.Logger.Fatal("Failed to reach redis", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var lk locker.Locker
	switch cfg.Ledger.LockBackend {
	case config.LockBackendRedis:
		lk = ledgerredis.NewDistributedLock(rdb, cfg.Ledger.LockWait, cfg.Ledger.LockTTL)
	default:
		lk = locker.NewKeyedMutex(cfg.Ledger.LockWait)
	}

	var archiver services.ReportArchiver
	if cfg.Storage.ArchiveBucket != "" {
		client, err := storage.NewClient(ctx, cfg.Storage)
		if err != nil {
			l.Logger.Fatal("Failed to configure report archive", zap.Error(err))
		}
		archiver = client
	}

	polls := repository.NewPollRepository(db)
	votes := repository.NewVoteRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	gate := services.NewGate(cfg.Ledger.EnabledPollKinds)

	ledgerService := services.NewLedgerService(db, polls, votes, outboxRepo, gate, lk, m, l)
	pollService := services.NewPollService(db, polls, votes, outboxRepo, gate, lk, l)
	receiptService := services.NewReceiptService(votes, m)
	validatorService := services.NewValidatorService(polls, votes, archiver, m, l)
	authService := services.NewAuthService(cfg.Auth)

	bus := commands.NewBus()
	ledgerService.RegisterHandlers(bus)
	pollService.RegisterHandlers(bus)

	publisher := ledgerredis.NewPublisher(rdb)
	runner := outbox.NewRunner(outbox.DefaultProcessor(cfg.Ledger, outboxRepo, publisher, m, l))
	runner.Start(ctx)

	hub := websocket.NewHub(m)
	go hub.Run(ctx)

	bridge := websocket.NewRedisBridge(ledgerredis.NewSubscriber(rdb), hub, l)
	go func() {
		if err := bridge.Run(ctx); err != nil {
			l.Logger.Error("Live feed bridge stopped", zap.Error(err))
		}
	}()

	limiter := ledgerredis.NewRateLimiter(rdb, ledgerredis.RateLimitConfig{
		ReceiptLimit:  cfg.Ledger.ReceiptRateLimit,
		ReceiptWindow: cfg.Ledger.ReceiptRateWindow,
		VoteLimit:     cfg.Ledger.VoteRateLimit,
		VoteWindow:    cfg.Ledger.VoteRateWindow,
	})

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Polls:     handler.NewPollHandler(pollService, bus),
		Votes:     handler.NewVoteHandler(bus),
		Receipts:  handler.NewReceiptHandler(receiptService),
		Integrity: handler.NewIntegrityHandler(validatorService),
		Live:      websocket.NewHandler(pollService, hub, l),
	}, server.Deps{
		Auth:     authService,
		Limiter:  limiter,
		Metrics:  m,
		Gatherer: reg,
		DB:       db,
		Redis:    rdb,
	})

	l.Logger.Info("Ledger ready",
		zap.String("lock_backend", cfg.Ledger.LockBackend),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("report_archive", archiver != nil))

	if err := srv.Run(ctx); err != nil {
		l.Logger.Error("Server exited with error", zap.Error(err))
	}

	stop()
	runner.Wait()
}
