package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"execgate/internal/api"
	"execgate/internal/config"
	"execgate/internal/engine"
	"execgate/internal/gateway"
	"execgate/internal/killswitch"
	"execgate/internal/models"
	"execgate/internal/repository"
	"execgate/internal/risk"
	"execgate/internal/service"
	"execgate/internal/websocket"
	"execgate/pkg/crypto"
	"execgate/pkg/ratelimit"
	"execgate/pkg/retry"
	"execgate/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.MustInitLogger(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("ошибка подключения к БД", zap.Error(err))
	}
	defer db.Close()
	logger.Info("подключение к БД установлено", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Аварийный стоп восстанавливает состояние с диска до любых
	// торговых операций
	ks, err := killswitch.New(cfg.Risk.KillSwitchPath, logger.Named("killswitch"))
	if err != nil {
		logger.Fatal("ошибка инициализации аварийного стопа", zap.Error(err))
	}
	if ks.IsActive() {
		logger.Warn("аварийный стоп АКТИВЕН с прошлого запуска: торговля заблокирована",
			zap.String("reason", ks.GetStatus().Reason))
	}

	// Секрет шлюза хранится в env зашифрованным (AES-256-GCM)
	gatewaySecret := cfg.Gateway.Secret
	if gatewaySecret != "" {
		gatewaySecret, err = crypto.Decrypt(gatewaySecret, []byte(cfg.Security.EncryptionKey))
		if err != nil {
			logger.Fatal("ошибка расшифровки секрета шлюза", zap.Error(err))
		}
	}

	// Клиент исполняющего шлюза
	limiter := ratelimit.NewRateLimiter(float64(cfg.Gateway.RateLimit), float64(cfg.Gateway.RateBurst))
	httpCfg := gateway.DefaultHTTPClientConfig()
	httpCfg.TotalTimeout = cfg.Gateway.RequestTimeout
	gw := gateway.NewHTTPGatewayClient(cfg.Gateway.BaseURL, gatewaySecret, httpCfg, limiter, logger.Named("gateway"))

	// Шина событий и риск-движок
	bus := risk.NewEventBus(logger.Named("events"))
	defer bus.Close()

	limits := models.DefaultRiskLimits()
	limits.Enabled = cfg.Risk.Enabled
	limits.FailSafeMode = cfg.Risk.FailSafeMode
	riskMgr := risk.NewManager(limits, bus, logger.Named("risk"))

	// Репозитории и сервисы
	limitsRepo := repository.NewLimitsRepository(db)
	eventRepo := repository.NewEventRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	riskService := service.NewRiskService(limitsRepo, eventRepo, riskMgr, ks, logger.Named("service"))

	startupCtx, startupCancel := context.WithTimeout(context.Background(), cfg.Reconciler.StartupTimeout)
	if err := riskService.LoadLimits(startupCtx); err != nil {
		startupCancel()
		logger.Fatal("ошибка загрузки лимитов", zap.Error(err))
	}

	// Путь исполнения: роутер -> хранилище состояния -> оркестратор
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.Gateway.MaxRetries
	retryCfg.InitialDelay = cfg.Gateway.RetryBackoff
	retryCfg.MaxElapsed = cfg.Gateway.MaxElapsed

	router := engine.NewRouter(gw, retryCfg, cfg.Risk.CommandCacheSize, cfg.Risk.CommandCacheTTL, logger.Named("router"))
	store := engine.NewStateStore()
	controller := engine.NewController(ks, riskMgr, router, store, bus, ticketRepo, logger.Named("controller"))

	// Стартовая синхронизация - без неё торговля не начинается
	reconciler := engine.NewReconciler(gw, store, riskMgr, bus, cfg.Reconciler.SyncInterval, cfg.Reconciler.BalanceEpsilon, logger.Named("reconciler"))
	if err := reconciler.PerformStartupSync(startupCtx); err != nil {
		startupCancel()
		logger.Fatal("стартовая синхронизация не удалась, торговлю начинать нельзя", zap.Error(err))
	}
	startupCancel()

	// Фоновые процессы
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go reconciler.Run(ctx)

	eventWriter := service.NewEventWriter(eventRepo, bus, logger.Named("journal"))
	go eventWriter.Run(ctx)

	go riskService.RunDailyReset(ctx)

	hub := websocket.NewHub(bus, logger.Named("ws"))
	go hub.Run(ctx)

	// HTTP API
	apiRouter := api.SetupRoutes(&api.Dependencies{
		RiskService:       riskService,
		Submitter:         controller,
		OperatorTokenHash: cfg.Security.OperatorTokenHash,
		StreamHandler:     hub.ServeWS,
		Logger:            logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("сервер запускается", zap.String("addr", server.Addr))
		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("ошибка сервера", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("остановка сервера...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("принудительная остановка сервера", zap.Error(err))
	}

	logger.Info("сервер остановлен")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
