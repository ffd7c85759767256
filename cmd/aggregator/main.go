package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/app/provider"
	"portfolio_aggregator/internal/app/service"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/cache"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	"portfolio_aggregator/internal/infrastructure/metrics"
	clientprovider "portfolio_aggregator/internal/infrastructure/network/client"
	networkdefinition "portfolio_aggregator/internal/infrastructure/network/definition"
	"portfolio_aggregator/internal/infrastructure/restapi"
	"portfolio_aggregator/internal/infrastructure/storage/memory"
	"portfolio_aggregator/internal/infrastructure/storage/migrations"
	"portfolio_aggregator/internal/infrastructure/storage/postgres"
	"portfolio_aggregator/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type storage struct {
	transactions port.TransactionStore
	wallets      port.WalletStore
	pool         *postgres.Pool // nil for the memory driver
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := configloader.PathFromEnv()
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: не удалось загрузить конфигурацию %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	zapLogger, err := logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: не удалось инициализировать логгер: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	appLogger := logger.NewSlogAdapter()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Некорректная конфигурация", "path", cfgPath, "error", err)
	}
	logger.Info("Конфигурация загружена", "path", cfgPath, "database", cfg.Database.Driver, "cache", cfg.Cache.Backend)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics("portfolio_aggregator", registry)

	store, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("Не удалось инициализировать хранилище", "driver", cfg.Database.Driver, "error", err)
	}
	if store.pool != nil {
		defer store.pool.Close()
	}

	var (
		responseCache port.Cache
		sweepTarget   cache.Sweepable
	)
	if cfg.Cache.Backend == "postgres" {
		pgCache := postgres.NewCacheStore(store.pool)
		responseCache, sweepTarget = pgCache, pgCache
	} else {
		memCache := cache.NewMemoryCache(time.Duration(cfg.Cache.CleanupIntervalMinutes) * time.Minute)
		responseCache, sweepTarget = memCache, memCache
	}
	memo := cache.NewMemoizer(responseCache, appMetrics, appLogger)

	sweeper, err := cache.NewSweeper(sweepTarget, cfg.Cache.SweepSchedule, appLogger)
	if err != nil {
		logger.Fatal("Не удалось настроить очистку кэша", "schedule", cfg.Cache.SweepSchedule, "error", err)
	}
	sweeper.Start()
	logger.Info("Кэш инициализирован", "backend", cfg.Cache.Backend, "sweep_schedule", cfg.Cache.SweepSchedule)

	networks := networkdefinition.NewNetworkDefinitionProvider(appLogger, cfg.Networks)
	adapters := clientprovider.NewAdapterProvider(cfg, networks, memo, zapLogger, appLogger, appMetrics)
	defer adapters.Close()

	tokenProvider := provider.NewTokenProvider(cfg.Files.TokensDir, networks, appLogger)

	var dex *httpclient.DEXScreenerClient
	if cfg.DEXScreener.Enabled {
		dex = httpclient.NewDEXScreenerClient(cfg.DEXScreener, zapLogger, appMetrics)
	}
	priceService := newPriceService(cfg, dex, memo, zapLogger, appLogger, appMetrics)
	globalMetrics := service.NewGlobalMetricsService(
		httpclient.NewCoinMarketCapClient(cfg.CoinMarketCap, zapLogger, appMetrics), memo, cfg.Cache, appLogger)

	portfolioService := service.NewPortfolioService(
		adapters,
		priceService,
		priceService,
		tokenProvider,
		store.transactions,
		store.wallets,
		appMetrics,
		appLogger,
		service.PortfolioOptions{
			MaxConcurrentRoutines: cfg.Performance.MaxConcurrentRoutines,
			DefaultPageLimit:      cfg.Performance.DefaultPageLimit,
			MaxPageLimit:          cfg.Performance.MaxPageLimit,
		},
	)
	walletService := service.NewWalletService(store.wallets, store.transactions, adapters, appLogger)
	marketService := service.NewMarketService(priceService, globalMetrics, appLogger, cfg.Performance.MaxConcurrentRoutines)

	if cfg.Files.Wallets != "" {
		added, err := walletService.SeedFromProvider(ctx, provider.NewWalletProvider(cfg.Files.Wallets, appLogger), entity.DefaultUserID)
		if err != nil {
			logger.Error("Не удалось импортировать кошельки из файла", "path", cfg.Files.Wallets, "error", err)
		} else {
			logger.Info("Кошельки из файла импортированы", "path", cfg.Files.Wallets, "added", added)
		}
	}

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	router := restapi.SetupRouter(cfg, restapi.Handlers{
		Portfolio: restapi.NewPortfolioHandler(portfolioService),
		Wallets:   restapi.NewWalletHandler(walletService),
		Markets:   restapi.NewMarketHandler(marketService),
	}, appMetrics, zapLogger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Запуск HTTP сервера", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Не удалось запустить HTTP сервер", "error", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	logger.Info("Получен сигнал завершения. Завершение работы HTTP сервера...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при Graceful Shutdown HTTP сервера", "error", err)
	} else {
		logger.Info("HTTP сервер успешно остановлен.")
	}
	sweeper.Stop(shutdownCtx)

	cancel()
	logger.Info("Сервис агрегации портфеля остановлен.")
}

func openStorage(ctx context.Context, cfg *configloader.Config) (storage, error) {
	if cfg.Database.Driver != "postgres" {
		logger.Info("Используется хранилище в памяти")
		return storage{
			transactions: memory.NewTransactionStore(),
			wallets:      memory.NewWalletStore(),
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		return storage{}, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return storage{}, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("Подключение к PostgreSQL установлено, миграции применены")
	return storage{
		transactions: postgres.NewTransactionStore(pool),
		wallets:      postgres.NewWalletStore(pool),
		pool:         pool,
	}, nil
}

// newPriceService avoids handing a typed nil DEX client to the service.
func newPriceService(cfg *configloader.Config, dex *httpclient.DEXScreenerClient, memo *cache.Memoizer, zapLogger *zap.Logger, l port.Logger, m *metrics.Metrics) *service.TokenPriceService {
	cg := httpclient.NewCoinGeckoClient(cfg.CoinGecko, zapLogger, m)
	if dex == nil {
		return service.NewTokenPriceService(cg, nil, memo, cfg.Cache, l)
	}
	return service.NewTokenPriceService(cg, dex, memo, cfg.Cache, l)
}
