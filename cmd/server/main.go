package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	mdapp "github.com/wyfcoding/stocktrading/internal/marketdata/application"
	mddomain "github.com/wyfcoding/stocktrading/internal/marketdata/domain"
	"github.com/wyfcoding/stocktrading/internal/marketdata/infrastructure/kis"
	mdredis "github.com/wyfcoding/stocktrading/internal/marketdata/infrastructure/persistence/redis"
	mdhttp "github.com/wyfcoding/stocktrading/internal/marketdata/interfaces/http"
	pfapp "github.com/wyfcoding/stocktrading/internal/portfolio/application"
	pfhttp "github.com/wyfcoding/stocktrading/internal/portfolio/interfaces/http"
	tdapp "github.com/wyfcoding/stocktrading/internal/trading/application"
	tddomain "github.com/wyfcoding/stocktrading/internal/trading/domain"
	"github.com/wyfcoding/stocktrading/internal/trading/infrastructure/messaging"
	"github.com/wyfcoding/stocktrading/internal/trading/infrastructure/persistence/mysql"
	tdhttp "github.com/wyfcoding/stocktrading/internal/trading/interfaces/http"
	"github.com/wyfcoding/stocktrading/pkg/cache"
	"github.com/wyfcoding/stocktrading/pkg/config"
	"github.com/wyfcoding/stocktrading/pkg/db"
	"github.com/wyfcoding/stocktrading/pkg/idgen"
	"github.com/wyfcoding/stocktrading/pkg/logger"
	"github.com/wyfcoding/stocktrading/pkg/metrics"
	"github.com/wyfcoding/stocktrading/pkg/middleware"
	"github.com/wyfcoding/stocktrading/pkg/mq"
	"github.com/wyfcoding/stocktrading/pkg/ttlcache"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "服务启动",
		"service", cfg.ServiceName, "version", cfg.Version, "environment", cfg.Environment)

	if err := idgen.Init(0); err != nil {
		logger.Fatal(ctx, "初始化 ID 生成器失败", "error", err)
	}

	m := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		if err := m.Register(); err != nil {
			logger.Fatal(ctx, "注册指标失败", "error", err)
		}
		_ = metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 基础设施
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "初始化数据库失败", "error", err)
	}
	defer database.Close()

	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(&tddomain.Account{}, &tddomain.Position{}, &tddomain.Order{}); err != nil {
			logger.Fatal(ctx, "数据库迁移失败", "error", err)
		}
	}

	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "初始化 Redis 失败", "error", err)
	}
	defer redisCache.Close()

	var publisher tddomain.OrderEventPublisher = messaging.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "初始化 Kafka 失败", "error", err)
		}
		defer producer.Close()
		publisher = messaging.NewOrderEventPublisher(producer, cfg.Kafka.OrderTopic)
	} else {
		logger.Warn(ctx, "未配置 Kafka brokers，成交事件发布已关闭")
	}

	// 行情服务
	tokenStore := mdredis.NewTokenStore(redisCache)
	tokenManager := kis.NewTokenManager(
		cfg.Upstream.BaseURL, cfg.Upstream.AppKey, cfg.Upstream.AppSecret,
		tokenStore,
		time.Duration(cfg.Upstream.TokenRefreshHours)*time.Hour,
		kis.WithRefreshHook(func() { m.TokenRefreshTotal.Inc() }),
	)
	upstream := kis.NewClient(
		cfg.Upstream.BaseURL, cfg.Upstream.AppKey, cfg.Upstream.AppSecret,
		tokenManager,
		time.Duration(cfg.Upstream.Timeout)*time.Second,
		kis.WithCallHook(func(outcome string, elapsed time.Duration) {
			m.UpstreamCallsTotal.WithLabelValues(outcome).Inc()
			m.UpstreamCallDuration.Observe(elapsed.Seconds())
		}),
	)
	quoteCache := ttlcache.New[*mddomain.Quote](
		time.Duration(cfg.Market.QuoteTTL)*time.Second,
		ttlcache.WithHitMissHooks[*mddomain.Quote](
			func() { m.QuoteCacheHits.Inc() },
			func() { m.QuoteCacheMisses.Inc() },
		),
	)
	newsCache := ttlcache.New[[]mddomain.NewsItem](time.Duration(cfg.Market.NewsTTL) * time.Second)
	marketService := mdapp.NewMarketDataService(upstream, quoteCache, newsCache, cfg.Market.BatchConcurrency)

	// 交易服务
	accountRepo := mysql.NewAccountRepository(database)
	positionRepo := mysql.NewPositionRepository(database)
	orderRepo := mysql.NewOrderRepository(database)
	txManager := mysql.NewTxManager(database)
	tradingService := tdapp.NewTradingService(
		accountRepo, positionRepo, orderRepo,
		marketService, txManager, publisher,
		tdapp.WithOrderHooks(
			func(side string) { m.OrdersExecutedTotal.WithLabelValues(side).Inc() },
			func(reason string) { m.OrdersRejectedTotal.WithLabelValues(reason).Inc() },
		),
	)

	// 组合估值服务
	portfolioService := pfapp.NewPortfolioService(accountRepo, positionRepo, marketService)

	// HTTP
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.GinLoggingMiddleware(),
		middleware.GinRecoveryMiddleware(),
		middleware.GinMetricsMiddleware(m),
	)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})

	api := router.Group("/api/v1")
	mdhttp.NewQuoteHandler(marketService).RegisterRoutes(api)
	tdhttp.NewTradingHandler(tradingService).RegisterRoutes(api)
	pfhttp.NewPortfolioHandler(portfolioService).RegisterRoutes(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		logger.Info(gctx, "HTTP 服务监听", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		tokenManager.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "收到退出信号，开始优雅关闭")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "服务异常退出", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "服务已退出")
}
