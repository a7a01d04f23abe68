package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/api"
	"github.com/sanosuguru/go-event-booking/internal/api/handler"
	"github.com/sanosuguru/go-event-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/config"
	"github.com/sanosuguru/go-event-booking/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-event-booking/internal/infrastructure/queue"
	redisinfra "github.com/sanosuguru/go-event-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-booking/internal/worker"
)

func main() {
	cfg := config.Load()

	// ロガー初期化
	log := logger.New(os.Getenv("APP_ENV"))
	logger.Set(log)
	defer logger.Sync()

	// DB接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("DB接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション実行
	if err := postgres.RunMigrations(db.DB, "migrations"); err != nil {
		log.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	// Redis接続（空席数キャッシュ用）
	// 接続できない場合はキャッシュなしで起動する
	redisClient := redisinfra.NewClient(&cfg.Redis)
	var cache *redisinfra.AvailabilityCache
	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisinfra.Ping(ctx, redisClient); err != nil {
			log.Warn("Redis接続に失敗しました（キャッシュなしで起動）", zap.Error(err))
			redisClient.Close()
			redisClient = nil
		} else {
			cache = redisinfra.NewAvailabilityCache(redisClient)
		}
		cancel()
	}

	// メッセージブローカー（URL未設定なら発行しない）
	var publisher *queue.Publisher
	if cfg.Queue.Enabled() {
		publisher, err = queue.NewPublisher(cfg.Queue.URL)
		if err != nil {
			log.Fatal("ブローカー接続に失敗しました", zap.Error(err))
		}
		defer publisher.Close()
	}

	// メトリクス初期化
	m := metrics.Init()

	// リポジトリ・サービス初期化
	eventRepo := postgres.NewEventRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	userRepo := postgres.NewUserRepository(db)
	txManager := postgres.NewTxManager(db)

	eventService := application.NewEventService(eventRepo, cache)
	bookingService := application.NewBookingService(txManager, bookingRepo, eventRepo, cache, publisher, cfg.Booking)
	authService := application.NewAuthService(userRepo, cfg.Auth)

	eventHandler := handler.NewEventHandler(eventService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	authHandler := handler.NewAuthHandler(authService)
	healthHandler := handler.NewHealthHandler()

	// Echo セットアップ
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e)
	e.Use(middleware.PrometheusMiddleware(m))

	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth())

	v1 := e.Group("/api/v1")

	// 認証
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)
	v1.GET("/auth/me", authHandler.Me, middleware.JWTAuth(cfg.Auth.JWTSecret))

	// イベント（閲覧は認証不要）
	v1.GET("/events", eventHandler.List)
	v1.GET("/events/:id", eventHandler.GetByID)
	v1.GET("/events/:id/availability", eventHandler.Availability)

	// 予約（要認証）
	bookings := v1.Group("/bookings", middleware.JWTAuth(cfg.Auth.JWTSecret))
	bookings.POST("", bookingHandler.Create)
	bookings.GET("", bookingHandler.ListMine)
	bookings.GET("/:id", bookingHandler.GetByID)
	bookings.POST("/:id/cancel", bookingHandler.Cancel)

	// 管理者用
	admin := v1.Group("/admin", middleware.JWTAuth(cfg.Auth.JWTSecret), middleware.RequireAdmin())
	admin.POST("/events", eventHandler.Create)
	admin.PUT("/events/:id", eventHandler.Update)
	admin.DELETE("/events/:id", eventHandler.Delete)
	admin.GET("/bookings", bookingHandler.ListAll)
	admin.GET("/bookings/stats", bookingHandler.Stats)

	// 予約集計ワーカー開始
	collector := worker.NewBookingStatsCollector(bookingService, m, 30*time.Second)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	go collector.Start(workerCtx)

	// サーバー起動
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error("サーバーシャットダウンエラー", zap.Error(err))
	}

	collector.Stop()
	workerCancel()

	if redisClient != nil {
		redisClient.Close()
	}

	log.Info("サーバーが正常にシャットダウンしました")
}
