package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bidding-engine/internal/api/handlers"
	"bidding-engine/internal/config"
	"bidding-engine/internal/infrastructure/leader"
	"bidding-engine/internal/infrastructure/mysql"
	"bidding-engine/internal/infrastructure/redis"
	ws "bidding-engine/internal/infrastructure/websocket"
	"bidding-engine/internal/services"
	"bidding-engine/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting bidding engine service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to open MySQL connection", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Repositories
	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	autoBidRepo := mysql.NewMySQLAutoBidRepository(db)
	watcherRepo := mysql.NewMySQLWatcherRepository(db)
	productRepo := mysql.NewMySQLProductRepository(db)
	schedulerRepo := mysql.NewMySQLSchedulerRepository(db)

	// Redis based components
	stateCache := redis.NewStateCache(rdb)
	eventPublisher := redis.NewEventPublisher(rdb)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)

	// Leader election
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	clock := services.SystemClock{}

	lifecycle := services.NewLifecycleManager(
		auctionRepo,
		bidRepo,
		productRepo,
		stateCache,
		eventPublisher,
		clock,
		services.LifecycleConfig{
			PaymentDueDays:          cfg.Engine.PaymentDueDays,
			EnforceReserve:          cfg.Engine.EnforceReserve,
			DefaultExtensionMinutes: cfg.Engine.DefaultExtensionMinutes,
			DefaultMaxExtensions:    cfg.Engine.DefaultMaxExtensions,
		},
		log,
	)

	engine := services.NewBiddingEngine(
		auctionRepo,
		bidRepo,
		autoBidRepo,
		watcherRepo,
		lifecycle,
		eventPublisher,
		clock,
		services.EngineConfig{
			DefaultPageSize: cfg.Engine.DefaultPageSize,
			MaxPageSize:     cfg.Engine.MaxPageSize,
		},
		log,
	)

	scheduler := services.NewCronAuctionScheduler(schedulerRepo, engine, leaderElection, cfg.Instance.ID, log)
	lifecycle.SetScheduler(scheduler)
	engine.SetScheduler(scheduler)

	// WebSocket fan-out
	connManager := ws.NewConnectionManager(log)
	notifier := ws.NewWebSocketNotifier(connManager)
	wsHandler := ws.NewWebSocketHandler(engine, connManager, log)
	eventListener := services.NewEventListener(connManager, notifier, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
		},
	}))

	auctionHandler := handlers.NewAuctionHandler(engine, log)

	api := e.Group("/api/v1")
	auctionHandler.Register(api)

	e.GET("/ws/auctions/:id", func(c echo.Context) error {
		wsHandler.HandleConnection(c.Response(), c.Request(), c.Param("id"))
		return nil
	})

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "bidding-engine",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
		})
	})

	// Background services
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	go func() {
		if err := scheduler.Start(rootCtx); err != nil {
			log.Error("Failed to start scheduler", "error", err)
		}
	}()

	go func() {
		if err := eventListener.Start(rootCtx, eventSubscriber); err != nil {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	go func() {
		for {
			became, err := leaderElection.BecomeLeader(rootCtx, cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became bidding engine leader", "instance_id", cfg.Instance.ID)
			}
			select {
			case <-rootCtx.Done():
				return
			case <-time.After(10 * time.Second):
			}
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting HTTP server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding engine service...")
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding engine service stopped")
}
