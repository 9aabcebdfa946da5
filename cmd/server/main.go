package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-monitor/config"
	"stock-monitor/internal/api"
	"stock-monitor/internal/broker"
	"stock-monitor/internal/eventbus"
	"stock-monitor/internal/models"
	"stock-monitor/internal/monitor"
	"stock-monitor/internal/redisclient"
	"stock-monitor/internal/scheduler"
	"stock-monitor/internal/store"
	"stock-monitor/internal/util"
	"stock-monitor/internal/whmcs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting stock monitor service")

	tp, err := util.InitTracer("stock-monitor", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	whmcsClient, err := whmcs.NewClient(whmcs.Config{
		APIURL:     cfg.Whmcs.APIURL,
		Identifier: cfg.Whmcs.Identifier,
		Secret:     cfg.Whmcs.Secret,
		Timeout:    cfg.Whmcs.Timeout,
		CacheTTL:   cfg.Whmcs.CacheTTL,
	})
	if err != nil {
		log.Fatalf("Failed to create WHMCS client: %v", err)
	}

	bus := eventbus.New()

	// Every event is logged; notification transports attach on top.
	bus.SubscribeAll(func(event models.StockEvent) {
		logger.Info("Stock event",
			zap.String("type", string(event.Type)),
			zap.Int64("product_id", event.ProductID))
	})

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	notifier := broker.NewStockEventNotifier(producer)
	bus.SubscribeAll(notifier.HandleEvent)

	// The Redis mirror is optional: monitoring works without it, the
	// fast stock endpoint just stays unavailable.
	var snapshots api.SnapshotReader
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, stock snapshot mirror disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		bus.SubscribeAll(redisClient.HandleEvent)
		snapshots = redisClient
		log.Println("Redis connected")
	}

	engine := monitor.NewEngine(db, whmcsClient, bus)
	sched := scheduler.New(engine, cfg.Monitor.Interval)

	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(db, sched, whmcsClient, snapshots)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Waits for an in-flight cycle; shutdown never aborts one.
	sched.Stop()

	log.Println("Server exited")
}
