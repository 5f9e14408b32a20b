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

	"kanban-system/internal/api"
	"kanban-system/internal/config"
	"kanban-system/internal/infrastructure/mysql"
	"kanban-system/internal/infrastructure/redis"
	"kanban-system/internal/realtime"
	"kanban-system/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jonboulle/clockwork"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting Realtime Event Service")

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
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
		log.Error("Failed to connect to MySQL", "error", err)
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

	// Test MySQL connection
	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	clock := clockwork.NewRealClock()

	// External collaborators: identity and permission stores
	sessions := redis.NewSessionStore(rdb, clock)
	memberships := mysql.NewMySQLMembershipRepository(db)
	cards := mysql.NewMySQLCardRepository(db)

	// Core: registry, broadcaster, heartbeat monitor
	registry := realtime.NewRegistry(clock, log)
	broadcaster := realtime.NewBroadcaster(registry, memberships, clock, log)
	monitor := realtime.NewHeartbeatMonitor(registry,
		cfg.Realtime.HeartbeatInterval, cfg.Realtime.MaxConnectionAge, clock, log)

	if err := monitor.Start(); err != nil {
		log.Error("Failed to start heartbeat monitor", "error", err)
		os.Exit(1)
	}

	// HTTP surfaces
	streams := api.NewStreamHandler(sessions, registry, cfg.Realtime.SendTimeout, log)
	cardHandler := api.NewCardHandler(sessions, memberships, cards, broadcaster, log)
	e := api.NewServer(streams, cardHandler)

	adminSrv := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.Admin.Port),
		Handler: api.NewAdminServer(registry, cfg.Admin.Token, log).Router(),
	}
	go func() {
		log.Info("Starting admin server", "port", cfg.Admin.Port)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Admin server failed", "error", err)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting realtime server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down realtime service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	monitor.Stop()

	// End every client stream so the echo server can drain instead of
	// waiting out the shutdown timeout on long-lived handlers.
	registry.CloseAll()

	if err := adminSrv.Shutdown(ctx); err != nil {
		log.Error("Admin server forced to shutdown", "error", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Realtime service stopped")
}
