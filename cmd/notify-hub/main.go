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

	"storefront-notify/internal/api/handlers"
	"storefront-notify/internal/api/middleware"
	"storefront-notify/internal/auth"
	"storefront-notify/internal/config"
	"storefront-notify/internal/infrastructure/redis"
	"storefront-notify/internal/infrastructure/websocket"
	"storefront-notify/internal/services"
	"storefront-notify/pkg/logger"
	"storefront-notify/pkg/utils"

	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting notification hub", "config", cfg.GetConfigString())

	if cfg.Auth.SecretKey == "" {
		log.Error("auth.secret_key is required")
		os.Exit(1)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	rdb := utils.InitializeRedis(cfg, log, pingCtx)
	pingCancel()
	defer rdb.Close()

	tokens := auth.NewTokenService(cfg.Auth.SecretKey, cfg.Auth.TokenExpire)

	// Initialize connection manager
	connManager := websocket.NewConnectionManager(log)
	purchaseNotifier := websocket.NewPurchaseNotifier(connManager)

	eventSubscriber := redis.NewRedisEventSubscriber(rdb, cfg.Redis.Channel, log)
	eventListener := services.NewEventListener(purchaseNotifier, log)
	keepAlive := services.NewCronKeepAliveScheduler(cfg.Hub.KeepAliveSpec, connManager, log)

	wsHandlers := handlers.NewWebSocketHandlers(tokens, connManager, cfg.Hub, log)

	// Setup routes
	router := mux.NewRouter()
	router.Use(middleware.CORS(cfg.Hub.AllowedOrigins, log))
	wsHandlers.Register(router)

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK %d connections", connManager.Count())
	}).Methods("GET")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background services
	if err := keepAlive.Start(ctx); err != nil {
		log.Error("Failed to start keep-alive scheduler", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := eventListener.Start(ctx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Hub.Host, cfg.Hub.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting hub server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notification hub...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	keepAlive.Stop()

	// hijacked websocket connections are not closed by Shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	connManager.CloseAll()

	log.Info("Notification hub stopped")
}
