package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"watchsync/internal/core/services"
	httphandlers "watchsync/internal/handlers/http"
	"watchsync/internal/infrastructure/middleware"
	"watchsync/internal/infrastructure/monitoring"
	"watchsync/internal/infrastructure/relay"
	"watchsync/internal/infrastructure/repositories"
	"watchsync/pkg/config"
	"watchsync/pkg/logger"
	"watchsync/pkg/tracing"
)

func main() {
	startTime := time.Now()

	configPaths := []string{
		os.Getenv("WATCHSYNC_CONFIG"),
		"configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		if path == "" {
			continue
		}
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if cfg == nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Warnw("Tracing disabled", "error", err)
		tp = &tracing.TracerProvider{}
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	roomRepo := repoFactory.CreateRoomRepository()
	roomService := services.NewRoomService(roomRepo, log)
	roomHandler := httphandlers.NewRoomHandler(roomService)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	relayMetrics := monitoring.NewRelayCollector(registry)

	hub := relay.NewHub(relay.HubConfig{AnnounceDisconnect: cfg.Relay.AnnounceDisconnect}, relayMetrics, log)
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	wsConfig := relay.ServerConfig{
		PingInterval:   cfg.Relay.PingInterval,
		PongTimeout:    cfg.Relay.PongTimeout,
		WriteTimeout:   cfg.Relay.WriteTimeout,
		SendBuffer:     cfg.Relay.SendBuffer,
		MaxMessageSize: cfg.Relay.MaxMessageSizeBytes,
		AllowedOrigins: cfg.Relay.AllowedOrigins,
	}
	if cfg.RateLimiting.Enabled {
		wsConfig.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		wsConfig.Burst = cfg.RateLimiting.WebSocket.Burst
	}
	wsServer := relay.NewWebSocketServer(hub, wsConfig, relayMetrics, log)

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddRoomStoreCheck(roomRepo, 2*time.Second)
	healthChecker.AddCheck("storage_"+repoFactory.Driver(), repoFactory.HealthCheck, 2*time.Second)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))

	// Registered before the request middleware: a relay connection lives for
	// the whole visit and has its own per-connection limit.
	router.GET(cfg.Relay.Path, gin.WrapF(wsServer.HandleWebSocket))

	router.Use(middleware.RequestLogMiddleware(logger.NewContextLogger(log.Desugar())))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.ErrorHandlerMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		connections, rooms := hub.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"uptime":      time.Since(startTime).String(),
			"connections": connections,
			"rooms":       rooms,
			"storage":     repoFactory.Driver(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != monitoring.StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
		log.Info("Prometheus metrics enabled")
	}

	api := router.Group("/")
	api.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	roomHandler.SetupRoutes(api)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting watchsync relay",
			"address", cfg.Server.Address,
			"ws_path", cfg.Relay.Path,
			"storage", repoFactory.Driver(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down watchsync relay...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Closing client queues makes every websocket write pump send a close frame.
	stopHub()
	<-hubDone

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("watchsync relay stopped")
}
