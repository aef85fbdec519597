package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/application"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/config"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/fare"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/events"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/geocoding"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/health"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/logger"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/middleware"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/observability"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/routing"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/upstream"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const serviceName = "service-fare"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("router_profile", cfg.RouterProfile),
		zap.Duration("upstream_timeout", cfg.UpstreamTimeout),
		zap.Int("tiers", len(cfg.Tiers)),
	)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewCollector(registry)
	if err != nil {
		log.Fatal("failed to register metrics", zap.Error(err))
	}

	// Initialize upstream adapters
	geocoder := geocoding.NewOpenCageGeocoder(
		cfg.Geocoder.BaseURL,
		cfg.Geocoder.APIKey,
		upstream.NewClient("geocoder", cfg.UpstreamTimeout, metrics, log),
		log,
	)
	router := routing.NewOpenRouteRouter(
		cfg.Router.BaseURL,
		cfg.Router.APIKey,
		cfg.RouterProfile,
		upstream.NewClient("router", cfg.UpstreamTimeout, metrics, log),
		log,
	)

	// Initialize pricing strategy
	pricingStrategy, err := fare.NewTableStrategy(cfg.Tiers)
	if err != nil {
		log.Fatal("invalid price tiers", zap.Error(err))
	}

	// Initialize Kafka publisher
	checks := map[string]health.CheckFunc{}
	publishers := []application.Publisher{events.NopPublisher{}}
	if cfg.KafkaConfig.Enabled() {
		kafkaProducer := events.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()

		publishers = []application.Publisher{
			events.NewComparisonPublisher(kafkaProducer, cfg.KafkaConfig.Topic, log),
		}
		checks["kafka"] = kafkaProducer.Ping
		log.Info("publishing comparison events",
			zap.Strings("brokers", cfg.KafkaConfig.Brokers),
			zap.String("topic", cfg.KafkaConfig.Topic),
		)
	}

	// Initialize application service
	comparisonService := application.NewComparisonService(
		geocoder,
		router,
		pricingStrategy,
		publishers,
		metrics,
		log,
	)
	sessions := application.NewSessionRegistry(comparisonService, cfg.SessionIdleTTL, metrics, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sessions.Run(ctx)

	// Initialize HTTP handlers
	comparisonHandler := handler.NewComparisonHandler(sessions)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	// Apply global middleware
	engine.Use(middleware.RecoveryMiddleware(log))
	engine.Use(middleware.LoggerMiddleware(log))
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	engine.Use(middleware.SecurityHeadersMiddleware())

	// Register health check and metrics routes
	healthHandler := health.NewHandler(serviceName, checks)
	healthHandler.RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Register routes
	comparisonHandler.RegisterRoutes(&engine.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout*4 + 5*time.Second, // three upstream calls plus the publish
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Stop the session sweeper
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
