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

	"github.com/401-Nick/lra-alerts/internal/alerts"
	"github.com/401-Nick/lra-alerts/internal/arcgis"
	"github.com/401-Nick/lra-alerts/internal/config"
	"github.com/401-Nick/lra-alerts/internal/database"
	"github.com/401-Nick/lra-alerts/internal/export"
	"github.com/401-Nick/lra-alerts/internal/handlers"
	"github.com/401-Nick/lra-alerts/internal/ingest"
	"github.com/401-Nick/lra-alerts/internal/logger"
	"github.com/401-Nick/lra-alerts/internal/middleware"
	"github.com/401-Nick/lra-alerts/internal/repository"
	"github.com/401-Nick/lra-alerts/internal/selections"
	"github.com/401-Nick/lra-alerts/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env)
	log.Info("Starting LRA alerts service", map[string]interface{}{
		"version":     "0.1.0",
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	// Repositories share the one pool; nothing re-acquires a handle.
	listingRepo := repository.NewListingRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	// Source client with the configured auth strategy.
	source := arcgis.NewClient(cfg.Source, arcgis.NewTokenProvider(cfg.Source), log)

	// Notification delivery: AMQP when configured, log-only otherwise.
	var notifier alerts.Notifier
	if cfg.Alerts.AMQPURL != "" {
		amqpNotifier, err := alerts.NewAMQPNotifier(cfg.Alerts.AMQPURL, cfg.Alerts.Exchange)
		if err != nil {
			log.Fatal("Failed to connect to notification broker", err, map[string]interface{}{
				"exchange": cfg.Alerts.Exchange,
			})
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	} else {
		log.Warn("AMQP_URL not set, notifications will only be logged", nil)
		notifier = alerts.NewLogNotifier(log)
	}

	var broadcaster alerts.Broadcaster
	if cfg.Alerts.WebhookURL != "" {
		broadcaster = alerts.NewWebhookBroadcaster(cfg.Alerts.WebhookURL)
	}

	dispatcher := alerts.NewDispatcher(subscriptionRepo, notifier, broadcaster, log.WithComponent("alerts"))

	// CSV export is optional; without a bucket the run summary carries no
	// csv URL.
	var exporter ingest.CSVExporter
	if cfg.Export.Bucket != "" {
		s3Exporter, err := export.NewS3Exporter(cfg.Export, listingRepo, log)
		if err != nil {
			log.Fatal("Failed to initialize CSV exporter", err, map[string]interface{}{
				"bucket": cfg.Export.Bucket,
			})
		}
		exporter = s3Exporter
	} else {
		log.Warn("EXPORT_BUCKET not set, CSV export disabled", nil)
	}

	writer := ingest.NewWriter(listingRepo, cfg.Ingest.BatchCeiling, log.WithComponent("writer"))
	aggregator := selections.NewAggregator(listingRepo)
	ingestService := ingest.NewService(
		source, listingRepo, writer, dispatcher, aggregator, exporter, snapshotRepo,
		log.WithComponent("ingest"),
	)

	subscriptionService := services.NewSubscriptionService(subscriptionRepo, log)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)

	ingestHandler := handlers.NewIngestHandler(ingestService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	exportsHandler := handlers.NewExportsHandler(snapshotRepo)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/ingest", middleware.RequireAPIKey(cfg.Server.APIKey), ingestHandler.Trigger)
		v1.PUT("/subscriptions", subscriptionHandler.Subscribe)
		v1.DELETE("/subscriptions", subscriptionHandler.Unsubscribe)
		v1.GET("/users/:userId/subscriptions", subscriptionHandler.List)
		v1.GET("/exports", exportsHandler.Current)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Server listening", map[string]interface{}{
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
