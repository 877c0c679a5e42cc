package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/platefulai/plateful-backend/internal/batch"
	"github.com/platefulai/plateful-backend/internal/candidates"
	"github.com/platefulai/plateful-backend/internal/config"
	"github.com/platefulai/plateful-backend/internal/content"
	"github.com/platefulai/plateful-backend/internal/dispatch"
	"github.com/platefulai/plateful-backend/internal/experiments"
	"github.com/platefulai/plateful-backend/internal/genai"
	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/push"
	"github.com/platefulai/plateful-backend/internal/store"
	"github.com/platefulai/plateful-backend/internal/strategy"
	"github.com/platefulai/plateful-backend/internal/usercontext"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"google.golang.org/api/option"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))
	log.Info("Starting notification service",
		slog.String("instance_id", logger.GetInstanceID()),
		slog.String("gin_mode", cfg.GinMode))

	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	// Firebase: one app, Firestore + Messaging clients.
	var opts []option.ClientOption
	if cfg.FirebaseCredJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FirebaseCredJSON)))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		log.Error("Failed to initialize Firebase app", slog.String("error", err.Error()))
		os.Exit(1)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		log.Error("Failed to initialize Firestore client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer firestoreClient.Close()

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		log.Error("Failed to initialize Messaging client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Pipeline components.
	storeClient := store.NewClient(firestoreClient, log)
	aiClient := genai.NewClient(cfg, log)
	pushClient := push.NewClient(messagingClient, log)

	analyzer := usercontext.NewAnalyzer(storeClient, log)
	finder := candidates.NewFinder(storeClient, log)
	generator := content.NewGenerator(aiClient, log)
	variantSelector := experiments.NewSelector(storeClient, experiments.StaticExperiments(cfg.Notifications), log)
	strategySelector := strategy.NewSelector(finder, generator, cfg.Strategy, log)
	dispatcher := dispatch.NewDispatcher(storeClient, variantSelector, pushClient, cfg.PushNotificationsEnabled, log)
	runner := batch.NewRunner(storeClient, analyzer, strategySelector, dispatcher, cfg, log)

	// HTTP surface: health, metrics, and the internal trigger endpoints.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLoggingMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Background batch runs share one context: shutdown cancels it to stop
	// new users, then waits for in-flight users to finish.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()
	background := batch.NewBackground(runCtx)

	jobHandler := batch.NewHandler(runner, background, cfg.JobAuthToken, log)
	jobHandler.RegisterRoutes(router)

	// Optional in-process scheduler for deployments without an external one.
	if cfg.CronEnabled {
		scheduler := cron.New()
		for name, nt := range cfg.Notifications {
			if nt.Schedule == "" {
				continue
			}
			name := name
			if _, err := scheduler.AddFunc(nt.Schedule, func() {
				background.Go(func(ctx context.Context) {
					if _, err := runner.Run(ctx, name); err != nil {
						log.Error("Scheduled batch run failed",
							slog.String("notification_type", name),
							slog.String("error", err.Error()))
					}
				})
			}); err != nil {
				log.Error("Invalid cron schedule",
					slog.String("notification_type", name),
					slog.String("schedule", nt.Schedule),
					slog.String("error", err.Error()))
				os.Exit(1)
			}
			log.Info("Scheduled notification type",
				slog.String("notification_type", name),
				slog.String("schedule", nt.Schedule))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Server listening", slog.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", slog.String("error", err.Error()))
	}

	// Stop batch runs from starting new users, then let in-flight users
	// finish before the process exits.
	cancelRuns()
	log.Info("Waiting for in-flight batch runs")
	background.Wait()

	log.Info("Server stopped")
}
