package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pulsefeed-io/platform/pkg/candidates"
	"github.com/pulsefeed-io/platform/pkg/common/config"
	"github.com/pulsefeed-io/platform/pkg/common/database"
	"github.com/pulsefeed-io/platform/pkg/common/kafka"
	"github.com/pulsefeed-io/platform/pkg/common/logger"
	"github.com/pulsefeed-io/platform/pkg/diversity"
	"github.com/pulsefeed-io/platform/pkg/middleware"
	"github.com/pulsefeed-io/platform/pkg/observability/metrics"
	"github.com/pulsefeed-io/platform/pkg/publication"
	"github.com/pulsefeed-io/platform/pkg/schedule"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	candidateRepo := candidates.NewRepository(db)
	if err := candidateRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate candidate tables")
	}

	slotRepo := schedule.NewRepository(db)
	if err := slotRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate schedule tables")
	}

	publicationRepo := publication.NewRepository(
		db,
		database.GetRedis(),
		cfg.HistoryMaxRecords,
		cfg.HistoryMaxAge,
		cfg.HistoryCacheTTL,
	)
	if err := publicationRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate publication tables")
	}

	slotTable, err := schedule.LoadSlotTable(cfg.ScheduleConfigPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load slot table")
	}
	targets, err := diversity.LoadTargets(cfg.DiversityTargetsPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load diversity targets")
	}

	producer := kafka.NewProducer(kafka.TopicScheduleEvents)
	defer producer.Close()

	scheduleService := schedule.NewService(
		slotRepo,
		candidateRepo,
		publicationRepo,
		producer,
		slotTable,
		targets,
		schedule.Options{
			MaxPerPlatform:  cfg.MaxPerPlatform,
			MaxSlotAttempts: cfg.MaxSlotAttempts,
		},
	)
	publicationService := publication.NewService(slotRepo, candidateRepo, publicationRepo, producer)

	handler := schedule.NewHandler(scheduleService, publicationService)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Scheduler service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start scheduler service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down scheduler service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Scheduler service forced to shutdown")
	}
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("Failed to close postgres")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Error("Failed to close redis")
	}
	logger.Log.Info("Scheduler service stopped")
}
