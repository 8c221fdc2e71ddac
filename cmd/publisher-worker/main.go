package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed-io/platform/pkg/candidates"
	"github.com/pulsefeed-io/platform/pkg/common/config"
	"github.com/pulsefeed-io/platform/pkg/common/database"
	"github.com/pulsefeed-io/platform/pkg/common/kafka"
	"github.com/pulsefeed-io/platform/pkg/common/logger"
	"github.com/pulsefeed-io/platform/pkg/common/models"
	"github.com/pulsefeed-io/platform/pkg/publication"
	"github.com/pulsefeed-io/platform/pkg/schedule"
)

var errMissingSlotID = errors.New("outcome event carries no slot id")

// The worker bridges the engine and the external delivery system: it
// claims due slots onto the event bus and folds delivery outcomes back
// into slot status transitions.
func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	slotRepo := schedule.NewRepository(db)
	candidateRepo := candidates.NewRepository(db)
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

	producer := kafka.NewProducer(kafka.TopicScheduleEvents)
	defer producer.Close()

	service := publication.NewService(slotRepo, candidateRepo, publicationRepo, producer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := kafka.NewConsumer(kafka.TopicPublishOutcomes, cfg.KafkaGroupID)
	defer consumer.Close()

	go func() {
		err := consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
			outcome, err := outcomeFromEvent(event)
			if err != nil {
				logger.Log.WithError(err).WithField("event_id", event.ID).Warn("Dropping malformed outcome event")
				return nil // commit; retrying will not fix the payload
			}
			if _, err := service.RecordOutcome(ctx, outcome); err != nil {
				if errors.Is(err, publication.ErrNotPosting) || errors.Is(err, schedule.ErrSlotNotFound) {
					logger.Log.WithError(err).WithField("slot_id", outcome.SlotID).Warn("Ignoring stale outcome")
					return nil
				}
				return err
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("Outcome consumer stopped")
		}
	}()

	go dispatchLoop(ctx, service, cfg.DispatchInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down publisher worker...")
	cancel()
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("Failed to close postgres")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Error("Failed to close redis")
	}
	logger.Log.Info("Publisher worker stopped")
}

func dispatchLoop(ctx context.Context, service *publication.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dispatched, err := service.DispatchDue(ctx, time.Now().UTC())
			if err != nil {
				logger.Log.WithError(err).Error("Dispatch pass failed")
				continue
			}
			if dispatched > 0 {
				logger.Log.WithField("dispatched", dispatched).Info("Dispatched due slots")
			}
		}
	}
}

func outcomeFromEvent(event models.Event) (models.PublishOutcome, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return models.PublishOutcome{}, err
	}
	var outcome models.PublishOutcome
	if err := json.Unmarshal(payload, &outcome); err != nil {
		return models.PublishOutcome{}, err
	}
	if outcome.SlotID == uuid.Nil {
		if raw, ok := event.Data["slot_id"].(string); ok {
			if id, err := uuid.Parse(raw); err == nil {
				outcome.SlotID = id
			}
		}
	}
	if outcome.SlotID == uuid.Nil {
		return models.PublishOutcome{}, errMissingSlotID
	}
	if outcome.OccurredAt.IsZero() {
		outcome.OccurredAt = event.Timestamp
	}
	return outcome, nil
}
