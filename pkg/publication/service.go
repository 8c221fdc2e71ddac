package publication

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed-io/platform/pkg/common/kafka"
	"github.com/pulsefeed-io/platform/pkg/common/logger"
	"github.com/pulsefeed-io/platform/pkg/common/models"
	"github.com/pulsefeed-io/platform/pkg/observability/metrics"
)

var (
	// ErrNotClaimable: the slot is not a filled pending slot, so the
	// publisher cannot take it.
	ErrNotClaimable = errors.New("slot is not claimable")

	// ErrNotPosting: an outcome arrived for a slot that is not in flight;
	// usually a duplicate report.
	ErrNotPosting = errors.New("slot is not in posting state")
)

// SlotTransitions is the slice of the slot store the publisher feedback
// loop needs. Implemented by schedule.Repository.
type SlotTransitions interface {
	Get(ctx context.Context, slotID uuid.UUID) (models.ScheduleSlot, error)
	ClaimForPosting(ctx context.Context, slotID uuid.UUID) (bool, error)
	MarkPosted(ctx context.Context, slotID uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, slotID uuid.UUID, reason string) (bool, error)
	ListDue(ctx context.Context, before time.Time) ([]models.ScheduleSlot, error)
}

type CandidateMarker interface {
	MarkPublished(ctx context.Context, id uuid.UUID) (bool, error)
}

type RecordStore interface {
	Append(ctx context.Context, record models.PublicationRecord) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Service owns the engine side of the publisher handshake: claiming due
// slots and recording delivery outcomes as status transitions.
type Service struct {
	slots      SlotTransitions
	candidates CandidateMarker
	records    RecordStore
	events     EventPublisher
}

func NewService(slots SlotTransitions, candidates CandidateMarker, records RecordStore, events EventPublisher) *Service {
	return &Service{
		slots:      slots,
		candidates: candidates,
		records:    records,
		events:     events,
	}
}

// Claim moves a filled pending slot to posting on behalf of the external
// publisher. Exactly one caller wins.
func (s *Service) Claim(ctx context.Context, slotID uuid.UUID) (models.ScheduleSlot, error) {
	ok, err := s.slots.ClaimForPosting(ctx, slotID)
	if err != nil {
		return models.ScheduleSlot{}, err
	}
	if !ok {
		return models.ScheduleSlot{}, ErrNotClaimable
	}
	return s.slots.Get(ctx, slotID)
}

// RecordOutcome applies the publisher's report. Success transitions
// posting -> posted, appends the publication record, and flips the
// candidate's published flag; failure transitions posting -> failed and
// burns one retry attempt.
func (s *Service) RecordOutcome(ctx context.Context, outcome models.PublishOutcome) (models.ScheduleSlot, error) {
	slot, err := s.slots.Get(ctx, outcome.SlotID)
	if err != nil {
		return models.ScheduleSlot{}, err
	}

	if outcome.Success {
		return s.recordSuccess(ctx, slot, outcome)
	}
	return s.recordFailure(ctx, slot, outcome)
}

// DispatchDue claims every filled slot that is past its scheduled time and
// hands it to the delivery system via the event bus. Returns how many
// slots were dispatched.
func (s *Service) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.slots.ListDue(ctx, now)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, slot := range due {
		ok, err := s.slots.ClaimForPosting(ctx, slot.ID)
		if err != nil {
			return dispatched, err
		}
		if !ok {
			continue // another worker got it first
		}
		dispatched++
		if s.events != nil {
			_ = s.events.PublishEvent(ctx, kafka.EventSlotDispatched, "publisher-worker", map[string]interface{}{
				"slot_id":        slot.ID.String(),
				"day":            slot.Day,
				"slot_index":     slot.SlotIndex,
				"content_id":     contentIDString(slot),
				"platform":       string(slot.Platform),
				"scheduled_time": slot.ScheduledTime,
			})
		}
	}
	return dispatched, nil
}

func (s *Service) recordSuccess(ctx context.Context, slot models.ScheduleSlot, outcome models.PublishOutcome) (models.ScheduleSlot, error) {
	ok, err := s.slots.MarkPosted(ctx, slot.ID)
	if err != nil {
		return models.ScheduleSlot{}, err
	}
	if !ok {
		return models.ScheduleSlot{}, ErrNotPosting
	}

	postedAt := outcome.OccurredAt
	if postedAt.IsZero() {
		postedAt = time.Now().UTC()
	}

	if slot.ContentID != nil {
		if err := s.records.Append(ctx, models.PublicationRecord{
			SlotID:      slot.ID,
			ContentID:   *slot.ContentID,
			Platform:    slot.Platform,
			ContentType: slot.ContentType,
			PostedAt:    postedAt,
		}); err != nil {
			logger.Log.WithError(err).WithField("slot_id", slot.ID).Error("Failed to append publication record")
		}
		if _, err := s.candidates.MarkPublished(ctx, *slot.ContentID); err != nil {
			logger.Log.WithError(err).WithField("content_id", *slot.ContentID).Error("Failed to mark candidate published")
		}
	}

	metrics.IncPublished()
	if s.events != nil {
		_ = s.events.PublishEvent(ctx, kafka.EventSlotPosted, "publication", map[string]interface{}{
			"slot_id":    slot.ID.String(),
			"content_id": contentIDString(slot),
			"platform":   string(slot.Platform),
		})
	}

	logger.Log.WithFields(map[string]interface{}{
		"slot_id":  slot.ID,
		"day":      slot.Day,
		"platform": string(slot.Platform),
	}).Info("Slot posted")

	return s.slots.Get(ctx, slot.ID)
}

func (s *Service) recordFailure(ctx context.Context, slot models.ScheduleSlot, outcome models.PublishOutcome) (models.ScheduleSlot, error) {
	reason := outcome.Reason
	if reason == "" {
		reason = "unknown delivery error"
	}

	ok, err := s.slots.MarkFailed(ctx, slot.ID, reason)
	if err != nil {
		return models.ScheduleSlot{}, err
	}
	if !ok {
		return models.ScheduleSlot{}, ErrNotPosting
	}

	metrics.IncPublishFailed()
	if s.events != nil {
		_ = s.events.PublishEvent(ctx, kafka.EventSlotFailed, "publication", map[string]interface{}{
			"slot_id":    slot.ID.String(),
			"content_id": contentIDString(slot),
			"reason":     reason,
		})
	}

	logger.Log.WithFields(map[string]interface{}{
		"slot_id": slot.ID,
		"day":     slot.Day,
		"reason":  reason,
	}).Warn("Slot delivery failed")

	return s.slots.Get(ctx, slot.ID)
}

func contentIDString(slot models.ScheduleSlot) string {
	if slot.ContentID == nil {
		return ""
	}
	return slot.ContentID.String()
}
