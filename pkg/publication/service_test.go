package publication

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed-io/platform/pkg/common/logger"
	"github.com/pulsefeed-io/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakeSlotStore struct {
	slots map[uuid.UUID]*models.ScheduleSlot
}

func newFakeSlotStore(slots ...*models.ScheduleSlot) *fakeSlotStore {
	store := &fakeSlotStore{slots: make(map[uuid.UUID]*models.ScheduleSlot)}
	for _, slot := range slots {
		store.slots[slot.ID] = slot
	}
	return store
}

func (f *fakeSlotStore) Get(_ context.Context, slotID uuid.UUID) (models.ScheduleSlot, error) {
	slot, ok := f.slots[slotID]
	if !ok {
		return models.ScheduleSlot{}, ErrNotClaimable
	}
	return *slot, nil
}

func (f *fakeSlotStore) ClaimForPosting(_ context.Context, slotID uuid.UUID) (bool, error) {
	slot, ok := f.slots[slotID]
	if !ok || slot.Status != models.SlotStatusPending || slot.ContentID == nil {
		return false, nil
	}
	slot.Status = models.SlotStatusPosting
	return true, nil
}

func (f *fakeSlotStore) MarkPosted(_ context.Context, slotID uuid.UUID) (bool, error) {
	slot, ok := f.slots[slotID]
	if !ok || slot.Status != models.SlotStatusPosting {
		return false, nil
	}
	slot.Status = models.SlotStatusPosted
	return true, nil
}

func (f *fakeSlotStore) MarkFailed(_ context.Context, slotID uuid.UUID, reason string) (bool, error) {
	slot, ok := f.slots[slotID]
	if !ok || slot.Status != models.SlotStatusPosting {
		return false, nil
	}
	slot.Status = models.SlotStatusFailed
	slot.Reasoning += "; delivery failed: " + reason
	slot.AttemptCount++
	return true, nil
}

func (f *fakeSlotStore) ListDue(_ context.Context, before time.Time) ([]models.ScheduleSlot, error) {
	var due []models.ScheduleSlot
	for _, slot := range f.slots {
		if slot.Status == models.SlotStatusPending && slot.ContentID != nil && !slot.ScheduledTime.After(before) {
			due = append(due, *slot)
		}
	}
	return due, nil
}

type fakeMarker struct {
	published map[uuid.UUID]bool
}

func (f *fakeMarker) MarkPublished(_ context.Context, id uuid.UUID) (bool, error) {
	if f.published == nil {
		f.published = make(map[uuid.UUID]bool)
	}
	first := !f.published[id]
	f.published[id] = true
	return first, nil
}

type fakeRecords struct {
	appended []models.PublicationRecord
}

func (f *fakeRecords) Append(_ context.Context, record models.PublicationRecord) error {
	f.appended = append(f.appended, record)
	return nil
}

type fakeEvents struct {
	types []string
}

func (f *fakeEvents) PublishEvent(_ context.Context, eventType, _ string, _ map[string]interface{}) error {
	f.types = append(f.types, eventType)
	return nil
}

func filledSlot(status models.SlotStatus) *models.ScheduleSlot {
	contentID := uuid.New()
	return &models.ScheduleSlot{
		ID:            uuid.New(),
		Day:           "2025-01-09",
		SlotIndex:     0,
		ScheduledTime: time.Date(2025, 1, 9, 8, 0, 0, 0, time.UTC),
		Status:        status,
		ContentID:     &contentID,
		Platform:      models.PlatformReddit,
		ContentType:   models.ContentTypeImage,
		Reasoning:     "selected reddit image",
	}
}

func TestClaimWinnerMovesSlotToPosting(t *testing.T) {
	slot := filledSlot(models.SlotStatusPending)
	store := newFakeSlotStore(slot)
	svc := NewService(store, &fakeMarker{}, &fakeRecords{}, nil)

	claimed, err := svc.Claim(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusPosting, claimed.Status)

	_, err = svc.Claim(context.Background(), slot.ID)
	assert.ErrorIs(t, err, ErrNotClaimable)
}

func TestClaimRejectsEmptySlot(t *testing.T) {
	slot := filledSlot(models.SlotStatusPending)
	slot.ContentID = nil
	svc := NewService(newFakeSlotStore(slot), &fakeMarker{}, &fakeRecords{}, nil)

	_, err := svc.Claim(context.Background(), slot.ID)
	assert.ErrorIs(t, err, ErrNotClaimable)
}

func TestSuccessOutcomeWritesRecordAndFlipsCandidate(t *testing.T) {
	slot := filledSlot(models.SlotStatusPosting)
	store := newFakeSlotStore(slot)
	marker := &fakeMarker{}
	records := &fakeRecords{}
	events := &fakeEvents{}
	svc := NewService(store, marker, records, events)

	postedAt := time.Date(2025, 1, 9, 8, 0, 12, 0, time.UTC)
	updated, err := svc.RecordOutcome(context.Background(), models.PublishOutcome{
		SlotID:     slot.ID,
		Success:    true,
		OccurredAt: postedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusPosted, updated.Status)

	require.Len(t, records.appended, 1)
	assert.Equal(t, slot.ID, records.appended[0].SlotID)
	assert.Equal(t, *slot.ContentID, records.appended[0].ContentID)
	assert.Equal(t, models.PlatformReddit, records.appended[0].Platform)
	assert.Equal(t, postedAt, records.appended[0].PostedAt)

	assert.True(t, marker.published[*slot.ContentID])
	assert.Contains(t, events.types, "slot.posted")
}

func TestFailureOutcomeBurnsAttemptAndKeepsCandidate(t *testing.T) {
	slot := filledSlot(models.SlotStatusPosting)
	store := newFakeSlotStore(slot)
	marker := &fakeMarker{}
	records := &fakeRecords{}
	events := &fakeEvents{}
	svc := NewService(store, marker, records, events)

	updated, err := svc.RecordOutcome(context.Background(), models.PublishOutcome{
		SlotID:  slot.ID,
		Success: false,
		Reason:  "rate limited",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusFailed, updated.Status)
	assert.Equal(t, 1, updated.AttemptCount)
	assert.Contains(t, updated.Reasoning, "delivery failed: rate limited")

	assert.Empty(t, records.appended, "failures never reach the publication trail")
	assert.Empty(t, marker.published)
	assert.Contains(t, events.types, "slot.failed")
}

func TestStaleOutcomeIsRejected(t *testing.T) {
	slot := filledSlot(models.SlotStatusPosted)
	svc := NewService(newFakeSlotStore(slot), &fakeMarker{}, &fakeRecords{}, nil)

	_, err := svc.RecordOutcome(context.Background(), models.PublishOutcome{SlotID: slot.ID, Success: true})
	assert.ErrorIs(t, err, ErrNotPosting)

	_, err = svc.RecordOutcome(context.Background(), models.PublishOutcome{SlotID: slot.ID, Success: false, Reason: "late report"})
	assert.ErrorIs(t, err, ErrNotPosting)
}

func TestDispatchDueClaimsOnlyRipeFilledSlots(t *testing.T) {
	now := time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC)

	due := filledSlot(models.SlotStatusPending)
	future := filledSlot(models.SlotStatusPending)
	future.ScheduledTime = now.Add(time.Hour)
	empty := filledSlot(models.SlotStatusPending)
	empty.ContentID = nil
	done := filledSlot(models.SlotStatusPosted)

	store := newFakeSlotStore(due, future, empty, done)
	events := &fakeEvents{}
	svc := NewService(store, &fakeMarker{}, &fakeRecords{}, events)

	dispatched, err := svc.DispatchDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)
	assert.Equal(t, models.SlotStatusPosting, store.slots[due.ID].Status)
	assert.Equal(t, models.SlotStatusPending, store.slots[future.ID].Status)
	assert.Equal(t, []string{"slot.dispatched"}, events.types)
}
