package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed-io/platform/pkg/common/models"
	"gorm.io/gorm"
)

var (
	ErrSlotNotFound = errors.New("schedule slot not found")
	ErrSlotExists   = errors.New("schedule slot already exists")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&slotModel{})
}

// CreateEmpty inserts a pending, unfilled slot row. A unique-index
// violation on (day, slot_index) means another run created it first.
func (r *Repository) CreateEmpty(ctx context.Context, day string, slotIndex int, scheduledTime time.Time) (models.ScheduleSlot, error) {
	now := time.Now().UTC()
	row := slotModel{
		ID:            uuid.New(),
		Day:           day,
		SlotIndex:     slotIndex,
		ScheduledTime: scheduledTime,
		Status:        string(models.SlotStatusPending),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ScheduleSlot{}, ErrSlotExists
	}
	if err != nil {
		return models.ScheduleSlot{}, err
	}
	return toDomain(&row), nil
}

func (r *Repository) Get(ctx context.Context, slotID uuid.UUID) (models.ScheduleSlot, error) {
	var row slotModel
	result := r.db.WithContext(ctx).First(&row, "id = ?", slotID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.ScheduleSlot{}, ErrSlotNotFound
	}
	if result.Error != nil {
		return models.ScheduleSlot{}, result.Error
	}
	return toDomain(&row), nil
}

func (r *Repository) ListByDay(ctx context.Context, day string) ([]models.ScheduleSlot, error) {
	var rows []slotModel
	result := r.db.WithContext(ctx).Where("day = ?", day).Order("slot_index asc").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	slots := make([]models.ScheduleSlot, 0, len(rows))
	for i := range rows {
		slots = append(slots, toDomain(&rows[i]))
	}
	return slots, nil
}

// AssignContent claims an empty pending slot for a candidate. The WHERE
// clause is the concurrency guard: a racing run that lost observes zero
// rows affected and reports the slot as skipped.
func (r *Repository) AssignContent(ctx context.Context, slotID uuid.UUID, candidate models.ContentCandidate, reasoning string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&slotModel{}).
		Where("id = ? AND status = ? AND content_id IS NULL", slotID, string(models.SlotStatusPending)).
		Updates(map[string]interface{}{
			"content_id":   candidate.ID,
			"platform":     string(candidate.Platform),
			"content_type": string(candidate.ContentType),
			"reasoning":    reasoning,
			"updated_at":   time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

// ReassignFailed puts a failed slot back to pending with new content,
// only while its attempt count is under the budget.
func (r *Repository) ReassignFailed(ctx context.Context, slotID uuid.UUID, candidate models.ContentCandidate, reasoning string, maxAttempts int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&slotModel{}).
		Where("id = ? AND status = ? AND attempt_count < ?", slotID, string(models.SlotStatusFailed), maxAttempts).
		Updates(map[string]interface{}{
			"status":       string(models.SlotStatusPending),
			"content_id":   candidate.ID,
			"platform":     string(candidate.Platform),
			"content_type": string(candidate.ContentType),
			"reasoning":    reasoning,
			"updated_at":   time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

// ClaimForPosting moves a filled pending slot to posting. Only one caller
// can win the claim.
func (r *Repository) ClaimForPosting(ctx context.Context, slotID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&slotModel{}).
		Where("id = ? AND status = ? AND content_id IS NOT NULL", slotID, string(models.SlotStatusPending)).
		Updates(map[string]interface{}{
			"status":     string(models.SlotStatusPosting),
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *Repository) MarkPosted(ctx context.Context, slotID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&slotModel{}).
		Where("id = ? AND status = ?", slotID, string(models.SlotStatusPosting)).
		Updates(map[string]interface{}{
			"status":     string(models.SlotStatusPosted),
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *Repository) MarkFailed(ctx context.Context, slotID uuid.UUID, reason string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&slotModel{}).
		Where("id = ? AND status = ?", slotID, string(models.SlotStatusPosting)).
		Updates(map[string]interface{}{
			"status":        string(models.SlotStatusFailed),
			"reasoning":     gorm.Expr("reasoning || ?", "; delivery failed: "+reason),
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

// ExcludedContentIDs returns content IDs already held by a live slot, in
// any day. Failed slots do not hold their content; a later run may pick
// the candidate again.
func (r *Repository) ExcludedContentIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	result := r.db.WithContext(ctx).Model(&slotModel{}).
		Where("content_id IS NOT NULL AND status IN ?", []string{
			string(models.SlotStatusPending),
			string(models.SlotStatusPosting),
			string(models.SlotStatusPosted),
		}).
		Pluck("content_id", &ids)
	return ids, result.Error
}

// ListDue returns filled pending slots whose scheduled time has passed.
func (r *Repository) ListDue(ctx context.Context, before time.Time) ([]models.ScheduleSlot, error) {
	var rows []slotModel
	result := r.db.WithContext(ctx).
		Where("status = ? AND content_id IS NOT NULL AND scheduled_time <= ?", string(models.SlotStatusPending), before).
		Order("scheduled_time asc").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	slots := make([]models.ScheduleSlot, 0, len(rows))
	for i := range rows {
		slots = append(slots, toDomain(&rows[i]))
	}
	return slots, nil
}

// DeleteUnposted removes a day's slots for an administrative reset.
// Posted and in-flight slots are never deleted.
func (r *Repository) DeleteUnposted(ctx context.Context, day string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("day = ? AND status NOT IN ?", day, []string{string(models.SlotStatusPosted), string(models.SlotStatusPosting)}).
		Delete(&slotModel{})
	return result.RowsAffected, result.Error
}
