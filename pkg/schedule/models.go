package schedule

import (
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed-io/platform/pkg/common/models"
)

type slotModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;column:id"`
	Day           string     `gorm:"column:day;uniqueIndex:idx_day_slot"`
	SlotIndex     int        `gorm:"column:slot_index;uniqueIndex:idx_day_slot"`
	ScheduledTime time.Time  `gorm:"column:scheduled_time"`
	Status        string     `gorm:"column:status;index"`
	ContentID     *uuid.UUID `gorm:"type:uuid;column:content_id"`
	Platform      string     `gorm:"column:platform"`
	ContentType   string     `gorm:"column:content_type"`
	Reasoning     string     `gorm:"column:reasoning"`
	AttemptCount  int        `gorm:"column:attempt_count"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (slotModel) TableName() string { return "schedule_slots" }

func toDomain(m *slotModel) models.ScheduleSlot {
	return models.ScheduleSlot{
		ID:            m.ID,
		Day:           m.Day,
		SlotIndex:     m.SlotIndex,
		ScheduledTime: m.ScheduledTime,
		Status:        models.SlotStatus(m.Status),
		ContentID:     m.ContentID,
		Platform:      models.Platform(m.Platform),
		ContentType:   models.ContentType(m.ContentType),
		Reasoning:     m.Reasoning,
		AttemptCount:  m.AttemptCount,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
