package publication

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed-io/platform/pkg/common/logger"
	"github.com/pulsefeed-io/platform/pkg/common/models"
	"github.com/pulsefeed-io/platform/pkg/diversity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type recordModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	SlotID      uuid.UUID `gorm:"type:uuid;column:slot_id;index"`
	ContentID   uuid.UUID `gorm:"type:uuid;column:content_id;index"`
	Platform    string    `gorm:"column:platform"`
	ContentType string    `gorm:"column:content_type"`
	PostedAt    time.Time `gorm:"column:posted_at;index"`
}

func (recordModel) TableName() string { return "publication_records" }

// Repository persists the append-only publication trail and serves the
// recent-history window the dedup and diversity components read. The
// window is cached in redis; the cache is dropped on every append.
type Repository struct {
	db         *gorm.DB
	cache      *redis.Client
	maxRecords int
	maxAge     time.Duration
	cacheTTL   time.Duration
}

func NewRepository(db *gorm.DB, cache *redis.Client, maxRecords int, maxAge, cacheTTL time.Duration) *Repository {
	if maxRecords <= 0 {
		maxRecords = 50
	}
	if maxAge <= 0 {
		maxAge = 72 * time.Hour
	}
	return &Repository{
		db:         db,
		cache:      cache,
		maxRecords: maxRecords,
		maxAge:     maxAge,
		cacheTTL:   cacheTTL,
	}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&recordModel{})
}

// Append writes one record. Records are immutable once written.
func (r *Repository) Append(ctx context.Context, record models.PublicationRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.PostedAt.IsZero() {
		record.PostedAt = time.Now().UTC()
	}
	row := recordModel{
		ID:          record.ID,
		SlotID:      record.SlotID,
		ContentID:   record.ContentID,
		Platform:    string(record.Platform),
		ContentType: string(record.ContentType),
		PostedAt:    record.PostedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

// RecentWindow returns the history window, most recent first, bounded by
// both the record count and the age limit.
func (r *Repository) RecentWindow(ctx context.Context) ([]models.PublicationRecord, error) {
	if cached, ok := r.fromCache(ctx); ok {
		// A cache entry can outlive the age bound by up to the TTL.
		return diversity.Window(cached, r.maxRecords, r.maxAge, time.Now().UTC()), nil
	}

	cutoff := time.Now().UTC().Add(-r.maxAge)
	var rows []recordModel
	result := r.db.WithContext(ctx).
		Where("posted_at >= ?", cutoff).
		Order("posted_at desc").
		Limit(r.maxRecords).
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	records := make([]models.PublicationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.PublicationRecord{
			ID:          row.ID,
			SlotID:      row.SlotID,
			ContentID:   row.ContentID,
			Platform:    models.Platform(row.Platform),
			ContentType: models.ContentType(row.ContentType),
			PostedAt:    row.PostedAt,
		})
	}

	r.toCache(ctx, records)
	return records, nil
}

func (r *Repository) cacheKey() string {
	return fmt.Sprintf("history:recent:%d", r.maxRecords)
}

func (r *Repository) fromCache(ctx context.Context) ([]models.PublicationRecord, bool) {
	if r.cache == nil {
		return nil, false
	}
	payload, err := r.cache.Get(ctx, r.cacheKey()).Bytes()
	if err != nil {
		return nil, false
	}
	var records []models.PublicationRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		logger.Log.WithError(err).Warn("Discarding corrupt history cache entry")
		return nil, false
	}
	return records, true
}

func (r *Repository) toCache(ctx context.Context, records []models.PublicationRecord) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, r.cacheKey(), payload, r.cacheTTL).Err(); err != nil {
		logger.Log.WithError(err).Debug("Failed to cache history window")
	}
}

func (r *Repository) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, r.cacheKey()).Err(); err != nil {
		logger.Log.WithError(err).Debug("Failed to invalidate history cache")
	}
}
