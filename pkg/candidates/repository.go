package candidates

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed-io/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrCandidateNotFound = errors.New("content candidate not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type candidateModel struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	Platform        string            `gorm:"column:platform;index"`
	ContentType     string            `gorm:"column:content_type"`
	Title           string            `gorm:"column:title"`
	Text            string            `gorm:"column:text"`
	ImageURL        string            `gorm:"column:image_url"`
	VideoURL        string            `gorm:"column:video_url"`
	SourceURL       string            `gorm:"column:source_url;index"`
	ConfidenceScore float64           `gorm:"column:confidence_score"`
	IsApproved      bool              `gorm:"column:is_approved;index"`
	IsPublished     bool              `gorm:"column:is_published;index"`
	Metadata        datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt       time.Time         `gorm:"column:created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at"`
}

func (candidateModel) TableName() string { return "content_candidates" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&candidateModel{})
}

func (r *Repository) Create(ctx context.Context, candidate models.ContentCandidate) error {
	now := time.Now().UTC()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	row := fromDomain(candidate)
	row.UpdatedAt = now
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (models.ContentCandidate, error) {
	var row candidateModel
	result := r.db.WithContext(ctx).First(&row, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.ContentCandidate{}, ErrCandidateNotFound
	}
	if result.Error != nil {
		return models.ContentCandidate{}, result.Error
	}
	return toDomain(&row), nil
}

// ListEligible returns approved, unpublished candidates oldest first, so
// allocation ties favor content that has waited longest in the queue.
func (r *Repository) ListEligible(ctx context.Context, limit int) ([]models.ContentCandidate, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []candidateModel
	result := r.db.WithContext(ctx).
		Where("is_approved = ? AND is_published = ?", true, false).
		Order("created_at asc").
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return toDomainSlice(rows), nil
}

func (r *Repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ContentCandidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []candidateModel
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return toDomainSlice(rows), nil
}

// MarkPublished flips is_published exactly once; a second caller observes
// zero rows affected.
func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&candidateModel{}).
		Where("id = ? AND is_published = ?", id, false).
		Updates(map[string]interface{}{
			"is_published": true,
			"updated_at":   time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

func toDomain(m *candidateModel) models.ContentCandidate {
	return models.ContentCandidate{
		ID:              m.ID,
		Platform:        models.Platform(m.Platform),
		ContentType:     models.ContentType(m.ContentType),
		Title:           m.Title,
		Text:            m.Text,
		ImageURL:        m.ImageURL,
		VideoURL:        m.VideoURL,
		SourceURL:       m.SourceURL,
		ConfidenceScore: m.ConfidenceScore,
		IsApproved:      m.IsApproved,
		IsPublished:     m.IsPublished,
		Metadata:        m.Metadata,
		CreatedAt:       m.CreatedAt,
	}
}

func fromDomain(c models.ContentCandidate) candidateModel {
	return candidateModel{
		ID:              c.ID,
		Platform:        string(c.Platform),
		ContentType:     string(c.ContentType),
		Title:           c.Title,
		Text:            c.Text,
		ImageURL:        c.ImageURL,
		VideoURL:        c.VideoURL,
		SourceURL:       c.SourceURL,
		ConfidenceScore: c.ConfidenceScore,
		IsApproved:      c.IsApproved,
		IsPublished:     c.IsPublished,
		Metadata:        datatypes.JSONMap(c.Metadata),
		CreatedAt:       c.CreatedAt,
	}
}

func toDomainSlice(rows []candidateModel) []models.ContentCandidate {
	result := make([]models.ContentCandidate, 0, len(rows))
	for i := range rows {
		result = append(result, toDomain(&rows[i]))
	}
	return result
}
