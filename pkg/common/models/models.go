package models

import (
	"time"

	"github.com/google/uuid"
)

type Platform string

const (
	PlatformReddit    Platform = "reddit"
	PlatformYouTube   Platform = "youtube"
	PlatformGiphy     Platform = "giphy"
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
)

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeGif   ContentType = "gif"
	ContentTypeMixed ContentType = "mixed"
)

type SlotStatus string

const (
	SlotStatusPending SlotStatus = "pending"
	SlotStatusPosting SlotStatus = "posting"
	SlotStatusPosted  SlotStatus = "posted"
	SlotStatusFailed  SlotStatus = "failed"
)

type AllocationMode string

const (
	ModeCreate        AllocationMode = "create"
	ModeRefillMissing AllocationMode = "refill-missing"
)

// Slot result actions reported back to the trigger.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
)

// ContentCandidate is an item the scraping pipeline queued for publication.
// The engine reads candidates, it never creates them; is_published is the
// only field it flips, and only via the posting->posted transition.
type ContentCandidate struct {
	ID              uuid.UUID              `json:"id"`
	Platform        Platform               `json:"platform"`
	ContentType     ContentType            `json:"content_type"`
	Title           string                 `json:"title,omitempty"`
	Text            string                 `json:"text,omitempty"`
	ImageURL        string                 `json:"image_url,omitempty"`
	VideoURL        string                 `json:"video_url,omitempty"`
	SourceURL       string                 `json:"source_url"`
	ConfidenceScore float64                `json:"confidence_score"`
	IsApproved      bool                   `json:"is_approved"`
	IsPublished     bool                   `json:"is_published"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// ScheduleSlot is one fixed publication opportunity, addressed by day and
// ordinal index. (day, slot_index) is unique across the store.
type ScheduleSlot struct {
	ID            uuid.UUID   `json:"id"`
	Day           string      `json:"day"` // ISO calendar date, e.g. 2025-01-10
	SlotIndex     int         `json:"slot_index"`
	ScheduledTime time.Time   `json:"scheduled_time"`
	Status        SlotStatus  `json:"status"`
	ContentID     *uuid.UUID  `json:"content_id,omitempty"`
	Platform      Platform    `json:"platform,omitempty"`
	ContentType   ContentType `json:"content_type,omitempty"`
	Reasoning     string      `json:"reasoning,omitempty"`
	AttemptCount  int         `json:"attempt_count"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// PublicationRecord is the append-only trail written when a slot reaches
// posted. The dedup and diversity components read their history window
// from these rows.
type PublicationRecord struct {
	ID          uuid.UUID   `json:"id"`
	SlotID      uuid.UUID   `json:"slot_id"`
	ContentID   uuid.UUID   `json:"content_id"`
	Platform    Platform    `json:"platform"`
	ContentType ContentType `json:"content_type"`
	PostedAt    time.Time   `json:"posted_at"`
}

type AllocationRequest struct {
	Day         string         `json:"day"`
	Mode        AllocationMode `json:"mode"`
	ForceRefill bool           `json:"force_refill,omitempty"`
	MaxSlots    int            `json:"max_slots,omitempty"`
}

type SlotResult struct {
	SlotIndex int        `json:"slot_index"`
	Action    string     `json:"action"`
	ContentID *uuid.UUID `json:"content_id,omitempty"`
	Platform  Platform   `json:"platform,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
}

// AllocationSummary is the structured run report surfaced to the trigger
// and the dashboard; partial progress is always reported, never discarded.
type AllocationSummary struct {
	Day     string         `json:"day"`
	Mode    AllocationMode `json:"mode"`
	Filled  int            `json:"filled"`
	Skipped int            `json:"skipped"`
	Empty   int            `json:"empty"`
	Slots   []SlotResult   `json:"slots"`
	Errors  []string       `json:"errors,omitempty"`
}

// PublishOutcome is what the external publisher reports back after a
// delivery attempt on a posting-status slot.
type PublishOutcome struct {
	SlotID     uuid.UUID `json:"slot_id"`
	Success    bool      `json:"success"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // slot.assigned, slot.dispatched, slot.posted, slot.failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
