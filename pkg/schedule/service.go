package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed-io/platform/pkg/common/kafka"
	"github.com/pulsefeed-io/platform/pkg/common/logger"
	"github.com/pulsefeed-io/platform/pkg/common/models"
	"github.com/pulsefeed-io/platform/pkg/dedup"
	"github.com/pulsefeed-io/platform/pkg/diversity"
	"github.com/pulsefeed-io/platform/pkg/fingerprint"
	"github.com/pulsefeed-io/platform/pkg/observability/metrics"
)

var ErrInvalidDay = errors.New("day must be an ISO calendar date")

// SlotStore is the slot persistence the writer needs. Implemented by
// Repository; faked in tests.
type SlotStore interface {
	CreateEmpty(ctx context.Context, day string, slotIndex int, scheduledTime time.Time) (models.ScheduleSlot, error)
	ListByDay(ctx context.Context, day string) ([]models.ScheduleSlot, error)
	AssignContent(ctx context.Context, slotID uuid.UUID, candidate models.ContentCandidate, reasoning string) (bool, error)
	ReassignFailed(ctx context.Context, slotID uuid.UUID, candidate models.ContentCandidate, reasoning string, maxAttempts int) (bool, error)
	ExcludedContentIDs(ctx context.Context) ([]uuid.UUID, error)
	DeleteUnposted(ctx context.Context, day string) (int64, error)
}

type CandidateSource interface {
	ListEligible(ctx context.Context, limit int) ([]models.ContentCandidate, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ContentCandidate, error)
}

type HistorySource interface {
	RecentWindow(ctx context.Context) ([]models.PublicationRecord, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Options struct {
	MaxPerPlatform  int
	MaxSlotAttempts int
	PoolLimit       int
}

// Service is the schedule writer: it runs the allocator for a day and
// commits assignments slot by slot under the idempotency rules.
type Service struct {
	slots      SlotStore
	candidates CandidateSource
	history    HistorySource
	events     EventPublisher
	table      SlotTable
	targets    diversity.Targets
	opts       Options
}

func NewService(slots SlotStore, candidates CandidateSource, history HistorySource, events EventPublisher, table SlotTable, targets diversity.Targets, opts Options) *Service {
	if opts.MaxPerPlatform <= 0 {
		opts.MaxPerPlatform = 2
	}
	if opts.MaxSlotAttempts <= 0 {
		opts.MaxSlotAttempts = 3
	}
	if opts.PoolLimit <= 0 {
		opts.PoolLimit = 200
	}
	return &Service{
		slots:      slots,
		candidates: candidates,
		history:    history,
		events:     events,
		table:      table,
		targets:    targets,
		opts:       opts,
	}
}

// Allocate runs one allocation pass for a day. Safe to invoke repeatedly:
// slots that are posted, posting, or already filled are never touched, and
// each slot write is independently committed, so partial progress from an
// aborted run stands and a later refill-missing completes it.
func (s *Service) Allocate(ctx context.Context, req models.AllocationRequest) (models.AllocationSummary, error) {
	summary := models.AllocationSummary{Day: req.Day, Mode: req.Mode}

	if !ValidDay(req.Day) {
		return summary, ErrInvalidDay
	}
	if req.Mode == "" {
		req.Mode = models.ModeRefillMissing
		summary.Mode = req.Mode
	}
	if req.Mode != models.ModeCreate && req.Mode != models.ModeRefillMissing {
		return summary, fmt.Errorf("unknown allocation mode %q", req.Mode)
	}

	created, slots, err := s.ensureDay(ctx, req.Day)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}

	fillable, fixed := s.partition(slots, req, &summary)

	pool, guardExcluded, report, err := s.buildPool(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}

	assignments := Allocate(fillable, pool, report, AllocatorConfig{MaxPerPlatform: s.opts.MaxPerPlatform})

	aborted := false
	for _, assignment := range assignments {
		if aborted {
			summary.Slots = append(summary.Slots, models.SlotResult{
				SlotIndex: assignment.Slot.SlotIndex,
				Action:    models.ActionSkipped,
				Reasoning: "run aborted on storage error",
			})
			summary.Skipped++
			continue
		}
		result, fatal := s.commit(ctx, assignment, created, &summary)
		summary.Slots = append(summary.Slots, result)
		if fatal {
			aborted = true
		}
	}
	summary.Slots = append(summary.Slots, fixed...)
	sortResults(summary.Slots)

	metrics.ObserveAllocation(summary.Filled, summary.Skipped, summary.Empty, len(guardExcluded), report.DiversityScore)

	logger.Log.WithFields(map[string]interface{}{
		"day":      req.Day,
		"mode":     string(req.Mode),
		"filled":   summary.Filled,
		"skipped":  summary.Skipped,
		"empty":    summary.Empty,
		"excluded": len(guardExcluded),
	}).Info("Allocation run finished")

	return summary, nil
}

// GetDay returns the slot rows for a day, slot-index ordered.
func (s *Service) GetDay(ctx context.Context, day string) ([]models.ScheduleSlot, error) {
	if !ValidDay(day) {
		return nil, ErrInvalidDay
	}
	return s.slots.ListByDay(ctx, day)
}

// ResetDay removes a day's unposted slots. Posted and in-flight rows
// always survive.
func (s *Service) ResetDay(ctx context.Context, day string) (int64, error) {
	if !ValidDay(day) {
		return 0, ErrInvalidDay
	}
	removed, err := s.slots.DeleteUnposted(ctx, day)
	if err != nil {
		return 0, err
	}
	logger.Log.WithFields(map[string]interface{}{"day": day, "removed": removed}).Warn("Schedule day reset")
	return removed, nil
}

// DiversityReport exposes the analyzer output for dashboards.
func (s *Service) DiversityReport(ctx context.Context) (diversity.Report, error) {
	records, err := s.history.RecentWindow(ctx)
	if err != nil {
		return diversity.Report{}, err
	}
	return diversity.Analyze(records, s.targets), nil
}

// ensureDay creates any missing slot rows for the day and returns the set
// of indexes created by this run plus the full current row list.
func (s *Service) ensureDay(ctx context.Context, day string) (map[int]bool, []models.ScheduleSlot, error) {
	existing, err := s.slots.ListByDay(ctx, day)
	if err != nil {
		return nil, nil, fmt.Errorf("list slots: %w", err)
	}

	present := make(map[int]bool, len(existing))
	for _, slot := range existing {
		present[slot.SlotIndex] = true
	}

	created := make(map[int]bool)
	for index := 0; index < s.table.Count(); index++ {
		if present[index] {
			continue
		}
		scheduledTime, err := s.table.TimeFor(day, index)
		if err != nil {
			return nil, nil, err
		}
		if _, err := s.slots.CreateEmpty(ctx, day, index, scheduledTime); err != nil {
			if errors.Is(err, ErrSlotExists) {
				continue // concurrent run created it; pick it up on reload
			}
			return nil, nil, fmt.Errorf("create slot %d: %w", index, err)
		}
		created[index] = true
	}

	slots, err := s.slots.ListByDay(ctx, day)
	if err != nil {
		return nil, nil, fmt.Errorf("list slots: %w", err)
	}
	return created, slots, nil
}

// partition splits the day into fillable slots and fixed results for slots
// this run must not touch.
func (s *Service) partition(slots []models.ScheduleSlot, req models.AllocationRequest, summary *models.AllocationSummary) ([]models.ScheduleSlot, []models.SlotResult) {
	var fillable []models.ScheduleSlot
	var fixed []models.SlotResult

	budget := req.MaxSlots
	for _, slot := range slots {
		refillable := slot.Status == models.SlotStatusPending && slot.ContentID == nil
		retryable := slot.Status == models.SlotStatusFailed && req.ForceRefill && slot.AttemptCount < s.opts.MaxSlotAttempts

		if !refillable && !retryable {
			fixed = append(fixed, models.SlotResult{
				SlotIndex: slot.SlotIndex,
				Action:    models.ActionSkipped,
				ContentID: slot.ContentID,
				Platform:  slot.Platform,
				Reasoning: skipReason(slot, s.opts.MaxSlotAttempts),
			})
			summary.Skipped++
			continue
		}
		if budget > 0 && len(fillable) >= budget {
			fixed = append(fixed, models.SlotResult{
				SlotIndex: slot.SlotIndex,
				Action:    models.ActionSkipped,
				Reasoning: "max_slots budget reached",
			})
			summary.Skipped++
			continue
		}
		fillable = append(fillable, slot)
	}
	return fillable, fixed
}

// buildPool loads eligible candidates, filters duplicates against the
// history window, and returns the survivors with the diversity report.
func (s *Service) buildPool(ctx context.Context) ([]models.ContentCandidate, []dedup.Exclusion, diversity.Report, error) {
	records, err := s.history.RecentWindow(ctx)
	if err != nil {
		return nil, nil, diversity.Report{}, fmt.Errorf("load history window: %w", err)
	}
	report := diversity.Analyze(records, s.targets)

	pool, err := s.candidates.ListEligible(ctx, s.opts.PoolLimit)
	if err != nil {
		return nil, nil, report, fmt.Errorf("load candidates: %w", err)
	}

	excludedIDs, err := s.slots.ExcludedContentIDs(ctx)
	if err != nil {
		return nil, nil, report, fmt.Errorf("load assigned content: %w", err)
	}
	assigned := make(map[uuid.UUID]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		assigned[id] = true
	}
	unassigned := pool[:0]
	for _, candidate := range pool {
		if !assigned[candidate.ID] {
			unassigned = append(unassigned, candidate)
		}
	}

	historySets, err := s.historyFingerprints(ctx, records)
	if err != nil {
		return nil, nil, report, err
	}

	guard := dedup.NewGuard(historySets)
	eligible, excluded := guard.Filter(unassigned)
	for _, exclusion := range excluded {
		logger.Log.WithFields(map[string]interface{}{
			"candidate_id": exclusion.Candidate.ID,
			"signal":       exclusion.Signal,
		}).Info("Candidate excluded as duplicate")
	}

	return eligible, excluded, report, nil
}

func (s *Service) historyFingerprints(ctx context.Context, records []models.PublicationRecord) ([]fingerprint.Set, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ContentID)
	}
	published, err := s.candidates.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load published candidates: %w", err)
	}
	sets := make([]fingerprint.Set, 0, len(published))
	for _, candidate := range published {
		sets = append(sets, fingerprint.Compute(candidate))
	}
	return sets, nil
}

// commit persists one assignment. The bool result reports a fatal storage
// error; a lost conditional write is not fatal, just a skip.
func (s *Service) commit(ctx context.Context, assignment Assignment, created map[int]bool, summary *models.AllocationSummary) (models.SlotResult, bool) {
	slot := assignment.Slot

	if assignment.Candidate == nil {
		summary.Empty++
		action := models.ActionSkipped
		if created[slot.SlotIndex] {
			action = models.ActionCreated
		}
		return models.SlotResult{SlotIndex: slot.SlotIndex, Action: action, Reasoning: assignment.Reasoning}, false
	}

	candidate := *assignment.Candidate
	var ok bool
	var err error
	if slot.Status == models.SlotStatusFailed {
		ok, err = s.slots.ReassignFailed(ctx, slot.ID, candidate, assignment.Reasoning, s.opts.MaxSlotAttempts)
	} else {
		ok, err = s.slots.AssignContent(ctx, slot.ID, candidate, assignment.Reasoning)
	}
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("slot %d: %v", slot.SlotIndex, err))
		summary.Skipped++
		return models.SlotResult{
			SlotIndex: slot.SlotIndex,
			Action:    models.ActionSkipped,
			Reasoning: "storage error",
		}, true
	}
	if !ok {
		summary.Skipped++
		return models.SlotResult{
			SlotIndex: slot.SlotIndex,
			Action:    models.ActionSkipped,
			Reasoning: "skipped, already filled",
		}, false
	}

	summary.Filled++
	if s.events != nil {
		_ = s.events.PublishEvent(ctx, kafka.EventSlotAssigned, "scheduler", map[string]interface{}{
			"slot_id":    slot.ID.String(),
			"day":        slot.Day,
			"slot_index": slot.SlotIndex,
			"content_id": candidate.ID.String(),
			"platform":   string(candidate.Platform),
		})
	}

	action := models.ActionUpdated
	if created[slot.SlotIndex] {
		action = models.ActionCreated
	}
	return models.SlotResult{
		SlotIndex: slot.SlotIndex,
		Action:    action,
		ContentID: &candidate.ID,
		Platform:  candidate.Platform,
		Reasoning: assignment.Reasoning,
	}, false
}

func skipReason(slot models.ScheduleSlot, maxAttempts int) string {
	switch slot.Status {
	case models.SlotStatusPosted:
		return "already posted"
	case models.SlotStatusPosting:
		return "delivery in flight"
	case models.SlotStatusFailed:
		if slot.AttemptCount >= maxAttempts {
			return "failed beyond retry budget"
		}
		return "failed; forceRefill required to retry"
	default:
		return "already filled"
	}
}

func sortResults(results []models.SlotResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].SlotIndex < results[j].SlotIndex
	})
}
