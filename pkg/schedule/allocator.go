package schedule

import (
	"fmt"
	"sort"

	"github.com/pulsefeed-io/platform/pkg/common/models"
	"github.com/pulsefeed-io/platform/pkg/diversity"
)

const noCandidateReason = "no eligible candidate"

// Extra penalty applied per in-run use of a platform, so one allocation
// pass does not cluster a platform even when history carries no penalty.
const runPenaltyStep = 0.35

// Assignment pairs a slot with its winning candidate. A nil Candidate
// means the slot stays empty this run.
type Assignment struct {
	Slot      models.ScheduleSlot
	Candidate *models.ContentCandidate
	Reasoning string
}

type AllocatorConfig struct {
	// MaxPerPlatform caps how many slots one platform may win in a single
	// run. The cap is relaxed before a slot is left empty.
	MaxPerPlatform int
}

// Allocate fills slots greedily in slot-index order, highest composite
// score first. Deterministic for identical inputs: ties fall back to
// CreatedAt ascending, then candidate ID.
func Allocate(slots []models.ScheduleSlot, pool []models.ContentCandidate, report diversity.Report, cfg AllocatorConfig) []Assignment {
	maxPerPlatform := cfg.MaxPerPlatform
	if maxPerPlatform <= 0 {
		maxPerPlatform = 2
	}

	ordered := make([]models.ScheduleSlot, len(slots))
	copy(ordered, slots)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SlotIndex < ordered[j].SlotIndex
	})

	remaining := make([]models.ContentCandidate, len(pool))
	copy(remaining, pool)
	platformUse := make(map[models.Platform]int)

	assignments := make([]Assignment, 0, len(ordered))
	for _, slot := range ordered {
		winner, relaxed := pickBest(remaining, report, platformUse, maxPerPlatform)
		if winner < 0 {
			assignments = append(assignments, Assignment{Slot: slot, Reasoning: noCandidateReason})
			continue
		}

		candidate := remaining[winner]
		remaining = append(remaining[:winner], remaining[winner+1:]...)
		platformUse[candidate.Platform]++

		assignments = append(assignments, Assignment{
			Slot:      slot,
			Candidate: &candidate,
			Reasoning: reasoning(candidate, report, platformUse[candidate.Platform]-1, relaxed),
		})
	}

	return assignments
}

// pickBest returns the index of the highest-scoring candidate whose
// platform is under the per-run cap, or, when every remaining candidate is
// capped, relaxes the cap rather than leaving the slot empty.
func pickBest(pool []models.ContentCandidate, report diversity.Report, platformUse map[models.Platform]int, maxPerPlatform int) (int, bool) {
	best := bestIndex(pool, report, platformUse, func(c models.ContentCandidate) bool {
		return platformUse[c.Platform] < maxPerPlatform
	})
	if best >= 0 {
		return best, false
	}
	best = bestIndex(pool, report, platformUse, func(models.ContentCandidate) bool { return true })
	return best, best >= 0
}

func bestIndex(pool []models.ContentCandidate, report diversity.Report, platformUse map[models.Platform]int, admit func(models.ContentCandidate) bool) int {
	best := -1
	var bestScore float64
	for i, candidate := range pool {
		if !admit(candidate) {
			continue
		}
		candidateScore := compositeScore(candidate, report, platformUse[candidate.Platform])
		if best < 0 || candidateScore > bestScore || (candidateScore == bestScore && prefer(candidate, pool[best])) {
			best = i
			bestScore = candidateScore
		}
	}
	return best
}

// compositeScore is confidence * (1 - platform penalty) * type balance,
// where the platform penalty combines recent history with this run's own
// assignments so far.
func compositeScore(candidate models.ContentCandidate, report diversity.Report, usedInRun int) float64 {
	penalty := report.PlatformPenalty(candidate.Platform) + runPenaltyStep*float64(usedInRun)
	if penalty > 1 {
		penalty = 1
	}
	return candidate.ConfidenceScore * (1 - penalty) * report.TypeBalanceScore(candidate.ContentType)
}

// prefer breaks score ties: older queued content first, to bound queue age.
func prefer(a, b models.ContentCandidate) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func reasoning(candidate models.ContentCandidate, report diversity.Report, usedBefore int, relaxed bool) string {
	penalty := report.PlatformPenalty(candidate.Platform) + runPenaltyStep*float64(usedBefore)
	if penalty > 1 {
		penalty = 1
	}
	text := fmt.Sprintf(
		"selected %s/%s: confidence=%.2f, platform_penalty=%.2f, type_balance=%.2f",
		candidate.Platform,
		candidate.ContentType,
		candidate.ConfidenceScore,
		penalty,
		report.TypeBalanceScore(candidate.ContentType),
	)
	if relaxed {
		text += "; platform cap relaxed to avoid empty slot"
	}
	return text
}
