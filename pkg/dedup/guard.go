package dedup

import (
	"fmt"
	"sort"

	"github.com/pulsefeed-io/platform/pkg/common/models"
	"github.com/pulsefeed-io/platform/pkg/fingerprint"
)

// Exclusion reports one rejected candidate and the signal that matched.
// The reason string ends up in ScheduleSlot.Reasoning for the audit trail.
type Exclusion struct {
	Candidate models.ContentCandidate `json:"candidate"`
	Signal    string                  `json:"signal"`
	Reason    string                  `json:"reason"`
}

// Guard decides exact and near duplicates against a publication history
// window. It reports, it does not delete; callers own side effects.
type Guard struct {
	hashes     map[string]struct{}
	sourceURLs map[string]struct{}
	mediaURLs  map[string]struct{}
	textSigs   map[string]struct{}
}

// NewGuard builds the four lookup sets from the history window in a single
// pass.
func NewGuard(history []fingerprint.Set) *Guard {
	g := &Guard{
		hashes:     make(map[string]struct{}, len(history)),
		sourceURLs: make(map[string]struct{}, len(history)),
		mediaURLs:  make(map[string]struct{}, len(history)),
		textSigs:   make(map[string]struct{}, len(history)),
	}
	for _, set := range history {
		g.remember(set)
	}
	return g
}

// Filter streams candidates oldest-created first, excluding any whose
// fingerprint collides with the history window or with an earlier-accepted
// candidate in the same batch.
func (g *Guard) Filter(candidates []models.ContentCandidate) (eligible []models.ContentCandidate, excluded []Exclusion) {
	ordered := make([]models.ContentCandidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	for _, candidate := range ordered {
		set := fingerprint.Compute(candidate)
		if signal, value, dup := g.match(set); dup {
			excluded = append(excluded, Exclusion{
				Candidate: candidate,
				Signal:    signal,
				Reason:    fmt.Sprintf("duplicate %s: %s", signal, truncate(value, 120)),
			})
			continue
		}
		g.remember(set)
		eligible = append(eligible, candidate)
	}

	return eligible, excluded
}

func (g *Guard) match(set fingerprint.Set) (signal, value string, dup bool) {
	if _, ok := g.hashes[set.ContentHash]; ok {
		return fingerprint.SignalContentHash, set.ContentHash, true
	}
	if set.SourceURL != "" {
		if _, ok := g.sourceURLs[set.SourceURL]; ok {
			return fingerprint.SignalSourceURL, set.SourceURL, true
		}
	}
	if set.MediaURL != "" {
		if _, ok := g.mediaURLs[set.MediaURL]; ok {
			return fingerprint.SignalMediaURL, set.MediaURL, true
		}
	}
	if set.TextSignature != "" {
		if _, ok := g.textSigs[set.TextSignature]; ok {
			return fingerprint.SignalTextSignature, set.TextSignature, true
		}
	}
	return "", "", false
}

func (g *Guard) remember(set fingerprint.Set) {
	if set.ContentHash != "" {
		g.hashes[set.ContentHash] = struct{}{}
	}
	if set.SourceURL != "" {
		g.sourceURLs[set.SourceURL] = struct{}{}
	}
	if set.MediaURL != "" {
		g.mediaURLs[set.MediaURL] = struct{}{}
	}
	if set.TextSignature != "" {
		g.textSigs[set.TextSignature] = struct{}{}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
