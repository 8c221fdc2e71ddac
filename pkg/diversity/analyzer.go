package diversity

import (
	"math"
	"time"

	"github.com/pulsefeed-io/platform/pkg/common/models"
)

const (
	// Platforms seen in the most recent hardAvoidDepth publications get the
	// full penalty of 1.
	hardAvoidDepth = 2

	// Penalty lost per step beyond the hard-avoid depth.
	penaltyDecayStep = 0.25

	// Balance score clamps keep one dimension from dominating the
	// composite selection score.
	minBalance = 0.25
	maxBalance = 2.0
)

// Report summarizes how over- or under-represented each platform and
// content type is in the recent publication history. Read-only; derived
// entirely from the window it was built from.
type Report struct {
	RecentPlatforms []models.Platform `json:"recent_platforms"`
	DiversityScore  float64           `json:"diversity_score"`
	WindowSize      int               `json:"window_size"`

	platformLastSeen map[models.Platform]int
	typeShares       map[models.ContentType]float64
	targets          Targets
}

// Window trims records to the most recent maxRecords and to those newer
// than maxAge; whichever bound is tighter wins. Records must be ordered
// most recent first.
func Window(records []models.PublicationRecord, maxRecords int, maxAge time.Duration, now time.Time) []models.PublicationRecord {
	if maxRecords > 0 && len(records) > maxRecords {
		records = records[:maxRecords]
	}
	if maxAge <= 0 {
		return records
	}
	cutoff := now.Add(-maxAge)
	for i, record := range records {
		if record.PostedAt.Before(cutoff) {
			return records[:i]
		}
	}
	return records
}

// Analyze builds a Report from a history window ordered most recent first.
func Analyze(history []models.PublicationRecord, targets Targets) Report {
	report := Report{
		platformLastSeen: make(map[models.Platform]int),
		typeShares:       make(map[models.ContentType]float64),
		targets:          targets,
		WindowSize:       len(history),
	}

	typeCounts := make(map[models.ContentType]int)
	for i, record := range history {
		report.RecentPlatforms = append(report.RecentPlatforms, record.Platform)
		if _, seen := report.platformLastSeen[record.Platform]; !seen {
			report.platformLastSeen[record.Platform] = i
		}
		typeCounts[record.ContentType]++
	}

	if len(history) > 0 {
		for contentType, count := range typeCounts {
			report.typeShares[contentType] = float64(count) / float64(len(history))
		}
	}

	report.DiversityScore = score(report, typeCounts)
	return report
}

// PlatformPenalty returns how strongly a platform should be avoided, in
// [0,1]. Full penalty inside the hard-avoid depth, decaying with distance.
func (r Report) PlatformPenalty(platform models.Platform) float64 {
	index, seen := r.platformLastSeen[platform]
	if !seen {
		return 0
	}
	if index < hardAvoidDepth {
		return 1
	}
	penalty := 1 - penaltyDecayStep*float64(index-hardAvoidDepth+1)
	if penalty < 0 {
		return 0
	}
	return penalty
}

// TypeBalanceScore is the ratio of target share to observed share; types
// under their target earn a bonus above 1, over-represented types a
// penalty below 1. Neutral when the window is empty or the type has no
// target.
func (r Report) TypeBalanceScore(contentType models.ContentType) float64 {
	target, hasTarget := r.targets.Shares[contentType]
	if !hasTarget || target <= 0 || r.WindowSize == 0 {
		return 1
	}
	observed := r.typeShares[contentType]
	if observed == 0 {
		return maxBalance
	}
	return clamp(target/observed, minBalance, maxBalance)
}

// score combines type-share deviation and platform spread into the overall
// 0-1 diversity score. Reporting only; selection uses the per-candidate
// methods above.
func score(r Report, typeCounts map[models.ContentType]int) float64 {
	if r.WindowSize == 0 {
		return 1
	}

	targetTotal := 0.0
	for _, share := range r.targets.Shares {
		targetTotal += share
	}
	deviation := 0.0
	if targetTotal > 0 {
		seen := make(map[models.ContentType]struct{})
		for contentType, target := range r.targets.Shares {
			deviation += math.Abs(r.typeShares[contentType] - target/targetTotal)
			seen[contentType] = struct{}{}
		}
		for contentType := range typeCounts {
			if _, ok := seen[contentType]; !ok {
				deviation += r.typeShares[contentType]
			}
		}
	}
	typeComponent := clamp(1-deviation/2, 0, 1)

	distinct := float64(len(r.platformLastSeen))
	ideal := math.Min(float64(r.WindowSize), 4)
	platformComponent := clamp(distinct/ideal, 0, 1)

	return clamp((typeComponent+platformComponent)/2, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
