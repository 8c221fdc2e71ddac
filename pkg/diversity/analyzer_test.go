package diversity

import (
	"testing"
	"time"

	"github.com/pulsefeed-io/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(platform models.Platform, contentType models.ContentType, age time.Duration) models.PublicationRecord {
	return models.PublicationRecord{
		Platform:    platform,
		ContentType: contentType,
		PostedAt:    time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC).Add(-age),
	}
}

func TestPlatformPenaltyDecaysWithDistance(t *testing.T) {
	history := []models.PublicationRecord{
		record(models.PlatformReddit, models.ContentTypeImage, 0),
		record(models.PlatformYouTube, models.ContentTypeVideo, time.Hour),
		record(models.PlatformGiphy, models.ContentTypeGif, 2*time.Hour),
		record(models.PlatformTwitter, models.ContentTypeText, 3*time.Hour),
	}
	report := Analyze(history, DefaultTargets())

	// The two most recent platforms are hard-avoided.
	assert.Equal(t, 1.0, report.PlatformPenalty(models.PlatformReddit))
	assert.Equal(t, 1.0, report.PlatformPenalty(models.PlatformYouTube))

	// Further back the penalty decays.
	assert.Less(t, report.PlatformPenalty(models.PlatformGiphy), 1.0)
	assert.Less(t, report.PlatformPenalty(models.PlatformTwitter), report.PlatformPenalty(models.PlatformGiphy))

	// Unseen platforms carry no penalty.
	assert.Equal(t, 0.0, report.PlatformPenalty(models.PlatformInstagram))
}

func TestRecentPlatformsOrderedMostRecentFirst(t *testing.T) {
	history := []models.PublicationRecord{
		record(models.PlatformGiphy, models.ContentTypeGif, 0),
		record(models.PlatformReddit, models.ContentTypeImage, time.Hour),
	}
	report := Analyze(history, DefaultTargets())

	require.Len(t, report.RecentPlatforms, 2)
	assert.Equal(t, models.PlatformGiphy, report.RecentPlatforms[0])
	assert.Equal(t, models.PlatformReddit, report.RecentPlatforms[1])
}

func TestTypeBalanceRewardsUnderRepresentedTypes(t *testing.T) {
	// History is all images; video is starved.
	history := []models.PublicationRecord{
		record(models.PlatformReddit, models.ContentTypeImage, 0),
		record(models.PlatformGiphy, models.ContentTypeImage, time.Hour),
		record(models.PlatformReddit, models.ContentTypeImage, 2*time.Hour),
	}
	report := Analyze(history, DefaultTargets())

	assert.Greater(t, report.TypeBalanceScore(models.ContentTypeVideo), 1.0)
	assert.Less(t, report.TypeBalanceScore(models.ContentTypeImage), 1.0)
}

func TestTypeBalanceNeutralWithoutTargetOrHistory(t *testing.T) {
	report := Analyze(nil, DefaultTargets())
	assert.Equal(t, 1.0, report.TypeBalanceScore(models.ContentTypeVideo))

	history := []models.PublicationRecord{record(models.PlatformReddit, models.ContentTypeMixed, 0)}
	report = Analyze(history, DefaultTargets())
	assert.Equal(t, 1.0, report.TypeBalanceScore(models.ContentTypeMixed), "no target share means no bonus or penalty")
}

func TestDiversityScoreRange(t *testing.T) {
	balanced := []models.PublicationRecord{
		record(models.PlatformReddit, models.ContentTypeImage, 0),
		record(models.PlatformYouTube, models.ContentTypeVideo, time.Hour),
		record(models.PlatformGiphy, models.ContentTypeGif, 2*time.Hour),
		record(models.PlatformTwitter, models.ContentTypeImage, 3*time.Hour),
	}
	monotone := []models.PublicationRecord{
		record(models.PlatformReddit, models.ContentTypeImage, 0),
		record(models.PlatformReddit, models.ContentTypeImage, time.Hour),
		record(models.PlatformReddit, models.ContentTypeImage, 2*time.Hour),
		record(models.PlatformReddit, models.ContentTypeImage, 3*time.Hour),
	}

	balancedScore := Analyze(balanced, DefaultTargets()).DiversityScore
	monotoneScore := Analyze(monotone, DefaultTargets()).DiversityScore

	assert.GreaterOrEqual(t, balancedScore, 0.0)
	assert.LessOrEqual(t, balancedScore, 1.0)
	assert.Greater(t, balancedScore, monotoneScore)

	assert.Equal(t, 1.0, Analyze(nil, DefaultTargets()).DiversityScore)
}

func TestWindowAppliesBothBounds(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	records := []models.PublicationRecord{
		record(models.PlatformReddit, models.ContentTypeImage, 0),
		record(models.PlatformYouTube, models.ContentTypeVideo, time.Hour),
		record(models.PlatformGiphy, models.ContentTypeGif, 50*time.Hour),
	}

	byCount := Window(records, 2, 0, now)
	require.Len(t, byCount, 2)

	byAge := Window(records, 10, 24*time.Hour, now)
	require.Len(t, byAge, 2, "records older than the age bound are trimmed")

	both := Window(records, 1, 24*time.Hour, now)
	require.Len(t, both, 1, "the tighter bound wins")
}
