package dedup

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed-io/platform/pkg/common/models"
	"github.com/pulsefeed-io/platform/pkg/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCandidate(sourceURL, mediaURL, text string, age time.Duration) models.ContentCandidate {
	return models.ContentCandidate{
		ID:        uuid.New(),
		Platform:  models.PlatformReddit,
		SourceURL: sourceURL,
		ImageURL:  mediaURL,
		Text:      text,
		CreatedAt: time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC).Add(-age),
	}
}

func TestFilterExcludesHistoricalSourceURL(t *testing.T) {
	published := newCandidate("https://reddit.com/r/aww/42", "", "a very good boy doing his best", time.Hour)
	history := []fingerprint.Set{fingerprint.Compute(published)}

	repost := newCandidate("https://reddit.com/r/aww/42", "", "totally different caption text here", 0)
	fresh := newCandidate("https://reddit.com/r/aww/43", "", "another good boy entirely here now", 0)

	eligible, excluded := NewGuard(history).Filter([]models.ContentCandidate{repost, fresh})

	require.Len(t, eligible, 1)
	assert.Equal(t, fresh.ID, eligible[0].ID)
	require.Len(t, excluded, 1)
	assert.Equal(t, fingerprint.SignalSourceURL, excluded[0].Signal)
	assert.Contains(t, excluded[0].Reason, "source URL")
}

func TestFilterCatchesInBatchMediaDuplicate(t *testing.T) {
	older := newCandidate("https://reddit.com/r/gifs/1", "https://cdn.example.com/same.gif", "", 2*time.Hour)
	newer := newCandidate("https://giphy.com/xyz", "https://cdn.example.com/same.gif", "", time.Hour)

	eligible, excluded := NewGuard(nil).Filter([]models.ContentCandidate{newer, older})

	// Oldest-created wins regardless of input order.
	require.Len(t, eligible, 1)
	assert.Equal(t, older.ID, eligible[0].ID)

	require.Len(t, excluded, 1)
	assert.Equal(t, newer.ID, excluded[0].Candidate.ID)
	assert.Equal(t, fingerprint.SignalMediaURL, excluded[0].Signal)
	assert.Contains(t, excluded[0].Reason, "media URL")
}

func TestFilterFlagsNearDuplicateCaptions(t *testing.T) {
	published := newCandidate("https://reddit.com/r/aww/1", "", "Look at this amazing sunset over the mountains tonight", time.Hour)
	history := []fingerprint.Set{fingerprint.Compute(published)}

	cosmetic := newCandidate("https://reddit.com/r/pics/9", "", "look at this AMAZING sunset  over the mountains tonight", 0)

	eligible, excluded := NewGuard(history).Filter([]models.ContentCandidate{cosmetic})

	assert.Empty(t, eligible)
	require.Len(t, excluded, 1)
	assert.Equal(t, fingerprint.SignalTextSignature, excluded[0].Signal)
}

func TestFilterIgnoresShortCaptionCollisions(t *testing.T) {
	published := newCandidate("https://reddit.com/r/aww/1", "", "nice", time.Hour)
	history := []fingerprint.Set{fingerprint.Compute(published)}

	short := newCandidate("https://reddit.com/r/aww/2", "", "nice", 0)

	eligible, excluded := NewGuard(history).Filter([]models.ContentCandidate{short})

	require.Len(t, eligible, 1, "short captions must not match each other")
	assert.Empty(t, excluded)
}

func TestFilterHasNoSideEffects(t *testing.T) {
	input := []models.ContentCandidate{
		newCandidate("https://reddit.com/r/aww/1", "", "", time.Hour),
		newCandidate("https://reddit.com/r/aww/2", "", "", 0),
	}
	original := make([]models.ContentCandidate, len(input))
	copy(original, input)

	_, _ = NewGuard(nil).Filter(input)

	assert.Equal(t, original, input, "filter must not reorder or mutate its input")
}
