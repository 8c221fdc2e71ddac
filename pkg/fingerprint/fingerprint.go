package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pulsefeed-io/platform/pkg/common/models"
)

const (
	// Captions shorter than this produce no text signature; short generic
	// captions ("lol", "check this out") would flag unrelated items.
	MinTextLength = 20

	// Length of the coarse text signature in normalized runes.
	TextSignatureLength = 100
)

// Signal names, used as exclusion reasons in the audit trail.
const (
	SignalContentHash   = "content hash"
	SignalSourceURL     = "source URL"
	SignalMediaURL      = "media URL"
	SignalTextSignature = "text signature"
)

// Set holds the independent duplicate-detection signals for one candidate.
// Each non-empty signal is individually sufficient to flag a duplicate.
type Set struct {
	ContentHash   string `json:"content_hash"`
	SourceURL     string `json:"source_url,omitempty"`
	MediaURL      string `json:"media_url,omitempty"`
	TextSignature string `json:"text_signature,omitempty"`
}

// Compute derives the fingerprint set from a candidate's fields. Pure and
// deterministic; no store or network access.
func Compute(c models.ContentCandidate) Set {
	normalizedText := normalize(c.Text)

	set := Set{
		ContentHash: contentHash(normalizedText, c.ImageURL, c.VideoURL, c.SourceURL),
		SourceURL:   strings.TrimSpace(c.SourceURL),
		MediaURL:    mediaURL(c),
	}

	if runes := []rune(normalizedText); len(runes) >= MinTextLength {
		if len(runes) > TextSignatureLength {
			runes = runes[:TextSignatureLength]
		}
		set.TextSignature = string(runes)
	}

	return set
}

// Signals returns the present signals keyed by signal name.
func (s Set) Signals() map[string]string {
	signals := map[string]string{
		SignalContentHash: s.ContentHash,
	}
	if s.SourceURL != "" {
		signals[SignalSourceURL] = s.SourceURL
	}
	if s.MediaURL != "" {
		signals[SignalMediaURL] = s.MediaURL
	}
	if s.TextSignature != "" {
		signals[SignalTextSignature] = s.TextSignature
	}
	return signals
}

func contentHash(normalizedText, imageURL, videoURL, sourceURL string) string {
	parts := []string{
		normalizedText,
		strings.ToLower(strings.TrimSpace(imageURL)),
		strings.ToLower(strings.TrimSpace(videoURL)),
		strings.ToLower(strings.TrimSpace(sourceURL)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// mediaURL picks the candidate's media asset URL; an identical asset reused
// with a different caption is still a duplicate.
func mediaURL(c models.ContentCandidate) string {
	if url := strings.TrimSpace(c.ImageURL); url != "" {
		return url
	}
	return strings.TrimSpace(c.VideoURL)
}

// normalize case-folds and collapses all runs of whitespace to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
