package fingerprint

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pulsefeed-io/platform/pkg/common/models"
)

func TestComputeIsDeterministic(t *testing.T) {
	candidate := models.ContentCandidate{
		Text:      "A very good boy doing his best",
		ImageURL:  "https://cdn.example.com/dog.png",
		SourceURL: "https://reddit.com/r/aww/123",
	}

	first := Compute(candidate)
	second := Compute(candidate)
	if first != second {
		t.Fatalf("expected identical fingerprints, got %+v vs %+v", first, second)
	}
	if first.ContentHash == "" {
		t.Fatal("expected a content hash")
	}
}

func TestComputeNormalizesTextCosmetics(t *testing.T) {
	a := Compute(models.ContentCandidate{Text: "A Very  Good\tBoy doing his best", SourceURL: "https://a.example/1"})
	b := Compute(models.ContentCandidate{Text: "a very good boy Doing His Best", SourceURL: "https://a.example/2"})

	if a.TextSignature == "" || b.TextSignature == "" {
		t.Fatal("expected text signatures for captions above the minimum length")
	}
	if a.TextSignature != b.TextSignature {
		t.Fatalf("cosmetic edits should not change the signature: %q vs %q", a.TextSignature, b.TextSignature)
	}
}

func TestComputeOmitsShortTextSignature(t *testing.T) {
	set := Compute(models.ContentCandidate{Text: "lol nice", SourceURL: "https://a.example/3"})
	if set.TextSignature != "" {
		t.Fatalf("short generic captions must not produce a signature, got %q", set.TextSignature)
	}
}

func TestComputeTruncatesLongText(t *testing.T) {
	set := Compute(models.ContentCandidate{Text: strings.Repeat("word ", 100)})
	if len(set.TextSignature) != TextSignatureLength {
		t.Fatalf("expected signature of %d chars, got %d", TextSignatureLength, len(set.TextSignature))
	}
}

func TestComputeTruncatesOnRuneBoundaries(t *testing.T) {
	set := Compute(models.ContentCandidate{Text: strings.Repeat("ü", 150)})
	if !utf8.ValidString(set.TextSignature) {
		t.Fatalf("signature split a rune: %q", set.TextSignature)
	}
	if got := utf8.RuneCountInString(set.TextSignature); got != TextSignatureLength {
		t.Fatalf("expected signature of %d runes, got %d", TextSignatureLength, got)
	}
}

func TestComputeCountsRunesForMinimumLength(t *testing.T) {
	// 20 two-byte runes: long enough by rune count even though a byte count
	// would also pass; the short case below is the discriminating one.
	set := Compute(models.ContentCandidate{Text: strings.Repeat("é", 20)})
	if set.TextSignature == "" {
		t.Fatal("expected a signature for a 20-rune caption")
	}

	set = Compute(models.ContentCandidate{Text: strings.Repeat("é", 15)})
	if set.TextSignature != "" {
		t.Fatalf("15 runes is below the minimum, got %q", set.TextSignature)
	}
}

func TestMediaURLPrefersImage(t *testing.T) {
	set := Compute(models.ContentCandidate{
		ImageURL: "https://cdn.example.com/thumb.png",
		VideoURL: "https://cdn.example.com/clip.mp4",
	})
	if set.MediaURL != "https://cdn.example.com/thumb.png" {
		t.Fatalf("unexpected media URL %q", set.MediaURL)
	}

	set = Compute(models.ContentCandidate{VideoURL: "https://cdn.example.com/clip.mp4"})
	if set.MediaURL != "https://cdn.example.com/clip.mp4" {
		t.Fatalf("unexpected media URL %q", set.MediaURL)
	}
}

func TestSignalsOmitEmptyValues(t *testing.T) {
	set := Compute(models.ContentCandidate{Text: "hi"})
	signals := set.Signals()
	if _, ok := signals[SignalContentHash]; !ok {
		t.Fatal("content hash signal must always be present")
	}
	if _, ok := signals[SignalMediaURL]; ok {
		t.Fatal("media URL signal should be absent without media")
	}
	if _, ok := signals[SignalTextSignature]; ok {
		t.Fatal("text signature should be absent for short text")
	}
}
