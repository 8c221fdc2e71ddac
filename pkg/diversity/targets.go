package diversity

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pulsefeed-io/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Targets holds the desired share of the published feed per content type.
// Shares need not sum to exactly 1; they are compared ratio-wise.
type Targets struct {
	Shares map[models.ContentType]float64 `yaml:"shares" json:"shares"`
}

func LoadTargets(path string) (Targets, error) {
	if path == "" {
		return DefaultTargets(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultTargets(), err
	}

	var targets Targets
	if err := yaml.Unmarshal(content, &targets); err != nil {
		return Targets{}, err
	}

	if len(targets.Shares) == 0 {
		return Targets{}, errors.New("no diversity target shares configured")
	}

	return targets, nil
}

func DefaultTargets() Targets {
	return Targets{Shares: map[models.ContentType]float64{
		models.ContentTypeVideo: 0.30,
		models.ContentTypeImage: 0.40,
		models.ContentTypeGif:   0.25,
		models.ContentTypeText:  0.05,
	}}
}
