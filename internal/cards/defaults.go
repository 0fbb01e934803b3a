package cards

import (
	"strconv"

	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
)

var defaultWords = []string{
	"anchor", "bridge", "candle", "desert", "engine", "feather",
	"glacier", "harbor", "island", "jungle", "kettle", "lantern",
	"meadow", "needle", "orchard", "pepper", "quarry", "river",
	"saddle", "thunder", "umbrella", "valley", "willow", "yarn",
}

// Default returns the built-in card set used when no CSV is configured, numbered from 1
func Default() []draft.CardSpec {
	specs := make([]draft.CardSpec, len(defaultWords))
	for i, w := range defaultWords {
		specs[i] = draft.CardSpec{Key: strconv.Itoa(i + 1), Label: w}
	}
	return specs
}

// Load reads path when set and falls back to the built-in set otherwise
func Load(path string) ([]draft.CardSpec, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadCSV(path)
}
