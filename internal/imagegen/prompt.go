package imagegen

import (
	"fmt"
	"strings"

	"github.com/lox/harvesthorizon/internal/models"
	"github.com/lox/harvesthorizon/internal/scoring"
)

// Banner identifies one scenario header image.
type Banner struct {
	Scenario models.ScenarioConfig
	Regime   scoring.Regime
}

// Key is the cache key, e.g. "corn_iowa_wet".
func (b Banner) Key() string {
	return fmt.Sprintf("%s_%s", b.Scenario.ID, b.Regime)
}

var regimeScenes = map[scoring.Regime]string{
	scoring.RegimeDry:     "cracked dry soil, dusty haze, pale sky, wilting edges on the crop rows",
	scoring.RegimeOptimal: "healthy green rows, dark moist soil, soft morning light",
	scoring.RegimeWet:     "standing water between the rows, heavy grey clouds, puddles reflecting the sky",
}

var cropScenes = map[string]string{
	"wheat": "rolling wheat fields on the Kansas plains",
	"corn":  "tall corn fields in rural Iowa with a red barn",
	"rice":  "flooded rice paddies in California's Sacramento Valley with distant hills",
}

// Prompt builds the image prompt for the banner.
func (b Banner) Prompt() string {
	crop, ok := cropScenes[strings.ToLower(b.Scenario.Crop)]
	if !ok {
		crop = fmt.Sprintf("a %s farm", b.Scenario.Crop)
	}
	scene, ok := regimeScenes[b.Regime]
	if !ok {
		scene = regimeScenes[scoring.RegimeOptimal]
	}
	return fmt.Sprintf(
		"Wide landscape illustration of %s, %s. Seen from a low hill, painterly style, "+
			"muted natural palette, no text, no people, no logos. Composition leaves the lower third calm for overlaid text.",
		crop, scene)
}
