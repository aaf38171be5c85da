// Package scenario holds the fixed set of farming scenarios a player can pick.
package scenario

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/lox/harvesthorizon/internal/models"
)

var ErrUnknownScenario = errors.New("unknown scenario")

// UnknownError is returned by Get for IDs not in the catalog.
type UnknownError struct {
	ID          string
	Suggestions []string
}

func (e *UnknownError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown scenario %q", e.ID)
	}
	return fmt.Sprintf("unknown scenario %q (did you mean %s?)", e.ID, strings.Join(e.Suggestions, ", "))
}

func (e *UnknownError) Unwrap() error { return ErrUnknownScenario }

const DefaultID = "wheat_kansas"

var catalog = []models.ScenarioConfig{
	{
		ID:          "wheat_kansas",
		Name:        "Wheat Farm - Kansas, USA",
		Crop:        "wheat",
		Difficulty:  "Easy",
		Description: "Moderate climate with variable rainfall. Learn basic soil moisture monitoring.",
		Location:    models.Location{Lat: 37.5, Lon: -95.5},
		Optimal:     models.OptimalDecision{Irrigation: 45, Fertilizer: 50},
	},
	{
		ID:          "corn_iowa",
		Name:        "Corn Farm - Iowa, USA",
		Crop:        "corn",
		Difficulty:  "Medium",
		Description: "Higher water needs. Balance abundant water with crop requirements.",
		Location:    models.Location{Lat: 42.0, Lon: -93.5},
		Optimal:     models.OptimalDecision{Irrigation: 60, Fertilizer: 55},
	},
	{
		ID:          "rice_california",
		Name:        "Rice Farm - California, USA",
		Crop:        "rice",
		Difficulty:  "Hard",
		Description: "High water needs in drought-prone region. Conservation is critical!",
		Location:    models.Location{Lat: 39.0, Lon: -121.5},
		Optimal:     models.OptimalDecision{Irrigation: 80, Fertilizer: 45},
	},
}

// All returns the catalog in display order. The slice is a copy.
func All() []models.ScenarioConfig {
	out := make([]models.ScenarioConfig, len(catalog))
	copy(out, catalog)
	return out
}

// IDs returns the scenario IDs in display order.
func IDs() []string {
	ids := make([]string, len(catalog))
	for i, s := range catalog {
		ids[i] = s.ID
	}
	return ids
}

// Get looks up a scenario by ID. Matching ignores case and surrounding space.
func Get(id string) (models.ScenarioConfig, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	for _, s := range catalog {
		if s.ID == key {
			return s, nil
		}
	}
	return models.ScenarioConfig{}, &UnknownError{ID: id, Suggestions: Suggest(key)}
}

// Suggest returns catalog IDs close to input, best match first.
func Suggest(input string) []string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return nil
	}

	type candidate struct {
		id   string
		dist int
	}
	var cands []candidate
	for _, s := range catalog {
		best := -1
		for _, alias := range []string{s.ID, s.Crop, strings.SplitN(s.ID, "_", 2)[1]} {
			if alias == input || strings.HasPrefix(alias, input) && len(input) >= 3 {
				best = 0
				break
			}
			dist := levenshtein.ComputeDistance(input, alias)
			if dist > levenshteinLimit(len(alias)) {
				continue
			}
			if best < 0 || dist < best {
				best = dist
			}
		}
		if best >= 0 {
			cands = append(cands, candidate{id: s.ID, dist: best})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].dist < cands[j].dist
	})
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}

func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
