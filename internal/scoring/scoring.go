// Package scoring turns a climate series and a player's decision into a
// harvest result. Everything here is a pure function of its arguments.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/lox/harvesthorizon/internal/models"
)

var (
	ErrEmptySeries     = errors.New("empty climate series")
	ErrSeriesLength    = errors.New("climate series lengths differ")
	ErrInvalidDecision = errors.New("invalid decision")
)

const (
	BaseYield = 100.0
	MinYield  = 0.0
	MaxYield  = 150.0

	dryBelow = 0.3
	wetAbove = 0.5

	lowRainBelow = 2.0
	hotAbove     = 30.0
	wetRainAbove = 5.0
)

// Regime is the soil-moisture band a summary falls into.
type Regime string

const (
	RegimeDry     Regime = "dry"
	RegimeOptimal Regime = "optimal"
	RegimeWet     Regime = "wet"
)

// RegimeOf classifies average soil moisture. The optimal band is inclusive.
func RegimeOf(summary models.ConditionSummary) Regime {
	switch {
	case summary.AvgSoilMoisture < dryBelow:
		return RegimeDry
	case summary.AvgSoilMoisture > wetAbove:
		return RegimeWet
	default:
		return RegimeOptimal
	}
}

// Summarize averages each variable of the series.
func Summarize(series models.ClimateSeries) (models.ConditionSummary, error) {
	n := len(series.Temperature)
	if n == 0 || len(series.Precipitation) == 0 || len(series.SoilMoisture) == 0 || len(series.SolarRadiation) == 0 {
		return models.ConditionSummary{}, ErrEmptySeries
	}
	if len(series.Precipitation) != n || len(series.SoilMoisture) != n || len(series.SolarRadiation) != n {
		return models.ConditionSummary{}, fmt.Errorf("%w: temperature=%d precipitation=%d soil=%d solar=%d",
			ErrSeriesLength, n, len(series.Precipitation), len(series.SoilMoisture), len(series.SolarRadiation))
	}

	return models.ConditionSummary{
		AvgTemperature:    mean(series.Temperature),
		AvgPrecipitation:  mean(series.Precipitation),
		AvgSoilMoisture:   mean(series.SoilMoisture),
		AvgSolarRadiation: mean(series.SolarRadiation),
		Days:              n,
	}, nil
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Kind identifies a recommendation rule.
type Kind string

const (
	KindLowSoilMoisture Kind = "low_soil_moisture"
	KindLowRainfall     Kind = "low_rainfall"
	KindHighTemperature Kind = "high_temperature"
	KindOverwatering    Kind = "overwatering"
	KindOptimal         Kind = "optimal"
)

type Recommendation struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

var messages = map[Kind]string{
	KindLowSoilMoisture: "Low soil moisture detected - consider increasing irrigation",
	KindLowRainfall:     "Low rainfall period - crops may need supplemental water",
	KindHighTemperature: "High temperatures - increase irrigation to compensate",
	KindOverwatering:    "High moisture levels - reduce irrigation to prevent overwatering",
	KindOptimal:         "Conditions are optimal for current crop",
}

// Recommend evaluates every rule in a fixed order and returns all that match,
// or a single optimal entry when none do.
func Recommend(summary models.ConditionSummary) []Recommendation {
	var kinds []Kind
	if summary.AvgSoilMoisture < dryBelow {
		kinds = append(kinds, KindLowSoilMoisture)
	}
	if summary.AvgPrecipitation < lowRainBelow {
		kinds = append(kinds, KindLowRainfall)
	}
	if summary.AvgTemperature > hotAbove {
		kinds = append(kinds, KindHighTemperature)
	}
	if summary.AvgSoilMoisture > wetAbove && summary.AvgPrecipitation > wetRainAbove {
		kinds = append(kinds, KindOverwatering)
	}
	if len(kinds) == 0 {
		kinds = append(kinds, KindOptimal)
	}

	recs := make([]Recommendation, len(kinds))
	for i, k := range kinds {
		recs[i] = Recommendation{Kind: k, Message: messages[k]}
	}
	return recs
}

// Messages flattens recommendations to their text.
func Messages(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Message
	}
	return out
}

// Score grades a decision against the conditions and the scenario's optimum.
// The decision is assumed to be validated already.
func Score(summary models.ConditionSummary, decision models.Decision, optimal models.OptimalDecision) models.YieldResult {
	irr := irrigationTerm(summary, decision.Irrigation, optimal.Irrigation)
	fert := fertilizerTerm(decision.Fertilizer, optimal.Fertilizer)

	yield := math.Max(MinYield, math.Min(MaxYield, BaseYield+irr+fert))

	return models.YieldResult{
		YieldPercent:         yield,
		IrrigationAdjustment: irr,
		FertilizerAdjustment: fert,
		WaterUsage:           decision.Irrigation * 10,
		FertilizerCost:       decision.Fertilizer * 5,
		Feedback:             feedback(yield, summary, decision),
	}
}

func irrigationTerm(summary models.ConditionSummary, irrigation, optimal int) float64 {
	switch RegimeOf(summary) {
	case RegimeDry:
		if irrigation >= 50 {
			return 15
		}
		return -30
	case RegimeWet:
		if irrigation <= 30 {
			return 20
		}
		return -25
	default:
		diff := math.Abs(float64(irrigation - optimal))
		return math.Max(0, 20-diff/2)
	}
}

// fertilizerTerm takes the first matching band.
func fertilizerTerm(fertilizer, optimal int) float64 {
	diff := fertilizer - optimal
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 10:
		return 25
	case diff <= 20:
		return 10
	case fertilizer > 80:
		return -15
	case fertilizer < 20:
		return -20
	default:
		return 0
	}
}

func feedback(yield float64, summary models.ConditionSummary, decision models.Decision) []string {
	var headline string
	switch {
	case yield > 120:
		headline = "Outstanding! You mastered NASA data interpretation!"
	case yield > 100:
		headline = "Excellent work! Your decisions were well-informed."
	case yield > 85:
		headline = "Good job! Some room for optimization."
	default:
		headline = "Review the NASA data more carefully next time."
	}

	return []string{
		headline,
		"NASA Data Summary:",
		fmt.Sprintf("Avg Temperature: %.1f°C", summary.AvgTemperature),
		fmt.Sprintf("Avg Soil Moisture: %.2f", summary.AvgSoilMoisture),
		fmt.Sprintf("Avg Precipitation: %.2f mm/day", summary.AvgPrecipitation),
		"Your Decisions:",
		fmt.Sprintf("Irrigation: %d units", decision.Irrigation),
		fmt.Sprintf("Fertilizer: %d units", decision.Fertilizer),
	}
}

var validate = validator.New()

// ValidateDecision checks both levels are within [0, 100].
func ValidateDecision(d models.Decision) error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s must be between 0 and 100, got %v", ErrInvalidDecision, lowerFirst(fe.Field()), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
