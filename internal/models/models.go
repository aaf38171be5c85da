package models

import "time"

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ClimateSeries holds one value per day for each variable, oldest first.
type ClimateSeries struct {
	Dates          []time.Time `json:"dates,omitempty"`
	Temperature    []float64   `json:"temperature"`     // °C
	Precipitation  []float64   `json:"precipitation"`   // mm/day
	SoilMoisture   []float64   `json:"soil_moisture"`   // root-zone wetness, 0-1 nominal
	SolarRadiation []float64   `json:"solar_radiation"` // kWh/m²/day
}

// Len returns the number of days in the series.
func (s ClimateSeries) Len() int {
	return len(s.Temperature)
}

type ConditionSummary struct {
	AvgTemperature    float64 `json:"avg_temperature"`
	AvgPrecipitation  float64 `json:"avg_precipitation"`
	AvgSoilMoisture   float64 `json:"avg_soil_moisture"`
	AvgSolarRadiation float64 `json:"avg_solar_radiation"`
	Days              int     `json:"days"`
}

type Decision struct {
	Irrigation int `json:"irrigation" validate:"min=0,max=100"`
	Fertilizer int `json:"fertilizer" validate:"min=0,max=100"`
}

type OptimalDecision struct {
	Irrigation int `json:"irrigation"`
	Fertilizer int `json:"fertilizer"`
}

type ScenarioConfig struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Crop        string          `json:"crop"`
	Difficulty  string          `json:"difficulty"`
	Description string          `json:"description"`
	Location    Location        `json:"location"`
	Optimal     OptimalDecision `json:"optimal"`
}

type YieldResult struct {
	YieldPercent         float64  `json:"yield_percent"`
	IrrigationAdjustment float64  `json:"irrigation_adjustment"`
	FertilizerAdjustment float64  `json:"fertilizer_adjustment"`
	WaterUsage           int      `json:"water_usage"`     // litres
	FertilizerCost       int      `json:"fertilizer_cost"` // dollars
	Feedback             []string `json:"feedback"`
}

// Harvest is one scored round, as persisted in the harvest log.
type Harvest struct {
	ID            string           `json:"id"`
	ScenarioID    string           `json:"scenario_id"`
	Decision      Decision         `json:"decision"`
	Summary       ConditionSummary `json:"summary"`
	Result        YieldResult      `json:"result"`
	ClimateSource string           `json:"climate_source"` // "live" or "synthetic"
	CreatedAt     time.Time        `json:"created_at"`
}
