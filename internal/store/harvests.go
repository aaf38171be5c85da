package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lox/harvesthorizon/internal/models"
)

const harvestColumns = `id, scenario_id, irrigation, fertilizer, avg_temperature, avg_precipitation,
	avg_soil_moisture, avg_solar_radiation, days, yield_percent, irrigation_adjustment,
	fertilizer_adjustment, water_usage, fertilizer_cost, feedback, climate_source, created_at`

// InsertHarvest records a scored round. Re-inserting the same ID is a no-op.
func (s *Store) InsertHarvest(h models.Harvest) error {
	feedback, err := json.Marshal(h.Result.Feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO harvests (`+harvestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, h.ID, h.ScenarioID, h.Decision.Irrigation, h.Decision.Fertilizer,
		h.Summary.AvgTemperature, h.Summary.AvgPrecipitation, h.Summary.AvgSoilMoisture,
		h.Summary.AvgSolarRadiation, h.Summary.Days, h.Result.YieldPercent,
		h.Result.IrrigationAdjustment, h.Result.FertilizerAdjustment, h.Result.WaterUsage,
		h.Result.FertilizerCost, string(feedback), h.ClimateSource, h.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert harvest: %w", err)
	}
	return nil
}

// GetHarvest returns nil when the ID is unknown.
func (s *Store) GetHarvest(id string) (*models.Harvest, error) {
	row := s.db.QueryRow(`SELECT `+harvestColumns+` FROM harvests WHERE id = ?`, id)
	h, err := scanHarvest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// RecentHarvests returns the latest rounds across all scenarios, newest first.
func (s *Store) RecentHarvests(limit int) ([]models.Harvest, error) {
	return s.queryHarvests(`SELECT `+harvestColumns+` FROM harvests ORDER BY created_at DESC LIMIT ?`, limit)
}

// TopHarvests returns the best yields for a scenario. Ties go to the earlier round.
func (s *Store) TopHarvests(scenarioID string, limit int) ([]models.Harvest, error) {
	return s.queryHarvests(`
		SELECT `+harvestColumns+` FROM harvests
		WHERE scenario_id = ?
		ORDER BY yield_percent DESC, created_at ASC
		LIMIT ?
	`, scenarioID, limit)
}

// HarvestStats is a per-scenario aggregate.
type HarvestStats struct {
	ScenarioID   string  `json:"scenario_id"`
	Rounds       int     `json:"rounds"`
	AvgYield     float64 `json:"avg_yield"`
	BestYield    float64 `json:"best_yield"`
	AvgWaterUse  float64 `json:"avg_water_use"`
	SyntheticPct float64 `json:"synthetic_pct"`
}

func (s *Store) HarvestStatsByScenario() ([]HarvestStats, error) {
	rows, err := s.db.Query(`
		SELECT scenario_id, COUNT(*), AVG(yield_percent), MAX(yield_percent), AVG(water_usage),
			100.0 * SUM(CASE WHEN climate_source = 'synthetic' THEN 1 ELSE 0 END) / COUNT(*)
		FROM harvests
		GROUP BY scenario_id
		ORDER BY scenario_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []HarvestStats
	for rows.Next() {
		var st HarvestStats
		if err := rows.Scan(&st.ScenarioID, &st.Rounds, &st.AvgYield, &st.BestYield, &st.AvgWaterUse, &st.SyntheticPct); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *Store) queryHarvests(query string, args ...any) ([]models.Harvest, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var harvests []models.Harvest
	for rows.Next() {
		h, err := scanHarvest(rows)
		if err != nil {
			return nil, err
		}
		harvests = append(harvests, *h)
	}
	return harvests, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHarvest(row scanner) (*models.Harvest, error) {
	var h models.Harvest
	var feedback string
	err := row.Scan(&h.ID, &h.ScenarioID, &h.Decision.Irrigation, &h.Decision.Fertilizer,
		&h.Summary.AvgTemperature, &h.Summary.AvgPrecipitation, &h.Summary.AvgSoilMoisture,
		&h.Summary.AvgSolarRadiation, &h.Summary.Days, &h.Result.YieldPercent,
		&h.Result.IrrigationAdjustment, &h.Result.FertilizerAdjustment, &h.Result.WaterUsage,
		&h.Result.FertilizerCost, &feedback, &h.ClimateSource, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(feedback), &h.Result.Feedback); err != nil {
		return nil, fmt.Errorf("unmarshal feedback for %s: %w", h.ID, err)
	}
	return &h, nil
}
