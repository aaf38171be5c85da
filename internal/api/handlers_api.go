package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/lox/harvesthorizon/internal/climate"
	"github.com/lox/harvesthorizon/internal/farm"
	"github.com/lox/harvesthorizon/internal/models"
	"github.com/lox/harvesthorizon/internal/scenario"
	"github.com/lox/harvesthorizon/internal/scoring"
	"github.com/lox/harvesthorizon/internal/store"
)

const maxWindowDays = 366

var errNoClimate = errors.New("climate source not configured")

func (s *Server) handleAPIScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenario.All())
}

type ClimateResponse struct {
	Scenario        models.ScenarioConfig    `json:"scenario"`
	Source          climate.Source           `json:"source"`
	Notice          string                   `json:"notice,omitempty"`
	Series          models.ClimateSeries     `json:"series"`
	Summary         models.ConditionSummary  `json:"summary"`
	Regime          scoring.Regime           `json:"regime"`
	Recommendations []scoring.Recommendation `json:"recommendations"`
}

func (s *Server) handleAPIClimate(w http.ResponseWriter, r *http.Request) {
	if s.climate == nil {
		writeError(w, http.StatusServiceUnavailable, errNoClimate)
		return
	}
	sc, err := scenario.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	days := s.windowDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxWindowDays {
			writeError(w, http.StatusBadRequest, fmt.Errorf("days must be between 1 and %d", maxWindowDays))
			return
		}
		days = n
	}

	session, err := farm.Start(r.Context(), s.climate, sc, days)
	if err != nil {
		log.Printf("api: climate %s: %v", sc.ID, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, ClimateResponse{
		Scenario:        sc,
		Source:          session.Source,
		Notice:          session.Notice,
		Series:          session.Series,
		Summary:         session.Summary,
		Regime:          scoring.RegimeOf(session.Summary),
		Recommendations: session.Recommendations,
	})
}

type HarvestRequest struct {
	ScenarioID string `json:"scenario_id"`
	Irrigation int    `json:"irrigation"`
	Fertilizer int    `json:"fertilizer"`
}

type HarvestResponse struct {
	Harvest         models.Harvest           `json:"harvest"`
	Recommendations []scoring.Recommendation `json:"recommendations"`
	Notice          string                   `json:"notice,omitempty"`
	CardURL         string                   `json:"card_url"`
}

func (s *Server) handleAPIHarvest(w http.ResponseWriter, r *http.Request) {
	if s.climate == nil {
		writeError(w, http.StatusServiceUnavailable, errNoClimate)
		return
	}

	var req HarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.ScenarioID == "" {
		req.ScenarioID = scenario.DefaultID
	}

	d := models.Decision{Irrigation: req.Irrigation, Fertilizer: req.Fertilizer}
	session, h, err := s.sessions.Play(r.Context(), req.ScenarioID, d)
	switch {
	case errors.Is(err, scoring.ErrInvalidDecision), errors.Is(err, scenario.ErrUnknownScenario):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		log.Printf("api: harvest %s: %v", req.ScenarioID, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, HarvestResponse{
		Harvest:         h,
		Recommendations: session.Recommendations,
		Notice:          session.Notice,
		CardURL:         "/harvest-card/" + h.ID,
	})
}

func (s *Server) handleAPIHarvests(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	scenarioID := r.URL.Query().Get("scenario")
	if scenarioID != "" {
		sc, err := scenario.Get(scenarioID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		scenarioID = sc.ID
	}

	harvests := []models.Harvest{}
	if s.store != nil {
		var rows []models.Harvest
		if scenarioID != "" {
			rows, err = s.store.TopHarvests(scenarioID, limit)
		} else {
			rows, err = s.store.RecentHarvests(limit)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		harvests = append(harvests, rows...)
	}
	writeJSON(w, http.StatusOK, harvests)
}

type StatsResponse struct {
	Scenarios   []store.HarvestStats       `json:"scenarios"`
	FetchHealth []store.FetchHealthSummary `json:"fetch_health"`
	Archive     *store.RawPayloadStats     `json:"archive,omitempty"`
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Scenarios:   []store.HarvestStats{},
		FetchHealth: []store.FetchHealthSummary{},
	}
	if s.store != nil {
		stats, err := s.store.HarvestStatsByScenario()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		health, err := s.store.FetchHealth(7)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		archive, err := s.store.GetRawPayloadStats()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Archive = archive
		resp.Scenarios = append(resp.Scenarios, stats...)
		resp.FetchHealth = append(resp.FetchHealth, health...)
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 100 {
		return 0, errors.New("limit must be between 1 and 100")
	}
	return n, nil
}
