package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lox/harvesthorizon/internal/imagegen"
	"github.com/lox/harvesthorizon/internal/models"
	"github.com/lox/harvesthorizon/internal/scenario"
	"github.com/lox/harvesthorizon/internal/scoring"
)

const bannerTimeout = 2 * time.Minute

// handleScenarioImage serves the banner for a scenario. The regime comes from
// ?regime= when given, otherwise from the scenario's current climate.
func (s *Server) handleScenarioImage(w http.ResponseWriter, r *http.Request) {
	sc, err := scenario.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var regime scoring.Regime
	switch v := scoring.Regime(r.URL.Query().Get("regime")); v {
	case scoring.RegimeDry, scoring.RegimeOptimal, scoring.RegimeWet:
		regime = v
	case "":
		regime = s.currentRegime(r.Context(), sc)
	default:
		http.Error(w, "regime must be dry, optimal or wet", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bannerTimeout)
	defer cancel()

	data, err := s.images.Banner(ctx, imagegen.Banner{Scenario: sc, Regime: regime})
	if err != nil {
		if !errors.Is(err, imagegen.ErrNoBanner) {
			log.Printf("api: scenario image %s: %v", sc.ID, err)
		}
		http.Error(w, "Scenario image unavailable", http.StatusServiceUnavailable)
		return
	}
	servePNG(w, data, time.Hour)
}

func (s *Server) currentRegime(ctx context.Context, sc models.ScenarioConfig) scoring.Regime {
	if s.climate == nil {
		return scoring.RegimeOptimal
	}
	res, err := s.climate.Fetch(ctx, sc.Location.Lat, sc.Location.Lon, s.windowDays)
	if err != nil {
		return scoring.RegimeOptimal
	}
	summary, err := scoring.Summarize(res.Series)
	if err != nil {
		return scoring.RegimeOptimal
	}
	return scoring.RegimeOf(summary)
}

// handleHarvestCard renders the share card for a recorded harvest, over the
// scenario banner when one is cached or can be generated.
func (s *Server) handleHarvestCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if data, ok := s.cards.Get(id); ok {
		servePNG(w, data, 5*time.Minute)
		return
	}

	h, err := s.lookupHarvest(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if h == nil {
		http.NotFound(w, r)
		return
	}

	sc, err := scenario.Get(h.ScenarioID)
	if err != nil {
		sc = models.ScenarioConfig{ID: h.ScenarioID, Name: h.ScenarioID}
	}

	ctx, cancel := context.WithTimeout(r.Context(), bannerTimeout)
	defer cancel()
	banner, err := s.images.Banner(ctx, imagegen.Banner{Scenario: sc, Regime: scoring.RegimeOf(h.Summary)})
	if err != nil && !errors.Is(err, imagegen.ErrNoBanner) {
		log.Printf("api: harvest card %s banner: %v", id, err)
	}

	headline := ""
	if len(h.Result.Feedback) > 0 {
		headline = h.Result.Feedback[0]
	}
	data, err := imagegen.RenderHarvestCard(banner, imagegen.CardData{
		ScenarioName: sc.Name,
		YieldPercent: h.Result.YieldPercent,
		Headline:     headline,
		Irrigation:   h.Decision.Irrigation,
		Fertilizer:   h.Decision.Fertilizer,
		WaterUsage:   h.Result.WaterUsage,
	})
	if err != nil {
		log.Printf("api: harvest card %s: %v", id, err)
		http.Error(w, "Failed to render harvest card", http.StatusInternalServerError)
		return
	}

	s.cards.Set(id, data)
	servePNG(w, data, 5*time.Minute)
}

func (s *Server) lookupHarvest(id string) (*models.Harvest, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.GetHarvest(id)
}

func servePNG(w http.ResponseWriter, data []byte, maxAge time.Duration) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	w.Write(data)
}
